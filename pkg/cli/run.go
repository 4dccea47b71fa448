package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/urfave/cli/v3"

	"github.com/retisctl/arc/pkg/controller"
	apperrors "github.com/retisctl/arc/pkg/errors"
	"github.com/retisctl/arc/pkg/filter"
	"github.com/retisctl/arc/pkg/k8s/client"
	"github.com/retisctl/arc/pkg/k8s/inventory"
	"github.com/retisctl/arc/pkg/runner"
	"github.com/retisctl/arc/pkg/selector"
	"github.com/retisctl/arc/pkg/serializer"
	"github.com/retisctl/arc/pkg/session"
)

// runOptions is everything a subcommand action needs for one fan-out run.
type runOptions struct {
	spec        filter.Spec
	params      controller.Params
	kubeconfig  string
	namespace   string
	debugImage  string
	parallel    bool
	concurrency int
	assumeYes   bool
	output      string
	format      serializer.Format

	metricsOutput string
}

// parseRunOptions reads the flags shared by every subcommand.
func parseRunOptions(cmd *cli.Command, op controller.Operation) (*runOptions, error) {
	format, err := parseOutputFormat(cmd.String("format"))
	if err != nil {
		return nil, err
	}

	return &runOptions{
		spec: filter.Spec{
			NodeName: cmd.String("node-filter"),
			Workload: cmd.String("workload-filter"),
		},
		params: controller.Params{
			Operation:   op,
			Unit:        controller.NormalizeUnit(cmd.String("unit")),
			WorkingDir:  cmd.String("working-directory"),
			OutputFile:  cmd.String("output-file"),
			DryRun:      cmd.Bool("dry-run"),
			ExecTimeout: cmd.Duration("timeout"),
		},
		kubeconfig:  cmd.String("kubeconfig"),
		namespace:   cmd.String("namespace"),
		debugImage:  cmd.String("debug-image"),
		parallel:    cmd.Bool("parallel"),
		concurrency: int(cmd.Int("concurrency")),
		assumeYes:   cmd.Bool("yes"),
		output:      cmd.String("output"),
		format:      format,

		metricsOutput: cmd.String("metrics-output"),
	}, nil
}

// parseOutputFormat validates the report format flag.
func parseOutputFormat(format string) (serializer.Format, error) {
	f := serializer.Format(format)
	if f.IsUnknown() {
		return "", fmt.Errorf("unknown output format %q (supported: %v)", format, serializer.SupportedFormats())
	}
	return f, nil
}

// executeRun is the common subcommand body: select targets, gate, fan out,
// report. It returns an error when any node fails so the process exits
// non-zero.
func (o *runOptions) executeRun(ctx context.Context) error {
	compiled, err := filter.Compile(o.spec)
	if err != nil {
		return err
	}

	kube, config, err := client.BuildKubeClient(o.kubeconfig)
	if err != nil {
		return apperrors.WrapWithContext(apperrors.ErrCodeUnauthorized,
			"failed to connect to the cluster", err,
			map[string]any{"kubeconfig": o.kubeconfig})
	}

	lister := &inventory.Lister{Client: kube}
	nodes, err := lister.Nodes(ctx)
	if err != nil {
		return fmt.Errorf("failed to list cluster nodes: %w", err)
	}

	targets, err := selector.Select(ctx, nodes, lister.WorkloadsOn, compiled)
	if err != nil {
		return err
	}

	if err := selector.Gate(o.spec, o.params.DryRun, len(targets), o.confirmer()); err != nil {
		return err
	}

	ctrl := &controller.Controller{
		Dialer: &session.DebugPodDialer{
			Client:    kube,
			Config:    config,
			Namespace: o.namespace,
			Image:     o.debugImage,
		},
		Params: o.params,
	}

	run := &runner.Runner{
		Executor:    ctrl,
		Parallel:    o.parallel,
		Concurrency: o.concurrency,
	}

	start := time.Now()
	outcomes := run.Run(ctx, o.params.Operation, targets)
	report := runner.BuildReport(o.params.Operation, outcomes, time.Since(start))

	if err := o.writeReport(ctx, report); err != nil {
		return err
	}

	if err := o.writeMetrics(); err != nil {
		return err
	}

	if report.HasFailures() {
		return fmt.Errorf("%d of %d nodes failed", report.Failed, report.Targets)
	}
	return nil
}

// writeMetrics flushes the run metrics to the --metrics-output file, when
// requested.
func (o *runOptions) writeMetrics() error {
	if o.metricsOutput == "" {
		return nil
	}

	f, err := os.Create(o.metricsOutput)
	if err != nil {
		return fmt.Errorf("failed to create metrics file %s: %w", o.metricsOutput, err)
	}
	defer f.Close()

	if err := runner.WriteMetrics(f); err != nil {
		return fmt.Errorf("failed to write metrics to %s: %w", o.metricsOutput, err)
	}
	return nil
}

func (o *runOptions) confirmer() selector.Confirmer {
	if o.assumeYes {
		return selector.AlwaysConfirm()
	}
	return &selector.PromptConfirmer{In: os.Stdin, Out: os.Stderr}
}

func (o *runOptions) writeReport(ctx context.Context, report runner.Report) error {
	w := serializer.NewFileWriterOrStdout(o.format, o.output)
	if c, ok := w.(serializer.Closer); ok {
		defer func() {
			if closeErr := c.Close(); closeErr != nil {
				slog.Warn("failed to close report writer", "error", closeErr)
			}
		}()
	}

	if err := w.Serialize(ctx, report); err != nil {
		return fmt.Errorf("failed to write run report: %w", err)
	}
	return nil
}
