package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/distribution/reference"
	"github.com/urfave/cli/v3"

	"github.com/retisctl/arc/pkg/controller"
)

func collectCmd() *cli.Command {
	return &cli.Command{
		Name:                  "collect",
		EnableShellCompletion: true,
		Usage:                 "Start packet capture collection on the selected worker nodes",
		Description: `Start RETIS packet capture on every selected worker node.

On each target node, collect:
  1. Creates the working directory
  2. Uploads the retis_in_container.sh helper script
  3. Launches the capture as a transient systemd unit (systemd-run), so it
     keeps running after the session ends
  4. Polls the unit until it is confirmed running or has completed

Node selection combines an optional name glob with an optional workload
regular expression; both filters together with logical AND. Control-plane
nodes are never targeted. Without any filter, a live run asks for
confirmation before touching ALL worker nodes.

# Examples

Capture on the nodes running a given workload:
  arc collect --workload-filter 'payments-.*'

Capture on a node name range, in parallel:
  arc collect --node-filter 'worker-2*' --parallel

Preview the commands without touching the cluster:
  arc collect --node-filter 'worker-0*' --dry-run

Custom capture expression and image:
  arc collect -n 'worker-*' \
    --filter-packet 'tcp port 443' \
    --image quay.io/retis/retis:1.5`,
		Flags: []cli.Flag{
			nodeFilterFlag,
			workloadFilterFlag,
			parallelFlag,
			concurrencyFlag,
			dryRunFlag,
			yesFlag,
			unitFlag,
			workingDirFlag,
			outputFileFlag,
			timeoutFlag,
			&cli.StringFlag{
				Name:    "image",
				Usage:   "collection container image reference exported to the helper script",
				Sources: cli.EnvVars("RETIS_IMAGE"),
				Value:   controller.DefaultImage,
			},
			&cli.StringFlag{
				Name:  "filter-packet",
				Usage: "capture filter expression passed to the collector",
				Value: controller.DefaultPacketFilter,
			},
			&cli.BoolFlag{
				Name:  "allow-system-changes",
				Usage: "let the collector modify system state (e.g. load kernel modules)",
				Value: true,
			},
			&cli.BoolFlag{
				Name:  "ovs-track",
				Usage: "enable Open vSwitch tracking",
				Value: true,
			},
			&cli.BoolFlag{
				Name:  "stack",
				Usage: "collect stack traces for captured events",
				Value: true,
			},
			&cli.BoolFlag{
				Name:  "probe-stack",
				Usage: "enable probe stack collection",
				Value: true,
			},
			&cli.StringFlag{
				Name:  "extra-args",
				Usage: "extra arguments appended to the collect invocation verbatim",
			},
			&cli.StringFlag{
				Name:  "command",
				Usage: "override the assembled node-side shell command entirely",
			},
			&cli.StringFlag{
				Name:    "script-url",
				Usage:   "URL of the helper script uploaded to each node",
				Sources: cli.EnvVars("ARC_SCRIPT_URL"),
				Value:   controller.DefaultScriptURL,
			},
			&cli.DurationFlag{
				Name:  "status-timeout",
				Usage: "how long to poll the unit for a decisive status after launch",
				Value: time.Minute,
			},
			outputFlag,
			formatFlag,
			metricsOutputFlag,
			kubeconfigFlag,
			namespaceFlag,
			debugImageFlag,
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			opts, err := parseCollectOptions(cmd)
			if err != nil {
				return err
			}

			// The helper script is only needed for live runs that use the
			// assembled command.
			if !opts.params.DryRun && opts.params.Collect.Command == "" {
				path, cleanup, err := controller.FetchScript(ctx, cmd.String("script-url"))
				if err != nil {
					return err
				}
				defer cleanup()
				opts.params.ScriptPath = path
			}

			return opts.executeRun(ctx)
		},
	}
}

// parseCollectOptions extends the shared options with the collect command
// parameters, validating the image reference up front.
func parseCollectOptions(cmd *cli.Command) (*runOptions, error) {
	opts, err := parseRunOptions(cmd, controller.OperationCollect)
	if err != nil {
		return nil, err
	}

	image := cmd.String("image")
	if _, err := reference.ParseNormalizedNamed(image); err != nil {
		return nil, fmt.Errorf("invalid collection image reference %q: %w", image, err)
	}

	opts.params.Collect = controller.CollectOptions{
		Image:              image,
		WorkingDir:         cmd.String("working-directory"),
		OutputFile:         cmd.String("output-file"),
		PacketFilter:       cmd.String("filter-packet"),
		AllowSystemChanges: cmd.Bool("allow-system-changes"),
		OVSTrack:           cmd.Bool("ovs-track"),
		Stack:              cmd.Bool("stack"),
		ProbeStack:         cmd.Bool("probe-stack"),
		ExtraArgs:          cmd.String("extra-args"),
		Command:            cmd.String("command"),
	}
	opts.params.StatusTimeout = cmd.Duration("status-timeout")

	return opts, nil
}
