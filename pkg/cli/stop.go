package cli

import (
	"context"

	"github.com/urfave/cli/v3"

	"github.com/retisctl/arc/pkg/controller"
)

// unitCommandFlags are shared by the single-shot unit operations.
func unitCommandFlags() []cli.Flag {
	return []cli.Flag{
		nodeFilterFlag,
		workloadFilterFlag,
		parallelFlag,
		concurrencyFlag,
		dryRunFlag,
		yesFlag,
		unitFlag,
		timeoutFlag,
		outputFlag,
		formatFlag,
		metricsOutputFlag,
		kubeconfigFlag,
		namespaceFlag,
		debugImageFlag,
	}
}

func stopCmd() *cli.Command {
	return &cli.Command{
		Name:                  "stop",
		EnableShellCompletion: true,
		Usage:                 "Stop the collection unit on the selected worker nodes",
		Description: `Stop the transient systemd unit started by collect.

Stopping the unit finalizes the capture output file on the node, so it can
be fetched afterwards with download.

# Examples

Stop collection everywhere it was started:
  arc stop --node-filter 'worker-2*'

Stop a custom-named unit:
  arc stop -n 'worker-*' --unit retis-audit`,
		Flags: unitCommandFlags(),
		Action: func(ctx context.Context, cmd *cli.Command) error {
			opts, err := parseRunOptions(cmd, controller.OperationStop)
			if err != nil {
				return err
			}
			return opts.executeRun(ctx)
		},
	}
}

func resetFailedCmd() *cli.Command {
	return &cli.Command{
		Name:                  "reset-failed",
		EnableShellCompletion: true,
		Usage:                 "Clear a failed collection unit state on the selected worker nodes",
		Description: `Clear the failed state of the transient systemd unit.

systemd refuses to start a transient unit whose previous incarnation failed
until its state is reset. Run this before retrying collect on nodes where a
previous run failed.`,
		Flags: unitCommandFlags(),
		Action: func(ctx context.Context, cmd *cli.Command) error {
			opts, err := parseRunOptions(cmd, controller.OperationResetFailed)
			if err != nil {
				return err
			}
			return opts.executeRun(ctx)
		},
	}
}
