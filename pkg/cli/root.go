package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v3"

	"github.com/retisctl/arc/pkg/logging"
)

const (
	name           = "arc"
	versionDefault = "dev"
)

var (
	// overridden during build with ldflags
	version = versionDefault
	commit  = "unknown"
	date    = "unknown"
)

// Root assembles the arc command tree.
func Root() *cli.Command {
	return &cli.Command{
		Name:                  name,
		Usage:                 "Run RETIS packet capture collection across cluster worker nodes",
		Version:               version,
		EnableShellCompletion: true,
		Description: fmt.Sprintf(`arc - remote collection runner

Version: %s
Commit:  %s
Built:   %s

arc selects cluster worker nodes by name glob and workload regex, then fans
a collection operation out across them through node-pinned debug pods:

collect      - upload the helper script and start capture as a transient
               systemd unit on each target node
stop         - stop the transient unit
reset-failed - clear a failed transient unit state
download     - fetch the capture output file from each target node`, version, commit, date),
		Flags: []cli.Flag{
			logLevelFlag,
		},
		Before: func(ctx context.Context, cmd *cli.Command) (context.Context, error) {
			logging.SetDefaultStructuredLoggerWithLevel(name, version, cmd.String("log-level"))
			slog.Debug("starting",
				"name", name,
				"version", version,
				"commit", commit,
				"date", date)
			return ctx, nil
		},
		Commands: []*cli.Command{
			collectCmd(),
			stopCmd(),
			resetFailedCmd(),
			downloadCmd(),
		},
	}
}

// Execute runs the CLI with SIGINT/SIGTERM wired to context cancellation so
// in-flight node sessions can tear down their debug pods.
func Execute() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-sigCh
		fmt.Fprintln(os.Stderr, "\nReceived interrupt signal, shutting down gracefully...")
		cancel()
	}()

	if err := Root().Run(ctx, os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
