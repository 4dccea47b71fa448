package cli

import (
	"time"

	"github.com/urfave/cli/v3"

	"github.com/retisctl/arc/pkg/controller"
	"github.com/retisctl/arc/pkg/session"
)

// Flags shared by every subcommand.
var (
	logLevelFlag = &cli.StringFlag{
		Name:    "log-level",
		Usage:   "log level (debug, info, warn, error)",
		Sources: cli.EnvVars("ARC_LOG_LEVEL"),
		Value:   "info",
	}

	kubeconfigFlag = &cli.StringFlag{
		Name:    "kubeconfig",
		Usage:   "path to the kubeconfig file (default: $KUBECONFIG, ~/.kube/config, in-cluster)",
		Sources: cli.EnvVars("KUBECONFIG"),
	}

	nodeFilterFlag = &cli.StringFlag{
		Name:    "node-filter",
		Aliases: []string{"n"},
		Usage:   "glob pattern matched against full node names (e.g. 'worker-2*')",
	}

	workloadFilterFlag = &cli.StringFlag{
		Name:    "workload-filter",
		Aliases: []string{"w"},
		Usage:   "regular expression matched against pod names, namespaces, and key=value labels on each node",
	}

	parallelFlag = &cli.BoolFlag{
		Name:  "parallel",
		Usage: "run all target nodes concurrently instead of one at a time",
	}

	concurrencyFlag = &cli.IntFlag{
		Name:  "concurrency",
		Usage: "cap on concurrent nodes in parallel mode (0 = unlimited)",
	}

	dryRunFlag = &cli.BoolFlag{
		Name:  "dry-run",
		Usage: "report the selected nodes and intended commands without any remote call",
	}

	yesFlag = &cli.BoolFlag{
		Name:    "yes",
		Aliases: []string{"y"},
		Usage:   "skip the all-workers confirmation prompt",
	}

	outputFlag = &cli.StringFlag{
		Name:    "output",
		Aliases: []string{"o"},
		Usage:   "write the run report to a file or ConfigMap (cm://namespace/name) instead of stdout",
	}

	formatFlag = &cli.StringFlag{
		Name:    "format",
		Aliases: []string{"f"},
		Usage:   "report format: json, yaml, or table",
		Sources: cli.EnvVars("ARC_FORMAT"),
		Value:   "table",
	}

	unitFlag = &cli.StringFlag{
		Name:    "unit",
		Usage:   "transient systemd unit name used on the nodes",
		Sources: cli.EnvVars("ARC_UNIT"),
		Value:   controller.DefaultUnit,
	}

	workingDirFlag = &cli.StringFlag{
		Name:    "working-directory",
		Usage:   "node-side working directory for the script and output file",
		Sources: cli.EnvVars("ARC_WORKING_DIRECTORY"),
		Value:   controller.DefaultWorkingDir,
	}

	outputFileFlag = &cli.StringFlag{
		Name:    "output-file",
		Usage:   "collection output file name inside the working directory",
		Sources: cli.EnvVars("ARC_OUTPUT_FILE"),
		Value:   controller.DefaultOutputFile,
	}

	namespaceFlag = &cli.StringFlag{
		Name:    "namespace",
		Usage:   "namespace used for the per-node debug pods",
		Sources: cli.EnvVars("ARC_NAMESPACE"),
		Value:   session.DefaultNamespace,
	}

	debugImageFlag = &cli.StringFlag{
		Name:    "debug-image",
		Usage:   "container image used for the per-node debug pods",
		Sources: cli.EnvVars("ARC_DEBUG_IMAGE"),
		Value:   session.DefaultDebugImage,
	}

	timeoutFlag = &cli.DurationFlag{
		Name:  "timeout",
		Usage: "timeout for each individual remote command",
		Value: 5 * time.Minute,
	}

	metricsOutputFlag = &cli.StringFlag{
		Name:    "metrics-output",
		Usage:   "write run metrics to this file in Prometheus text format",
		Sources: cli.EnvVars("ARC_METRICS_OUTPUT"),
	}
)
