package controller

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"k8s.io/apimachinery/pkg/util/wait"

	"github.com/retisctl/arc/pkg/k8s/inventory"
	"github.com/retisctl/arc/pkg/session"
)

// Params configures one operation across the run. The same Params value is
// shared read-only by every node's controller invocation.
type Params struct {
	// Operation selects the lifecycle action.
	Operation Operation
	// Unit is the transient systemd unit name (already normalized).
	Unit string
	// WorkingDir is the node-side working directory.
	WorkingDir string
	// OutputFile is the collection output file name.
	OutputFile string
	// DestDir is the local destination directory for downloads.
	DestDir string
	// Collect holds the start-collection command parameters.
	Collect CollectOptions
	// ScriptPath is the local helper script to upload during Preparing.
	// Unused in dry-run mode.
	ScriptPath string
	// DryRun reports intended actions without issuing any remote call.
	DryRun bool
	// ExecTimeout bounds each individual remote command.
	ExecTimeout time.Duration
	// StatusInterval is the unit status poll interval.
	StatusInterval time.Duration
	// StatusTimeout is the unit status poll deadline.
	StatusTimeout time.Duration
}

func (p *Params) withDefaults() Params {
	out := *p
	if out.Unit == "" {
		out.Unit = DefaultUnit
	}
	if out.WorkingDir == "" {
		out.WorkingDir = DefaultWorkingDir
	}
	if out.OutputFile == "" {
		out.OutputFile = DefaultOutputFile
	}
	if out.DestDir == "" {
		out.DestDir = "."
	}
	if out.ExecTimeout <= 0 {
		out.ExecTimeout = 5 * time.Minute
	}
	if out.StatusInterval <= 0 {
		out.StatusInterval = 2 * time.Second
	}
	if out.StatusTimeout <= 0 {
		out.StatusTimeout = time.Minute
	}
	return out
}

// Controller executes one operation on one node at a time. It is stateless
// between invocations; all per-node state lives on the stack of Execute.
type Controller struct {
	// Dialer opens the remote session for each node.
	Dialer session.Dialer
	// Params is the operation configuration.
	Params Params
}

// Execute drives the node through the operation's state machine and returns
// its outcome. Errors are captured into the outcome, never returned: one
// node's failure must not abort siblings.
func (c *Controller) Execute(ctx context.Context, node inventory.Node) NodeOutcome {
	p := c.Params.withDefaults()

	outcome := NodeOutcome{Node: node.Name, Operation: p.Operation}

	if p.DryRun {
		outcome.Status = StatusSkippedDryRun
		outcome.Detail = dryRunDetail(p)
		slog.Info("dry-run", "node", node.Name, "operation", p.Operation, "detail", outcome.Detail)
		return outcome
	}

	sess, err := c.Dialer.Dial(ctx, node)
	if err != nil {
		return failed(outcome, fmt.Errorf("failed to open session: %w", err))
	}
	defer func() {
		// The session teardown must run even when the operator cancelled
		// the run, so the node is not left with a stray debug pod.
		if closeErr := sess.Close(context.WithoutCancel(ctx)); closeErr != nil {
			slog.Warn("failed to close session", "node", node.Name, "error", closeErr)
		}
	}()

	switch p.Operation {
	case OperationCollect:
		return c.collect(ctx, sess, node, p, outcome)
	case OperationStop:
		return c.signalUnit(ctx, sess, node, p, outcome, StateStopping, "stop")
	case OperationResetFailed:
		return c.signalUnit(ctx, sess, node, p, outcome, StateResetting, "reset-failed")
	case OperationDownload:
		return c.download(ctx, sess, node, p, outcome)
	default:
		return failed(outcome, fmt.Errorf("unknown operation: %s", p.Operation))
	}
}

// collect walks Idle -> Preparing -> Running -> Completed|Failed.
func (c *Controller) collect(ctx context.Context, sess session.Session, node inventory.Node, p Params, outcome NodeOutcome) NodeOutcome {
	state := transition(node.Name, StateIdle, StatePreparing)

	remoteScript := strings.TrimRight(p.WorkingDir, "/") + "/" + ScriptName

	if _, err := sess.Run(ctx, "mkdir -p "+p.WorkingDir, p.ExecTimeout); err != nil {
		return failed(outcome, fmt.Errorf("failed to create working directory: %w", err))
	}
	if err := sess.CopyTo(ctx, p.ScriptPath, remoteScript, p.ExecTimeout); err != nil {
		return failed(outcome, fmt.Errorf("failed to upload helper script: %w", err))
	}
	if _, err := sess.Run(ctx, "chmod a+x "+remoteScript, p.ExecTimeout); err != nil {
		return failed(outcome, fmt.Errorf("failed to set helper script permissions: %w", err))
	}

	state = transition(node.Name, state, StateRunning)

	launch := LaunchCommand(p.Unit, p.WorkingDir, p.Collect.ShellCommand())
	slog.Debug("launching collection", "node", node.Name, "command", launch)

	if _, err := sess.Run(ctx, launch, p.ExecTimeout); err != nil {
		return failed(outcome, fmt.Errorf("failed to launch collection unit: %w", err))
	}

	status, err := c.pollUnit(ctx, sess, node.Name, p)
	if err != nil {
		transition(node.Name, state, StateFailed)
		return failed(outcome, err)
	}

	transition(node.Name, state, StateCompleted)
	outcome.Status = StatusSucceeded
	outcome.Detail = fmt.Sprintf("collection unit %s %s", p.Unit, status)
	return outcome
}

// signalUnit covers the single-shot operations that act on the unit without
// the prepare/run split.
func (c *Controller) signalUnit(ctx context.Context, sess session.Session, node inventory.Node, p Params, outcome NodeOutcome, st State, verb string) NodeOutcome {
	state := transition(node.Name, StateIdle, st)

	cmd := fmt.Sprintf("systemctl %s %s", verb, p.Unit)
	if _, err := sess.Run(ctx, cmd, p.ExecTimeout); err != nil {
		transition(node.Name, state, StateFailed)
		return failed(outcome, err)
	}

	transition(node.Name, state, StateCompleted)
	outcome.Status = StatusSucceeded
	outcome.Detail = fmt.Sprintf("systemctl %s %s succeeded", verb, p.Unit)
	return outcome
}

// download fetches the output file to {node-short-name}_{output-file} under
// DestDir.
func (c *Controller) download(ctx context.Context, sess session.Session, node inventory.Node, p Params, outcome NodeOutcome) NodeOutcome {
	state := transition(node.Name, StateIdle, StateDownloading)

	remote := strings.TrimRight(p.WorkingDir, "/") + "/" + p.OutputFile
	local := filepath.Join(p.DestDir, node.ShortName()+"_"+p.OutputFile)

	if err := os.MkdirAll(p.DestDir, 0o755); err != nil {
		transition(node.Name, state, StateFailed)
		return failed(outcome, fmt.Errorf("failed to create destination directory %s: %w", p.DestDir, err))
	}

	if err := sess.CopyFrom(ctx, remote, local, p.ExecTimeout); err != nil {
		transition(node.Name, state, StateFailed)
		if errors.Is(err, session.ErrFileNotFound) {
			return failed(outcome, &ArtifactNotFoundError{Node: node.Name, Path: remote})
		}
		return failed(outcome, err)
	}

	transition(node.Name, state, StateCompleted)
	outcome.Status = StatusSucceeded
	outcome.Detail = fmt.Sprintf("downloaded %s", remote)
	outcome.Artifact = local
	return outcome
}

// pollUnit polls the transient unit until it reaches a decisive state or the
// deadline passes. Returns a short status word on success.
func (c *Controller) pollUnit(ctx context.Context, sess session.Session, nodeName string, p Params) (string, error) {
	show := fmt.Sprintf("systemctl show %s --property=ActiveState,ExecMainStatus --no-pager", p.Unit)

	var status string
	var unitErr error

	err := wait.PollUntilContextTimeout(ctx, p.StatusInterval, p.StatusTimeout, true,
		func(ctx context.Context) (bool, error) {
			res, err := sess.Run(ctx, show, p.ExecTimeout)
			if err != nil {
				return false, err
			}

			active, mainStatus := parseUnitProperties(res.Stdout)
			slog.Debug("unit status", "node", nodeName, "unit", p.Unit,
				"activeState", active, "execMainStatus", mainStatus)

			switch active {
			case "active":
				status = "is running"
				return true, nil
			case "inactive":
				if mainStatus == 0 {
					status = "completed successfully"
					return true, nil
				}
				unitErr = fmt.Errorf("unit %s exited with status %d", p.Unit, mainStatus)
				return false, unitErr
			case "failed":
				unitErr = fmt.Errorf("unit %s failed (exit status %d)", p.Unit, mainStatus)
				return false, unitErr
			default:
				// activating, deactivating, reloading: keep polling.
				return false, nil
			}
		},
	)
	if err != nil {
		if unitErr == nil && wait.Interrupted(err) {
			return "", &session.TimeoutError{Node: nodeName, Command: show, Timeout: p.StatusTimeout}
		}
		return "", err
	}

	return status, nil
}

// parseUnitProperties extracts ActiveState and ExecMainStatus from
// `systemctl show` key=value output.
func parseUnitProperties(out string) (activeState string, execMainStatus int) {
	for _, line := range strings.Split(out, "\n") {
		key, value, found := strings.Cut(strings.TrimSpace(line), "=")
		if !found {
			continue
		}
		switch key {
		case "ActiveState":
			activeState = value
		case "ExecMainStatus":
			if n, err := strconv.Atoi(value); err == nil {
				execMainStatus = n
			}
		}
	}
	return activeState, execMainStatus
}

func dryRunDetail(p Params) string {
	switch p.Operation {
	case OperationCollect:
		launch := LaunchCommand(p.Unit, p.WorkingDir, p.Collect.ShellCommand())
		return fmt.Sprintf("would upload %s to %s and run: %s", ScriptName, p.WorkingDir, launch)
	case OperationStop:
		return fmt.Sprintf("would run: systemctl stop %s", p.Unit)
	case OperationResetFailed:
		return fmt.Sprintf("would run: systemctl reset-failed %s", p.Unit)
	case OperationDownload:
		remote := strings.TrimRight(p.WorkingDir, "/") + "/" + p.OutputFile
		return fmt.Sprintf("would download %s to %s", remote, p.DestDir)
	default:
		return "unknown operation"
	}
}

func failed(outcome NodeOutcome, err error) NodeOutcome {
	outcome.Status = StatusFailed
	outcome.Detail = err.Error()
	slog.Error("operation failed", "node", outcome.Node, "operation", outcome.Operation, "error", err)
	return outcome
}

func transition(node string, from, to State) State {
	slog.Debug("state transition", "node", node, "from", from, "to", to)
	return to
}
