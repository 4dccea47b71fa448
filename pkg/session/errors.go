package session

import (
	"fmt"
	"time"
)

// TimeoutError reports that a single node's remote operation exceeded its
// timeout. It is scoped to that node and never aborts sibling nodes.
type TimeoutError struct {
	// Node is the node the operation ran against.
	Node string
	// Command is the remote command, empty for copy operations.
	Command string
	// Timeout is the bound that was exceeded.
	Timeout time.Duration
}

func (e *TimeoutError) Error() string {
	if e.Command == "" {
		return fmt.Sprintf("remote operation on node %s timed out after %s", e.Node, e.Timeout)
	}
	return fmt.Sprintf("remote command on node %s timed out after %s: %s", e.Node, e.Timeout, e.Command)
}

// ExecError reports a non-zero exit or transport failure for a remote
// command on a single node.
type ExecError struct {
	// Node is the node the command ran against.
	Node string
	// Command is the remote command.
	Command string
	// ExitCode is the remote exit code, -1 when unknown (transport failure).
	ExitCode int
	// Stderr is the captured error output, possibly truncated.
	Stderr string
	// Err is the underlying error, if any.
	Err error
}

func (e *ExecError) Error() string {
	msg := fmt.Sprintf("remote command failed on node %s (exit code %d)", e.Node, e.ExitCode)
	if e.Stderr != "" {
		msg += ": " + e.Stderr
	}
	if e.Err != nil && e.Stderr == "" {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *ExecError) Unwrap() error { return e.Err }
