// Package session provides the per-node remote execution channel: run a
// command on the node host, copy a file to it, fetch a file from it. The
// default implementation tunnels through a node-pinned privileged debug pod
// and executes under chroot into the host filesystem, the programmatic
// equivalent of `oc debug node/<name> -- chroot /host ...`.
//
// Sessions are independent per node; a failure in one node's session never
// affects another's.
package session

import (
	"context"
	"errors"
	"time"

	"github.com/retisctl/arc/pkg/k8s/inventory"
)

// Result holds the outcome of a remote command.
type Result struct {
	ExitCode int
	Stdout   string
	Stderr   string
}

// ErrFileNotFound reports that a remote path requested by CopyFrom does not
// exist on the node.
var ErrFileNotFound = errors.New("remote file not found")

// Session is a remote-exec channel to a single node. Implementations confine
// side effects to the remote node except at the explicit copy boundaries.
type Session interface {
	// Run executes a shell command on the node host, bounded by timeout
	// (zero means no session-level bound beyond ctx). A non-zero exit
	// returns the populated Result together with a *ExecError; an exceeded
	// timeout returns a *TimeoutError.
	Run(ctx context.Context, command string, timeout time.Duration) (*Result, error)

	// CopyTo copies a local file to the given path on the node host,
	// bounded by timeout like Run.
	CopyTo(ctx context.Context, localPath, remotePath string, timeout time.Duration) error

	// CopyFrom copies a file from the node host to a local path, bounded by
	// timeout like Run. A missing remote file is reported as ErrFileNotFound.
	CopyFrom(ctx context.Context, remotePath, localPath string, timeout time.Duration) error

	// Close releases the remote end of the channel.
	Close(ctx context.Context) error
}

// Dialer opens a Session to a node. One session is dialed per node workflow;
// no state is shared between sessions.
type Dialer interface {
	Dial(ctx context.Context, node inventory.Node) (Session, error)
}
