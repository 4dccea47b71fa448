// Package controller drives a single node through one collection operation:
// start (upload the helper script, launch the transient systemd unit, poll
// its status), stop, reset-failed, or download-results. Each node gets its
// own controller invocation over its own remote session; failures are
// captured as outcomes, never propagated across nodes.
package controller

import "fmt"

// Operation identifies the remote lifecycle action to perform.
type Operation string

const (
	// OperationCollect uploads the helper script and starts collection as a
	// supervised transient systemd unit.
	OperationCollect Operation = "collect"
	// OperationStop stops the transient unit.
	OperationStop Operation = "stop"
	// OperationResetFailed clears a failed transient unit state.
	OperationResetFailed Operation = "reset-failed"
	// OperationDownload fetches the collection output file from the node.
	OperationDownload Operation = "download"
)

// State is a step in the per-node workflow.
type State string

const (
	StateIdle        State = "idle"
	StatePreparing   State = "preparing"
	StateRunning     State = "running"
	StateStopping    State = "stopping"
	StateResetting   State = "resetting"
	StateDownloading State = "downloading"
	StateCompleted   State = "completed"
	StateFailed      State = "failed"
)

// Status is the terminal result of one node's operation.
type Status string

const (
	// StatusSucceeded means the operation reached its goal on the node.
	StatusSucceeded Status = "succeeded"
	// StatusFailed means the operation failed on the node; Detail carries
	// the captured error.
	StatusFailed Status = "failed"
	// StatusSkippedDryRun means dry-run mode reported the intended actions
	// without issuing any remote call.
	StatusSkippedDryRun Status = "skipped-dry-run"
)

// NodeOutcome is the per-node result record aggregated into the run report.
type NodeOutcome struct {
	// Node is the node name.
	Node string `json:"node" yaml:"node"`
	// Operation is the operation that produced this outcome.
	Operation Operation `json:"operation" yaml:"operation"`
	// Status is the terminal result.
	Status Status `json:"status" yaml:"status"`
	// Detail is a human-readable description of the result.
	Detail string `json:"detail,omitempty" yaml:"detail,omitempty"`
	// Artifact is the local path of a downloaded file, if any.
	Artifact string `json:"artifact,omitempty" yaml:"artifact,omitempty"`
}

// Failed reports whether this outcome counts against the run's exit status.
func (o NodeOutcome) Failed() bool { return o.Status == StatusFailed }

// ArtifactNotFoundError reports that a download was requested but the output
// file does not exist on the node.
type ArtifactNotFoundError struct {
	// Node is the node that was missing the file.
	Node string
	// Path is the remote path that was requested.
	Path string
}

func (e *ArtifactNotFoundError) Error() string {
	return fmt.Sprintf("no collection output at %s on node %s", e.Path, e.Node)
}
