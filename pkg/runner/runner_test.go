package runner

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/retisctl/arc/pkg/controller"
	"github.com/retisctl/arc/pkg/k8s/inventory"
)

// slowExecutor returns canned outcomes with an optional per-node delay, so
// tests can force out-of-order completion.
type slowExecutor struct {
	mu       sync.Mutex
	executed []string
	delays   map[string]time.Duration
	statuses map[string]controller.Status
}

func (e *slowExecutor) Execute(ctx context.Context, node inventory.Node) controller.NodeOutcome {
	if d := e.delays[node.Name]; d > 0 {
		select {
		case <-time.After(d):
		case <-ctx.Done():
		}
	}

	e.mu.Lock()
	e.executed = append(e.executed, node.Name)
	e.mu.Unlock()

	status := controller.StatusSucceeded
	if s, ok := e.statuses[node.Name]; ok {
		status = s
	}
	return controller.NodeOutcome{Node: node.Name, Operation: controller.OperationCollect, Status: status}
}

func nodes(names ...string) []inventory.Node {
	out := make([]inventory.Node, 0, len(names))
	for _, n := range names {
		out = append(out, inventory.Node{Name: n})
	}
	return out
}

func outcomeNodes(outcomes []controller.NodeOutcome) []string {
	out := make([]string, 0, len(outcomes))
	for _, o := range outcomes {
		out = append(out, o.Node)
	}
	return out
}

func TestRunSequentialOrder(t *testing.T) {
	exec := &slowExecutor{}
	r := &Runner{Executor: exec}

	outcomes := r.Run(context.Background(), controller.OperationCollect, nodes("a", "b", "c"))

	assert.Equal(t, []string{"a", "b", "c"}, outcomeNodes(outcomes))
	assert.Equal(t, []string{"a", "b", "c"}, exec.executed)
}

func TestRunSequentialFailureIsolation(t *testing.T) {
	exec := &slowExecutor{
		statuses: map[string]controller.Status{"b": controller.StatusFailed},
	}
	r := &Runner{Executor: exec}

	outcomes := r.Run(context.Background(), controller.OperationCollect, nodes("a", "b", "c"))

	// The failing node does not stop the ones after it.
	require.Len(t, outcomes, 3)
	assert.Equal(t, controller.StatusSucceeded, outcomes[0].Status)
	assert.Equal(t, controller.StatusFailed, outcomes[1].Status)
	assert.Equal(t, controller.StatusSucceeded, outcomes[2].Status)
}

func TestRunParallelPreservesTargetOrder(t *testing.T) {
	// The first node finishes last; the report must still list it first.
	exec := &slowExecutor{
		delays: map[string]time.Duration{"a": 50 * time.Millisecond},
	}
	r := &Runner{Executor: exec, Parallel: true, LaunchInterval: time.Millisecond}

	outcomes := r.Run(context.Background(), controller.OperationCollect, nodes("a", "b", "c"))

	assert.Equal(t, []string{"a", "b", "c"}, outcomeNodes(outcomes))
}

func TestRunParallelOneOutcomePerNode(t *testing.T) {
	exec := &slowExecutor{
		statuses: map[string]controller.Status{"b": controller.StatusFailed},
	}
	r := &Runner{Executor: exec, Parallel: true, LaunchInterval: time.Millisecond, Concurrency: 2}

	outcomes := r.Run(context.Background(), controller.OperationCollect, nodes("a", "b", "c", "d"))

	require.Len(t, outcomes, 4)
	for i, name := range []string{"a", "b", "c", "d"} {
		assert.Equal(t, name, outcomes[i].Node)
		assert.NotEmpty(t, outcomes[i].Status)
	}
}

func TestRunSequentialCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	exec := &slowExecutor{}
	r := &Runner{Executor: exec}

	outcomes := r.Run(ctx, controller.OperationStop, nodes("a", "b"))

	// Nothing launched after cancellation, but every node still gets an outcome.
	require.Len(t, outcomes, 2)
	assert.Empty(t, exec.executed)
	for _, o := range outcomes {
		assert.Equal(t, controller.StatusFailed, o.Status)
		assert.Contains(t, o.Detail, "canceled")
		assert.Equal(t, controller.OperationStop, o.Operation)
	}
}

// finishingExecutor succeeds only if its context stays alive for the full
// duration, so tests can tell an aborted operation from a completed one.
type finishingExecutor struct {
	duration time.Duration
}

func (e *finishingExecutor) Execute(ctx context.Context, node inventory.Node) controller.NodeOutcome {
	select {
	case <-ctx.Done():
		return controller.NodeOutcome{
			Node:      node.Name,
			Operation: controller.OperationStop,
			Status:    controller.StatusFailed,
			Detail:    ctx.Err().Error(),
		}
	case <-time.After(e.duration):
		return controller.NodeOutcome{
			Node:      node.Name,
			Operation: controller.OperationStop,
			Status:    controller.StatusSucceeded,
		}
	}
}

func TestRunParallelCancellationLetsInFlightNodesFinish(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	exec := &finishingExecutor{duration: 200 * time.Millisecond}
	r := &Runner{Executor: exec, Parallel: true, LaunchInterval: time.Millisecond}

	time.AfterFunc(50*time.Millisecond, cancel)
	outcomes := r.Run(ctx, controller.OperationStop, nodes("worker-0", "worker-1"))

	// Both nodes launched before the cancel; neither may be cut off mid-flight.
	require.Len(t, outcomes, 2)
	for _, o := range outcomes {
		assert.Equal(t, controller.StatusSucceeded, o.Status, "in-flight node was aborted: %s", o.Detail)
	}
}

func TestRunSequentialCancellationLetsInFlightNodeFinish(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	exec := &finishingExecutor{duration: 100 * time.Millisecond}
	r := &Runner{Executor: exec}

	time.AfterFunc(30*time.Millisecond, cancel)
	outcomes := r.Run(ctx, controller.OperationStop, nodes("worker-0", "worker-1"))

	require.Len(t, outcomes, 2)

	// worker-0 launched before the cancel and finishes on its own clock.
	assert.Equal(t, controller.StatusSucceeded, outcomes[0].Status, "in-flight node was aborted: %s", outcomes[0].Detail)

	// worker-1 never launched.
	assert.Equal(t, controller.StatusFailed, outcomes[1].Status)
	assert.Contains(t, outcomes[1].Detail, "canceled before this node started")
}

func TestRunSingleTargetSkipsParallelPath(t *testing.T) {
	exec := &slowExecutor{}
	r := &Runner{Executor: exec, Parallel: true}

	outcomes := r.Run(context.Background(), controller.OperationDownload, nodes("only"))

	require.Len(t, outcomes, 1)
	assert.Equal(t, "only", outcomes[0].Node)
}

func TestBuildReport(t *testing.T) {
	outcomes := []controller.NodeOutcome{
		{Node: "a", Status: controller.StatusSucceeded},
		{Node: "b", Status: controller.StatusFailed},
		{Node: "c", Status: controller.StatusSkippedDryRun},
	}

	report := BuildReport(controller.OperationCollect, outcomes, 1500*time.Millisecond)

	assert.Equal(t, 3, report.Targets)
	assert.Equal(t, 1, report.Succeeded)
	assert.Equal(t, 1, report.Failed)
	assert.Equal(t, 1, report.Skipped)
	assert.Equal(t, "1.5s", report.Duration)
	assert.True(t, report.HasFailures())
}

func TestBuildReportNoFailures(t *testing.T) {
	report := BuildReport(controller.OperationStop, []controller.NodeOutcome{
		{Node: "a", Status: controller.StatusSucceeded},
	}, time.Second)

	assert.False(t, report.HasFailures())
}
