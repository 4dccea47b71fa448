// Package runner fans one operation out across the selected target nodes,
// sequentially or in parallel, and aggregates the per-node outcomes into a
// run report. A node's failure is recorded in its outcome and never aborts
// the siblings; cancellation stops new launches while nodes already
// launched run to their own timeout-bounded completion.
package runner

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/retisctl/arc/pkg/controller"
	"github.com/retisctl/arc/pkg/k8s/inventory"
)

// DefaultLaunchInterval spaces out parallel session launches so a large
// target set does not stampede the API server with pod creations.
const DefaultLaunchInterval = 200 * time.Millisecond

// Executor runs one operation on one node. Implemented by
// *controller.Controller.
type Executor interface {
	Execute(ctx context.Context, node inventory.Node) controller.NodeOutcome
}

// Runner fans the operation out across the target set.
type Runner struct {
	// Executor performs the per-node work.
	Executor Executor
	// Parallel runs all nodes concurrently instead of one at a time.
	Parallel bool
	// Concurrency caps in-flight nodes in parallel mode; 0 means unlimited.
	Concurrency int
	// LaunchInterval spaces out parallel launches; 0 uses the default.
	LaunchInterval time.Duration
}

// Run executes the operation on every target and returns one outcome per
// node, in target-set order regardless of completion order.
func (r *Runner) Run(ctx context.Context, op controller.Operation, targets []inventory.Node) []controller.NodeOutcome {
	start := time.Now()
	defer func() {
		runDuration.Observe(time.Since(start).Seconds())
	}()
	runTargetCount.Set(float64(len(targets)))

	slog.Info("starting run",
		"operation", op, "targets", len(targets), "parallel", r.Parallel)

	var outcomes []controller.NodeOutcome
	if r.Parallel && len(targets) > 1 {
		outcomes = r.runParallel(ctx, op, targets)
	} else {
		outcomes = r.runSequential(ctx, op, targets)
	}

	for _, o := range outcomes {
		nodeOperationTotal.WithLabelValues(string(o.Operation), string(o.Status)).Inc()
	}

	slog.Info("run complete", "operation", op, "duration", time.Since(start).Round(time.Millisecond))
	return outcomes
}

func (r *Runner) runSequential(ctx context.Context, op controller.Operation, targets []inventory.Node) []controller.NodeOutcome {
	outcomes := make([]controller.NodeOutcome, 0, len(targets))
	for _, node := range targets {
		if ctx.Err() != nil {
			outcomes = append(outcomes, canceledOutcome(op, node))
			continue
		}
		// Once launched, the node workflow runs to its own timeout-bounded
		// completion; only the launch gate above observes cancellation.
		outcomes = append(outcomes, r.executeOne(context.WithoutCancel(ctx), node))
	}
	return outcomes
}

func (r *Runner) runParallel(ctx context.Context, op controller.Operation, targets []inventory.Node) []controller.NodeOutcome {
	// Indexed result slots keep the report in target-set order no matter
	// which node finishes first.
	outcomes := make([]controller.NodeOutcome, len(targets))

	limiter := rate.NewLimiter(rate.Every(r.launchInterval()), 1)

	// Executor failures are captured in outcomes, so the group only carries
	// the concurrency limit, never an error.
	var g errgroup.Group
	if r.Concurrency > 0 {
		g.SetLimit(r.Concurrency)
	}

	var mu sync.Mutex
	for i, node := range targets {
		if err := limiter.Wait(ctx); err != nil {
			mu.Lock()
			outcomes[i] = canceledOutcome(op, node)
			mu.Unlock()
			continue
		}
		g.Go(func() error {
			// A goroutine that was queued on the concurrency limit may only
			// start after cancellation; it must not launch then. Nodes that
			// did launch run to completion on a detached context, bounded by
			// their per-step timeouts.
			out := canceledOutcome(op, node)
			if ctx.Err() == nil {
				out = r.executeOne(context.WithoutCancel(ctx), node)
			}
			mu.Lock()
			outcomes[i] = out
			mu.Unlock()
			return nil
		})
	}

	_ = g.Wait()
	return outcomes
}

func (r *Runner) executeOne(ctx context.Context, node inventory.Node) controller.NodeOutcome {
	start := time.Now()
	out := r.Executor.Execute(ctx, node)
	nodeOperationDuration.WithLabelValues(string(out.Operation)).Observe(time.Since(start).Seconds())

	slog.Debug("node finished",
		"node", out.Node, "status", out.Status, "duration", time.Since(start).Round(time.Millisecond))
	return out
}

func (r *Runner) launchInterval() time.Duration {
	if r.LaunchInterval > 0 {
		return r.LaunchInterval
	}
	return DefaultLaunchInterval
}

func canceledOutcome(op controller.Operation, node inventory.Node) controller.NodeOutcome {
	return controller.NodeOutcome{
		Node:      node.Name,
		Operation: op,
		Status:    controller.StatusFailed,
		Detail:    "run canceled before this node started",
	}
}
