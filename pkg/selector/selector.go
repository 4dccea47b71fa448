// Package selector computes the target set for a run: the ordered,
// deduplicated list of worker nodes that survive the name and workload
// filters. It also owns the safety gate that blocks live execution against
// every worker node when no filter was supplied.
package selector

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/retisctl/arc/pkg/filter"
	"github.com/retisctl/arc/pkg/k8s/inventory"
)

// NoMatchingNodesError reports an empty target set. It aborts the run before
// any remote call is made.
type NoMatchingNodesError struct {
	// Spec is the filter spec that matched nothing.
	Spec filter.Spec
	// Workers is the number of worker nodes considered.
	Workers int
}

func (e *NoMatchingNodesError) Error() string {
	return fmt.Sprintf("no nodes match the specified filters (node=%q, workload=%q, %d worker nodes considered)",
		e.Spec.NodeName, e.Spec.Workload, e.Workers)
}

// WorkloadLister returns the workloads scheduled on the named node. It is
// only invoked for nodes that survived the role and name filters, so
// excluded nodes never cost a lookup.
type WorkloadLister func(ctx context.Context, nodeName string) ([]inventory.Workload, error)

// StaticWorkloads adapts a pre-fetched workload snapshot into a
// WorkloadLister, for tests and offline use.
func StaticWorkloads(workloads []inventory.Workload) WorkloadLister {
	byNode := make(map[string][]inventory.Workload)
	for _, w := range workloads {
		byNode[w.Node] = append(byNode[w.Node], w)
	}
	return func(_ context.Context, nodeName string) ([]inventory.Workload, error) {
		return byNode[nodeName], nil
	}
}

// Select applies the compiled filters to the node snapshot and returns the
// target set, preserving input order and dropping duplicates. Control-plane
// nodes are excluded unconditionally. An empty result is a
// *NoMatchingNodesError.
func Select(ctx context.Context, nodes []inventory.Node, workloads WorkloadLister, spec *filter.Compiled) ([]inventory.Node, error) {
	var targets []inventory.Node
	seen := make(map[string]struct{}, len(nodes))
	workers := 0

	for _, node := range nodes {
		if _, dup := seen[node.Name]; dup {
			continue
		}
		seen[node.Name] = struct{}{}

		if !node.IsWorker() {
			slog.Debug("skipping non-worker node", "node", node.Name, "roles", node.Roles)
			continue
		}
		workers++

		if !spec.MatchesName(node) {
			continue
		}

		if spec.Spec().Workload != "" {
			loaded, err := workloads(ctx, node.Name)
			if err != nil {
				return nil, fmt.Errorf("failed to inspect workloads on node %s: %w", node.Name, err)
			}
			if !spec.MatchesWorkload(loaded) {
				continue
			}
		}

		targets = append(targets, node)
	}

	if len(targets) == 0 {
		return nil, &NoMatchingNodesError{Spec: spec.Spec(), Workers: workers}
	}

	slog.Info("selected nodes", "count", len(targets), "workers", workers)
	return targets, nil
}
