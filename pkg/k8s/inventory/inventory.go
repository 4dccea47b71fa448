package inventory

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	v1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"

	"github.com/retisctl/arc/pkg/k8s/client"
)

// Node is a read-only snapshot of a cluster node, captured once per run.
type Node struct {
	// Name is the node name.
	Name string `json:"name" yaml:"name"`
	// Roles are the role names parsed from node-role.kubernetes.io labels.
	Roles []string `json:"roles,omitempty" yaml:"roles,omitempty"`
	// IP is the primary internal IP address of the node.
	IP string `json:"ip,omitempty" yaml:"ip,omitempty"`
	// Labels are the node labels at snapshot time.
	Labels map[string]string `json:"-" yaml:"-"`
}

// ShortName returns the node name up to the first dot, the form used to
// prefix downloaded artifact files.
func (n Node) ShortName() string {
	name, _, _ := strings.Cut(n.Name, ".")
	return name
}

// Workload is a read-only snapshot of a scheduled unit (pod) bound to a node.
type Workload struct {
	// Name is the pod name.
	Name string `json:"name" yaml:"name"`
	// Namespace is the pod namespace.
	Namespace string `json:"namespace" yaml:"namespace"`
	// Labels are the pod labels at snapshot time.
	Labels map[string]string `json:"labels,omitempty" yaml:"labels,omitempty"`
	// Node is the name of the node the pod is scheduled on.
	Node string `json:"node" yaml:"node"`
}

const (
	nodeRoleLabelPrefix   = "node-role.kubernetes.io/"
	workerRoleLabel       = nodeRoleLabelPrefix + "worker"
	masterRoleLabel       = nodeRoleLabelPrefix + "master"
	controlPlaneRoleLabel = nodeRoleLabelPrefix + "control-plane"
)

// IsWorker reports whether the node is eligible for collection: it carries
// the worker role label, or carries neither the master nor the control-plane
// role label.
func (n Node) IsWorker() bool {
	if _, ok := n.Labels[workerRoleLabel]; ok {
		return true
	}
	_, master := n.Labels[masterRoleLabel]
	_, controlPlane := n.Labels[controlPlaneRoleLabel]
	return !master && !controlPlane
}

// FromNode converts a Kubernetes node object into its snapshot form.
func FromNode(n *v1.Node) Node {
	node := Node{
		Name:   n.Name,
		Labels: n.Labels,
		IP:     nodeIP(n, v1.NodeInternalIP),
	}

	for k := range n.Labels {
		if strings.HasPrefix(k, nodeRoleLabelPrefix) {
			if role := strings.TrimPrefix(k, nodeRoleLabelPrefix); role != "" {
				node.Roles = append(node.Roles, role)
			}
		}
	}
	sort.Strings(node.Roles)

	return node
}

// FromPod converts a Kubernetes pod object into its snapshot form.
func FromPod(p *v1.Pod) Workload {
	return Workload{
		Name:      p.Name,
		Namespace: p.Namespace,
		Labels:    p.Labels,
		Node:      p.Spec.NodeName,
	}
}

const (
	nodeListPageSize    int64 = 500
	nodeListAbsoluteMax int64 = 10000 // hard cap to prevent memory exhaustion
)

// Lister captures the node and workload snapshot for a run. Workload lookups
// are performed lazily, one node at a time, so nodes excluded by earlier
// filters never trigger a pod list call.
type Lister struct {
	// Client is the Kubernetes client. Required.
	Client client.Interface
}

// Nodes returns a snapshot of all nodes in the cluster, sorted by name.
// Listing is paginated to handle large clusters.
func (l *Lister) Nodes(ctx context.Context) ([]Node, error) {
	var nodes []Node
	continueToken := ""
	totalFetched := int64(0)

	for {
		list, err := l.Client.CoreV1().Nodes().List(ctx, metav1.ListOptions{
			Limit:    nodeListPageSize,
			Continue: continueToken,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to list nodes: %w", err)
		}

		for i := range list.Items {
			nodes = append(nodes, FromNode(&list.Items[i]))
		}
		totalFetched += int64(len(list.Items))

		slog.Debug("fetched nodes page",
			slog.Int("pageSize", len(list.Items)),
			slog.Int64("totalFetched", totalFetched),
			slog.Bool("hasMore", list.Continue != ""),
		)

		continueToken = list.Continue
		if continueToken == "" || totalFetched >= nodeListAbsoluteMax {
			break
		}
		if len(list.Items) == 0 {
			slog.Warn("received empty page with continue token, stopping pagination")
			break
		}
	}

	sort.Slice(nodes, func(i, j int) bool {
		return strings.ToLower(nodes[i].Name) < strings.ToLower(nodes[j].Name)
	})

	return nodes, nil
}

// WorkloadsOn returns the workloads scheduled on the named node, using a
// spec.nodeName field selector across all namespaces.
func (l *Lister) WorkloadsOn(ctx context.Context, nodeName string) ([]Workload, error) {
	list, err := l.Client.CoreV1().Pods(metav1.NamespaceAll).List(ctx, metav1.ListOptions{
		FieldSelector: "spec.nodeName=" + nodeName,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list pods on node %s: %w", nodeName, err)
	}

	workloads := make([]Workload, 0, len(list.Items))
	for i := range list.Items {
		// Guard client-side as well: fake clientsets used in tests do not
		// apply field selectors.
		if list.Items[i].Spec.NodeName != nodeName {
			continue
		}
		workloads = append(workloads, FromPod(&list.Items[i]))
	}

	return workloads, nil
}

// nodeIP retrieves the node address of the given type.
func nodeIP(node *v1.Node, ipType v1.NodeAddressType) string {
	for _, addr := range node.Status.Addresses {
		if addr.Type == ipType {
			return addr.Address
		}
	}
	return ""
}
