package inventory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	v1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/client-go/kubernetes/fake"
)

func makeNode(name string, labels map[string]string) *v1.Node {
	return &v1.Node{
		ObjectMeta: metav1.ObjectMeta{Name: name, Labels: labels},
		Status: v1.NodeStatus{
			Addresses: []v1.NodeAddress{
				{Type: v1.NodeInternalIP, Address: "10.0.0.1"},
			},
		},
	}
}

func makePod(name, namespace, node string, labels map[string]string) *v1.Pod {
	return &v1.Pod{
		ObjectMeta: metav1.ObjectMeta{Name: name, Namespace: namespace, Labels: labels},
		Spec:       v1.PodSpec{NodeName: node},
	}
}

func TestNodeIsWorker(t *testing.T) {
	tests := []struct {
		name   string
		labels map[string]string
		want   bool
	}{
		{"explicit worker", map[string]string{"node-role.kubernetes.io/worker": ""}, true},
		{"control-plane", map[string]string{"node-role.kubernetes.io/control-plane": ""}, false},
		{"master", map[string]string{"node-role.kubernetes.io/master": ""}, false},
		{"no role labels counts as worker", map[string]string{"kubernetes.io/os": "linux"}, true},
		{"worker and control-plane", map[string]string{
			"node-role.kubernetes.io/worker":        "",
			"node-role.kubernetes.io/control-plane": "",
		}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			n := FromNode(makeNode("n1", tt.labels))
			assert.Equal(t, tt.want, n.IsWorker())
		})
	}
}

func TestNodeShortName(t *testing.T) {
	assert.Equal(t, "worker-0", Node{Name: "worker-0.example.internal"}.ShortName())
	assert.Equal(t, "worker-0", Node{Name: "worker-0"}.ShortName())
}

func TestFromNode(t *testing.T) {
	n := FromNode(makeNode("worker-0", map[string]string{
		"node-role.kubernetes.io/worker": "",
		"node-role.kubernetes.io/infra":  "",
	}))

	assert.Equal(t, "worker-0", n.Name)
	assert.Equal(t, []string{"infra", "worker"}, n.Roles)
	assert.Equal(t, "10.0.0.1", n.IP)
}

func TestListerNodes(t *testing.T) {
	clientset := fake.NewClientset(
		makeNode("worker-1", nil),
		makeNode("worker-0", nil),
		makeNode("master-0", map[string]string{"node-role.kubernetes.io/master": ""}),
	)

	lister := &Lister{Client: clientset}
	nodes, err := lister.Nodes(context.Background())
	require.NoError(t, err)
	require.Len(t, nodes, 3)

	// Sorted by name.
	assert.Equal(t, "master-0", nodes[0].Name)
	assert.Equal(t, "worker-0", nodes[1].Name)
	assert.Equal(t, "worker-1", nodes[2].Name)
}

func TestListerWorkloadsOn(t *testing.T) {
	clientset := fake.NewClientset(
		makePod("ovnkube-node-abc", "openshift-ovn-kubernetes", "worker-0", map[string]string{"app": "ovnkube-node"}),
		makePod("frontend-xyz", "shop", "worker-1", map[string]string{"app": "frontend"}),
	)

	lister := &Lister{Client: clientset}
	workloads, err := lister.WorkloadsOn(context.Background(), "worker-0")
	require.NoError(t, err)
	require.Len(t, workloads, 1)

	assert.Equal(t, "ovnkube-node-abc", workloads[0].Name)
	assert.Equal(t, "openshift-ovn-kubernetes", workloads[0].Namespace)
	assert.Equal(t, "worker-0", workloads[0].Node)
}
