package selector

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/retisctl/arc/pkg/filter"
	"github.com/retisctl/arc/pkg/k8s/inventory"
)

func worker(name string) inventory.Node {
	return inventory.Node{
		Name:   name,
		Labels: map[string]string{"node-role.kubernetes.io/worker": ""},
	}
}

func controlPlane(name string) inventory.Node {
	return inventory.Node{
		Name:   name,
		Roles:  []string{"control-plane"},
		Labels: map[string]string{"node-role.kubernetes.io/control-plane": ""},
	}
}

func compile(t *testing.T, spec filter.Spec) *filter.Compiled {
	t.Helper()
	c, err := filter.Compile(spec)
	require.NoError(t, err)
	return c
}

func TestSelect_ExcludesControlPlane(t *testing.T) {
	nodes := []inventory.Node{
		controlPlane("master-0"),
		worker("worker-0"),
		controlPlane("master-1"),
		worker("worker-1"),
	}

	targets, err := Select(context.Background(), nodes, StaticWorkloads(nil), compile(t, filter.Spec{}))
	require.NoError(t, err)
	require.Len(t, targets, 2)
	assert.Equal(t, "worker-0", targets[0].Name)
	assert.Equal(t, "worker-1", targets[1].Name)
}

func TestSelect_ControlPlaneNeverMatchesEvenWithFilter(t *testing.T) {
	nodes := []inventory.Node{controlPlane("master-0"), worker("worker-0")}

	_, err := Select(context.Background(), nodes, StaticWorkloads(nil), compile(t, filter.Spec{NodeName: "master-*"}))
	var noMatch *NoMatchingNodesError
	require.True(t, errors.As(err, &noMatch))
}

func TestSelect_NameFilter(t *testing.T) {
	nodes := []inventory.Node{worker("worker-1"), worker("worker-20"), worker("worker-21")}

	targets, err := Select(context.Background(), nodes, StaticWorkloads(nil), compile(t, filter.Spec{NodeName: "worker-2*"}))
	require.NoError(t, err)
	require.Len(t, targets, 2)
	assert.Equal(t, "worker-20", targets[0].Name)
	assert.Equal(t, "worker-21", targets[1].Name)
}

func TestSelect_WorkloadFilter(t *testing.T) {
	nodes := []inventory.Node{worker("worker-0"), worker("worker-1")}
	workloads := []inventory.Workload{
		{Name: "ovnkube-node-x", Namespace: "openshift-ovn-kubernetes", Node: "worker-0"},
		{Name: "frontend-y", Namespace: "shop", Labels: map[string]string{"app": "frontend"}, Node: "worker-1"},
	}

	targets, err := Select(context.Background(), nodes, StaticWorkloads(workloads), compile(t, filter.Spec{Workload: "app=frontend"}))
	require.NoError(t, err)
	require.Len(t, targets, 1)
	assert.Equal(t, "worker-1", targets[0].Name)
}

func TestSelect_FiltersCombineWithAND(t *testing.T) {
	nodes := []inventory.Node{worker("worker-0"), worker("worker-1")}
	workloads := []inventory.Workload{
		{Name: "ovn-a", Namespace: "ovn", Node: "worker-0"},
		{Name: "ovn-b", Namespace: "ovn", Node: "worker-1"},
	}

	targets, err := Select(context.Background(), nodes, StaticWorkloads(workloads),
		compile(t, filter.Spec{NodeName: "worker-0", Workload: "ovn"}))
	require.NoError(t, err)
	require.Len(t, targets, 1)
	assert.Equal(t, "worker-0", targets[0].Name)
}

func TestSelect_WorkloadLookupOnlyForCandidates(t *testing.T) {
	nodes := []inventory.Node{controlPlane("master-0"), worker("worker-0"), worker("worker-1")}

	var looked []string
	lister := func(_ context.Context, nodeName string) ([]inventory.Workload, error) {
		looked = append(looked, nodeName)
		return []inventory.Workload{{Name: "ovn", Namespace: "ovn", Node: nodeName}}, nil
	}

	_, err := Select(context.Background(), nodes, lister, compile(t, filter.Spec{NodeName: "worker-0", Workload: "ovn"}))
	require.NoError(t, err)

	// Only the node that survived the role and name filters is inspected.
	assert.Equal(t, []string{"worker-0"}, looked)
}

func TestSelect_Deduplicates(t *testing.T) {
	nodes := []inventory.Node{worker("worker-0"), worker("worker-0"), worker("worker-1")}

	targets, err := Select(context.Background(), nodes, StaticWorkloads(nil), compile(t, filter.Spec{}))
	require.NoError(t, err)
	require.Len(t, targets, 2)
}

func TestSelect_EmptyResult(t *testing.T) {
	nodes := []inventory.Node{worker("worker-0")}

	_, err := Select(context.Background(), nodes, StaticWorkloads(nil), compile(t, filter.Spec{NodeName: "compute-*"}))
	var noMatch *NoMatchingNodesError
	require.True(t, errors.As(err, &noMatch))
	assert.Equal(t, 1, noMatch.Workers)
	assert.Contains(t, noMatch.Error(), "compute-*")
}

type fakeConfirmer struct {
	answer bool
	asked  int
}

func (f *fakeConfirmer) Confirm(string) (bool, error) {
	f.asked++
	return f.answer, nil
}

func TestGate(t *testing.T) {
	t.Run("filters present skip confirmation", func(t *testing.T) {
		c := &fakeConfirmer{}
		err := Gate(filter.Spec{NodeName: "worker-*"}, false, 3, c)
		require.NoError(t, err)
		assert.Zero(t, c.asked)
	})

	t.Run("dry-run skips confirmation", func(t *testing.T) {
		c := &fakeConfirmer{}
		err := Gate(filter.Spec{}, true, 3, c)
		require.NoError(t, err)
		assert.Zero(t, c.asked)
	})

	t.Run("live without filters requires confirmation", func(t *testing.T) {
		c := &fakeConfirmer{answer: true}
		err := Gate(filter.Spec{}, false, 3, c)
		require.NoError(t, err)
		assert.Equal(t, 1, c.asked)
	})

	t.Run("declined blocks the run", func(t *testing.T) {
		c := &fakeConfirmer{answer: false}
		err := Gate(filter.Spec{}, false, 3, c)
		assert.ErrorIs(t, err, ErrConfirmationDeclined)
	})

	t.Run("nil confirmer blocks the run", func(t *testing.T) {
		err := Gate(filter.Spec{}, false, 3, nil)
		assert.ErrorIs(t, err, ErrConfirmationDeclined)
	})
}

func TestPromptConfirmer(t *testing.T) {
	tests := []struct {
		input string
		want  bool
	}{
		{"y\n", true},
		{"yes\n", true},
		{"Y\n", true},
		{"n\n", false},
		{"\n", false},
		{"", false}, // EOF
	}

	for _, tt := range tests {
		var out strings.Builder
		p := &PromptConfirmer{In: strings.NewReader(tt.input), Out: &out}
		got, err := p.Confirm("continue? ")
		require.NoError(t, err)
		assert.Equal(t, tt.want, got, "input %q", tt.input)
		assert.Equal(t, "continue? ", out.String())
	}
}
