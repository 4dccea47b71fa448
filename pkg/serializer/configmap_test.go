package serializer

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/client-go/kubernetes/fake"
	"k8s.io/client-go/rest"

	"github.com/retisctl/arc/pkg/k8s/client"
)

func TestParseConfigMapURI(t *testing.T) {
	tests := []struct {
		name          string
		uri           string
		wantNamespace string
		wantName      string
		wantErr       bool
	}{
		{
			name:          "valid URI",
			uri:           "cm://diag/arc-report",
			wantNamespace: "diag",
			wantName:      "arc-report",
		},
		{
			name:          "valid URI with spaces",
			uri:           "cm://diag / arc-report ",
			wantNamespace: "diag",
			wantName:      "arc-report",
		},
		{name: "missing scheme", uri: "diag/arc-report", wantErr: true},
		{name: "wrong scheme", uri: "http://diag/arc-report", wantErr: true},
		{name: "missing name", uri: "cm://diag/", wantErr: true},
		{name: "missing namespace", uri: "cm:///arc-report", wantErr: true},
		{name: "missing separator", uri: "cm://diag", wantErr: true},
		{name: "empty URI", uri: "", wantErr: true},
		{name: "only scheme", uri: "cm://", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			namespace, name, err := parseConfigMapURI(tt.uri)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantNamespace, namespace)
			assert.Equal(t, tt.wantName, name)
		})
	}
}

func TestNewConfigMapWriterDefaultsUnknownFormat(t *testing.T) {
	w := NewConfigMapWriter("diag", "arc-report", Format("unknown"))
	assert.Equal(t, FormatJSON, w.format)
}

func TestConfigMapWriterSerialize(t *testing.T) {
	clientset := fake.NewClientset()
	getClient = func() (client.Interface, *rest.Config, error) {
		return clientset, &rest.Config{}, nil
	}
	t.Cleanup(func() { getClient = client.GetKubeClient })

	w := NewConfigMapWriter("diag", "arc-report", FormatJSON)
	err := w.Serialize(context.Background(), map[string]string{"node": "worker-0"})
	require.NoError(t, err)

	cm, err := clientset.CoreV1().ConfigMaps("diag").Get(context.Background(), "arc-report", metav1.GetOptions{})
	require.NoError(t, err)
	assert.JSONEq(t, `{"node":"worker-0"}`, cm.Data["report.json"])
	assert.Equal(t, "json", cm.Data["format"])
	assert.NotEmpty(t, cm.Data["timestamp"])
	assert.Equal(t, "arc", cm.Labels["app.kubernetes.io/name"])
}
