package serializer

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	accorev1 "k8s.io/client-go/applyconfigurations/core/v1"

	"github.com/retisctl/arc/pkg/k8s/client"
)

// ConfigMapURIScheme is the output path prefix selecting ConfigMap output.
const ConfigMapURIScheme = "cm://"

const configMapWriteTimeout = 30 * time.Second

// fieldManager identifies this tool to Server-Side Apply.
const fieldManager = "arc"

// getClient is swapped out in tests.
var getClient = client.GetKubeClient

// ConfigMapWriter publishes the serialized run report into a Kubernetes
// ConfigMap, created on first write and updated in place afterwards.
type ConfigMapWriter struct {
	namespace string
	name      string
	format    Format
}

// NewConfigMapWriter creates a ConfigMapWriter targeting the given namespace
// and name.
func NewConfigMapWriter(namespace, name string, format Format) *ConfigMapWriter {
	if format.IsUnknown() {
		slog.Warn("unknown format, defaulting to JSON", "format", format)
		format = FormatJSON
	}
	return &ConfigMapWriter{
		namespace: namespace,
		name:      name,
		format:    format,
	}
}

// Serialize writes v to the ConfigMap. The ConfigMap data carries:
//   - report.{json|yaml|txt}: the serialized report
//   - format: the format used
//   - timestamp: RFC 3339 write time
func (w *ConfigMapWriter) Serialize(ctx context.Context, v any) error {
	writeCtx, cancel := context.WithTimeout(ctx, configMapWriteTimeout)
	defer cancel()

	kube, _, err := getClient()
	if err != nil {
		return fmt.Errorf("failed to get kubernetes client: %w", err)
	}

	content, extension, err := encode(w.format, v)
	if err != nil {
		return fmt.Errorf("failed to serialize report: %w", err)
	}

	data := map[string]string{
		"report." + extension: string(content),
		"format":              string(w.format),
		"timestamp":           time.Now().UTC().Format(time.RFC3339),
	}

	configMap := accorev1.ConfigMap(w.name, w.namespace).
		WithLabels(map[string]string{
			"app.kubernetes.io/name": "arc",
		}).
		WithData(data)

	slog.Info("applying ConfigMap",
		"namespace", w.namespace, "name", w.name, "format", w.format)

	// Server-Side Apply gives an atomic create-or-update; Force takes
	// ownership from any previous field manager.
	_, err = kube.CoreV1().ConfigMaps(w.namespace).Apply(
		writeCtx,
		configMap,
		metav1.ApplyOptions{
			FieldManager: fieldManager,
			Force:        true,
		},
	)
	if err != nil {
		return fmt.Errorf("failed to apply ConfigMap: %w", err)
	}

	return nil
}

// Close satisfies Closer; the ConfigMap writer holds no resources.
func (w *ConfigMapWriter) Close() error {
	return nil
}

// parseConfigMapURI parses cm://namespace/name into its components.
func parseConfigMapURI(uri string) (namespace, name string, err error) {
	if !strings.HasPrefix(uri, ConfigMapURIScheme) {
		return "", "", fmt.Errorf("invalid ConfigMap URI: must start with %s", ConfigMapURIScheme)
	}

	path := strings.TrimPrefix(uri, ConfigMapURIScheme)

	parts := strings.SplitN(path, "/", 2)
	if len(parts) != 2 {
		return "", "", fmt.Errorf("invalid ConfigMap URI format: expected %snamespace/name, got %s", ConfigMapURIScheme, uri)
	}

	namespace = strings.TrimSpace(parts[0])
	name = strings.TrimSpace(parts[1])

	if namespace == "" {
		return "", "", fmt.Errorf("invalid ConfigMap URI: namespace cannot be empty")
	}
	if name == "" {
		return "", "", fmt.Errorf("invalid ConfigMap URI: name cannot be empty")
	}

	return namespace, name, nil
}
