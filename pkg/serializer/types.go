// Package serializer renders run reports and node outcomes to JSON, YAML,
// or a human-readable table, writing to stdout, a file, or a Kubernetes
// ConfigMap (cm://namespace/name).
package serializer

import "context"

// Serializer renders a value to the configured destination.
type Serializer interface {
	Serialize(ctx context.Context, v any) error
}

// Closer is implemented by serializers that hold resources such as file
// handles.
type Closer interface {
	Close() error
}

// Tabular is implemented by values that know their own table layout. The
// table format uses it instead of generic field flattening.
type Tabular interface {
	TableHeader() []string
	TableRows() [][]string
}
