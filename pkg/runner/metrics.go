package runner

import (
	"fmt"
	"io"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/common/expfmt"
)

var (
	// Run fan-out metrics
	runDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "arc_run_duration_seconds",
			Help:    "Time taken to complete a full fan-out run",
			Buckets: []float64{1, 5, 10, 30, 60, 120, 300, 600},
		},
	)

	nodeOperationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "arc_node_operation_duration_seconds",
			Help:    "Time taken by a single node operation",
			Buckets: []float64{0.5, 1, 5, 10, 30, 60, 120, 300},
		},
		[]string{"operation"},
	)

	nodeOperationTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "arc_node_operations_total",
			Help: "Total number of per-node operation attempts",
		},
		[]string{"operation", "status"},
	)

	runTargetCount = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "arc_run_targets",
			Help: "Number of target nodes in the last run",
		},
	)
)

// WriteMetrics dumps the gathered run metrics to w in the Prometheus text
// exposition format. The process is short-lived, so instead of serving a
// scrape endpoint the metrics are flushed once at the end of the run.
func WriteMetrics(w io.Writer) error {
	families, err := prometheus.DefaultGatherer.Gather()
	if err != nil {
		return fmt.Errorf("failed to gather metrics: %w", err)
	}

	enc := expfmt.NewEncoder(w, expfmt.NewFormat(expfmt.TypeTextPlain))
	for _, mf := range families {
		if err := enc.Encode(mf); err != nil {
			return fmt.Errorf("failed to encode metric family %s: %w", mf.GetName(), err)
		}
	}

	return nil
}
