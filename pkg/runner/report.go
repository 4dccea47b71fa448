package runner

import (
	"time"

	"github.com/retisctl/arc/pkg/controller"
)

// Report aggregates one run's per-node outcomes for serialization.
type Report struct {
	// Operation is the operation that was fanned out.
	Operation controller.Operation `json:"operation" yaml:"operation"`
	// Targets is the number of nodes in the target set.
	Targets int `json:"targets" yaml:"targets"`
	// Succeeded counts outcomes with status succeeded.
	Succeeded int `json:"succeeded" yaml:"succeeded"`
	// Failed counts outcomes with status failed.
	Failed int `json:"failed" yaml:"failed"`
	// Skipped counts dry-run outcomes.
	Skipped int `json:"skipped,omitempty" yaml:"skipped,omitempty"`
	// Duration is the wall-clock run duration.
	Duration string `json:"duration" yaml:"duration"`
	// Outcomes lists the per-node results in target-set order.
	Outcomes []controller.NodeOutcome `json:"outcomes" yaml:"outcomes"`
}

// BuildReport tallies the outcomes into a report.
func BuildReport(op controller.Operation, outcomes []controller.NodeOutcome, duration time.Duration) Report {
	r := Report{
		Operation: op,
		Targets:   len(outcomes),
		Duration:  duration.Round(time.Millisecond).String(),
		Outcomes:  outcomes,
	}
	for _, o := range outcomes {
		switch o.Status {
		case controller.StatusSucceeded:
			r.Succeeded++
		case controller.StatusFailed:
			r.Failed++
		case controller.StatusSkippedDryRun:
			r.Skipped++
		}
	}
	return r
}

// HasFailures reports whether any node failed; the process exit status keys
// off this.
func (r Report) HasFailures() bool { return r.Failed > 0 }

// TableHeader returns the column names for table output.
func (r Report) TableHeader() []string {
	return []string{"node", "operation", "status", "detail"}
}

// TableRows returns one row per node outcome, in target-set order.
func (r Report) TableRows() [][]string {
	rows := make([][]string, 0, len(r.Outcomes))
	for _, o := range r.Outcomes {
		detail := o.Detail
		if o.Artifact != "" {
			detail = o.Artifact
		}
		rows = append(rows, []string{o.Node, string(o.Operation), string(o.Status), detail})
	}
	return rows
}
