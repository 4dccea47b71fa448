// Package filter implements the pure node and workload predicates used to
// narrow the collection target set. Name patterns are shell-style globs
// matched case-sensitively against the full node name; workload patterns are
// regular expressions tested against pod name, namespace, and key=value
// label pairs.
package filter

import (
	"fmt"
	"path"
	"regexp"

	"github.com/retisctl/arc/pkg/k8s/inventory"
)

// Spec holds the optional node and workload patterns for a run. Both are
// independently optional; when both are set they combine with logical AND.
type Spec struct {
	// NodeName is a glob pattern (*, ?, [...]) matched against the full
	// node name. Empty matches every node.
	NodeName string
	// Workload is a regular expression matched against the name, namespace,
	// and key=value label pairs of every workload on a node. Empty matches
	// every node.
	Workload string
}

// Empty reports whether no pattern was supplied, which triggers the
// all-workers confirmation gate in live mode.
func (s Spec) Empty() bool {
	return s.NodeName == "" && s.Workload == ""
}

// SyntaxError reports a malformed glob or regular expression. It is raised
// during validation, before any cluster interaction.
type SyntaxError struct {
	// Kind is "node" or "workload".
	Kind string
	// Pattern is the offending pattern.
	Pattern string
	// Err is the underlying parse error.
	Err error
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("invalid %s filter pattern %q: %v", e.Kind, e.Pattern, e.Err)
}

func (e *SyntaxError) Unwrap() error { return e.Err }

// Compiled is a validated Spec ready for matching.
type Compiled struct {
	spec     Spec
	workload *regexp.Regexp
}

// Compile validates the patterns in the Spec, failing fast with a
// *SyntaxError on the first malformed one.
func Compile(spec Spec) (*Compiled, error) {
	if spec.NodeName != "" {
		if _, err := path.Match(spec.NodeName, ""); err != nil {
			return nil, &SyntaxError{Kind: "node", Pattern: spec.NodeName, Err: err}
		}
	}

	c := &Compiled{spec: spec}

	if spec.Workload != "" {
		// Case-insensitive, matching the collection tool's established
		// workload filter behavior.
		re, err := regexp.Compile("(?i)" + spec.Workload)
		if err != nil {
			return nil, &SyntaxError{Kind: "workload", Pattern: spec.Workload, Err: err}
		}
		c.workload = re
	}

	return c, nil
}

// Spec returns the spec this Compiled was built from.
func (c *Compiled) Spec() Spec { return c.spec }

// MatchesName reports whether the node name matches the glob pattern.
// An absent pattern matches everything.
func (c *Compiled) MatchesName(node inventory.Node) bool {
	if c.spec.NodeName == "" {
		return true
	}
	// Pattern already validated in Compile.
	ok, _ := path.Match(c.spec.NodeName, node.Name)
	return ok
}

// MatchesWorkload reports whether any of the given workloads matches the
// workload pattern on its name, namespace, or any key=value label pair.
// An absent pattern matches everything.
func (c *Compiled) MatchesWorkload(workloads []inventory.Workload) bool {
	if c.workload == nil {
		return true
	}

	for _, w := range workloads {
		if c.workload.MatchString(w.Name) || c.workload.MatchString(w.Namespace) {
			return true
		}
		for k, v := range w.Labels {
			if c.workload.MatchString(k + "=" + v) {
				return true
			}
		}
	}

	return false
}
