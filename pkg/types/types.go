package types

import (
	"fmt"
	"os"
	"time"
)

const (
	// SteadyStateCheck marks the baseline verification stage of the experiment
	SteadyStateCheck string = "SteadyStateCheck"
	// ChaosInject this stage refers to the main chaos injection
	ChaosInject string = "ChaosInject"
	// ChaosMonitor marks the polling window while chaos is live
	ChaosMonitor string = "ChaosMonitor"
	// ChaosRevert marks the reversal of every applied chaos action
	ChaosRevert string = "ChaosRevert"
	// Summary final stage of experiment, update the verdict
	Summary string = "Summary"
	// AwaitedVerdict marked the start of the experiment
	AwaitedVerdict string = "Awaited"
	// PassVerdict marked the verdict as passed in the end of experiment
	PassVerdict string = "Pass"
	// FailVerdict marked the verdict as failed in the end of experiment
	FailVerdict string = "Fail"
	// AbortVerdict marked the verdict as abort when experiment aborted
	AbortVerdict string = "Abort"
)

// RunState is the lifecycle state of a single experiment execution.
// Transitions are strictly linear; a run never re-enters an earlier state.
type RunState string

const (
	StatePending              RunState = "Pending"
	StateVerifyingSteadyState RunState = "VerifyingSteadyState"
	StateInjecting            RunState = "Injecting"
	StateMonitoring           RunState = "Monitoring"
	StateRollingBack          RunState = "RollingBack"
	StateCompleted            RunState = "Completed"
	StateAborted              RunState = "Aborted"
)

// MetricSample is a timestamped scalar measurement for a named metric
type MetricSample struct {
	Name      string    `json:"name"`
	Value     float64   `json:"value"`
	Timestamp time.Time `json:"timestamp"`
}

// Comparison is the direction of "acceptable" for a steady-state threshold
type Comparison string

const (
	LessOrEqual    Comparison = "<="
	GreaterOrEqual Comparison = ">="
)

// Predicate is a serializable boolean expression over metric samples.
// A leaf carries (Metric, Criteria, Value); composites combine children
// with All (AND) or Any (OR). Predicates are data, never code, so
// experiment definitions stay storable and auditable.
type Predicate struct {
	Metric   string      `yaml:"metric,omitempty" json:"metric,omitempty"`
	Criteria string      `yaml:"criteria,omitempty" json:"criteria,omitempty"`
	Value    float64     `yaml:"value,omitempty" json:"value,omitempty"`
	All      []Predicate `yaml:"all,omitempty" json:"all,omitempty"`
	Any      []Predicate `yaml:"any,omitempty" json:"any,omitempty"`
}

// IsZero reports whether the predicate is empty, an empty predicate never fires
func (p Predicate) IsZero() bool {
	return p.Metric == "" && p.Criteria == "" && len(p.All) == 0 && len(p.Any) == 0
}

// IsLeaf reports whether the predicate is a single condition
func (p Predicate) IsLeaf() bool {
	return len(p.All) == 0 && len(p.Any) == 0
}

// Metrics returns the distinct metric names referenced anywhere in the tree
func (p Predicate) Metrics() []string {
	seen := map[string]bool{}
	var names []string
	p.walk(func(leaf Predicate) {
		if leaf.Metric != "" && !seen[leaf.Metric] {
			seen[leaf.Metric] = true
			names = append(names, leaf.Metric)
		}
	})
	return names
}

func (p Predicate) walk(visit func(leaf Predicate)) {
	if p.IsLeaf() {
		visit(p)
		return
	}
	for _, child := range p.All {
		child.walk(visit)
	}
	for _, child := range p.Any {
		child.walk(visit)
	}
}

// Validate checks the predicate is well formed: a node is either a leaf
// with a supported criteria or a composite, never both
func (p Predicate) Validate() error {
	if p.IsZero() {
		return nil
	}
	if len(p.All) > 0 && len(p.Any) > 0 {
		return fmt.Errorf("predicate node mixes 'all' and 'any'")
	}
	if !p.IsLeaf() {
		if p.Metric != "" || p.Criteria != "" {
			return fmt.Errorf("composite predicate node carries leaf fields")
		}
		children := append(append([]Predicate{}, p.All...), p.Any...)
		for _, child := range children {
			if child.IsZero() {
				return fmt.Errorf("empty child in composite predicate")
			}
			if err := child.Validate(); err != nil {
				return err
			}
		}
		return nil
	}
	if p.Metric == "" {
		return fmt.Errorf("predicate leaf has no metric name")
	}
	switch p.Criteria {
	case ">=", "<=", ">", "<", "==", "!=":
		return nil
	default:
		return fmt.Errorf("criteria '%s' not supported in the rollback condition", p.Criteria)
	}
}

// Hypothesis defines "normal" for the system under test and the safety
// condition that mandates immediate rollback
type Hypothesis struct {
	SteadyStateMetric    string     `yaml:"metric" json:"metric"`
	SteadyStateThreshold float64    `yaml:"threshold" json:"threshold"`
	Comparison           Comparison `yaml:"comparison" json:"comparison"`
	RollbackCondition    Predicate  `yaml:"rollbackWhen,omitempty" json:"rollbackWhen,omitempty"`
	ExpectedOutcome      string     `yaml:"expectedOutcome,omitempty" json:"expectedOutcome,omitempty"`
}

// Validate checks the hypothesis is well formed before any side effect
func (h Hypothesis) Validate() error {
	if h.SteadyStateMetric == "" {
		return fmt.Errorf("hypothesis has no steady-state metric")
	}
	switch h.Comparison {
	case LessOrEqual, GreaterOrEqual:
	default:
		return fmt.Errorf("comparison '%s' not supported in the hypothesis", h.Comparison)
	}
	return h.RollbackCondition.Validate()
}

// Metrics returns the steady-state metric followed by every other metric
// referenced by the rollback condition, without duplicates
func (h Hypothesis) Metrics() []string {
	names := []string{h.SteadyStateMetric}
	for _, name := range h.RollbackCondition.Metrics() {
		if name != h.SteadyStateMetric {
			names = append(names, name)
		}
	}
	return names
}

// ExperimentStep is a single opaque chaos action, immutable once submitted
type ExperimentStep struct {
	Action     string            `yaml:"action" json:"action"`
	Target     string            `yaml:"target,omitempty" json:"target,omitempty"`
	Parameters map[string]string `yaml:"parameters,omitempty" json:"parameters,omitempty"`
}

// BlastRadiusSpec bounds the fraction of the eligible population an
// experiment may touch
type BlastRadiusSpec struct {
	Percentage int `yaml:"percentage" json:"percentage"`
}

// Validate checks the percentage lies in (0,100]
func (b BlastRadiusSpec) Validate() error {
	if b.Percentage <= 0 || b.Percentage > 100 {
		return fmt.Errorf("blast radius percentage %d outside (0,100]", b.Percentage)
	}
	return nil
}

// Getenv fetch the env and set the default value, if env contains empty value
func Getenv(key string, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		value = defaultValue
	}
	return value
}
