package probe

import (
	"github.com/chaosnative/chaos-runner/pkg/probe/comparator"
	"github.com/chaosnative/chaos-runner/pkg/types"
)

// EvaluateRollbackCondition is a stateless evaluation of the rollback
// predicate against one polling round, the latest sample per referenced
// metric. Evaluating the whole round at once keeps composite predicates
// spanning several metrics satisfiable. A leaf whose metric is missing from
// the round is false.
func EvaluateRollbackCondition(round map[string]types.MetricSample, predicate types.Predicate) bool {
	if predicate.IsZero() {
		return false
	}
	if len(predicate.All) > 0 {
		for _, child := range predicate.All {
			if !EvaluateRollbackCondition(round, child) {
				return false
			}
		}
		return true
	}
	if len(predicate.Any) > 0 {
		for _, child := range predicate.Any {
			if EvaluateRollbackCondition(round, child) {
				return true
			}
		}
		return false
	}
	sample, ok := round[predicate.Metric]
	if !ok {
		return false
	}
	return comparator.
		FirstValue(sample.Value).
		SecondValue(predicate.Value).
		Criteria(predicate.Criteria).
		Matches()
}
