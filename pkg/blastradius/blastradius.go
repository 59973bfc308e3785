package blastradius

import (
	"sort"

	"github.com/chaosnative/chaos-runner/pkg/cerrors"
	"github.com/chaosnative/chaos-runner/pkg/log"
	"github.com/chaosnative/chaos-runner/pkg/math"
	"github.com/chaosnative/chaos-runner/pkg/types"
	"github.com/sirupsen/logrus"
)

// SelectTargets restricts the eligible population to the blast radius.
// count = ceil(len(eligible) * percentage / 100), clipped to [1, len(eligible)].
// Selection is deterministic, stable sort by target id and take the first
// count, so repeated experiments against an unchanged population stay
// reproducible for audit. An empty population is an error, silently
// skipping an experiment would produce a false "success".
func SelectTargets(eligible []string, spec types.BlastRadiusSpec) ([]string, error) {
	if err := spec.Validate(); err != nil {
		return nil, cerrors.Error{
			ErrorCode: cerrors.ErrorTypeTargetSelection,
			Reason:    err.Error(),
		}
	}
	if len(eligible) == 0 {
		return nil, cerrors.Error{
			ErrorCode: cerrors.ErrorTypeEmptyPopulation,
			Reason:    "no eligible targets in the population",
		}
	}

	sorted := append([]string(nil), eligible...)
	sort.Strings(sorted)

	count := math.Adjustment(len(sorted), spec.Percentage)
	count = math.Maximum(count, 1)
	count = math.Minimum(count, len(sorted))

	selected := sorted[:count]
	log.InfoWithValues("[BlastRadius]: Restricted the target population", logrus.Fields{
		"Eligible":   len(eligible),
		"Percentage": spec.Percentage,
		"Selected":   len(selected),
	})
	return selected, nil
}
