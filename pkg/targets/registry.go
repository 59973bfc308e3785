package targets

import (
	"context"
	"sort"
	"strings"
)

// Registry supplies the eligible population an experiment may draw targets
// from. Implementations live outside the runner core; the runner only sees
// the returned identifiers.
type Registry interface {
	ListEligible(ctx context.Context, selector string) ([]string, error)
}

// StaticRegistry serves a fixed target list, used for operator-supplied
// populations and in tests. A non-empty selector filters by prefix.
type StaticRegistry struct {
	targets []string
}

// NewStaticRegistry creates a registry over a fixed population
func NewStaticRegistry(targets ...string) *StaticRegistry {
	owned := append([]string(nil), targets...)
	sort.Strings(owned)
	return &StaticRegistry{targets: owned}
}

// ListEligible returns the configured population
func (r *StaticRegistry) ListEligible(ctx context.Context, selector string) ([]string, error) {
	if selector == "" {
		return append([]string(nil), r.targets...), nil
	}
	var eligible []string
	for _, target := range r.targets {
		if strings.HasPrefix(target, selector) {
			eligible = append(eligible, target)
		}
	}
	return eligible, nil
}
