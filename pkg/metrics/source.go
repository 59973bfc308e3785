package metrics

import (
	"context"
	"fmt"
	"sync"

	"github.com/chaosnative/chaos-runner/pkg/cerrors"
	"github.com/chaosnative/chaos-runner/pkg/types"
)

// Source fetches one current value for a named metric. Implementations must
// honour ctx cancellation; a timeout is a call failure, never "unknown".
type Source interface {
	Get(ctx context.Context, metric string) (types.MetricSample, error)
}

// Registry maps metric names to their data sources. A hypothesis is only
// accepted when every metric it references resolves here.
type Registry struct {
	mu      sync.RWMutex
	sources map[string]Source
}

// NewRegistry creates an empty metric registry
func NewRegistry() *Registry {
	return &Registry{sources: map[string]Source{}}
}

// Register binds a metric name to the source that serves it
func (r *Registry) Register(metric string, source Source) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sources[metric] = source
}

// Has reports whether a data source is registered for the metric
func (r *Registry) Has(metric string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.sources[metric]
	return ok
}

// Get dispatches to the registered source for the metric
func (r *Registry) Get(ctx context.Context, metric string) (types.MetricSample, error) {
	r.mu.RLock()
	source, ok := r.sources[metric]
	r.mu.RUnlock()
	if !ok {
		return types.MetricSample{}, cerrors.Error{
			ErrorCode: cerrors.ErrorTypeMetricUnavailable,
			Target:    metric,
			Reason:    fmt.Sprintf("no data source registered for metric '%s'", metric),
		}
	}
	return source.Get(ctx, metric)
}
