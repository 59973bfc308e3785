package metrics

import (
	"context"
	"sync"
	"time"

	"github.com/chaosnative/chaos-runner/pkg/cerrors"
	"github.com/chaosnative/chaos-runner/pkg/types"
)

// FakeSource is a scripted in-memory metric source for tests. Values fed for
// a metric are served in order; the last value sticks once exhausted.
type FakeSource struct {
	mu     sync.Mutex
	values map[string][]float64
	errs   map[string]error
	calls  map[string]int
}

// NewFakeSource creates an empty fake metric source
func NewFakeSource() *FakeSource {
	return &FakeSource{
		values: map[string][]float64{},
		errs:   map[string]error{},
		calls:  map[string]int{},
	}
}

// Feed appends scripted values for the metric
func (f *FakeSource) Feed(metric string, values ...float64) *FakeSource {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.values[metric] = append(f.values[metric], values...)
	return f
}

// FailWith makes every subsequent Get for the metric return err
func (f *FakeSource) FailWith(metric string, err error) *FakeSource {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.errs[metric] = err
	return f
}

// Calls reports how many times the metric has been fetched
func (f *FakeSource) Calls(metric string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[metric]
}

// Get serves the next scripted value for the metric
func (f *FakeSource) Get(ctx context.Context, metric string) (types.MetricSample, error) {
	if err := ctx.Err(); err != nil {
		return types.MetricSample{}, cerrors.Error{
			ErrorCode: cerrors.ErrorTypeTimeout,
			Target:    metric,
			Reason:    err.Error(),
		}
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[metric]++

	if err, ok := f.errs[metric]; ok {
		return types.MetricSample{}, err
	}
	queued, ok := f.values[metric]
	if !ok || len(queued) == 0 {
		return types.MetricSample{}, cerrors.Error{
			ErrorCode: cerrors.ErrorTypeMetricUnavailable,
			Target:    metric,
			Reason:    "no scripted value for metric",
		}
	}

	value := queued[0]
	if len(queued) > 1 {
		f.values[metric] = queued[1:]
	}
	return types.MetricSample{Name: metric, Value: value, Timestamp: time.Now()}, nil
}
