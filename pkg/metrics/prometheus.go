package metrics

import (
	"context"
	"fmt"
	"time"

	"github.com/chaosnative/chaos-runner/pkg/cerrors"
	"github.com/chaosnative/chaos-runner/pkg/log"
	"github.com/chaosnative/chaos-runner/pkg/types"
	"github.com/prometheus/client_golang/api"
	promv1 "github.com/prometheus/client_golang/api/prometheus/v1"
	"github.com/prometheus/common/model"
)

// PromSource serves metric values by evaluating PromQL expressions against
// a prometheus endpoint. Each metric name is bound to one query.
type PromSource struct {
	api     promv1.API
	queries map[string]string
}

// NewPromSource creates a prometheus-backed metric source for the endpoint
func NewPromSource(address string) (*PromSource, error) {
	client, err := api.NewClient(api.Config{Address: address})
	if err != nil {
		return nil, cerrors.Error{
			ErrorCode: cerrors.ErrorTypeMetricUnavailable,
			Target:    address,
			Reason:    fmt.Sprintf("unable to create prometheus client: %v", err),
		}
	}
	return &PromSource{
		api:     promv1.NewAPI(client),
		queries: map[string]string{},
	}, nil
}

// WithQuery binds a metric name to the PromQL expression that computes it
func (p *PromSource) WithQuery(metric, query string) *PromSource {
	p.queries[metric] = query
	return p
}

// Get evaluates the query bound to the metric and returns the first scalar
// in its result. An empty result is a measurement failure, never zero.
func (p *PromSource) Get(ctx context.Context, metric string) (types.MetricSample, error) {
	query, ok := p.queries[metric]
	if !ok {
		return types.MetricSample{}, cerrors.Error{
			ErrorCode: cerrors.ErrorTypeMetricUnavailable,
			Target:    metric,
			Reason:    fmt.Sprintf("no query bound for metric '%s'", metric),
		}
	}

	value, warnings, err := p.api.Query(ctx, query, time.Now())
	if err != nil {
		return types.MetricSample{}, cerrors.Error{
			ErrorCode: cerrors.ErrorTypeMetricUnavailable,
			Target:    metric,
			Reason:    fmt.Sprintf("prometheus query failed: %v", err),
		}
	}
	if len(warnings) != 0 {
		log.Warnf("[Probe]: Prometheus query for '%v' returned warnings: %v", metric, warnings)
	}

	switch result := value.(type) {
	case model.Vector:
		if len(result) == 0 {
			return types.MetricSample{}, cerrors.Error{
				ErrorCode: cerrors.ErrorTypeMetricUnavailable,
				Target:    metric,
				Reason:    "prometheus query returned no data",
			}
		}
		return types.MetricSample{
			Name:      metric,
			Value:     float64(result[0].Value),
			Timestamp: result[0].Timestamp.Time(),
		}, nil
	case *model.Scalar:
		return types.MetricSample{
			Name:      metric,
			Value:     float64(result.Value),
			Timestamp: result.Timestamp.Time(),
		}, nil
	default:
		return types.MetricSample{}, cerrors.Error{
			ErrorCode: cerrors.ErrorTypeMetricUnavailable,
			Target:    metric,
			Reason:    fmt.Sprintf("prometheus query returned unsupported type %s", value.Type()),
		}
	}
}
