package probe

import (
	"context"
	"time"

	"github.com/chaosnative/chaos-runner/pkg/cerrors"
	"github.com/chaosnative/chaos-runner/pkg/log"
	"github.com/chaosnative/chaos-runner/pkg/metrics"
	"github.com/chaosnative/chaos-runner/pkg/probe/comparator"
	"github.com/chaosnative/chaos-runner/pkg/types"
	"github.com/chaosnative/chaos-runner/pkg/utils/retry"
	"github.com/sirupsen/logrus"
)

const (
	// DefaultProbeTimeout bounds a single measurement against the metrics collaborator
	DefaultProbeTimeout = 5 * time.Second
	// DefaultProbeRetries is the number of measurement attempts before failing closed
	DefaultProbeRetries = 1
)

// SteadyStateProber measures current system metrics through a metrics
// source and decides whether the system sits at its acceptable baseline.
type SteadyStateProber struct {
	source     metrics.Source
	timeout    time.Duration
	attempts   uint
	retryDelay time.Duration
}

// NewSteadyStateProber creates a prober over the given metric source.
// A non-positive timeout falls back to the default probe timeout.
func NewSteadyStateProber(source metrics.Source, timeout time.Duration, attempts uint, retryDelay time.Duration) *SteadyStateProber {
	if timeout <= 0 {
		timeout = DefaultProbeTimeout
	}
	if attempts == 0 {
		attempts = DefaultProbeRetries
	}
	return &SteadyStateProber{
		source:     source,
		timeout:    timeout,
		attempts:   attempts,
		retryDelay: retryDelay,
	}
}

// Measure fetches one current value for the named metric, bounded by the
// probe timeout per attempt. A timeout or empty response is a measurement
// failure; the prober never assumes a value.
func (p *SteadyStateProber) Measure(ctx context.Context, metric string) (types.MetricSample, error) {
	var sample types.MetricSample

	err := retry.
		Times(p.attempts).
		Wait(p.retryDelay).
		Try(func(attempt uint) error {
			probeCtx, cancel := context.WithTimeout(ctx, p.timeout)
			defer cancel()

			measured, err := p.source.Get(probeCtx, metric)
			if err != nil {
				log.Warnf("[Probe]: Measurement attempt %v for metric '%v' failed: %v", attempt+1, metric, err)
				return err
			}
			sample = measured
			return nil
		})
	if err != nil {
		return types.MetricSample{}, cerrors.Error{
			ErrorCode: cerrors.ErrorTypeMetricUnavailable,
			Target:    metric,
			Reason:    err.Error(),
		}
	}

	log.InfoWithValues("[Probe]: Collected metric sample", logrus.Fields{
		"Metric": sample.Name,
		"Value":  sample.Value,
	})
	return sample, nil
}

// IsSteady is a pure check of a sample against the hypothesis threshold;
// no side effects
func IsSteady(sample types.MetricSample, hypothesis types.Hypothesis) bool {
	return comparator.
		FirstValue(sample.Value).
		SecondValue(hypothesis.SteadyStateThreshold).
		Criteria(string(hypothesis.Comparison)).
		Matches()
}
