package runner

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/chaosnative/chaos-runner/pkg/log"
	"github.com/chaosnative/chaos-runner/pkg/probe"
	"github.com/chaosnative/chaos-runner/pkg/types"
)

// monitor samples every hypothesis metric at the poll interval until the
// monitored duration elapses, the rollback condition fires, a measurement
// fails, or the caller cancels. Whatever ends monitoring, the pending
// rollback in injectAndMonitor still runs.
func (r *Runner) monitor(ctx context.Context, run *experimentRun, hypothesis types.Hypothesis, duration time.Duration) {
	watched := hypothesis.Metrics()

	deadline := time.NewTimer(duration)
	defer deadline.Stop()
	ticker := time.NewTicker(r.settings.PollInterval)
	defer ticker.Stop()

	log.InfoWithValues("[Monitor]: Watching hypothesis metrics", map[string]interface{}{
		"Metrics":      watched,
		"PollInterval": r.settings.PollInterval,
		"Duration":     duration,
	})

	for {
		select {
		case <-ctx.Done():
			run.cancelled = true
			run.recorder.Record(types.ChaosMonitor, fmt.Sprintf("monitoring interrupted: %v", ctx.Err()))
			return
		case <-deadline.C:
			run.recorder.Record(types.ChaosMonitor, "monitored duration elapsed")
			return
		case <-ticker.C:
			if stop := r.collectSamples(ctx, run, hypothesis, watched); stop {
				return
			}
		}
	}
}

// collectSamples takes one poll round over the watched metrics and reports
// whether monitoring should stop. The rollback condition is evaluated once
// per round against the full sample set, so composite predicates spanning
// several metrics can fire. An unavailable metric fails closed: the
// experiment cannot claim the hypothesis held over an interval it could
// not observe.
func (r *Runner) collectSamples(ctx context.Context, run *experimentRun, hypothesis types.Hypothesis, watched []string) bool {
	round := make(map[string]types.MetricSample, len(watched))
	for _, metric := range watched {
		sample, err := r.prober.Measure(ctx, metric)
		if err != nil {
			if ctx.Err() != nil {
				run.cancelled = true
				run.recorder.Record(types.ChaosMonitor, fmt.Sprintf("monitoring interrupted: %v", ctx.Err()))
				return true
			}
			run.fail(fmt.Sprintf("metric '%s' unavailable during monitoring: %v", metric, err))
			run.recorder.Record(types.ChaosMonitor, fmt.Sprintf("metric '%s' unavailable, stopping monitoring", metric))
			return true
		}
		run.samples = append(run.samples, sample)
		round[sample.Name] = sample

		if metric == hypothesis.SteadyStateMetric && !probe.IsSteady(sample, hypothesis) {
			run.steadyViolated = true
			log.Warnf("[Monitor]: Steady state violated, %v measured %v", sample.Name, sample.Value)
		}
	}

	if probe.EvaluateRollbackCondition(round, hypothesis.RollbackCondition) {
		run.rollbackTriggered = true
		run.recorder.Record(types.ChaosMonitor, fmt.Sprintf("rollback condition satisfied by %s, stopping monitoring", describeRound(round)))
		return true
	}
	return false
}

func describeRound(round map[string]types.MetricSample) string {
	parts := make([]string, 0, len(round))
	for name, sample := range round {
		parts = append(parts, fmt.Sprintf("%s=%v", name, sample.Value))
	}
	sort.Strings(parts)
	return strings.Join(parts, ", ")
}
