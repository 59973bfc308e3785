package runner_test

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/chaosnative/chaos-runner/pkg/actuator"
	"github.com/chaosnative/chaos-runner/pkg/environment"
	"github.com/chaosnative/chaos-runner/pkg/metrics"
	"github.com/chaosnative/chaos-runner/pkg/runner"
	"github.com/chaosnative/chaos-runner/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testSettings() environment.Settings {
	return environment.Settings{
		ProbeTimeout:    time.Second,
		ProbeRetries:    1,
		ProbeRetryDelay: time.Millisecond,
		ActuatorTimeout: time.Second,
		PollInterval:    10 * time.Millisecond,
	}
}

func errorRateHypothesis() types.Hypothesis {
	return types.Hypothesis{
		SteadyStateMetric:    "error_rate",
		SteadyStateThreshold: 0.1,
		Comparison:           types.LessOrEqual,
		RollbackCondition: types.Predicate{
			Metric:   "error_rate",
			Criteria: ">=",
			Value:    0.5,
		},
		ExpectedOutcome: "error rate stays within SLO while one instance is down",
	}
}

func newTestRunner(source metrics.Source, act actuator.ChaosActuator, metricNames ...string) *runner.Runner {
	registry := metrics.NewRegistry()
	for _, name := range metricNames {
		registry.Register(name, source)
	}
	return runner.New(registry, act, testSettings())
}

func TestRunSteadyBaselineProceedsToInjection(t *testing.T) {
	source := metrics.NewFakeSource().Feed("error_rate", 0.05)
	act := actuator.NewFakeActuator()
	r := newTestRunner(source, act, "error_rate")

	res := r.Run(context.Background(), errorRateHypothesis(),
		[]types.ExperimentStep{{Action: "stop-instance"}},
		types.BlastRadiusSpec{Percentage: 50},
		50*time.Millisecond,
		[]string{"i-1", "i-2", "i-3", "i-4"})

	require.True(t, res.Success, "failure reason: %s", res.FailureReason)
	assert.Equal(t, types.PassVerdict, res.Verdict)
	assert.Equal(t, types.StateCompleted, res.FinalState)
	assert.False(t, res.RollbackTriggered)
	require.Len(t, res.Baseline, 1)
	assert.Equal(t, 0.05, res.Baseline[0].Value)

	// 50% of 4 eligible targets, deterministic lexicographic pick
	applied := act.Applied()
	require.Len(t, applied, 2)
	assert.Equal(t, "i-1", applied[0].Target)
	assert.Equal(t, "i-2", applied[1].Target)
	assert.Len(t, act.Reverted(), 2)
}

func TestRunUnsteadyBaselineAbortsWithoutInjection(t *testing.T) {
	source := metrics.NewFakeSource().Feed("error_rate", 0.5)
	act := actuator.NewFakeActuator()
	r := newTestRunner(source, act, "error_rate")

	res := r.Run(context.Background(), errorRateHypothesis(),
		[]types.ExperimentStep{{Action: "stop-instance", Target: "i-1"}},
		types.BlastRadiusSpec{Percentage: 100},
		50*time.Millisecond,
		[]string{"i-1"})

	assert.False(t, res.Success)
	assert.Equal(t, types.AbortVerdict, res.Verdict)
	assert.Equal(t, types.StateAborted, res.FinalState)
	assert.Contains(t, res.FailureReason, "steady state not established")
	assert.False(t, res.RollbackTriggered)
	assert.Empty(t, act.Applied(), "no chaos action may run when the baseline is unsteady")
	assert.Empty(t, act.Reverted())
}

func TestRunInjectionFailureRevertsAppliedPrefix(t *testing.T) {
	source := metrics.NewFakeSource().Feed("error_rate", 0.05)
	act := actuator.NewFakeActuator().
		FailApply("stop-instance/i-2", errors.New("instance busy"))
	r := newTestRunner(source, act, "error_rate")

	steps := []types.ExperimentStep{
		{Action: "stop-instance", Target: "i-1"},
		{Action: "stop-instance", Target: "i-2"},
		{Action: "stop-instance", Target: "i-3"},
	}
	res := r.Run(context.Background(), errorRateHypothesis(), steps,
		types.BlastRadiusSpec{Percentage: 100},
		50*time.Millisecond,
		[]string{"i-1", "i-2", "i-3"})

	assert.False(t, res.Success)
	assert.Equal(t, types.FailVerdict, res.Verdict)
	assert.Equal(t, types.StateCompleted, res.FinalState)
	assert.Contains(t, res.FailureReason, "injection failed")
	assert.False(t, res.RollbackTriggered, "partial-injection cleanup is not a condition-driven rollback")

	applied := act.Applied()
	require.Len(t, applied, 1)
	assert.Equal(t, "i-1", applied[0].Target)
	reverted := act.Reverted()
	require.Len(t, reverted, 1)
	assert.Equal(t, "i-1", reverted[0].Target)
}

func TestRunMonitorsFullDurationWhenHypothesisHolds(t *testing.T) {
	source := metrics.NewFakeSource().Feed("error_rate", 0.05)
	act := actuator.NewFakeActuator()
	r := newTestRunner(source, act, "error_rate")

	res := r.Run(context.Background(), errorRateHypothesis(),
		[]types.ExperimentStep{{Action: "stop-instance", Target: "i-1"}},
		types.BlastRadiusSpec{Percentage: 100},
		105*time.Millisecond,
		[]string{"i-1"})

	require.True(t, res.Success, "failure reason: %s", res.FailureReason)
	assert.Equal(t, types.PassVerdict, res.Verdict)
	assert.False(t, res.RollbackTriggered)
	assert.GreaterOrEqual(t, len(res.Samples), 5, "expected roughly one sample per poll interval")
	assert.Len(t, act.Reverted(), 1)
}

func TestRunRollbackConditionStopsMonitoringImmediately(t *testing.T) {
	source := metrics.NewFakeSource().Feed("error_rate", 0.05, 0.01, 0.01, 0.01, 0.9)
	act := actuator.NewFakeActuator()
	r := newTestRunner(source, act, "error_rate")

	res := r.Run(context.Background(), errorRateHypothesis(),
		[]types.ExperimentStep{{Action: "stop-instance", Target: "i-1"}},
		types.BlastRadiusSpec{Percentage: 100},
		5*time.Second,
		[]string{"i-1"})

	assert.False(t, res.Success)
	assert.Equal(t, types.FailVerdict, res.Verdict)
	assert.Equal(t, types.StateCompleted, res.FinalState)
	assert.True(t, res.RollbackTriggered)
	assert.Contains(t, res.FailureReason, "rollback condition")

	// one baseline measurement plus exactly four monitor polls, no sample
	// after the trigger
	require.Len(t, res.Samples, 4)
	assert.Equal(t, 0.9, res.Samples[3].Value)
	assert.Equal(t, 5, source.Calls("error_rate"))
	assert.Len(t, act.Reverted(), 1)
}

func TestRunRejectsExplicitTargetsBeyondBlastRadius(t *testing.T) {
	source := metrics.NewFakeSource().Feed("error_rate", 0.05)
	act := actuator.NewFakeActuator()
	r := newTestRunner(source, act, "error_rate")

	// 1% of 3 eligible targets selects exactly one, i-1
	steps := []types.ExperimentStep{
		{Action: "stop-instance", Target: "i-1"},
		{Action: "stop-instance", Target: "i-2"},
		{Action: "stop-instance", Target: "i-3"},
	}
	res := r.Run(context.Background(), errorRateHypothesis(), steps,
		types.BlastRadiusSpec{Percentage: 1},
		50*time.Millisecond,
		[]string{"i-1", "i-2", "i-3"})

	assert.False(t, res.Success)
	assert.Equal(t, types.AbortVerdict, res.Verdict)
	assert.Equal(t, types.StateAborted, res.FinalState)
	assert.Contains(t, res.FailureReason, "blast radius exceeded")
	assert.Contains(t, res.FailureReason, "i-2")
	assert.Contains(t, res.FailureReason, "i-3")
	assert.Empty(t, act.Applied(), "the blast radius bound is enforced before any actuator call")
	assert.Empty(t, act.Reverted())
}

func TestRunAllowsExplicitTargetWithinBlastRadius(t *testing.T) {
	source := metrics.NewFakeSource().Feed("error_rate", 0.05)
	act := actuator.NewFakeActuator()
	r := newTestRunner(source, act, "error_rate")

	// 34% of 3 eligible targets selects i-1 and i-2
	res := r.Run(context.Background(), errorRateHypothesis(),
		[]types.ExperimentStep{{Action: "stop-instance", Target: "i-2"}},
		types.BlastRadiusSpec{Percentage: 34},
		30*time.Millisecond,
		[]string{"i-1", "i-2", "i-3"})

	require.True(t, res.Success, "failure reason: %s", res.FailureReason)
	applied := act.Applied()
	require.Len(t, applied, 1)
	assert.Equal(t, "i-2", applied[0].Target)
	assert.Len(t, act.Reverted(), 1)
}

func TestRunCompositeRollbackConditionAcrossMetrics(t *testing.T) {
	source := metrics.NewFakeSource().
		Feed("error_rate", 0.05, 0.9).
		Feed("p99_latency", 1.0, 9.9)
	act := actuator.NewFakeActuator()
	r := newTestRunner(source, act, "error_rate", "p99_latency")

	hypothesis := types.Hypothesis{
		SteadyStateMetric:    "error_rate",
		SteadyStateThreshold: 1.0,
		Comparison:           types.LessOrEqual,
		RollbackCondition: types.Predicate{All: []types.Predicate{
			{Metric: "error_rate", Criteria: ">=", Value: 0.5},
			{Metric: "p99_latency", Criteria: ">=", Value: 5},
		}},
	}
	res := r.Run(context.Background(), hypothesis,
		[]types.ExperimentStep{{Action: "stop-instance", Target: "i-1"}},
		types.BlastRadiusSpec{Percentage: 100},
		5*time.Second,
		[]string{"i-1"})

	assert.False(t, res.Success)
	assert.Equal(t, types.FailVerdict, res.Verdict)
	assert.True(t, res.RollbackTriggered, "a conjunction over two metrics must fire when one round satisfies both legs")
	assert.Contains(t, res.FailureReason, "rollback condition")
	require.Len(t, res.Baseline, 2)
	// one monitoring round, both metrics sampled, no round after the trigger
	require.Len(t, res.Samples, 2)
	assert.Len(t, act.Reverted(), 1)
}

func TestRunCancellationForcesPromptRollback(t *testing.T) {
	source := metrics.NewFakeSource().Feed("error_rate", 0.05)
	act := actuator.NewFakeActuator()
	r := newTestRunner(source, act, "error_rate")

	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(30*time.Millisecond, cancel)

	start := time.Now()
	res := r.Run(ctx, errorRateHypothesis(),
		[]types.ExperimentStep{{Action: "stop-instance", Target: "i-1"}},
		types.BlastRadiusSpec{Percentage: 100},
		30*time.Second,
		[]string{"i-1"})

	assert.Less(t, time.Since(start), 5*time.Second, "cancellation must end monitoring promptly")
	assert.False(t, res.Success)
	assert.Equal(t, types.StateCompleted, res.FinalState)
	assert.Contains(t, res.FailureReason, "cancelled")
	assert.Len(t, act.Reverted(), 1, "cancellation must never skip rollback")
}

func TestRunRevertsInReverseOrderOfApplication(t *testing.T) {
	source := metrics.NewFakeSource().Feed("error_rate", 0.05)
	act := actuator.NewFakeActuator()
	r := newTestRunner(source, act, "error_rate")

	steps := []types.ExperimentStep{
		{Action: "stop-instance", Target: "i-1"},
		{Action: "stop-instance", Target: "i-2"},
		{Action: "stop-instance", Target: "i-3"},
	}
	res := r.Run(context.Background(), errorRateHypothesis(), steps,
		types.BlastRadiusSpec{Percentage: 100},
		30*time.Millisecond,
		[]string{"i-1", "i-2", "i-3"})

	require.True(t, res.Success, "failure reason: %s", res.FailureReason)
	reverted := act.Reverted()
	require.Len(t, reverted, 3)
	assert.Equal(t, "i-3", reverted[0].Target)
	assert.Equal(t, "i-2", reverted[1].Target)
	assert.Equal(t, "i-1", reverted[2].Target)
}

func TestRunReportsUnrestoredTargetsOnRevertFailure(t *testing.T) {
	source := metrics.NewFakeSource().Feed("error_rate", 0.05)
	act := actuator.NewFakeActuator().
		FailRevert("stop-instance/i-2", errors.New("api throttled"))
	r := newTestRunner(source, act, "error_rate")

	steps := []types.ExperimentStep{
		{Action: "stop-instance", Target: "i-1"},
		{Action: "stop-instance", Target: "i-2"},
		{Action: "stop-instance", Target: "i-3"},
	}
	res := r.Run(context.Background(), errorRateHypothesis(), steps,
		types.BlastRadiusSpec{Percentage: 100},
		30*time.Millisecond,
		[]string{"i-1", "i-2", "i-3"})

	assert.False(t, res.Success)
	assert.Equal(t, types.FailVerdict, res.Verdict)
	assert.Contains(t, res.FailureReason, "rollback incomplete")
	assert.Contains(t, res.FailureReason, "i-2")
	require.Equal(t, []string{"i-2"}, res.FailedReverts)

	// the failed revert never aborts the remaining reversals
	reverted := act.Reverted()
	require.Len(t, reverted, 2)
	assert.Equal(t, "i-3", reverted[0].Target)
	assert.Equal(t, "i-1", reverted[1].Target)
}

func TestRunFailsClosedWhenMetricVanishesMidMonitoring(t *testing.T) {
	// baseline plus two monitor polls, then the source runs dry
	source := metrics.NewFakeSource()
	scripted := &exhaustibleSource{source: source.Feed("error_rate", 0.05, 0.01, 0.01), limit: 3}
	act := actuator.NewFakeActuator()
	r := newTestRunner(scripted, act, "error_rate")

	res := r.Run(context.Background(), errorRateHypothesis(),
		[]types.ExperimentStep{{Action: "stop-instance", Target: "i-1"}},
		types.BlastRadiusSpec{Percentage: 100},
		5*time.Second,
		[]string{"i-1"})

	assert.False(t, res.Success)
	assert.Equal(t, types.FailVerdict, res.Verdict)
	assert.Contains(t, res.FailureReason, "unavailable during monitoring")
	assert.False(t, res.RollbackTriggered)
	assert.Len(t, res.Samples, 2)
	assert.Len(t, act.Reverted(), 1, "rollback still runs when monitoring fails closed")
}

func TestRunRejectsHypothesisWithUnregisteredMetric(t *testing.T) {
	source := metrics.NewFakeSource().Feed("error_rate", 0.05)
	act := actuator.NewFakeActuator()
	r := newTestRunner(source, act, "error_rate")

	hypothesis := errorRateHypothesis()
	hypothesis.RollbackCondition = types.Predicate{Metric: "p99_latency", Criteria: ">=", Value: 2}

	res := r.Run(context.Background(), hypothesis,
		[]types.ExperimentStep{{Action: "stop-instance", Target: "i-1"}},
		types.BlastRadiusSpec{Percentage: 100},
		50*time.Millisecond,
		[]string{"i-1"})

	assert.False(t, res.Success)
	assert.Equal(t, types.AbortVerdict, res.Verdict)
	assert.Contains(t, res.FailureReason, "no data source registered for metric 'p99_latency'")
	assert.Empty(t, act.Applied())
}

func TestRunRejectsMalformedHypothesis(t *testing.T) {
	source := metrics.NewFakeSource().Feed("error_rate", 0.05)
	act := actuator.NewFakeActuator()
	r := newTestRunner(source, act, "error_rate")

	res := r.Run(context.Background(), types.Hypothesis{},
		[]types.ExperimentStep{{Action: "stop-instance", Target: "i-1"}},
		types.BlastRadiusSpec{Percentage: 100},
		50*time.Millisecond,
		[]string{"i-1"})

	assert.False(t, res.Success)
	assert.Equal(t, types.AbortVerdict, res.Verdict)
	assert.Contains(t, res.FailureReason, "invalid hypothesis")
	assert.Empty(t, act.Applied())
	assert.Len(t, res.Baseline, 0, "validation failures must precede any measurement")
}

func TestRunAbortsOnEmptyEligiblePopulation(t *testing.T) {
	source := metrics.NewFakeSource().Feed("error_rate", 0.05)
	act := actuator.NewFakeActuator()
	r := newTestRunner(source, act, "error_rate")

	res := r.Run(context.Background(), errorRateHypothesis(),
		[]types.ExperimentStep{{Action: "stop-instance"}},
		types.BlastRadiusSpec{Percentage: 50},
		50*time.Millisecond,
		nil)

	assert.False(t, res.Success)
	assert.Equal(t, types.AbortVerdict, res.Verdict)
	assert.Contains(t, res.FailureReason, "target selection failed")
	assert.Empty(t, act.Applied())
}

func TestRunRecoversActuatorPanicAfterRollback(t *testing.T) {
	source := metrics.NewFakeSource().Feed("error_rate", 0.05)
	act := &panickyActuator{
		FakeActuator: actuator.NewFakeActuator(),
		panicOn:      "stop-instance/i-2",
	}
	r := newTestRunner(source, act, "error_rate")

	steps := []types.ExperimentStep{
		{Action: "stop-instance", Target: "i-1"},
		{Action: "stop-instance", Target: "i-2"},
	}
	res := r.Run(context.Background(), errorRateHypothesis(), steps,
		types.BlastRadiusSpec{Percentage: 100},
		50*time.Millisecond,
		[]string{"i-1", "i-2"})

	assert.False(t, res.Success)
	assert.Contains(t, res.FailureReason, "panic")
	assert.Len(t, act.Reverted(), 1, "rollback must run even when an actuator panics")
}

func TestRunEventTrailFollowsLifecycleOrder(t *testing.T) {
	source := metrics.NewFakeSource().Feed("error_rate", 0.05)
	act := actuator.NewFakeActuator()
	r := newTestRunner(source, act, "error_rate")
	r.Name = "checkout-instance-stop"

	res := r.Run(context.Background(), errorRateHypothesis(),
		[]types.ExperimentStep{{Action: "stop-instance", Target: "i-1"}},
		types.BlastRadiusSpec{Percentage: 100},
		30*time.Millisecond,
		[]string{"i-1"})

	require.True(t, res.Success, "failure reason: %s", res.FailureReason)
	assert.Equal(t, "checkout-instance-stop", res.Name)
	assert.False(t, res.EndedAt.Before(res.StartedAt))

	var states []string
	for _, event := range res.Events {
		if strings.HasPrefix(event.Message, "experiment entered ") {
			states = append(states, strings.TrimPrefix(event.Message, "experiment entered "))
		}
	}
	assert.Equal(t, []string{
		string(types.StateVerifyingSteadyState),
		string(types.StateInjecting),
		string(types.StateMonitoring),
		string(types.StateRollingBack),
		string(types.StateCompleted),
	}, states)
}

// exhaustibleSource serves a fixed number of measurements and then fails,
// simulating a metric backend dropping out mid-experiment.
type exhaustibleSource struct {
	source *metrics.FakeSource
	limit  int
	served int
}

func (e *exhaustibleSource) Get(ctx context.Context, metric string) (types.MetricSample, error) {
	if e.served >= e.limit {
		return types.MetricSample{}, errors.New("metric backend unreachable")
	}
	e.served++
	return e.source.Get(ctx, metric)
}

// panickyActuator panics on a scripted step key, otherwise delegates to the
// recording fake.
type panickyActuator struct {
	*actuator.FakeActuator
	panicOn string
}

func (p *panickyActuator) Apply(ctx context.Context, step types.ExperimentStep) error {
	if actuator.StepKey(step) == p.panicOn {
		panic("actuator wedged")
	}
	return p.FakeActuator.Apply(ctx, step)
}
