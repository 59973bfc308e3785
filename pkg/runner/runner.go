package runner

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/chaosnative/chaos-runner/pkg/actuator"
	"github.com/chaosnative/chaos-runner/pkg/blastradius"
	"github.com/chaosnative/chaos-runner/pkg/cerrors"
	"github.com/chaosnative/chaos-runner/pkg/environment"
	"github.com/chaosnative/chaos-runner/pkg/events"
	"github.com/chaosnative/chaos-runner/pkg/log"
	"github.com/chaosnative/chaos-runner/pkg/metrics"
	"github.com/chaosnative/chaos-runner/pkg/probe"
	"github.com/chaosnative/chaos-runner/pkg/result"
	"github.com/chaosnative/chaos-runner/pkg/telemetry"
	"github.com/chaosnative/chaos-runner/pkg/types"
	"github.com/pkg/errors"
	"go.opentelemetry.io/otel/trace"
)

// Runner drives one chaos experiment at a time through its linear
// lifecycle: verify steady state, inject bounded by the blast radius,
// monitor with rollback-condition polling, always roll back, produce a
// result. Concurrent experiments each need their own Runner instance.
type Runner struct {
	// Name labels the experiment in its result, optional
	Name string

	registry *metrics.Registry
	actuator actuator.ChaosActuator
	prober   *probe.SteadyStateProber
	settings environment.Settings
}

// experimentRun is the working state of a single execution. It is owned
// exclusively by the goroutine driving Run and is converted into an
// immutable ExperimentResult at the end.
type experimentRun struct {
	state             types.RunState
	recorder          *events.Recorder
	span              trace.Span
	baseline          []types.MetricSample
	samples           []types.MetricSample
	applied           []types.ExperimentStep
	rollbackTriggered bool
	steadyViolated    bool
	cancelled         bool
	failureReason     string
	failedReverts     []string
	startedAt         time.Time
	endedAt           time.Time
}

// New creates a runner over the given metric registry and actuator.
// Zero-valued settings fall back to the defaults GetENV would supply.
func New(registry *metrics.Registry, chaosActuator actuator.ChaosActuator, settings environment.Settings) *Runner {
	if settings.PollInterval <= 0 {
		settings.PollInterval = 10 * time.Second
	}
	if settings.ActuatorTimeout <= 0 {
		settings.ActuatorTimeout = 10 * time.Second
	}
	return &Runner{
		registry: registry,
		actuator: chaosActuator,
		prober:   probe.NewSteadyStateProber(registry, settings.ProbeTimeout, settings.ProbeRetries, settings.ProbeRetryDelay),
		settings: settings,
	}
}

// Run executes the full experiment lifecycle. It always returns a result,
// never an error and never a panic; every collaborator failure is folded
// into the result's failure reason. Cancelling ctx halts monitoring early
// but can never skip rollback.
func (r *Runner) Run(ctx context.Context, hypothesis types.Hypothesis, steps []types.ExperimentStep, blastRadius types.BlastRadiusSpec, duration time.Duration, eligible []string) (res result.ExperimentResult) {
	run := &experimentRun{
		state:     types.StatePending,
		recorder:  events.NewRecorder(),
		startedAt: time.Now(),
	}

	ctx, span := telemetry.StartExperimentSpan(ctx, "chaos-experiment-run")
	run.span = span
	defer span.End()

	defer func() {
		if rec := recover(); rec != nil {
			// rollback has already executed through its own defer; the
			// panic is folded into the result to keep the single-return
			// contract
			run.fail(fmt.Sprintf("panic during experiment: %v", rec))
			switch run.state {
			case types.StateRollingBack:
				run.state = types.StateCompleted
			case types.StateCompleted, types.StateAborted:
			default:
				run.state = types.StateAborted
			}
		}
		run.endedAt = time.Now()
		res = r.assemble(run, hypothesis)
		res.Summary()
	}()

	if reason := r.validate(hypothesis, blastRadius); reason != "" {
		r.abort(run, reason)
		return
	}

	r.transition(run, types.StateVerifyingSteadyState)
	if err := r.verifySteadyState(ctx, run, hypothesis); err != nil {
		r.abort(run, fmt.Sprintf("steady state not established: %v", err))
		return
	}

	selected, err := blastradius.SelectTargets(eligible, blastRadius)
	if err != nil {
		r.abort(run, fmt.Sprintf("target selection failed: %v", err))
		return
	}
	if outside := targetsOutsideSelection(steps, selected); len(outside) > 0 {
		r.abort(run, fmt.Sprintf("blast radius exceeded: step targets outside the selected population: %s", strings.Join(outside, ", ")))
		return
	}

	r.injectAndMonitor(ctx, run, hypothesis, steps, selected, duration)
	r.transition(run, types.StateCompleted)
	return
}

// validate rejects a submission before any side effect
func (r *Runner) validate(hypothesis types.Hypothesis, blastRadius types.BlastRadiusSpec) string {
	if err := hypothesis.Validate(); err != nil {
		return fmt.Sprintf("invalid hypothesis: %v", err)
	}
	if err := blastRadius.Validate(); err != nil {
		return fmt.Sprintf("invalid blast radius: %v", err)
	}
	for _, metric := range hypothesis.Metrics() {
		if !r.registry.Has(metric) {
			return fmt.Sprintf("invalid hypothesis: no data source registered for metric '%s'", metric)
		}
	}
	return ""
}

// verifySteadyState measures the baseline for every referenced metric and
// checks the steady-state metric against the hypothesis. A measurement
// failure fails closed, steadiness is never assumed.
func (r *Runner) verifySteadyState(ctx context.Context, run *experimentRun, hypothesis types.Hypothesis) error {
	for _, metric := range hypothesis.Metrics() {
		sample, err := r.prober.Measure(ctx, metric)
		if err != nil {
			return err
		}
		run.baseline = append(run.baseline, sample)
	}

	// hypothesis.Metrics() lists the steady-state metric first
	steadySample := run.baseline[0]
	if !probe.IsSteady(steadySample, hypothesis) {
		return cerrors.Error{
			ErrorCode: cerrors.ErrorTypeSteadyState,
			Target:    hypothesis.SteadyStateMetric,
			Reason:    fmt.Sprintf("metric '%s' measured %v, acceptable bound is %s %v", steadySample.Name, steadySample.Value, hypothesis.Comparison, hypothesis.SteadyStateThreshold),
		}
	}
	run.recorder.Record(types.SteadyStateCheck, fmt.Sprintf("baseline steady state established, %s=%v", steadySample.Name, steadySample.Value))
	return nil
}

// injectAndMonitor covers the Injecting and Monitoring states. Rollback is
// deferred on entry so every path that enters Injecting reaches
// RollingBack, injection failures, predicate triggers, cancellation and
// panics included.
func (r *Runner) injectAndMonitor(ctx context.Context, run *experimentRun, hypothesis types.Hypothesis, steps []types.ExperimentStep, targets []string, duration time.Duration) {
	r.transition(run, types.StateInjecting)
	defer r.rollback(ctx, run)

	if err := r.inject(ctx, run, steps, targets); err != nil {
		run.fail(fmt.Sprintf("injection failed: %v", err))
		return
	}

	r.transition(run, types.StateMonitoring)
	r.monitor(ctx, run, hypothesis, duration)
}

// inject applies each step in submission order, fanning untargeted steps
// out across the selected targets. The first failure stops injection; the
// steps applied so far are reversed by the pending rollback.
func (r *Runner) inject(ctx context.Context, run *experimentRun, steps []types.ExperimentStep, targets []string) error {
	for _, step := range steps {
		for _, materialized := range materialize(step, targets) {
			callCtx, cancel := context.WithTimeout(ctx, r.settings.ActuatorTimeout)
			err := r.actuator.Apply(callCtx, materialized)
			cancel()
			if err != nil {
				return errors.Wrapf(err, "unable to apply '%s' on '%s'", materialized.Action, materialized.Target)
			}
			run.applied = append(run.applied, materialized)
			run.recorder.Record(types.ChaosInject, fmt.Sprintf("applied '%s' on '%s'", materialized.Action, materialized.Target))
		}
	}
	return nil
}

// rollback reverses every applied step in strict reverse order of
// application. Reversal is best effort: a failed revert is recorded and
// never retried, and never aborts the remaining reversals.
func (r *Runner) rollback(ctx context.Context, run *experimentRun) {
	r.transition(run, types.StateRollingBack)
	if len(run.applied) == 0 {
		run.recorder.Record(types.ChaosRevert, "no chaos action was applied, nothing to reverse")
		return
	}

	// caller cancellation must never skip or interrupt the reversal
	revertCtx := context.WithoutCancel(ctx)
	for i := len(run.applied) - 1; i >= 0; i-- {
		step := run.applied[i]
		callCtx, cancel := context.WithTimeout(revertCtx, r.settings.ActuatorTimeout)
		err := r.actuator.Revert(callCtx, step)
		cancel()
		if err != nil {
			run.failedReverts = append(run.failedReverts, step.Target)
			log.Errorf("[Revert]: Unable to revert '%v' on '%v', err: %v", step.Action, step.Target, err)
			run.recorder.Record(types.ChaosRevert, fmt.Sprintf("failed to revert '%s' on '%s': %v", step.Action, step.Target, err))
			continue
		}
		run.recorder.Record(types.ChaosRevert, fmt.Sprintf("reverted '%s' on '%s'", step.Action, step.Target))
	}

	if len(run.failedReverts) > 0 {
		run.fail(fmt.Sprintf("rollback incomplete, targets not restored: %s", strings.Join(run.failedReverts, ", ")))
	}
}

func (r *Runner) abort(run *experimentRun, reason string) {
	r.transition(run, types.StateAborted)
	run.fail(reason)
	log.Errorf("[Abort]: %v", reason)
}

// transition moves the run to its next lifecycle state. Transitions are
// strictly forward; the run never re-enters an earlier state.
func (r *Runner) transition(run *experimentRun, state types.RunState) {
	run.state = state
	if run.span != nil {
		run.span.AddEvent(string(state))
	}
	run.recorder.Record(reasonFor(state), fmt.Sprintf("experiment entered %s", state))
}

func reasonFor(state types.RunState) string {
	switch state {
	case types.StateVerifyingSteadyState:
		return types.SteadyStateCheck
	case types.StateInjecting:
		return types.ChaosInject
	case types.StateMonitoring:
		return types.ChaosMonitor
	case types.StateRollingBack:
		return types.ChaosRevert
	default:
		return types.Summary
	}
}

// assemble converts the run's working state into the immutable result
func (r *Runner) assemble(run *experimentRun, hypothesis types.Hypothesis) result.ExperimentResult {
	if run.rollbackTriggered {
		run.fail("rollback condition fired during monitoring")
	}
	if run.steadyViolated {
		run.fail("steady state violated during monitoring")
	}
	if run.cancelled {
		run.fail("experiment cancelled before the monitored duration elapsed")
	}

	success := run.state == types.StateCompleted && run.failureReason == ""
	verdict := result.Verdict(run.state, success)
	run.recorder.Record(types.Summary, fmt.Sprintf("experiment verdict: %s", verdict))

	return result.ExperimentResult{
		Name:              r.Name,
		Hypothesis:        hypothesis,
		Verdict:           verdict,
		Success:           success,
		FinalState:        run.state,
		Baseline:          run.baseline,
		Samples:           run.samples,
		RollbackTriggered: run.rollbackTriggered,
		FailureReason:     run.failureReason,
		FailedReverts:     run.failedReverts,
		StartedAt:         run.startedAt,
		EndedAt:           run.endedAt,
		Events:            run.recorder.Events(),
	}
}

func (run *experimentRun) fail(reason string) {
	if run.failureReason == "" {
		run.failureReason = reason
		return
	}
	run.failureReason += "; " + reason
}

// targetsOutsideSelection returns the distinct explicit step targets that
// fall outside the blast-radius selection. The percentage bound is
// unconditional, so such a submission aborts before any actuator call
// rather than widening the selected population.
func targetsOutsideSelection(steps []types.ExperimentStep, selected []string) []string {
	inSelection := make(map[string]bool, len(selected))
	for _, target := range selected {
		inSelection[target] = true
	}
	seen := map[string]bool{}
	var outside []string
	for _, step := range steps {
		if step.Target == "" || inSelection[step.Target] || seen[step.Target] {
			continue
		}
		seen[step.Target] = true
		outside = append(outside, step.Target)
	}
	return outside
}

// materialize fans an untargeted step out across the selected targets; an
// explicit target is applied as is, validated against the blast-radius
// selection before injection starts.
func materialize(step types.ExperimentStep, targets []string) []types.ExperimentStep {
	if step.Target != "" {
		return []types.ExperimentStep{step}
	}
	materialized := make([]types.ExperimentStep, 0, len(targets))
	for _, target := range targets {
		applied := step
		applied.Target = target
		materialized = append(materialized, applied)
	}
	return materialized
}
