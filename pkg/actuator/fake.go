package actuator

import (
	"context"
	"sync"

	"github.com/chaosnative/chaos-runner/pkg/types"
)

// FakeActuator records applications and reversals for tests. Failures can
// be scripted per step key (action/target). Revert is idempotent exactly as
// the interface demands.
type FakeActuator struct {
	mu         sync.Mutex
	applied    []types.ExperimentStep
	reverted   []types.ExperimentStep
	live       map[string]bool
	applyErrs  map[string]error
	revertErrs map[string]error
}

// NewFakeActuator creates an empty recording actuator
func NewFakeActuator() *FakeActuator {
	return &FakeActuator{
		live:       map[string]bool{},
		applyErrs:  map[string]error{},
		revertErrs: map[string]error{},
	}
}

// FailApply scripts an application failure for the step key
func (f *FakeActuator) FailApply(key string, err error) *FakeActuator {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.applyErrs[key] = err
	return f
}

// FailRevert scripts a reversal failure for the step key
func (f *FakeActuator) FailRevert(key string, err error) *FakeActuator {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.revertErrs[key] = err
	return f
}

// Apply records the step as live unless a failure is scripted for it
func (f *FakeActuator) Apply(ctx context.Context, step types.ExperimentStep) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err, ok := f.applyErrs[StepKey(step)]; ok {
		return err
	}
	f.applied = append(f.applied, step)
	f.live[StepKey(step)] = true
	return nil
}

// Revert reverses a live step; reverting a step that is not live is a no-op
func (f *FakeActuator) Revert(ctx context.Context, step types.ExperimentStep) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err, ok := f.revertErrs[StepKey(step)]; ok {
		return err
	}
	if !f.live[StepKey(step)] {
		return nil
	}
	delete(f.live, StepKey(step))
	f.reverted = append(f.reverted, step)
	return nil
}

// Applied returns the recorded applications in order
func (f *FakeActuator) Applied() []types.ExperimentStep {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]types.ExperimentStep(nil), f.applied...)
}

// Reverted returns the recorded reversals in order
func (f *FakeActuator) Reverted() []types.ExperimentStep {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]types.ExperimentStep(nil), f.reverted...)
}

// Live reports whether the step is currently applied and not reverted
func (f *FakeActuator) Live(step types.ExperimentStep) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.live[StepKey(step)]
}

// StepKey identifies a step by its action and target
func StepKey(step types.ExperimentStep) string {
	return step.Action + "/" + step.Target
}
