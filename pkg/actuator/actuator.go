package actuator

import (
	"context"

	"github.com/chaosnative/chaos-runner/pkg/types"
)

// ChaosActuator executes and reverses a single fault-injection action.
// Revert must be idempotent: reverting a step that was never successfully
// applied, or reverting the same step twice, must not error and must have
// no effect.
type ChaosActuator interface {
	Apply(ctx context.Context, step types.ExperimentStep) error
	Revert(ctx context.Context, step types.ExperimentStep) error
}
