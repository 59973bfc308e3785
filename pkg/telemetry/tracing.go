package telemetry

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

const (
	TracerName = "chaosnative.com/chaos-runner"
)

// StartExperimentSpan opens a span covering one experiment run
func StartExperimentSpan(ctx context.Context, name string) (context.Context, trace.Span) {
	return otel.Tracer(TracerName).Start(ctx, name)
}
