package engine

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/miradorstack/mirador-triage/internal/metrics"
)

// StageObserver is notified around every stage. Notifications never affect control flow.
type StageObserver interface {
	StageStarted(component string)
	StageFinished(component string, elapsed time.Duration, err error)
}

// runStage executes one component with logging, metrics, a span and panic recovery.
// Any failure comes back as *ComponentError and the zero T.
func runStage[T any](ctx context.Context, p *Pipeline, logger *slog.Logger, component string, fn func(context.Context) (T, error)) (out T, err error) {
	ctx, span := p.tracer.Start(ctx, component, trace.WithAttributes(attribute.String("triage.component", component)))
	defer span.End()

	logger.Info("stage started", slog.String("component", component))
	if p.observer != nil {
		p.observer.StageStarted(component)
	}
	start := time.Now()

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
		elapsed := time.Since(start)

		if err != nil {
			var zero T
			out = zero
			err = &ComponentError{Component: component, Err: err}
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			logger.Error("stage failed",
				slog.String("component", component),
				slog.Duration("duration", elapsed),
				slog.Any("error", err),
			)
		} else {
			logger.Info("stage completed",
				slog.String("component", component),
				slog.Duration("duration", elapsed),
			)
		}

		metrics.ObserveStage(component, elapsed, err != nil)
		if p.observer != nil {
			p.observer.StageFinished(component, elapsed, err)
		}
	}()

	return fn(ctx)
}
