package runtime

import (
	"context"
	"time"

	"github.com/aretw0/yol/pkg/domain"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/aretw0/yol"

func (e *Engine) startRun(ctx context.Context) (context.Context, trace.Span) {
	return e.tracer.Start(ctx, "yol.run",
		trace.WithAttributes(
			attribute.String("yol.runner", e.name),
			attribute.String("yol.key", e.key),
		),
	)
}

func (e *Engine) endRun(ctx context.Context, span trace.Span, report *domain.RunReport, d time.Duration) {
	span.SetAttributes(
		attribute.String("yol.state.from", report.From),
		attribute.String("yol.state.to", report.To),
		attribute.Int("yol.transitions.applied", len(report.Applied)),
	)
	if report.Err != nil {
		span.RecordError(report.Err)
		span.SetStatus(codes.Error, report.Err.Error())
	} else {
		span.SetStatus(codes.Ok, "")
	}
	e.emitRunEnd(ctx, report, d)
	span.End()
}

func (e *Engine) startTransition(ctx context.Context, t domain.Transition) (context.Context, trace.Span) {
	return e.tracer.Start(ctx, "yol.transition",
		trace.WithAttributes(
			attribute.String("yol.runner", e.name),
			attribute.String("yol.source", t.Source),
			attribute.String("yol.target", t.Target),
		),
	)
}

func (e *Engine) endTransition(ctx context.Context, span trace.Span, t domain.Transition, err error, d time.Duration) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	e.emitTransitionEnd(ctx, t, err, d)
	span.End()
}
