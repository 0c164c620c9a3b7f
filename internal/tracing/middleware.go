package tracing

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/zjrosen/mqttdesk/internal/coordinator"
	"github.com/zjrosen/mqttdesk/internal/intent"
)

// NewIntentMiddleware returns coordinator middleware that opens a span per
// intent. An intent carrying a span context (a follow-up) gets a child span.
// A nil tracer yields a pass-through.
func NewIntentMiddleware(tracer trace.Tracer) coordinator.Middleware {
	if tracer == nil {
		return func(next coordinator.Handler) coordinator.Handler { return next }
	}

	return func(next coordinator.Handler) coordinator.Handler {
		return coordinator.HandlerFunc(func(ctx context.Context, it intent.Intent) error {
			ctx = restoreSpanContext(ctx, it)
			ctx, span := tracer.Start(ctx, SpanPrefixIntent+it.Kind().String(),
				trace.WithSpanKind(trace.SpanKindInternal),
				trace.WithAttributes(
					attribute.String(AttrIntentID, it.ID()),
					attribute.String(AttrIntentKind, it.Kind().String()),
					attribute.String(AttrIntentSource, it.Source().String()),
				),
			)
			defer span.End()

			// Log lines of this intent carry the trace id from here on.
			if sc := span.SpanContext(); sc.IsValid() {
				it.SetSpanContext(sc)
			}

			err := next.Handle(ctx, it)
			if err != nil {
				span.RecordError(err)
				span.SetStatus(codes.Error, err.Error())
			} else {
				span.SetStatus(codes.Ok, "")
			}
			return err
		})
	}
}

func restoreSpanContext(ctx context.Context, it intent.Intent) context.Context {
	if sc := it.SpanContext(); sc.IsValid() {
		return trace.ContextWithRemoteSpanContext(ctx, sc)
	}
	return ctx
}
