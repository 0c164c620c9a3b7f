package coordinator

import (
	"context"
	"fmt"
	"runtime/debug"
	"time"

	"github.com/zjrosen/mqttdesk/internal/intent"
	"github.com/zjrosen/mqttdesk/internal/log"
)

// Handler processes one intent.
type Handler interface {
	Handle(ctx context.Context, it intent.Intent) error
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(ctx context.Context, it intent.Intent) error

// Handle calls f.
func (f HandlerFunc) Handle(ctx context.Context, it intent.Intent) error {
	return f(ctx, it)
}

// Middleware wraps a Handler.
type Middleware func(Handler) Handler

// ChainMiddleware applies middlewares so that the first one is outermost:
// ChainMiddleware(h, a, b) handles as a(b(h)).
func ChainMiddleware(h Handler, middlewares ...Middleware) Handler {
	for i := len(middlewares) - 1; i >= 0; i-- {
		h = middlewares[i](h)
	}
	return h
}

// ErrPanic wraps a panic recovered from a handler.
type ErrPanic struct {
	Value any
	Stack []byte
}

func (e *ErrPanic) Error() string {
	return fmt.Sprintf("handler panic: %v", e.Value)
}

// RecoverMiddleware turns a handler panic into an error so one bad intent
// cannot stop the loop.
func RecoverMiddleware() Middleware {
	return func(next Handler) Handler {
		return HandlerFunc(func(ctx context.Context, it intent.Intent) (err error) {
			defer func() {
				if r := recover(); r != nil {
					err = &ErrPanic{Value: r, Stack: debug.Stack()}
					log.Error(log.CatCoord, "intent handler panicked",
						"intent_id", it.ID(),
						"kind", it.Kind().String(),
						"panic", fmt.Sprint(r),
					)
				}
			}()
			return next.Handle(ctx, it)
		})
	}
}

// LoggingMiddleware logs every intent with its outcome and duration.
func LoggingMiddleware() Middleware {
	return func(next Handler) Handler {
		return HandlerFunc(func(ctx context.Context, it intent.Intent) error {
			start := time.Now()
			err := next.Handle(ctx, it)
			duration := time.Since(start)

			if err != nil {
				log.ErrorErr(log.CatCoord, "intent failed", err,
					"intent_id", it.ID(),
					"kind", it.Kind().String(),
					"source", it.Source().String(),
					"trace_id", it.TraceID(),
					"duration", duration,
				)
				return err
			}
			log.Debug(log.CatCoord, "intent handled",
				"intent_id", it.ID(),
				"kind", it.Kind().String(),
				"source", it.Source().String(),
				"duration", duration,
			)
			return nil
		})
	}
}
