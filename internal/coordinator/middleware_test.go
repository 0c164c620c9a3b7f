package coordinator

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/zjrosen/mqttdesk/internal/intent"
	"github.com/zjrosen/mqttdesk/internal/log"
)

func TestChainMiddleware_Order(t *testing.T) {
	var order []string
	mark := func(name string) Middleware {
		return func(next Handler) Handler {
			return HandlerFunc(func(ctx context.Context, it intent.Intent) error {
				order = append(order, name+">")
				err := next.Handle(ctx, it)
				order = append(order, "<"+name)
				return err
			})
		}
	}
	h := ChainMiddleware(HandlerFunc(func(context.Context, intent.Intent) error {
		order = append(order, "handler")
		return nil
	}), mark("a"), mark("b"))

	require.NoError(t, h.Handle(context.Background(), intent.NewAddBroker(intent.SourceUser)))
	require.Equal(t, []string{"a>", "b>", "handler", "<b", "<a"}, order)
}

func TestRecoverMiddleware_TurnsPanicIntoError(t *testing.T) {
	h := ChainMiddleware(HandlerFunc(func(context.Context, intent.Intent) error {
		panic("kaboom")
	}), RecoverMiddleware())

	err := h.Handle(context.Background(), intent.NewAddBroker(intent.SourceUser))
	var p *ErrPanic
	require.ErrorAs(t, err, &p)
	require.Equal(t, "kaboom", p.Value)
	require.NotEmpty(t, p.Stack)
}

func TestLoggingMiddleware_LogsFailures(t *testing.T) {
	var buf bytes.Buffer
	cleanup := log.InitWriter(&buf, log.LevelDebug)
	defer cleanup()

	h := ChainMiddleware(HandlerFunc(func(context.Context, intent.Intent) error {
		return errBoom
	}), LoggingMiddleware())

	it := intent.NewDeleteBroker(intent.SourceUser, 3)
	require.ErrorIs(t, h.Handle(context.Background(), it), errBoom)
	require.Contains(t, buf.String(), "intent failed")
	require.Contains(t, buf.String(), "kind=delete_broker")
	require.Contains(t, buf.String(), "intent_id="+it.ID())
}

func TestCoordinator_PanickingHandlerKeepsLoopAlive(t *testing.T) {
	h := newHarness(t, nil)
	h.co.RegisterHandler(intent.KindAddBroker, HandlerFunc(func(context.Context, intent.Intent) error {
		panic("bad handler")
	}))

	require.Error(t, h.do(intent.NewAddBroker(intent.SourceUser)))
	require.NoError(t, h.do(intent.NewSelectTabs(intent.SourceUser, 0)))
	processed, failed := h.co.Stats()
	require.Equal(t, int64(2), processed)
	require.Equal(t, int64(1), failed)
}
