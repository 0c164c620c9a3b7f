// Package coordinator owns the MQTT session registry and processes intents
// one at a time. Every visible change it makes is handed to a Scheduler as an
// appdata.Transform; the coordinator never touches AppData itself.
package coordinator

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/zjrosen/mqttdesk/internal/appdata"
	"github.com/zjrosen/mqttdesk/internal/domain"
	"github.com/zjrosen/mqttdesk/internal/intent"
	"github.com/zjrosen/mqttdesk/internal/log"
	"github.com/zjrosen/mqttdesk/internal/mqtt"
)

// DefaultDoubleClickWindow is the longest gap between two clicks on the same
// item that still counts as a double click.
const DefaultDoubleClickWindow = 280 * time.Millisecond

// ErrUnknownIntent is returned for intents without a registered handler.
var ErrUnknownIntent = errors.New("no handler for intent")

// Scheduler applies transforms on the UI thread in submission order.
type Scheduler interface {
	Schedule(name string, t appdata.Transform)
}

// SchedulerFunc adapts a function to Scheduler.
type SchedulerFunc func(name string, t appdata.Transform)

// Schedule calls f.
func (f SchedulerFunc) Schedule(name string, t appdata.Transform) { f(name, t) }

// Store is the persistence the coordinator writes through.
type Store interface {
	SaveBroker(ctx context.Context, b domain.Broker) error
	DeleteBroker(ctx context.Context, id int) error
	AppendHistory(ctx context.Context, brokerID int, entry domain.SubscribeHis) (domain.SubscribeHis, bool, error)
	RemoveHistory(ctx context.Context, brokerID, entryID int) (bool, error)
}

// Coordinator is the single consumer of the intent queue.
type Coordinator struct {
	queue     *intent.Queue
	registry  *mqtt.Registry
	store     Store
	scheduler Scheduler
	clock     Clock
	window    time.Duration

	handlers    map[intent.Kind]Handler
	middlewares []Middleware

	// Broker ids with a single click still inside the double-click window.
	pendingClick map[int]time.Time
	// At most one history entry click is pending across all brokers.
	pendingHisClick   *domain.SubscribeHis
	pendingHisClickAt time.Time

	// Last broker connected per id, reused by ReConnect.
	known map[int]domain.Broker
	// History entries to remember once their SUBACK succeeds, by broker and packet id.
	pendingSubs map[int]map[uint16]domain.SubscribeHis

	processed atomic.Int64
	failed    atomic.Int64
}

// Option configures a Coordinator.
type Option func(*Coordinator)

// WithClock replaces the wall clock.
func WithClock(c Clock) Option {
	return func(co *Coordinator) { co.clock = c }
}

// WithDoubleClickWindow overrides DefaultDoubleClickWindow.
func WithDoubleClickWindow(d time.Duration) Option {
	return func(co *Coordinator) {
		if d > 0 {
			co.window = d
		}
	}
}

// WithMiddleware adds middlewares inside the built-in recover and logging ones.
func WithMiddleware(m ...Middleware) Option {
	return func(co *Coordinator) { co.middlewares = append(co.middlewares, m...) }
}

// New creates a coordinator reading from q.
func New(q *intent.Queue, registry *mqtt.Registry, store Store, scheduler Scheduler, opts ...Option) *Coordinator {
	c := &Coordinator{
		queue:        q,
		registry:     registry,
		store:        store,
		scheduler:    scheduler,
		clock:        RealClock{},
		window:       DefaultDoubleClickWindow,
		handlers:     make(map[intent.Kind]Handler),
		pendingClick: make(map[int]time.Time),
		known:        make(map[int]domain.Broker),
		pendingSubs:  make(map[int]map[uint16]domain.SubscribeHis),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.registerHandlers()
	return c
}

// RegisterHandler installs h for kind, wrapped in the middleware chain.
// Registering a kind twice replaces the earlier handler.
func (c *Coordinator) RegisterHandler(kind intent.Kind, h Handler) {
	chain := append([]Middleware{RecoverMiddleware(), LoggingMiddleware()}, c.middlewares...)
	c.handlers[kind] = ChainMiddleware(h, chain...)
}

// Run processes intents until ctx is done or the queue is closed, then
// disconnects every session.
func (c *Coordinator) Run(ctx context.Context) error {
	log.Info(log.CatCoord, "coordinator started")
	defer func() {
		c.registry.CloseAll()
		log.Info(log.CatCoord, "coordinator stopped",
			"processed", c.processed.Load(),
			"failed", c.failed.Load(),
		)
	}()

	for {
		if err := c.Step(ctx); err != nil {
			if errors.Is(err, intent.ErrQueueClosed) || errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		}
	}
}

// Step waits for the next intent and handles it to completion. Handler
// errors are logged, not returned; only queue errors are.
func (c *Coordinator) Step(ctx context.Context) error {
	it, err := c.queue.Next(ctx)
	if err != nil {
		return err
	}
	_ = c.Process(ctx, it)
	return nil
}

// Process handles one intent synchronously and returns the handler error.
func (c *Coordinator) Process(ctx context.Context, it intent.Intent) error {
	h, ok := c.handlers[it.Kind()]
	if !ok {
		c.failed.Add(1)
		err := fmt.Errorf("%w: %s", ErrUnknownIntent, it.Kind())
		log.ErrorErr(log.CatCoord, "dropping intent", err, "intent_id", it.ID())
		return err
	}
	err := h.Handle(ctx, it)
	c.processed.Add(1)
	if err != nil {
		c.failed.Add(1)
	}
	return err
}

// Stats returns the number of intents processed and how many failed.
func (c *Coordinator) Stats() (processed, failed int64) {
	return c.processed.Load(), c.failed.Load()
}

func (c *Coordinator) schedule(name string, t appdata.Transform) {
	c.scheduler.Schedule(name, t)
}

// followUp enqueues an intent caused by the one being handled, carrying the
// current span so both end up in the same trace.
func (c *Coordinator) followUp(ctx context.Context, next intent.Intent) {
	if sc := trace.SpanContextFromContext(ctx); sc.IsValid() {
		next.SetSpanContext(sc)
	}
	if err := c.queue.Submit(next); err != nil {
		log.ErrorErr(log.CatCoord, "follow-up intent dropped", err, "kind", next.Kind().String())
	}
}

// post is used by timers, which run outside the coordinator goroutine.
func (c *Coordinator) post(it intent.Intent) {
	if err := c.queue.Submit(it); err != nil {
		log.Debug(log.CatCoord, "timer intent dropped", "kind", it.Kind().String(), "error", err.Error())
	}
}

// AttrRequestID carries the session-local request id of an MQTT request.
// It is not the packet identifier the client library puts on the wire.
const AttrRequestID = "mqtt.request_id"

// recordPacket notes an MQTT request on the span of the current intent.
func recordPacket(ctx context.Context, name string, brokerID int, topic string, packetID uint16) {
	trace.SpanFromContext(ctx).AddEvent(name, trace.WithAttributes(
		attribute.Int("broker.id", brokerID),
		attribute.String("mqtt.topic", topic),
		attribute.Int(AttrRequestID, int(packetID)),
	))
}
