// Package intent defines the events consumed by the coordinator: user
// actions from the UI, timer expiries and notifications from MQTT sessions.
// Every intent embeds Base, which carries an id, its origin and an optional
// OpenTelemetry span context for tracing across the queue.
package intent

import (
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"
)

// Intent is one unit of work for the coordinator.
type Intent interface {
	// ID returns a unique identifier for log correlation.
	ID() string
	// Kind routes the intent to its handler.
	Kind() Kind
	Source() Source
	CreatedAt() time.Time
	TraceID() string
	SpanContext() trace.SpanContext
	SetSpanContext(sc trace.SpanContext)
}

// Kind identifies the intent type.
type Kind string

const (
	// Broker list

	KindAddBroker     Kind = "add_broker"
	KindEditBroker    Kind = "edit_broker"
	KindSaveBroker    Kind = "save_broker"
	KindDeleteBroker  Kind = "delete_broker"
	KindConnectBroker Kind = "connect_broker"
	KindClickBroker   Kind = "click_broker"
	KindDbClickCheck  Kind = "db_click_check"

	// Connection lifecycle

	KindConnect            Kind = "connect"
	KindConnectAckSuccess  Kind = "connect_ack_success"
	KindDisconnect         Kind = "disconnect"
	KindReConnect          Kind = "reconnect"
	KindSelectTabs         Kind = "select_tabs"
	KindCloseBrokerTab     Kind = "close_broker_tab"
	KindCloseConnectionTab Kind = "close_connection_tab"

	// Subscriptions

	KindSubscribe                Kind = "subscribe"
	KindSubAck                   Kind = "sub_ack"
	KindClickSubscribeHis        Kind = "click_subscribe_his"
	KindDbClickCheckSubscribeHis Kind = "db_click_check_subscribe_his"
	KindRemoveSubscribeHis       Kind = "remove_subscribe_his"
	KindToUnsubscribe            Kind = "to_unsubscribe"
	KindUnsubscribing            Kind = "unsubscribing"
	KindUnsubAck                 Kind = "unsub_ack"

	// Messages

	KindPublish       Kind = "publish"
	KindPubAck        Kind = "pub_ack"
	KindReceivePublic Kind = "receive_public"
)

func (k Kind) String() string {
	return string(k)
}

// Source identifies the producer of an intent.
type Source string

const (
	// SourceUser is direct keyboard or mouse input.
	SourceUser Source = "user"
	// SourceTimer is a double-click window expiring.
	SourceTimer Source = "timer"
	// SourcePump is a notification pump relaying a session event.
	SourcePump Source = "pump"
	// SourceInternal is a follow-up emitted by the coordinator itself.
	SourceInternal Source = "internal"
	// SourceCLI is the headless brokers command.
	SourceCLI Source = "cli"
)

func (s Source) String() string {
	return string(s)
}

// Base provides the common fields; concrete intents embed it.
type Base struct {
	id          string
	kind        Kind
	source      Source
	createdAt   time.Time
	spanContext trace.SpanContext
}

// NewBase creates a Base with a fresh UUID and the current time.
func NewBase(kind Kind, source Source) Base {
	return Base{
		id:        uuid.New().String(),
		kind:      kind,
		source:    source,
		createdAt: time.Now(),
	}
}

func (b *Base) ID() string { return b.id }
func (b *Base) Kind() Kind { return b.kind }
func (b *Base) Source() Source { return b.source }
func (b *Base) CreatedAt() time.Time { return b.createdAt }

// TraceID returns the trace id of the attached span context, or "".
func (b *Base) TraceID() string {
	if b.spanContext.IsValid() {
		return b.spanContext.TraceID().String()
	}
	return ""
}

// SpanContext returns the span context propagated with the intent.
func (b *Base) SpanContext() trace.SpanContext {
	return b.spanContext
}

// SetSpanContext attaches a span context so the handler span joins the
// producer's trace.
func (b *Base) SetSpanContext(sc trace.SpanContext) {
	b.spanContext = sc
}
