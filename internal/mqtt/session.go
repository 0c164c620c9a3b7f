package mqtt

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/eclipse/paho.golang/paho"

	"github.com/zjrosen/mqttdesk/internal/domain"
	"github.com/zjrosen/mqttdesk/internal/log"
)

// EventType classifies session events.
type EventType int

const (
	EventConnAck EventType = iota
	EventSubAck
	EventPubAck
	EventPublish
	EventUnsubAck
	EventDisconnected
)

func (t EventType) String() string {
	switch t {
	case EventConnAck:
		return "connack"
	case EventSubAck:
		return "suback"
	case EventPubAck:
		return "puback"
	case EventPublish:
		return "publish"
	case EventUnsubAck:
		return "unsuback"
	case EventDisconnected:
		return "disconnected"
	default:
		return "unknown"
	}
}

// unspecifiedError is the MQTT v5 reason code reported for requests that
// failed locally (timeout, transport error).
const unspecifiedError byte = 0x80

// Event is something the broker (or the transport) did.
type Event struct {
	Type EventType
	// PacketID of the completed request, for acks.
	PacketID uint16
	// Reasons holds one SUBACK reason code per topic filter.
	Reasons    []byte
	ReasonCode byte
	Message    domain.Message
	Err        error
}

// Options tune sessions created by a Registry.
type Options struct {
	KeepAlive      time.Duration
	RequestTimeout time.Duration
	ConnectTimeout time.Duration
	EventBuffer    int
	Now            func() time.Time
}

// DefaultOptions matches the defaults of the config file.
func DefaultOptions() Options {
	return Options{
		KeepAlive:      20 * time.Second,
		RequestTimeout: 10 * time.Second,
		ConnectTimeout: 10 * time.Second,
		EventBuffer:    256,
		Now:            time.Now,
	}
}

func (o Options) withDefaults() Options {
	d := DefaultOptions()
	if o.KeepAlive <= 0 {
		o.KeepAlive = d.KeepAlive
	}
	if o.RequestTimeout <= 0 {
		o.RequestTimeout = d.RequestTimeout
	}
	if o.ConnectTimeout <= 0 {
		o.ConnectTimeout = d.ConnectTimeout
	}
	if o.EventBuffer <= 0 {
		o.EventBuffer = d.EventBuffer
	}
	if o.Now == nil {
		o.Now = d.Now
	}
	return o
}

// Session is a live connection to one broker.
type Session struct {
	broker domain.Broker
	opts   Options
	client Client
	ids    *PacketIDs

	ctx    context.Context
	cancel context.CancelFunc
	events chan Event

	mu       sync.Mutex
	closed   bool
	subs     map[uint16]string
	wg       sync.WaitGroup
	failOnce sync.Once
}

func newSession(b domain.Broker, opts Options) *Session {
	ctx, cancel := context.WithCancel(context.Background())
	return &Session{
		broker: b,
		opts:   opts,
		ids:    NewPacketIDs(),
		ctx:    ctx,
		cancel: cancel,
		events: make(chan Event, opts.EventBuffer),
		subs:   make(map[uint16]string),
	}
}

// BrokerID returns the id of the connected broker.
func (s *Session) BrokerID() int { return s.broker.ID }

// Broker returns the broker record the session was opened with.
func (s *Session) Broker() domain.Broker { return s.broker }

// Events is closed once the session has ended and every pending event was
// delivered.
func (s *Session) Events() <-chan Event { return s.events }

// Closed reports whether the session has ended.
func (s *Session) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// Topic returns the filter subscribed with packetID.
func (s *Session) Topic(packetID uint16) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.subs[packetID]
	return t, ok
}

// handlers routes unsolicited client traffic into the event stream.
func (s *Session) handlers() Handlers {
	return Handlers{
		OnPublish: func(p *paho.Publish) {
			msg := domain.Received(p.Topic, p.Payload, domain.QoS(p.QoS), p.Retain, s.opts.Now())
			s.emit(Event{Type: EventPublish, Message: msg})
		},
		OnClientError: func(err error) {
			s.fail(fmt.Errorf("client error: %w", err))
		},
		OnServerDisconnect: func(d *paho.Disconnect) {
			s.fail(fmt.Errorf("server disconnect: reason 0x%02x", d.ReasonCode))
		},
	}
}

// emit delivers ev unless the session has ended.
func (s *Session) emit(ev Event) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.wg.Add(1)
	s.mu.Unlock()
	defer s.wg.Done()

	select {
	case s.events <- ev:
	case <-s.ctx.Done():
	}
}

// spawn runs fn in the background with a context that ends after timeout
// or when the session ends.
func (s *Session) spawn(timeout time.Duration, fn func(ctx context.Context)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrSessionClosed
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ctx, cancel := context.WithTimeout(s.ctx, timeout)
		defer cancel()
		fn(ctx)
	}()
	return nil
}

func (s *Session) async(fn func(ctx context.Context)) error {
	return s.spawn(s.opts.RequestTimeout, fn)
}

// start begins the CONNECT/CONNACK exchange.
func (s *Session) start() error {
	timeout := s.opts.ConnectTimeout
	if t := s.broker.ParseParams().ConnectTimeout; t > 0 {
		timeout = time.Duration(t) * time.Second
	}
	return s.spawn(timeout, s.handshake)
}

// handshake sends CONNECT and reports CONNACK.
func (s *Session) handshake(ctx context.Context) {
	ca, err := s.client.Connect(ctx, connectPacket(s.broker, uint16(s.opts.KeepAlive/time.Second)))
	if err == nil && ca != nil && ca.ReasonCode >= unspecifiedError {
		err = fmt.Errorf("connack reason 0x%02x", ca.ReasonCode)
	}
	if err != nil {
		s.fail(fmt.Errorf("connect: %w", err))
		return
	}
	log.Info(log.CatMQTT, "connected", "broker_id", s.broker.ID, "endpoint", s.broker.Endpoint())
	s.emit(Event{Type: EventConnAck})
}

// Subscribe sends SUBSCRIBE for topic and returns its packet id. The id
// stays reserved until the subscription is removed.
func (s *Session) Subscribe(topic string, qos domain.QoS) (uint16, error) {
	id, err := s.ids.Acquire()
	if err != nil {
		return 0, err
	}
	s.mu.Lock()
	s.subs[id] = topic
	s.mu.Unlock()

	err = s.async(func(ctx context.Context) {
		sa, err := s.client.Subscribe(ctx, &paho.Subscribe{
			Subscriptions: []paho.SubscribeOptions{{Topic: topic, QoS: byte(qos)}},
		})
		ev := Event{Type: EventSubAck, PacketID: id}
		switch {
		case err != nil:
			log.ErrorErr(log.CatMQTT, "subscribe failed", err, "broker_id", s.broker.ID, "topic", topic)
			ev.Reasons = []byte{unspecifiedError}
			ev.Err = err
		case sa != nil:
			ev.Reasons = sa.Reasons
		}
		if failed(ev.Reasons) {
			s.dropSub(id)
		}
		s.emit(ev)
	})
	if err != nil {
		s.dropSub(id)
		return 0, err
	}
	return id, nil
}

func failed(reasons []byte) bool {
	for _, r := range reasons {
		if r >= unspecifiedError {
			return true
		}
	}
	return false
}

func (s *Session) dropSub(id uint16) {
	s.mu.Lock()
	delete(s.subs, id)
	s.mu.Unlock()
	s.ids.Release(id)
}

// Unsubscribe sends UNSUBSCRIBE for topic and returns its packet id. Only
// the subscriptions to topic that exist now are released by the ack.
func (s *Session) Unsubscribe(topic string) (uint16, error) {
	id, err := s.ids.Acquire()
	if err != nil {
		return 0, err
	}
	s.mu.Lock()
	var done []uint16
	for sid, t := range s.subs {
		if t == topic {
			done = append(done, sid)
		}
	}
	s.mu.Unlock()

	err = s.async(func(ctx context.Context) {
		ua, err := s.client.Unsubscribe(ctx, &paho.Unsubscribe{Topics: []string{topic}})
		ev := Event{Type: EventUnsubAck, PacketID: id, Err: err}
		if err != nil {
			log.ErrorErr(log.CatMQTT, "unsubscribe failed", err, "broker_id", s.broker.ID, "topic", topic)
			ev.Reasons = []byte{unspecifiedError}
		} else if ua != nil {
			ev.Reasons = ua.Reasons
		}

		for _, sid := range done {
			s.dropSub(sid)
		}
		s.ids.Release(id)
		s.emit(ev)
	})
	if err != nil {
		s.ids.Release(id)
		return 0, err
	}
	return id, nil
}

// Publish sends payload to topic. QoS 0 publishes have no packet id and
// produce no ack event; 0 is returned for them.
func (s *Session) Publish(topic string, payload []byte, qos domain.QoS, retain bool) (uint16, error) {
	var id uint16
	if qos > domain.AtMostOnce {
		var err error
		if id, err = s.ids.Acquire(); err != nil {
			return 0, err
		}
	}
	err := s.async(func(ctx context.Context) {
		pr, err := s.client.Publish(ctx, &paho.Publish{
			Topic:   topic,
			QoS:     byte(qos),
			Retain:  retain,
			Payload: payload,
		})
		if err != nil {
			log.ErrorErr(log.CatMQTT, "publish failed", err, "broker_id", s.broker.ID, "topic", topic)
		}
		if id == 0 {
			return
		}
		s.ids.Release(id)
		ev := Event{Type: EventPubAck, PacketID: id, Err: err}
		switch {
		case err != nil:
			ev.ReasonCode = unspecifiedError
		case pr != nil:
			ev.ReasonCode = pr.ReasonCode
		}
		s.emit(ev)
	})
	if err != nil {
		if id != 0 {
			s.ids.Release(id)
		}
		return 0, err
	}
	return id, nil
}

// Disconnect sends DISCONNECT and ends the session without a
// Disconnected event. Errors are returned for logging only.
func (s *Session) Disconnect() error {
	if !s.end() {
		return nil
	}
	err := s.client.Disconnect(&paho.Disconnect{ReasonCode: 0})
	s.finish()
	if err != nil {
		return fmt.Errorf("disconnect broker %d: %w", s.broker.ID, err)
	}
	return nil
}

// fail reports a transport failure once and ends the session. The session
// is already Closed when the Disconnected event is read.
func (s *Session) fail(err error) {
	s.failOnce.Do(func() {
		if !s.end() {
			return
		}
		log.ErrorErr(log.CatMQTT, "session failed", err, "broker_id", s.broker.ID)
		s.events <- Event{Type: EventDisconnected, Err: err}
		_ = s.client.Disconnect(&paho.Disconnect{ReasonCode: unspecifiedError})
		s.finish()
	})
}

// end marks the session closed and reports whether this call did it.
func (s *Session) end() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	s.closed = true
	return true
}

// finish cancels in-flight requests and closes Events once they are gone.
func (s *Session) finish() {
	s.cancel()
	go func() {
		s.wg.Wait()
		close(s.events)
	}()
}
