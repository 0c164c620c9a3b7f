package mqtt

import (
	"context"
	"fmt"
	"slices"

	"github.com/zjrosen/mqttdesk/internal/domain"
	"github.com/zjrosen/mqttdesk/internal/log"
)

// Registry maps broker ids to live sessions. It belongs to the coordinator
// and is not safe for concurrent use.
type Registry struct {
	dialer   Dialer
	opts     Options
	sessions map[int]*Session
}

// NewRegistry creates an empty registry.
func NewRegistry(dialer Dialer, opts Options) *Registry {
	return &Registry{
		dialer:   dialer,
		opts:     opts.withDefaults(),
		sessions: make(map[int]*Session),
	}
}

// Connect dials b and starts the MQTT handshake. The returned session
// reports the CONNACK (or the failure) on its event channel. An existing
// session for b.ID is disconnected first.
func (r *Registry) Connect(ctx context.Context, b domain.Broker) (*Session, error) {
	if old, ok := r.sessions[b.ID]; ok {
		log.Info(log.CatMQTT, "replacing session", "broker_id", b.ID)
		r.Remove(b.ID)
		if err := old.Disconnect(); err != nil {
			log.ErrorErr(log.CatMQTT, "disconnect of replaced session failed", err, "broker_id", b.ID)
		}
	}

	s := newSession(b, r.opts)
	dialCtx, cancel := context.WithTimeout(ctx, r.opts.ConnectTimeout)
	defer cancel()
	client, err := r.dialer.Dial(dialCtx, b, s.handlers())
	if err != nil {
		s.cancel()
		return nil, fmt.Errorf("connect broker %d: %w", b.ID, err)
	}
	s.client = client
	if err := s.start(); err != nil {
		return nil, err
	}
	r.sessions[b.ID] = s
	return s, nil
}

// Get returns the session of id.
func (r *Registry) Get(id int) (*Session, bool) {
	s, ok := r.sessions[id]
	return s, ok
}

func (r *Registry) session(id int) (*Session, error) {
	s, ok := r.sessions[id]
	if !ok {
		return nil, fmt.Errorf("broker %d: %w", id, ErrNoSession)
	}
	return s, nil
}

// Subscribe subscribes topic on the session of id.
func (r *Registry) Subscribe(_ context.Context, id int, topic string, qos domain.QoS) (uint16, error) {
	s, err := r.session(id)
	if err != nil {
		return 0, err
	}
	return s.Subscribe(topic, qos)
}

// Unsubscribe unsubscribes topic on the session of id.
func (r *Registry) Unsubscribe(_ context.Context, id int, topic string) (uint16, error) {
	s, err := r.session(id)
	if err != nil {
		return 0, err
	}
	return s.Unsubscribe(topic)
}

// Publish publishes on the session of id.
func (r *Registry) Publish(_ context.Context, id int, topic string, payload []byte, qos domain.QoS, retain bool) (uint16, error) {
	s, err := r.session(id)
	if err != nil {
		return 0, err
	}
	return s.Publish(topic, payload, qos, retain)
}

// Disconnect removes the session of id and disconnects it. A missing
// session is not an error.
func (r *Registry) Disconnect(id int) error {
	s, ok := r.sessions[id]
	if !ok {
		return nil
	}
	r.Remove(id)
	return s.Disconnect()
}

// Remove forgets the session of id without touching the connection.
func (r *Registry) Remove(id int) {
	delete(r.sessions, id)
}

// Len returns the number of sessions.
func (r *Registry) Len() int {
	return len(r.sessions)
}

// IDs returns the broker ids with a session, ascending.
func (r *Registry) IDs() []int {
	ids := make([]int, 0, len(r.sessions))
	for id := range r.sessions {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

// CloseAll disconnects every session.
func (r *Registry) CloseAll() {
	for _, id := range r.IDs() {
		if err := r.Disconnect(id); err != nil {
			log.ErrorErr(log.CatMQTT, "disconnect failed", err, "broker_id", id)
		}
	}
}
