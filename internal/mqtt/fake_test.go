package mqtt

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/eclipse/paho.golang/paho"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/zjrosen/mqttdesk/internal/domain"
)

// fakeClient is an in-memory Client. Requests wait on gate (when set) so
// tests can observe the packet id before the ack arrives.
type fakeClient struct {
	mu          sync.Mutex
	gate        chan struct{}
	connack     *paho.Connack
	connectErr  error
	subReasons  []byte
	subErr      error
	pubErr      error
	connects    []*paho.Connect
	subscribes  []*paho.Subscribe
	unsubs      []*paho.Unsubscribe
	publishes   []*paho.Publish
	disconnects []*paho.Disconnect
}

var _ Client = (*fakeClient)(nil)

func newFakeClient() *fakeClient {
	return &fakeClient{connack: &paho.Connack{}, subReasons: nil}
}

func (f *fakeClient) wait(ctx context.Context) error {
	f.mu.Lock()
	gate := f.gate
	f.mu.Unlock()
	if gate == nil {
		return nil
	}
	select {
	case <-gate:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (f *fakeClient) Connect(ctx context.Context, cp *paho.Connect) (*paho.Connack, error) {
	f.mu.Lock()
	f.connects = append(f.connects, cp)
	f.mu.Unlock()
	return f.connack, f.connectErr
}

func (f *fakeClient) Subscribe(ctx context.Context, s *paho.Subscribe) (*paho.Suback, error) {
	if err := f.wait(ctx); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.subscribes = append(f.subscribes, s)
	if f.subErr != nil {
		return nil, f.subErr
	}
	reasons := f.subReasons
	if reasons == nil {
		reasons = []byte{s.Subscriptions[0].QoS}
	}
	return &paho.Suback{Reasons: reasons}, nil
}

func (f *fakeClient) Unsubscribe(ctx context.Context, u *paho.Unsubscribe) (*paho.Unsuback, error) {
	if err := f.wait(ctx); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.unsubs = append(f.unsubs, u)
	return &paho.Unsuback{Reasons: []byte{0}}, nil
}

func (f *fakeClient) Publish(ctx context.Context, p *paho.Publish) (*paho.PublishResponse, error) {
	if err := f.wait(ctx); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.publishes = append(f.publishes, p)
	if f.pubErr != nil {
		return nil, f.pubErr
	}
	if p.QoS == 0 {
		return nil, nil
	}
	return &paho.PublishResponse{}, nil
}

func (f *fakeClient) Disconnect(d *paho.Disconnect) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.disconnects = append(f.disconnects, d)
	return nil
}

func (f *fakeClient) disconnectCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.disconnects)
}

// mockDialer records the handlers of every dial.
type mockDialer struct {
	mock.Mock
	mu       sync.Mutex
	handlers map[int]Handlers
}

func (m *mockDialer) Dial(_ context.Context, b domain.Broker, h Handlers) (Client, error) {
	m.mu.Lock()
	if m.handlers == nil {
		m.handlers = map[int]Handlers{}
	}
	m.handlers[b.ID] = h
	m.mu.Unlock()

	args := m.Called(b.ID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(Client), args.Error(1)
}

func (m *mockDialer) handlersFor(id int) Handlers {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.handlers[id]
}

var errBoom = errors.New("boom")

func testOptions() Options {
	return Options{RequestTimeout: time.Second, ConnectTimeout: time.Second}
}

func nextEvent(t *testing.T, s *Session) Event {
	t.Helper()
	select {
	case ev, ok := <-s.Events():
		require.True(t, ok, "event channel closed")
		return ev
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for session event")
		return Event{}
	}
}

func requireClosed(t *testing.T, s *Session) {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		select {
		case _, ok := <-s.Events():
			if !ok {
				return
			}
		case <-deadline:
			t.Fatal("event channel not closed")
		}
	}
}

// connected returns a registry with a session for broker 0 whose CONNACK
// was already consumed.
func connected(t *testing.T) (*Registry, *Session, *fakeClient, *mockDialer) {
	t.Helper()
	fc := newFakeClient()
	d := &mockDialer{}
	d.On("Dial", 0).Return(fc, nil)
	r := NewRegistry(d, testOptions())
	s, err := r.Connect(context.Background(), domain.NewBroker(0))
	require.NoError(t, err)
	require.Equal(t, EventConnAck, nextEvent(t, s).Type)
	return r, s, fc, d
}
