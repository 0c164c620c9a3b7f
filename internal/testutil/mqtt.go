package testutil

import (
	"context"
	"sync"

	"github.com/eclipse/paho.golang/paho"

	"github.com/zjrosen/mqttdesk/internal/domain"
	"github.com/zjrosen/mqttdesk/internal/mqtt"
)

// FakeClient is an in-memory mqtt.Client that acknowledges every request.
type FakeClient struct {
	mu          sync.Mutex
	connack     *paho.Connack
	connectErr  error
	subReasons  []byte
	subErr      error
	pubErr      error
	subscribes  []*paho.Subscribe
	unsubs      []*paho.Unsubscribe
	publishes   []*paho.Publish
	disconnects int
}

var _ mqtt.Client = (*FakeClient)(nil)

// NewFakeClient returns a client that accepts the connection.
func NewFakeClient() *FakeClient {
	return &FakeClient{connack: &paho.Connack{}}
}

// RefuseConnect makes the handshake fail with err.
func (f *FakeClient) RefuseConnect(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.connectErr = err
}

// SubReasons sets the SUBACK reason codes; nil grants the requested QoS.
func (f *FakeClient) SubReasons(reasons []byte) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.subReasons = reasons
}

// FailSubscribe makes SUBSCRIBE requests fail with err.
func (f *FakeClient) FailSubscribe(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.subErr = err
}

// FailPublish makes PUBLISH requests fail with err.
func (f *FakeClient) FailPublish(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pubErr = err
}

func (f *FakeClient) Connect(_ context.Context, _ *paho.Connect) (*paho.Connack, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.connack, f.connectErr
}

func (f *FakeClient) Subscribe(_ context.Context, s *paho.Subscribe) (*paho.Suback, error) {
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

func (f *FakeClient) Unsubscribe(_ context.Context, u *paho.Unsubscribe) (*paho.Unsuback, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.unsubs = append(f.unsubs, u)
	return &paho.Unsuback{Reasons: []byte{0}}, nil
}

func (f *FakeClient) Publish(_ context.Context, p *paho.Publish) (*paho.PublishResponse, error) {
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

func (f *FakeClient) Disconnect(_ *paho.Disconnect) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.disconnects++
	return nil
}

// Subscribed returns the topic filters of every SUBSCRIBE sent.
func (f *FakeClient) Subscribed() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []string
	for _, s := range f.subscribes {
		for _, sub := range s.Subscriptions {
			out = append(out, sub.Topic)
		}
	}
	return out
}

// Unsubscribed returns the topic filters of every UNSUBSCRIBE sent.
func (f *FakeClient) Unsubscribed() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []string
	for _, u := range f.unsubs {
		out = append(out, u.Topics...)
	}
	return out
}

// Published returns every PUBLISH sent.
func (f *FakeClient) Published() []*paho.Publish {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]*paho.Publish(nil), f.publishes...)
}

// Disconnects counts DISCONNECT packets sent.
func (f *FakeClient) Disconnects() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.disconnects
}

// FakeDialer hands out a fresh FakeClient per dial and keeps the handlers
// so tests can play the broker's side.
type FakeDialer struct {
	mu       sync.Mutex
	dialErr  error
	setup    func(*FakeClient)
	clients  map[int]*FakeClient
	handlers map[int]mqtt.Handlers
	dials    map[int]int
}

var _ mqtt.Dialer = (*FakeDialer)(nil)

// NewFakeDialer returns a dialer whose clients are passed to setup (if not
// nil) before use.
func NewFakeDialer(setup func(*FakeClient)) *FakeDialer {
	return &FakeDialer{
		setup:    setup,
		clients:  map[int]*FakeClient{},
		handlers: map[int]mqtt.Handlers{},
		dials:    map[int]int{},
	}
}

// FailDial makes later dials fail with err.
func (d *FakeDialer) FailDial(err error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.dialErr = err
}

func (d *FakeDialer) Dial(_ context.Context, b domain.Broker, h mqtt.Handlers) (mqtt.Client, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.dials[b.ID]++
	if d.dialErr != nil {
		return nil, d.dialErr
	}
	c := NewFakeClient()
	if d.setup != nil {
		d.setup(c)
	}
	d.clients[b.ID] = c
	d.handlers[b.ID] = h
	return c, nil
}

// Client returns the latest client dialed for id.
func (d *FakeDialer) Client(id int) *FakeClient {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.clients[id]
}

// Dials counts dial attempts for id.
func (d *FakeDialer) Dials(id int) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.dials[id]
}

// Deliver plays an inbound PUBLISH on the latest session of id.
func (d *FakeDialer) Deliver(id int, topic string, payload []byte, qos domain.QoS) {
	d.mu.Lock()
	h := d.handlers[id]
	d.mu.Unlock()
	h.OnPublish(&paho.Publish{Topic: topic, Payload: payload, QoS: byte(qos)})
}

// Drop fails the transport of the latest session of id.
func (d *FakeDialer) Drop(id int, err error) {
	d.mu.Lock()
	h := d.handlers[id]
	d.mu.Unlock()
	h.OnClientError(err)
}
