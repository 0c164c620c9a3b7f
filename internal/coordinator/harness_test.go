package coordinator

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/zjrosen/mqttdesk/internal/appdata"
	"github.com/zjrosen/mqttdesk/internal/domain"
	"github.com/zjrosen/mqttdesk/internal/intent"
	"github.com/zjrosen/mqttdesk/internal/mqtt"
	"github.com/zjrosen/mqttdesk/internal/store"
	"github.com/zjrosen/mqttdesk/internal/testutil"
)

// harness wires a coordinator to fakes. Tests drive it synchronously with
// do and await instead of running the loop.
type harness struct {
	t        *testing.T
	queue    *intent.Queue
	dialer   *testutil.FakeDialer
	registry *mqtt.Registry
	store    *store.Store
	sched    *testutil.RecordingScheduler
	clock    *testutil.FakeClock
	co       *Coordinator
}

func newHarness(t *testing.T, seed func(b *testutil.Builder)) *harness {
	t.Helper()
	st := testutil.NewTestStore(t)
	if seed != nil {
		b := testutil.NewBuilder(t, st)
		seed(b)
		b.Build()
	}
	res, err := st.Load(context.Background())
	require.NoError(t, err)

	h := &harness{
		t:      t,
		queue:  intent.NewQueue(),
		dialer: testutil.NewFakeDialer(nil),
		store:  st,
		sched:  testutil.NewRecordingScheduler(appdata.FromStore(res.Brokers, res.Histories)),
		clock:  testutil.NewFakeClock(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)),
	}
	h.registry = mqtt.NewRegistry(h.dialer, mqtt.Options{RequestTimeout: time.Second, ConnectTimeout: time.Second})
	h.co = New(h.queue, h.registry, st, h.sched, WithClock(h.clock))
	t.Cleanup(h.registry.CloseAll)
	return h
}

func (h *harness) do(it intent.Intent) error {
	return h.co.Process(context.Background(), it)
}

// await handles queued intents until one of kind was handled.
func (h *harness) await(kind intent.Kind) intent.Intent {
	h.t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	for {
		it, err := h.queue.Next(ctx)
		require.NoError(h.t, err, "waiting for %s", kind)
		_ = h.co.Process(ctx, it)
		if it.Kind() == kind {
			return it
		}
	}
}

// drain handles whatever is queued right now.
func (h *harness) drain() {
	for h.queue.Len() > 0 {
		it, err := h.queue.Next(context.Background())
		require.NoError(h.t, err)
		_ = h.co.Process(context.Background(), it)
	}
}

func (h *harness) broker(id int) domain.Broker {
	h.t.Helper()
	var b domain.Broker
	var ok bool
	h.sched.View(func(d *appdata.AppData) { b, ok = d.GetBroker(id) })
	require.True(h.t, ok, "broker %d missing", id)
	return b
}

// connect opens a session for id and handles its CONNACK.
func (h *harness) connect(id int) {
	h.t.Helper()
	require.NoError(h.t, h.do(intent.NewConnect(intent.SourceUser, h.broker(id))))
	h.await(intent.KindConnectAckSuccess)
}

// subscribe subscribes id to topic and handles the SUBACK.
func (h *harness) subscribe(id int, topic, qos string) uint16 {
	h.t.Helper()
	require.NoError(h.t, h.do(intent.NewSubscribe(intent.SourceUser, id, domain.SubscribeInput{Topic: topic, QoS: qos})))
	return h.await(intent.KindSubAck).(*intent.SubAck).PacketID
}

func (h *harness) view(f func(d *appdata.AppData)) {
	h.sched.View(f)
}

func (h *harness) checkInvariants() {
	h.t.Helper()
	h.view(func(d *appdata.AppData) { require.NoError(h.t, d.Check()) })
}

func oneBroker(b *testutil.Builder) {
	b.WithBroker(0, testutil.Name("a"), testutil.ClientID("c1"))
}
