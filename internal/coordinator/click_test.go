package coordinator

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/zjrosen/mqttdesk/internal/appdata"
	"github.com/zjrosen/mqttdesk/internal/domain"
	"github.com/zjrosen/mqttdesk/internal/intent"
	"github.com/zjrosen/mqttdesk/internal/testutil"
)

func twoBrokers(b *testutil.Builder) {
	b.WithBroker(0, testutil.Name("a")).WithBroker(1, testutil.Name("b"))
}

// clickAt advances the clock to offset from the start of the test, handles
// any timer intents that came due and then clicks broker id.
func (h *harness) clickAt(start time.Time, offset time.Duration, id int) {
	h.t.Helper()
	h.clock.Advance(start.Add(offset).Sub(h.clock.Now()))
	h.drain()
	require.NoError(h.t, h.do(intent.NewClickBroker(intent.SourceUser, id)))
}

func TestClick_DoubleClickOpensTab(t *testing.T) {
	h := newHarness(t, twoBrokers)
	start := h.clock.Now()

	h.clickAt(start, 0, 0)
	h.clickAt(start, 100*time.Millisecond, 0)

	require.Equal(t, []string{"click_broker", "db_click_broker"}, h.sched.Names())
	h.view(func(d *appdata.AppData) {
		require.Equal(t, []int{0}, d.BrokerTabs)
		b, _ := d.GetBroker(0)
		require.True(t, b.Selected)
	})

	h.clock.Advance(time.Second)
	h.drain()
	require.Equal(t, []string{"click_broker", "db_click_broker"}, h.sched.Names())
	require.Empty(t, h.co.pendingClick)
}

func TestClick_SpacedClicksAreSingles(t *testing.T) {
	h := newHarness(t, twoBrokers)
	start := h.clock.Now()

	h.clickAt(start, 0, 0)
	h.clickAt(start, 300*time.Millisecond, 0)

	require.Equal(t, []string{"click_broker", "click_broker"}, h.sched.Names())
	h.view(func(d *appdata.AppData) { require.Empty(t, d.BrokerTabs) })
}

func TestClick_LateCheckDoesNotSwallowNewClick(t *testing.T) {
	h := newHarness(t, twoBrokers)
	start := h.clock.Now()

	// Clicks at 0 and 100 form a double; the click at 200 starts a new
	// window that the timer of the first click must not close.
	h.clickAt(start, 0, 0)
	h.clickAt(start, 100*time.Millisecond, 0)
	h.clickAt(start, 200*time.Millisecond, 0)
	h.clickAt(start, 300*time.Millisecond, 0)

	require.Equal(t, []string{"click_broker", "db_click_broker", "click_broker", "db_click_broker"}, h.sched.Names())
}

func TestClick_OtherBrokerLeavesPendingAlone(t *testing.T) {
	h := newHarness(t, twoBrokers)
	start := h.clock.Now()

	h.clickAt(start, 0, 0)
	h.clickAt(start, 50*time.Millisecond, 1)
	h.clickAt(start, 100*time.Millisecond, 0)

	require.Equal(t, []string{"click_broker", "click_broker", "db_click_broker"}, h.sched.Names())
	require.Contains(t, h.co.pendingClick, 1)
}

func TestClick_DuplicateCheckIsNoop(t *testing.T) {
	h := newHarness(t, twoBrokers)

	require.NoError(t, h.do(intent.NewDbClickCheck(intent.SourceTimer, 0)))
	require.NoError(t, h.do(intent.NewDbClickCheck(intent.SourceTimer, 0)))
	require.Empty(t, h.sched.Names())
	require.Empty(t, h.co.pendingClick)
}

func TestClick_WindowProperty(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		h := newHarness(t, twoBrokers)
		start := h.clock.Now()
		gap := time.Duration(rapid.IntRange(1, 600).Draw(rt, "gap_ms")) * time.Millisecond

		h.clickAt(start, 0, 0)
		h.clickAt(start, gap, 0)

		if gap < DefaultDoubleClickWindow {
			require.Equal(rt, 1, h.sched.Count("db_click_broker"))
			require.Equal(rt, 1, h.sched.Count("click_broker"))
		} else {
			require.Zero(rt, h.sched.Count("db_click_broker"))
			require.Equal(rt, 2, h.sched.Count("click_broker"))
		}
	})
}

func TestClick_HistoryDoubleClickResubscribes(t *testing.T) {
	h := newHarness(t, func(b *testutil.Builder) { b.WithStandardBrokers() })
	h.connect(0)
	var his domain.SubscribeHis
	h.view(func(d *appdata.AppData) { his = d.History(0).Entries[0] })

	require.NoError(t, h.do(intent.NewClickSubscribeHis(intent.SourceUser, his)))
	h.view(func(d *appdata.AppData) {
		require.Equal(t, "sensors/#", d.SubscribeInput[0].Topic)
		require.Equal(t, "1", d.SubscribeInput[0].QoS)
	})

	h.clock.Advance(100 * time.Millisecond)
	require.NoError(t, h.do(intent.NewClickSubscribeHis(intent.SourceUser, his)))
	require.Nil(t, h.co.pendingHisClick)
	require.Equal(t, 1, h.sched.Count("subscribe"))

	h.await(intent.KindSubAck)
	h.view(func(d *appdata.AppData) {
		require.Len(t, d.SubscribeTopics[0], 1)
		require.Equal(t, "sensors/#", d.SubscribeTopics[0][0].Topic)
		require.Equal(t, domain.SubActive, d.SubscribeTopics[0][0].Status)
	})
	require.Equal(t, []string{"sensors/#"}, h.dialer.Client(0).Subscribed())
}

func TestClick_HistoryOnePendingGlobally(t *testing.T) {
	h := newHarness(t, func(b *testutil.Builder) { b.WithStandardBrokers() })
	var first, second domain.SubscribeHis
	h.view(func(d *appdata.AppData) {
		first = d.History(0).Entries[0]
		second = d.History(0).Entries[1]
	})

	require.NoError(t, h.do(intent.NewClickSubscribeHis(intent.SourceUser, first)))
	h.clock.Advance(50 * time.Millisecond)
	require.NoError(t, h.do(intent.NewClickSubscribeHis(intent.SourceUser, second)))
	require.Equal(t, first.ID, h.co.pendingHisClick.ID)
	require.Equal(t, 2, h.sched.Count("click_subscribe_his"))
	h.view(func(d *appdata.AppData) {
		require.Equal(t, second.Topic, d.SubscribeInput[0].Topic, "the later click still fills the form")
	})

	h.clock.Advance(DefaultDoubleClickWindow)
	h.drain()
	require.Nil(t, h.co.pendingHisClick)
	require.Zero(t, h.sched.Count("subscribe"))
}

func TestClick_HistoryCheckOfOtherEntryIsNoop(t *testing.T) {
	h := newHarness(t, func(b *testutil.Builder) { b.WithStandardBrokers() })
	var first, second domain.SubscribeHis
	h.view(func(d *appdata.AppData) {
		first = d.History(0).Entries[0]
		second = d.History(0).Entries[1]
	})

	require.NoError(t, h.do(intent.NewClickSubscribeHis(intent.SourceUser, first)))
	h.clock.Advance(time.Second)
	require.NoError(t, h.do(intent.NewDbClickCheckSubscribeHis(intent.SourceTimer, second)))
	require.NotNil(t, h.co.pendingHisClick)
}
