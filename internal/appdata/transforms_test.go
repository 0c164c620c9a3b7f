package appdata

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/zjrosen/mqttdesk/internal/domain"
)

func withBrokers(n int) *AppData {
	brokers := make([]domain.Broker, n)
	for i := range brokers {
		brokers[i] = domain.NewBroker(i)
	}
	return FromStore(brokers, nil)
}

func apply(d *AppData, ts ...Transform) *AppData {
	for _, t := range ts {
		t(d)
	}
	return d
}

func TestFromStore(t *testing.T) {
	h := domain.NewSubscribeHistory(1)
	h.Append(domain.SubscribeHis{Topic: "a"})
	d := FromStore([]domain.Broker{domain.NewBroker(0), domain.NewBroker(1)}, map[int]*domain.SubscribeHistory{1: h})

	require.Equal(t, []int{0, 1}, d.BrokerIDs())
	require.True(t, d.Brokers[0].Stored)
	require.Empty(t, d.History(0).Entries)
	require.Len(t, d.History(1).Entries, 1)
	require.Equal(t, NoTab, d.SelectedTab)
	require.NoError(t, d.Check())
}

func TestAddEditSave(t *testing.T) {
	d := withBrokers(2)
	apply(d, AddBroker())
	b, ok := d.GetBroker(2)
	require.True(t, ok)
	require.False(t, b.Stored)
	require.True(t, b.Selected)
	require.False(t, d.Brokers[0].Selected)

	edited := b
	edited.Name = "a"
	edited.Addr = "127.0.0.1"
	edited.Port = 1883
	edited.ClientID = "c1"
	apply(d, EditBroker(edited))
	b, _ = d.GetBroker(2)
	require.Equal(t, "a", b.Name)
	require.True(t, b.Selected, "selection survives edits")

	apply(d, SaveBroker(b))
	b, _ = d.GetBroker(2)
	require.True(t, b.Stored)

	// An identical edit keeps the stored flag.
	apply(d, EditBroker(b))
	b, _ = d.GetBroker(2)
	require.True(t, b.Stored)

	// A save that raced with another edit does not mark the broker stored.
	stale := b
	edited.Name = "b"
	apply(d, EditBroker(edited), SaveBroker(stale))
	b, _ = d.GetBroker(2)
	require.False(t, b.Stored)
	require.NoError(t, d.Check())
}

func TestEditUnknownBrokerIsNoop(t *testing.T) {
	d := withBrokers(1)
	apply(d, EditBroker(domain.NewBroker(9)), SaveBroker(domain.NewBroker(9)), ClickBroker(9), Connected(9))
	require.Len(t, d.Brokers, 1)
	require.Empty(t, d.TabStatuses)
	require.NoError(t, d.Check())
}

func TestUpdateBroker(t *testing.T) {
	d := withBrokers(1)
	require.True(t, d.UpdateBroker(0, func(b *domain.Broker) { b.Name = "x" }))
	require.False(t, d.UpdateBroker(5, func(b *domain.Broker) { b.Name = "x" }))
	b, _ := d.GetBroker(0)
	require.Equal(t, "x", b.Name)
}

func TestClickSelectsOne(t *testing.T) {
	d := withBrokers(3)
	apply(d, ClickBroker(1))
	sel, ok := d.SelectedBroker()
	require.True(t, ok)
	require.Equal(t, 1, sel.ID)
	apply(d, ClickBroker(2))
	sel, _ = d.SelectedBroker()
	require.Equal(t, 2, sel.ID)
	require.False(t, d.Brokers[1].Selected)
	require.Empty(t, d.BrokerTabs, "a single click does not open a tab")
}

func TestDbClickOpensTabOnce(t *testing.T) {
	d := withBrokers(2)
	apply(d, DbClickBroker(1), DbClickBroker(1))
	require.Equal(t, []int{1}, d.BrokerTabs)
	require.Equal(t, 1, d.SelectedTab)
	require.Equal(t, "0", d.SubscribeInput[1].QoS)
	require.NoError(t, d.Check())
}

func TestConnectionLifecycle(t *testing.T) {
	d := withBrokers(1)
	apply(d, InitConnection(0))
	require.Equal(t, domain.TabStatus{TryConnect: true}, d.TabStatus(0))
	require.Contains(t, d.BrokerTabs, 0)
	require.True(t, d.TabStatus(0).Visible())

	apply(d, Connected(0), Connected(0))
	require.Equal(t, domain.TabStatus{Connected: true}, d.TabStatus(0))

	apply(d, SubscribeByInput(0, "t/#", domain.AtLeastOnce, domain.PayloadText, 1))
	apply(d, Disconnect(0))
	require.Equal(t, domain.TabStatus{}, d.TabStatus(0))
	require.Empty(t, d.SubscribeTopics[0])
	require.Equal(t, []int{0}, d.BrokerTabs, "disconnect keeps the tab")
	require.False(t, d.TabStatus(0).Visible())

	apply(d, InitConnection(0), Reconnect(0))
	require.Equal(t, domain.TabStatus{}, d.TabStatus(0))
	require.NoError(t, d.Check())
}

func TestInitConnectionForgetsPreviousSession(t *testing.T) {
	d := withBrokers(1)
	apply(d, InitConnection(0), Connected(0),
		SubscribeByInput(0, "a", 0, domain.PayloadText, 1), SubAck(0, 1, []byte{0}),
		Public(0, domain.Published("p", nil, domain.AtLeastOnce, false, 2, time.Now())),
	)

	apply(d, InitConnection(0), SubscribeByInput(0, "b", 0, domain.PayloadText, 1))
	require.Len(t, d.SubscribeTopics[0], 1)
	require.Equal(t, "b", d.SubscribeTopics[0][0].Topic)
	require.Equal(t, domain.SubSubscribing, d.SubscribeTopics[0][0].Status)
	require.Equal(t, domain.PubLost, d.Msgs[0][0].Status)

	apply(d, PubAck(0, 2))
	require.Equal(t, domain.PubLost, d.Msgs[0][0].Status, "acks of the new session do not settle old publishes")
	require.NoError(t, d.Check())
}

func TestCloseConnectionAndTab(t *testing.T) {
	d := withBrokers(3)
	apply(d, InitConnection(0), InitConnection(1), InitConnection(2), SelectTab(1))
	apply(d, Public(1, domain.Published("t", []byte("x"), domain.AtMostOnce, false, 0, time.Now())))
	apply(d, CloseConnection(1))
	require.Empty(t, d.Msgs[1])
	require.False(t, d.TabStatus(1).Visible())
	require.Equal(t, []int{0, 1, 2}, d.BrokerTabs)

	apply(d, CloseTab(1))
	require.Equal(t, []int{0, 2}, d.BrokerTabs)
	require.Equal(t, 2, d.SelectedTab, "the next tab takes focus")
	_, ok := d.TabStatuses[1]
	require.False(t, ok)

	apply(d, CloseTab(2))
	require.Equal(t, 0, d.SelectedTab)
	apply(d, CloseTab(0), CloseTab(0))
	require.Equal(t, NoTab, d.SelectedTab)
	require.NoError(t, d.Check())
}

func TestSelectTabRequiresOpenTab(t *testing.T) {
	d := withBrokers(2)
	apply(d, DbClickBroker(0), SelectTab(1))
	require.Equal(t, 0, d.SelectedTab)
}

func TestDeleteBrokerDropsEverything(t *testing.T) {
	d := withBrokers(2)
	apply(d, InitConnection(1), Connected(1),
		SubscribeByInput(1, "a", 0, domain.PayloadText, 3),
		AppendHistory(1, domain.SubscribeHis{ID: 0, Topic: "a"}),
	)
	apply(d, DeleteBroker(1), DeleteBroker(1))
	_, ok := d.GetBroker(1)
	require.False(t, ok)
	require.Empty(t, d.BrokerTabs)
	require.Equal(t, NoTab, d.SelectedTab)
	require.NoError(t, d.Check())
}

func TestSubscribeAckUnsubscribe(t *testing.T) {
	d := withBrokers(1)
	apply(d, InitConnection(0), Connected(0))
	apply(d, SubscribeByInput(0, "t/#", domain.AtLeastOnce, domain.PayloadText, 7))
	apply(d, SubscribeByInput(0, "t/#", domain.AtLeastOnce, domain.PayloadText, 7))
	require.Len(t, d.SubscribeTopics[0], 1, "same packet id is recorded once")
	require.Equal(t, domain.SubSubscribing, d.SubscribeTopics[0][0].Status)

	apply(d, SubAck(0, 7, []byte{0x01}))
	before := append([]domain.SubscribeTopic(nil), d.SubscribeTopics[0]...)
	apply(d, SubAck(0, 7, []byte{0x01}))
	require.Equal(t, before, d.SubscribeTopics[0], "duplicate suback is a no-op")
	require.Equal(t, domain.SubActive, d.SubscribeTopics[0][0].Status)

	apply(d, SubAck(0, 99, nil))
	require.Equal(t, before, d.SubscribeTopics[0], "unknown packet id leaves state unchanged")

	apply(d, ReceivePublic(0, domain.Received("t/x", []byte("hello"), domain.AtLeastOnce, false, time.Time{})))
	require.Len(t, d.Msgs[0], 1)
	require.Equal(t, "hello", string(d.Msgs[0][0].Payload))
	require.False(t, d.Msgs[0][0].Time.IsZero())

	apply(d, ToUnsubscribe(0, 7), Unsubscribing(0, 7, 12))
	require.Equal(t, domain.SubUnsubscribing, d.SubscribeTopics[0][0].Status)
	require.Equal(t, uint16(12), d.SubscribeTopics[0][0].UnsubPacketID)

	apply(d, UnsubscribeAck(0, 12), UnsubscribeAck(0, 12))
	require.Empty(t, d.SubscribeTopics[0])

	apply(d, ReceivePublic(0, domain.Received("t/x", []byte("late"), domain.AtLeastOnce, false, time.Now())))
	require.Len(t, d.Msgs[0], 1, "no messages after the subscription is gone")
	require.NoError(t, d.Check())
}

func TestUnsubscribeAckDropsWholeFilter(t *testing.T) {
	d := withBrokers(1)
	apply(d, InitConnection(0),
		SubscribeByInput(0, "a", 0, domain.PayloadText, 1), SubAck(0, 1, []byte{0}),
		SubscribeByInput(0, "a", 0, domain.PayloadText, 2), SubAck(0, 2, []byte{0}),
		SubscribeByInput(0, "b", 0, domain.PayloadText, 3), SubAck(0, 3, []byte{0}),
		ToUnsubscribe(0, 1), Unsubscribing(0, 1, 4),
		SubscribeByInput(0, "a", 0, domain.PayloadText, 5),
		UnsubscribeAck(0, 4),
	)
	topics := d.SubscribeTopics[0]
	require.Len(t, topics, 2)
	require.Equal(t, "b", topics[0].Topic)
	require.Equal(t, uint16(5), topics[1].PacketID, "a subscribe sent after the unsubscribe stays")
	require.Equal(t, domain.SubSubscribing, topics[1].Status)
	require.NoError(t, d.Check())
}

func TestSubAckFailureCode(t *testing.T) {
	d := withBrokers(1)
	apply(d, InitConnection(0),
		Subscribe(0, domain.SubscribeHis{Topic: "secret/#", QoS: domain.ExactlyOnce}, 4),
		SubAck(0, 4, []byte{0x87}),
	)
	require.Equal(t, domain.SubFailed, d.SubscribeTopics[0][0].Status)

	apply(d, ReceivePublic(0, domain.Received("secret/x", []byte("x"), 0, false, time.Now())))
	require.Empty(t, d.Msgs[0], "failed subscriptions do not receive")
}

func TestPublishAck(t *testing.T) {
	d := withBrokers(1)
	apply(d, InitConnection(0), Connected(0))
	apply(d,
		Public(0, domain.Published("a", []byte("0"), domain.AtMostOnce, false, 0, time.Now())),
		Public(0, domain.Published("a", []byte("1"), domain.AtLeastOnce, false, 5, time.Now())),
	)
	require.Equal(t, domain.PubAcked, d.Msgs[0][0].Status)
	require.Equal(t, domain.PubSending, d.Msgs[0][1].Status)

	apply(d, PubAck(0, 5), PubAck(0, 5), PubAck(0, 6))
	require.Equal(t, domain.PubAcked, d.Msgs[0][1].Status)
	require.Len(t, d.Msgs[0], 2)
}

func TestMessagesAreBounded(t *testing.T) {
	d := withBrokers(1)
	apply(d, InitConnection(0), SubscribeByInput(0, "#", 0, domain.PayloadText, 1), SubAck(0, 1, []byte{0}))
	for i := 0; i < MaxMessages+10; i++ {
		apply(d, ReceivePublic(0, domain.Received("x", []byte{byte(i)}, 0, false, time.Now())))
	}
	require.Len(t, d.Msgs[0], MaxMessages)
	require.Equal(t, byte(10), d.Msgs[0][0].Payload[0])
}

func TestHistoryTransforms(t *testing.T) {
	d := withBrokers(1)
	his := domain.SubscribeHis{ID: 0, Topic: "a", QoS: 1, PayloadType: domain.PayloadJSON}
	apply(d, AppendHistory(0, his), AppendHistory(0, his))
	require.Len(t, d.History(0).Entries, 1)
	require.Equal(t, 0, d.History(0).Entries[0].BrokerID)

	apply(d, RemoveHistory(0, 0), RemoveHistory(0, 0), RemoveHistory(3, 0))
	require.Empty(t, d.History(0).Entries)
}

func TestInputs(t *testing.T) {
	d := withBrokers(1)
	apply(d, SetSubscribeInput(0, domain.SubscribeInput{Topic: "x", QoS: "2"}), SetPublicInput(4, domain.PublicInput{}))
	require.Equal(t, "x", d.SubscribeInput[0].Topic)
	require.NoError(t, d.Check())
}

func TestCheckReportsViolations(t *testing.T) {
	d := withBrokers(1)
	d.Msgs[5] = nil
	d.BrokerTabs = []int{0, 0}
	d.SelectedTab = 3
	d.TabStatuses[0] = domain.TabStatus{TryConnect: true, Connected: true}
	d.SubscribeTopics[0] = []domain.SubscribeTopic{{PacketID: 1}, {PacketID: 1}}
	err := d.Check()
	require.Error(t, err)
	for _, want := range []string{"msgs: id 5", "duplicate id 0", "selected tab 3", "connected while still trying", "duplicate packet id 1"} {
		require.ErrorContains(t, err, want)
	}
}

// Any sequence of transforms keeps the invariants.
func TestTransformsPreserveInvariants(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		d := withBrokers(rapid.IntRange(0, 3).Draw(t, "brokers"))
		id := rapid.IntRange(0, 5)
		pk := rapid.Uint16Range(1, 8)
		steps := rapid.IntRange(1, 60).Draw(t, "steps")
		for i := 0; i < steps; i++ {
			var tr Transform
			switch rapid.IntRange(0, 20).Draw(t, "op") {
			case 0:
				tr = AddBroker()
			case 1:
				tr = DeleteBroker(id.Draw(t, "id"))
			case 2:
				tr = ClickBroker(id.Draw(t, "id"))
			case 3:
				tr = DbClickBroker(id.Draw(t, "id"))
			case 4:
				tr = InitConnection(id.Draw(t, "id"))
			case 5:
				tr = Connected(id.Draw(t, "id"))
			case 6:
				tr = Disconnect(id.Draw(t, "id"))
			case 7:
				tr = Reconnect(id.Draw(t, "id"))
			case 8:
				tr = CloseConnection(id.Draw(t, "id"))
			case 9:
				tr = CloseTab(id.Draw(t, "id"))
			case 10:
				tr = SelectTab(id.Draw(t, "id"))
			case 11:
				tr = SubscribeByInput(id.Draw(t, "id"), "t/#", 1, domain.PayloadText, pk.Draw(t, "pk"))
			case 12:
				tr = SubAck(id.Draw(t, "id"), pk.Draw(t, "pk"), []byte{rapid.Byte().Draw(t, "reason")})
			case 13:
				tr = ToUnsubscribe(id.Draw(t, "id"), pk.Draw(t, "pk"))
			case 14:
				tr = Unsubscribing(id.Draw(t, "id"), pk.Draw(t, "pk"), pk.Draw(t, "unsub_pk"))
			case 15:
				tr = UnsubscribeAck(id.Draw(t, "id"), pk.Draw(t, "unsub_pk"))
			case 16:
				tr = Public(id.Draw(t, "id"), domain.Published("t/x", nil, 1, false, pk.Draw(t, "pk"), time.Now()))
			case 17:
				tr = PubAck(id.Draw(t, "id"), pk.Draw(t, "pk"))
			case 18:
				tr = ReceivePublic(id.Draw(t, "id"), domain.Received("t/x", nil, 1, false, time.Now()))
			case 19:
				tr = AppendHistory(id.Draw(t, "id"), domain.SubscribeHis{ID: rapid.IntRange(0, 3).Draw(t, "his"), Topic: "a"})
			default:
				tr = SetSubscribeInput(id.Draw(t, "id"), domain.SubscribeInput{Topic: "x"})
			}
			tr(d)
			if err := d.Check(); err != nil {
				t.Fatalf("step %d: %v", i, err)
			}
		}
	})
}

// Connected after InitConnection always leaves try_connect false.
func TestConnectedClearsTryConnect(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		d := withBrokers(1)
		n := rapid.IntRange(0, 3).Draw(t, "inits")
		for i := 0; i < n; i++ {
			apply(d, InitConnection(0))
		}
		apply(d, Connected(0))
		require.Equal(t, domain.TabStatus{Connected: true}, d.TabStatus(0))
	})
}
