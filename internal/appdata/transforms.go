package appdata

import (
	"time"

	"github.com/zjrosen/mqttdesk/internal/domain"
	"github.com/zjrosen/mqttdesk/internal/log"
)

// Reason codes at or above this value are failures (MQTT v5 2.4).
const failureReasonCode = 0x80

func missing(transform string, id int) {
	log.Warn(log.CatUI, "transform skipped: unknown broker", "transform", transform, "broker_id", id)
}

// AddBroker appends a new unsaved broker with id max+1 and selects it.
func AddBroker() Transform {
	return func(d *AppData) {
		next := 0
		for id := range d.Brokers {
			if id >= next {
				next = id + 1
			}
		}
		b := domain.NewBroker(next)
		for _, other := range d.Brokers {
			other.Selected = false
		}
		b.Selected = true
		d.Brokers[next] = &b
		d.SubscribeHistories[next] = domain.NewSubscribeHistory(next)
	}
}

// EditBroker overwrites the editable fields of b.ID. The broker stays
// stored only if nothing persisted changed.
func EditBroker(b domain.Broker) Transform {
	return func(d *AppData) {
		cur, ok := d.Brokers[b.ID]
		if !ok {
			missing("edit_broker", b.ID)
			return
		}
		if cur.SameEndpoint(b) {
			return
		}
		next := b
		next.Selected = cur.Selected
		next.Stored = false
		*cur = next
	}
}

// SaveBroker marks id as persisted with the saved fields.
func SaveBroker(saved domain.Broker) Transform {
	return func(d *AppData) {
		cur, ok := d.Brokers[saved.ID]
		if !ok {
			missing("save_broker", saved.ID)
			return
		}
		if !cur.SameEndpoint(saved) {
			// Edited again while the save was in flight.
			log.Debug(log.CatUI, "broker changed during save", "broker_id", saved.ID)
			return
		}
		cur.Stored = true
	}
}

// DeleteBroker removes id and everything keyed by it.
func DeleteBroker(id int) Transform {
	return func(d *AppData) {
		if _, ok := d.Brokers[id]; !ok {
			return
		}
		d.closeTab(id)
		d.dropSession(id)
		delete(d.SubscribeHistories, id)
		delete(d.Brokers, id)
	}
}

// ClickBroker selects id in the broker list.
func ClickBroker(id int) Transform {
	return func(d *AppData) {
		if _, ok := d.Brokers[id]; !ok {
			missing("click_broker", id)
			return
		}
		for bid, b := range d.Brokers {
			b.Selected = bid == id
		}
	}
}

// DbClickBroker selects id and opens its tab.
func DbClickBroker(id int) Transform {
	return func(d *AppData) {
		if _, ok := d.Brokers[id]; !ok {
			missing("db_click_broker", id)
			return
		}
		ClickBroker(id)(d)
		d.openTab(id)
	}
}

// resetSession forgets everything keyed by packet ids of the previous
// session of id. A new session allocates ids from 1 again.
func (d *AppData) resetSession(id int) {
	d.SubscribeTopics[id] = []domain.SubscribeTopic{}
	msgs := d.Msgs[id]
	for i := range msgs {
		if msgs[i].Kind == domain.MsgPublished && msgs[i].Status == domain.PubSending {
			msgs[i].Status = domain.PubLost
		}
	}
}

// InitConnection shows the tab of id as connecting on a fresh session.
func InitConnection(id int) Transform {
	return func(d *AppData) {
		if _, ok := d.Brokers[id]; !ok {
			missing("init_connection", id)
			return
		}
		d.openTab(id)
		d.TabStatuses[id] = domain.TabStatus{TryConnect: true}
		d.resetSession(id)
	}
}

// Connected records a successful CONNACK.
func Connected(id int) Transform {
	return func(d *AppData) {
		if _, ok := d.Brokers[id]; !ok {
			missing("connected", id)
			return
		}
		d.TabStatuses[id] = domain.TabStatus{Connected: true}
	}
}

// Reconnect resets the connection state ahead of a new connect cycle.
func Reconnect(id int) Transform {
	return func(d *AppData) {
		if _, ok := d.Brokers[id]; !ok {
			missing("reconnect", id)
			return
		}
		d.TabStatuses[id] = domain.TabStatus{}
		d.resetSession(id)
	}
}

// Disconnect marks id disconnected. Its tab and messages stay.
func Disconnect(id int) Transform {
	return func(d *AppData) {
		if _, ok := d.Brokers[id]; !ok {
			missing("disconnect", id)
			return
		}
		d.TabStatuses[id] = domain.TabStatus{}
		if _, ok := d.SubscribeTopics[id]; ok {
			d.SubscribeTopics[id] = []domain.SubscribeTopic{}
		}
	}
}

// CloseConnection hides the connection tab of id and clears its session.
func CloseConnection(id int) Transform {
	return func(d *AppData) {
		if _, ok := d.Brokers[id]; !ok {
			missing("close_connection", id)
			return
		}
		delete(d.SubscribeTopics, id)
		delete(d.Msgs, id)
		d.TabStatuses[id] = domain.TabStatus{}
	}
}

// CloseTab removes id from the open tabs and drops its transient state.
func CloseTab(id int) Transform {
	return func(d *AppData) {
		d.closeTab(id)
		d.dropSession(id)
	}
}

// SelectTab focuses an open tab.
func SelectTab(id int) Transform {
	return func(d *AppData) {
		if !d.hasTab(id) {
			missing("select_tab", id)
			return
		}
		d.SelectedTab = id
	}
}

// SetSubscribeInput stores the subscribe form of id.
func SetSubscribeInput(id int, in domain.SubscribeInput) Transform {
	return func(d *AppData) {
		if _, ok := d.Brokers[id]; ok {
			d.SubscribeInput[id] = in
		}
	}
}

// SetPublicInput stores the publish form of id.
func SetPublicInput(id int, in domain.PublicInput) Transform {
	return func(d *AppData) {
		if _, ok := d.Brokers[id]; ok {
			d.PublicInput[id] = in
		}
	}
}

func addTopic(d *AppData, transform string, id int, t domain.SubscribeTopic) {
	if _, ok := d.Brokers[id]; !ok {
		missing(transform, id)
		return
	}
	for _, cur := range d.SubscribeTopics[id] {
		if cur.PacketID == t.PacketID {
			return
		}
	}
	t.Status = domain.SubSubscribing
	d.SubscribeTopics[id] = append(d.SubscribeTopics[id], t)
}

// SubscribeByInput records a subscription made from the form.
func SubscribeByInput(id int, topic string, qos domain.QoS, payloadType domain.PayloadType, packetID uint16) Transform {
	return func(d *AppData) {
		addTopic(d, "subscribe_by_input", id, domain.SubscribeTopic{
			PacketID:    packetID,
			Topic:       topic,
			QoS:         qos,
			PayloadType: payloadType,
		})
	}
}

// Subscribe records a subscription made from a history entry.
func Subscribe(id int, his domain.SubscribeHis, packetID uint16) Transform {
	return func(d *AppData) {
		addTopic(d, "subscribe", id, domain.SubscribeTopic{
			PacketID:    packetID,
			Topic:       his.Topic,
			QoS:         his.QoS,
			PayloadType: his.PayloadType,
		})
	}
}

func findTopic(d *AppData, id int, match func(t domain.SubscribeTopic) bool) int {
	for i, t := range d.SubscribeTopics[id] {
		if match(t) {
			return i
		}
	}
	return -1
}

// SubAck completes the subscription with packetID. A failure reason code
// marks it Failed; an already settled topic is left as is.
func SubAck(id int, packetID uint16, reasons []byte) Transform {
	return func(d *AppData) {
		i := findTopic(d, id, func(t domain.SubscribeTopic) bool { return t.PacketID == packetID })
		if i < 0 {
			log.Warn(log.CatUI, "suback for unknown packet id", "broker_id", id, "packet_id", packetID)
			return
		}
		t := &d.SubscribeTopics[id][i]
		if t.Status != domain.SubSubscribing {
			return
		}
		t.Status = domain.SubActive
		for _, code := range reasons {
			if code >= failureReasonCode {
				t.Status = domain.SubFailed
				log.Warn(log.CatUI, "subscription refused", "broker_id", id, "topic", t.Topic, "reason", code)
				break
			}
		}
	}
}

// ToUnsubscribe marks the subscription with packetID as unsubscribing.
func ToUnsubscribe(id int, packetID uint16) Transform {
	return func(d *AppData) {
		i := findTopic(d, id, func(t domain.SubscribeTopic) bool { return t.PacketID == packetID })
		if i < 0 {
			log.Warn(log.CatUI, "unsubscribe for unknown packet id", "broker_id", id, "packet_id", packetID)
			return
		}
		d.SubscribeTopics[id][i].Status = domain.SubUnsubscribing
	}
}

// Unsubscribing records the UNSUBSCRIBE packet id of the subscription.
func Unsubscribing(id int, subPacketID, unsubPacketID uint16) Transform {
	return func(d *AppData) {
		i := findTopic(d, id, func(t domain.SubscribeTopic) bool { return t.PacketID == subPacketID })
		if i < 0 {
			log.Warn(log.CatUI, "unsubscribing unknown packet id", "broker_id", id, "packet_id", subPacketID)
			return
		}
		t := &d.SubscribeTopics[id][i]
		t.Status = domain.SubUnsubscribing
		t.UnsubPacketID = unsubPacketID
	}
}

// UnsubscribeAck removes the subscription whose UNSUBSCRIBE was acked.
// The broker drops the filter as a whole, so settled rows subscribed to the
// same filter go with it. Rows still Subscribing were sent after the
// UNSUBSCRIBE and stay.
func UnsubscribeAck(id int, unsubPacketID uint16) Transform {
	return func(d *AppData) {
		i := findTopic(d, id, func(t domain.SubscribeTopic) bool {
			return t.Status == domain.SubUnsubscribing && t.UnsubPacketID == unsubPacketID
		})
		if i < 0 {
			log.Warn(log.CatUI, "unsuback for unknown packet id", "broker_id", id, "packet_id", unsubPacketID)
			return
		}
		topics := d.SubscribeTopics[id]
		filter := topics[i].Topic
		kept := make([]domain.SubscribeTopic, 0, len(topics)-1)
		for j, t := range topics {
			if j == i || (t.Topic == filter && t.Status != domain.SubSubscribing) {
				continue
			}
			kept = append(kept, t)
		}
		d.SubscribeTopics[id] = kept
	}
}

func appendMsg(d *AppData, id int, m domain.Message) {
	msgs := append(d.Msgs[id], m)
	if over := len(msgs) - MaxMessages; over > 0 {
		msgs = append([]domain.Message(nil), msgs[over:]...)
	}
	d.Msgs[id] = msgs
}

// Public appends an outgoing message. QoS 0 publishes have no ack and are
// recorded as acked immediately.
func Public(id int, m domain.Message) Transform {
	return func(d *AppData) {
		if _, ok := d.Brokers[id]; !ok {
			missing("public", id)
			return
		}
		if m.QoS == domain.AtMostOnce {
			m.Status = domain.PubAcked
		}
		appendMsg(d, id, m)
	}
}

// PubAck marks the in-flight publish with packetID as acked.
func PubAck(id int, packetID uint16) Transform {
	return func(d *AppData) {
		msgs := d.Msgs[id]
		for i := len(msgs) - 1; i >= 0; i-- {
			m := &msgs[i]
			if m.Kind == domain.MsgPublished && m.PacketID == packetID && m.Status == domain.PubSending {
				m.Status = domain.PubAcked
				return
			}
		}
		log.Warn(log.CatUI, "puback for unknown packet id", "broker_id", id, "packet_id", packetID)
	}
}

// ReceivePublic appends an inbound message when some live subscription of
// id matches its topic.
func ReceivePublic(id int, m domain.Message) Transform {
	return func(d *AppData) {
		if _, ok := d.Brokers[id]; !ok {
			missing("receive_public", id)
			return
		}
		matched := false
		for _, t := range d.SubscribeTopics[id] {
			if t.Status != domain.SubFailed && domain.MatchTopic(t.Topic, m.Topic) {
				matched = true
				break
			}
		}
		if !matched {
			log.Debug(log.CatUI, "dropping message without subscription", "broker_id", id, "topic", m.Topic)
			return
		}
		if m.Time.IsZero() {
			m.Time = time.Now()
		}
		appendMsg(d, id, m)
	}
}

// AppendHistory adds a stored history entry to id.
func AppendHistory(id int, his domain.SubscribeHis) Transform {
	return func(d *AppData) {
		if _, ok := d.Brokers[id]; !ok {
			missing("append_history", id)
			return
		}
		h := d.History(id)
		if _, exists := h.Find(his.ID); !exists {
			his.BrokerID = id
			h.Entries = append(h.Entries, his)
		}
		d.SubscribeHistories[id] = h
	}
}

// RemoveHistory drops history entry hisID of id.
func RemoveHistory(id, hisID int) Transform {
	return func(d *AppData) {
		if h, ok := d.SubscribeHistories[id]; ok {
			h.Remove(hisID)
		}
	}
}
