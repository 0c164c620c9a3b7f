package domain

import "strings"

// SubscribeHis is one remembered subscription of a broker.
type SubscribeHis struct {
	ID          int         `json:"id"`
	BrokerID    int         `json:"broker_id"`
	Topic       string      `json:"topic"`
	QoS         QoS         `json:"qos"`
	PayloadType PayloadType `json:"payload_type"`
}

// Same reports whether two entries describe the same subscription.
func (h SubscribeHis) Same(o SubscribeHis) bool {
	return h.Topic == o.Topic && h.QoS == o.QoS && h.PayloadType == o.PayloadType
}

// SubscribeHistory is the ordered set of past subscriptions of one broker.
type SubscribeHistory struct {
	BrokerID int            `json:"broker_id"`
	Entries  []SubscribeHis `json:"entries"`
}

// NewSubscribeHistory returns an empty history for brokerID.
func NewSubscribeHistory(brokerID int) *SubscribeHistory {
	return &SubscribeHistory{BrokerID: brokerID, Entries: []SubscribeHis{}}
}

// Append adds entry unless an equal one exists, assigning the next entry id.
// It returns the stored entry and whether it was newly added.
func (h *SubscribeHistory) Append(entry SubscribeHis) (SubscribeHis, bool) {
	next := 0
	for _, e := range h.Entries {
		if e.Same(entry) {
			return e, false
		}
		if e.ID >= next {
			next = e.ID + 1
		}
	}
	entry.ID = next
	entry.BrokerID = h.BrokerID
	h.Entries = append(h.Entries, entry)
	return entry, true
}

// Remove drops the entry with the given id.
func (h *SubscribeHistory) Remove(id int) bool {
	for i, e := range h.Entries {
		if e.ID == id {
			h.Entries = append(h.Entries[:i:i], h.Entries[i+1:]...)
			return true
		}
	}
	return false
}

// Find returns the entry with the given id.
func (h *SubscribeHistory) Find(id int) (SubscribeHis, bool) {
	for _, e := range h.Entries {
		if e.ID == id {
			return e, true
		}
	}
	return SubscribeHis{}, false
}

// Clone returns a deep copy.
func (h *SubscribeHistory) Clone() *SubscribeHistory {
	if h == nil {
		return nil
	}
	out := &SubscribeHistory{BrokerID: h.BrokerID, Entries: make([]SubscribeHis, len(h.Entries))}
	copy(out.Entries, h.Entries)
	return out
}

// WithBrokerID rewrites the owner of every entry.
func (h *SubscribeHistory) WithBrokerID(id int) *SubscribeHistory {
	out := h.Clone()
	out.BrokerID = id
	for i := range out.Entries {
		out.Entries[i].BrokerID = id
	}
	return out
}

// SubStatus is the lifecycle of a subscription on a live session.
type SubStatus int

const (
	SubSubscribing SubStatus = iota
	SubActive
	SubUnsubscribing
	SubFailed
)

func (s SubStatus) String() string {
	switch s {
	case SubSubscribing:
		return "subscribing"
	case SubActive:
		return "active"
	case SubUnsubscribing:
		return "unsubscribing"
	case SubFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// SubscribeTopic is a subscription on a live session, keyed by the packet id
// of its SUBSCRIBE. UnsubPacketID is set once the UNSUBSCRIBE is in flight.
type SubscribeTopic struct {
	PacketID      uint16
	UnsubPacketID uint16
	Topic         string
	QoS           QoS
	PayloadType   PayloadType
	Status        SubStatus
}

// SubscribeInput is the raw subscribe form of a broker tab.
type SubscribeInput struct {
	Topic       string
	QoS         string
	PayloadType PayloadType
}

// Parse validates the form.
func (in SubscribeInput) Parse() (string, QoS, error) {
	topic := strings.TrimSpace(in.Topic)
	if err := NotEmpty("topic", topic); err != nil {
		return "", 0, err
	}
	qos, err := ParseQoS(in.QoS)
	if err != nil {
		return "", 0, err
	}
	return topic, qos, nil
}

// ToHistory turns a validated form into a history entry for brokerID.
func (in SubscribeInput) ToHistory(brokerID int) (SubscribeHis, error) {
	topic, qos, err := in.Parse()
	if err != nil {
		return SubscribeHis{}, err
	}
	pt := in.PayloadType
	if pt == "" {
		pt = PayloadText
	}
	return SubscribeHis{BrokerID: brokerID, Topic: topic, QoS: qos, PayloadType: pt}, nil
}
