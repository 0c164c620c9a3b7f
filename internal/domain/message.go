package domain

import "time"

// MsgKind tags the Message variant.
type MsgKind int

const (
	MsgPublished MsgKind = iota
	MsgReceived
)

// PubStatus tracks an outgoing publish.
type PubStatus int

const (
	PubSending PubStatus = iota
	PubAcked
	// PubLost is a publish whose session ended before the ack arrived.
	PubLost
)

func (s PubStatus) String() string {
	switch s {
	case PubAcked:
		return "acked"
	case PubLost:
		return "lost"
	default:
		return "sending"
	}
}

// Message is either a publish we sent or a publish the broker delivered.
// PacketID and Status are only meaningful for MsgPublished.
type Message struct {
	Kind     MsgKind
	Topic    string
	Payload  []byte
	QoS      QoS
	Retain   bool
	PacketID uint16
	Status   PubStatus
	Time     time.Time
}

// Published builds an outgoing message in the Sending state.
func Published(topic string, payload []byte, qos QoS, retain bool, packetID uint16, at time.Time) Message {
	return Message{
		Kind:     MsgPublished,
		Topic:    topic,
		Payload:  payload,
		QoS:      qos,
		Retain:   retain,
		PacketID: packetID,
		Status:   PubSending,
		Time:     at,
	}
}

// Received builds an inbound message.
func Received(topic string, payload []byte, qos QoS, retain bool, at time.Time) Message {
	return Message{
		Kind:    MsgReceived,
		Topic:   topic,
		Payload: payload,
		QoS:     qos,
		Retain:  retain,
		Time:    at,
	}
}

// PublicInput is the raw publish form of a broker tab.
type PublicInput struct {
	Topic       string
	Payload     string
	QoS         string
	Retain      bool
	PayloadType PayloadType
}

// Parse validates the form and encodes the payload.
func (in PublicInput) Parse() (topic string, payload []byte, qos QoS, err error) {
	if err = NotEmpty("topic", in.Topic); err != nil {
		return
	}
	if qos, err = ParseQoS(in.QoS); err != nil {
		return
	}
	payload, err = in.PayloadType.Encode(in.Payload)
	return in.Topic, payload, qos, err
}

// TabStatus is the connection status shown on a broker tab.
type TabStatus struct {
	TryConnect bool
	Connected  bool
}

// Visible reports whether the connection tab is shown.
func (s TabStatus) Visible() bool {
	return s.TryConnect || s.Connected
}
