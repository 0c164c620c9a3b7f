package intent

import "github.com/zjrosen/mqttdesk/internal/domain"

// AddBroker appends a new unsaved broker to the list.
type AddBroker struct {
	Base
}

func NewAddBroker(src Source) *AddBroker {
	return &AddBroker{Base: NewBase(KindAddBroker, src)}
}

// EditBroker replaces the editable fields of a broker. The UI validates
// the form before submitting, so Broker is always valid.
type EditBroker struct {
	Base
	Broker domain.Broker
}

func NewEditBroker(src Source, b domain.Broker) *EditBroker {
	return &EditBroker{Base: NewBase(KindEditBroker, src), Broker: b}
}

// SaveBroker persists the broker as it currently is in the UI. The record
// travels with the intent because the coordinator never reads AppData.
type SaveBroker struct {
	Base
	BrokerID int
	Broker   domain.Broker
}

func NewSaveBroker(src Source, b domain.Broker) *SaveBroker {
	return &SaveBroker{Base: NewBase(KindSaveBroker, src), BrokerID: b.ID, Broker: b}
}

// DeleteBroker removes the selected broker. BrokerID is the selection at
// the time the user asked.
type DeleteBroker struct {
	Base
	BrokerID int
}

func NewDeleteBroker(src Source, id int) *DeleteBroker {
	return &DeleteBroker{Base: NewBase(KindDeleteBroker, src), BrokerID: id}
}

// ConnectBroker connects the selected broker.
type ConnectBroker struct {
	Base
	Broker domain.Broker
}

func NewConnectBroker(src Source, b domain.Broker) *ConnectBroker {
	return &ConnectBroker{Base: NewBase(KindConnectBroker, src), Broker: b}
}

// ClickBroker is a single click on a broker row.
type ClickBroker struct {
	Base
	BrokerID int
}

func NewClickBroker(src Source, id int) *ClickBroker {
	return &ClickBroker{Base: NewBase(KindClickBroker, src), BrokerID: id}
}

// DbClickCheck fires when the double-click window of a broker click closes.
type DbClickCheck struct {
	Base
	BrokerID int
}

func NewDbClickCheck(src Source, id int) *DbClickCheck {
	return &DbClickCheck{Base: NewBase(KindDbClickCheck, src), BrokerID: id}
}

// Connect opens a session to Broker.
type Connect struct {
	Base
	Broker domain.Broker
}

func NewConnect(src Source, b domain.Broker) *Connect {
	return &Connect{Base: NewBase(KindConnect, src), Broker: b}
}

// ConnectAckSuccess reports a successful CONNACK.
type ConnectAckSuccess struct {
	Base
	BrokerID int
}

func NewConnectAckSuccess(src Source, id int) *ConnectAckSuccess {
	return &ConnectAckSuccess{Base: NewBase(KindConnectAckSuccess, src), BrokerID: id}
}

// Disconnect tears the session down. Reason is empty for user requests.
type Disconnect struct {
	Base
	BrokerID int
	Reason   string
}

func NewDisconnect(src Source, id int, reason string) *Disconnect {
	return &Disconnect{Base: NewBase(KindDisconnect, src), BrokerID: id, Reason: reason}
}

// ReConnect drops the session and connects again.
type ReConnect struct {
	Base
	BrokerID int
}

func NewReConnect(src Source, id int) *ReConnect {
	return &ReConnect{Base: NewBase(KindReConnect, src), BrokerID: id}
}

// SelectTabs focuses the connection tab of a broker.
type SelectTabs struct {
	Base
	BrokerID int
}

func NewSelectTabs(src Source, id int) *SelectTabs {
	return &SelectTabs{Base: NewBase(KindSelectTabs, src), BrokerID: id}
}

// CloseBrokerTab closes a broker tab and drops its transient state.
type CloseBrokerTab struct {
	Base
	BrokerID int
}

func NewCloseBrokerTab(src Source, id int) *CloseBrokerTab {
	return &CloseBrokerTab{Base: NewBase(KindCloseBrokerTab, src), BrokerID: id}
}

// CloseConnectionTab disconnects and hides the connection tab.
type CloseConnectionTab struct {
	Base
	BrokerID int
}

func NewCloseConnectionTab(src Source, id int) *CloseConnectionTab {
	return &CloseConnectionTab{Base: NewBase(KindCloseConnectionTab, src), BrokerID: id}
}

// Subscribe subscribes using the tab's subscribe form.
type Subscribe struct {
	Base
	BrokerID int
	Input    domain.SubscribeInput
}

func NewSubscribe(src Source, id int, input domain.SubscribeInput) *Subscribe {
	return &Subscribe{Base: NewBase(KindSubscribe, src), BrokerID: id, Input: input}
}

// SubAck carries the SUBACK of PacketID; one reason code per topic filter.
type SubAck struct {
	Base
	BrokerID int
	PacketID uint16
	Reasons  []byte
}

func NewSubAck(src Source, id int, packetID uint16, reasons []byte) *SubAck {
	return &SubAck{Base: NewBase(KindSubAck, src), BrokerID: id, PacketID: packetID, Reasons: reasons}
}

// ClickSubscribeHis is a single click on a history entry.
type ClickSubscribeHis struct {
	Base
	His domain.SubscribeHis
}

func NewClickSubscribeHis(src Source, his domain.SubscribeHis) *ClickSubscribeHis {
	return &ClickSubscribeHis{Base: NewBase(KindClickSubscribeHis, src), His: his}
}

// DbClickCheckSubscribeHis fires when a history click window closes.
type DbClickCheckSubscribeHis struct {
	Base
	His domain.SubscribeHis
}

func NewDbClickCheckSubscribeHis(src Source, his domain.SubscribeHis) *DbClickCheckSubscribeHis {
	return &DbClickCheckSubscribeHis{Base: NewBase(KindDbClickCheckSubscribeHis, src), His: his}
}

// RemoveSubscribeHis deletes a history entry.
type RemoveSubscribeHis struct {
	Base
	BrokerID int
	HisID    int
}

func NewRemoveSubscribeHis(src Source, brokerID, hisID int) *RemoveSubscribeHis {
	return &RemoveSubscribeHis{Base: NewBase(KindRemoveSubscribeHis, src), BrokerID: brokerID, HisID: hisID}
}

// ToUnsubscribe starts unsubscribing the topic subscribed with PacketID.
type ToUnsubscribe struct {
	Base
	BrokerID int
	PacketID uint16
}

func NewToUnsubscribe(src Source, brokerID int, packetID uint16) *ToUnsubscribe {
	return &ToUnsubscribe{Base: NewBase(KindToUnsubscribe, src), BrokerID: brokerID, PacketID: packetID}
}

// Unsubscribing sends the UNSUBSCRIBE for a topic already marked.
type Unsubscribing struct {
	Base
	BrokerID    int
	SubPacketID uint16
	Topic       string
}

func NewUnsubscribing(src Source, brokerID int, subPacketID uint16, topic string) *Unsubscribing {
	return &Unsubscribing{
		Base:        NewBase(KindUnsubscribing, src),
		BrokerID:    brokerID,
		SubPacketID: subPacketID,
		Topic:       topic,
	}
}

// UnsubAck carries the UNSUBACK of UnsubPacketID.
type UnsubAck struct {
	Base
	BrokerID      int
	UnsubPacketID uint16
}

func NewUnsubAck(src Source, brokerID int, unsubPacketID uint16) *UnsubAck {
	return &UnsubAck{Base: NewBase(KindUnsubAck, src), BrokerID: brokerID, UnsubPacketID: unsubPacketID}
}

// Publish sends the tab's publish form.
type Publish struct {
	Base
	BrokerID int
	Input    domain.PublicInput
}

func NewPublish(src Source, id int, input domain.PublicInput) *Publish {
	return &Publish{Base: NewBase(KindPublish, src), BrokerID: id, Input: input}
}

// PubAck completes the publish with PacketID.
type PubAck struct {
	Base
	BrokerID   int
	PacketID   uint16
	ReasonCode byte
}

func NewPubAck(src Source, id int, packetID uint16, reason byte) *PubAck {
	return &PubAck{Base: NewBase(KindPubAck, src), BrokerID: id, PacketID: packetID, ReasonCode: reason}
}

// ReceivePublic is an inbound PUBLISH.
type ReceivePublic struct {
	Base
	BrokerID int
	Msg      domain.Message
}

func NewReceivePublic(src Source, id int, msg domain.Message) *ReceivePublic {
	return &ReceivePublic{Base: NewBase(KindReceivePublic, src), BrokerID: id, Msg: msg}
}
