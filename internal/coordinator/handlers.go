package coordinator

import (
	"context"
	"errors"
	"fmt"

	"github.com/zjrosen/mqttdesk/internal/appdata"
	"github.com/zjrosen/mqttdesk/internal/domain"
	"github.com/zjrosen/mqttdesk/internal/intent"
	"github.com/zjrosen/mqttdesk/internal/log"
	"github.com/zjrosen/mqttdesk/internal/mqtt"
)

// ErrUnexpectedIntent means a handler got an intent of the wrong type.
var ErrUnexpectedIntent = errors.New("unexpected intent type")

// ErrUnknownPacketID means no live subscription carries the packet id.
var ErrUnknownPacketID = errors.New("no subscription with packet id")

const failureReasonCode byte = 0x80

func handle[T intent.Intent](fn func(ctx context.Context, it T) error) Handler {
	return HandlerFunc(func(ctx context.Context, it intent.Intent) error {
		typed, ok := it.(T)
		if !ok {
			return fmt.Errorf("%w: %T for %s", ErrUnexpectedIntent, it, it.Kind())
		}
		return fn(ctx, typed)
	})
}

func (c *Coordinator) registerHandlers() {
	// Broker list
	c.RegisterHandler(intent.KindAddBroker, handle(c.handleAddBroker))
	c.RegisterHandler(intent.KindEditBroker, handle(c.handleEditBroker))
	c.RegisterHandler(intent.KindSaveBroker, handle(c.handleSaveBroker))
	c.RegisterHandler(intent.KindDeleteBroker, handle(c.handleDeleteBroker))
	c.RegisterHandler(intent.KindConnectBroker, handle(c.handleConnectBroker))
	c.RegisterHandler(intent.KindClickBroker, handle(c.handleClickBroker))
	c.RegisterHandler(intent.KindDbClickCheck, handle(c.handleDbClickCheck))

	// Connection lifecycle
	c.RegisterHandler(intent.KindConnect, handle(c.handleConnect))
	c.RegisterHandler(intent.KindConnectAckSuccess, handle(c.handleConnectAckSuccess))
	c.RegisterHandler(intent.KindDisconnect, handle(c.handleDisconnect))
	c.RegisterHandler(intent.KindReConnect, handle(c.handleReConnect))
	c.RegisterHandler(intent.KindSelectTabs, handle(c.handleSelectTabs))
	c.RegisterHandler(intent.KindCloseBrokerTab, handle(c.handleCloseBrokerTab))
	c.RegisterHandler(intent.KindCloseConnectionTab, handle(c.handleCloseConnectionTab))

	// Subscriptions
	c.RegisterHandler(intent.KindSubscribe, handle(c.handleSubscribe))
	c.RegisterHandler(intent.KindSubAck, handle(c.handleSubAck))
	c.RegisterHandler(intent.KindClickSubscribeHis, handle(c.handleClickSubscribeHis))
	c.RegisterHandler(intent.KindDbClickCheckSubscribeHis, handle(c.handleDbClickCheckSubscribeHis))
	c.RegisterHandler(intent.KindRemoveSubscribeHis, handle(c.handleRemoveSubscribeHis))
	c.RegisterHandler(intent.KindToUnsubscribe, handle(c.handleToUnsubscribe))
	c.RegisterHandler(intent.KindUnsubscribing, handle(c.handleUnsubscribing))
	c.RegisterHandler(intent.KindUnsubAck, handle(c.handleUnsubAck))

	// Messages
	c.RegisterHandler(intent.KindPublish, handle(c.handlePublish))
	c.RegisterHandler(intent.KindPubAck, handle(c.handlePubAck))
	c.RegisterHandler(intent.KindReceivePublic, handle(c.handleReceivePublic))
}

// ============================================================================
// Broker list
// ============================================================================

func (c *Coordinator) handleAddBroker(_ context.Context, _ *intent.AddBroker) error {
	c.schedule("add_broker", appdata.AddBroker())
	return nil
}

func (c *Coordinator) handleEditBroker(_ context.Context, it *intent.EditBroker) error {
	c.schedule("edit_broker", appdata.EditBroker(it.Broker))
	return nil
}

func (c *Coordinator) handleSaveBroker(ctx context.Context, it *intent.SaveBroker) error {
	if err := it.Broker.Validate(); err != nil {
		return err
	}
	if err := c.store.SaveBroker(ctx, it.Broker); err != nil {
		return fmt.Errorf("saving broker %d: %w", it.BrokerID, err)
	}
	c.schedule("save_broker", appdata.SaveBroker(it.Broker))
	return nil
}

func (c *Coordinator) handleDeleteBroker(ctx context.Context, it *intent.DeleteBroker) error {
	id := it.BrokerID
	c.disconnect(id)
	if err := c.store.DeleteBroker(ctx, id); err != nil {
		return fmt.Errorf("deleting broker %d: %w", id, err)
	}
	delete(c.known, id)
	delete(c.pendingClick, id)
	delete(c.pendingSubs, id)
	if c.pendingHisClick != nil && c.pendingHisClick.BrokerID == id {
		c.pendingHisClick = nil
	}
	c.schedule("delete_broker", appdata.DeleteBroker(id))
	return nil
}

func (c *Coordinator) handleConnectBroker(ctx context.Context, it *intent.ConnectBroker) error {
	c.followUp(ctx, intent.NewConnect(intent.SourceInternal, it.Broker))
	return nil
}

// ============================================================================
// Connection lifecycle
// ============================================================================

func (c *Coordinator) handleConnect(ctx context.Context, it *intent.Connect) error {
	b := it.Broker
	if err := b.Validate(); err != nil {
		return err
	}
	delete(c.pendingSubs, b.ID)
	sess, err := c.registry.Connect(ctx, b)
	if err != nil {
		c.schedule("disconnect", appdata.Disconnect(b.ID))
		return err
	}
	c.known[b.ID] = b
	go mqtt.Pump(sess, c.queue)
	c.schedule("init_connection", appdata.InitConnection(b.ID))
	return nil
}

func (c *Coordinator) handleConnectAckSuccess(_ context.Context, it *intent.ConnectAckSuccess) error {
	if _, ok := c.registry.Get(it.BrokerID); !ok {
		log.Debug(log.CatCoord, "connack for a closed session", "broker_id", it.BrokerID)
		return nil
	}
	c.schedule("connected", appdata.Connected(it.BrokerID))
	return nil
}

func (c *Coordinator) handleDisconnect(_ context.Context, it *intent.Disconnect) error {
	id := it.BrokerID
	if it.Source() == intent.SourcePump {
		// A pump reports the end of its own session; a newer session may
		// already have replaced it.
		if sess, ok := c.registry.Get(id); ok && !sess.Closed() {
			log.Debug(log.CatCoord, "ignoring disconnect of a replaced session", "broker_id", id, "reason", it.Reason)
			return nil
		}
		log.Warn(log.CatCoord, "connection lost", "broker_id", id, "reason", it.Reason)
	}
	c.disconnect(id)
	c.schedule("disconnect", appdata.Disconnect(id))
	return nil
}

func (c *Coordinator) handleReConnect(ctx context.Context, it *intent.ReConnect) error {
	id := it.BrokerID
	b, ok := c.known[id]
	if !ok {
		if sess, live := c.registry.Get(id); live {
			b, ok = sess.Broker(), true
		}
	}
	c.disconnect(id)
	c.schedule("reconnect", appdata.Reconnect(id))
	if !ok {
		return fmt.Errorf("reconnect broker %d: never connected", id)
	}
	c.followUp(ctx, intent.NewConnect(intent.SourceInternal, b))
	return nil
}

func (c *Coordinator) handleSelectTabs(_ context.Context, it *intent.SelectTabs) error {
	c.schedule("select_tab", appdata.SelectTab(it.BrokerID))
	return nil
}

func (c *Coordinator) handleCloseBrokerTab(_ context.Context, it *intent.CloseBrokerTab) error {
	c.disconnect(it.BrokerID)
	c.schedule("close_tab", appdata.CloseTab(it.BrokerID))
	return nil
}

func (c *Coordinator) handleCloseConnectionTab(_ context.Context, it *intent.CloseConnectionTab) error {
	c.disconnect(it.BrokerID)
	c.schedule("close_connection", appdata.CloseConnection(it.BrokerID))
	return nil
}

// disconnect drops the session of id. Errors are logged; the session is gone
// from the registry either way.
func (c *Coordinator) disconnect(id int) {
	if err := c.registry.Disconnect(id); err != nil {
		log.ErrorErr(log.CatCoord, "disconnect failed", err, "broker_id", id)
	}
	delete(c.pendingSubs, id)
}

// ============================================================================
// Subscriptions
// ============================================================================

func (c *Coordinator) handleSubscribe(ctx context.Context, it *intent.Subscribe) error {
	his, err := it.Input.ToHistory(it.BrokerID)
	if err != nil {
		return err
	}
	pk, err := c.registry.Subscribe(ctx, it.BrokerID, his.Topic, his.QoS)
	if err != nil {
		return err
	}
	recordPacket(ctx, "mqtt.subscribe", it.BrokerID, his.Topic, pk)
	c.rememberSub(it.BrokerID, pk, his)
	c.schedule("subscribe_by_input", appdata.SubscribeByInput(it.BrokerID, his.Topic, his.QoS, his.PayloadType, pk))
	return nil
}

// resubscribe subscribes again from a history entry.
func (c *Coordinator) resubscribe(ctx context.Context, his domain.SubscribeHis) error {
	pk, err := c.registry.Subscribe(ctx, his.BrokerID, his.Topic, his.QoS)
	if err != nil {
		return err
	}
	recordPacket(ctx, "mqtt.subscribe", his.BrokerID, his.Topic, pk)
	c.schedule("subscribe", appdata.Subscribe(his.BrokerID, his, pk))
	return nil
}

func (c *Coordinator) rememberSub(id int, pk uint16, his domain.SubscribeHis) {
	subs, ok := c.pendingSubs[id]
	if !ok {
		subs = make(map[uint16]domain.SubscribeHis)
		c.pendingSubs[id] = subs
	}
	subs[pk] = his
}

func (c *Coordinator) handleSubAck(ctx context.Context, it *intent.SubAck) error {
	c.schedule("suback", appdata.SubAck(it.BrokerID, it.PacketID, it.Reasons))

	his, ok := c.pendingSubs[it.BrokerID][it.PacketID]
	if !ok {
		return nil
	}
	delete(c.pendingSubs[it.BrokerID], it.PacketID)
	for _, r := range it.Reasons {
		if r >= failureReasonCode {
			log.Warn(log.CatCoord, "subscription refused", "broker_id", it.BrokerID, "topic", his.Topic, "reason", r)
			return nil
		}
	}
	stored, added, err := c.store.AppendHistory(ctx, it.BrokerID, his)
	if err != nil {
		return fmt.Errorf("remembering subscription %q: %w", his.Topic, err)
	}
	if added {
		c.schedule("append_history", appdata.AppendHistory(it.BrokerID, stored))
	}
	return nil
}

func (c *Coordinator) handleRemoveSubscribeHis(ctx context.Context, it *intent.RemoveSubscribeHis) error {
	if _, err := c.store.RemoveHistory(ctx, it.BrokerID, it.HisID); err != nil {
		return fmt.Errorf("removing history %d of broker %d: %w", it.HisID, it.BrokerID, err)
	}
	if c.pendingHisClick != nil && c.pendingHisClick.BrokerID == it.BrokerID && c.pendingHisClick.ID == it.HisID {
		c.pendingHisClick = nil
	}
	c.schedule("remove_history", appdata.RemoveHistory(it.BrokerID, it.HisID))
	return nil
}

func (c *Coordinator) handleToUnsubscribe(ctx context.Context, it *intent.ToUnsubscribe) error {
	sess, ok := c.registry.Get(it.BrokerID)
	if !ok {
		return fmt.Errorf("unsubscribe broker %d: %w", it.BrokerID, mqtt.ErrNoSession)
	}
	topic, ok := sess.Topic(it.PacketID)
	if !ok {
		return fmt.Errorf("unsubscribe broker %d: %w: %d", it.BrokerID, ErrUnknownPacketID, it.PacketID)
	}
	c.schedule("to_unsubscribe", appdata.ToUnsubscribe(it.BrokerID, it.PacketID))
	c.followUp(ctx, intent.NewUnsubscribing(intent.SourceInternal, it.BrokerID, it.PacketID, topic))
	return nil
}

func (c *Coordinator) handleUnsubscribing(ctx context.Context, it *intent.Unsubscribing) error {
	pk, err := c.registry.Unsubscribe(ctx, it.BrokerID, it.Topic)
	if err != nil {
		return err
	}
	recordPacket(ctx, "mqtt.unsubscribe", it.BrokerID, it.Topic, pk)
	c.schedule("unsubscribing", appdata.Unsubscribing(it.BrokerID, it.SubPacketID, pk))
	return nil
}

func (c *Coordinator) handleUnsubAck(_ context.Context, it *intent.UnsubAck) error {
	c.schedule("unsubscribe_ack", appdata.UnsubscribeAck(it.BrokerID, it.UnsubPacketID))
	return nil
}

// ============================================================================
// Messages
// ============================================================================

func (c *Coordinator) handlePublish(ctx context.Context, it *intent.Publish) error {
	topic, payload, qos, err := it.Input.Parse()
	if err != nil {
		return err
	}
	pk, err := c.registry.Publish(ctx, it.BrokerID, topic, payload, qos, it.Input.Retain)
	if err != nil {
		return err
	}
	recordPacket(ctx, "mqtt.publish", it.BrokerID, topic, pk)
	msg := domain.Published(topic, payload, qos, it.Input.Retain, pk, c.clock.Now())
	c.schedule("public", appdata.Public(it.BrokerID, msg))
	return nil
}

func (c *Coordinator) handlePubAck(_ context.Context, it *intent.PubAck) error {
	if it.ReasonCode >= failureReasonCode {
		log.Warn(log.CatCoord, "publish refused", "broker_id", it.BrokerID, "packet_id", it.PacketID, "reason", it.ReasonCode)
	}
	c.schedule("pub_ack", appdata.PubAck(it.BrokerID, it.PacketID))
	return nil
}

func (c *Coordinator) handleReceivePublic(_ context.Context, it *intent.ReceivePublic) error {
	c.schedule("receive_public", appdata.ReceivePublic(it.BrokerID, it.Msg))
	return nil
}
