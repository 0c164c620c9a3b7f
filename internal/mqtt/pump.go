package mqtt

import (
	"github.com/zjrosen/mqttdesk/internal/intent"
	"github.com/zjrosen/mqttdesk/internal/log"
)

// Pump translates the events of s into intents until the session's event
// channel closes. Run it in its own goroutine, one per session.
func Pump(s *Session, out intent.Submitter) {
	id := s.BrokerID()
	log.Debug(log.CatMQTT, "pump started", "broker_id", id)
	defer log.Debug(log.CatMQTT, "pump stopped", "broker_id", id)

	for ev := range s.Events() {
		it := translate(id, ev)
		if it == nil {
			continue
		}
		if err := out.Submit(it); err != nil {
			log.ErrorErr(log.CatMQTT, "dropping session event", err, "broker_id", id, "event", ev.Type.String())
		}
	}
}

func translate(id int, ev Event) intent.Intent {
	switch ev.Type {
	case EventConnAck:
		return intent.NewConnectAckSuccess(intent.SourcePump, id)
	case EventSubAck:
		return intent.NewSubAck(intent.SourcePump, id, ev.PacketID, ev.Reasons)
	case EventPubAck:
		return intent.NewPubAck(intent.SourcePump, id, ev.PacketID, ev.ReasonCode)
	case EventPublish:
		return intent.NewReceivePublic(intent.SourcePump, id, ev.Message)
	case EventUnsubAck:
		return intent.NewUnsubAck(intent.SourcePump, id, ev.PacketID)
	case EventDisconnected:
		reason := "transport closed"
		if ev.Err != nil {
			reason = ev.Err.Error()
		}
		return intent.NewDisconnect(intent.SourcePump, id, reason)
	default:
		log.Warn(log.CatMQTT, "unknown session event", "broker_id", id, "type", int(ev.Type))
		return nil
	}
}
