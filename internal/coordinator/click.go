package coordinator

import (
	"context"

	"github.com/zjrosen/mqttdesk/internal/appdata"
	"github.com/zjrosen/mqttdesk/internal/domain"
	"github.com/zjrosen/mqttdesk/internal/intent"
	"github.com/zjrosen/mqttdesk/internal/log"
)

// Click disambiguation. A first click selects and opens a window; a second
// click on the same item inside the window is a double click. Each window is
// closed by a timer intent, which is a no-op when a double click already
// consumed it or when a newer click reopened it.

func (c *Coordinator) handleClickBroker(_ context.Context, it *intent.ClickBroker) error {
	id := it.BrokerID
	now := c.clock.Now()
	if at, ok := c.pendingClick[id]; ok && now.Sub(at) < c.window {
		delete(c.pendingClick, id)
		c.schedule("db_click_broker", appdata.DbClickBroker(id))
		return nil
	}

	c.pendingClick[id] = now
	c.schedule("click_broker", appdata.ClickBroker(id))
	c.clock.AfterFunc(c.window, func() {
		c.post(intent.NewDbClickCheck(intent.SourceTimer, id))
	})
	return nil
}

func (c *Coordinator) handleDbClickCheck(_ context.Context, it *intent.DbClickCheck) error {
	at, ok := c.pendingClick[it.BrokerID]
	if !ok {
		return nil
	}
	if c.clock.Now().Sub(at) >= c.window {
		delete(c.pendingClick, it.BrokerID)
	}
	return nil
}

func sameEntry(a, b domain.SubscribeHis) bool {
	return a.BrokerID == b.BrokerID && a.ID == b.ID
}

func (c *Coordinator) handleClickSubscribeHis(ctx context.Context, it *intent.ClickSubscribeHis) error {
	his := it.His
	now := c.clock.Now()

	if p := c.pendingHisClick; p != nil {
		if sameEntry(*p, his) && now.Sub(c.pendingHisClickAt) < c.window {
			c.pendingHisClick = nil
			return c.resubscribe(ctx, his)
		}
		if !sameEntry(*p, his) && now.Sub(c.pendingHisClickAt) < c.window {
			// The pending entry keeps its double-click window.
			log.Debug(log.CatCoord, "history click while another is pending",
				"broker_id", his.BrokerID, "his_id", his.ID)
			c.fillSubscribeInput(his)
			return nil
		}
	}

	c.pendingHisClick = &his
	c.pendingHisClickAt = now
	c.fillSubscribeInput(his)
	c.clock.AfterFunc(c.window, func() {
		c.post(intent.NewDbClickCheckSubscribeHis(intent.SourceTimer, his))
	})
	return nil
}

func (c *Coordinator) fillSubscribeInput(his domain.SubscribeHis) {
	c.schedule("click_subscribe_his", appdata.SetSubscribeInput(his.BrokerID, domain.SubscribeInput{
		Topic:       his.Topic,
		QoS:         his.QoS.String(),
		PayloadType: his.PayloadType,
	}))
}

func (c *Coordinator) handleDbClickCheckSubscribeHis(_ context.Context, it *intent.DbClickCheckSubscribeHis) error {
	p := c.pendingHisClick
	if p == nil || !sameEntry(*p, it.His) {
		return nil
	}
	if c.clock.Now().Sub(c.pendingHisClickAt) >= c.window {
		c.pendingHisClick = nil
	}
	return nil
}
