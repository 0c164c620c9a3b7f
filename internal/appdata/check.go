package appdata

import (
	"errors"
	"fmt"
)

// Check verifies the structural invariants of d and returns every
// violation found.
func (d *AppData) Check() error {
	var errs []error
	known := func(name string, id int) {
		if _, ok := d.Brokers[id]; !ok {
			errs = append(errs, fmt.Errorf("%s: id %d is not a broker", name, id))
		}
	}
	for id := range d.SubscribeTopics {
		known("subscribe_topics", id)
	}
	for id := range d.Msgs {
		known("msgs", id)
	}
	for id := range d.TabStatuses {
		known("tab_statuses", id)
	}
	for id := range d.SubscribeInput {
		known("subscribe_input", id)
	}
	for id := range d.PublicInput {
		known("public_input", id)
	}
	for id := range d.SubscribeHistories {
		known("subscribe_histories", id)
	}

	seenTab := map[int]bool{}
	for _, id := range d.BrokerTabs {
		known("broker_tabs", id)
		if seenTab[id] {
			errs = append(errs, fmt.Errorf("broker_tabs: duplicate id %d", id))
		}
		seenTab[id] = true
	}
	if d.SelectedTab != NoTab && !seenTab[d.SelectedTab] {
		errs = append(errs, fmt.Errorf("selected tab %d is not open", d.SelectedTab))
	}

	for id, b := range d.Brokers {
		if b.ID != id {
			errs = append(errs, fmt.Errorf("brokers: key %d holds broker %d", id, b.ID))
		}
	}

	for id, topics := range d.SubscribeTopics {
		inflight := map[uint16]bool{}
		for _, t := range topics {
			if inflight[t.PacketID] {
				errs = append(errs, fmt.Errorf("subscribe_topics[%d]: duplicate packet id %d", id, t.PacketID))
			}
			inflight[t.PacketID] = true
		}
	}

	for id, s := range d.TabStatuses {
		if s.Connected && s.TryConnect {
			errs = append(errs, fmt.Errorf("tab_statuses[%d]: connected while still trying", id))
		}
	}
	return errors.Join(errs...)
}
