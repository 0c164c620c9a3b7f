// Package appdata holds the state rendered by the UI and the transforms that
// change it. AppData is owned by the UI goroutine; every mutation is a
// Transform scheduled by the coordinator (or applied directly by the UI for
// form edits) and run on that goroutine.
package appdata

import (
	"slices"

	"github.com/zjrosen/mqttdesk/internal/domain"
)

// NoTab is the value of SelectedTab when no broker tab is open.
const NoTab = -1

// MaxMessages bounds the message list of one broker; the oldest are dropped.
const MaxMessages = 1000

// Transform mutates AppData in place. Transforms must keep every key of the
// per-broker maps inside Brokers.
type Transform func(d *AppData)

// AppData is the UI state.
type AppData struct {
	Brokers            map[int]*domain.Broker
	BrokerTabs         []int
	SubscribeHistories map[int]*domain.SubscribeHistory
	SubscribeTopics    map[int][]domain.SubscribeTopic
	Msgs               map[int][]domain.Message
	SubscribeInput     map[int]domain.SubscribeInput
	PublicInput        map[int]domain.PublicInput
	TabStatuses        map[int]domain.TabStatus
	SelectedTab        int
}

// New returns empty state.
func New() *AppData {
	return &AppData{
		Brokers:            map[int]*domain.Broker{},
		SubscribeHistories: map[int]*domain.SubscribeHistory{},
		SubscribeTopics:    map[int][]domain.SubscribeTopic{},
		Msgs:               map[int][]domain.Message{},
		SubscribeInput:     map[int]domain.SubscribeInput{},
		PublicInput:        map[int]domain.PublicInput{},
		TabStatuses:        map[int]domain.TabStatus{},
		SelectedTab:        NoTab,
	}
}

// FromStore builds state from loaded brokers and their histories.
func FromStore(brokers []domain.Broker, histories map[int]*domain.SubscribeHistory) *AppData {
	d := New()
	for _, b := range brokers {
		b.Stored = true
		b.Selected = false
		d.Brokers[b.ID] = &b
		if h, ok := histories[b.ID]; ok && h != nil {
			d.SubscribeHistories[b.ID] = h.Clone()
		} else {
			d.SubscribeHistories[b.ID] = domain.NewSubscribeHistory(b.ID)
		}
	}
	return d
}

// BrokerIDs returns the broker ids in ascending order.
func (d *AppData) BrokerIDs() []int {
	ids := make([]int, 0, len(d.Brokers))
	for id := range d.Brokers {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

// GetBroker returns a copy of the broker with id.
func (d *AppData) GetBroker(id int) (domain.Broker, bool) {
	b, ok := d.Brokers[id]
	if !ok {
		return domain.Broker{}, false
	}
	return *b, true
}

// UpdateBroker applies f to the broker with id and reports whether it exists.
func (d *AppData) UpdateBroker(id int, f func(b *domain.Broker)) bool {
	b, ok := d.Brokers[id]
	if !ok {
		return false
	}
	f(b)
	return true
}

// SelectedBroker returns the broker marked selected in the list.
func (d *AppData) SelectedBroker() (domain.Broker, bool) {
	for _, id := range d.BrokerIDs() {
		if b := d.Brokers[id]; b.Selected {
			return *b, true
		}
	}
	return domain.Broker{}, false
}

// TabStatus returns the connection status of id.
func (d *AppData) TabStatus(id int) domain.TabStatus {
	return d.TabStatuses[id]
}

// History returns the subscription history of id, never nil.
func (d *AppData) History(id int) *domain.SubscribeHistory {
	if h, ok := d.SubscribeHistories[id]; ok && h != nil {
		return h
	}
	return domain.NewSubscribeHistory(id)
}

func (d *AppData) hasTab(id int) bool {
	return slices.Contains(d.BrokerTabs, id)
}

func (d *AppData) openTab(id int) {
	if !d.hasTab(id) {
		d.BrokerTabs = append(d.BrokerTabs, id)
	}
	d.SelectedTab = id
	if _, ok := d.SubscribeInput[id]; !ok {
		d.SubscribeInput[id] = domain.SubscribeInput{QoS: "0", PayloadType: domain.PayloadText}
	}
	if _, ok := d.PublicInput[id]; !ok {
		d.PublicInput[id] = domain.PublicInput{QoS: "0", PayloadType: domain.PayloadText}
	}
}

// dropSession forgets everything that only exists while a tab is open.
func (d *AppData) dropSession(id int) {
	delete(d.SubscribeTopics, id)
	delete(d.Msgs, id)
	delete(d.SubscribeInput, id)
	delete(d.PublicInput, id)
	delete(d.TabStatuses, id)
}

func (d *AppData) closeTab(id int) {
	i := slices.Index(d.BrokerTabs, id)
	if i < 0 {
		return
	}
	d.BrokerTabs = slices.Delete(d.BrokerTabs, i, i+1)
	if d.SelectedTab != id {
		return
	}
	switch {
	case len(d.BrokerTabs) == 0:
		d.SelectedTab = NoTab
	case i < len(d.BrokerTabs):
		d.SelectedTab = d.BrokerTabs[i]
	default:
		d.SelectedTab = d.BrokerTabs[len(d.BrokerTabs)-1]
	}
}
