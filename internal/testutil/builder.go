package testutil

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/zjrosen/mqttdesk/internal/domain"
	"github.com/zjrosen/mqttdesk/internal/store"
)

// Builder accumulates brokers and history entries and saves them in order.
type Builder struct {
	t         *testing.T
	st        *store.Store
	brokers   []domain.Broker
	histories []domain.SubscribeHis
}

// NewBuilder creates a builder for st.
func NewBuilder(t *testing.T, st *store.Store) *Builder {
	t.Helper()
	return &Builder{t: t, st: st}
}

// WithBroker adds a broker.
func (b *Builder) WithBroker(id int, opts ...BrokerOption) *Builder {
	b.brokers = append(b.brokers, Broker(id, opts...))
	return b
}

// WithHistory remembers a subscription of broker id.
func (b *Builder) WithHistory(id int, topic string, qos domain.QoS) *Builder {
	b.histories = append(b.histories, domain.SubscribeHis{
		BrokerID:    id,
		Topic:       topic,
		QoS:         qos,
		PayloadType: domain.PayloadText,
	})
	return b
}

// Build saves everything and returns the brokers.
func (b *Builder) Build() []domain.Broker {
	b.t.Helper()
	ctx := context.Background()
	for _, br := range b.brokers {
		require.NoError(b.t, b.st.SaveBroker(ctx, br))
	}
	for _, h := range b.histories {
		_, _, err := b.st.AppendHistory(ctx, h.BrokerID, h)
		require.NoError(b.t, err)
	}
	return b.brokers
}
