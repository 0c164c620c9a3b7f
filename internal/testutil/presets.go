package testutil

import "github.com/zjrosen/mqttdesk/internal/domain"

// WithStandardBrokers adds three brokers: a local one with history, one
// with credentials and one with connection parameters.
func (b *Builder) WithStandardBrokers() *Builder {
	return b.
		WithBroker(0, Name("local"), Addr("127.0.0.1", 1883), ClientID("c0")).
		WithBroker(1, Name("secured"), Addr("mqtt.example.com", 8883), ClientID("c1"),
			Credentials("alice", "secret")).
		WithBroker(2, Name("tuned"), Addr("10.0.0.2", 1884), ClientID("c2"),
			Params("clean_start=false\nsession_expiry=60")).
		WithHistory(0, "sensors/#", domain.AtLeastOnce).
		WithHistory(0, "alerts", domain.AtMostOnce)
}
