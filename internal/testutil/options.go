package testutil

import "github.com/zjrosen/mqttdesk/internal/domain"

// BrokerOption configures a broker added by a Builder.
type BrokerOption func(*domain.Broker)

// Name sets the display name.
func Name(name string) BrokerOption {
	return func(b *domain.Broker) { b.Name = name }
}

// Addr sets host and port.
func Addr(host string, port uint16) BrokerOption {
	return func(b *domain.Broker) {
		b.Addr = host
		b.Port = port
	}
}

// ClientID sets the MQTT client id.
func ClientID(id string) BrokerOption {
	return func(b *domain.Broker) { b.ClientID = id }
}

// Credentials enables username/password authentication.
func Credentials(user, password string) BrokerOption {
	return func(b *domain.Broker) {
		b.UseCredentials = true
		b.UserName = user
		b.Password = password
	}
}

// Params sets the free-form connection parameters.
func Params(p string) BrokerOption {
	return func(b *domain.Broker) { b.Params = p }
}

// Broker returns a valid broker with id and the given options applied.
func Broker(id int, opts ...BrokerOption) domain.Broker {
	b := domain.NewBroker(id)
	for _, opt := range opts {
		opt(&b)
	}
	return b
}
