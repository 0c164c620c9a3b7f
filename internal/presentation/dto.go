package presentation

import (
	"github.com/zjrosen/mqttdesk/internal/domain"
)

// BrokerDTO represents a stored broker for presentation. The password is
// never included.
type BrokerDTO struct {
	ID             int          `json:"id"`
	Name           string       `json:"name"`
	ClientID       string       `json:"client_id"`
	Endpoint       string       `json:"endpoint"`
	Params         string       `json:"params,omitempty"`
	UseCredentials bool         `json:"use_credentials"`
	UserName       string       `json:"user_name,omitempty"`
	History        []HistoryDTO `json:"history"` // always present
}

// HistoryDTO represents one remembered subscription.
type HistoryDTO struct {
	ID          int    `json:"id"`
	Topic       string `json:"topic"`
	QoS         int    `json:"qos"`
	PayloadType string `json:"payload_type"`
}

// FromDomainBroker converts a broker and its history (which may be nil).
func FromDomainBroker(b domain.Broker, h *domain.SubscribeHistory) BrokerDTO {
	dto := BrokerDTO{
		ID:             b.ID,
		Name:           b.Name,
		ClientID:       b.ClientID,
		Endpoint:       b.Endpoint(),
		Params:         b.Params,
		UseCredentials: b.UseCredentials,
		History:        []HistoryDTO{},
	}
	if b.UseCredentials {
		dto.UserName = b.UserName
	}
	if h == nil {
		return dto
	}
	for _, e := range h.Entries {
		dto.History = append(dto.History, HistoryDTO{
			ID:          e.ID,
			Topic:       e.Topic,
			QoS:         int(e.QoS),
			PayloadType: string(e.PayloadType),
		})
	}
	return dto
}

// FromDomainBrokers converts brokers in order, looking histories up by id.
func FromDomainBrokers(brokers []domain.Broker, histories map[int]*domain.SubscribeHistory) []BrokerDTO {
	result := make([]BrokerDTO, 0, len(brokers))
	for _, b := range brokers {
		result = append(result, FromDomainBroker(b, histories[b.ID]))
	}
	return result
}
