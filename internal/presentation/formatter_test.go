package presentation

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/zjrosen/mqttdesk/internal/domain"
)

func TestFromDomainBroker_OmitsSecrets(t *testing.T) {
	b := domain.NewBroker(2)
	b.Name = "prod"
	b.UseCredentials = true
	b.UserName = "alice"
	b.Password = "hunter2"

	h := domain.NewSubscribeHistory(2)
	h.Append(domain.SubscribeHis{Topic: "a/#", QoS: 1, PayloadType: domain.PayloadJSON})

	var buf bytes.Buffer
	require.NoError(t, NewFormatter(&buf).FormatBrokers(FromDomainBrokers(
		[]domain.Broker{b}, map[int]*domain.SubscribeHistory{2: h},
	)))
	require.NotContains(t, buf.String(), "hunter2")

	var out []BrokerDTO
	require.NoError(t, json.Unmarshal(buf.Bytes(), &out))
	require.Len(t, out, 1)
	require.Equal(t, "alice", out[0].UserName)
	require.Equal(t, b.Endpoint(), out[0].Endpoint)
	require.Equal(t, []HistoryDTO{{ID: 0, Topic: "a/#", QoS: 1, PayloadType: "json"}}, out[0].History)
}

func TestFromDomainBroker_EmptyHistoryIsArray(t *testing.T) {
	dto := FromDomainBroker(domain.NewBroker(0), nil)

	raw, err := json.Marshal(dto)
	require.NoError(t, err)
	require.Contains(t, string(raw), `"history":[]`)
	require.NotContains(t, string(raw), "user_name")
}

func TestFormatBrokersTable(t *testing.T) {
	b := domain.NewBroker(0)
	b.Name = "local"

	var buf bytes.Buffer
	require.NoError(t, NewFormatter(&buf).FormatBrokersTable(FromDomainBrokers([]domain.Broker{b}, nil)))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)
	require.True(t, strings.HasPrefix(lines[0], "ID"))
	require.Contains(t, lines[1], "local")
	require.Contains(t, lines[1], b.Endpoint())
}
