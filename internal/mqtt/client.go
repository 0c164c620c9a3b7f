// Package mqtt manages MQTT v5 sessions, one per connected broker.
//
// Requests (subscribe, unsubscribe, publish) return a packet id at once and
// complete in the background; the acknowledgement arrives later as an Event
// on the session's event channel. A notification pump (see Pump) turns those
// events into coordinator intents.
//
// The packet ids handed out here come from the session's own PacketIDs
// allocator and only correlate requests with their events. paho assigns the
// identifiers sent on the wire separately, so the two need not match.
package mqtt

import (
	"context"
	"errors"
	"fmt"
	"net"

	"github.com/eclipse/paho.golang/paho"

	"github.com/zjrosen/mqttdesk/internal/domain"
	"github.com/zjrosen/mqttdesk/internal/log"
)

var (
	// ErrNoSession is returned for a broker id without a live session.
	ErrNoSession = errors.New("no session for broker")
	// ErrSessionClosed is returned for requests on a session that ended.
	ErrSessionClosed = errors.New("session closed")
)

// Client is the part of *paho.Client a Session uses.
type Client interface {
	Connect(ctx context.Context, cp *paho.Connect) (*paho.Connack, error)
	Subscribe(ctx context.Context, s *paho.Subscribe) (*paho.Suback, error)
	Unsubscribe(ctx context.Context, u *paho.Unsubscribe) (*paho.Unsuback, error)
	Publish(ctx context.Context, p *paho.Publish) (*paho.PublishResponse, error)
	Disconnect(d *paho.Disconnect) error
}

var _ Client = (*paho.Client)(nil)

// Handlers receive unsolicited traffic from a Client.
type Handlers struct {
	OnPublish          func(p *paho.Publish)
	OnClientError      func(err error)
	OnServerDisconnect func(d *paho.Disconnect)
}

// Dialer opens the transport for a broker and wraps it in a Client.
type Dialer interface {
	Dial(ctx context.Context, b domain.Broker, h Handlers) (Client, error)
}

// PahoDialer dials plain TCP and builds a paho.golang client.
type PahoDialer struct{}

var _ Dialer = PahoDialer{}

// Dial connects to b.Endpoint(). The MQTT handshake is not performed here.
func (PahoDialer) Dial(ctx context.Context, b domain.Broker, h Handlers) (Client, error) {
	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", b.Endpoint())
	if err != nil {
		return nil, fmt.Errorf("dialing %s: %w", b.Endpoint(), err)
	}
	log.Debug(log.CatMQTT, "tcp connected", "broker_id", b.ID, "endpoint", b.Endpoint())

	return paho.NewClient(paho.ClientConfig{
		ClientID: b.ClientID,
		Conn:     conn,
		OnPublishReceived: []func(paho.PublishReceived) (bool, error){
			func(pr paho.PublishReceived) (bool, error) {
				if h.OnPublish != nil {
					h.OnPublish(pr.Packet)
				}
				return true, nil
			},
		},
		OnClientError:      h.OnClientError,
		OnServerDisconnect: h.OnServerDisconnect,
	}), nil
}

// connectPacket builds the CONNECT for b.
func connectPacket(b domain.Broker, keepAliveSeconds uint16) *paho.Connect {
	params := b.ParseParams()
	cp := &paho.Connect{
		ClientID:   b.ClientID,
		KeepAlive:  keepAliveSeconds,
		CleanStart: params.CleanStart,
	}
	if b.UseCredentials {
		cp.Username = b.UserName
		cp.UsernameFlag = true
		if b.Password != "" {
			cp.Password = []byte(b.Password)
			cp.PasswordFlag = true
		}
	}
	if params.SessionExpiry > 0 {
		expiry := params.SessionExpiry
		cp.Properties = &paho.ConnectProperties{SessionExpiryInterval: &expiry}
	}
	return cp
}
