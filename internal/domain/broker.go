package domain

import (
	"net"
	"strconv"
	"strings"

	"github.com/google/uuid"
)

// DefaultPort is the port prefilled for new brokers.
const DefaultPort uint16 = 1883

// Broker is a configured MQTT endpoint plus credentials.
// Selected and Stored are UI-side flags and are never persisted.
type Broker struct {
	ID             int    `json:"id"`
	ClientID       string `json:"client_id"`
	Name           string `json:"name"`
	Addr           string `json:"addr"`
	Port           uint16 `json:"port"`
	Params         string `json:"params"`
	UseCredentials bool   `json:"use_credentials"`
	UserName       string `json:"user_name"`
	Password       string `json:"password"`

	Selected bool `json:"-"`
	Stored   bool `json:"-"`
}

// NewBroker returns an unsaved broker with a generated client id.
func NewBroker(id int) Broker {
	return Broker{
		ID:       id,
		ClientID: "mqttdesk-" + uuid.NewString()[:8],
		Name:     "broker-" + strconv.Itoa(id),
		Addr:     "127.0.0.1",
		Port:     DefaultPort,
	}
}

// Endpoint returns host:port suitable for net.Dial.
func (b Broker) Endpoint() string {
	return net.JoinHostPort(b.Addr, strconv.Itoa(int(b.Port)))
}

// Validate checks the persisted fields.
func (b Broker) Validate() error {
	if err := NotEmpty("name", b.Name); err != nil {
		return err
	}
	if err := NotEmpty("client_id", b.ClientID); err != nil {
		return err
	}
	if err := NotEmpty("addr", b.Addr); err != nil {
		return err
	}
	if b.Port == 0 {
		return invalid("port", ErrInvalidPort)
	}
	if b.UseCredentials {
		if err := NotEmpty("user_name", b.UserName); err != nil {
			return err
		}
	}
	return nil
}

// SameEndpoint reports whether two records describe the same persisted broker,
// ignoring the id and the transient flags.
func (b Broker) SameEndpoint(o Broker) bool {
	return b.ClientID == o.ClientID && b.Name == o.Name && b.Addr == o.Addr &&
		b.Port == o.Port && b.Params == o.Params && b.UseCredentials == o.UseCredentials &&
		b.UserName == o.UserName && b.Password == o.Password
}

// BrokerForm is the raw text of the broker edit form.
type BrokerForm struct {
	Name           string
	ClientID       string
	Addr           string
	Port           string
	Params         string
	UseCredentials bool
	UserName       string
	Password       string
}

// FormFromBroker fills a form from an existing broker.
func FormFromBroker(b Broker) BrokerForm {
	return BrokerForm{
		Name:           b.Name,
		ClientID:       b.ClientID,
		Addr:           b.Addr,
		Port:           strconv.Itoa(int(b.Port)),
		Params:         b.Params,
		UseCredentials: b.UseCredentials,
		UserName:       b.UserName,
		Password:       b.Password,
	}
}

// Apply validates the form and writes it over b, keeping id and flags.
func (f BrokerForm) Apply(b Broker) (Broker, error) {
	port, err := ParsePort(f.Port)
	if err != nil {
		return b, err
	}
	out := b
	out.Name = strings.TrimSpace(f.Name)
	out.ClientID = strings.TrimSpace(f.ClientID)
	out.Addr = strings.TrimSpace(f.Addr)
	out.Port = port
	out.Params = f.Params
	out.UseCredentials = f.UseCredentials
	out.UserName = f.UserName
	out.Password = f.Password
	if err := out.Validate(); err != nil {
		return b, err
	}
	return out, nil
}

// BrokerParams are the recognised key=value options of Broker.Params,
// separated by ';', ',' or whitespace. Unknown keys are ignored.
type BrokerParams struct {
	CleanStart     bool
	SessionExpiry  uint32
	ConnectTimeout int // seconds, 0 means the configured default
}

// ParseParams reads b.Params.
func (b Broker) ParseParams() BrokerParams {
	p := BrokerParams{CleanStart: true}
	fields := strings.FieldsFunc(b.Params, func(r rune) bool {
		return r == ';' || r == ',' || r == ' ' || r == '\n' || r == '\t'
	})
	for _, f := range fields {
		k, v, ok := strings.Cut(f, "=")
		if !ok {
			continue
		}
		switch strings.ToLower(strings.TrimSpace(k)) {
		case "clean_start":
			if on, err := strconv.ParseBool(strings.TrimSpace(v)); err == nil {
				p.CleanStart = on
			}
		case "session_expiry":
			if n, err := strconv.ParseUint(strings.TrimSpace(v), 10, 32); err == nil {
				p.SessionExpiry = uint32(n)
			}
		case "timeout":
			if n, err := strconv.Atoi(strings.TrimSpace(v)); err == nil && n > 0 {
				p.ConnectTimeout = n
			}
		}
	}
	return p
}
