package store

import (
	"fmt"
	"strconv"
	"strings"
)

// KeyKind is the type of value a key addresses.
type KeyKind int

const (
	KindBrokers KeyKind = iota
	KindBroker
	KindSubscribeHises
)

// Key is a typed store key. Its String form is the stored byte key and is
// deterministic: the same logical key always yields the same bytes.
type Key struct {
	Kind KeyKind
	ID   int
}

const (
	brokersName   = "brokers"
	brokerPrefix  = "Broker{"
	historyPrefix = "SubscribeHises{"
	keySuffix     = "}"
)

// BrokersKey addresses the ordered index of broker ids.
func BrokersKey() Key { return Key{Kind: KindBrokers} }

// BrokerKey addresses one broker record.
func BrokerKey(id int) Key { return Key{Kind: KindBroker, ID: id} }

// HistoryKey addresses the subscription history of a broker.
func HistoryKey(id int) Key { return Key{Kind: KindSubscribeHises, ID: id} }

func (k Key) String() string {
	switch k.Kind {
	case KindBroker:
		return brokerPrefix + strconv.Itoa(k.ID) + keySuffix
	case KindSubscribeHises:
		return historyPrefix + strconv.Itoa(k.ID) + keySuffix
	default:
		return brokersName
	}
}

// ParseKey is the inverse of Key.String.
func ParseKey(s string) (Key, error) {
	if s == brokersName {
		return BrokersKey(), nil
	}
	for _, c := range []struct {
		prefix string
		kind   KeyKind
	}{{brokerPrefix, KindBroker}, {historyPrefix, KindSubscribeHises}} {
		if !strings.HasPrefix(s, c.prefix) || !strings.HasSuffix(s, keySuffix) {
			continue
		}
		id, err := strconv.Atoi(s[len(c.prefix) : len(s)-len(keySuffix)])
		if err != nil || id < 0 {
			return Key{}, fmt.Errorf("malformed key %q", s)
		}
		return Key{Kind: c.kind, ID: id}, nil
	}
	return Key{}, fmt.Errorf("unknown key %q", s)
}
