package domain

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// QoS is the MQTT delivery guarantee of a subscription or publish.
type QoS byte

const (
	AtMostOnce  QoS = 0
	AtLeastOnce QoS = 1
	ExactlyOnce QoS = 2
)

// ParseQoS accepts exactly "0", "1" or "2".
func ParseQoS(s string) (QoS, error) {
	switch s {
	case "0":
		return AtMostOnce, nil
	case "1":
		return AtLeastOnce, nil
	case "2":
		return ExactlyOnce, nil
	}
	return 0, invalid("qos", ErrInvalidQos)
}

// String returns the UI encoding of the QoS ("0", "1" or "2").
func (q QoS) String() string {
	return strconv.Itoa(int(q))
}

// Valid reports whether q is one of the three MQTT levels.
func (q QoS) Valid() bool {
	return q <= ExactlyOnce
}

// ParsePort accepts a decimal port in 1..65535.
func ParsePort(s string) (uint16, error) {
	n, err := strconv.ParseUint(strings.TrimSpace(s), 10, 16)
	if err != nil || n == 0 {
		return 0, invalid("port", ErrInvalidPort)
	}
	return uint16(n), nil
}

// PayloadType selects how payload text typed by the operator is turned into
// bytes, and how received bytes are shown back.
type PayloadType string

const (
	PayloadText PayloadType = "text"
	PayloadJSON PayloadType = "json"
	PayloadHex  PayloadType = "hex"
)

// ParsePayloadType maps an empty string to PayloadText.
func ParsePayloadType(s string) (PayloadType, error) {
	switch PayloadType(strings.ToLower(s)) {
	case "", PayloadText:
		return PayloadText, nil
	case PayloadJSON:
		return PayloadJSON, nil
	case PayloadHex:
		return PayloadHex, nil
	}
	return "", invalid("payload_type", fmt.Errorf("unknown payload type %q", s))
}

// Encode converts operator input to wire bytes.
func (p PayloadType) Encode(input string) ([]byte, error) {
	switch p {
	case PayloadJSON:
		if !json.Valid([]byte(input)) {
			return nil, invalid("payload", ErrInvalidPayload)
		}
		return []byte(input), nil
	case PayloadHex:
		b, err := hex.DecodeString(strings.ReplaceAll(input, " ", ""))
		if err != nil {
			return nil, invalid("payload", ErrInvalidPayload)
		}
		return b, nil
	default:
		return []byte(input), nil
	}
}

// Format renders wire bytes for display.
func (p PayloadType) Format(payload []byte) string {
	switch p {
	case PayloadHex:
		return hex.EncodeToString(payload)
	case PayloadJSON:
		var v any
		if err := json.Unmarshal(payload, &v); err == nil {
			if out, err := json.Marshal(v); err == nil {
				return string(out)
			}
		}
		return string(payload)
	default:
		return string(payload)
	}
}
