package domain

import (
	"errors"
	"strconv"
	"testing"

	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func TestParseQoS(t *testing.T) {
	tests := []struct {
		in      string
		want    QoS
		wantErr bool
	}{
		{"0", AtMostOnce, false},
		{"1", AtLeastOnce, false},
		{"2", ExactlyOnce, false},
		{"3", 0, true},
		{"", 0, true},
		{" 1", 0, true},
		{"01", 0, true},
		{"one", 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseQoS(tt.in)
			if tt.wantErr {
				require.Error(t, err)
				require.True(t, errors.Is(err, ErrInvalidQos))
				return
			}
			require.NoError(t, err)
			require.Equal(t, tt.want, got)
			require.Equal(t, tt.in, got.String())
		})
	}
}

func TestParsePort_Boundaries(t *testing.T) {
	for _, bad := range []string{"0", "65536", "", "abc", "-1", "18 83"} {
		_, err := ParsePort(bad)
		require.ErrorIs(t, err, ErrInvalidPort, "port %q should be rejected", bad)

		var verr *ValidationError
		require.ErrorAs(t, err, &verr)
		require.Equal(t, "port", verr.Field)
	}

	for in, want := range map[string]uint16{"1": 1, "1883": 1883, "65535": 65535} {
		got, err := ParsePort(in)
		require.NoError(t, err)
		require.Equal(t, want, got)
	}
}

// TestParsePort_Property checks that every port in range round-trips and
// nothing above it parses.
func TestParsePort_Property(t *testing.T) {
	rapid.Check(t, func(r *rapid.T) {
		n := rapid.IntRange(1, 65535).Draw(r, "port")
		got, err := ParsePort(strconv.Itoa(n))
		require.NoError(r, err)
		require.Equal(r, uint16(n), got)

		over := rapid.IntRange(65536, 1<<20).Draw(r, "over")
		_, err = ParsePort(strconv.Itoa(over))
		require.ErrorIs(r, err, ErrInvalidPort)
	})
}

func TestPayloadType_EncodeFormat(t *testing.T) {
	b, err := PayloadHex.Encode("68 65 6c 6c 6f")
	require.NoError(t, err)
	require.Equal(t, []byte("hello"), b)
	require.Equal(t, "68656c6c6f", PayloadHex.Format(b))

	_, err = PayloadHex.Encode("zz")
	require.ErrorIs(t, err, ErrInvalidPayload)

	_, err = PayloadJSON.Encode(`{"a":`)
	require.ErrorIs(t, err, ErrInvalidPayload)

	b, err = PayloadJSON.Encode(`{ "a" : 1 }`)
	require.NoError(t, err)
	require.Equal(t, `{"a":1}`, PayloadJSON.Format(b))

	b, err = PayloadText.Encode("hello")
	require.NoError(t, err)
	require.Equal(t, "hello", PayloadText.Format(b))
}

func TestParsePayloadType(t *testing.T) {
	pt, err := ParsePayloadType("")
	require.NoError(t, err)
	require.Equal(t, PayloadText, pt)

	pt, err = ParsePayloadType("JSON")
	require.NoError(t, err)
	require.Equal(t, PayloadJSON, pt)

	_, err = ParsePayloadType("xml")
	require.Error(t, err)
}
