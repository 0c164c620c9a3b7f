package mqtt

import (
	"context"
	"testing"

	"github.com/eclipse/paho.golang/paho"
	"github.com/stretchr/testify/require"

	"github.com/zjrosen/mqttdesk/internal/domain"
)

func TestRegistry_UnknownBroker(t *testing.T) {
	r := NewRegistry(&mockDialer{}, testOptions())
	ctx := context.Background()

	_, err := r.Subscribe(ctx, 4, "t", domain.AtMostOnce)
	require.ErrorIs(t, err, ErrNoSession)
	_, err = r.Unsubscribe(ctx, 4, "t")
	require.ErrorIs(t, err, ErrNoSession)
	_, err = r.Publish(ctx, 4, "t", nil, domain.AtMostOnce, false)
	require.ErrorIs(t, err, ErrNoSession)
	require.NoError(t, r.Disconnect(4), "disconnect is best effort")
	_, ok := r.Get(4)
	require.False(t, ok)
}

func TestRegistry_DialError(t *testing.T) {
	d := &mockDialer{}
	d.On("Dial", 1).Return(nil, errBoom)
	r := NewRegistry(d, testOptions())

	_, err := r.Connect(context.Background(), domain.NewBroker(1))
	require.ErrorIs(t, err, errBoom)
	require.Zero(t, r.Len())
	d.AssertExpectations(t)
}

func TestRegistry_ConnackFailure(t *testing.T) {
	fc := newFakeClient()
	fc.connack = &paho.Connack{ReasonCode: 0x86}
	d := &mockDialer{}
	d.On("Dial", 0).Return(fc, nil)
	r := NewRegistry(d, testOptions())

	s, err := r.Connect(context.Background(), domain.NewBroker(0))
	require.NoError(t, err)
	ev := nextEvent(t, s)
	require.Equal(t, EventDisconnected, ev.Type)
	require.ErrorContains(t, ev.Err, "0x86")
	requireClosed(t, s)
}

func TestRegistry_ConnectReplacesSession(t *testing.T) {
	r, first, fc, d := connected(t)
	second := newFakeClient()
	d.ExpectedCalls = nil
	d.On("Dial", 0).Return(second, nil)

	s, err := r.Connect(context.Background(), domain.NewBroker(0))
	require.NoError(t, err)
	require.NotSame(t, first, s)
	requireClosed(t, first)
	require.Equal(t, 1, fc.disconnectCount())
	require.Equal(t, EventConnAck, nextEvent(t, s).Type)

	got, ok := r.Get(0)
	require.True(t, ok)
	require.Same(t, s, got)
	require.Equal(t, []int{0}, r.IDs())
}

func TestRegistry_CloseAll(t *testing.T) {
	fcs := map[int]*fakeClient{0: newFakeClient(), 1: newFakeClient()}
	d := &mockDialer{}
	d.On("Dial", 0).Return(fcs[0], nil)
	d.On("Dial", 1).Return(fcs[1], nil)
	r := NewRegistry(d, testOptions())
	for id := range fcs {
		_, err := r.Connect(context.Background(), domain.NewBroker(id))
		require.NoError(t, err)
	}
	require.Equal(t, 2, r.Len())

	r.CloseAll()
	require.Zero(t, r.Len())
	for _, fc := range fcs {
		require.Equal(t, 1, fc.disconnectCount())
	}
}
