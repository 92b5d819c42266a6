package protocol_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ethan/moonlight-web-go/internal/protocol"
)

func TestDecode_MouseAbsolute(t *testing.T) {
	raw := []byte{0x01, 0x02, 0x03, 0x04, 0x05, 0x06, 0x07, 0x08}
	pkt, ok := protocol.Decode(protocol.ChannelMouseAbsolute, raw)
	require.True(t, ok)
	m, ok := pkt.(protocol.MouseAbsolute)
	require.True(t, ok)
	assert.Equal(t, uint16(0x0102), m.X)
	assert.Equal(t, uint16(0x0304), m.Y)
	assert.Equal(t, uint16(0x0506), m.ScreenWidth)
	assert.Equal(t, uint16(0x0708), m.ScreenHeight)
}

func TestDecode_DropsMalformedLength(t *testing.T) {
	cases := []struct {
		name string
		ch   protocol.Channel
		raw  []byte
	}{
		{"mouse_absolute too short", protocol.ChannelMouseAbsolute, []byte{0x01}},
		{"mouse_relative too long", protocol.ChannelMouseRelative, []byte{0, 0, 0, 0, 0}},
		{"keyboard empty", protocol.ChannelKeyboard, nil},
		{"touch too short", protocol.ChannelTouch, []byte{0, 1, 2}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, ok := protocol.Decode(tc.ch, tc.raw)
			assert.False(t, ok)
		})
	}
}

func TestDecode_ControllerState_RoundTrip(t *testing.T) {
	want := protocol.ControllerState{
		Index:        3,
		Buttons:      0xDEADBEEF,
		LeftStickX:   -100,
		LeftStickY:   200,
		RightStickX:  -300,
		RightStickY:  400,
		LeftTrigger:  10,
		RightTrigger: 20,
	}
	ch, raw, ok := protocol.Encode(want)
	require.True(t, ok)
	assert.Equal(t, protocol.ChannelController0+3, ch)

	got, ok := protocol.Decode(ch, raw)
	require.True(t, ok)
	assert.Equal(t, want, got)
}

func TestDecode_ControllerState_IndexMismatchDropped(t *testing.T) {
	pkt := protocol.ControllerState{Index: 1}
	ch, raw, ok := protocol.Encode(pkt)
	require.True(t, ok)

	// Route bytes claiming index 1 onto the channel for index 2: the
	// embedded index disagrees with the channel routing, so it's dropped.
	otherCh, _ := protocol.ControllerChannel(2)
	_, ok = protocol.Decode(otherCh, raw)
	assert.False(t, ok)
	_ = ch
}

func TestDecode_ControllerState_OutOfRangeIndexDropped(t *testing.T) {
	raw := make([]byte, 15)
	raw[0] = byte(protocol.MaxControllers + 5)
	_, ok := protocol.Decode(protocol.ChannelControllers, raw)
	assert.False(t, ok)
}

func TestDecode_OpaqueChannelsPassThrough(t *testing.T) {
	payload := []byte(`{"event":"ping"}`)
	for _, ch := range []protocol.Channel{protocol.ChannelGeneral, protocol.ChannelStats} {
		pkt, ok := protocol.Decode(ch, payload)
		require.True(t, ok)
		o, ok := pkt.(protocol.Opaque)
		require.True(t, ok)
		assert.Equal(t, ch, o.Channel())
		assert.Equal(t, payload, o.Payload)
	}
}

func TestChannel_LabelRoundTrip(t *testing.T) {
	channels := []protocol.Channel{
		protocol.ChannelGeneral,
		protocol.ChannelStats,
		protocol.ChannelMouseReliable,
		protocol.ChannelMouseAbsolute,
		protocol.ChannelMouseRelative,
		protocol.ChannelTouch,
		protocol.ChannelKeyboard,
		protocol.ChannelControllers,
	}
	for i := 0; i < protocol.MaxControllers; i++ {
		ch, ok := protocol.ControllerChannel(i)
		require.True(t, ok)
		channels = append(channels, ch)
	}

	for _, ch := range channels {
		label := ch.Label()
		got, ok := protocol.ChannelByLabel(label)
		require.True(t, ok, "label %q did not resolve back to a channel", label)
		assert.Equal(t, ch, got)
	}
}

func TestChannel_DeliveryClass(t *testing.T) {
	reliable := []protocol.Channel{
		protocol.ChannelGeneral, protocol.ChannelStats,
		protocol.ChannelMouseReliable, protocol.ChannelTouch, protocol.ChannelKeyboard,
	}
	for _, ch := range reliable {
		assert.Equal(t, protocol.OrderedReliable, ch.DeliveryClass(), ch.Label())
	}

	unreliable := []protocol.Channel{
		protocol.ChannelMouseAbsolute, protocol.ChannelMouseRelative, protocol.ChannelControllers,
	}
	for _, ch := range unreliable {
		assert.Equal(t, protocol.UnorderedUnreliable, ch.DeliveryClass(), ch.Label())
	}
}

func TestControllerChannel_BoundsChecked(t *testing.T) {
	_, ok := protocol.ControllerChannel(-1)
	assert.False(t, ok)
	_, ok = protocol.ControllerChannel(protocol.MaxControllers)
	assert.False(t, ok)

	ch, ok := protocol.ControllerChannel(protocol.MaxControllers - 1)
	require.True(t, ok)
	idx, ok := protocol.ControllerIndex(ch)
	require.True(t, ok)
	assert.Equal(t, protocol.MaxControllers-1, idx)
}

func TestChannelByID_RoundTrip(t *testing.T) {
	ch, ok := protocol.ControllerChannel(5)
	require.True(t, ok)
	id, ok := ch.ID()
	require.True(t, ok)

	got, ok := protocol.ChannelByID(id)
	require.True(t, ok)
	assert.Equal(t, ch, got)
}
