package webrtcpeer_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ethan/moonlight-web-go/internal/logging"
	"github.com/ethan/moonlight-web-go/internal/protocol"
	"github.com/ethan/moonlight-web-go/internal/transport"
	"github.com/ethan/moonlight-web-go/internal/transport/webrtcpeer"
	"github.com/ethan/moonlight-web-go/internal/video"
)

func newTestFactory(t *testing.T) *webrtcpeer.Factory {
	t.Helper()
	log, err := logging.New(logging.NewConfig())
	require.NoError(t, err)

	f, err := webrtcpeer.NewFactory(log, webrtcpeer.Config{
		SupportedVideoCodecs: []video.Codec{video.CodecH264, video.CodecH265},
	})
	require.NoError(t, err)
	return f
}

func TestPeer_NewPeerStartsIdle(t *testing.T) {
	f := newTestFactory(t)
	events := make(chan transport.Event, transport.EventQueueCapacity)

	p, err := f.NewPeer(events)
	require.NoError(t, err)
	t.Cleanup(func() { _ = p.Close() })

	assert.Equal(t, transport.StateIdle, p.State())
}

func TestPeer_CreateAllInputChannelsDoesNotPanicOnIndividualFailure(t *testing.T) {
	f := newTestFactory(t)
	events := make(chan transport.Event, transport.EventQueueCapacity)

	p, err := f.NewPeer(events)
	require.NoError(t, err)
	t.Cleanup(func() { _ = p.Close() })

	assert.NotPanics(t, func() {
		p.CreateAllInputChannels()
	})
}

func TestPeer_SendBeforeChannelOpenReportsChannelClosed(t *testing.T) {
	f := newTestFactory(t)
	events := make(chan transport.Event, transport.EventQueueCapacity)

	p, err := f.NewPeer(events)
	require.NoError(t, err)
	t.Cleanup(func() { _ = p.Close() })

	result := p.Send(protocol.Opaque{Ch: protocol.ChannelGeneral, Payload: []byte("hi")})
	assert.Equal(t, transport.SendChannelClosed, result)
}

func TestPeer_SendUnknownPacketTypeIsImplError(t *testing.T) {
	f := newTestFactory(t)
	events := make(chan transport.Event, transport.EventQueueCapacity)

	p, err := f.NewPeer(events)
	require.NoError(t, err)
	t.Cleanup(func() { _ = p.Close() })

	result := p.Send(unencodable{})
	assert.Equal(t, transport.SendImplError, result)
}

type unencodable struct{}

func (unencodable) Channel() protocol.Channel { return protocol.ChannelGeneral }

func TestPeer_CreateOfferAfterInputChannelsSucceeds(t *testing.T) {
	f := newTestFactory(t)
	events := make(chan transport.Event, transport.EventQueueCapacity)

	p, err := f.NewPeer(events)
	require.NoError(t, err)
	t.Cleanup(func() { _ = p.Close() })

	p.CreateAllInputChannels()

	sdp, err := p.CreateOffer()
	require.NoError(t, err)
	assert.NotEmpty(t, sdp)
}
