package orchestrator

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ethan/moonlight-web-go/internal/protocol"
	"github.com/ethan/moonlight-web-go/internal/session"
	"github.com/ethan/moonlight-web-go/internal/signaling"
	"github.com/ethan/moonlight-web-go/internal/video"
)

func TestToStreamSettings_CopiesEveryField(t *testing.T) {
	init := signaling.Init{
		BitrateBps:            8_000_000,
		PacketSize:            1024,
		FPS:                   60,
		Width:                 1920,
		Height:                1080,
		VideoFrameQueueSize:   12,
		AudioSampleQueueSize:  8,
		PlayAudioLocal:        true,
		VideoSupportedFormats: videoFormatH264 | videoFormatH265,
		VideoColorspace:       "bt709",
		VideoColorRangeFull:   true,
		HybridMode:            true,
	}

	got := toStreamSettings(init)

	assert.Equal(t, init.BitrateBps, got.BitrateBps)
	assert.Equal(t, init.PacketSize, got.PacketSize)
	assert.Equal(t, init.FPS, got.FPS)
	assert.Equal(t, init.Width, got.Width)
	assert.Equal(t, init.Height, got.Height)
	assert.Equal(t, init.VideoFrameQueueSize, got.VideoQueueDepth)
	assert.Equal(t, init.AudioSampleQueueSize, got.AudioQueueDepth)
	assert.Equal(t, init.PlayAudioLocal, got.PlayAudioLocal)
	assert.Equal(t, init.VideoSupportedFormats, got.VideoSupportedMask)
	assert.Equal(t, init.VideoColorspace, got.VideoColorspace)
	assert.Equal(t, init.VideoColorRangeFull, got.VideoColorRangeFull)
	assert.Equal(t, init.HybridMode, got.HybridMode)
}

func TestSelectVideoCodec(t *testing.T) {
	assert.Equal(t, video.CodecH264, selectVideoCodec(0))
	assert.Equal(t, video.CodecH264, selectVideoCodec(videoFormatH264))
	assert.Equal(t, video.CodecH265, selectVideoCodec(videoFormatH265))
	assert.Equal(t, video.CodecH265, selectVideoCodec(videoFormatH264|videoFormatH265),
		"h265 is preferred when both are advertised")
}

func TestMapClaimError(t *testing.T) {
	cases := map[session.ClaimError]signaling.ErrorCode{
		session.ClaimSessionNotFound:      signaling.ErrorSessionNotFound,
		session.ClaimTokenExpired:         signaling.ErrorTokenExpired,
		session.ClaimInputAlreadyConnected: signaling.ErrorInputAlreadyConnected,
	}
	for claimErr, wantCode := range cases {
		assert.Equal(t, wantCode, mapClaimError(claimErr))
	}
}

func TestEncodeInboundPacket_RoundTripsThroughDecode(t *testing.T) {
	cases := []protocol.InboundPacket{
		protocol.MouseAbsolute{X: 100, Y: 200, ScreenWidth: 1920, ScreenHeight: 1080},
		protocol.MouseRelative{DeltaX: -5, DeltaY: 12},
		protocol.MouseButton{Button: 2, Down: true},
		protocol.Touch{PointerID: 7, X: 50, Y: 60, Pressure: 200, Phase: protocol.TouchMoved},
		protocol.Keyboard{KeyCode: 65, Modifiers: 1, Down: true},
		protocol.ControllerState{
			Index: 3, Buttons: 0xABCD, LeftStickX: -100, LeftStickY: 200,
			RightStickX: 300, RightStickY: -400, LeftTrigger: 10, RightTrigger: 20,
		},
		protocol.Opaque{Ch: protocol.ChannelGeneral, Payload: []byte("hello")},
	}

	for _, pkt := range cases {
		chID, raw, ok := encodeInboundPacket(pkt)
		require.True(t, ok)

		ch, idOk := pkt.Channel().ID()
		require.True(t, idOk)
		assert.Equal(t, ch, chID)

		decoded, decodeOk := protocol.Decode(pkt.Channel(), raw)
		require.True(t, decodeOk)
		assert.Equal(t, pkt, decoded)
	}
}

func TestAvailableTransports_WebRTCOnlyWithoutEndpoint(t *testing.T) {
	o := &Orchestrator{}
	assert.Equal(t, []string{"webrtc"}, o.availableTransports())
}
