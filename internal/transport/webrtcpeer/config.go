// Package webrtcpeer implements the WebRTC transport peer (component D):
// offer/answer + ICE signaling, data-channel lifecycle, media tracks, and
// send/recv, shared between the primary (media) peer and the media-free
// hybrid input peer.
//
// Grounded on the teacher's pkg/bridge/bridge.go for PeerConnection/
// MediaEngine construction and RTP track writing, and on
// other_examples/67b8cb51_changsongyang-neko's WebRTCManagerCtx for the
// ICE SettingEngine configuration surface (ephemeral port range, NAT 1-to-1
// mapping, allowed network types).
package webrtcpeer

import (
	"fmt"

	"github.com/pion/webrtc/v4"

	"github.com/ethan/moonlight-web-go/internal/video"
)

// Config configures every PeerConnection a Factory produces.
type Config struct {
	ICEServers          []string
	EphemeralPortMin    uint16
	EphemeralPortMax    uint16
	NAT1To1IPs          []string
	AllowedNetworkTypes []webrtc.NetworkType
	IncludeLoopback     bool

	// SupportedVideoCodecs lists the video codecs registered on the
	// MediaEngine shared by every PeerConnection this Factory builds. It is
	// fixed when the Factory is built and is not narrowed per client by the
	// supported-format bitmask in StreamSettings.
	SupportedVideoCodecs []video.Codec
}

func (c Config) iceServers() []webrtc.ICEServer {
	if len(c.ICEServers) == 0 {
		return nil
	}
	return []webrtc.ICEServer{{URLs: c.ICEServers}}
}

func buildSettingEngine(cfg Config) (webrtc.SettingEngine, error) {
	var se webrtc.SettingEngine

	if cfg.EphemeralPortMin != 0 && cfg.EphemeralPortMax != 0 {
		if err := se.SetEphemeralUDPPortRange(cfg.EphemeralPortMin, cfg.EphemeralPortMax); err != nil {
			return se, fmt.Errorf("webrtcpeer: ephemeral port range: %w", err)
		}
	}

	if len(cfg.NAT1To1IPs) > 0 {
		se.SetNAT1To1IPs(cfg.NAT1To1IPs, webrtc.ICECandidateTypeHost)
	}

	if len(cfg.AllowedNetworkTypes) > 0 {
		se.SetNetworkTypes(cfg.AllowedNetworkTypes)
	}

	if cfg.IncludeLoopback {
		se.SetIncludeLoopbackCandidate(true)
	}

	return se, nil
}

func buildMediaEngine(cfg Config) (*webrtc.MediaEngine, error) {
	m := &webrtc.MediaEngine{}

	if err := m.RegisterCodec(webrtc.RTPCodecParameters{
		RTPCodecCapability: webrtc.RTPCodecCapability{
			MimeType:  webrtc.MimeTypeOpus,
			ClockRate: 48000,
			Channels:  2,
		},
		PayloadType: 111,
	}, webrtc.RTPCodecTypeAudio); err != nil {
		return nil, fmt.Errorf("webrtcpeer: register opus: %w", err)
	}

	for _, codec := range cfg.SupportedVideoCodecs {
		switch codec {
		case video.CodecH264:
			if err := m.RegisterCodec(webrtc.RTPCodecParameters{
				RTPCodecCapability: webrtc.RTPCodecCapability{
					MimeType:    webrtc.MimeTypeH264,
					ClockRate:   90000,
					SDPFmtpLine: "level-asymmetry-allowed=1;packetization-mode=1;profile-level-id=42e01f",
				},
				PayloadType: 96,
			}, webrtc.RTPCodecTypeVideo); err != nil {
				return nil, fmt.Errorf("webrtcpeer: register h264: %w", err)
			}
		case video.CodecH265:
			if err := m.RegisterCodec(webrtc.RTPCodecParameters{
				RTPCodecCapability: webrtc.RTPCodecCapability{
					MimeType:  webrtc.MimeTypeH265,
					ClockRate: 90000,
				},
				PayloadType: 98,
			}, webrtc.RTPCodecTypeVideo); err != nil {
				return nil, fmt.Errorf("webrtcpeer: register h265: %w", err)
			}
		}
	}

	return m, nil
}
