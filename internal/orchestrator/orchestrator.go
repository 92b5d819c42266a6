// Package orchestrator implements the stream orchestrator (component I):
// the per-session driver that ties the signaling gateway, the hybrid
// session manager, the streamer supervisor, and the two transport peers
// into one end-to-end pipeline.
//
// Grounded on the teacher's pkg/relay/relay.go, which wires a camera
// source, an RTP sink, and a bridge's lifecycle into a single Run method
// driven by a handful of goroutines fanned out from one entry point. This
// package generalizes that wiring from "one camera, one bridge" to
// "one primary peer, at most one input peer, one streamer child."
package orchestrator

import (
	"context"
	"encoding/binary"
	"fmt"

	"github.com/ethan/moonlight-web-go/internal/audio"
	"github.com/ethan/moonlight-web-go/internal/logging"
	"github.com/ethan/moonlight-web-go/internal/protocol"
	"github.com/ethan/moonlight-web-go/internal/session"
	"github.com/ethan/moonlight-web-go/internal/signaling"
	"github.com/ethan/moonlight-web-go/internal/streamer"
	"github.com/ethan/moonlight-web-go/internal/transport/webrtcpeer"
	"github.com/ethan/moonlight-web-go/internal/transport/webtransportpeer"
	"github.com/ethan/moonlight-web-go/internal/video"
)

// Stage names for the two-step StageStarting/StageComplete progress
// vocabulary.
const (
	StagePreparingStream = "Preparing Stream"
	StageLaunchStreamer  = "Launch Streamer"
)

// HostInfo is everything a streamer child needs to reach and authenticate
// against an upstream host. Host discovery, pairing, and certificate
// issuance are external collaborators this core only consumes through
// HostResolver; the fields mirror original_source's app/host connection
// record (address, HTTP port, client identity material) plus the launch
// mode the caller asked for.
type HostInfo struct {
	Address           string
	HTTPPort          uint16
	ClientUniqueID    string
	ClientPrivateKey  string
	ClientCertificate string
	ServerCertificate string
	LaunchMode        string
}

// HostResolver resolves a host_id/app_id pair from an Init message into the
// connection details a streamer child needs. Pairing and discovery live
// outside this core; this is the seam they plug into.
type HostResolver interface {
	Resolve(ctx context.Context, hostID string, appID uint32) (HostInfo, error)
}

// mediaSink is the media-plane surface the streaming pump needs. Both
// *webrtcpeer.Peer and *webtransportpeer.Session satisfy it, letting the
// pump forward decode units without caring which transport won the
// negotiation race.
type mediaSink interface {
	SendVideoUnit(ctx context.Context, unit video.DecodeUnit) (video.SendResult, error)
	SendAudioSample(sample []byte) error
	Close() error
}

var (
	_ mediaSink = (*webrtcpeer.Peer)(nil)
	_ mediaSink = (*webtransportpeer.Session)(nil)
)

// Orchestrator holds the shared collaborators every session is driven
// through: the webrtc peer factory, the optional webtransport endpoint,
// the streamer supervisor, and the hybrid session manager.
type Orchestrator struct {
	log          *logging.Logger
	resolver     HostResolver
	sessions     *session.Manager
	supervisor   *streamer.Supervisor
	webrtc       *webrtcpeer.Factory
	webtransport *webtransportpeer.Endpoint // nil disables the webtransport transport

	iceServers []string
	certHash   string
}

// New constructs an Orchestrator. wt may be nil if the gateway was
// configured to serve WebRTC only.
func New(log *logging.Logger, resolver HostResolver, sessions *session.Manager, supervisor *streamer.Supervisor, webrtcFactory *webrtcpeer.Factory, wt *webtransportpeer.Endpoint, iceServers []string) *Orchestrator {
	o := &Orchestrator{
		log:          log,
		resolver:     resolver,
		sessions:     sessions,
		supervisor:   supervisor,
		webrtc:       webrtcFactory,
		webtransport: wt,
		iceServers:   iceServers,
	}
	if wt != nil {
		o.certHash = wt.LeafSHA256()
	}
	return o
}

func (o *Orchestrator) availableTransports() []string {
	transports := []string{"webrtc"}
	if o.webtransport != nil {
		transports = append(transports, "webtransport")
	}
	return transports
}

// toStreamSettings copies the client's Init fields into the wire shape the
// streamer child's IPC Init expects. It's a pure field-for-field mapping;
// video_supported_formats rides through as the same bitmask, uninterpreted
// by this core (only the streamer and the packetizer's codec selection
// care about its bits).
func toStreamSettings(init signaling.Init) streamer.StreamSettings {
	return streamer.StreamSettings{
		BitrateBps:          init.BitrateBps,
		PacketSize:          init.PacketSize,
		FPS:                 init.FPS,
		Width:               init.Width,
		Height:              init.Height,
		VideoQueueDepth:     init.VideoFrameQueueSize,
		AudioQueueDepth:     init.AudioSampleQueueSize,
		PlayAudioLocal:      init.PlayAudioLocal,
		VideoSupportedMask:  init.VideoSupportedFormats,
		VideoColorspace:     init.VideoColorspace,
		VideoColorRangeFull: init.VideoColorRangeFull,
		HybridMode:          init.HybridMode,
	}
}

// videoFormatH265 and videoFormatH264 mirror the low two bits of the
// client's video_supported_formats bitmask (§3 data model); H.265 is
// preferred when the client advertises support for both.
const (
	videoFormatH264 = 1 << 0
	videoFormatH265 = 1 << 1
)

func selectVideoCodec(supportedFormats uint32) video.Codec {
	if supportedFormats&videoFormatH265 != 0 {
		return video.CodecH265
	}
	return video.CodecH264
}

// defaultAudioConfig is the Opus multi-stream layout this gateway
// negotiates; nothing in the Init message lets the client choose a
// different one (§3 carries no per-session Opus parameters), so every
// session gets the same stereo configuration (one coupled stream).
func defaultAudioConfig(init signaling.Init) audio.Config {
	return audio.Config{
		Channels:       2,
		Streams:        1,
		CoupledStreams: 1,
		SampleRate:     48000,
		QueueDepth:     int(init.AudioSampleQueueSize),
	}
}

// encodeInboundPacket re-serializes a decoded protocol.InboundPacket back
// to the wire format protocol.Decode parses, so it can be forwarded
// unchanged down the input pipe (fd 5) to the streamer child, which speaks
// the upstream host protocol and has no use for this process's decoded Go
// structs.
func encodeInboundPacket(pkt protocol.InboundPacket) (channelID byte, raw []byte, ok bool) {
	ch := pkt.Channel()
	id, ok := ch.ID()
	if !ok {
		return 0, nil, false
	}

	switch p := pkt.(type) {
	case protocol.MouseAbsolute:
		buf := make([]byte, 8)
		binary.BigEndian.PutUint16(buf[0:2], p.X)
		binary.BigEndian.PutUint16(buf[2:4], p.Y)
		binary.BigEndian.PutUint16(buf[4:6], p.ScreenWidth)
		binary.BigEndian.PutUint16(buf[6:8], p.ScreenHeight)
		return id, buf, true

	case protocol.MouseRelative:
		buf := make([]byte, 4)
		binary.BigEndian.PutUint16(buf[0:2], uint16(p.DeltaX))
		binary.BigEndian.PutUint16(buf[2:4], uint16(p.DeltaY))
		return id, buf, true

	case protocol.MouseButton:
		buf := []byte{p.Button, 0}
		if p.Down {
			buf[1] = 1
		}
		return id, buf, true

	case protocol.Touch:
		buf := make([]byte, 10)
		binary.BigEndian.PutUint32(buf[0:4], p.PointerID)
		binary.BigEndian.PutUint16(buf[4:6], p.X)
		binary.BigEndian.PutUint16(buf[6:8], p.Y)
		buf[8] = p.Pressure
		buf[9] = byte(p.Phase)
		return id, buf, true

	case protocol.Keyboard:
		buf := make([]byte, 4)
		binary.BigEndian.PutUint16(buf[0:2], p.KeyCode)
		buf[2] = p.Modifiers
		if p.Down {
			buf[3] = 1
		}
		return id, buf, true

	case protocol.ControllerState:
		buf := make([]byte, 15)
		buf[0] = byte(p.Index)
		binary.BigEndian.PutUint32(buf[1:5], p.Buttons)
		binary.BigEndian.PutUint16(buf[5:7], uint16(p.LeftStickX))
		binary.BigEndian.PutUint16(buf[7:9], uint16(p.LeftStickY))
		binary.BigEndian.PutUint16(buf[9:11], uint16(p.RightStickX))
		binary.BigEndian.PutUint16(buf[11:13], uint16(p.RightStickY))
		buf[13] = p.LeftTrigger
		buf[14] = p.RightTrigger
		return id, buf, true

	case protocol.Opaque:
		return id, append([]byte(nil), p.Payload...), true

	default:
		return 0, nil, false
	}
}

func mapClaimError(err session.ClaimError) signaling.ErrorCode {
	switch err {
	case session.ClaimSessionNotFound:
		return signaling.ErrorSessionNotFound
	case session.ClaimTokenExpired:
		return signaling.ErrorTokenExpired
	case session.ClaimInputAlreadyConnected:
		return signaling.ErrorInputAlreadyConnected
	default:
		return signaling.ErrorTokenInvalid
	}
}

func internalError(conn *signaling.Conn, log *logging.Logger, stage string, err error) {
	log.Warn(stage, "error", err)
	if sendErr := conn.SendInternalServerError(fmt.Sprintf("%s: %v", stage, err)); sendErr != nil {
		log.Warn("failed to deliver internal error to primary leg", "error", sendErr)
	}
}
