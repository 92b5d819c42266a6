package webrtcpeer

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/pion/rtp"
	"github.com/pion/webrtc/v4"

	"github.com/ethan/moonlight-web-go/internal/audio"
	"github.com/ethan/moonlight-web-go/internal/logging"
	"github.com/ethan/moonlight-web-go/internal/protocol"
	"github.com/ethan/moonlight-web-go/internal/transport"
	"github.com/ethan/moonlight-web-go/internal/video"
)

// terminationTimeout is TIMEOUT from §4.D: how long a Failed/Disconnected
// peer is given to recover before the session is torn down.
const terminationTimeout = 10 * time.Second

// terminationGrace is the extra wait added on top of terminationTimeout
// before the one-shot timer actually fires, absorbing scheduling jitter so
// the check-again-then-fire logic doesn't race a last-instant recovery.
const terminationGrace = 200 * time.Millisecond

// Peer wraps one pion PeerConnection with the signaling state machine,
// data-channel routing, and media send paths described in §4.D. The same
// type backs both the primary (media-carrying) peer and the media-free
// hybrid input peer; the input peer is simply never given SetupVideo or
// SetupAudio calls.
//
// Grounded on the teacher's Bridge (pkg/bridge/bridge.go) for the
// track/sequence-number/mutex shape, generalized with the signaling state
// machine and data-channel routing the teacher's one-way relay never
// needed.
type Peer struct {
	log    *logging.Logger
	events chan<- transport.Event

	mu    sync.Mutex
	pc    *webrtc.PeerConnection
	state transport.SignalingState

	terminationSet   time.Time
	terminationTimer *time.Timer

	channels map[protocol.Channel]*webrtc.DataChannel

	videoTrack *webrtc.TrackLocalStaticRTP
	videoSeq   uint16
	videoMu    sync.Mutex
	packetizer *video.Packetizer

	audioTrack *webrtc.TrackLocalStaticRTP
	audioSeq   uint16
	audioStart time.Time
	audioMu    sync.Mutex
}

// NewPeer creates a PeerConnection and wires its event handlers. events is
// the bounded (capacity transport.EventQueueCapacity) channel the owner
// drains; a full channel drops the event with a warning rather than
// blocking the WebRTC callback goroutine.
func (f *Factory) NewPeer(events chan<- transport.Event) (*Peer, error) {
	pc, err := f.newPeerConnection()
	if err != nil {
		return nil, err
	}

	p := &Peer{
		log:      f.log,
		events:   events,
		pc:       pc,
		state:    transport.StateIdle,
		channels: make(map[protocol.Channel]*webrtc.DataChannel),
	}

	pc.OnICECandidate(p.onLocalICECandidate)
	pc.OnConnectionStateChange(p.onConnectionStateChange)
	pc.OnDataChannel(p.onDataChannel)

	if err := p.createChannel(protocol.ChannelGeneral); err != nil {
		p.log.Warn("failed to proactively create general channel", "error", err)
	}

	return p, nil
}

// CreateAllInputChannels creates the full statically-known channel set
// before the caller calls CreateOffer. SCTP streams created after the
// offer's SDP is generated are not advertised in that SDP, so the hybrid
// input peer must front-load channel creation; individual failures are
// logged and do not abort setup (§4.D failure semantics).
func (p *Peer) CreateAllInputChannels() {
	channels := []protocol.Channel{
		protocol.ChannelStats, protocol.ChannelMouseReliable,
		protocol.ChannelMouseAbsolute, protocol.ChannelMouseRelative,
		protocol.ChannelTouch, protocol.ChannelKeyboard, protocol.ChannelControllers,
	}
	for i := 0; i < protocol.MaxControllers; i++ {
		ch, _ := protocol.ControllerChannel(i)
		channels = append(channels, ch)
	}

	for _, ch := range channels {
		if err := p.createChannel(ch); err != nil {
			p.log.Warn("failed to create input channel", "channel", ch.Label(), "error", err)
		}
	}
}

func (p *Peer) createChannel(ch protocol.Channel) error {
	ordered := ch.DeliveryClass() == protocol.OrderedReliable
	init := &webrtc.DataChannelInit{Ordered: &ordered}
	if !ordered {
		zero := uint16(0)
		init.MaxRetransmits = &zero
	}

	dc, err := p.pc.CreateDataChannel(ch.Label(), init)
	if err != nil {
		return fmt.Errorf("webrtcpeer: create data channel %s: %w", ch.Label(), err)
	}
	p.bindChannel(ch, dc)
	return nil
}

func (p *Peer) bindChannel(ch protocol.Channel, dc *webrtc.DataChannel) {
	p.mu.Lock()
	p.channels[ch] = dc
	p.mu.Unlock()

	dc.OnMessage(func(msg webrtc.DataChannelMessage) {
		pkt, ok := protocol.Decode(ch, msg.Data)
		if !ok {
			return // malformed input, dropped silently per §4.A
		}
		p.emit(transport.Event{Kind: transport.EventInboundPacket, Packet: pkt})
	})
}

func (p *Peer) onDataChannel(dc *webrtc.DataChannel) {
	ch, ok := protocol.ChannelByLabel(dc.Label())
	if !ok {
		p.log.DebugWebRTC("ignoring data channel with unknown label", "label", dc.Label())
		return
	}
	p.bindChannel(ch, dc)
}

func (p *Peer) emit(ev transport.Event) {
	select {
	case p.events <- ev:
	default:
		p.log.Warn("webrtc peer event queue full, dropping event", "kind", ev.Kind)
	}
}

func (p *Peer) onLocalICECandidate(c *webrtc.ICECandidate) {
	if c == nil {
		return
	}
	init := c.ToJSON()
	cand := transport.ICECandidate{Candidate: init.Candidate}
	if init.SDPMid != nil {
		cand.SDPMid = *init.SDPMid
	}
	if init.SDPMLineIndex != nil {
		cand.SDPMLineIndex = *init.SDPMLineIndex
	}
	if init.UsernameFragment != nil {
		cand.UsernameFragment = *init.UsernameFragment
	}
	p.emit(transport.Event{Kind: transport.EventLocalICECandidate, Candidate: cand})
}

func (p *Peer) onConnectionStateChange(s webrtc.PeerConnectionState) {
	p.mu.Lock()
	defer p.mu.Unlock()

	switch s {
	case webrtc.PeerConnectionStateConnected:
		p.clearTerminationTimerLocked()
		p.state = transport.StateConnected
		p.emit(transport.Event{Kind: transport.EventStartStream})
	case webrtc.PeerConnectionStateNew:
		p.clearTerminationTimerLocked()
	case webrtc.PeerConnectionStateFailed, webrtc.PeerConnectionStateDisconnected:
		if s == webrtc.PeerConnectionStateFailed {
			p.state = transport.StateFailed
		} else {
			p.state = transport.StateDisconnected
		}
		p.armTerminationTimerLocked()
	case webrtc.PeerConnectionStateClosed:
		p.state = transport.StateClosed
		p.emit(transport.Event{Kind: transport.EventClosed})
	}
}

// armTerminationTimerLocked records the current instant and schedules a
// one-shot check. Called with p.mu held.
func (p *Peer) armTerminationTimerLocked() {
	p.terminationSet = time.Now()
	if p.terminationTimer != nil {
		p.terminationTimer.Stop()
	}
	p.terminationTimer = time.AfterFunc(terminationTimeout+terminationGrace, p.checkTermination)
}

// clearTerminationTimerLocked cancels any outstanding termination check; a
// recovery state (Connected/New) clears the slot entirely. Called with
// p.mu held.
func (p *Peer) clearTerminationTimerLocked() {
	p.terminationSet = time.Time{}
	if p.terminationTimer != nil {
		p.terminationTimer.Stop()
		p.terminationTimer = nil
	}
}

func (p *Peer) checkTermination() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.terminationSet.IsZero() {
		return // recovered before the timer fired
	}
	if time.Since(p.terminationSet) < terminationTimeout {
		return // spurious early fire; recovered recently enough
	}

	p.state = transport.StateClosed
	p.emit(transport.Event{Kind: transport.EventClosed})
}

// State reports the current signaling state.
func (p *Peer) State() transport.SignalingState {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// HandleOffer applies a remote offer, generates and applies a local
// answer, and returns the answer SDP to send back over signaling.
func (p *Peer) HandleOffer(sdp string) (string, error) {
	if err := p.pc.SetRemoteDescription(webrtc.SessionDescription{
		Type: webrtc.SDPTypeOffer, SDP: sdp,
	}); err != nil {
		return "", fmt.Errorf("webrtcpeer: set remote offer: %w", err)
	}

	answer, err := p.pc.CreateAnswer(nil)
	if err != nil {
		return "", fmt.Errorf("webrtcpeer: create answer: %w", err)
	}
	if err := p.pc.SetLocalDescription(answer); err != nil {
		return "", fmt.Errorf("webrtcpeer: set local answer: %w", err)
	}

	p.mu.Lock()
	p.state = transport.StateHaveLocal
	p.mu.Unlock()

	return answer.SDP, nil
}

// HandleAnswer applies a remote answer (used when this peer initiated the
// offer, as the hybrid input peer does).
func (p *Peer) HandleAnswer(sdp string) error {
	if err := p.pc.SetRemoteDescription(webrtc.SessionDescription{
		Type: webrtc.SDPTypeAnswer, SDP: sdp,
	}); err != nil {
		return fmt.Errorf("webrtcpeer: set remote answer: %w", err)
	}
	p.mu.Lock()
	p.state = transport.StateHaveRemote
	p.mu.Unlock()
	return nil
}

// CreateOffer generates a local offer. Must be called after
// CreateAllInputChannels for the hybrid input peer.
func (p *Peer) CreateOffer() (string, error) {
	offer, err := p.pc.CreateOffer(nil)
	if err != nil {
		return "", fmt.Errorf("webrtcpeer: create offer: %w", err)
	}
	if err := p.pc.SetLocalDescription(offer); err != nil {
		return "", fmt.Errorf("webrtcpeer: set local offer: %w", err)
	}
	return offer.SDP, nil
}

// AddICECandidate adds a remote trickled candidate.
func (p *Peer) AddICECandidate(cand transport.ICECandidate) error {
	init := webrtc.ICECandidateInit{Candidate: cand.Candidate}
	if cand.SDPMid != "" {
		init.SDPMid = &cand.SDPMid
	}
	mline := cand.SDPMLineIndex
	init.SDPMLineIndex = &mline
	if cand.UsernameFragment != "" {
		init.UsernameFragment = &cand.UsernameFragment
	}
	if err := p.pc.AddICECandidate(init); err != nil {
		return fmt.Errorf("webrtcpeer: add ice candidate: %w", err)
	}
	return nil
}

// Send transmits an outbound packet over its channel's data channel.
func (p *Peer) Send(pkt protocol.OutboundPacket) transport.SendResult {
	ch, raw, ok := protocol.Encode(pkt)
	if !ok {
		return transport.SendImplError
	}

	p.mu.Lock()
	dc, ok := p.channels[ch]
	p.mu.Unlock()
	if !ok || dc.ReadyState() != webrtc.DataChannelStateOpen {
		return transport.SendChannelClosed
	}

	if err := dc.Send(raw); err != nil {
		p.log.DebugWebRTC("data channel send failed", "channel", ch.Label(), "error", err)
		return transport.SendImplError
	}
	return transport.SendOk
}

// PreferredStatsChannel returns this peer's stats channel if bound, used by
// the hybrid session so the input peer's stats channel is preferred over
// the primary's when both exist (§4.D).
func (p *Peer) PreferredStatsChannel() (*webrtc.DataChannel, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	dc, ok := p.channels[protocol.ChannelStats]
	return dc, ok && dc.ReadyState() == webrtc.DataChannelStateOpen
}

// Close tears down the PeerConnection and cancels the termination timer.
func (p *Peer) Close() error {
	p.mu.Lock()
	p.clearTerminationTimerLocked()
	p.mu.Unlock()
	return p.pc.Close()
}

// SetupVideo registers a video track for codec and prepares the packetizer
// that SendVideoUnit uses.
func (p *Peer) SetupVideo(codec video.Codec) error {
	mime := webrtc.MimeTypeH264
	if codec == video.CodecH265 {
		mime = webrtc.MimeTypeH265
	}

	track, err := webrtc.NewTrackLocalStaticRTP(
		webrtc.RTPCodecCapability{MimeType: mime, ClockRate: 90000},
		"video", "stream",
	)
	if err != nil {
		return fmt.Errorf("webrtcpeer: new video track: %w", err)
	}
	if _, err := p.pc.AddTrack(track); err != nil {
		return fmt.Errorf("webrtcpeer: add video track: %w", err)
	}

	packetizer, err := video.NewPacketizer(codec)
	if err != nil {
		return err
	}

	p.mu.Lock()
	p.videoTrack = track
	p.packetizer = packetizer
	p.videoSeq = uint16(time.Now().UnixNano())
	p.mu.Unlock()
	return nil
}

// SendVideoUnit packetizes and writes unit to the video track.
func (p *Peer) SendVideoUnit(ctx context.Context, unit video.DecodeUnit) (video.SendResult, error) {
	p.mu.Lock()
	packetizer := p.packetizer
	p.mu.Unlock()
	if packetizer == nil {
		return video.SendNeedIdr, fmt.Errorf("webrtcpeer: video not set up")
	}
	return packetizer.SendVideoUnit(ctx, (*rtpFragmentSink)(p), unit)
}

// SetupAudio registers an audio track. There is no application-level
// buffering on the WebRTC path (§4.C); writes go straight to the track.
// The returned id is always 0: there is one audio track per peer, and
// SendAudioSample takes no id.
func (p *Peer) SetupAudio(cfg audio.Config) (int32, error) {
	track, err := webrtc.NewTrackLocalStaticRTP(
		webrtc.RTPCodecCapability{MimeType: webrtc.MimeTypeOpus, ClockRate: 48000, Channels: uint16(max(cfg.Channels, 1))},
		"audio", "stream",
	)
	if err != nil {
		return 0, fmt.Errorf("webrtcpeer: new audio track: %w", err)
	}
	if _, err := p.pc.AddTrack(track); err != nil {
		return 0, fmt.Errorf("webrtcpeer: add audio track: %w", err)
	}

	p.mu.Lock()
	p.audioTrack = track
	p.mu.Unlock()
	p.audioMu.Lock()
	p.audioStart = time.Now()
	p.audioSeq = uint16(time.Now().UnixNano())
	p.audioMu.Unlock()
	return 0, nil
}

// SendAudioSample writes one already-encoded Opus sample directly to the
// audio track as a single RTP packet. There is no application-level
// buffering on this path (§4.C); a full SCTP/SRTP send queue is the
// stack's concern, not this package's.
func (p *Peer) SendAudioSample(sample []byte) error {
	p.mu.Lock()
	track := p.audioTrack
	p.mu.Unlock()
	if track == nil {
		return fmt.Errorf("webrtcpeer: audio not set up")
	}

	p.audioMu.Lock()
	seq := p.audioSeq
	p.audioSeq++
	ts := uint32(time.Since(p.audioStart).Nanoseconds() * 48000 / int64(time.Second))
	p.audioMu.Unlock()

	return track.WriteRTP(&rtp.Packet{
		Header: rtp.Header{
			Version:        2,
			PayloadType:    111,
			SequenceNumber: seq,
			Timestamp:      ts,
			Marker:         true,
		},
		Payload: sample,
	})
}
