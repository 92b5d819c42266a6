package orchestrator

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/ethan/moonlight-web-go/internal/session"
	"github.com/ethan/moonlight-web-go/internal/signaling"
	"github.com/ethan/moonlight-web-go/internal/streamer"
	"github.com/ethan/moonlight-web-go/internal/transport"
	"github.com/ethan/moonlight-web-go/internal/transport/webtransportpeer"
)

// RunPrimary drives one primary signaling connection through its full
// lifecycle: Init, host resolution, streamer spawn, transport negotiation,
// and bidirectional signaling/media pumping until the leg or the child
// goes away.
func (o *Orchestrator) RunPrimary(ctx context.Context, conn *signaling.Conn) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	defer conn.Close()

	env, err := conn.ReadEnvelope(ctx)
	if err != nil {
		o.log.Warn("primary leg closed before init", "error", err)
		return
	}
	init, err := signaling.DecodeInit(env)
	if err != nil {
		o.log.Warn("malformed init", "error", err)
		_ = conn.SendInternalServerError("malformed init message")
		return
	}

	sessionID := uuid.NewString()
	log := o.log.With("session_id", sessionID)

	_ = conn.SendStageStarting(StagePreparingStream)

	host, err := o.resolver.Resolve(ctx, init.HostID, init.AppID)
	if err != nil {
		log.Warn("host resolution failed", "error", err)
		_ = conn.SendHostNotFound(init.HostID)
		return
	}

	if err := o.supervisor.CleanupBeforeNewSession(ctx); err != nil {
		log.Warn("pre-session cleanup failed", "error", err)
	}

	child, err := o.supervisor.Spawn(ctx, sessionID)
	if err != nil {
		log.Warn("streamer spawn failed", "error", err)
		_ = conn.SendInternalServerError("failed to launch streamer")
		return
	}
	defer func() {
		_ = child.Send(streamer.ServerIpcMessage{Kind: streamer.ServerIpcStop})
		_ = o.supervisor.Kill(context.Background(), child)
	}()

	var token string
	var sessionEvents chan session.Event
	if init.HybridMode {
		sessionEvents = make(chan session.Event, 10)
		token = o.sessions.Register(sessionID, sessionEvents)
		defer o.sessions.PrimaryDisconnected(sessionID)
	}

	ipcInit := &streamer.InitPayload{
		StreamSettings:    toStreamSettings(init),
		HostAddress:       host.Address,
		HostHTTPPort:      host.HTTPPort,
		ClientUniqueID:    host.ClientUniqueID,
		ClientPrivateKey:  host.ClientPrivateKey,
		ClientCertificate: host.ClientCertificate,
		ServerCertificate: host.ServerCertificate,
		AppID:             fmt.Sprintf("%d", init.AppID),
		SessionToken:      token,
		LaunchMode:        host.LaunchMode,
	}
	if err := child.Send(streamer.ServerIpcMessage{Kind: streamer.ServerIpcInit, Init: ipcInit}); err != nil {
		internalError(conn, log, "streamer rejected configuration", err)
		return
	}
	_ = conn.SendStageComplete(StagePreparingStream)
	_ = conn.SendStageStarting(StageLaunchStreamer)

	_ = conn.SendSetup(signaling.Setup{
		IceServers:           o.iceServers,
		SessionToken:         token,
		WebTransportURL:      o.webtransportURL("/webtransport"),
		WebTransportInputURL: o.webtransportURL("/webtransport/input"),
		CertHash:             o.certHash,
		AvailableTransports:  o.availableTransports(),
	})

	sink, events, candidates, closeSink, err := o.negotiatePrimaryTransport(ctx, conn, init)
	if err != nil {
		internalError(conn, log, "transport negotiation failed", err)
		return
	}
	defer closeSink()
	_ = conn.SendStageComplete(StageLaunchStreamer)

	var wg sync.WaitGroup
	wg.Add(3)
	go func() { defer wg.Done(); o.pumpPrimarySignaling(ctx, conn, child, candidates, cancel, log) }()
	go func() { defer wg.Done(); o.pumpPeerEvents(ctx, conn, child, events, cancel, log) }()
	go func() { defer wg.Done(); o.pumpMedia(ctx, child, sink, log) }()
	if init.HybridMode {
		wg.Add(1)
		go func() { defer wg.Done(); o.pumpSessionEvents(ctx, conn, child, sessionEvents, log) }()
	}

	// Cancellation alone doesn't unblock the pumps: pumpPrimarySignaling and
	// pumpMedia sit on blocking reads (the websocket, the media pipes) that
	// only a close/kill interrupts. Tear those down explicitly before
	// waiting, rather than relying on the deferred cleanup below, which
	// would otherwise run after wg.Wait() and deadlock.
	<-ctx.Done()
	_ = conn.Close()
	_ = o.supervisor.Kill(context.Background(), child)
	wg.Wait()
}

func (o *Orchestrator) webtransportURL(path string) string {
	if o.webtransport == nil {
		return ""
	}
	return "https://" + o.webtransport.ListenAddr() + path
}

// candidateReceiver accepts trickled remote ICE candidates. Only the WebRTC
// peer implements it; a WebTransport session has no ICE phase.
type candidateReceiver interface {
	AddICECandidate(cand transport.ICECandidate) error
}

// negotiatePrimaryTransport races the two transports this gateway offers: a
// WebRTC offer arriving over the existing signaling leg, and a WebTransport
// session arriving at the QUIC endpoint's main path. Whichever resolves
// first becomes the session's media sink; the loser is left to time out
// against the signaling connection's own lifetime.
func (o *Orchestrator) negotiatePrimaryTransport(ctx context.Context, conn *signaling.Conn, init signaling.Init) (mediaSink, <-chan transport.Event, candidateReceiver, func() error, error) {
	type outcome struct {
		sink       mediaSink
		events     <-chan transport.Event
		candidates candidateReceiver
		err        error
	}
	results := make(chan outcome, 2)

	go func() {
		env, err := conn.ReadEnvelope(ctx)
		if err != nil {
			results <- outcome{err: fmt.Errorf("webrtc offer: %w", err)}
			return
		}
		wr, err := signaling.DecodeWebRtc(env)
		if err != nil || wr.Description == nil || wr.Description.Type != signaling.SDPOffer {
			results <- outcome{err: fmt.Errorf("expected webrtc offer, got %q", env.Type)}
			return
		}

		events := make(chan transport.Event, transport.EventQueueCapacity)
		peer, err := o.webrtc.NewPeer(events)
		if err != nil {
			results <- outcome{err: err}
			return
		}
		answer, err := peer.HandleOffer(wr.Description.SDP)
		if err != nil {
			_ = peer.Close()
			results <- outcome{err: err}
			return
		}
		if err := peer.SetupVideo(selectVideoCodec(init.VideoSupportedFormats)); err != nil {
			o.log.Warn("video setup failed", "error", err)
		}
		if _, err := peer.SetupAudio(defaultAudioConfig(init)); err != nil {
			o.log.Warn("audio setup failed", "error", err)
		}
		if err := conn.SendWebRtcDescription(signaling.Description{Type: signaling.SDPAnswer, SDP: answer}); err != nil {
			_ = peer.Close()
			results <- outcome{err: err}
			return
		}
		results <- outcome{sink: peer, events: events, candidates: peer}
	}()

	if o.webtransport != nil {
		go func() {
			sess, err := o.webtransport.AcceptMain(ctx)
			if err != nil {
				results <- outcome{err: fmt.Errorf("webtransport session: %w", err)}
				return
			}
			if err := sess.SetupVideo(selectVideoCodec(init.VideoSupportedFormats)); err != nil {
				o.log.Warn("video setup failed", "error", err)
			}
			if err := sess.SetupAudio(ctx, defaultAudioConfig(init)); err != nil {
				o.log.Warn("audio setup failed", "error", err)
			}
			results <- outcome{sink: sess, events: bridgeWebtransportEvents(ctx, sess, o.log)}
		}()
	}

	out := <-results
	if out.err != nil {
		return nil, nil, nil, func() error { return nil }, out.err
	}
	return out.sink, out.events, out.candidates, func() error { return out.sink.Close() }, nil
}

// bridgeWebtransportEvents adapts webtransportpeer.Session's pull-based
// input stream API into the same push-based transport.Event channel
// webrtcpeer.Peer produces, so pumpPeerEvents can treat both transports
// identically. There is no ICE/SDP phase to mirror, so the stream is
// considered started as soon as the session is accepted.
func bridgeWebtransportEvents(ctx context.Context, sess *webtransportpeer.Session, log interface{ Warn(string, ...any) }) <-chan transport.Event {
	events := make(chan transport.Event, transport.EventQueueCapacity)
	go func() {
		events <- transport.Event{Kind: transport.EventStartStream}
		for {
			_, reader, err := sess.AcceptInputStream(ctx)
			if err != nil {
				events <- transport.Event{Kind: transport.EventClosed}
				return
			}
			go func() {
				defer reader.Close()
				for {
					pkt, err := reader.Next()
					if err != nil {
						return
					}
					select {
					case events <- transport.Event{Kind: transport.EventInboundPacket, Packet: pkt}:
					default:
						log.Warn("webtransport input event queue full, dropping packet")
					}
				}
			}()
		}
	}()
	return events
}

// pumpPrimarySignaling keeps reading primary-leg envelopes after the
// transport negotiation race completes: trickled ICE candidates are applied
// to the WebRTC peer (a no-op receiver when WebTransport won the race), and
// every message is also mirrored verbatim down to the streamer child over
// IPC, since the streamer observes the same session lifecycle the core
// does even though it never terminates signaling itself.
func (o *Orchestrator) pumpPrimarySignaling(ctx context.Context, conn *signaling.Conn, child *streamer.Child, candidates candidateReceiver, cancel context.CancelFunc, log interface {
	Warn(string, ...any)
}) {
	for {
		env, raw, err := conn.ReadRawEnvelope(ctx)
		if err != nil {
			cancel()
			return
		}
		if err := child.Send(streamer.ServerIpcMessage{Kind: streamer.ServerIpcWebSocket, WebSocket: raw}); err != nil {
			log.Warn("failed to mirror primary message to streamer", "error", err)
			cancel()
			return
		}
		if env.Type != signaling.TypeWebRtc || candidates == nil {
			continue
		}
		wr, err := signaling.DecodeWebRtc(env)
		if err != nil || wr.Candidate == nil {
			continue
		}
		if err := candidates.AddICECandidate(transport.ICECandidate{
			Candidate:        wr.Candidate.Candidate,
			SDPMid:           wr.Candidate.SDPMid,
			SDPMLineIndex:    wr.Candidate.SDPMLineIndex,
			UsernameFragment: wr.Candidate.UsernameFragment,
		}); err != nil {
			log.Warn("failed to add ice candidate", "error", err)
		}
	}
}

// pumpPeerEvents drains the active transport peer's event channel: local
// ICE candidates are trickled back over signaling, inbound input packets
// are forwarded down the streamer's input pipe, and closure tears the
// session down.
func (o *Orchestrator) pumpPeerEvents(ctx context.Context, conn *signaling.Conn, child *streamer.Child, events <-chan transport.Event, cancel context.CancelFunc, log interface {
	Warn(string, ...any)
}) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				cancel()
				return
			}
			switch ev.Kind {
			case transport.EventLocalICECandidate:
				_ = conn.SendWebRtcCandidate(signaling.IceCandidate{
					Candidate:        ev.Candidate.Candidate,
					SDPMid:           ev.Candidate.SDPMid,
					SDPMLineIndex:    ev.Candidate.SDPMLineIndex,
					UsernameFragment: ev.Candidate.UsernameFragment,
				})
			case transport.EventInboundPacket:
				if chID, raw, ok := encodeInboundPacket(ev.Packet); ok {
					if err := child.Media.WriteInputPacket(chID, raw); err != nil {
						log.Warn("failed to forward input packet to streamer", "error", err)
					}
				}
			case transport.EventClosed:
				cancel()
				return
			case transport.EventStartStream:
				// media pump starts unconditionally once negotiation
				// completes; this event is purely informational here.
			}
		}
	}
}

// pumpMedia reads decode units and audio samples off the streamer child's
// raw media pipes and forwards them to the negotiated transport sink. Both
// loops terminate on their own once the child exits and MediaPipes.Close
// makes the pipes return EOF; ctx cancellation tears the session down
// through the supervisor.Kill that follows, not by interrupting these
// blocking reads directly.
func (o *Orchestrator) pumpMedia(ctx context.Context, child *streamer.Child, sink mediaSink, log interface {
	Warn(string, ...any)
}) {
	go func() {
		for {
			unit, err := child.Media.ReadVideoUnit()
			if err != nil {
				return
			}
			if _, err := sink.SendVideoUnit(ctx, unit); err != nil {
				log.Warn("video send failed", "error", err)
			}
		}
	}()

	for {
		sample, err := child.Media.ReadAudioSample()
		if err != nil {
			return
		}
		if err := sink.SendAudioSample(sample); err != nil {
			log.Warn("audio send failed", "error", err)
		}
	}
}

// pumpSessionEvents forwards the hybrid session manager's lifecycle events
// to the primary leg: an input peer joining or dropping, and reconnection
// tokens minted after an unexpected input disconnect.
func (o *Orchestrator) pumpSessionEvents(ctx context.Context, conn *signaling.Conn, child *streamer.Child, events <-chan session.Event, log interface {
	Warn(string, ...any)
}) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			switch ev.Kind {
			case session.EventInputJoined:
				_ = conn.SendInputJoined()
				_ = child.Send(streamer.ServerIpcMessage{Kind: streamer.ServerIpcInputJoined})
			case session.EventInputDisconnected:
				_ = conn.SendInputDisconnected()
				_ = child.Send(streamer.ServerIpcMessage{Kind: streamer.ServerIpcInputDisconnect})
			case session.EventReconnectionTokenAvailable:
				_ = conn.SendReconnectionTokenAvailable(ev.Token)
			case session.EventPrimaryDisconnected:
				// only ever delivered to the input side; primary never
				// receives its own disconnect notice.
			}
		}
	}
}
