package orchestrator

import (
	"context"
	"fmt"

	"github.com/ethan/moonlight-web-go/internal/session"
	"github.com/ethan/moonlight-web-go/internal/signaling"
	"github.com/ethan/moonlight-web-go/internal/streamer"
	"github.com/ethan/moonlight-web-go/internal/transport"
)

// RunInput drives one input-leg signaling connection: claim the session
// token, negotiate a media-free transport peer, and forward decoded input
// packets to the claimed session's streamer child for the rest of the
// connection's life.
func (o *Orchestrator) RunInput(ctx context.Context, conn *signaling.Conn) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	defer conn.Close()

	env, err := conn.ReadEnvelope(ctx)
	if err != nil {
		o.log.Warn("input leg closed before join", "error", err)
		return
	}
	join, err := signaling.DecodeJoin(env)
	if err != nil {
		_ = conn.SendError(signaling.ErrorTokenInvalid, "malformed join message")
		return
	}

	inputEvents := make(chan session.Event, 10)
	channels, claimErr := o.sessions.Claim(join.SessionToken, inputEvents)
	if claimErr != session.ClaimOK {
		_ = conn.SendError(mapClaimError(claimErr), claimErr.Error())
		return
	}
	log := o.log.With("session_id", channels.SessionID)

	child, ok := o.supervisor.ChildForSession(channels.SessionID)
	if !ok {
		log.Warn("claimed session has no tracked streamer child")
		_ = conn.SendError(signaling.ErrorSessionNotFound, "session not found")
		o.sessions.InputDisconnected(channels.SessionID)
		return
	}
	_ = child.Send(streamer.ServerIpcMessage{Kind: streamer.ServerIpcInputJoined})

	_ = conn.SendAccepted(o.iceServers)

	sink, events, _, closeSink, err := o.negotiateInputTransport(ctx, conn)
	if err != nil {
		log.Warn("input transport negotiation failed", "error", err)
		o.sessions.InputDisconnected(channels.SessionID)
		return
	}
	defer closeSink()

	go o.pumpInputEvents(ctx, conn, child, events, cancel, log)
	go o.pumpInputSessionEvents(ctx, conn, inputEvents, cancel, log)

	<-ctx.Done()
	_ = conn.Close()
	o.sessions.InputDisconnected(channels.SessionID)
	_ = child.Send(streamer.ServerIpcMessage{Kind: streamer.ServerIpcInputDisconnect})
}

// negotiateInputTransport mirrors negotiatePrimaryTransport's race, minus
// the media setup: a WebRTC offer/answer exchanged over the same signaling
// leg races a WebTransport session arriving at the endpoint's input path.
// Whichever resolves first becomes the input sink; this keeps the hybrid
// input leg on whatever transport the client actually dials, rather than
// forcing WebRTC regardless of what the primary leg negotiated.
func (o *Orchestrator) negotiateInputTransport(ctx context.Context, conn *signaling.Conn) (inputSink, <-chan transport.Event, candidateReceiver, func() error, error) {
	type outcome struct {
		sink       inputSink
		events     <-chan transport.Event
		candidates candidateReceiver
		err        error
	}
	results := make(chan outcome, 2)

	go func() {
		events := make(chan transport.Event, transport.EventQueueCapacity)
		peer, err := o.webrtc.NewPeer(events)
		if err != nil {
			results <- outcome{err: err}
			return
		}
		// The input peer creates its full channel set before generating the
		// offer: channels created after the offer are not advertised in
		// it. The input peer has no video/audio sink.
		peer.CreateAllInputChannels()
		offer, err := peer.CreateOffer()
		if err != nil {
			_ = peer.Close()
			results <- outcome{err: err}
			return
		}
		if err := conn.SendWebRtcDescription(signaling.Description{Type: signaling.SDPOffer, SDP: offer}); err != nil {
			_ = peer.Close()
			results <- outcome{err: err}
			return
		}

		env, err := conn.ReadEnvelope(ctx)
		if err != nil {
			_ = peer.Close()
			results <- outcome{err: err}
			return
		}
		wr, err := signaling.DecodeWebRtc(env)
		if err != nil || wr.Description == nil || wr.Description.Type != signaling.SDPAnswer {
			_ = peer.Close()
			results <- outcome{err: fmt.Errorf("expected webrtc answer, got %q", env.Type)}
			return
		}
		if err := peer.HandleAnswer(wr.Description.SDP); err != nil {
			_ = peer.Close()
			results <- outcome{err: err}
			return
		}
		results <- outcome{sink: peer, events: events, candidates: peer}
	}()

	if o.webtransport != nil {
		go func() {
			sess, err := o.webtransport.AcceptInput(ctx)
			if err != nil {
				results <- outcome{err: fmt.Errorf("webtransport input session: %w", err)}
				return
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

// inputSink is the surface an input peer needs: closure. No video/audio
// methods, since input peers are media-free; ICE candidate trickling is a
// separate, optional capability (candidateReceiver) only the WebRTC path
// has.
type inputSink interface {
	Close() error
}

func (o *Orchestrator) pumpInputEvents(ctx context.Context, conn *signaling.Conn, child *streamer.Child, events <-chan transport.Event, cancel context.CancelFunc, log interface {
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
			}
		}
	}
}

func (o *Orchestrator) pumpInputSessionEvents(ctx context.Context, conn *signaling.Conn, events <-chan session.Event, cancel context.CancelFunc, log interface {
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
			if ev.Kind == session.EventPrimaryDisconnected {
				cancel()
				return
			}
		}
	}
}
