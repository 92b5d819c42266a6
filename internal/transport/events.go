// Package transport defines the shared vocabulary both transport peer
// implementations (WebRTC and WebTransport) speak to the stream
// orchestrator (component I): connection lifecycle events, the outbound
// send result, and the small state machine driving signaling.
package transport

import (
	"github.com/ethan/moonlight-web-go/internal/protocol"
)

// SendResult is the outcome of Send on a peer's sender contract.
type SendResult int

const (
	SendOk SendResult = iota
	SendChannelClosed
	SendImplError
)

// SignalingState mirrors the primary peer's state machine (§4.D).
type SignalingState int

const (
	StateIdle SignalingState = iota
	StateHaveLocal
	StateHaveRemote
	StateConnecting
	StateConnected
	StateFailed
	StateDisconnected
	StateClosed
)

func (s SignalingState) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateHaveLocal:
		return "have_local"
	case StateHaveRemote:
		return "have_remote"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateFailed:
		return "failed"
	case StateDisconnected:
		return "disconnected"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// EventKind tags what a peer is reporting to its owner (the orchestrator or
// the session manager's input slot).
type EventKind int

const (
	EventInboundPacket EventKind = iota
	EventLocalICECandidate
	EventAnswer
	EventStartStream
	EventClosed
)

// Event is a single notification emitted by a transport peer onto its
// bounded event queue (capacity 20, per the concurrency model: full queues
// drop the newest event with a warning rather than block the transport).
type Event struct {
	Kind      EventKind
	Packet    protocol.InboundPacket // set for EventInboundPacket
	SDP       string                 // set for EventAnswer
	Candidate ICECandidate           // set for EventLocalICECandidate
}

// ICECandidate mirrors the wire shape of a trickled ICE candidate.
type ICECandidate struct {
	Candidate        string
	SDPMid           string
	SDPMLineIndex    uint16
	UsernameFragment string
}

// EventQueueCapacity bounds every peer's outbound event channel.
const EventQueueCapacity = 20
