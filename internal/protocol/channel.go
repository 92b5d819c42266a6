// Package protocol implements the channel-driven packet codec (component A):
// serializing and deserializing typed input/output packets keyed by a fixed,
// symmetric set of transport channels. Framing (SCTP message boundaries, or
// the length prefix on each packet of a QUIC input stream) is the
// transport's concern, not this package's.
package protocol

import "fmt"

// Channel is a small enum over the fixed, well-known logical paths between
// the two peers. The set is known to both sides and never grows at runtime.
type Channel int

const (
	ChannelGeneral Channel = iota
	ChannelStats
	ChannelMouseReliable
	ChannelMouseAbsolute
	ChannelMouseRelative
	ChannelTouch
	ChannelKeyboard
	ChannelControllers
	// ChannelController0 is the first of 16 per-controller channels
	// (ChannelController0 .. ChannelController0+MaxControllers-1).
	ChannelController0
)

// MaxControllers bounds the statically-enumerated per-controller channel
// set. Whether the bound is contractual or merely how the upstream source
// happened to enumerate channels isn't clear from the protocol this gateway
// bridges to; the bound is preserved and index overflow is a dropped packet,
// not an error.
const MaxControllers = 16

// DeliveryClass describes the SCTP/QUIC-stream delivery semantics a channel
// maps to.
type DeliveryClass int

const (
	// OrderedReliable channels map to an SCTP ordered, reliable data channel
	// or a QUIC bidirectional stream.
	OrderedReliable DeliveryClass = iota
	// UnorderedUnreliable channels map to an SCTP unordered channel with
	// zero retransmits, or a QUIC datagram.
	UnorderedUnreliable
)

// ControllerChannel returns the channel for controller index idx (0-based).
// ok is false when idx is out of the statically enumerated range; callers
// must drop the packet rather than fabricate a channel.
func ControllerChannel(idx int) (ch Channel, ok bool) {
	if idx < 0 || idx >= MaxControllers {
		return 0, false
	}
	return ChannelController0 + Channel(idx), true
}

// ControllerIndex returns the controller index for a per-controller channel,
// or ok=false if ch is not a per-controller channel.
func ControllerIndex(ch Channel) (idx int, ok bool) {
	if ch < ChannelController0 || ch >= ChannelController0+MaxControllers {
		return 0, false
	}
	return int(ch - ChannelController0), true
}

// Label returns the well-known wire label for a channel. Labels are used as
// SCTP data channel labels (WebRTC) and as the human-readable name logged
// alongside the raw channel id (WebTransport, where the channel id is just
// the first byte of each input stream).
func (c Channel) Label() string {
	switch {
	case c == ChannelGeneral:
		return "general"
	case c == ChannelStats:
		return "stats"
	case c == ChannelMouseReliable:
		return "mouse_reliable"
	case c == ChannelMouseAbsolute:
		return "mouse_absolute"
	case c == ChannelMouseRelative:
		return "mouse_relative"
	case c == ChannelTouch:
		return "touch"
	case c == ChannelKeyboard:
		return "keyboard"
	case c == ChannelControllers:
		return "controllers"
	default:
		if idx, ok := ControllerIndex(c); ok {
			return fmt.Sprintf("controller%d", idx)
		}
		return fmt.Sprintf("unknown(%d)", int(c))
	}
}

// DeliveryClass reports whether this channel's transport binding is
// ordered/reliable or unordered/unreliable. Callers configuring a data
// channel or choosing between a QUIC stream and a datagram use this to
// decide the binding.
func (c Channel) DeliveryClass() DeliveryClass {
	switch c {
	case ChannelGeneral, ChannelStats, ChannelMouseReliable, ChannelTouch, ChannelKeyboard:
		return OrderedReliable
	default:
		// mouse_absolute, mouse_relative, controllers, controllerN
		return UnorderedUnreliable
	}
}

// ChannelByLabel resolves a wire label back to a Channel. Used by the WebRTC
// peer's data channel handler, which only knows the data channel's label.
// The WebTransport peer's input stream router reads a first-byte channel
// id instead and resolves it with ChannelByID.
func ChannelByLabel(label string) (Channel, bool) {
	switch label {
	case "general":
		return ChannelGeneral, true
	case "stats":
		return ChannelStats, true
	case "mouse_reliable":
		return ChannelMouseReliable, true
	case "mouse_absolute":
		return ChannelMouseAbsolute, true
	case "mouse_relative":
		return ChannelMouseRelative, true
	case "touch":
		return ChannelTouch, true
	case "keyboard":
		return ChannelKeyboard, true
	case "controllers":
		return ChannelControllers, true
	default:
		var idx int
		if n, err := fmt.Sscanf(label, "controller%d", &idx); n == 1 && err == nil {
			return ControllerChannel(idx)
		}
		return 0, false
	}
}

// ID returns the single-byte channel identifier used to prefix each
// WebTransport input stream (see §4.E / §6 of the wire format).
func (c Channel) ID() (byte, bool) {
	if c < 0 || c > 255 {
		return 0, false
	}
	return byte(c), true
}

// ChannelByID resolves the first byte of a WebTransport input stream back to
// a Channel.
func ChannelByID(id byte) (Channel, bool) {
	ch := Channel(id)
	if ch == ChannelGeneral || ch == ChannelStats || ch == ChannelMouseReliable ||
		ch == ChannelMouseAbsolute || ch == ChannelMouseRelative || ch == ChannelTouch ||
		ch == ChannelKeyboard || ch == ChannelControllers {
		return ch, true
	}
	if _, ok := ControllerIndex(ch); ok {
		return ch, true
	}
	return 0, false
}
