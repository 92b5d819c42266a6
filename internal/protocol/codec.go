package protocol

import "encoding/binary"

// Decode parses a raw message received on ch into a typed InboundPacket.
// Malformed input (wrong length, out-of-range controller index) is dropped
// silently: ok is false and the caller logs and moves on, matching the
// teacher's NAL/AU framing discipline of skipping a bad unit rather than
// tearing down the stream over it.
func Decode(ch Channel, raw []byte) (pkt InboundPacket, ok bool) {
	switch {
	case ch == ChannelMouseAbsolute:
		if len(raw) != 8 {
			return nil, false
		}
		return MouseAbsolute{
			X:            binary.BigEndian.Uint16(raw[0:2]),
			Y:            binary.BigEndian.Uint16(raw[2:4]),
			ScreenWidth:  binary.BigEndian.Uint16(raw[4:6]),
			ScreenHeight: binary.BigEndian.Uint16(raw[6:8]),
		}, true

	case ch == ChannelMouseRelative:
		if len(raw) != 4 {
			return nil, false
		}
		return MouseRelative{
			DeltaX: int16(binary.BigEndian.Uint16(raw[0:2])),
			DeltaY: int16(binary.BigEndian.Uint16(raw[2:4])),
		}, true

	case ch == ChannelMouseReliable:
		if len(raw) != 2 {
			return nil, false
		}
		return MouseButton{
			Button: raw[0],
			Down:   raw[1] != 0,
		}, true

	case ch == ChannelTouch:
		if len(raw) != 10 {
			return nil, false
		}
		return Touch{
			PointerID: binary.BigEndian.Uint32(raw[0:4]),
			X:         binary.BigEndian.Uint16(raw[4:6]),
			Y:         binary.BigEndian.Uint16(raw[6:8]),
			Pressure:  raw[8],
			Phase:     TouchPhase(raw[9]),
		}, true

	case ch == ChannelKeyboard:
		if len(raw) != 4 {
			return nil, false
		}
		return Keyboard{
			KeyCode:   binary.BigEndian.Uint16(raw[0:2]),
			Modifiers: raw[2],
			Down:      raw[3] != 0,
		}, true

	case ch == ChannelControllers:
		return decodeControllerState(raw, -1)

	default:
		if idx, isController := ControllerIndex(ch); isController {
			return decodeControllerState(raw, idx)
		}
		if ch == ChannelGeneral || ch == ChannelStats {
			return Opaque{Ch: ch, Payload: append([]byte(nil), raw...)}, true
		}
		return nil, false
	}
}

// controllerStateWireLen is Index(1) + Buttons(4) + 4 axes(2 each) + 2 triggers(1 each).
const controllerStateWireLen = 1 + 4 + 8 + 2

func decodeControllerState(raw []byte, routedIndex int) (InboundPacket, bool) {
	if len(raw) != controllerStateWireLen {
		return nil, false
	}
	idx := int(raw[0])
	if routedIndex >= 0 && idx != routedIndex {
		// Per-controller channel must agree with the embedded index;
		// disagreement means the client is confused or malicious.
		return nil, false
	}
	if _, ok := ControllerChannel(idx); !ok {
		return nil, false
	}
	return ControllerState{
		Index:        idx,
		Buttons:      binary.BigEndian.Uint32(raw[1:5]),
		LeftStickX:   int16(binary.BigEndian.Uint16(raw[5:7])),
		LeftStickY:   int16(binary.BigEndian.Uint16(raw[7:9])),
		RightStickX:  int16(binary.BigEndian.Uint16(raw[9:11])),
		RightStickY:  int16(binary.BigEndian.Uint16(raw[11:13])),
		LeftTrigger:  raw[13],
		RightTrigger: raw[14],
	}, true
}

// Encode serializes an OutboundPacket to its wire representation for the
// channel it targets.
func Encode(pkt OutboundPacket) (ch Channel, raw []byte, ok bool) {
	switch p := pkt.(type) {
	case ControllerState:
		buf := make([]byte, controllerStateWireLen)
		buf[0] = byte(p.Index)
		binary.BigEndian.PutUint32(buf[1:5], p.Buttons)
		binary.BigEndian.PutUint16(buf[5:7], uint16(p.LeftStickX))
		binary.BigEndian.PutUint16(buf[7:9], uint16(p.LeftStickY))
		binary.BigEndian.PutUint16(buf[9:11], uint16(p.RightStickX))
		binary.BigEndian.PutUint16(buf[11:13], uint16(p.RightStickY))
		buf[13] = p.LeftTrigger
		buf[14] = p.RightTrigger
		return p.Channel(), buf, true

	case Opaque:
		return p.Ch, append([]byte(nil), p.Payload...), true

	default:
		return 0, nil, false
	}
}
