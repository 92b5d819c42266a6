package protocol

// InboundPacket is a decoded message travelling client -> gateway on one of
// the input channels.
type InboundPacket interface {
	Channel() Channel
}

// OutboundPacket is an encoded message travelling gateway -> client.
type OutboundPacket interface {
	Channel() Channel
}

// MouseAbsolute carries an absolute pointer position normalized against the
// sender's reported screen dimensions.
type MouseAbsolute struct {
	X, Y                       uint16
	ScreenWidth, ScreenHeight uint16
}

func (MouseAbsolute) Channel() Channel { return ChannelMouseAbsolute }

// MouseRelative carries a pointer delta since the last reliable flush.
type MouseRelative struct {
	DeltaX, DeltaY int16
}

func (MouseRelative) Channel() Channel { return ChannelMouseRelative }

// MouseButton carries a button press/release on the reliable mouse channel.
type MouseButton struct {
	Button byte
	Down   bool
}

func (MouseButton) Channel() Channel { return ChannelMouseReliable }

// Touch carries a single-point touch event.
type Touch struct {
	PointerID  uint32
	X, Y       uint16
	Pressure   uint8
	Phase      TouchPhase
}

func (Touch) Channel() Channel { return ChannelTouch }

// TouchPhase mirrors the lifecycle of a single contact point.
type TouchPhase byte

const (
	TouchBegan TouchPhase = iota
	TouchMoved
	TouchEnded
	TouchCancelled
)

// Keyboard carries a single key transition.
type Keyboard struct {
	KeyCode   uint16
	Modifiers uint8
	Down      bool
}

func (Keyboard) Channel() Channel { return ChannelKeyboard }

// ControllerState carries a full axis/button snapshot for one controller.
type ControllerState struct {
	Index                    int
	Buttons                  uint32
	LeftStickX, LeftStickY   int16
	RightStickX, RightStickY int16
	LeftTrigger, RightTrigger uint8
}

func (c ControllerState) Channel() Channel {
	ch, ok := ControllerChannel(c.Index)
	if !ok {
		return ChannelControllers
	}
	return ch
}

// Opaque is a pass-through payload for the general and stats channels, which
// carry host-defined JSON/binary blobs this package does not interpret.
type Opaque struct {
	Ch      Channel
	Payload []byte
}

func (o Opaque) Channel() Channel { return o.Ch }
