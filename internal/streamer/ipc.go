package streamer

// ServerIpcMessage is one message sent from the parent to a streamer
// child. Go has no tagged union; Kind selects which optional field is
// populated, matching the wire discipline a JSON-tagged Rust enum would
// produce (one externally-tagged object per message).
type ServerIpcMessage struct {
	Kind ServerIpcKind `json:"kind"`

	Init            *InitPayload `json:"init,omitempty"`
	WebSocket       []byte       `json:"web_socket,omitempty"`
	InputWebSocket  []byte       `json:"input_web_socket,omitempty"`
}

// ServerIpcKind enumerates ServerIpcMessage variants.
type ServerIpcKind string

const (
	ServerIpcInit            ServerIpcKind = "init"
	ServerIpcWebSocket       ServerIpcKind = "web_socket"
	ServerIpcInputJoined     ServerIpcKind = "input_joined"
	ServerIpcInputWebSocket  ServerIpcKind = "input_web_socket"
	ServerIpcInputDisconnect ServerIpcKind = "input_disconnected"
	ServerIpcStop            ServerIpcKind = "stop"
)

// InitPayload carries the full per-session launch configuration handed to
// a freshly spawned streamer child.
type InitPayload struct {
	StreamSettings     StreamSettings `json:"stream_settings"`
	HostAddress        string         `json:"host_address"`
	HostHTTPPort       uint16         `json:"host_http_port"`
	ClientUniqueID     string         `json:"client_unique_id"`
	ClientPrivateKey   string         `json:"client_private_key"`
	ClientCertificate  string         `json:"client_certificate"`
	ServerCertificate  string         `json:"server_certificate"`
	AppID              string         `json:"app_id"`
	SessionToken       string         `json:"session_token,omitempty"`
	LaunchMode         string         `json:"launch_mode"`
}

// StreamSettings mirrors the data model's StreamSettings, carried verbatim
// from the client Init message into the child's launch config.
type StreamSettings struct {
	BitrateBps          uint32 `json:"bitrate_bps"`
	PacketSize          uint32 `json:"packet_size"`
	FPS                 uint32 `json:"fps"`
	Width               uint32 `json:"width"`
	Height              uint32 `json:"height"`
	VideoQueueDepth     uint32 `json:"video_queue_depth"`
	AudioQueueDepth     uint32 `json:"audio_queue_depth"`
	PlayAudioLocal      bool   `json:"play_audio_local"`
	VideoSupportedMask  uint32 `json:"video_supported_formats"`
	VideoColorspace     string `json:"video_colorspace"`
	VideoColorRangeFull bool   `json:"video_color_range_full"`
	HybridMode          bool   `json:"hybrid_mode"`
}

// StreamerIpcMessage is one message sent from a streamer child to the
// parent.
type StreamerIpcMessage struct {
	Kind StreamerIpcKind `json:"kind"`

	WebSocket      []byte `json:"web_socket,omitempty"`
	InputSignaling []byte `json:"input_signaling,omitempty"`
}

// StreamerIpcKind enumerates StreamerIpcMessage variants.
type StreamerIpcKind string

const (
	StreamerIpcWebSocket      StreamerIpcKind = "web_socket"
	StreamerIpcInputSignaling StreamerIpcKind = "input_signaling"
	StreamerIpcInputReady     StreamerIpcKind = "input_ready"
	StreamerIpcStop           StreamerIpcKind = "stop"
)
