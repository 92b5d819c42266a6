// Package signaling carries the two WebSocket legs that reach the core: the
// primary (browser/media) leg and the input (secondary) leg. Every message
// on the wire is a {type, payload} envelope, matching the
// thatcooperguy-nvremote p2p signaling handler's sendWSMessage convention.
package signaling

import "encoding/json"

// Envelope is the wire shape of every signaling message in both directions.
type Envelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Primary leg, client → server.

const (
	TypeInit           = "init"
	TypeWebRtc         = "webrtc"
	TypeJoin           = "join" // input leg only
)

// Init is the first message a primary client sends.
type Init struct {
	HostID               string `json:"host_id"`
	AppID                uint32 `json:"app_id"`
	BitrateBps           uint32 `json:"bitrate"`
	PacketSize           uint32 `json:"packet_size"`
	FPS                  uint32 `json:"fps"`
	Width                uint32 `json:"width"`
	Height               uint32 `json:"height"`
	VideoFrameQueueSize  uint32 `json:"video_frame_queue_size"`
	AudioSampleQueueSize uint32 `json:"audio_sample_queue_size"`
	PlayAudioLocal       bool   `json:"play_audio_local"`
	VideoSupportedFormats uint32 `json:"video_supported_formats"`
	VideoColorspace      string `json:"video_colorspace"`
	VideoColorRangeFull  bool   `json:"video_color_range_full"`
	HybridMode           bool   `json:"hybrid_mode"`
}

// SDPType mirrors the three SDP roles the WebRTC state machine accepts.
type SDPType string

const (
	SDPOffer    SDPType = "offer"
	SDPAnswer   SDPType = "answer"
	SDPPranswer SDPType = "pranswer"
)

// WebRtc is a tagged union over the two signaling payloads that ride under
// the "webrtc" envelope type: an SDP description or a trickled candidate.
// Exactly one of Description/Candidate is populated.
type WebRtc struct {
	Description *Description    `json:"description,omitempty"`
	Candidate   *IceCandidate   `json:"candidate,omitempty"`
}

type Description struct {
	Type SDPType `json:"type"`
	SDP  string  `json:"sdp"`
}

type IceCandidate struct {
	Candidate        string `json:"candidate"`
	SDPMid           string `json:"sdp_mid"`
	SDPMLineIndex    uint16 `json:"sdp_mline_index"`
	UsernameFragment string `json:"username_fragment"`
}

// Primary leg, server → client.

const (
	TypeSetup                      = "setup"
	TypeStageStarting              = "stage_starting"
	TypeStageComplete              = "stage_complete"
	TypeUpdateApp                  = "update_app"
	TypeHostNotFound                = "host_not_found"
	TypeAppNotFound                 = "app_not_found"
	TypeInternalServerError         = "internal_server_error"
	TypeInputJoined                 = "input_joined"
	TypeInputDisconnected           = "input_disconnected"
	TypeReconnectionTokenAvailable  = "reconnection_token_available"
)

// Setup is the server's reply to Init, describing how to reach each
// transport plane the core offers for this session; it is sent before
// either transport is negotiated.
type Setup struct {
	IceServers            []string `json:"ice_servers"`
	SessionToken          string   `json:"session_token,omitempty"`
	WebTransportURL       string   `json:"webtransport_url,omitempty"`
	WebTransportInputURL  string   `json:"webtransport_input_url,omitempty"`
	CertHash              string   `json:"cert_hash,omitempty"`
	AvailableTransports   []string `json:"available_transports"`
}

type StageStarting struct {
	Name string `json:"name"`
}

type StageComplete struct {
	Name string `json:"name"`
}

type UpdateApp struct {
	AppID uint32 `json:"app_id"`
	Name  string `json:"name"`
}

type HostNotFound struct {
	HostID string `json:"host_id"`
}

type AppNotFound struct {
	AppID uint32 `json:"app_id"`
}

type InternalServerError struct {
	Message string `json:"message"`
}

type InputJoined struct{}

type InputDisconnected struct{}

type ReconnectionTokenAvailable struct {
	SessionToken string `json:"session_token"`
}

// Input leg.

// Join is the first (and only non-WebRTC) message an input client sends.
type Join struct {
	SessionToken string `json:"session_token"`
}

const (
	TypeAccepted = "accepted"
	TypeError    = "error"
)

type Accepted struct {
	IceServers []string `json:"ice_servers"`
}

// ErrorCode enumerates the input leg's rejection reasons (§4.H / §7).
type ErrorCode string

const (
	ErrorTokenExpired         ErrorCode = "TokenExpired"
	ErrorTokenInvalid         ErrorCode = "TokenInvalid"
	ErrorSessionNotFound      ErrorCode = "SessionNotFound"
	ErrorInputAlreadyConnected ErrorCode = "InputAlreadyConnected"
)

type Error struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
}
