package signaling

import (
	"encoding/json"
	"fmt"
)

// DecodeInit unmarshals an envelope's payload as Init. It returns an error
// when env.Type is not "init" (for example, a client whose first frame is
// some other message) or when the payload does not decode.
func DecodeInit(env Envelope) (Init, error) {
	var v Init
	if env.Type != TypeInit {
		return v, fmt.Errorf("signaling: expected %q, got %q", TypeInit, env.Type)
	}
	if err := json.Unmarshal(env.Payload, &v); err != nil {
		return v, fmt.Errorf("signaling: decode init: %w", err)
	}
	return v, nil
}

// DecodeWebRtc unmarshals an envelope's payload as a WebRtc union.
func DecodeWebRtc(env Envelope) (WebRtc, error) {
	var v WebRtc
	if env.Type != TypeWebRtc {
		return v, fmt.Errorf("signaling: expected %q, got %q", TypeWebRtc, env.Type)
	}
	if err := json.Unmarshal(env.Payload, &v); err != nil {
		return v, fmt.Errorf("signaling: decode webrtc: %w", err)
	}
	return v, nil
}

// DecodeJoin unmarshals an envelope's payload as Join (input leg only).
func DecodeJoin(env Envelope) (Join, error) {
	var v Join
	if env.Type != TypeJoin {
		return v, fmt.Errorf("signaling: expected %q, got %q", TypeJoin, env.Type)
	}
	if err := json.Unmarshal(env.Payload, &v); err != nil {
		return v, fmt.Errorf("signaling: decode join: %w", err)
	}
	return v, nil
}

// SendWebRtcDescription wraps d in a "webrtc" envelope.
func (c *Conn) SendWebRtcDescription(d Description) error {
	return c.Send(TypeWebRtc, WebRtc{Description: &d})
}

// SendWebRtcCandidate wraps cand in a "webrtc" envelope.
func (c *Conn) SendWebRtcCandidate(cand IceCandidate) error {
	return c.Send(TypeWebRtc, WebRtc{Candidate: &cand})
}

// SendSetup replies to Init with the connection details of every
// available transport.
func (c *Conn) SendSetup(s Setup) error {
	return c.Send(TypeSetup, s)
}

// SendStageStarting announces the beginning of a named orchestration stage.
func (c *Conn) SendStageStarting(name string) error {
	return c.Send(TypeStageStarting, StageStarting{Name: name})
}

// SendStageComplete announces the completion of a named orchestration stage.
func (c *Conn) SendStageComplete(name string) error {
	return c.Send(TypeStageComplete, StageComplete{Name: name})
}

func (c *Conn) SendUpdateApp(u UpdateApp) error {
	return c.Send(TypeUpdateApp, u)
}

func (c *Conn) SendHostNotFound(hostID string) error {
	return c.Send(TypeHostNotFound, HostNotFound{HostID: hostID})
}

func (c *Conn) SendAppNotFound(appID uint32) error {
	return c.Send(TypeAppNotFound, AppNotFound{AppID: appID})
}

func (c *Conn) SendInternalServerError(message string) error {
	return c.Send(TypeInternalServerError, InternalServerError{Message: message})
}

func (c *Conn) SendInputJoined() error {
	return c.Send(TypeInputJoined, InputJoined{})
}

func (c *Conn) SendInputDisconnected() error {
	return c.Send(TypeInputDisconnected, InputDisconnected{})
}

func (c *Conn) SendReconnectionTokenAvailable(token string) error {
	return c.Send(TypeReconnectionTokenAvailable, ReconnectionTokenAvailable{SessionToken: token})
}

// SendAccepted replies to a successful Join on the input leg.
func (c *Conn) SendAccepted(iceServers []string) error {
	return c.Send(TypeAccepted, Accepted{IceServers: iceServers})
}

// SendError replies to a rejected Join on the input leg.
func (c *Conn) SendError(code ErrorCode, message string) error {
	return c.Send(TypeError, Error{Code: code, Message: message})
}
