package webrtcpeer

import (
	"fmt"

	"github.com/pion/interceptor"
	"github.com/pion/webrtc/v4"

	"github.com/ethan/moonlight-web-go/internal/logging"
)

// Factory builds PeerConnections sharing one Config, one registered set of
// codecs, and one interceptor registry (RTCP NACK/PLI/TWCC). One Factory is
// constructed per gateway process and reused across sessions, mirroring
// the teacher's single Bridge-per-camera-but-shared-MediaEngine-shape
// pattern generalized to many sessions.
type Factory struct {
	log *logging.Logger
	cfg Config
	api *webrtc.API
}

// NewFactory builds the shared webrtc.API from cfg.
func NewFactory(log *logging.Logger, cfg Config) (*Factory, error) {
	m, err := buildMediaEngine(cfg)
	if err != nil {
		return nil, err
	}

	i := &interceptor.Registry{}
	if err := webrtc.RegisterDefaultInterceptors(m, i); err != nil {
		return nil, fmt.Errorf("webrtcpeer: register interceptors: %w", err)
	}

	se, err := buildSettingEngine(cfg)
	if err != nil {
		return nil, err
	}

	api := webrtc.NewAPI(
		webrtc.WithMediaEngine(m),
		webrtc.WithInterceptorRegistry(i),
		webrtc.WithSettingEngine(se),
	)

	return &Factory{log: log, cfg: cfg, api: api}, nil
}

func (f *Factory) newPeerConnection() (*webrtc.PeerConnection, error) {
	pc, err := f.api.NewPeerConnection(webrtc.Configuration{
		ICEServers: f.cfg.iceServers(),
	})
	if err != nil {
		return nil, fmt.Errorf("webrtcpeer: new peer connection: %w", err)
	}
	return pc, nil
}
