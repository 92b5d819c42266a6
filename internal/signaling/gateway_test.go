package signaling_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"

	"github.com/ethan/moonlight-web-go/internal/logging"
	"github.com/ethan/moonlight-web-go/internal/signaling"
)

func newTestLog(t *testing.T) *logging.Logger {
	t.Helper()
	log, err := logging.New(logging.NewConfig())
	require.NoError(t, err)
	return log
}

func dialPair(t *testing.T) (*signaling.Conn, *websocket.Conn) {
	t.Helper()
	log := newTestLog(t)

	var serverConn *signaling.Conn
	ready := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c, err := signaling.Upgrade(log, w, r, rate.Inf, 10)
		require.NoError(t, err)
		serverConn = c
		close(ready)
	}))
	t.Cleanup(srv.Close)

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	clientConn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = clientConn.Close() })

	<-ready
	return serverConn, clientConn
}

func TestConn_SendSetup_RoundTrips(t *testing.T) {
	serverConn, clientConn := dialPair(t)
	t.Cleanup(func() { _ = serverConn.Close() })

	go func() {
		_ = serverConn.SendSetup(signaling.Setup{
			IceServers:          []string{"stun:stun.example.com:19302"},
			AvailableTransports: []string{"webrtc"},
		})
	}()

	_, raw, err := clientConn.ReadMessage()
	require.NoError(t, err)
	assert.Contains(t, string(raw), "stun.example.com")
	assert.Contains(t, string(raw), `"type":"setup"`)
}

func TestConn_ReadEnvelope_DecodesInit(t *testing.T) {
	serverConn, clientConn := dialPair(t)
	t.Cleanup(func() { _ = serverConn.Close() })

	require.NoError(t, clientConn.WriteJSON(map[string]interface{}{
		"type": "init",
		"payload": map[string]interface{}{
			"host_id":     "host-1",
			"app_id":      1,
			"bitrate":     20_000_000,
			"hybrid_mode": true,
		},
	}))

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	env, err := serverConn.ReadEnvelope(ctx)
	require.NoError(t, err)
	assert.Equal(t, signaling.TypeInit, env.Type)

	init, err := signaling.DecodeInit(env)
	require.NoError(t, err)
	assert.Equal(t, "host-1", init.HostID)
	assert.True(t, init.HybridMode)
}

func TestDecodeInit_WrongEnvelopeTypeErrors(t *testing.T) {
	_, err := signaling.DecodeInit(signaling.Envelope{Type: signaling.TypeJoin})
	assert.Error(t, err)
}

func TestDecodeJoin_RoundTrip(t *testing.T) {
	env := signaling.Envelope{Type: signaling.TypeJoin, Payload: []byte(`{"session_token":"abc123"}`)}
	join, err := signaling.DecodeJoin(env)
	require.NoError(t, err)
	assert.Equal(t, "abc123", join.SessionToken)
}
