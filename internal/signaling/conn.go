package signaling

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"

	"github.com/ethan/moonlight-web-go/internal/logging"
)

const writeDeadline = 10 * time.Second

var upgrader = websocket.Upgrader{
	CheckOrigin: func(*http.Request) bool { return true },
}

// Conn is one WebSocket leg (primary or input), framing every message as
// an Envelope the way sendWSMessage does in the nvremote p2p signaling
// handler this package is grounded on, plus a per-connection rate limiter
// so a misbehaving client cannot flood the orchestrator with signaling
// traffic.
type Conn struct {
	log     *logging.Logger
	ws      *websocket.Conn
	limiter *rate.Limiter
}

// Upgrade promotes an HTTP request to a signaling WebSocket connection.
// limit/burst bound the rate of inbound messages this leg will accept
// before ReadEnvelope starts blocking to enforce it.
func Upgrade(log *logging.Logger, w http.ResponseWriter, r *http.Request, limit rate.Limit, burst int) (*Conn, error) {
	ws, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return nil, fmt.Errorf("signaling: upgrade: %w", err)
	}
	return &Conn{log: log, ws: ws, limiter: rate.NewLimiter(limit, burst)}, nil
}

// Send marshals payload and writes it under the given envelope type.
func (c *Conn) Send(msgType string, payload interface{}) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("signaling: marshal %s payload: %w", msgType, err)
	}
	env := Envelope{Type: msgType, Payload: raw}
	envBytes, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("signaling: marshal envelope: %w", err)
	}

	if err := c.ws.SetWriteDeadline(time.Now().Add(writeDeadline)); err != nil {
		return fmt.Errorf("signaling: set write deadline: %w", err)
	}
	if err := c.ws.WriteMessage(websocket.TextMessage, envBytes); err != nil {
		return fmt.Errorf("signaling: write message: %w", err)
	}
	return nil
}

// ReadEnvelope blocks for the next inbound message. It applies the rate
// limiter before returning, so a client that floods the socket faces
// growing delay between processed messages rather than having the gateway
// relay them straight through to the orchestrator.
func (c *Conn) ReadEnvelope(ctx context.Context) (Envelope, error) {
	env, _, err := c.ReadRawEnvelope(ctx)
	return env, err
}

// ReadRawEnvelope is ReadEnvelope plus the undecoded envelope bytes, for
// callers that need to mirror the message verbatim (the orchestrator
// forwards every primary-leg message down to the streamer child alongside
// handling it locally).
func (c *Conn) ReadRawEnvelope(ctx context.Context) (Envelope, []byte, error) {
	_, raw, err := c.ws.ReadMessage()
	if err != nil {
		return Envelope{}, nil, fmt.Errorf("signaling: read message: %w", err)
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return Envelope{}, nil, fmt.Errorf("signaling: rate limit: %w", err)
	}
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return Envelope{}, nil, fmt.Errorf("signaling: decode envelope: %w", err)
	}
	return env, raw, nil
}

// SendRaw writes payload directly as a text frame, bypassing envelope
// marshaling. Used to relay a streamer child's already-framed message
// verbatim back to a signaling leg.
func (c *Conn) SendRaw(payload []byte) error {
	if err := c.ws.SetWriteDeadline(time.Now().Add(writeDeadline)); err != nil {
		return fmt.Errorf("signaling: set write deadline: %w", err)
	}
	if err := c.ws.WriteMessage(websocket.TextMessage, payload); err != nil {
		return fmt.Errorf("signaling: write message: %w", err)
	}
	return nil
}

// Close closes the underlying WebSocket connection.
func (c *Conn) Close() error {
	return c.ws.Close()
}
