package webtransportpeer

import (
	"context"
	"fmt"
	"net/http"
	"sync"

	"github.com/quic-go/quic-go"
	"github.com/quic-go/quic-go/http3"
	"github.com/quic-go/webtransport-go"

	"github.com/ethan/moonlight-web-go/internal/logging"
)

// Config describes the QUIC listener this endpoint binds.
type Config struct {
	ListenAddr string
	CertFile   string
	KeyFile    string
	SelfSigned bool
}

const (
	mainPath  = "/webtransport"
	inputPath = "/webtransport/input"
)

// Endpoint is a single QUIC/HTTP3 listener serving exactly one primary
// binding and one input binding at a time, mirroring the gateway's
// single-active-session model: a second client attempting to connect to an
// already-bound path is turned away with too_many_requests before any
// WebTransport handshake work happens.
type Endpoint struct {
	log        *logging.Logger
	identity   *Identity
	wt         *webtransport.Server
	listenAddr string

	mu          sync.Mutex
	mainWaiting chan *webtransport.Session
	mainBound   bool
	inputWaiting chan *webtransport.Session
	inputBound  bool
}

// NewEndpoint builds the TLS identity and HTTP3 mux but does not start
// listening; call Serve to run the accept loop.
func NewEndpoint(log *logging.Logger, cfg Config) (*Endpoint, error) {
	identity, err := LoadOrGenerateIdentity(cfg.CertFile, cfg.KeyFile, cfg.SelfSigned)
	if err != nil {
		return nil, fmt.Errorf("webtransportpeer: identity: %w", err)
	}

	e := &Endpoint{
		log:          log,
		identity:     identity,
		listenAddr:   cfg.ListenAddr,
		mainWaiting:  make(chan *webtransport.Session, 1),
		inputWaiting: make(chan *webtransport.Session, 1),
	}

	mux := http.NewServeMux()
	mux.HandleFunc(mainPath, e.handleMain)
	mux.HandleFunc(inputPath, e.handleInput)

	e.wt = &webtransport.Server{
		H3: http3.Server{
			Addr:      cfg.ListenAddr,
			TLSConfig: identity.TLSConfig(),
			QUICConfig: &quic.Config{
				EnableDatagrams: true,
			},
			Handler: mux,
		},
		CheckOrigin: func(*http.Request) bool { return true },
	}

	return e, nil
}

// LeafSHA256 exposes the pinned certificate hash, published in the signaling
// Setup message so a browser client can verify the QUIC connection.
func (e *Endpoint) LeafSHA256() string {
	return e.identity.LeafSHA256
}

// ListenAddr returns the configured host:port, used to build the
// webtransport_url/webtransport_input_url fields of the Setup message.
func (e *Endpoint) ListenAddr() string {
	return e.listenAddr
}

// Serve runs the accept loop until ctx is cancelled.
func (e *Endpoint) Serve(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- e.wt.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		_ = e.wt.Close()
		<-errCh
		return ctx.Err()
	case err := <-errCh:
		return err
	}
}

func (e *Endpoint) handleMain(w http.ResponseWriter, r *http.Request) {
	e.mu.Lock()
	if e.mainBound {
		e.mu.Unlock()
		http.Error(w, "too many requests", http.StatusTooManyRequests)
		return
	}
	e.mainBound = true
	e.mu.Unlock()

	sess, err := e.wt.Upgrade(w, r)
	if err != nil {
		e.log.Warn("webtransport main upgrade failed", "err", err)
		e.mu.Lock()
		e.mainBound = false
		e.mu.Unlock()
		http.Error(w, "upgrade failed", http.StatusInternalServerError)
		return
	}

	select {
	case e.mainWaiting <- sess:
	default:
		_ = sess.CloseWithError(0, "no waiter")
		e.mu.Lock()
		e.mainBound = false
		e.mu.Unlock()
	}
}

func (e *Endpoint) handleInput(w http.ResponseWriter, r *http.Request) {
	e.mu.Lock()
	if !e.mainBound {
		e.mu.Unlock()
		http.Error(w, "forbidden", http.StatusForbidden)
		return
	}
	if e.inputBound {
		e.mu.Unlock()
		http.Error(w, "too many requests", http.StatusTooManyRequests)
		return
	}
	e.inputBound = true
	e.mu.Unlock()

	sess, err := e.wt.Upgrade(w, r)
	if err != nil {
		e.log.Warn("webtransport input upgrade failed", "err", err)
		e.mu.Lock()
		e.inputBound = false
		e.mu.Unlock()
		http.Error(w, "upgrade failed", http.StatusInternalServerError)
		return
	}

	select {
	case e.inputWaiting <- sess:
	default:
		_ = sess.CloseWithError(0, "no waiter")
		e.mu.Lock()
		e.inputBound = false
		e.mu.Unlock()
	}
}

// AcceptMain blocks until a primary client completes the WebTransport
// handshake on the main path, or ctx is cancelled.
func (e *Endpoint) AcceptMain(ctx context.Context) (*Session, error) {
	select {
	case sess := <-e.mainWaiting:
		return newSession(e.log, sess, e.releaseMain), nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// AcceptInput blocks until an input client completes the handshake on the
// input path, or ctx is cancelled.
func (e *Endpoint) AcceptInput(ctx context.Context) (*Session, error) {
	select {
	case sess := <-e.inputWaiting:
		return newSession(e.log, sess, e.releaseInput), nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (e *Endpoint) releaseMain() {
	e.mu.Lock()
	e.mainBound = false
	e.mu.Unlock()
}

func (e *Endpoint) releaseInput() {
	e.mu.Lock()
	e.inputBound = false
	e.mu.Unlock()
}
