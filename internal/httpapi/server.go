// Package httpapi exposes the gateway's two signaling WebSocket endpoints
// (primary and input) behind a small net/http server, grounded on the
// teacher's pkg/api/server.go CORS/logging middleware shape.
package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/ethan/moonlight-web-go/internal/logging"
	"github.com/ethan/moonlight-web-go/internal/orchestrator"
	"github.com/ethan/moonlight-web-go/internal/signaling"
)

const (
	signalingRateLimit = 20 // messages/sec
	signalingBurst     = 40
)

// Server upgrades the two signaling routes and hands each connection to the
// orchestrator; everything else (host resolution, transport negotiation,
// streamer lifecycle) lives downstream of RunPrimary/RunInput.
type Server struct {
	log  *logging.Logger
	orch *orchestrator.Orchestrator
	srv  *http.Server
}

// NewServer builds the mux but does not start listening; call Start.
func NewServer(log *logging.Logger, orch *orchestrator.Orchestrator) *Server {
	s := &Server{log: log, orch: orch}

	mux := http.NewServeMux()
	mux.HandleFunc("/ws/primary", s.handlePrimary)
	mux.HandleFunc("/ws/input", s.handleInput)
	mux.HandleFunc("/healthz", s.handleHealth)

	s.srv = &http.Server{
		Handler:           s.withCORS(s.withLogging(mux)),
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      0, // signaling connections are long-lived
		IdleTimeout:       60 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
	}

	return s
}

// Start runs the HTTP server until ctx is cancelled.
func (s *Server) Start(ctx context.Context, addr string) error {
	s.srv.Addr = addr

	errCh := make(chan error, 1)
	go func() {
		if err := s.srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
			return
		}
		errCh <- nil
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.srv.Shutdown(shutdownCtx)
		<-errCh
		return ctx.Err()
	case err := <-errCh:
		return err
	}
}

func (s *Server) handlePrimary(w http.ResponseWriter, r *http.Request) {
	conn, err := signaling.Upgrade(s.log, w, r, signalingRateLimit, signalingBurst)
	if err != nil {
		s.log.Warn("primary leg upgrade failed", "error", err)
		return
	}
	s.orch.RunPrimary(r.Context(), conn)
}

func (s *Server) handleInput(w http.ResponseWriter, r *http.Request) {
	conn, err := signaling.Upgrade(s.log, w, r, signalingRateLimit, signalingBurst)
	if err != nil {
		s.log.Warn("input leg upgrade failed", "error", err)
		return
	}
	s.orch.RunInput(r.Context(), conn)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (s *Server) withCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (s *Server) withLogging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		wrapped := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(wrapped, r)

		s.log.Info("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", wrapped.statusCode,
			"duration_ms", time.Since(start).Milliseconds(),
			"remote_addr", r.RemoteAddr,
		)
	})
}

type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}
