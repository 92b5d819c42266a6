// Package session implements the hybrid session manager (component F): the
// token-gated rendezvous between a primary (media) peer and a secondary
// (input) peer, with reconnection and lifecycle notifications.
//
// Grounded on the teacher's pkg/nest/multi_manager.go (a mutex-guarded
// registry of per-entity state machines with a background recovery loop)
// and pkg/nest/manager.go (a supervised ticker loop with a cancel-safe
// shutdown).
package session

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ethan/moonlight-web-go/internal/logging"
)

// TokenTTL is how long an issued token remains claimable.
const TokenTTL = 30 * time.Second

// SweepInterval is how often the background sweeper looks for expired,
// unclaimed tokens.
const SweepInterval = 10 * time.Second

// ClaimError enumerates the ways Claim can fail.
type ClaimError int

const (
	ClaimOK ClaimError = iota
	ClaimSessionNotFound
	ClaimTokenExpired
	ClaimInputAlreadyConnected
)

func (e ClaimError) Error() string {
	switch e {
	case ClaimSessionNotFound:
		return "session not found"
	case ClaimTokenExpired:
		return "token expired"
	case ClaimInputAlreadyConnected:
		return "input already connected"
	default:
		return "ok"
	}
}

// EventKind tags the four events the manager fans out.
type EventKind int

const (
	EventInputJoined EventKind = iota
	EventInputDisconnected
	EventPrimaryDisconnected
	EventReconnectionTokenAvailable
)

// Event carries one lifecycle notification for a session.
type Event struct {
	Kind      EventKind
	SessionID string
	Token     string // set only for EventReconnectionTokenAvailable
}

// Channels is the bundle of endpoints a successful Claim hands back to the
// input peer: the event-forwarding is left to the caller (the orchestrator
// wires these into the input peer's transport), this struct only carries
// the identifiers needed to do so.
type Channels struct {
	SessionID string
}

// session is the manager's internal record. Exported field-free; callers
// interact only through Manager's methods, per the "exclusively owns the
// session table" ownership rule.
type session struct {
	id             string
	token          string
	expires        time.Time
	inputConnected bool

	toPrimary chan<- Event
	toInput   chan<- Event
}

// Manager owns the session table and the token→session index behind a
// single mutex, and runs a background sweeper for unclaimed, expired
// tokens.
type Manager struct {
	log *logging.Logger

	mu       sync.Mutex
	sessions map[string]*session
	byToken  map[string]string // token -> session id

	stopOnce sync.Once
	stopCh   chan struct{}
	wg       sync.WaitGroup
}

// NewManager constructs a Manager and starts its background sweeper.
func NewManager(log *logging.Logger) *Manager {
	m := &Manager{
		log:      log,
		sessions: make(map[string]*session),
		byToken:  make(map[string]string),
		stopCh:   make(chan struct{}),
	}
	m.wg.Add(1)
	go m.sweepLoop()
	return m
}

// Close stops the background sweeper and waits for it to exit.
func (m *Manager) Close() {
	m.stopOnce.Do(func() { close(m.stopCh) })
	m.wg.Wait()
}

// Register creates a new session bound to a freshly minted token, valid for
// TokenTTL. toPrimary receives lifecycle events for this session; it may be
// nil if the caller doesn't want them.
func (m *Manager) Register(sessionID string, toPrimary chan<- Event) string {
	token := uuid.NewString()

	m.mu.Lock()
	defer m.mu.Unlock()

	m.sessions[sessionID] = &session{
		id:        sessionID,
		token:     token,
		expires:   time.Now().Add(TokenTTL),
		toPrimary: toPrimary,
	}
	m.byToken[token] = sessionID

	m.log.DebugSession("session registered", "session_id", sessionID, "expires_in", TokenTTL)
	return token
}

// Claim attempts to consume token on behalf of an arriving input peer. On
// success, the session is marked input-connected and the caller is handed
// the channel identifiers it needs to bind the input peer; the backing
// event sender is recorded so future events route to it.
func (m *Manager) Claim(token string, toInput chan<- Event) (Channels, ClaimError) {
	m.mu.Lock()
	defer m.mu.Unlock()

	sessionID, ok := m.byToken[token]
	if !ok {
		return Channels{}, ClaimSessionNotFound
	}
	s, ok := m.sessions[sessionID]
	if !ok {
		delete(m.byToken, token)
		return Channels{}, ClaimSessionNotFound
	}
	if s.token != token {
		// Stale index entry from a superseded reconnection token.
		return Channels{}, ClaimSessionNotFound
	}
	if time.Now().After(s.expires) {
		return Channels{}, ClaimTokenExpired
	}
	if s.inputConnected {
		return Channels{}, ClaimInputAlreadyConnected
	}

	delete(m.byToken, token)
	s.token = ""
	s.inputConnected = true
	s.toInput = toInput

	m.notify(s, s.toPrimary, Event{Kind: EventInputJoined, SessionID: sessionID})
	m.log.DebugSession("token claimed", "session_id", sessionID)

	return Channels{SessionID: sessionID}, ClaimOK
}

// InputDisconnected marks the session's input peer gone and mints a fresh
// reconnection token with a new TokenTTL window. The new token is announced
// to the primary via EventReconnectionTokenAvailable.
func (m *Manager) InputDisconnected(sessionID string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.sessions[sessionID]
	if !ok {
		return
	}

	s.inputConnected = false
	s.toInput = nil

	newToken := uuid.NewString()
	s.token = newToken
	s.expires = time.Now().Add(TokenTTL)
	m.byToken[newToken] = sessionID

	m.notify(s, s.toPrimary, Event{Kind: EventInputDisconnected, SessionID: sessionID})
	m.notify(s, s.toPrimary, Event{Kind: EventReconnectionTokenAvailable, SessionID: sessionID, Token: newToken})
	m.log.DebugSession("input disconnected, reconnection token issued", "session_id", sessionID)
}

// PrimaryDisconnected removes the session entirely and notifies the input
// peer, if one is bound, exactly once.
func (m *Manager) PrimaryDisconnected(sessionID string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.sessions[sessionID]
	if !ok {
		return
	}

	delete(m.sessions, sessionID)
	if s.token != "" {
		delete(m.byToken, s.token)
	}

	m.notify(s, s.toInput, Event{Kind: EventPrimaryDisconnected, SessionID: sessionID})
	m.log.DebugSession("primary disconnected, session removed", "session_id", sessionID)
}

// notify sends an event on ch without blocking. Callers hold m.mu across
// the send; a full channel drops the event with a warning instead of
// waiting for the consumer to drain it.
func (m *Manager) notify(s *session, ch chan<- Event, ev Event) {
	if ch == nil {
		return
	}
	select {
	case ch <- ev:
	default:
		m.log.Warn("session event channel full, dropping event",
			"session_id", s.id, "kind", ev.Kind)
	}
}

func (m *Manager) sweepLoop() {
	defer m.wg.Done()
	ticker := time.NewTicker(SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-m.stopCh:
			return
		case <-ticker.C:
			m.sweepExpired()
		}
	}
}

func (m *Manager) sweepExpired() {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now()
	for id, s := range m.sessions {
		if s.inputConnected {
			continue
		}
		if s.token == "" || now.Before(s.expires) {
			continue
		}
		delete(m.byToken, s.token)
		delete(m.sessions, id)
		m.log.DebugSession("swept expired unclaimed session", "session_id", id)
	}
}

// SessionCount reports the number of live sessions. Test/diagnostic use.
func (m *Manager) SessionCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}
