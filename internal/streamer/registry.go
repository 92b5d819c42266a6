// Package streamer implements the streamer process supervisor (component
// G): spawning a per-session streamer child, framing duplex IPC with it,
// and a process-wide registry with orphan cleanup and single-session
// enforcement.
//
// Grounded on other_examples/09a0dd18_raiden-staging-kernel-images's
// WebRTCStreamer (os/exec.CommandContext + SysProcAttr{Setpgid: true} +
// a cmd.Wait() goroutine closing an "exited" channel) and on the teacher's
// pkg/nest/multi_manager.go registry-of-state pattern for the child table
// itself.
package streamer

import (
	"fmt"
	"os"
	"sync"
	"syscall"
	"time"

	"github.com/ethan/moonlight-web-go/internal/logging"
)

// ChildRecord is one entry in the process-wide child registry.
type ChildRecord struct {
	PID       int
	StartedAt time.Time
	SessionID string
	Active    bool
}

// Registry is the single process-wide table of streamer children. It is
// the supervisor's exclusive owner of process bookkeeping; the Supervisor
// type wraps it with the spawn/kill/cleanup operations that keep it
// truthful.
type Registry struct {
	log *logging.Logger

	mu       sync.Mutex
	children map[int]*ChildRecord
}

// NewRegistry constructs an empty registry.
func NewRegistry(log *logging.Logger) *Registry {
	return &Registry{
		log:      log,
		children: make(map[int]*ChildRecord),
	}
}

// Register adds pid to the registry. Registering a PID that is already
// tracked is a bug in the caller (the OS does not reuse a PID while the
// original process is still tracked as live) and panics rather than
// silently overwriting bookkeeping the supervisor relies on for cleanup
// correctness.
func (r *Registry) Register(pid int, sessionID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if existing, ok := r.children[pid]; ok && existing.Active {
		panic(fmt.Sprintf("streamer: double registration of pid %d (existing session %q, new session %q)",
			pid, existing.SessionID, sessionID))
	}

	r.children[pid] = &ChildRecord{
		PID:       pid,
		StartedAt: time.Now(),
		SessionID: sessionID,
		Active:    true,
	}
	r.log.DebugStreamer("child registered", "pid", pid, "session_id", sessionID)
}

// Unregister removes pid from the registry, e.g. after its process has
// been observed to exit.
func (r *Registry) Unregister(pid int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.children, pid)
}

// Snapshot returns a copy of every tracked record, for cleanup and sweep
// passes that must not hold the registry lock while signaling processes.
func (r *Registry) Snapshot() []ChildRecord {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]ChildRecord, 0, len(r.children))
	for _, c := range r.children {
		out = append(out, *c)
	}
	return out
}

// Count reports the number of tracked children.
func (r *Registry) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.children)
}

// Sweep removes entries whose PID no longer exists as a live process,
// without touching entries whose process is still alive. Called
// periodically (see Supervisor.sweepLoop) and does not kill
// anything itself.
func (r *Registry) Sweep() (removed int) {
	for _, rec := range r.Snapshot() {
		if processAlive(rec.PID) {
			continue
		}
		r.mu.Lock()
		delete(r.children, rec.PID)
		r.mu.Unlock()
		removed++
	}
	if removed > 0 {
		r.log.DebugStreamer("swept dead registry entries", "removed", removed)
	}
	return removed
}

// processAlive reports whether pid refers to a live process, using the
// POSIX convention of signal 0 (no-op signal, delivery-checked only).
func processAlive(pid int) bool {
	proc, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	return proc.Signal(syscall.Signal(0)) == nil
}
