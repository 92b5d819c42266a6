package streamer

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"sync"
	"syscall"
	"time"

	"github.com/ethan/moonlight-web-go/internal/logging"
)

// Child is a running streamer process plus its duplex IPC pipes.
//
// Grounded on other_examples/09a0dd18_raiden-staging-kernel-images's
// Start/Stop shape: a long-lived *exec.Cmd, a goroutine blocked on
// cmd.Wait() that closes an "exited" channel, and Setpgid so the whole
// process group can be reaped on Stop.
type Child struct {
	PID       int
	SessionID string
	Media     *MediaPipes

	cmd     *exec.Cmd
	encoder *json.Encoder
	decoder *json.Decoder
	stdin   io.WriteCloser

	mu     sync.Mutex
	exited chan struct{}
}

// Send encodes and writes one ServerIpcMessage. Loss of framing (a write
// error) is treated as the child having failed; the caller must terminate
// it, per the "loss of framing ⇒ terminate child" contract.
func (c *Child) Send(msg ServerIpcMessage) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.encoder.Encode(msg); err != nil {
		return fmt.Errorf("streamer: write ipc message to pid %d: %w", c.PID, err)
	}
	return nil
}

// Recv blocks for the next StreamerIpcMessage, or returns an error
// (including io.EOF on clean child exit) when the pipe is gone.
func (c *Child) Recv() (StreamerIpcMessage, error) {
	var msg StreamerIpcMessage
	if err := c.decoder.Decode(&msg); err != nil {
		return StreamerIpcMessage{}, err
	}
	return msg, nil
}

// Exited returns a channel closed once the child process has been waited
// on and reaped.
func (c *Child) Exited() <-chan struct{} {
	return c.exited
}

// Supervisor spawns and supervises per-session streamer children, enforces
// single-session-at-a-time via CleanupBeforeNewSession, and periodically
// sweeps its registry for entries whose process has died without the
// supervisor noticing.
type Supervisor struct {
	log          *logging.Logger
	binaryPath   string
	cleanupEvery time.Duration
	registry     *Registry

	mu       sync.Mutex
	children map[int]*Child

	stopOnce sync.Once
	stopCh   chan struct{}
	wg       sync.WaitGroup
}

// NewSupervisor constructs a Supervisor and starts its periodic sweep loop.
func NewSupervisor(log *logging.Logger, binaryPath string, cleanupEvery time.Duration) *Supervisor {
	s := &Supervisor{
		log:          log,
		binaryPath:   binaryPath,
		cleanupEvery: cleanupEvery,
		registry:     NewRegistry(log),
		children:     make(map[int]*Child),
		stopCh:       make(chan struct{}),
	}
	s.wg.Add(1)
	go s.sweepLoop()
	return s
}

// Close stops the sweep loop. It does not kill live children; callers that
// want a clean shutdown should call CleanupBeforeNewSession or kill each
// child explicitly first.
func (s *Supervisor) Close() {
	s.stopOnce.Do(func() { close(s.stopCh) })
	s.wg.Wait()
}

// Registry exposes the underlying child registry for diagnostics and tests.
func (s *Supervisor) Registry() *Registry { return s.registry }

// ChildForSession finds the tracked Child running the given session, for
// the orchestrator's input leg to reach the same child its primary leg
// spawned. Single-session operation means at most one ever matches.
func (s *Supervisor) ChildForSession(sessionID string) (*Child, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range s.children {
		if c.SessionID == sessionID {
			return c, true
		}
	}
	return nil, false
}

// Spawn starts a new streamer child for sessionID. The child's stdin/stdout
// are wired as the duplex IPC channel; stderr is inherited for
// diagnostics. Registration panics on PID collision (see Registry.Register).
func (s *Supervisor) Spawn(ctx context.Context, sessionID string) (*Child, error) {
	cmd := exec.CommandContext(ctx, s.binaryPath)
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("streamer: stdin pipe: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("streamer: stdout pipe: %w", err)
	}
	cmd.Stderr = os.Stderr // inherited for diagnostics

	videoWrite, audioWrite, inputRead, media, err := newMediaPipes()
	if err != nil {
		return nil, err
	}
	cmd.ExtraFiles = []*os.File{videoWrite, audioWrite, inputRead} // fd 3, 4, 5 in the child

	if err := cmd.Start(); err != nil {
		media.Close()
		return nil, fmt.Errorf("streamer: start %s: %w", s.binaryPath, err)
	}
	// The parent's copies of the fds handed to ExtraFiles are only needed to
	// pass them across fork/exec; closing them here ensures the parent's
	// read ends see EOF once the child itself closes or dies, rather than
	// being held open indefinitely by a second set of descriptors, and that
	// the child (not this process) owns the input pipe's read end.
	videoWrite.Close()
	audioWrite.Close()
	inputRead.Close()

	child := &Child{
		PID:       cmd.Process.Pid,
		SessionID: sessionID,
		Media:     media,
		cmd:       cmd,
		encoder:   json.NewEncoder(stdin),
		decoder:   json.NewDecoder(stdout),
		stdin:     stdin,
		exited:    make(chan struct{}),
	}

	s.registry.Register(child.PID, sessionID)

	s.mu.Lock()
	s.children[child.PID] = child
	s.mu.Unlock()

	go func() {
		_ = cmd.Wait()
		media.Close()
		close(child.exited)
		s.registry.Unregister(child.PID)
		s.mu.Lock()
		delete(s.children, child.PID)
		s.mu.Unlock()
		s.log.DebugStreamer("child exited", "pid", child.PID, "session_id", sessionID)
	}()

	s.log.DebugStreamer("child spawned", "pid", child.PID, "session_id", sessionID)
	return child, nil
}

// Kill sends SIGKILL to the child's process group and waits for Exited to
// close, or ctx to expire.
func (s *Supervisor) Kill(ctx context.Context, c *Child) error {
	if err := syscall.Kill(-c.PID, syscall.SIGKILL); err != nil && err != syscall.ESRCH {
		s.log.Warn("failed to signal streamer process group", "pid", c.PID, "error", err)
	}
	select {
	case <-c.Exited():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// CleanupBeforeNewSession enforces single-session operation: every tracked
// child is killed, then the OS process table is swept for processes whose
// executable matches the configured streamer binary but that this
// supervisor never spawned (e.g. left behind by a previous, now-dead
// gateway process).
func (s *Supervisor) CleanupBeforeNewSession(ctx context.Context) error {
	s.mu.Lock()
	tracked := make([]*Child, 0, len(s.children))
	for _, c := range s.children {
		tracked = append(tracked, c)
	}
	s.mu.Unlock()

	for _, c := range tracked {
		if err := s.Kill(ctx, c); err != nil {
			s.log.Warn("failed to kill tracked child during cleanup", "pid", c.PID, "error", err)
		}
	}

	killed, err := killUntrackedByImage(s.binaryPath, trackedPIDs(tracked))
	if err != nil {
		s.log.Warn("orphan process sweep failed", "error", err)
	} else if killed > 0 {
		s.log.DebugStreamer("killed untracked orphan streamer processes", "count", killed)
	}

	return nil
}

func trackedPIDs(children []*Child) map[int]struct{} {
	out := make(map[int]struct{}, len(children))
	for _, c := range children {
		out[c.PID] = struct{}{}
	}
	return out
}

func (s *Supervisor) sweepLoop() {
	defer s.wg.Done()
	if s.cleanupEvery <= 0 {
		s.cleanupEvery = 60 * time.Second
	}
	ticker := time.NewTicker(s.cleanupEvery)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopCh:
			return
		case <-ticker.C:
			s.registry.Sweep()
		}
	}
}

// binaryBaseName is used when matching /proc/<pid>/exe targets against the
// configured streamer binary: only the final path component is compared,
// since the orphan may have been launched via a different (but equivalent)
// relative path than the one currently configured.
func binaryBaseName(path string) string {
	return filepath.Base(path)
}
