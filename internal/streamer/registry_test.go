package streamer_test

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ethan/moonlight-web-go/internal/logging"
	"github.com/ethan/moonlight-web-go/internal/streamer"
)

func newTestRegistry(t *testing.T) *streamer.Registry {
	t.Helper()
	log, err := logging.New(logging.NewConfig())
	require.NoError(t, err)
	return streamer.NewRegistry(log)
}

func TestRegistry_RegisterAndCount(t *testing.T) {
	r := newTestRegistry(t)
	r.Register(1234, "sess-1")
	assert.Equal(t, 1, r.Count())

	snap := r.Snapshot()
	require.Len(t, snap, 1)
	assert.Equal(t, 1234, snap[0].PID)
	assert.Equal(t, "sess-1", snap[0].SessionID)
	assert.True(t, snap[0].Active)
}

func TestRegistry_DoubleRegistrationPanics(t *testing.T) {
	r := newTestRegistry(t)
	r.Register(1234, "sess-1")

	assert.Panics(t, func() {
		r.Register(1234, "sess-2")
	})
}

func TestRegistry_UnregisterRemovesEntry(t *testing.T) {
	r := newTestRegistry(t)
	r.Register(1234, "sess-1")
	r.Unregister(1234)
	assert.Equal(t, 0, r.Count())

	// Re-registering the same PID after explicit unregistration is fine.
	assert.NotPanics(t, func() {
		r.Register(1234, "sess-2")
	})
}

func TestRegistry_SweepRemovesDeadPIDsOnly(t *testing.T) {
	r := newTestRegistry(t)

	// The current process is alive and must survive a sweep.
	self := os.Getpid()
	r.Register(self, "sess-live")

	// A very large PID is virtually guaranteed unused, so it simulates a
	// dead/unreal process entry.
	const deadPID = 1 << 30
	r.Register(deadPID, "sess-dead")

	removed := r.Sweep()
	assert.Equal(t, 1, removed)
	assert.Equal(t, 1, r.Count())

	snap := r.Snapshot()
	require.Len(t, snap, 1)
	assert.Equal(t, self, snap[0].PID)
}
