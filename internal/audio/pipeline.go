// Package audio implements the Opus sample pipeline (component C): a
// bounded FIFO that absorbs samples produced before the WebTransport
// unidirectional send stream attaches, draining in order once it does, and
// a direct unbuffered write path for WebRTC where the SCTP/SRTP stack owns
// buffering.
//
// Grounded on the teacher's Pacer (pkg/bridge/pacer.go): a small buffered
// channel absorbing bursts ahead of a slower consumer, logging rather than
// blocking when full. This pipeline drops the oldest sample on overflow
// instead of blocking the producer, since audio channel has no backpressure
// path back to the upstream encoder.
package audio

import (
	"fmt"
	"sync"
)

// sampleRateAllowlist are the Opus multi-stream sample rates this gateway
// will negotiate. Anything else is accepted but logged as a mismatch by the
// caller (Validate returns the mismatch so the caller can decide whether to
// warn or reject).
var sampleRateAllowlist = map[int]struct{}{
	80000: {}, 12000: {}, 16000: {}, 24000: {}, 48000: {},
}

// Config is the negotiated audio + Opus multi-stream configuration.
type Config struct {
	Channels      int
	Streams       int
	CoupledStreams int
	SampleRate    int
	QueueDepth    int // FIFO capacity for the WebTransport path
}

// ValidateSampleRate reports whether cfg.SampleRate is in the allowed set.
// A mismatch is not fatal; the caller logs a warning and proceeds with the
// value as given.
func (c Config) ValidateSampleRate() bool {
	_, ok := sampleRateAllowlist[c.SampleRate]
	return ok
}

// Writer is the sink a Pipeline writes drained (or direct) samples to: an
// attached WebTransport send-stream wrapper, or a WebRTC track writer.
type Writer interface {
	WriteSample(sample []byte) error
}

// Pipeline buffers Opus samples ahead of stream attachment on the
// WebTransport path. Before Attach is called, Write enqueues into a bounded
// FIFO, dropping the oldest sample when full. After Attach, the FIFO is
// drained in order and subsequent writes go straight through to the
// attached Writer.
//
// The WebRTC path does not use this type: samples are written directly to
// the track writer with no application-level buffering (see §4.C), so the
// WebRTC peer calls its track writer itself rather than going through a
// Pipeline.
type Pipeline struct {
	mu       sync.Mutex
	cfg      Config
	fifo     [][]byte
	attached Writer
	dropped  uint64
}

// NewPipeline constructs a pipeline for the given config. cfg.QueueDepth
// bounds the FIFO; a non-positive value is treated as 1.
func NewPipeline(cfg Config) *Pipeline {
	if cfg.QueueDepth <= 0 {
		cfg.QueueDepth = 1
	}
	return &Pipeline{
		cfg:  cfg,
		fifo: make([][]byte, 0, cfg.QueueDepth),
	}
}

// Write buffers or forwards a sample. Returns the number of previously
// queued samples dropped to make room, if any (always 0 once attached).
func (p *Pipeline) Write(sample []byte) (droppedNow int, err error) {
	p.mu.Lock()
	w := p.attached
	if w != nil {
		p.mu.Unlock()
		return 0, w.WriteSample(sample)
	}
	defer p.mu.Unlock()

	if len(p.fifo) >= p.cfg.QueueDepth {
		// Drop oldest, warn-worthy but never block the producer.
		copy(p.fifo, p.fifo[1:])
		p.fifo = p.fifo[:len(p.fifo)-1]
		p.dropped++
		droppedNow = 1
	}
	cp := append([]byte(nil), sample...)
	p.fifo = append(p.fifo, cp)
	return droppedNow, nil
}

// Attach installs the destination writer and drains any buffered samples
// into it in FIFO order, holding the lock for the whole drain so a Write
// racing the drain either lands in the FIFO ahead of it or goes through
// after, never interleaved. Attach is idempotent only on the first call;
// calling it twice is a programming error in the caller (one send stream
// per session) and replaces the writer without redraining, since there is
// nothing left to drain.
func (p *Pipeline) Attach(w Writer) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	fifo := p.fifo
	p.fifo = nil
	p.attached = w

	for _, sample := range fifo {
		if err := w.WriteSample(sample); err != nil {
			return fmt.Errorf("audio: drain buffered sample: %w", err)
		}
	}
	return nil
}

// Dropped returns the total number of samples dropped to overflow so far.
func (p *Pipeline) Dropped() uint64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.dropped
}

// Attached reports whether a writer has been attached yet.
func (p *Pipeline) Attached() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.attached != nil
}

// Buffered returns the number of samples currently queued (0 once attached).
func (p *Pipeline) Buffered() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.fifo)
}
