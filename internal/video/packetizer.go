package video

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/pion/rtp"
	"github.com/pion/rtp/codecs"
)

// Codec identifies a negotiated video codec. Modeled as a small tagged
// union rather than an interface type switch, per the codec-polymorphic
// design called for by the packetizer (each codec contributes a
// rtp.Payloader, nothing more).
type Codec int

const (
	CodecH264 Codec = iota
	CodecH265
)

func (c Codec) String() string {
	switch c {
	case CodecH264:
		return "h264"
	case CodecH265:
		return "h265"
	default:
		return "unknown"
	}
}

func newPayloader(c Codec) (rtp.Payloader, error) {
	switch c {
	case CodecH264:
		return &codecs.H264Payloader{}, nil
	case CodecH265:
		return &codecs.H265Payloader{}, nil
	default:
		return nil, fmt.Errorf("video: unsupported codec %v", c)
	}
}

// FrameType tags a decode unit as a sync point or not.
type FrameType int

const (
	FrameNonIDR FrameType = iota
	FrameIDR
)

// DecodeUnit is one or more Annex-B buffers forming a single access unit,
// handed to the packetizer and discarded once sent; there is no persistent
// storage of video data in this package.
type DecodeUnit struct {
	Buffers   [][]byte
	FrameType FrameType
}

// SendResult is the outcome of sending a decode unit.
type SendResult int

const (
	SendOk SendResult = iota
	SendNeedIdr
)

// FragmentSink receives packetized fragments from the Packetizer and is
// responsible for the transport-specific framing: the WebRTC sink wraps
// each fragment in an RTP packet carrying a sequence number the sink
// assigns itself, the WebTransport sink prepends the 7-byte datagram header and
// sends it on the video datagram path. timestamp is the packetizer's
// 90kHz sender-clock value for the whole decode unit; isLast marks the
// final fragment of the final NAL unit in the unit.
type FragmentSink interface {
	SendFragment(ctx context.Context, payload []byte, timestamp uint32, isLast bool) error
}

// Packetizer splits decode units into MTU-bounded fragments for a single
// negotiated codec and tracks the sender's monotonic 90kHz clock and the
// "needs IDR" recovery flag.
//
// Grounded on the teacher's writeVideoSampleDirect (pkg/bridge/bridge.go),
// which fragments an AVC NAL unit via codecs.H264Payloader at a fixed MTU
// and writes one RTP packet per fragment with a passthrough timestamp;
// generalized here to be codec-polymorphic, transport-agnostic (via
// FragmentSink), and to use a synthesized monotonic timestamp instead of a
// passthrough one per the timestamp policy below.
type Packetizer struct {
	codec     Codec
	payloader rtp.Payloader
	mtu       uint16

	start   time.Time
	needIdr atomic.Bool
}

// DefaultFragmentMTU is the maximum fragment payload size: the transport
// MTU (≈1200 bytes) less 12 bytes reserved for RTP/datagram header
// overhead.
const DefaultFragmentMTU = 1188

// NewPacketizer constructs a packetizer for the given codec. The sender
// clock starts immediately; the first decode unit's timestamp is therefore
// approximately zero.
func NewPacketizer(codec Codec) (*Packetizer, error) {
	payloader, err := newPayloader(codec)
	if err != nil {
		return nil, err
	}
	return &Packetizer{
		codec:     codec,
		payloader: payloader,
		mtu:       DefaultFragmentMTU,
		start:     time.Now(),
	}, nil
}

// Codec reports the negotiated codec.
func (p *Packetizer) Codec() Codec { return p.codec }

// timestampNow computes the 90kHz sender-clock timestamp as a 32-bit
// wrapping value. The upstream decode-unit timestamp is informational only
// (see timestamp policy); using a monotonic sender clock keeps audio and
// video from drifting apart when the upstream source pauses.
func (p *Packetizer) timestampNow() uint32 {
	elapsed := time.Since(p.start)
	return uint32(elapsed.Nanoseconds() * 90000 / int64(time.Second))
}

// NeedsIdr reports whether a keyframe request is outstanding.
func (p *Packetizer) NeedsIdr() bool {
	return p.needIdr.Load()
}

// SendVideoUnit fragments unit and hands every fragment to sink in order.
//
// If a keyframe request is outstanding from a previous failed send, this
// call consumes the flag and returns SendNeedIdr immediately without
// attempting to send unit; the caller must request (and eventually supply)
// a fresh IDR. Otherwise, the unit is sent. Any fragment failure raises the
// flag for the next call; if at least half the unit's fragments failed,
// this call also returns SendNeedIdr immediately, otherwise it returns
// SendOk since the unit mostly got through.
func (p *Packetizer) SendVideoUnit(ctx context.Context, sink FragmentSink, unit DecodeUnit) (SendResult, error) {
	if p.needIdr.CompareAndSwap(true, false) {
		return SendNeedIdr, nil
	}

	ts := p.timestampNow()

	var fragments [][]byte
	for _, buf := range unit.Buffers {
		for _, nal := range ScanStartCodeNALUs(buf) {
			fragments = append(fragments, p.payloader.Payload(p.mtu, nal)...)
		}
	}

	total := len(fragments)
	if total == 0 {
		return SendOk, nil
	}

	var failed int
	var lastErr error
	for i, frag := range fragments {
		isLast := i == total-1
		if err := sink.SendFragment(ctx, frag, ts, isLast); err != nil {
			failed++
			lastErr = err
		}
	}

	if failed > 0 {
		p.needIdr.Store(true)
		if failed*2 >= total {
			return SendNeedIdr, fmt.Errorf("video: majority of fragments failed (%d/%d): %w", failed, total, lastErr)
		}
		// A minority failure doesn't invalidate this unit outright; the flag
		// raised above is what forces the next send_decode_unit to bounce.
		return SendOk, fmt.Errorf("video: %d/%d fragments failed: %w", failed, total, lastErr)
	}

	return SendOk, nil
}
