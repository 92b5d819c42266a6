package webtransportpeer

import (
	"bufio"
	"context"
	"encoding/binary"
	"fmt"
	"io"
	"sync"

	"github.com/quic-go/webtransport-go"

	"github.com/ethan/moonlight-web-go/internal/audio"
	"github.com/ethan/moonlight-web-go/internal/logging"
	"github.com/ethan/moonlight-web-go/internal/protocol"
	"github.com/ethan/moonlight-web-go/internal/video"
)

// videoDatagramHeaderLen is the fixed header prefixed to every unreliable
// video datagram: big-endian rtp-style timestamp, a sequence number this
// package assigns (pion's track writer has no datagram equivalent, so the
// sequence is tracked here), and a last-fragment marker byte.
const videoDatagramHeaderLen = 7

// Session wraps one accepted *webtransport.Session, owning the datagram
// sequence counter and the release callback that frees its endpoint slot
// when the session ends.
type Session struct {
	log     *logging.Logger
	wt      *webtransport.Session
	release func()

	videoMu    sync.Mutex
	videoSeq   uint16
	packetizer *video.Packetizer

	audioMu       sync.Mutex
	audioPipeline *audio.Pipeline
}

func newSession(log *logging.Logger, wt *webtransport.Session, release func()) *Session {
	return &Session{log: log, wt: wt, release: release}
}

// Close releases the endpoint slot and closes the underlying QUIC session.
func (s *Session) Close() error {
	s.release()
	return s.wt.CloseWithError(0, "session closed")
}

// FragmentSink returns a video.FragmentSink that sends every fragment as one
// unreliable datagram, matching the spec's wire format
// [ts:be32][seq:be16][is_last:u8][payload].
func (s *Session) FragmentSink() video.FragmentSink {
	return (*datagramFragmentSink)(s)
}

type datagramFragmentSink Session

func (d *datagramFragmentSink) SendFragment(_ context.Context, payload []byte, timestamp uint32, isLast bool) error {
	s := (*Session)(d)

	s.videoMu.Lock()
	seq := s.videoSeq
	s.videoSeq++
	s.videoMu.Unlock()

	buf := encodeVideoDatagram(timestamp, seq, isLast, payload)
	if len(buf) > video.DefaultFragmentMTU+videoDatagramHeaderLen {
		return fmt.Errorf("webtransportpeer: datagram %d bytes exceeds mtu", len(buf))
	}

	if err := s.wt.SendDatagram(buf); err != nil {
		return fmt.Errorf("webtransportpeer: send video datagram: %w", err)
	}
	return nil
}

// SetupVideo prepares the packetizer SendVideoUnit uses, giving this type
// the same media API surface as webrtcpeer.Peer so the orchestrator can
// drive either transport identically.
func (s *Session) SetupVideo(codec video.Codec) error {
	packetizer, err := video.NewPacketizer(codec)
	if err != nil {
		return err
	}
	s.videoMu.Lock()
	s.packetizer = packetizer
	s.videoMu.Unlock()
	return nil
}

// SendVideoUnit packetizes unit and sends each fragment as a datagram.
func (s *Session) SendVideoUnit(ctx context.Context, unit video.DecodeUnit) (video.SendResult, error) {
	s.videoMu.Lock()
	packetizer := s.packetizer
	s.videoMu.Unlock()
	if packetizer == nil {
		return video.SendNeedIdr, fmt.Errorf("webtransportpeer: video not set up")
	}
	return packetizer.SendVideoUnit(ctx, s.FragmentSink(), unit)
}

// SetupAudio builds the bounded FIFO pipeline (component C) ahead of opening
// the session's single audio uni-stream, then installs the opened stream as
// the pipeline's writer via Attach, draining anything buffered during the
// open round trip. SendAudioSample writes through this pipeline rather than
// the stream directly: samples sent before Attach are buffered, dropping the
// oldest on overflow; after Attach each write goes straight to the stream
// and blocks while the stream is backpressured.
func (s *Session) SetupAudio(ctx context.Context, cfg audio.Config) error {
	pipeline := audio.NewPipeline(cfg)
	s.audioMu.Lock()
	s.audioPipeline = pipeline
	s.audioMu.Unlock()

	stream, err := s.OpenAudioStream(ctx)
	if err != nil {
		return err
	}
	return pipeline.Attach(stream)
}

// SendAudioSample writes sample through the pipeline installed by SetupAudio.
func (s *Session) SendAudioSample(sample []byte) error {
	s.audioMu.Lock()
	pipeline := s.audioPipeline
	s.audioMu.Unlock()
	if pipeline == nil {
		return fmt.Errorf("webtransportpeer: audio not set up")
	}
	_, err := pipeline.Write(sample)
	return err
}

// encodeVideoDatagram builds [ts:be32][seq:be16][is_last:u8][payload].
func encodeVideoDatagram(timestamp uint32, seq uint16, isLast bool, payload []byte) []byte {
	buf := make([]byte, videoDatagramHeaderLen+len(payload))
	binary.BigEndian.PutUint32(buf[0:4], timestamp)
	binary.BigEndian.PutUint16(buf[4:6], seq)
	if isLast {
		buf[6] = 1
	}
	copy(buf[videoDatagramHeaderLen:], payload)
	return buf
}

// AudioStream is the single server-initiated unidirectional stream carrying
// raw Opus samples, each length-prefixed so the client can frame them.
type AudioStream struct {
	send webtransport.SendStream
}

// OpenAudioStream opens the one audio uni-stream for this session. The
// underlying library negotiates the stream open with the peer before the
// write side is usable, so the call is made through OpenUniStreamSync,
// which blocks for that round trip rather than returning a stream that
// might still fail on first write.
func (s *Session) OpenAudioStream(ctx context.Context) (*AudioStream, error) {
	send, err := s.wt.OpenUniStreamSync(ctx)
	if err != nil {
		return nil, fmt.Errorf("webtransportpeer: open audio uni stream: %w", err)
	}
	return &AudioStream{send: send}, nil
}

// WriteSample writes one length-prefixed Opus sample. It implements
// audio.Writer so it can be handed directly to audio.Pipeline.Attach.
func (a *AudioStream) WriteSample(sample []byte) error {
	var lenPrefix [4]byte
	binary.BigEndian.PutUint32(lenPrefix[:], uint32(len(sample)))
	if _, err := a.send.Write(lenPrefix[:]); err != nil {
		return fmt.Errorf("webtransportpeer: write audio length prefix: %w", err)
	}
	if _, err := a.send.Write(sample); err != nil {
		return fmt.Errorf("webtransportpeer: write audio sample: %w", err)
	}
	return nil
}

func (a *AudioStream) Close() error {
	return a.send.Close()
}

// AcceptInputStream waits for the next client-opened bidirectional input
// stream and reads its first byte as a protocol.Channel id (§ wire format:
// one channel id byte precedes the payload on every input stream), then
// returns a decode loop reading length-prefixed packets off it.
func (s *Session) AcceptInputStream(ctx context.Context) (protocol.Channel, *InputReader, error) {
	stream, err := s.wt.AcceptStream(ctx)
	if err != nil {
		return 0, nil, fmt.Errorf("webtransportpeer: accept input stream: %w", err)
	}

	r := bufio.NewReader(stream)
	idByte, err := r.ReadByte()
	if err != nil {
		return 0, nil, fmt.Errorf("webtransportpeer: read channel id: %w", err)
	}
	ch, ok := protocol.ChannelByID(idByte)
	if !ok {
		return 0, nil, fmt.Errorf("webtransportpeer: unknown channel id %d", idByte)
	}

	return ch, &InputReader{ch: ch, r: r, stream: stream}, nil
}

// InputReader decodes a stream of length-prefixed packets for one channel.
type InputReader struct {
	ch     protocol.Channel
	r      *bufio.Reader
	stream webtransport.Stream
}

// Next blocks for the next packet, decodes it, and drops malformed frames
// rather than killing the stream (matching the transport-wide "drop on
// decode failure" rule).
func (ir *InputReader) Next() (protocol.InboundPacket, error) {
	for {
		var lenPrefix [4]byte
		if _, err := io.ReadFull(ir.r, lenPrefix[:]); err != nil {
			return nil, err
		}
		n := binary.BigEndian.Uint32(lenPrefix[:])
		raw := make([]byte, n)
		if _, err := io.ReadFull(ir.r, raw); err != nil {
			return nil, err
		}
		pkt, ok := protocol.Decode(ir.ch, raw)
		if !ok {
			continue
		}
		return pkt, nil
	}
}

func (ir *InputReader) Close() error {
	return ir.stream.Close()
}
