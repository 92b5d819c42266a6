package streamer

import (
	"encoding/binary"
	"fmt"
	"io"
	"os"

	"github.com/ethan/moonlight-web-go/internal/video"
)

// Video and audio media never touch the JSON control channel on
// stdin/stdout: a streamer child "speaks the upstream host protocol and
// emits media back through IPC" at a rate and size JSON framing has no
// business carrying. Two dedicated pipes (fd 3 for video, fd 4 for audio,
// wired as ExtraFiles on the child process) carry simple length-prefixed
// binary records instead. No IPC/RPC library in the pack addresses a
// parent/child raw-media channel, so this stays on the same stdlib framing
// discipline the JSON control channel already uses.
const (
	videoFrameNonIDR = 0
	videoFrameIDR    = 1
)

// MediaPipes holds the parent's ends of the three raw pipes: video and
// audio flow child→parent, input flows parent→child (the reverse
// direction, since input packets arrive over a browser data channel this
// package never sees and must reach the streamer's upstream host
// connection instead).
type MediaPipes struct {
	videoRead  *os.File
	audioRead  *os.File
	inputWrite *os.File
}

// newMediaPipes creates the three pipes, returning the child-side file
// descriptors (to be handed to exec.Cmd.ExtraFiles as fd 3, 4, 5) and the
// parent-side MediaPipes.
func newMediaPipes() (videoWrite, audioWrite, inputRead *os.File, pipes *MediaPipes, err error) {
	vr, vw, err := os.Pipe()
	if err != nil {
		return nil, nil, nil, nil, fmt.Errorf("streamer: video pipe: %w", err)
	}
	ar, aw, err := os.Pipe()
	if err != nil {
		vr.Close()
		vw.Close()
		return nil, nil, nil, nil, fmt.Errorf("streamer: audio pipe: %w", err)
	}
	ir, iw, err := os.Pipe()
	if err != nil {
		vr.Close()
		vw.Close()
		ar.Close()
		aw.Close()
		return nil, nil, nil, nil, fmt.Errorf("streamer: input pipe: %w", err)
	}
	return vw, aw, ir, &MediaPipes{videoRead: vr, audioRead: ar, inputWrite: iw}, nil
}

// Close releases the parent's ends of all three pipes.
func (p *MediaPipes) Close() {
	_ = p.videoRead.Close()
	_ = p.audioRead.Close()
	_ = p.inputWrite.Close()
}

// WriteInputPacket forwards one decoded input packet's raw payload to the
// streamer, tagged with the channel id byte it arrived on so the child can
// reconstruct which device/control it belongs to without re-running
// protocol.Decode itself: [channel_id:u8][len:be32][bytes].
func (p *MediaPipes) WriteInputPacket(channelID byte, raw []byte) error {
	buf := make([]byte, 5+len(raw))
	buf[0] = channelID
	binary.BigEndian.PutUint32(buf[1:5], uint32(len(raw)))
	copy(buf[5:], raw)
	_, err := p.inputWrite.Write(buf)
	return err
}

// ReadVideoUnit blocks for the next decode unit: [frame_type:u8][buffer
// count:be32], then that many [len:be32][bytes] buffers.
func (p *MediaPipes) ReadVideoUnit() (video.DecodeUnit, error) {
	var header [5]byte
	if _, err := io.ReadFull(p.videoRead, header[:]); err != nil {
		return video.DecodeUnit{}, err
	}

	frameType := video.FrameNonIDR
	if header[0] == videoFrameIDR {
		frameType = video.FrameIDR
	}
	count := binary.BigEndian.Uint32(header[1:])

	buffers := make([][]byte, count)
	for i := range buffers {
		var lenBuf [4]byte
		if _, err := io.ReadFull(p.videoRead, lenBuf[:]); err != nil {
			return video.DecodeUnit{}, err
		}
		buf := make([]byte, binary.BigEndian.Uint32(lenBuf[:]))
		if _, err := io.ReadFull(p.videoRead, buf); err != nil {
			return video.DecodeUnit{}, err
		}
		buffers[i] = buf
	}

	return video.DecodeUnit{Buffers: buffers, FrameType: frameType}, nil
}

// ReadAudioSample blocks for the next [len:be32][bytes] Opus sample.
func (p *MediaPipes) ReadAudioSample() ([]byte, error) {
	var lenBuf [4]byte
	if _, err := io.ReadFull(p.audioRead, lenBuf[:]); err != nil {
		return nil, err
	}
	buf := make([]byte, binary.BigEndian.Uint32(lenBuf[:]))
	if _, err := io.ReadFull(p.audioRead, buf); err != nil {
		return nil, err
	}
	return buf, nil
}
