package streamer

import (
	"encoding/binary"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ethan/moonlight-web-go/internal/video"
)

func TestMediaPipes_ReadVideoUnit_RoundTrip(t *testing.T) {
	videoWrite, audioWrite, inputRead, pipes, err := newMediaPipes()
	require.NoError(t, err)
	t.Cleanup(pipes.Close)
	t.Cleanup(func() { videoWrite.Close(); audioWrite.Close(); inputRead.Close() })

	go func() {
		var header [5]byte
		header[0] = videoFrameIDR
		binary.BigEndian.PutUint32(header[1:], 2)
		_, _ = videoWrite.Write(header[:])

		for _, buf := range [][]byte{{0x00, 0x00, 0x00, 0x01, 0x67}, {0x00, 0x00, 0x00, 0x01, 0x68}} {
			var lenBuf [4]byte
			binary.BigEndian.PutUint32(lenBuf[:], uint32(len(buf)))
			_, _ = videoWrite.Write(lenBuf[:])
			_, _ = videoWrite.Write(buf)
		}
	}()

	unit, err := pipes.ReadVideoUnit()
	require.NoError(t, err)
	assert.Equal(t, video.FrameIDR, unit.FrameType)
	require.Len(t, unit.Buffers, 2)
	assert.Equal(t, byte(0x67), unit.Buffers[0][4])
	assert.Equal(t, byte(0x68), unit.Buffers[1][4])
}

func TestMediaPipes_ReadAudioSample_RoundTrip(t *testing.T) {
	videoWrite, audioWrite, inputRead, pipes, err := newMediaPipes()
	require.NoError(t, err)
	t.Cleanup(pipes.Close)
	t.Cleanup(func() { videoWrite.Close(); audioWrite.Close(); inputRead.Close() })

	go func() {
		sample := []byte{1, 2, 3, 4, 5}
		var lenBuf [4]byte
		binary.BigEndian.PutUint32(lenBuf[:], uint32(len(sample)))
		_, _ = audioWrite.Write(lenBuf[:])
		_, _ = audioWrite.Write(sample)
	}()

	sample, err := pipes.ReadAudioSample()
	require.NoError(t, err)
	assert.Equal(t, []byte{1, 2, 3, 4, 5}, sample)
}

func TestMediaPipes_WriteInputPacket_FramesChannelIDAndLength(t *testing.T) {
	videoWrite, audioWrite, inputRead, pipes, err := newMediaPipes()
	require.NoError(t, err)
	t.Cleanup(pipes.Close)
	t.Cleanup(func() { videoWrite.Close(); audioWrite.Close() })

	done := make(chan []byte, 1)
	go func() {
		buf := make([]byte, 9)
		_, _ = io.ReadFull(inputRead, buf)
		done <- buf
	}()

	require.NoError(t, pipes.WriteInputPacket(0x03, []byte{0xaa, 0xbb, 0xcc, 0xdd}))

	got := <-done
	assert.Equal(t, byte(0x03), got[0])
	assert.Equal(t, uint32(4), binary.BigEndian.Uint32(got[1:5]))
	assert.Equal(t, []byte{0xaa, 0xbb, 0xcc, 0xdd}, got[5:])
}
