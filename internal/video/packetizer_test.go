package video_test

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ethan/moonlight-web-go/internal/video"
)

func annexB(nalus ...[]byte) []byte {
	var buf []byte
	for _, n := range nalus {
		buf = append(buf, 0x00, 0x00, 0x00, 0x01)
		buf = append(buf, n...)
	}
	return buf
}

type recordingSink struct {
	fragments []sentFragment
	failNext  int // fail this many calls, counting down
}

type sentFragment struct {
	payload   []byte
	timestamp uint32
	isLast    bool
}

func (s *recordingSink) SendFragment(_ context.Context, payload []byte, ts uint32, isLast bool) error {
	if s.failNext > 0 {
		s.failNext--
		return fmt.Errorf("simulated send failure")
	}
	cp := append([]byte(nil), payload...)
	s.fragments = append(s.fragments, sentFragment{payload: cp, timestamp: ts, isLast: isLast})
	return nil
}

func TestScanStartCodeNALUs(t *testing.T) {
	sps := []byte{0x67, 0x01, 0x02}
	pps := []byte{0x68, 0x03}
	idr := []byte{0x65, 0x04, 0x05, 0x06}
	buf := annexB(sps, pps, idr)

	nalus := video.ScanStartCodeNALUs(buf)
	require.Len(t, nalus, 3)
	assert.Equal(t, sps, nalus[0])
	assert.Equal(t, pps, nalus[1])
	assert.Equal(t, idr, nalus[2])
}

func TestScanStartCodeNALUs_ThreeByteStartCode(t *testing.T) {
	buf := append([]byte{0x00, 0x00, 0x01, 0x65, 0xAA}, []byte{0x00, 0x00, 0x01, 0x61, 0xBB}...)
	nalus := video.ScanStartCodeNALUs(buf)
	require.Len(t, nalus, 2)
	assert.Equal(t, []byte{0x65, 0xAA}, nalus[0])
	assert.Equal(t, []byte{0x61, 0xBB}, nalus[1])
}

func TestIsH264Keyframe(t *testing.T) {
	assert.True(t, video.IsH264Keyframe([]byte{0x65, 0x00}))
	assert.False(t, video.IsH264Keyframe([]byte{0x61, 0x00}))
	assert.False(t, video.IsH264Keyframe(nil))
}

func TestPacketizer_SendVideoUnit_AllFragmentsDelivered(t *testing.T) {
	p, err := video.NewPacketizer(video.CodecH264)
	require.NoError(t, err)

	sink := &recordingSink{}
	unit := video.DecodeUnit{
		Buffers:   [][]byte{annexB([]byte{0x65, 0x01, 0x02, 0x03})},
		FrameType: video.FrameIDR,
	}

	result, err := p.SendVideoUnit(context.Background(), sink, unit)
	require.NoError(t, err)
	assert.Equal(t, video.SendOk, result)
	require.NotEmpty(t, sink.fragments)
	assert.True(t, sink.fragments[len(sink.fragments)-1].isLast)
	for _, f := range sink.fragments[:len(sink.fragments)-1] {
		assert.False(t, f.isLast)
	}
	assert.False(t, p.NeedsIdr())
}

func TestPacketizer_SendVideoUnit_FailureRaisesNeedIdr(t *testing.T) {
	p, err := video.NewPacketizer(video.CodecH264)
	require.NoError(t, err)

	// A single small NAL produces exactly one fragment; fail it.
	sink := &recordingSink{failNext: 1}
	unit := video.DecodeUnit{Buffers: [][]byte{annexB([]byte{0x65, 0x01})}}

	result, err := p.SendVideoUnit(context.Background(), sink, unit)
	assert.Error(t, err)
	assert.Equal(t, video.SendNeedIdr, result)
	assert.True(t, p.NeedsIdr())

	// The next call consumes the flag and bounces without sending.
	sink2 := &recordingSink{}
	result, err = p.SendVideoUnit(context.Background(), sink2, unit)
	require.NoError(t, err)
	assert.Equal(t, video.SendNeedIdr, result)
	assert.Empty(t, sink2.fragments)
	assert.False(t, p.NeedsIdr())

	// A clean send afterward goes through normally.
	sink3 := &recordingSink{}
	result, err = p.SendVideoUnit(context.Background(), sink3, unit)
	require.NoError(t, err)
	assert.Equal(t, video.SendOk, result)
	assert.NotEmpty(t, sink3.fragments)
}

func TestPacketizer_SendVideoUnit_EmptyUnitIsOk(t *testing.T) {
	p, err := video.NewPacketizer(video.CodecH265)
	require.NoError(t, err)

	result, err := p.SendVideoUnit(context.Background(), &recordingSink{}, video.DecodeUnit{})
	require.NoError(t, err)
	assert.Equal(t, video.SendOk, result)
}

func TestNewPacketizer_UnsupportedCodec(t *testing.T) {
	_, err := video.NewPacketizer(video.Codec(99))
	assert.Error(t, err)
}
