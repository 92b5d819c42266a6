package audio_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ethan/moonlight-web-go/internal/audio"
)

func TestConfig_ValidateSampleRate(t *testing.T) {
	for _, rate := range []int{80000, 12000, 16000, 24000, 48000} {
		assert.True(t, audio.Config{SampleRate: rate}.ValidateSampleRate(), rate)
	}
	assert.False(t, audio.Config{SampleRate: 44100}.ValidateSampleRate())
}

type fakeWriter struct {
	samples [][]byte
	failAll bool
}

func (f *fakeWriter) WriteSample(sample []byte) error {
	if f.failAll {
		return errors.New("write failed")
	}
	f.samples = append(f.samples, append([]byte(nil), sample...))
	return nil
}

func TestPipeline_BuffersBeforeAttach(t *testing.T) {
	p := audio.NewPipeline(audio.Config{QueueDepth: 4})

	for i := 0; i < 3; i++ {
		dropped, err := p.Write([]byte{byte(i)})
		require.NoError(t, err)
		assert.Equal(t, 0, dropped)
	}
	assert.Equal(t, 3, p.Buffered())
	assert.False(t, p.Attached())
}

func TestPipeline_DropsOldestOnOverflow(t *testing.T) {
	p := audio.NewPipeline(audio.Config{QueueDepth: 2})

	_, _ = p.Write([]byte{1})
	_, _ = p.Write([]byte{2})
	dropped, err := p.Write([]byte{3})
	require.NoError(t, err)
	assert.Equal(t, 1, dropped)
	assert.Equal(t, uint64(1), p.Dropped())
	assert.Equal(t, 2, p.Buffered())
}

func TestPipeline_AttachDrainsInOrder(t *testing.T) {
	p := audio.NewPipeline(audio.Config{QueueDepth: 4})
	_, _ = p.Write([]byte{1})
	_, _ = p.Write([]byte{2})
	_, _ = p.Write([]byte{3})

	w := &fakeWriter{}
	require.NoError(t, p.Attach(w))

	require.Len(t, w.samples, 3)
	assert.Equal(t, []byte{1}, w.samples[0])
	assert.Equal(t, []byte{2}, w.samples[1])
	assert.Equal(t, []byte{3}, w.samples[2])
	assert.Equal(t, 0, p.Buffered())
}

func TestPipeline_WriteThroughAfterAttach(t *testing.T) {
	p := audio.NewPipeline(audio.Config{QueueDepth: 4})
	w := &fakeWriter{}
	require.NoError(t, p.Attach(w))

	dropped, err := p.Write([]byte{9})
	require.NoError(t, err)
	assert.Equal(t, 0, dropped)
	require.Len(t, w.samples, 1)
	assert.Equal(t, []byte{9}, w.samples[0])
}

func TestPipeline_QueueDepthZeroTreatedAsOne(t *testing.T) {
	p := audio.NewPipeline(audio.Config{QueueDepth: 0})
	_, _ = p.Write([]byte{1})
	dropped, _ := p.Write([]byte{2})
	assert.Equal(t, 1, dropped)
	assert.Equal(t, 1, p.Buffered())
}
