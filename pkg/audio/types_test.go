// ABOUTME: Tests for audio types
// ABOUTME: Tests sample conversion functions and decoded buffer helpers
package audio

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestPacked24Bit(t *testing.T) {
	tests := []struct {
		name   string
		sample int32
		packed [3]byte
	}{
		{"zero", 0, [3]byte{0, 0, 0}},
		{"positive", 0x123456, [3]byte{0x56, 0x34, 0x12}},
		{"negative", -256, [3]byte{0x00, 0xFF, 0xFF}},
		{"max", Max24Bit, [3]byte{0xFF, 0xFF, 0x7F}},
		{"min", Min24Bit, [3]byte{0x00, 0x00, 0x80}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.packed, SampleTo24Bit(tt.sample))
			assert.Equal(t, tt.sample, SampleFrom24Bit(tt.packed))
		})
	}
}

func TestIntToFloat(t *testing.T) {
	assert.Equal(t, float32(0), FloatFromInt16(0))
	assert.Equal(t, float32(0.5), FloatFromInt16(16384))
	assert.Equal(t, float32(-1), FloatFromInt16(-32768))
	assert.Equal(t, float32(-1), FloatFromInt32(Min24Bit))
	assert.Equal(t, float32(0.5), FloatFromInt32(1<<22))
}

func TestFloatToIntClips(t *testing.T) {
	assert.Equal(t, int16(32767), FloatToInt16(2.0))
	assert.Equal(t, int16(-32768), FloatToInt16(-2.0))
	assert.Equal(t, int16(0), FloatToInt16(0))

	assert.Equal(t, int32(Max24Bit), FloatToInt32(1.5))
	assert.Equal(t, int32(Min24Bit), FloatToInt32(-1.5))
}

func TestDecodedBufferFrames(t *testing.T) {
	buf := NewDecodedBuffer(make([]float32, 44100*2), 44100, 2)

	assert.Equal(t, 44100, buf.Frames())
	assert.Equal(t, time.Second, buf.Duration())
	assert.NoError(t, buf.Validate())
	assert.Equal(t, Format{Codec: "pcm", SampleRate: 44100, Channels: 2, BitDepth: 32}, buf.Format())

	var nilBuf *DecodedBuffer
	assert.Zero(t, nilBuf.Frames())
	assert.Zero(t, nilBuf.Duration())
}

func TestDecodedBufferValidate(t *testing.T) {
	tests := []struct {
		name string
		buf  *DecodedBuffer
	}{
		{"nil", nil},
		{"no channels", NewDecodedBuffer(make([]float32, 4), 44100, 0)},
		{"no rate", NewDecodedBuffer(make([]float32, 4), 0, 2)},
		{"ragged", NewDecodedBuffer(make([]float32, 5), 44100, 2)},
		{"empty", NewDecodedBuffer(nil, 44100, 2)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Error(t, tt.buf.Validate())
		})
	}
}

func TestClicksLength(t *testing.T) {
	buf := Clicks(120, 4, 8000, 1)

	// 4 beats at 120 BPM = 2 seconds
	assert.Equal(t, 16000, buf.Frames())
	assert.Zero(t, buf.Samples[0], "click should start at a zero crossing")
}
