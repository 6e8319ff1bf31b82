// ABOUTME: Audio type definitions
// ABOUTME: Defines audio formats, decoded buffers and sample conversions
package audio

import (
	"fmt"
	"time"
)

const (
	// 24-bit audio range constants
	Max24Bit = 8388607  // 2^23 - 1
	Min24Bit = -8388608 // -2^23
)

// Format describes audio stream format
type Format struct {
	Codec      string
	SampleRate int
	Channels   int
	BitDepth   int
}

// DecodedBuffer is a fully decoded asset. Samples are interleaved float32 in
// [-1, 1]. A buffer is immutable once returned by a decoder.
type DecodedBuffer struct {
	Samples    []float32
	SampleRate int
	Channels   int

	// Title comes from the asset's tags when present
	Title string
}

// NewDecodedBuffer wraps interleaved samples
func NewDecodedBuffer(samples []float32, sampleRate, channels int) *DecodedBuffer {
	return &DecodedBuffer{
		Samples:    samples,
		SampleRate: sampleRate,
		Channels:   channels,
	}
}

// Frames returns the number of sample frames (samples per channel)
func (b *DecodedBuffer) Frames() int {
	if b == nil || b.Channels == 0 {
		return 0
	}
	return len(b.Samples) / b.Channels
}

// Duration returns the playback length at the native sample rate
func (b *DecodedBuffer) Duration() time.Duration {
	if b == nil || b.SampleRate == 0 {
		return 0
	}
	return time.Duration(float64(b.Frames()) / float64(b.SampleRate) * float64(time.Second))
}

// Format describes the buffer as a raw float stream
func (b *DecodedBuffer) Format() Format {
	return Format{
		Codec:      "pcm",
		SampleRate: b.SampleRate,
		Channels:   b.Channels,
		BitDepth:   32,
	}
}

// Validate checks the buffer is playable
func (b *DecodedBuffer) Validate() error {
	if b == nil {
		return fmt.Errorf("nil buffer")
	}
	if b.Channels <= 0 {
		return fmt.Errorf("invalid channel count: %d", b.Channels)
	}
	if b.SampleRate <= 0 {
		return fmt.Errorf("invalid sample rate: %d", b.SampleRate)
	}
	if len(b.Samples)%b.Channels != 0 {
		return fmt.Errorf("sample count %d is not a multiple of %d channels", len(b.Samples), b.Channels)
	}
	if b.Frames() == 0 {
		return fmt.Errorf("buffer has no frames")
	}
	return nil
}

// FloatFromInt16 converts an int16 sample to float32 in [-1, 1)
func FloatFromInt16(sample int16) float32 {
	return float32(sample) / 32768.0
}

// FloatFromInt32 converts a 24-bit range int32 sample to float32
func FloatFromInt32(sample int32) float32 {
	return float32(sample) / 8388608.0
}

// FloatToInt16 converts a float32 sample to int16 with clipping
func FloatToInt16(sample float32) int16 {
	v := sample * 32767.0
	if v > 32767 {
		return 32767
	}
	if v < -32768 {
		return -32768
	}
	return int16(v)
}

// FloatToInt32 converts a float32 sample to the 24-bit range with clipping
func FloatToInt32(sample float32) int32 {
	v := int64(float64(sample) * Max24Bit)
	if v > Max24Bit {
		return Max24Bit
	}
	if v < Min24Bit {
		return Min24Bit
	}
	return int32(v)
}

// SampleTo24Bit converts int32 to 24-bit packed bytes (little-endian)
func SampleTo24Bit(sample int32) [3]byte {
	return [3]byte{
		byte(sample),
		byte(sample >> 8),
		byte(sample >> 16),
	}
}

// SampleFrom24Bit converts 24-bit packed bytes to int32 (little-endian)
func SampleFrom24Bit(b [3]byte) int32 {
	val := int32(b[0]) | int32(b[1])<<8 | int32(b[2])<<16
	// Sign extend from 24-bit to 32-bit
	if val&0x800000 != 0 {
		val |= ^0xFFFFFF
	}
	return val
}
