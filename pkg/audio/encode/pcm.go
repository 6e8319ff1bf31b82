// ABOUTME: PCM audio encoder
// ABOUTME: Encodes float32 samples to 16-bit or 24-bit PCM bytes
package encode

import (
	"encoding/binary"
	"fmt"

	"github.com/Resonate-Protocol/etabla-go/pkg/audio"
)

// PCMEncoder encodes PCM audio
type PCMEncoder struct {
	bitDepth int
}

// NewPCM creates a new PCM encoder
func NewPCM(format audio.Format) (*PCMEncoder, error) {
	if format.Codec != "pcm" {
		return nil, fmt.Errorf("invalid codec for PCM encoder: %s", format.Codec)
	}

	if format.BitDepth != 16 && format.BitDepth != 24 {
		return nil, fmt.Errorf("unsupported bit depth: %d (supported: 16, 24)", format.BitDepth)
	}

	return &PCMEncoder{
		bitDepth: format.BitDepth,
	}, nil
}

// BytesPerSample returns 2 for 16-bit and 3 for 24-bit output
func (e *PCMEncoder) BytesPerSample() int {
	return e.bitDepth / 8
}

// Encode converts float32 samples to PCM bytes
func (e *PCMEncoder) Encode(samples []float32) ([]byte, error) {
	output := make([]byte, len(samples)*e.BytesPerSample())
	e.EncodeInto(output, samples)
	return output, nil
}

// EncodeInto converts as many samples as fit in dst without allocating
func (e *PCMEncoder) EncodeInto(dst []byte, samples []float32) int {
	width := e.BytesPerSample()
	n := len(samples)
	if max := len(dst) / width; n > max {
		n = max
	}

	if e.bitDepth == 24 {
		// 24-bit PCM: 3 bytes per sample
		for i := 0; i < n; i++ {
			bytes := audio.SampleTo24Bit(audio.FloatToInt32(samples[i]))
			dst[i*3] = bytes[0]
			dst[i*3+1] = bytes[1]
			dst[i*3+2] = bytes[2]
		}
	} else {
		// 16-bit PCM: 2 bytes per sample
		for i := 0; i < n; i++ {
			binary.LittleEndian.PutUint16(dst[i*2:], uint16(audio.FloatToInt16(samples[i])))
		}
	}

	return n * width
}

// Close releases resources
func (e *PCMEncoder) Close() error {
	return nil
}
