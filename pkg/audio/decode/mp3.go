// ABOUTME: MP3 audio decoder
// ABOUTME: Decodes a whole MP3 asset to float32 frames
package decode

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"

	"github.com/Resonate-Protocol/etabla-go/pkg/audio"
	"github.com/hajimehoshi/go-mp3"
)

// MP3Decoder decodes MP3 audio
type MP3Decoder struct{}

// NewMP3 creates a new MP3 decoder
func NewMP3() Decoder {
	return &MP3Decoder{}
}

// Decode converts MP3 bytes to a decoded buffer
func (d *MP3Decoder) Decode(data []byte) (*audio.DecodedBuffer, error) {
	decoder, err := mp3.NewDecoder(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to create mp3 decoder: %w", err)
	}

	// go-mp3 always outputs 16-bit stereo
	pcm, err := io.ReadAll(decoder)
	if err != nil {
		return nil, fmt.Errorf("mp3 decode error: %w", err)
	}

	numSamples := len(pcm) / 2
	samples := make([]float32, numSamples)
	for i := 0; i < numSamples; i++ {
		sample16 := int16(binary.LittleEndian.Uint16(pcm[i*2:]))
		samples[i] = audio.FloatFromInt16(sample16)
	}

	// Drop a trailing half frame, if any
	samples = samples[:len(samples)-len(samples)%2]

	return audio.NewDecodedBuffer(samples, decoder.SampleRate(), 2), nil
}
