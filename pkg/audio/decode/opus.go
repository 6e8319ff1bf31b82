// ABOUTME: Ogg/Opus audio decoder
// ABOUTME: Decodes a whole Ogg/Opus asset to float32 frames
package decode

import (
	"bytes"
	"fmt"
	"io"

	"github.com/Resonate-Protocol/etabla-go/pkg/audio"
	"gopkg.in/hraban/opus.v2"
)

const (
	// opusfile always decodes at 48kHz
	opusSampleRate = 48000
	// Rhythm loops are mastered in stereo; mono links are not supported
	opusChannels = 2
	// Max frame size (120ms at 48kHz) per channel
	opusMaxFrame = 5760
)

// OpusDecoder decodes Ogg/Opus audio
type OpusDecoder struct{}

// NewOpus creates a new Opus decoder
func NewOpus() Decoder {
	return &OpusDecoder{}
}

// Decode converts Ogg/Opus bytes to a decoded buffer
func (d *OpusDecoder) Decode(data []byte) (*audio.DecodedBuffer, error) {
	stream, err := opus.NewStream(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to open opus stream: %w", err)
	}
	defer stream.Close()

	pcm16 := make([]int16, opusMaxFrame*opusChannels)
	var samples []float32

	for {
		n, err := stream.Read(pcm16)
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("opus decode failed: %w", err)
		}

		// n is samples per channel
		for i := 0; i < n*opusChannels; i++ {
			samples = append(samples, audio.FloatFromInt16(pcm16[i]))
		}
	}

	return audio.NewDecodedBuffer(samples, opusSampleRate, opusChannels), nil
}
