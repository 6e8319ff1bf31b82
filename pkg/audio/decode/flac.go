// ABOUTME: FLAC audio decoder
// ABOUTME: Decodes a whole FLAC asset to float32 frames
package decode

import (
	"bytes"
	"fmt"
	"io"

	"github.com/Resonate-Protocol/etabla-go/pkg/audio"
	"github.com/mewkiz/flac"
)

// FLACDecoder decodes FLAC audio
type FLACDecoder struct{}

// NewFLAC creates a new FLAC decoder
func NewFLAC() Decoder {
	return &FLACDecoder{}
}

// Decode converts FLAC bytes to a decoded buffer
func (d *FLACDecoder) Decode(data []byte) (*audio.DecodedBuffer, error) {
	stream, err := flac.New(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to parse FLAC stream: %w", err)
	}
	defer stream.Close()

	info := stream.Info
	channels := int(info.NChannels)
	bitDepth := int(info.BitsPerSample)
	if channels == 0 || bitDepth == 0 {
		return nil, fmt.Errorf("invalid FLAC stream info: %d channels, %d bits", channels, bitDepth)
	}

	scale := float32(int64(1) << (bitDepth - 1))
	samples := make([]float32, 0, int(info.NSamples)*channels)

	for {
		frame, err := stream.ParseNext()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("flac frame error: %w", err)
		}

		for i := 0; i < int(frame.BlockSize); i++ {
			for ch := 0; ch < channels; ch++ {
				samples = append(samples, float32(frame.Subframes[ch].Samples[i])/scale)
			}
		}
	}

	return audio.NewDecodedBuffer(samples, int(info.SampleRate), channels), nil
}
