// ABOUTME: WAV audio decoder
// ABOUTME: Reads RIFF/WAVE containers holding 16-bit or 24-bit PCM via go-audio/wav
package decode

import (
	"bytes"
	"fmt"

	"github.com/Resonate-Protocol/etabla-go/pkg/audio"
	"github.com/go-audio/wav"
)

const wavFormatPCM = 1

// WAVDecoder decodes PCM WAV audio
type WAVDecoder struct{}

// NewWAV creates a new WAV decoder
func NewWAV() Decoder {
	return &WAVDecoder{}
}

// Decode converts WAV bytes to a decoded buffer
func (d *WAVDecoder) Decode(data []byte) (*audio.DecodedBuffer, error) {
	dec := wav.NewDecoder(bytes.NewReader(data))
	if !dec.IsValidFile() {
		return nil, fmt.Errorf("not a RIFF/WAVE file")
	}
	if dec.WavAudioFormat != wavFormatPCM {
		return nil, fmt.Errorf("unsupported WAV encoding: %d (only PCM)", dec.WavAudioFormat)
	}

	bitDepth := int(dec.BitDepth)
	var toFloat func(int) float32
	switch bitDepth {
	case 16:
		toFloat = func(s int) float32 { return audio.FloatFromInt16(int16(s)) }
	case 24:
		toFloat = func(s int) float32 { return audio.FloatFromInt32(int32(s)) }
	default:
		return nil, fmt.Errorf("unsupported bit depth: %d (supported: 16, 24)", bitDepth)
	}

	buf, err := dec.FullPCMBuffer()
	if err != nil {
		return nil, fmt.Errorf("read PCM: %w", err)
	}
	channels := buf.Format.NumChannels
	if channels <= 0 {
		return nil, fmt.Errorf("invalid channel count: %d", channels)
	}
	if got, want := int64(len(buf.Data)*bitDepth/8), dec.PCMLen(); got < want {
		return nil, fmt.Errorf("truncated data chunk: %d of %d bytes", got, want)
	}

	samples := make([]float32, len(buf.Data)-len(buf.Data)%channels)
	for i := range samples {
		samples[i] = toFloat(buf.Data[i])
	}
	return audio.NewDecodedBuffer(samples, buf.Format.SampleRate, channels), nil
}
