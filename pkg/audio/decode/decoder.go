// ABOUTME: Decoder interface definition and codec selection
// ABOUTME: Sniffs asset bytes and dispatches to the matching decoder
package decode

import (
	"bytes"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/Resonate-Protocol/etabla-go/pkg/audio"
	"github.com/dhowden/tag"
)

// ErrUnsupportedFormat is returned when no decoder recognises the asset
var ErrUnsupportedFormat = errors.New("unsupported audio format")

// Decoder decodes a complete asset into PCM
type Decoder interface {
	// Decode converts encoded audio data to a decoded buffer
	Decode(data []byte) (*audio.DecodedBuffer, error)
}

// DecodeError wraps a codec failure with the asset it came from
type DecodeError struct {
	Codec string
	Path  string
	Err   error
}

// Error implements the error interface.
func (e *DecodeError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("decode %s '%s': %v", e.Codec, e.Path, e.Err)
	}
	return fmt.Sprintf("decode %s: %v", e.Codec, e.Err)
}

// Unwrap returns the underlying error.
func (e *DecodeError) Unwrap() error {
	return e.Err
}

// New returns the decoder for a codec name
func New(codec string) (Decoder, error) {
	switch codec {
	case "mp3":
		return NewMP3(), nil
	case "flac":
		return NewFLAC(), nil
	case "opus":
		return NewOpus(), nil
	case "wav":
		return NewWAV(), nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, codec)
	}
}

// Sniff identifies the codec of an asset from its leading bytes, falling
// back to the extension of name. It returns "" when nothing matches.
func Sniff(name string, data []byte) string {
	switch {
	case bytes.HasPrefix(data, []byte("fLaC")):
		return "flac"
	case bytes.HasPrefix(data, []byte("OggS")):
		return "opus"
	case len(data) >= 12 && bytes.Equal(data[0:4], []byte("RIFF")) && bytes.Equal(data[8:12], []byte("WAVE")):
		return "wav"
	case bytes.HasPrefix(data, []byte("ID3")):
		return "mp3"
	case len(data) >= 2 && data[0] == 0xFF && data[1]&0xE0 == 0xE0:
		return "mp3"
	}

	switch strings.ToLower(filepath.Ext(name)) {
	case ".mp3":
		return "mp3"
	case ".flac":
		return "flac"
	case ".opus", ".ogg":
		return "opus"
	case ".wav":
		return "wav"
	}
	return ""
}

// Decode picks a decoder for the asset and decodes it. The returned buffer
// carries the asset title from its tags when available.
func Decode(name string, data []byte) (*audio.DecodedBuffer, error) {
	codec := Sniff(name, data)
	if codec == "" {
		return nil, &DecodeError{Codec: "unknown", Path: name, Err: ErrUnsupportedFormat}
	}

	dec, err := New(codec)
	if err != nil {
		return nil, &DecodeError{Codec: codec, Path: name, Err: err}
	}

	buf, err := dec.Decode(data)
	if err != nil {
		return nil, &DecodeError{Codec: codec, Path: name, Err: err}
	}
	if err := buf.Validate(); err != nil {
		return nil, &DecodeError{Codec: codec, Path: name, Err: err}
	}

	buf.Title = readTitle(data)
	if buf.Title == "" {
		base := filepath.Base(name)
		buf.Title = strings.TrimSuffix(base, filepath.Ext(base))
	}

	return buf, nil
}

// readTitle extracts the title tag, if any
func readTitle(data []byte) string {
	metadata, err := tag.ReadFrom(bytes.NewReader(data))
	if err != nil || metadata == nil {
		return ""
	}
	return strings.TrimSpace(metadata.Title())
}
