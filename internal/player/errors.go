// ABOUTME: Error kinds surfaced by the playback controller
// ABOUTME: Wraps fetch, decode, and sink failures with the operation that failed
package player

import (
	"errors"
	"fmt"

	"github.com/Resonate-Protocol/etabla-go/internal/catalog"
	"github.com/Resonate-Protocol/etabla-go/internal/fetch"
	"github.com/Resonate-Protocol/etabla-go/pkg/audio/decode"
)

var (
	// ErrCatalogLookupEmpty is returned when the requested pattern has no recordings.
	ErrCatalogLookupEmpty = catalog.ErrCatalogLookupEmpty

	// ErrClosed is returned when the controller has been closed.
	ErrClosed = errors.New("controller closed")
)

// FetchError is a network or filesystem failure obtaining an asset.
type FetchError = fetch.FetchError

// DecodeError is a malformed or unsupported asset.
type DecodeError = decode.DecodeError

// SinkUnavailableError means the audio output could not take the stream.
type SinkUnavailableError struct {
	Err error
}

// Error implements the error interface.
func (e *SinkUnavailableError) Error() string {
	return fmt.Sprintf("audio output unavailable: %v", e.Err)
}

// Unwrap returns the underlying error.
func (e *SinkUnavailableError) Unwrap() error {
	return e.Err
}

// StartError reports why a play attempt was abandoned. The controller is
// back in Idle when one is delivered.
type StartError struct {
	Op      string // "select", "decode", or "connect"
	Request Request
	Err     error
}

// Error implements the error interface.
func (e *StartError) Error() string {
	return fmt.Sprintf("could not start playback of %s at %.0f BPM in %s (%s): %v",
		e.Request.Pattern, e.Request.Tempo, e.Request.Key, e.Op, e.Err)
}

// Unwrap returns the underlying error.
func (e *StartError) Unwrap() error {
	return e.Err
}

// Recoverable reports whether the failure only aborted one play attempt.
// Fetch and decode failures leave the controller ready for the next request.
// A missing sink ends the session and an empty catalog lookup means the
// catalog itself is broken, so neither is recoverable.
func Recoverable(err error) bool {
	var fe *FetchError
	if errors.As(err, &fe) {
		return true
	}
	var de *DecodeError
	return errors.As(err, &de)
}
