// ABOUTME: Sink and Producer interfaces shared by all playback backends
// ABOUTME: Includes the renderer that pulls frames and applies volume
package output

import (
	"errors"
	"log"
	"sync"
)

// ErrNotOpen is returned when a sink is used before Open
var ErrNotOpen = errors.New("output not initialized")

// Producer fills dst with interleaved frames. It returns the frames
// written and whether the stream has nothing more to give.
type Producer interface {
	Pull(dst []float32) (frames int, exhausted bool)
}

// Sink represents an audio output device
type Sink interface {
	// Open initializes the output device
	Open(sampleRate, channels int) error

	// SampleRate returns the device rate; zero before Open
	SampleRate() int

	// Channels returns the device channel count; zero before Open
	Channels() int

	// Connect starts rendering p, replacing any connected producer.
	// onEnd runs once on its own goroutine after p reports exhaustion.
	Connect(p Producer, onEnd func()) error

	// Disconnect stops rendering the current producer. onEnd is not fired
	// unless the producer had already reported exhaustion.
	Disconnect()

	// Clock returns seconds of device time since Open
	Clock() float64

	// SetVolume sets the volume (0-100)
	SetVolume(volume int)

	// SetMuted sets mute state
	SetMuted(muted bool)

	// Close releases output resources
	Close() error
}

// renderer is the pull loop shared by every backend. The audio callback
// calls render; control goroutines call connect and disconnect.
type renderer struct {
	mu       sync.Mutex
	producer Producer
	ended    chan struct{} // buffered; render signals exhaustion without blocking
	release  chan struct{} // closed when the connection is replaced or dropped
	channels int
	volume   int
	muted    bool
	rendered int64 // frames handed to the device
}

func newRenderer() *renderer {
	return &renderer{volume: 100}
}

// connect replaces the producer. When onEnd is set a watcher goroutine
// waits for the exhaustion signal so render never starts goroutines.
func (r *renderer) connect(p Producer, onEnd func()) {
	r.mu.Lock()
	r.releaseLocked()
	r.producer = p
	if onEnd != nil {
		ended, release := make(chan struct{}, 1), make(chan struct{})
		r.ended, r.release = ended, release
		go func() {
			select {
			case <-ended:
				onEnd()
			case <-release:
			}
		}()
	}
	r.mu.Unlock()
}

func (r *renderer) disconnect() {
	r.mu.Lock()
	r.releaseLocked()
	r.producer = nil
	r.mu.Unlock()
}

func (r *renderer) releaseLocked() {
	if r.release != nil {
		close(r.release)
	}
	r.ended, r.release = nil, nil
}

// render fills dst completely, padding with silence
func (r *renderer) render(dst []float32) {
	r.mu.Lock()

	frames := 0
	if r.producer != nil {
		var exhausted bool
		frames, exhausted = r.producer.Pull(dst)
		if exhausted {
			r.producer = nil
			select {
			case r.ended <- struct{}{}:
			default:
			}
			// The watcher owns the signal now; a later connect must not release it
			r.ended, r.release = nil, nil
		}
	}

	for i := frames * r.channels; i < len(dst); i++ {
		dst[i] = 0
	}

	gain := getVolumeMultiplier(r.volume, r.muted)
	if gain != 1.0 {
		for i := range dst[:frames*r.channels] {
			dst[i] *= gain
		}
	}

	if r.channels > 0 {
		r.rendered += int64(len(dst) / r.channels)
	}
	r.mu.Unlock()
}

func (r *renderer) framesRendered() int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rendered
}

func (r *renderer) setVolume(volume int) {
	if volume < 0 {
		volume = 0
	}
	if volume > 100 {
		volume = 100
	}
	r.mu.Lock()
	r.volume = volume
	r.mu.Unlock()
	log.Printf("Volume set to %d", volume)
}

func (r *renderer) setMuted(muted bool) {
	r.mu.Lock()
	r.muted = muted
	r.mu.Unlock()
	log.Printf("Muted: %v", muted)
}

// getVolumeMultiplier calculates volume multiplier
func getVolumeMultiplier(volume int, muted bool) float32 {
	if muted {
		return 0.0
	}
	return float32(volume) / 100.0
}
