// ABOUTME: Oto-based audio output implementation
// ABOUTME: A persistent player pulls 16-bit PCM from the connected producer
package output

import (
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/Resonate-Protocol/etabla-go/pkg/audio"
	"github.com/Resonate-Protocol/etabla-go/pkg/audio/encode"
	"github.com/ebitengine/oto/v3"
)

// Oto output implementation using oto library
type Oto struct {
	*renderer

	mu         sync.Mutex
	otoCtx     *oto.Context
	player     *oto.Player
	encoder    *encode.PCMEncoder
	scratch    []float32
	sampleRate int
	channels   int
	opened     time.Time
	ready      bool
}

// NewOto creates a new Oto output
func NewOto() *Oto {
	return &Oto{renderer: newRenderer()}
}

// Open initializes the output device
func (o *Oto) Open(sampleRate, channels int) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	// If already initialized with same format, reuse the existing context
	if o.otoCtx != nil && o.sampleRate == sampleRate && o.channels == channels {
		log.Printf("Audio output already initialized with same format, reusing context")
		return nil
	}

	// oto only allows one context per process
	if o.otoCtx != nil {
		log.Printf("Warning: format change detected (%dHz %dch -> %dHz %dch) but oto doesn't support reinitialization. Continuing with existing context.",
			o.sampleRate, o.channels, sampleRate, channels)
		return nil
	}

	encoder, err := encode.NewPCM(audio.Format{
		Codec:      "pcm",
		SampleRate: sampleRate,
		Channels:   channels,
		BitDepth:   16,
	})
	if err != nil {
		return err
	}

	op := &oto.NewContextOptions{
		SampleRate:   sampleRate,
		ChannelCount: channels,
		Format:       oto.FormatSignedInt16LE,
		BufferSize:   20 * time.Millisecond,
	}

	ctx, readyChan, err := oto.NewContext(op)
	if err != nil {
		return fmt.Errorf("failed to create oto context: %w", err)
	}

	<-readyChan

	o.otoCtx = ctx
	o.encoder = encoder
	o.sampleRate = sampleRate
	o.channels = channels
	o.renderer.mu.Lock()
	o.renderer.channels = channels
	o.renderer.mu.Unlock()
	o.opened = time.Now()

	// The player reads continuously; silence flows while nothing is connected
	o.player = o.otoCtx.NewPlayer(otoReader{o})
	o.player.Play()

	o.ready = true

	log.Printf("Audio output initialized: %dHz, %d channels (oto)", sampleRate, channels)

	return nil
}

// otoReader adapts the renderer to the io.Reader oto pulls from
type otoReader struct {
	o *Oto
}

func (r otoReader) Read(p []byte) (int, error) {
	o := r.o
	frameBytes := 2 * o.channels
	frames := len(p) / frameBytes
	if frames == 0 {
		return 0, nil
	}

	need := frames * o.channels
	if cap(o.scratch) < need {
		o.scratch = make([]float32, need)
	}
	buf := o.scratch[:need]

	o.render(buf)
	return o.encoder.EncodeInto(p, buf), nil
}

// SampleRate returns the device rate
func (o *Oto) SampleRate() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.sampleRate
}

// Channels returns the device channel count
func (o *Oto) Channels() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.channels
}

// Connect starts rendering p
func (o *Oto) Connect(p Producer, onEnd func()) error {
	o.mu.Lock()
	ready := o.ready
	o.mu.Unlock()
	if !ready {
		return ErrNotOpen
	}
	o.connect(p, onEnd)
	return nil
}

// Disconnect stops rendering the current producer
func (o *Oto) Disconnect() {
	o.disconnect()
}

// Clock returns wall time since Open; oto reads ahead in bursts so a
// rendered-frame count would jump.
func (o *Oto) Clock() float64 {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.opened.IsZero() {
		return 0
	}
	return time.Since(o.opened).Seconds()
}

// SetVolume sets the volume (0-100)
func (o *Oto) SetVolume(volume int) {
	o.setVolume(volume)
}

// SetMuted sets mute state
func (o *Oto) SetMuted(muted bool) {
	o.setMuted(muted)
}

// Close releases output resources
func (o *Oto) Close() error {
	o.disconnect()

	o.mu.Lock()
	defer o.mu.Unlock()

	if o.player != nil {
		o.player.Pause()
		o.player = nil
	}
	if o.otoCtx != nil {
		if err := o.otoCtx.Suspend(); err != nil {
			log.Printf("Warning: oto suspend error: %v", err)
		}
	}
	o.ready = false
	return nil
}
