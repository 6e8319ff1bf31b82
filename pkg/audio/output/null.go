// ABOUTME: Device-less sink with a virtual clock
// ABOUTME: Rendered either manually via Advance or in real time via Run
package output

import (
	"context"
	"log"
	"sync"
	"time"
)

// Null renders into a scratch buffer instead of a device. Its clock only
// moves when frames are rendered.
type Null struct {
	*renderer

	mu         sync.Mutex
	sampleRate int
	channels   int
	scratch    []float32
	carry      float64 // fractional frame left over from Advance
	ready      bool
}

// NewNull creates a null sink
func NewNull() *Null {
	return &Null{renderer: newRenderer()}
}

// Open records the stream format
func (n *Null) Open(sampleRate, channels int) error {
	n.mu.Lock()
	defer n.mu.Unlock()

	n.sampleRate = sampleRate
	n.channels = channels
	n.renderer.mu.Lock()
	n.renderer.channels = channels
	n.renderer.mu.Unlock()
	n.ready = true

	log.Printf("Audio output initialized: %dHz, %d channels (null)", sampleRate, channels)
	return nil
}

// SampleRate returns the configured rate
func (n *Null) SampleRate() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.sampleRate
}

// Channels returns the configured channel count
func (n *Null) Channels() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.channels
}

// Connect starts rendering p
func (n *Null) Connect(p Producer, onEnd func()) error {
	n.mu.Lock()
	ready := n.ready
	n.mu.Unlock()
	if !ready {
		return ErrNotOpen
	}
	n.connect(p, onEnd)
	return nil
}

// Disconnect stops rendering the current producer
func (n *Null) Disconnect() {
	n.disconnect()
}

// Advance renders d worth of frames and moves the clock forward
func (n *Null) Advance(d time.Duration) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if !n.ready {
		return
	}

	exact := d.Seconds()*float64(n.sampleRate) + n.carry
	frames := int(exact)
	n.carry = exact - float64(frames)

	need := frames * n.channels
	if cap(n.scratch) < need {
		n.scratch = make([]float32, need)
	}
	n.render(n.scratch[:need])
}

// Run advances the sink in real time until ctx is cancelled
func (n *Null) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	last := time.Now()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			n.Advance(now.Sub(last))
			last = now
		}
	}
}

// Clock returns rendered device time in seconds
func (n *Null) Clock() float64 {
	n.mu.Lock()
	rate := n.sampleRate
	n.mu.Unlock()
	if rate == 0 {
		return 0
	}
	return float64(n.framesRendered()) / float64(rate)
}

// SetVolume sets the volume (0-100)
func (n *Null) SetVolume(volume int) {
	n.setVolume(volume)
}

// SetMuted sets mute state
func (n *Null) SetMuted(muted bool) {
	n.setMuted(muted)
}

// Close disconnects the producer
func (n *Null) Close() error {
	n.disconnect()
	n.mu.Lock()
	n.ready = false
	n.mu.Unlock()
	return nil
}
