// ABOUTME: Malgo-based audio output implementation with 24-bit support
// ABOUTME: The miniaudio data callback pulls frames from the connected producer
package output

import (
	"fmt"
	"log"
	"sync"

	"github.com/Resonate-Protocol/etabla-go/pkg/audio"
	"github.com/Resonate-Protocol/etabla-go/pkg/audio/encode"
	"github.com/gen2brain/malgo"
)

// Malgo output implementation using malgo/miniaudio library
type Malgo struct {
	*renderer

	mu         sync.Mutex
	malgoCtx   *malgo.AllocatedContext
	device     *malgo.Device
	encoder    *encode.PCMEncoder
	scratch    []float32
	sampleRate int
	channels   int
	bitDepth   int
	ready      bool
}

// NewMalgo creates a new Malgo output rendering at the given bit depth
func NewMalgo(bitDepth int) *Malgo {
	return &Malgo{
		renderer: newRenderer(),
		bitDepth: bitDepth,
	}
}

// Open initializes the output device with specified format
func (m *Malgo) Open(sampleRate, channels int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	// If already initialized with same format, reuse
	if m.device != nil && m.sampleRate == sampleRate && m.channels == channels {
		log.Printf("Audio output already initialized with same format, reusing device")
		return nil
	}

	// If format changed, reinitialize
	if m.device != nil {
		log.Printf("Format change detected (%dHz/%dch -> %dHz/%dch), reinitializing device",
			m.sampleRate, m.channels, sampleRate, channels)
		m.closeDevice()
	}

	// Map bit depth to malgo format
	var format malgo.FormatType
	switch m.bitDepth {
	case 16:
		format = malgo.FormatS16
	case 24:
		format = malgo.FormatS24
	default:
		return fmt.Errorf("unsupported bit depth: %d (supported: 16, 24)", m.bitDepth)
	}

	encoder, err := encode.NewPCM(audio.Format{
		Codec:      "pcm",
		SampleRate: sampleRate,
		Channels:   channels,
		BitDepth:   m.bitDepth,
	})
	if err != nil {
		return err
	}

	// Create malgo context if needed
	if m.malgoCtx == nil {
		ctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, nil)
		if err != nil {
			return fmt.Errorf("failed to initialize malgo context: %w", err)
		}
		m.malgoCtx = ctx
	}

	m.encoder = encoder
	m.sampleRate = sampleRate
	m.channels = channels
	m.renderer.mu.Lock()
	m.renderer.channels = channels
	m.renderer.rendered = 0
	m.renderer.mu.Unlock()

	// Configure device
	deviceConfig := malgo.DefaultDeviceConfig(malgo.Playback)
	deviceConfig.Playback.Format = format
	deviceConfig.Playback.Channels = uint32(channels)
	deviceConfig.SampleRate = uint32(sampleRate)
	deviceConfig.Alsa.NoMMap = 1

	// Set up callbacks
	onSamples := func(pOutputSample, pInputSamples []byte, frameCount uint32) {
		m.dataCallback(pOutputSample, frameCount)
	}

	deviceCallbacks := malgo.DeviceCallbacks{
		Data: onSamples,
	}

	// Initialize device
	device, err := malgo.InitDevice(m.malgoCtx.Context, deviceConfig, deviceCallbacks)
	if err != nil {
		return fmt.Errorf("failed to initialize playback device: %w", err)
	}

	// Start device
	if err := device.Start(); err != nil {
		device.Uninit()
		return fmt.Errorf("failed to start device: %w", err)
	}

	m.device = device
	m.ready = true

	log.Printf("Audio output initialized: %dHz, %d channels, %d-bit (malgo/%s)",
		sampleRate, channels, m.bitDepth, formatName(format))

	return nil
}

// dataCallback is called by malgo to fill the audio output buffer
func (m *Malgo) dataCallback(pOutput []byte, frameCount uint32) {
	need := int(frameCount) * m.channels
	if cap(m.scratch) < need {
		m.scratch = make([]float32, need)
	}
	buf := m.scratch[:need]

	m.render(buf)
	m.encoder.EncodeInto(pOutput, buf)
}

// SampleRate returns the device rate
func (m *Malgo) SampleRate() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sampleRate
}

// Channels returns the device channel count
func (m *Malgo) Channels() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.channels
}

// Connect starts rendering p
func (m *Malgo) Connect(p Producer, onEnd func()) error {
	m.mu.Lock()
	ready := m.ready
	m.mu.Unlock()
	if !ready {
		return ErrNotOpen
	}
	m.connect(p, onEnd)
	return nil
}

// Disconnect stops rendering the current producer
func (m *Malgo) Disconnect() {
	m.disconnect()
}

// Clock counts frames the device has consumed
func (m *Malgo) Clock() float64 {
	m.mu.Lock()
	rate := m.sampleRate
	m.mu.Unlock()
	if rate == 0 {
		return 0
	}
	return float64(m.framesRendered()) / float64(rate)
}

// SetVolume sets the volume (0-100)
func (m *Malgo) SetVolume(volume int) {
	m.setVolume(volume)
}

// SetMuted sets mute state
func (m *Malgo) SetMuted(muted bool) {
	m.setMuted(muted)
}

// Close releases output resources
func (m *Malgo) Close() error {
	m.disconnect()

	m.mu.Lock()
	defer m.mu.Unlock()

	m.closeDevice()

	if m.malgoCtx != nil {
		if err := m.malgoCtx.Uninit(); err != nil {
			log.Printf("Warning: malgo context uninit error: %v", err)
		}
		m.malgoCtx.Free()
		m.malgoCtx = nil
	}

	return nil
}

// closeDevice stops and uninitializes the device (must hold m.mu)
func (m *Malgo) closeDevice() {
	if m.device != nil {
		if err := m.device.Stop(); err != nil {
			log.Printf("Warning: device stop error: %v", err)
		}
		m.device.Uninit()
		m.device = nil
		m.ready = false
	}
}

// formatName returns human-readable format name
func formatName(format malgo.FormatType) string {
	switch format {
	case malgo.FormatS16:
		return "S16"
	case malgo.FormatS24:
		return "S24"
	default:
		return fmt.Sprintf("Unknown(%d)", format)
	}
}
