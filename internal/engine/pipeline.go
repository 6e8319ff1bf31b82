// ABOUTME: Stream transform pipeline from a decoded buffer to sink frames
// ABOUTME: Time-stretches for tempo, then resamples for pitch and device rate
package engine

import (
	"math"
	"sync/atomic"

	"github.com/Resonate-Protocol/etabla-go/pkg/audio"
	"github.com/Resonate-Protocol/etabla-go/pkg/audio/resample"
	"github.com/Resonate-Protocol/etabla-go/pkg/audio/stretch"
)

const (
	feedFrames    = 1024 // source frames handed to the stretcher at a time
	pendingFrames = 4096 // stretched frames buffered for the resampler
)

// Pipeline renders a decoded buffer at a tempo and pitch ratio. Pull runs
// on the audio callback; SetTempo and SetPitch may be called from any
// goroutine and take effect on the next Pull.
type Pipeline struct {
	buf         *audio.DecodedBuffer
	srcChannels int
	outChannels int
	srcRate     int
	outRate     int

	tempoBits atomic.Uint64
	pitchBits atomic.Uint64
	appliedT  float64
	appliedP  float64

	stretcher *stretch.Stretcher
	resampler *resample.Resampler

	cursor  int // source frames handed to the stretcher
	pending []float32
	nFrames int // frames in pending
	scratch []float32

	position  atomic.Int64
	exhausted atomic.Bool
}

// New builds a pipeline for buf rendering to outRate/outChannels
func New(buf *audio.DecodedBuffer, outRate, outChannels int, tempoRatio, pitchRatio float64) *Pipeline {
	p := &Pipeline{
		buf:         buf,
		srcChannels: buf.Channels,
		outChannels: outChannels,
		srcRate:     buf.SampleRate,
		outRate:     outRate,
		stretcher:   stretch.New(buf.SampleRate, buf.Channels),
		resampler:   resample.NewWithRatio(1.0, buf.Channels),
		pending:     make([]float32, pendingFrames*buf.Channels),
	}
	p.SetTempo(tempoRatio)
	p.SetPitch(pitchRatio)
	p.applyParams()
	return p
}

// SetTempo sets the tempo ratio; 1.25 plays 25% faster
func (p *Pipeline) SetTempo(ratio float64) {
	if ratio > 0 && !math.IsInf(ratio, 0) {
		p.tempoBits.Store(math.Float64bits(ratio))
	}
}

// SetPitch sets the pitch ratio; 2.0 is an octave up
func (p *Pipeline) SetPitch(ratio float64) {
	if ratio > 0 && !math.IsInf(ratio, 0) {
		p.pitchBits.Store(math.Float64bits(ratio))
	}
}

// Tempo returns the most recently set tempo ratio
func (p *Pipeline) Tempo() float64 {
	return math.Float64frombits(p.tempoBits.Load())
}

// Pitch returns the most recently set pitch ratio
func (p *Pipeline) Pitch() float64 {
	return math.Float64frombits(p.pitchBits.Load())
}

// Exhausted reports whether the source has been fully rendered
func (p *Pipeline) Exhausted() bool {
	return p.exhausted.Load()
}

// Position returns how far into the source the pipeline has read
func (p *Pipeline) Position() float64 {
	return float64(p.position.Load()) / float64(p.srcRate)
}

func (p *Pipeline) applyParams() {
	tempo := p.Tempo()
	pitch := p.Pitch()
	if tempo == p.appliedT && pitch == p.appliedP {
		return
	}
	// Whatever the stretcher cannot absorb moves into the resampler, so
	// output duration is always input duration / tempo
	stretchBy := math.Max(stretch.MinTempo, math.Min(stretch.MaxTempo, tempo/pitch))
	p.stretcher.SetTempo(stretchBy)
	p.resampler.SetRatio(tempo / stretchBy * float64(p.srcRate) / float64(p.outRate))
	p.appliedT = tempo
	p.appliedP = pitch
}

// Pull fills dst with interleaved output frames. It returns fewer frames
// than requested only when the source is used up, and then reports
// exhausted instead of padding with silence.
func (p *Pipeline) Pull(dst []float32) (int, bool) {
	if p.exhausted.Load() {
		return 0, true
	}
	p.applyParams()

	want := len(dst) / p.outChannels
	out := dst
	if p.srcChannels != p.outChannels {
		need := want * p.srcChannels
		if cap(p.scratch) < need {
			p.scratch = make([]float32, need)
		}
		out = p.scratch[:need]
	}

	ch := p.srcChannels
	produced := 0
	for produced < want {
		if p.nFrames < 2 && !p.refill() {
			break
		}

		consumed, n := p.resampler.Resample(p.pending[:p.nFrames*ch], out[produced*ch:want*ch])
		if consumed > 0 {
			copy(p.pending, p.pending[consumed*ch:p.nFrames*ch])
			p.nFrames -= consumed
		}
		produced += n

		if n == 0 && !p.refill() {
			break
		}
	}

	if p.srcChannels != p.outChannels {
		mapChannels(dst, out[:produced*ch], p.srcChannels, p.outChannels)
	}

	if produced < want {
		p.exhausted.Store(true)
		return produced, true
	}
	return produced, false
}

// refill moves stretched audio into pending; false when nothing is left
func (p *Pipeline) refill() bool {
	ch := p.srcChannels
	free := len(p.pending)/ch - p.nFrames
	if free == 0 {
		return true
	}

	for p.stretcher.Available() == 0 {
		if p.stretcher.Done() {
			return false
		}
		total := p.buf.Frames()
		if p.cursor >= total {
			p.stretcher.Flush()
			continue
		}
		end := p.cursor + feedFrames
		if end > total {
			end = total
		}
		p.stretcher.Put(p.buf.Samples[p.cursor*ch : end*ch])
		p.cursor = end
		p.position.Store(int64(end))
	}

	n := p.stretcher.Receive(p.pending[p.nFrames*ch:])
	p.nFrames += n
	return n > 0
}

// mapChannels converts interleaved frames between mono and multichannel
func mapChannels(dst, src []float32, from, to int) {
	frames := len(src) / from
	for i := 0; i < frames; i++ {
		var sum float32
		for c := 0; c < from; c++ {
			sum += src[i*from+c]
		}
		if from == 1 {
			for c := 0; c < to; c++ {
				dst[i*to+c] = sum
			}
			continue
		}
		if to == 1 {
			dst[i] = sum / float32(from)
			continue
		}
		for c := 0; c < to; c++ {
			dst[i*to+c] = src[i*from+c%from]
		}
	}
}
