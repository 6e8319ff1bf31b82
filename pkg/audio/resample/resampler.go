// ABOUTME: Linear interpolating rate transposer with a live-mutable ratio
// ABOUTME: Used for pitch transposition and sample rate conversion
package resample

import "math"

// Resampler performs linear interpolation between frames. The ratio is the
// number of input frames consumed per output frame: 2.0 plays an octave up
// at double speed, 0.5 an octave down at half speed.
type Resampler struct {
	channels int
	ratio    float64
	position float64 // fractional read position relative to input[0]
}

// NewWithRatio creates a resampler with an explicit transposition ratio
func NewWithRatio(ratio float64, channels int) *Resampler {
	r := &Resampler{channels: channels}
	r.SetRatio(ratio)
	return r
}

// SetRatio changes the transposition ratio; the next Resample call uses it
func (r *Resampler) SetRatio(ratio float64) {
	if ratio <= 0 || math.IsNaN(ratio) || math.IsInf(ratio, 0) {
		return
	}
	r.ratio = ratio
}

// Ratio returns the current ratio
func (r *Resampler) Ratio() float64 {
	return r.ratio
}

// Resample converts interleaved input frames into interleaved output frames.
// It returns the number of input frames fully consumed and output frames
// written. Unconsumed input (at least the last frame, needed for
// interpolation) must be passed again at the front of the next call.
func (r *Resampler) Resample(input, output []float32) (consumed, produced int) {
	ch := r.channels
	inputFrames := len(input) / ch
	outputFrames := len(output) / ch

	for produced < outputFrames {
		idx := int(r.position)

		// Need idx and idx+1 for interpolation
		if idx+1 >= inputFrames {
			break
		}

		frac := float32(r.position - float64(idx))
		a := input[idx*ch : idx*ch+ch]
		b := input[(idx+1)*ch : (idx+1)*ch+ch]
		out := output[produced*ch : produced*ch+ch]
		for c := 0; c < ch; c++ {
			out[c] = a[c] + (b[c]-a[c])*frac
		}

		produced++
		r.position += r.ratio
	}

	consumed = int(r.position)
	if consumed > inputFrames-1 {
		consumed = inputFrames - 1
	}
	if consumed < 0 {
		consumed = 0
	}
	r.position -= float64(consumed)

	return consumed, produced
}
