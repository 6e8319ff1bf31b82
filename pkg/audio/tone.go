// ABOUTME: Synthetic test signals
// ABOUTME: Generates sine tones and click tracks as decoded buffers
package audio

import "math"

// Tone renders a sine wave of the given frequency and length
func Tone(frequency float64, seconds float64, sampleRate, channels int) *DecodedBuffer {
	frames := int(seconds * float64(sampleRate))
	samples := make([]float32, frames*channels)

	for i := 0; i < frames; i++ {
		t := float64(i) / float64(sampleRate)
		v := float32(math.Sin(2*math.Pi*frequency*t) * 0.5) // 50% volume
		for ch := 0; ch < channels; ch++ {
			samples[i*channels+ch] = v
		}
	}

	return NewDecodedBuffer(samples, sampleRate, channels)
}

// Clicks renders a click track: a short decaying burst on every beat
func Clicks(bpm float64, beats int, sampleRate, channels int) *DecodedBuffer {
	framesPerBeat := int(60.0 / bpm * float64(sampleRate))
	clickFrames := sampleRate / 50 // 20ms
	samples := make([]float32, framesPerBeat*beats*channels)

	for b := 0; b < beats; b++ {
		freq := 1000.0
		if b == 0 {
			freq = 1500.0
		}
		start := b * framesPerBeat
		for i := 0; i < clickFrames && i < framesPerBeat; i++ {
			env := 1.0 - float64(i)/float64(clickFrames)
			v := float32(math.Sin(2*math.Pi*freq*float64(i)/float64(sampleRate)) * env * 0.8)
			for ch := 0; ch < channels; ch++ {
				samples[(start+i)*channels+ch] = v
			}
		}
	}

	return NewDecodedBuffer(samples, sampleRate, channels)
}
