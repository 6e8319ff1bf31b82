// ABOUTME: Resampling package for rate transposition
// ABOUTME: Provides a streaming linear interpolator with a mutable ratio
// Package resample provides a streaming linear resampler.
//
// The same resampler serves two purposes: converting a decoded asset's
// native sample rate to the output device rate, and transposing pitch by
// playing the time-stretched signal faster or slower.
//
// Example:
//
//	r := resample.NewWithRatio(1.0595, 2) // one semitone up
//	consumed, produced := r.Resample(in, out)
package resample
