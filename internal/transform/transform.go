// ABOUTME: Tempo and pitch ratios for playing a recording at a requested tempo and key
// ABOUTME: Key changes take the shortest way around the chromatic circle
package transform

import (
	"math"

	"github.com/Resonate-Protocol/etabla-go/internal/catalog"
)

// Result holds the ratios the stream pipeline applies
type Result struct {
	TempoRatio float64
	PitchRatio float64
	Semitones  float64 // total shift including fine-tune
}

// SemitoneShift returns the key change from native to target in [-6, 5]
func SemitoneShift(native, target catalog.Key) int {
	raw := target.Index() - native.Index()
	return mod(raw+6, catalog.NumKeys) - 6
}

// Compute derives the transform for playing entry at tempo and key
func Compute(entry catalog.Entry, tempo float64, key catalog.Key, fineTuneCents float64) Result {
	shift := float64(SemitoneShift(entry.Key, key)) + fineTuneCents/100
	return Result{
		TempoRatio: tempo / float64(entry.Tempo),
		PitchRatio: PitchRatio(shift),
		Semitones:  shift,
	}
}

// PitchRatio converts semitones to a frequency ratio
func PitchRatio(semitones float64) float64 {
	return math.Pow(2, semitones/12)
}

func mod(a, n int) int {
	return ((a % n) + n) % n
}
