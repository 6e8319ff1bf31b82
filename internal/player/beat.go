// ABOUTME: Beat counter derived from the audio output clock
// ABOUTME: Compensates for output latency and wraps at the cycle length
package player

import (
	"math"
	"time"
)

// BeatState is the derived beat position shown to the user
type BeatState struct {
	Beat          int // 1-based, 0 when not counting
	BeatsPerCycle int // 0 means the pattern has no beat display
}

// BeatClock tracks one session's beat from sink clock readings. It is owned
// by the controller loop and is not safe for concurrent use.
type BeatClock struct {
	latency float64
	start   float64
	started bool
	tempo   float64
	beats   int
	current int
}

// NewBeatClock creates a clock that subtracts latency from elapsed time
func NewBeatClock(latency time.Duration) *BeatClock {
	return &BeatClock{latency: latency.Seconds()}
}

// Start records the session start on the sink clock. The beat reads 1
// immediately when the pattern has a beat display.
func (b *BeatClock) Start(at, tempo float64, beatsPerCycle int) {
	b.start = at
	b.tempo = tempo
	b.beats = beatsPerCycle
	b.started = true
	if beatsPerCycle > 0 {
		b.current = 1
	} else {
		b.current = 0
	}
}

// Tick updates the beat for the sink clock reading now. Before the latency
// window has passed the previous value is kept.
func (b *BeatClock) Tick(now float64) int {
	if !b.started || b.beats <= 0 {
		return b.current
	}
	elapsed := now - b.start - b.latency
	if elapsed > 0 {
		b.current = int(math.Floor(elapsed*b.tempo/60))%b.beats + 1
	}
	return b.current
}

// Reset stops counting and returns the beat to 0
func (b *BeatClock) Reset() {
	b.started = false
	b.current = 0
	b.start = 0
}

// Counting reports whether a start has been recorded and ticks are useful
func (b *BeatClock) Counting() bool {
	return b.started && b.beats > 0
}

// State returns the current beat state
func (b *BeatClock) State() BeatState {
	return BeatState{Beat: b.current, BeatsPerCycle: b.beats}
}
