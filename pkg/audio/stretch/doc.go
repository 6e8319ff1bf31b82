// ABOUTME: Time-stretch package changing tempo without changing pitch
// ABOUTME: Implements overlap-add with waveform similarity seeking
// Package stretch changes the playback tempo of PCM audio while keeping
// its pitch.
//
// The stretcher cuts the input into overlapping sequences, picks each next
// sequence near its nominal position where it best matches the tail of the
// previous one, and crossfades them together. Tempo can change between
// calls; the new value applies from the next sequence.
//
// Example:
//
//	s := stretch.New(44100, 2)
//	s.SetTempo(1.25)
//	s.Put(samples)
//	s.Flush()
//	n := s.Receive(out)
package stretch
