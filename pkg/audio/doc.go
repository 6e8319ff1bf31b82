// ABOUTME: Audio fundamentals package providing core types and utilities
// ABOUTME: Defines Format, DecodedBuffer types and sample conversion functions
// Package audio provides the fundamental audio types shared by the decode,
// transform and output packages.
//
// This package defines:
//   - Format: describes an audio stream (codec, sample rate, channels, bit depth)
//   - DecodedBuffer: a fully decoded asset held as interleaved float32 frames
//
// It also provides utilities for converting between integer PCM and the
// normalised float32 representation used by the transform pipeline:
//   - int16 ↔ float32
//   - 24-bit packed bytes ↔ int32 ↔ float32
//
// Example:
//
//	buf := audio.NewDecodedBuffer(samples, 44100, 2)
//	fmt.Println(buf.Frames(), buf.Duration())
package audio
