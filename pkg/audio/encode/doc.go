// ABOUTME: Audio encoder package for rendering float PCM to device bytes
// ABOUTME: Provides the Encoder interface and a PCM implementation
// Package encode converts float32 PCM into little-endian integer bytes.
//
// Supports: PCM (16-bit and 24-bit)
//
// Example:
//
//	encoder, err := encode.NewPCM(format)
//	n := encoder.EncodeInto(dst, samples)
package encode
