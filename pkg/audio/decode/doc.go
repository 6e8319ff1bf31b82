// ABOUTME: Audio decoder package for multiple codec support
// ABOUTME: Provides whole-asset decoders for MP3, FLAC, Ogg/Opus and WAV
// Package decode turns a compressed audio asset into an audio.DecodedBuffer.
//
// Supports: MP3, FLAC, Ogg/Opus (stereo), WAV (16-bit and 24-bit PCM)
//
// The codec is picked from the asset's magic bytes, falling back to the
// file extension. Failures are reported as *DecodeError.
//
// Example:
//
//	buf, err := decode.Decode("teentaal_140_G.mp3", data)
package decode
