// ABOUTME: Audio output package for playing audio
// ABOUTME: Provides the pull-model Sink interface and its backends
// Package output provides audio playback sinks.
//
// A Sink pulls audio from a connected Producer on the device's own
// schedule. When the producer runs dry the sink plays silence and reports
// the end of the stream once through a callback. Every sink exposes a
// monotonic clock used for beat tracking.
//
// Backends: oto (default), malgo (miniaudio), and a null sink driven
// manually or in real time without a device.
//
// Example:
//
//	sink := output.NewOto()
//	err := sink.Open(44100, 2)
//	err = sink.Connect(pipeline, func() { log.Printf("stream ended") })
package output
