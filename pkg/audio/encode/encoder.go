// ABOUTME: Encoder interface definition
// ABOUTME: Common interface for all audio encoders
package encode

// Encoder encodes float32 PCM samples into a device byte format
type Encoder interface {
	// Encode converts samples to newly allocated encoded bytes
	Encode(samples []float32) ([]byte, error)

	// EncodeInto writes encoded samples into dst and returns the bytes written
	EncodeInto(dst []byte, samples []float32) int

	// BytesPerSample returns the encoded width of one sample
	BytesPerSample() int

	// Close releases encoder resources
	Close() error
}
