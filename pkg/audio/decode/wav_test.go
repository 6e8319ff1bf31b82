// ABOUTME: Tests for WAV decoder
// ABOUTME: Builds RIFF containers in memory and decodes them
package decode

import (
	"encoding/binary"
	"testing"
)

// buildWAV assembles a minimal RIFF/WAVE file
func buildWAV(channels, sampleRate, bitDepth int, pcm []byte) []byte {
	fmtChunk := make([]byte, 16)
	binary.LittleEndian.PutUint16(fmtChunk[0:], 1)
	binary.LittleEndian.PutUint16(fmtChunk[2:], uint16(channels))
	binary.LittleEndian.PutUint32(fmtChunk[4:], uint32(sampleRate))
	blockAlign := channels * bitDepth / 8
	binary.LittleEndian.PutUint32(fmtChunk[8:], uint32(sampleRate*blockAlign))
	binary.LittleEndian.PutUint16(fmtChunk[12:], uint16(blockAlign))
	binary.LittleEndian.PutUint16(fmtChunk[14:], uint16(bitDepth))

	out := []byte("RIFF")
	out = binary.LittleEndian.AppendUint32(out, uint32(4+8+len(fmtChunk)+8+len(pcm)))
	out = append(out, []byte("WAVE")...)
	out = append(out, []byte("fmt ")...)
	out = binary.LittleEndian.AppendUint32(out, uint32(len(fmtChunk)))
	out = append(out, fmtChunk...)
	out = append(out, []byte("data")...)
	out = binary.LittleEndian.AppendUint32(out, uint32(len(pcm)))
	out = append(out, pcm...)
	return out
}

func TestWAVDecode16Bit(t *testing.T) {
	// Two stereo frames: (0, 16384), (-32768, 0)
	pcm := []byte{0x00, 0x00, 0x00, 0x40, 0x00, 0x80, 0x00, 0x00}
	data := buildWAV(2, 44100, 16, pcm)

	buf, err := NewWAV().Decode(data)
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}

	if buf.Channels != 2 {
		t.Errorf("expected 2 channels, got %d", buf.Channels)
	}
	if buf.SampleRate != 44100 {
		t.Errorf("expected 44100Hz, got %d", buf.SampleRate)
	}
	if buf.Frames() != 2 {
		t.Fatalf("expected 2 frames, got %d", buf.Frames())
	}

	expected := []float32{0, 0.5, -1, 0}
	for i, v := range expected {
		if buf.Samples[i] != v {
			t.Errorf("sample %d: expected %f, got %f", i, v, buf.Samples[i])
		}
	}
}

func TestWAVDecode24Bit(t *testing.T) {
	pcm := []byte{0x00, 0x00, 0x80, 0x00, 0x00, 0x40}
	data := buildWAV(1, 48000, 24, pcm)

	buf, err := NewWAV().Decode(data)
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}

	if buf.Frames() != 2 {
		t.Fatalf("expected 2 frames, got %d", buf.Frames())
	}
	if buf.Samples[0] != -1 {
		t.Errorf("expected -1, got %f", buf.Samples[0])
	}
	if buf.Samples[1] != 0.5 {
		t.Errorf("expected 0.5, got %f", buf.Samples[1])
	}
}

func TestWAVDecode_UnsupportedBitDepth(t *testing.T) {
	data := buildWAV(2, 44100, 8, []byte{0x00, 0x00})

	if _, err := NewWAV().Decode(data); err == nil {
		t.Fatal("expected error for 8-bit WAV")
	}
}

func TestWAVDecode_Truncated(t *testing.T) {
	data := buildWAV(2, 44100, 16, []byte{0x00, 0x00, 0x00, 0x00})
	data = data[:len(data)-2]

	if _, err := NewWAV().Decode(data); err == nil {
		t.Fatal("expected error for truncated data chunk")
	}
}

func TestWAVDecode_NotRIFF(t *testing.T) {
	if _, err := NewWAV().Decode([]byte("definitely not audio")); err == nil {
		t.Fatal("expected error for non-RIFF input")
	}
}
