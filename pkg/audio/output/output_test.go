// ABOUTME: Audio output sink tests
// ABOUTME: Verifies the shared renderer through the null sink
package output

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/Resonate-Protocol/etabla-go/internal/testutil"
)

func TestSinksImplementSink(t *testing.T) {
	var _ Sink = (*Oto)(nil)
	var _ Sink = (*Malgo)(nil)
	var _ Sink = (*Null)(nil)
}

// countdown produces a constant value for a fixed number of frames
type countdown struct {
	channels int
	left     int
	value    float32
}

func (c *countdown) Pull(dst []float32) (int, bool) {
	frames := len(dst) / c.channels
	if frames > c.left {
		frames = c.left
	}
	for i := 0; i < frames*c.channels; i++ {
		dst[i] = c.value
	}
	c.left -= frames
	return frames, c.left == 0
}

func TestNullConnectBeforeOpen(t *testing.T) {
	n := NewNull()
	if err := n.Connect(&countdown{channels: 2}, nil); err != ErrNotOpen {
		t.Errorf("expected ErrNotOpen, got %v", err)
	}
}

func TestNullClockFollowsRenderedFrames(t *testing.T) {
	n := NewNull()
	if err := n.Open(1000, 2); err != nil {
		t.Fatalf("Open failed: %v", err)
	}

	if n.Clock() != 0 {
		t.Fatalf("expected clock 0, got %f", n.Clock())
	}

	n.Advance(250 * time.Millisecond)
	n.Advance(250 * time.Millisecond)

	if got := n.Clock(); got != 0.5 {
		t.Errorf("expected clock 0.5, got %f", got)
	}
}

func TestNullClockCarriesFractionalFrames(t *testing.T) {
	n := NewNull()
	n.Open(3, 1)

	// 1.5 frames per call
	for i := 0; i < 10; i++ {
		n.Advance(500 * time.Millisecond)
	}

	if got := n.Clock(); got != 5.0 {
		t.Errorf("expected clock 5.0, got %f", got)
	}
}

func TestNullOnEndFiresOnce(t *testing.T) {
	n := NewNull()
	n.Open(1000, 2)

	var ended atomic.Int32
	done := make(chan struct{}, 2)
	p := &countdown{channels: 2, left: 100, value: 0.5}
	if err := n.Connect(p, func() {
		ended.Add(1)
		done <- struct{}{}
	}); err != nil {
		t.Fatalf("Connect failed: %v", err)
	}

	n.Advance(50 * time.Millisecond)
	if ended.Load() != 0 {
		t.Fatal("expected no end before producer is exhausted")
	}

	n.Advance(100 * time.Millisecond)
	n.Advance(100 * time.Millisecond)

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("onEnd was not called")
	}

	time.Sleep(10 * time.Millisecond)
	if got := ended.Load(); got != 1 {
		t.Errorf("expected onEnd once, got %d", got)
	}
}

func TestNullDisconnectSuppressesOnEnd(t *testing.T) {
	defer testutil.VerifyNoLeaks(t)
	n := NewNull()
	n.Open(1000, 1)

	called := make(chan struct{}, 1)
	p := &countdown{channels: 1, left: 10}
	n.Connect(p, func() { called <- struct{}{} })
	n.Disconnect()

	n.Advance(time.Second)

	select {
	case <-called:
		t.Error("expected no onEnd after disconnect")
	case <-time.After(20 * time.Millisecond):
	}
	if p.left != 10 {
		t.Errorf("expected producer untouched, %d frames left", p.left)
	}
}

func TestRendererEndSurvivesReconnect(t *testing.T) {
	defer testutil.VerifyNoLeaks(t)
	r := newRenderer()
	r.channels = 1

	fired := make(chan struct{}, 2)
	r.connect(&countdown{channels: 1, left: 2}, func() { fired <- struct{}{} })
	r.render(make([]float32, 4))

	// Replacing the exhausted producer right away must not swallow its end
	r.connect(&countdown{channels: 1, left: 100}, func() { fired <- struct{}{} })

	select {
	case <-fired:
	case <-time.After(time.Second):
		t.Fatal("onEnd was not called")
	}

	r.disconnect()
	select {
	case <-fired:
		t.Error("second producer was never exhausted")
	case <-time.After(20 * time.Millisecond):
	}
}

func TestRendererPadsSilenceAndAppliesVolume(t *testing.T) {
	r := newRenderer()
	r.channels = 1
	r.setVolume(50)
	r.connect(&countdown{channels: 1, left: 2, value: 1.0}, nil)

	dst := []float32{9, 9, 9, 9}
	r.render(dst)

	want := []float32{0.5, 0.5, 0, 0}
	for i := range want {
		if dst[i] != want[i] {
			t.Errorf("sample %d: expected %f, got %f", i, want[i], dst[i])
		}
	}
}

func TestRendererMuted(t *testing.T) {
	r := newRenderer()
	r.channels = 1
	r.setMuted(true)
	r.connect(&countdown{channels: 1, left: 4, value: 1.0}, nil)

	dst := make([]float32, 4)
	r.render(dst)

	for i, v := range dst {
		if v != 0 {
			t.Errorf("sample %d: expected silence, got %f", i, v)
		}
	}
}

func TestVolumeClamping(t *testing.T) {
	r := newRenderer()

	r.setVolume(150)
	if r.volume != 100 {
		t.Errorf("expected 100, got %d", r.volume)
	}

	r.setVolume(-5)
	if r.volume != 0 {
		t.Errorf("expected 0, got %d", r.volume)
	}
}
