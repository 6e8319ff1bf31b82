// ABOUTME: Tests for the playback lifecycle controller
// ABOUTME: Uses the null sink's virtual clock and a fake loader
package player

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Resonate-Protocol/etabla-go/internal/catalog"
	"github.com/Resonate-Protocol/etabla-go/internal/testutil"
	"github.com/Resonate-Protocol/etabla-go/pkg/audio"
	"github.com/Resonate-Protocol/etabla-go/pkg/audio/decode"
	"github.com/Resonate-Protocol/etabla-go/pkg/audio/output"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	waitFor = 2 * time.Second
	poll    = 2 * time.Millisecond
)

type fakeLoader struct {
	calls atomic.Int32
	buf   *audio.DecodedBuffer
	err   error
	// blockFirst makes the first load wait for cancellation
	blockFirst bool

	mu    sync.Mutex
	paths []string
}

func (l *fakeLoader) load(ctx context.Context, path string) (*audio.DecodedBuffer, error) {
	n := l.calls.Add(1)
	l.mu.Lock()
	l.paths = append(l.paths, path)
	l.mu.Unlock()

	if l.blockFirst && n == 1 {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	return l.buf, l.err
}

type harness struct {
	c      *Controller
	sink   *output.Null
	loader *fakeLoader

	mu     sync.Mutex
	errors []error
}

func (h *harness) errs() []error {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]error(nil), h.errors...)
}

func key(name string) catalog.Key {
	k, err := catalog.ParseKey(name)
	if err != nil {
		panic(err)
	}
	return k
}

func defaultRequest() Request {
	return Request{Pattern: "Teentaal", Tempo: 140, Key: key("G")}
}

func newHarness(t *testing.T, mutate func(*Config)) *harness {
	t.Helper()

	cat, err := catalog.Default()
	require.NoError(t, err)

	sink := output.NewNull()
	require.NoError(t, sink.Open(8000, 1))

	h := &harness{
		sink:   sink,
		loader: &fakeLoader{buf: audio.Tone(440, 2.0, 8000, 1)},
	}

	cfg := Config{
		Catalog:      cat,
		Sink:         sink,
		Load:         h.loader.load,
		Request:      defaultRequest(),
		StartDelay:   10 * time.Millisecond,
		Debounce:     50 * time.Millisecond,
		TickInterval: 5 * time.Millisecond,
		OnError: func(err error) {
			h.mu.Lock()
			h.errors = append(h.errors, err)
			h.mu.Unlock()
		},
	}
	if mutate != nil {
		mutate(&cfg)
	}

	h.c = NewController(cfg)
	return h
}

func (h *harness) waitState(t *testing.T, want State) Status {
	t.Helper()
	require.Eventually(t, func() bool {
		return h.c.Status().State == want
	}, waitFor, poll, "never reached %s", want)
	return h.c.Status()
}

func TestPlayReachesPlaying(t *testing.T) {
	defer testutil.VerifyNoLeaks(t)
	h := newHarness(t, func(cfg *Config) {
		cfg.Request = Request{Pattern: "Teentaal", Tempo: 150, Key: key("G#")}
	})
	defer h.c.Close()

	require.NoError(t, h.c.Play())
	st := h.waitState(t, Playing)

	assert.True(t, st.Playing)
	assert.Equal(t, 140, st.Entry.Tempo)
	assert.Equal(t, "sounds/taals/teentaal_140_G.mp3", st.Entry.Path)
	assert.InDelta(t, 150.0/140.0, st.Transform.TempoRatio, 1e-9)
	assert.Equal(t, 1.0, st.Transform.Semitones)
	assert.NotEmpty(t, st.SessionID)
	assert.Equal(t, BeatState{Beat: 1, BeatsPerCycle: 16}, h.c.Beat())
	assert.Equal(t, int32(1), h.loader.calls.Load())
}

func TestBeatFollowsSinkClock(t *testing.T) {
	defer testutil.VerifyNoLeaks(t)
	h := newHarness(t, nil)
	defer h.c.Close()

	require.NoError(t, h.c.Play())
	h.waitState(t, Playing)

	// Inside the latency window the beat holds at 1
	h.sink.Advance(100 * time.Millisecond)
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, 1, h.c.Beat().Beat)

	// 1.2s - 0.15s latency = 1.05s at 140 BPM = 2.45 beats elapsed
	h.sink.Advance(1100 * time.Millisecond)
	require.Eventually(t, func() bool {
		return h.c.Beat().Beat == 3
	}, waitFor, poll)
}

func TestStopIsIdempotent(t *testing.T) {
	defer testutil.VerifyNoLeaks(t)
	h := newHarness(t, nil)
	defer h.c.Close()

	// Stop from Idle is harmless
	require.NoError(t, h.c.Stop())
	assert.Equal(t, Idle, h.c.Status().State)
	assert.Equal(t, 0, h.c.Beat().Beat)

	require.NoError(t, h.c.Play())
	h.waitState(t, Playing)

	require.NoError(t, h.c.Stop())
	require.NoError(t, h.c.Stop())

	st := h.c.Status()
	assert.Equal(t, Idle, st.State)
	assert.False(t, st.Playing)
	assert.Empty(t, st.SessionID)
	assert.Equal(t, 0, h.c.Beat().Beat)
	assert.Equal(t, 16, h.c.Beat().BeatsPerCycle)
	assert.Empty(t, h.errs())

	// Nothing is connected any more, so rendering cannot end a session
	h.sink.Advance(5 * time.Second)
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, Idle, h.c.Status().State)
	assert.Equal(t, 0, h.c.Status().Loops)
}

func TestToggle(t *testing.T) {
	defer testutil.VerifyNoLeaks(t)
	h := newHarness(t, nil)
	defer h.c.Close()

	require.NoError(t, h.c.Toggle())
	h.waitState(t, Playing)

	require.NoError(t, h.c.Toggle())
	assert.Equal(t, Idle, h.c.Status().State)
}

func TestRapidTempoChurnDecodesOnce(t *testing.T) {
	defer testutil.VerifyNoLeaks(t)
	h := newHarness(t, func(cfg *Config) {
		cfg.Debounce = 150 * time.Millisecond
	})
	defer h.c.Close()

	require.NoError(t, h.c.Play())
	first := h.waitState(t, Playing)
	require.Equal(t, int32(1), h.loader.calls.Load())

	// A slider dragged from 141 to 190
	req := defaultRequest()
	for tempo := 141; tempo <= 190; tempo++ {
		req.Tempo = float64(tempo)
		require.NoError(t, h.c.Update(req))
	}

	// The old session keeps playing until the changes settle
	assert.Equal(t, first.SessionID, h.c.Status().SessionID)

	require.Eventually(t, func() bool {
		st := h.c.Status()
		return st.State == Playing && st.SessionID != first.SessionID
	}, waitFor, poll)

	st := h.c.Status()
	assert.Equal(t, 190.0, st.Request.Tempo)
	assert.Equal(t, 180, st.Entry.Tempo)

	time.Sleep(200 * time.Millisecond)
	assert.Equal(t, int32(2), h.loader.calls.Load(), "one decode for the initial play and one for the settled change")
}

func TestSupersededDecodeIsDiscarded(t *testing.T) {
	defer testutil.VerifyNoLeaks(t)
	h := newHarness(t, func(cfg *Config) {
		cfg.Debounce = 10 * time.Millisecond
	})
	h.loader.blockFirst = true
	defer h.c.Close()

	require.NoError(t, h.c.Play())
	h.waitState(t, Decoding)

	req := defaultRequest()
	req.Tempo = 185
	require.NoError(t, h.c.Update(req))

	st := h.waitState(t, Playing)
	assert.Equal(t, 180, st.Entry.Tempo)
	assert.Equal(t, int32(2), h.loader.calls.Load())
	assert.Nil(t, st.LastError)
	assert.Empty(t, h.errs(), "superseded loads are not errors")
}

func TestStopDuringDecode(t *testing.T) {
	defer testutil.VerifyNoLeaks(t)
	h := newHarness(t, nil)
	h.loader.blockFirst = true
	defer h.c.Close()

	require.NoError(t, h.c.Play())
	h.waitState(t, Decoding)

	require.NoError(t, h.c.Stop())
	time.Sleep(30 * time.Millisecond)

	st := h.c.Status()
	assert.Equal(t, Idle, st.State)
	assert.Empty(t, st.SessionID)
	assert.Empty(t, h.errs())
}

func TestDecodeFailureReturnsToIdle(t *testing.T) {
	defer testutil.VerifyNoLeaks(t)
	h := newHarness(t, nil)
	h.loader.err = &decode.DecodeError{Codec: "mp3", Path: "teentaal_140_G.mp3", Err: errors.New("bad frame")}
	h.loader.buf = nil
	defer h.c.Close()

	require.NoError(t, h.c.Play())
	require.Eventually(t, func() bool {
		return h.c.Status().LastError != nil
	}, waitFor, poll)

	st := h.c.Status()
	assert.Equal(t, Idle, st.State)
	assert.False(t, st.Playing)

	var de *DecodeError
	assert.True(t, errors.As(st.LastError, &de))
	var se *StartError
	require.True(t, errors.As(st.LastError, &se))
	assert.Equal(t, "decode", se.Op)
	assert.True(t, Recoverable(st.LastError))

	require.Len(t, h.errs(), 1)
	assert.Equal(t, 0, h.c.Beat().Beat)
}

func TestFetchFailureIsRecoverable(t *testing.T) {
	defer testutil.VerifyNoLeaks(t)
	h := newHarness(t, nil)
	h.loader.err = &FetchError{Path: "teentaal_140_G.mp3", Status: 503, Err: errors.New("503 Service Unavailable")}
	h.loader.buf = nil
	defer h.c.Close()

	require.NoError(t, h.c.Play())
	require.Eventually(t, func() bool {
		return h.c.Status().LastError != nil
	}, waitFor, poll)

	assert.Equal(t, Idle, h.c.Status().State)
	assert.True(t, Recoverable(h.c.Status().LastError))

	// A later play clears the error
	h.loader.err = nil
	h.loader.buf = audio.Tone(440, 1.0, 8000, 1)
	require.NoError(t, h.c.Play())
	st := h.waitState(t, Playing)
	assert.Nil(t, st.LastError)
}

func TestUnopenedSinkIsUnavailable(t *testing.T) {
	defer testutil.VerifyNoLeaks(t)
	h := newHarness(t, func(cfg *Config) {
		cfg.Sink = output.NewNull()
	})
	defer h.c.Close()

	require.NoError(t, h.c.Play())
	require.Eventually(t, func() bool {
		return h.c.Status().LastError != nil
	}, waitFor, poll)

	err := h.c.Status().LastError
	var su *SinkUnavailableError
	assert.True(t, errors.As(err, &su))
	assert.True(t, errors.Is(err, output.ErrNotOpen))
	assert.False(t, Recoverable(err))
	assert.Equal(t, Idle, h.c.Status().State)
}

func TestUnknownPatternFails(t *testing.T) {
	defer testutil.VerifyNoLeaks(t)
	h := newHarness(t, func(cfg *Config) {
		cfg.Request.Pattern = "Dadra"
	})
	defer h.c.Close()

	require.NoError(t, h.c.Play())

	st := h.c.Status()
	assert.Equal(t, Idle, st.State)
	assert.True(t, errors.Is(st.LastError, ErrCatalogLookupEmpty))
	assert.False(t, Recoverable(st.LastError))
	assert.Equal(t, int32(0), h.loader.calls.Load())
}

func TestLoopRestartsWithoutDecodeAndResetsPhase(t *testing.T) {
	defer testutil.VerifyNoLeaks(t)
	h := newHarness(t, func(cfg *Config) {
		cfg.StartDelay = 300 * time.Millisecond
	})
	defer h.c.Close()

	require.NoError(t, h.c.Play())
	first := h.waitState(t, Playing)

	h.sink.Advance(1200 * time.Millisecond)
	require.Eventually(t, func() bool {
		return h.c.Beat().Beat == 3
	}, waitFor, poll)

	// Render past the end of the 2 second recording
	h.sink.Advance(1500 * time.Millisecond)
	require.Eventually(t, func() bool {
		st := h.c.Status()
		return st.Loops == 1 && st.State == Starting
	}, waitFor, poll)

	// While the loop waits out the start delay the beat stays frozen even
	// though the device clock keeps moving
	held := h.c.Beat().Beat
	assert.NotZero(t, held)
	h.sink.Advance(700 * time.Millisecond)
	time.Sleep(40 * time.Millisecond)
	assert.Equal(t, held, h.c.Beat().Beat)
	assert.Equal(t, Starting, h.c.Status().State)

	require.Eventually(t, func() bool {
		return h.c.Status().State == Playing
	}, waitFor, poll)

	st := h.c.Status()
	assert.NotEqual(t, first.SessionID, st.SessionID)
	assert.Equal(t, first.Entry, st.Entry)
	assert.Equal(t, first.Transform, st.Transform)
	assert.Equal(t, int32(1), h.loader.calls.Load(), "loops reuse the decoded buffer")

	// The cycle restarts at beat 1 rather than continuing from beat 3
	assert.Equal(t, 1, h.c.Beat().Beat)
}

func TestFineTuneRestartsByDefault(t *testing.T) {
	defer testutil.VerifyNoLeaks(t)
	h := newHarness(t, nil)
	defer h.c.Close()

	require.NoError(t, h.c.Play())
	first := h.waitState(t, Playing)

	req := defaultRequest()
	req.FineTune = 30
	require.NoError(t, h.c.Update(req))

	require.Eventually(t, func() bool {
		st := h.c.Status()
		return st.State == Playing && st.SessionID != first.SessionID
	}, waitFor, poll)
	assert.Equal(t, int32(2), h.loader.calls.Load())
	assert.InDelta(t, 0.3, h.c.Status().Transform.Semitones, 1e-9)
}

func TestLiveFineTuneKeepsSession(t *testing.T) {
	defer testutil.VerifyNoLeaks(t)
	h := newHarness(t, func(cfg *Config) {
		cfg.LiveFineTune = true
	})
	defer h.c.Close()

	require.NoError(t, h.c.Play())
	first := h.waitState(t, Playing)

	req := defaultRequest()
	req.FineTune = -50
	require.NoError(t, h.c.Update(req))

	st := h.c.Status()
	assert.Equal(t, first.SessionID, st.SessionID)
	assert.Equal(t, -0.5, st.Transform.Semitones)

	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, int32(1), h.loader.calls.Load())
	assert.Equal(t, first.SessionID, h.c.Status().SessionID)
}

func TestUpdateWhileIdleOnlyStores(t *testing.T) {
	defer testutil.VerifyNoLeaks(t)
	h := newHarness(t, nil)
	defer h.c.Close()

	req := Request{Pattern: "Roopak", Tempo: 500, Key: key("D"), FineTune: -250}
	require.NoError(t, h.c.Update(req))

	st := h.c.Status()
	assert.Equal(t, Idle, st.State)
	assert.Equal(t, "Roopak", st.Request.Pattern)
	assert.Equal(t, float64(MaxTempo), st.Request.Tempo)
	assert.Equal(t, float64(-MaxFineTune), st.Request.FineTune)
	assert.Equal(t, 7, h.c.Beat().BeatsPerCycle)

	time.Sleep(80 * time.Millisecond)
	assert.Equal(t, int32(0), h.loader.calls.Load())
}

func TestPatternWithoutBeatDisplay(t *testing.T) {
	defer testutil.VerifyNoLeaks(t)
	cat, err := catalog.Parse([]byte(`
patterns:
  - name: Alaap
    recordings:
      - {tempo: 60, key: "G", path: alaap_60_G.mp3}
`))
	require.NoError(t, err)

	h := newHarness(t, func(cfg *Config) {
		cfg.Catalog = cat
		cfg.Request = Request{Pattern: "Alaap", Tempo: 60, Key: key("G")}
	})
	defer h.c.Close()

	require.NoError(t, h.c.Play())
	h.waitState(t, Playing)

	h.sink.Advance(time.Second)
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, BeatState{}, h.c.Beat())
}

func TestClosedControllerRejectsCommands(t *testing.T) {
	defer testutil.VerifyNoLeaks(t)
	h := newHarness(t, nil)

	require.NoError(t, h.c.Play())
	h.waitState(t, Playing)

	require.NoError(t, h.c.Close())
	require.NoError(t, h.c.Close())

	assert.ErrorIs(t, h.c.Play(), ErrClosed)
	assert.ErrorIs(t, h.c.Stop(), ErrClosed)
}
