// ABOUTME: Playback lifecycle controller for looped pattern recordings
// ABOUTME: One event loop owns decode, session construction, looping, and beat ticks
package player

import (
	"context"
	"log"
	"math"
	"sync"
	"time"

	"github.com/Resonate-Protocol/etabla-go/internal/catalog"
	"github.com/Resonate-Protocol/etabla-go/internal/engine"
	"github.com/Resonate-Protocol/etabla-go/internal/transform"
	"github.com/Resonate-Protocol/etabla-go/pkg/audio"
	"github.com/Resonate-Protocol/etabla-go/pkg/audio/output"
	"github.com/google/uuid"
)

// Tempo and fine-tune limits applied to every request
const (
	MinTempo    = 40
	MaxTempo    = 300
	MaxFineTune = 100
)

// State is the controller lifecycle state
type State int

const (
	Idle State = iota
	Decoding
	Starting
	Playing
	Stopping
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Decoding:
		return "decoding"
	case Starting:
		return "starting"
	case Playing:
		return "playing"
	case Stopping:
		return "stopping"
	default:
		return "unknown"
	}
}

// Request fully determines which recording plays and how it is transformed
type Request struct {
	Pattern  string
	Tempo    float64
	Key      catalog.Key
	FineTune float64 // cents
}

// Normalize clamps tempo and fine-tune to their supported ranges
func (r Request) Normalize() Request {
	r.Tempo = math.Max(MinTempo, math.Min(MaxTempo, r.Tempo))
	r.FineTune = math.Max(-MaxFineTune, math.Min(MaxFineTune, r.FineTune))
	return r
}

// Status is a snapshot of the controller for display
type Status struct {
	State     State
	Playing   bool // play intent, true from Play until Stop or failure
	Request   Request
	Entry     catalog.Entry
	Transform transform.Result
	SessionID string
	Title     string
	Loops     int
	LastError error
}

// LoadFunc fetches and decodes the asset at a catalog path
type LoadFunc func(ctx context.Context, path string) (*audio.DecodedBuffer, error)

// Config holds controller configuration
type Config struct {
	Catalog *catalog.Catalog
	Sink    output.Sink
	Load    LoadFunc

	// Request is the initial request
	Request Request

	// Latency is subtracted from elapsed time before counting beats (default: 150ms)
	Latency time.Duration

	// StartDelay passes between connecting the sink and recording the start (default: 150ms)
	StartDelay time.Duration

	// Debounce coalesces parameter changes while playing (default: 200ms)
	Debounce time.Duration

	// TickInterval is the beat clock refresh period (default: 16ms)
	TickInterval time.Duration

	// LiveFineTune hands fine-tune changes to the running stream instead of restarting
	LiveFineTune bool

	// Callbacks run on the controller goroutine and must not call back
	// into the controller synchronously.
	OnStatus func(Status)
	OnBeat   func(BeatState)
	OnError  func(error)
}

type cmdKind int

const (
	cmdPlay cmdKind = iota
	cmdStop
	cmdToggle
	cmdUpdate
)

type command struct {
	kind cmdKind
	req  Request
	done chan struct{}
}

type decodeResult struct {
	gen   uint64
	req   Request
	entry catalog.Entry
	xf    transform.Result
	buf   *audio.DecodedBuffer
	err   error
}

// session is the live playback: one buffer, one pipeline, one sink connection
type session struct {
	id       string
	req      Request
	entry    catalog.Entry
	xf       transform.Result
	buf      *audio.DecodedBuffer
	pipeline *engine.Pipeline
}

// Controller drives playback. All lifecycle state is owned by one goroutine;
// public methods hand it commands.
type Controller struct {
	cfg    Config
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	once   sync.Once

	cmds    chan command
	decoded chan decodeResult
	ended   chan string

	mu     sync.RWMutex
	status Status
	beat   BeatState

	// Owned by the loop goroutine
	state        State
	intent       bool
	req          Request
	gen          uint64
	decodeCancel context.CancelFunc
	sess         *session
	selected     catalog.Entry
	selectedXf   transform.Result
	clock        *BeatClock
	debounce     *time.Timer
	startTimer   *time.Timer
	ticker       *time.Ticker
	loops        int
	lastErr      error
}

// NewController creates a controller and starts its event loop
func NewController(cfg Config) *Controller {
	if cfg.Latency == 0 {
		cfg.Latency = 150 * time.Millisecond
	}
	if cfg.StartDelay == 0 {
		cfg.StartDelay = 150 * time.Millisecond
	}
	if cfg.Debounce == 0 {
		cfg.Debounce = 200 * time.Millisecond
	}
	if cfg.TickInterval == 0 {
		cfg.TickInterval = 16 * time.Millisecond
	}

	ctx, cancel := context.WithCancel(context.Background())
	c := &Controller{
		cfg:     cfg,
		ctx:     ctx,
		cancel:  cancel,
		cmds:    make(chan command),
		decoded: make(chan decodeResult),
		ended:   make(chan string),
		req:     cfg.Request.Normalize(),
		clock:   NewBeatClock(cfg.Latency),
	}
	c.status = Status{State: Idle, Request: c.req}
	c.beat = BeatState{BeatsPerCycle: cfg.Catalog.BeatsPerCycle(c.req.Pattern)}

	c.wg.Add(1)
	go c.run()

	return c
}

// Play starts playback of the current request
func (c *Controller) Play() error {
	return c.send(command{kind: cmdPlay})
}

// Stop stops playback; safe from any state and idempotent
func (c *Controller) Stop() error {
	return c.send(command{kind: cmdStop})
}

// Toggle stops when playing and plays when stopped
func (c *Controller) Toggle() error {
	return c.send(command{kind: cmdToggle})
}

// Update replaces the request. While playing, changes restart playback
// after the debounce window.
func (c *Controller) Update(req Request) error {
	return c.send(command{kind: cmdUpdate, req: req})
}

// Status returns the latest status snapshot
func (c *Controller) Status() Status {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.status
}

// Beat returns the latest beat state
func (c *Controller) Beat() BeatState {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.beat
}

// Close stops playback and waits for the loop and any decode to finish
func (c *Controller) Close() error {
	c.once.Do(func() {
		c.cancel()
		c.wg.Wait()
	})
	return nil
}

// send hands a command to the loop and waits until it has been applied
func (c *Controller) send(cmd command) error {
	cmd.done = make(chan struct{})
	select {
	case c.cmds <- cmd:
	case <-c.ctx.Done():
		return ErrClosed
	}
	select {
	case <-cmd.done:
		return nil
	case <-c.ctx.Done():
		return ErrClosed
	}
}

func timerC(t *time.Timer) <-chan time.Time {
	if t == nil {
		return nil
	}
	return t.C
}

func tickerC(t *time.Ticker) <-chan time.Time {
	if t == nil {
		return nil
	}
	return t.C
}

func (c *Controller) run() {
	defer c.wg.Done()

	for {
		select {
		case <-c.ctx.Done():
			c.cancelDecode()
			if c.debounce != nil {
				c.debounce.Stop()
				c.debounce = nil
			}
			c.teardown()
			return

		case cmd := <-c.cmds:
			switch cmd.kind {
			case cmdPlay:
				c.play()
			case cmdStop:
				c.stop()
			case cmdToggle:
				if c.intent {
					c.stop()
				} else {
					c.play()
				}
			case cmdUpdate:
				c.update(cmd.req)
			}
			close(cmd.done)

		case res := <-c.decoded:
			c.onDecoded(res)

		case id := <-c.ended:
			c.onEnded(id)

		case <-timerC(c.debounce):
			c.debounce = nil
			c.restart()

		case <-timerC(c.startTimer):
			c.startTimer = nil
			c.onStartDelay()

		case <-tickerC(c.ticker):
			c.tick()
		}
	}
}

func (c *Controller) play() {
	if c.intent {
		return
	}
	c.intent = true
	c.lastErr = nil
	c.loops = 0
	c.beginDecode()
}

func (c *Controller) stop() {
	if c.debounce != nil {
		c.debounce.Stop()
		c.debounce = nil
	}

	if !c.intent && c.state == Idle && c.sess == nil {
		c.clock.Reset()
		c.publishBeat()
		return
	}

	c.intent = false
	c.gen++ // a decode still in flight is now stale
	c.cancelDecode()
	c.state = Stopping
	c.teardown()
	c.setState(Idle)
	log.Printf("Playback stopped")
}

func (c *Controller) update(req Request) {
	req = req.Normalize()
	old := c.req
	c.req = req
	if req == old {
		return
	}

	if !c.intent {
		c.publish()
		c.publishBeat()
		return
	}

	onlyFineTune := old.Pattern == req.Pattern && old.Tempo == req.Tempo && old.Key == req.Key
	live := c.state == Starting || c.state == Playing
	if c.cfg.LiveFineTune && onlyFineTune && live && c.sess != nil && c.debounce == nil {
		xf := transform.Compute(c.sess.entry, req.Tempo, req.Key, req.FineTune)
		c.sess.pipeline.SetPitch(xf.PitchRatio)
		c.sess.xf = xf
		c.sess.req = req
		log.Printf("Fine-tune %+.0f cents applied to running stream", req.FineTune)
		c.publish()
		return
	}

	if c.debounce != nil {
		c.debounce.Stop()
	}
	c.debounce = time.NewTimer(c.cfg.Debounce)
	c.publish()
}

// restart rebuilds playback for the current request once changes settle
func (c *Controller) restart() {
	if !c.intent {
		return
	}
	c.teardown()
	c.beginDecode()
}

func (c *Controller) beginDecode() {
	c.gen++
	gen := c.gen
	c.cancelDecode()

	req := c.req
	entry, err := c.cfg.Catalog.Select(req.Pattern, req.Tempo, req.Key)
	if err != nil {
		c.fail("select", req, err)
		return
	}
	xf := transform.Compute(entry, req.Tempo, req.Key, req.FineTune)
	c.selected, c.selectedXf = entry, xf

	ctx, cancel := context.WithCancel(c.ctx)
	c.decodeCancel = cancel

	log.Printf("Loading %s for %s at %.0f BPM in %s (tempo x%.3f, %+.2f semitones)",
		entry.Path, req.Pattern, req.Tempo, req.Key, xf.TempoRatio, xf.Semitones)

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		buf, err := c.cfg.Load(ctx, entry.Path)
		select {
		case c.decoded <- decodeResult{gen: gen, req: req, entry: entry, xf: xf, buf: buf, err: err}:
		case <-c.ctx.Done():
		}
	}()

	c.setState(Decoding)
}

func (c *Controller) cancelDecode() {
	if c.decodeCancel != nil {
		c.decodeCancel()
		c.decodeCancel = nil
	}
}

func (c *Controller) onDecoded(res decodeResult) {
	if res.gen != c.gen || c.state != Decoding {
		log.Printf("Discarding superseded load of %s", res.entry.Path)
		return
	}
	c.cancelDecode()

	if res.err != nil {
		c.fail("decode", res.req, res.err)
		return
	}

	c.sess = &session{
		req:   res.req,
		entry: res.entry,
		xf:    res.xf,
		buf:   res.buf,
	}
	c.startSession()
}

// startSession connects a fresh pipeline over the session buffer
func (c *Controller) startSession() {
	s := c.sess
	rate, channels := c.cfg.Sink.SampleRate(), c.cfg.Sink.Channels()
	if rate == 0 || channels == 0 {
		c.sess = nil
		c.fail("connect", s.req, &SinkUnavailableError{Err: output.ErrNotOpen})
		return
	}

	s.id = uuid.NewString()
	s.pipeline = engine.New(s.buf, rate, channels, s.xf.TempoRatio, s.xf.PitchRatio)

	id := s.id
	if err := c.cfg.Sink.Connect(s.pipeline, func() { c.notifyEnded(id) }); err != nil {
		c.sess = nil
		c.fail("connect", s.req, &SinkUnavailableError{Err: err})
		return
	}

	if c.startTimer != nil {
		c.startTimer.Stop()
	}
	c.startTimer = time.NewTimer(c.cfg.StartDelay)
	c.setState(Starting)
}

// notifyEnded runs on a sink goroutine
func (c *Controller) notifyEnded(id string) {
	select {
	case c.ended <- id:
	case <-c.ctx.Done():
	}
}

func (c *Controller) onEnded(id string) {
	if c.sess == nil || c.sess.id != id {
		return
	}
	if !c.intent {
		c.stop()
		return
	}

	c.loops++
	c.cfg.Sink.Disconnect()
	// The beat holds its last value until the restarted session counts again
	c.stopTicker()

	if c.sess.buf == nil {
		c.teardown()
		c.beginDecode()
		return
	}
	c.startSession()
}

func (c *Controller) onStartDelay() {
	if c.sess == nil || c.state != Starting {
		return
	}

	beats := c.cfg.Catalog.BeatsPerCycle(c.sess.req.Pattern)
	c.clock.Start(c.cfg.Sink.Clock(), c.sess.req.Tempo, beats)
	c.publishBeat()

	if c.clock.Counting() && c.ticker == nil {
		c.ticker = time.NewTicker(c.cfg.TickInterval)
	}

	c.setState(Playing)
}

func (c *Controller) tick() {
	if !c.clock.Counting() {
		c.stopTicker()
		return
	}
	before := c.clock.State().Beat
	if c.clock.Tick(c.cfg.Sink.Clock()) != before {
		c.publishBeat()
	}
}

func (c *Controller) stopTicker() {
	if c.ticker != nil {
		c.ticker.Stop()
		c.ticker = nil
	}
}

// teardown disconnects the sink and discards the session and beat state
func (c *Controller) teardown() {
	if c.startTimer != nil {
		c.startTimer.Stop()
		c.startTimer = nil
	}
	c.stopTicker()
	if c.sess != nil {
		c.cfg.Sink.Disconnect()
		c.sess = nil
	}
	c.clock.Reset()
	c.publishBeat()
}

func (c *Controller) fail(op string, req Request, err error) {
	c.intent = false
	c.teardown()

	startErr := &StartError{Op: op, Request: req, Err: err}
	c.lastErr = startErr
	log.Printf("Playback failed: %v", startErr)

	c.setState(Idle)
	if c.cfg.OnError != nil {
		c.cfg.OnError(startErr)
	}
}

func (c *Controller) setState(s State) {
	c.state = s
	c.publish()
}

func (c *Controller) publish() {
	st := Status{
		State:     c.state,
		Playing:   c.intent,
		Request:   c.req,
		Loops:     c.loops,
		LastError: c.lastErr,
	}
	if c.sess != nil {
		st.Entry = c.sess.entry
		st.Transform = c.sess.xf
		st.SessionID = c.sess.id
		st.Title = c.sess.buf.Title
	} else if c.state == Decoding {
		st.Entry = c.selected
		st.Transform = c.selectedXf
	}

	c.mu.Lock()
	c.status = st
	c.mu.Unlock()

	if c.cfg.OnStatus != nil {
		c.cfg.OnStatus(st)
	}
}

func (c *Controller) publishBeat() {
	b := c.clock.State()
	if c.sess == nil {
		b.BeatsPerCycle = c.cfg.Catalog.BeatsPerCycle(c.req.Pattern)
	}

	c.mu.Lock()
	changed := c.beat != b
	c.beat = b
	c.mu.Unlock()

	if changed && c.cfg.OnBeat != nil {
		c.cfg.OnBeat(b)
	}
}
