// ABOUTME: Main player application orchestration
// ABOUTME: Wires catalog, fetch, decode, sink, controller, remote, MIDI, and UI
package app

import (
	"context"
	"fmt"
	"log"
	"net"
	"sync/atomic"
	"time"

	"github.com/Resonate-Protocol/etabla-go/internal/catalog"
	"github.com/Resonate-Protocol/etabla-go/internal/config"
	"github.com/Resonate-Protocol/etabla-go/internal/discovery"
	"github.com/Resonate-Protocol/etabla-go/internal/fetch"
	"github.com/Resonate-Protocol/etabla-go/internal/midibeat"
	"github.com/Resonate-Protocol/etabla-go/internal/player"
	"github.com/Resonate-Protocol/etabla-go/internal/remote"
	"github.com/Resonate-Protocol/etabla-go/internal/ui"
	"github.com/Resonate-Protocol/etabla-go/pkg/audio"
	"github.com/Resonate-Protocol/etabla-go/pkg/audio/decode"
	"github.com/Resonate-Protocol/etabla-go/pkg/audio/output"
	tea "github.com/charmbracelet/bubbletea"
)

// Player represents the main player application
type Player struct {
	config  config.Config
	catalog *catalog.Catalog
	fetcher *fetch.Fetcher
	sink    output.Sink
	ctrl    *player.Controller

	remote    *remote.Server
	discovery *discovery.Manager
	midi      *midibeat.Out

	tuiProg  *tea.Program
	controls *ui.Controls

	events  chan tea.Msg
	dropped atomic.Int64 // events displaced by newer ones while the queue was full
	ctx     context.Context
	cancel  context.CancelFunc
	done    chan struct{}
}

// New builds the application from configuration. The sink is opened here
// so device problems surface before anything starts.
func New(cfg config.Config) (*Player, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	cat, err := loadCatalog(cfg.CatalogPath)
	if err != nil {
		return nil, err
	}

	key, err := catalog.ParseKey(cfg.Key)
	if err != nil {
		return nil, fmt.Errorf("initial key: %w", err)
	}
	if !cat.Has(cfg.Pattern) {
		return nil, fmt.Errorf("initial pattern %q: %w", cfg.Pattern, catalog.ErrCatalogLookupEmpty)
	}

	fetcher, err := fetch.New(cfg.AssetBase, cfg.CacheDir)
	if err != nil {
		return nil, fmt.Errorf("asset source: %w", err)
	}

	sink := newSink(cfg)
	if err := sink.Open(cfg.SampleRate, cfg.Channels); err != nil {
		return nil, &player.SinkUnavailableError{Err: err}
	}
	sink.SetVolume(cfg.Volume)

	ctx, cancel := context.WithCancel(context.Background())
	p := &Player{
		config:   cfg,
		catalog:  cat,
		fetcher:  fetcher,
		sink:     sink,
		controls: ui.NewControls(),
		events:   make(chan tea.Msg, 64),
		ctx:      ctx,
		cancel:   cancel,
		done:     make(chan struct{}),
	}

	p.ctrl = player.NewController(player.Config{
		Catalog:      cat,
		Sink:         sink,
		Load:         p.Load,
		Request:      player.Request{Pattern: cfg.Pattern, Tempo: cfg.Tempo, Key: key, FineTune: cfg.FineTune},
		Latency:      cfg.Latency,
		StartDelay:   cfg.StartDelay,
		Debounce:     cfg.Debounce,
		TickInterval: cfg.TickInterval,
		LiveFineTune: cfg.LiveFineTune,
		OnStatus:     p.onStatus,
		OnBeat:       p.onBeat,
		OnError: func(err error) {
			if player.Recoverable(err) {
				log.Printf("Playback error (retry possible): %v", err)
			} else {
				log.Printf("Playback error: %v", err)
			}
		},
	})

	return p, nil
}

func loadCatalog(path string) (*catalog.Catalog, error) {
	if path == "" {
		return catalog.Default()
	}
	cat, err := catalog.Load(path)
	if err != nil {
		return nil, fmt.Errorf("catalog %s: %w", path, err)
	}
	log.Printf("Loaded catalog %s with %d patterns", path, len(cat.Patterns()))
	return cat, nil
}

func newSink(cfg config.Config) output.Sink {
	switch cfg.Backend {
	case "malgo":
		return output.NewMalgo(cfg.BitDepth)
	case "null":
		return output.NewNull()
	default:
		return output.NewOto()
	}
}

// Controller returns the playback controller
func (p *Player) Controller() *player.Controller {
	return p.ctrl
}

// Load fetches and decodes one catalog asset
func (p *Player) Load(ctx context.Context, path string) (*audio.DecodedBuffer, error) {
	start := time.Now()

	data, err := p.fetcher.Fetch(ctx, path)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	buf, err := decode.Decode(path, data)
	if err != nil {
		return nil, err
	}

	log.Printf("Decoded %s: %s, %dHz, %d channels in %s",
		path, buf.Duration().Round(time.Millisecond), buf.SampleRate, buf.Channels,
		time.Since(start).Round(time.Millisecond))
	return buf, nil
}

// Start starts every enabled component and blocks until Stop or the
// TUI quits
func (p *Player) Start(useTUI bool) error {
	defer close(p.done)

	if n, ok := p.sink.(*output.Null); ok {
		go n.Run(p.ctx, 10*time.Millisecond)
	}

	if p.config.MIDIOut != "" {
		out, err := midibeat.Open(p.config.MIDIOut)
		if err != nil {
			log.Printf("MIDI beat output disabled: %v (available: %v)", err, midibeat.Ports())
		} else {
			p.midi = out
		}
	}

	if p.config.RemoteAddr != "" {
		p.remote = remote.NewServer(remote.ServerConfig{
			Name:     p.config.Name,
			Patterns: p.catalog.Patterns(),
		}, p.ctrl)
		if err := p.remote.Start(p.config.RemoteAddr); err != nil {
			p.remote = nil
			p.shutdown()
			return fmt.Errorf("remote control: %w", err)
		}

		if p.config.MDNS {
			p.discovery = discovery.NewManager(discovery.Config{
				ServiceName: p.config.Name,
				Port:        tcpPort(p.remote),
			})
			if err := p.discovery.Advertise(); err != nil {
				log.Printf("Failed to start mDNS advertisement: %v", err)
			}
		}
	}

	var tuiDone chan struct{}
	if useTUI {
		model := ui.NewModel(p.catalog.Patterns(), p.ctrl.Status().Request, p.config.Volume, p.controls)
		p.tuiProg = ui.Run(model)
		tuiDone = make(chan struct{})
		go func() {
			defer close(tuiDone)
			if _, err := p.tuiProg.Run(); err != nil {
				log.Printf("TUI error: %v", err)
			}
		}()
	}

	go p.handleControls()
	go p.dispatch()

	log.Printf("Player ready: %s", p.config.Name)

	select {
	case <-p.ctx.Done():
	case <-p.controls.Quit:
		log.Printf("Received quit signal from TUI")
	case <-tuiDone:
		log.Printf("TUI exited")
	}

	p.shutdown()
	return nil
}

// Stop ends Start and waits for shutdown to finish
func (p *Player) Stop() {
	p.cancel()
	<-p.done
}

func (p *Player) shutdown() {
	p.cancel()

	if err := p.ctrl.Close(); err != nil {
		log.Printf("Error closing controller: %v", err)
	}
	if p.tuiProg != nil {
		p.tuiProg.Quit()
	}
	if p.discovery != nil {
		p.discovery.Stop()
	}
	if p.remote != nil {
		p.remote.Stop()
	}
	if p.midi != nil {
		if err := p.midi.Close(); err != nil {
			log.Printf("Error closing MIDI output: %v", err)
		}
	}
	if err := p.sink.Close(); err != nil {
		log.Printf("Error closing audio output: %v", err)
	}
	if n := p.dropped.Load(); n > 0 {
		log.Printf("Dropped %d stale UI events", n)
	}
	if n := p.controls.Dropped(); n > 0 {
		log.Printf("Dropped %d TUI commands", n)
	}

	log.Printf("Player stopped")
}

// onStatus and onBeat run on the controller goroutine and must not block
func (p *Player) onStatus(st player.Status) {
	if p.remote != nil {
		p.remote.PublishStatus(st)
	}
	p.post(ui.StatusMsg{Status: st})
}

func (p *Player) onBeat(b player.BeatState) {
	if p.remote != nil {
		p.remote.PublishBeat(b)
	}
	p.post(ui.BeatMsg{Beat: b})
}

// post queues msg for dispatch. When the queue is full the oldest event
// gives way, so the TUI always ends on the latest status and beat.
func (p *Player) post(msg tea.Msg) {
	for {
		select {
		case p.events <- msg:
			return
		default:
		}

		select {
		case <-p.events:
			if p.dropped.Add(1) == 1 {
				log.Printf("Event queue full, dropping oldest UI events")
			}
		default:
		}
	}
}

// dispatch forwards controller events to the TUI and MIDI output
func (p *Player) dispatch() {
	for {
		select {
		case <-p.ctx.Done():
			return
		case msg := <-p.events:
			if b, ok := msg.(ui.BeatMsg); ok && p.midi != nil {
				if err := p.midi.Beat(b.Beat.Beat, b.Beat.BeatsPerCycle); err != nil {
					log.Printf("MIDI beat failed: %v", err)
				}
			}
			if p.tuiProg != nil {
				p.tuiProg.Send(msg)
			}
		}
	}
}

// handleControls carries out commands from the TUI
func (p *Player) handleControls() {
	for {
		select {
		case <-p.ctx.Done():
			return
		case cmd := <-p.controls.Commands:
			var err error
			switch cmd.Kind {
			case ui.CmdToggle:
				err = p.ctrl.Toggle()
			case ui.CmdStop:
				err = p.ctrl.Stop()
			case ui.CmdUpdate:
				err = p.ctrl.Update(cmd.Request)
			case ui.CmdVolume:
				log.Printf("Volume change: %d%%, muted=%v", cmd.Volume, cmd.Muted)
				p.sink.SetVolume(cmd.Volume)
				p.sink.SetMuted(cmd.Muted)
			}
			if err != nil {
				log.Printf("Command failed: %v", err)
			}
		}
	}
}

func tcpPort(s *remote.Server) int {
	if addr, ok := s.Addr().(*net.TCPAddr); ok {
		return addr.Port
	}
	return 0
}
