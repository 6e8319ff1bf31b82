// ABOUTME: TUI initialization and control
// ABOUTME: Wraps the bubbletea program and the channels back to the app
package ui

import (
	"log"
	"sync/atomic"

	"github.com/Resonate-Protocol/etabla-go/internal/player"
	tea "github.com/charmbracelet/bubbletea"
)

// CommandKind identifies a user action
type CommandKind int

const (
	CmdToggle CommandKind = iota
	CmdStop
	CmdUpdate
	CmdVolume
)

// Command is a user action for the app to carry out
type Command struct {
	Kind    CommandKind
	Request player.Request
	Volume  int
	Muted   bool
}

// QuitMsg signals the user asked to quit
type QuitMsg struct{}

// Controls holds channels from the TUI back to the app
type Controls struct {
	Commands chan Command
	Quit     chan QuitMsg

	dropped atomic.Int64
}

// NewControls creates a new control handler
func NewControls() *Controls {
	return &Controls{
		Commands: make(chan Command, 32),
		Quit:     make(chan QuitMsg, 1),
	}
}

// send never blocks the UI. A full queue drops the command; the first drop
// is logged and every drop is counted.
func (c *Controls) send(cmd Command) {
	if c == nil {
		return
	}
	select {
	case c.Commands <- cmd:
	default:
		if c.dropped.Add(1) == 1 {
			log.Printf("Command queue full, dropping TUI commands")
		}
	}
}

// Dropped returns how many commands send discarded
func (c *Controls) Dropped() int64 {
	return c.dropped.Load()
}

func (c *Controls) quit() {
	if c == nil {
		return
	}
	select {
	case c.Quit <- QuitMsg{}:
	default:
	}
}

// Run creates the TUI program
func Run(m Model) *tea.Program {
	return tea.NewProgram(m, tea.WithAltScreen())
}
