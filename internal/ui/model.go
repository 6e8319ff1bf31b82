// ABOUTME: Bubbletea model for the player TUI
// ABOUTME: Pattern, tempo, key, and fine-tune controls with a beat display
package ui

import (
	"fmt"
	"math"
	"slices"
	"strings"

	"github.com/Resonate-Protocol/etabla-go/internal/player"
	"github.com/Resonate-Protocol/etabla-go/internal/version"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

const fineTuneStep = 5

var (
	titleStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#f5a623"))
	labelStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#888"))
	valueStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#fff"))
	dimStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#555"))
	beatStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#555"))
	activeStyle = lipgloss.NewStyle().Reverse(true).Bold(true)
	accentStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#f5a623")).Bold(true)
	errorStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#e55"))
	boxStyle    = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
)

// Model represents the TUI state
type Model struct {
	patterns []string
	controls *Controls

	// Request being edited, mirrored from status
	req player.Request

	// Playback
	status player.Status
	beat   player.BeatState

	// Output
	volume int
	muted  bool

	// Dimensions
	width  int
	height int
}

// StatusMsg carries a controller status snapshot
type StatusMsg struct {
	Status player.Status
}

// BeatMsg carries a beat change
type BeatMsg struct {
	Beat player.BeatState
}

// NewModel creates a new TUI model. controls may be nil.
func NewModel(patterns []string, req player.Request, volume int, controls *Controls) Model {
	return Model{
		patterns: patterns,
		controls: controls,
		req:      req.Normalize(),
		status:   player.Status{State: player.Idle, Request: req.Normalize()},
		volume:   volume,
	}
}

// Init initializes the model
func (m Model) Init() tea.Cmd {
	return nil
}

// Update handles messages
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
	case StatusMsg:
		m.status = msg.Status
		m.req = msg.Status.Request
	case BeatMsg:
		m.beat = msg.Beat
	}

	return m, nil
}

// handleKey handles keyboard input
func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	req := m.req

	switch msg.String() {
	case "q", "ctrl+c":
		m.controls.quit()
		return m, tea.Quit
	case " ", "p":
		m.controls.send(Command{Kind: CmdToggle})
		return m, nil
	case "s":
		m.controls.send(Command{Kind: CmdStop})
		return m, nil

	case "right":
		req.Tempo++
	case "left":
		req.Tempo--
	case "shift+right", "]":
		req.Tempo += 5
	case "shift+left", "[":
		req.Tempo -= 5

	case "down":
		req.Pattern = m.cyclePattern(1)
	case "up":
		req.Pattern = m.cyclePattern(-1)

	case "k":
		req.Key = req.Key.Next(1)
	case "K":
		req.Key = req.Key.Next(-1)

	case "f":
		req.FineTune += fineTuneStep
	case "F":
		req.FineTune -= fineTuneStep
	case "0":
		req.FineTune = 0

	case "+", "=":
		m.volume = min(100, m.volume+5)
		m.controls.send(Command{Kind: CmdVolume, Volume: m.volume, Muted: m.muted})
		return m, nil
	case "-":
		m.volume = max(0, m.volume-5)
		m.controls.send(Command{Kind: CmdVolume, Volume: m.volume, Muted: m.muted})
		return m, nil
	case "m":
		m.muted = !m.muted
		m.controls.send(Command{Kind: CmdVolume, Volume: m.volume, Muted: m.muted})
		return m, nil

	default:
		return m, nil
	}

	req = req.Normalize()
	if req != m.req {
		m.req = req
		m.controls.send(Command{Kind: CmdUpdate, Request: req})
	}
	return m, nil
}

func (m Model) cyclePattern(delta int) string {
	if len(m.patterns) == 0 {
		return m.req.Pattern
	}
	i := slices.Index(m.patterns, m.req.Pattern)
	if i < 0 {
		return m.patterns[0]
	}
	n := len(m.patterns)
	return m.patterns[((i+delta)%n+n)%n]
}

// View renders the TUI
func (m Model) View() string {
	if m.width == 0 {
		return "Loading..."
	}

	sections := []string{
		titleStyle.Render(version.Product) + dimStyle.Render("  "+version.Version),
		m.renderRequest(),
		m.renderPlayback(),
		m.renderBeats(),
		m.renderHelp(),
	}
	return boxStyle.Render(strings.Join(sections, "\n\n"))
}

func (m Model) renderRequest() string {
	fine := ""
	if m.req.FineTune != 0 {
		fine = fmt.Sprintf(" %+.0f¢", m.req.FineTune)
	}
	return fmt.Sprintf("%s %s\n%s %s\n%s %s%s",
		labelStyle.Render("Taal: "), valueStyle.Render(m.req.Pattern),
		labelStyle.Render("Tempo:"), valueStyle.Render(fmt.Sprintf("%.0f BPM", m.req.Tempo)),
		labelStyle.Render("Key:  "), valueStyle.Render(m.req.Key.String()), fine)
}

func (m Model) renderPlayback() string {
	st := m.status
	state := st.State.String()
	if st.State == player.Playing && st.Loops > 0 {
		state = fmt.Sprintf("%s (loop %d)", state, st.Loops)
	}

	lines := []string{labelStyle.Render("State:") + " " + valueStyle.Render(state)}
	if st.Entry.Path != "" {
		src := fmt.Sprintf("%d BPM in %s, x%.3f, %+.2f st", st.Entry.Tempo, st.Entry.Key,
			st.Transform.TempoRatio, st.Transform.Semitones)
		lines = append(lines, labelStyle.Render("Source:")+" "+dimStyle.Render(src))
	}
	if st.Title != "" {
		lines = append(lines, labelStyle.Render("Title:")+" "+dimStyle.Render(truncate(st.Title, 40)))
	}

	muteIcon := ""
	if m.muted {
		muteIcon = " muted"
	}
	lines = append(lines, fmt.Sprintf("%s [%s] %d%%%s",
		labelStyle.Render("Volume:"), renderBar(m.volume, 100, 10), m.volume, muteIcon))

	if st.LastError != nil {
		lines = append(lines, errorStyle.Render(truncate(st.LastError.Error(), 60)))
	}
	return strings.Join(lines, "\n")
}

// renderBeats shows "N / cycle" and a row of cells while playing
func (m Model) renderBeats() string {
	b := m.beat
	if !m.status.Playing || b.BeatsPerCycle <= 0 || b.Beat <= 0 {
		return dimStyle.Render("-")
	}

	cells := make([]string, b.BeatsPerCycle)
	for i := range cells {
		n := i + 1
		label := fmt.Sprintf("%2d", n)
		switch {
		case n == b.Beat:
			cells[i] = activeStyle.Render(label)
		case n == 1:
			cells[i] = accentStyle.Render(label)
		default:
			cells[i] = beatStyle.Render(label)
		}
	}

	counter := valueStyle.Render(fmt.Sprintf("%d / %d", b.Beat, b.BeatsPerCycle))
	return counter + "\n" + strings.Join(cells, " ")
}

// renderHelp renders keyboard shortcuts
func (m Model) renderHelp() string {
	return dimStyle.Render("space:Play/Stop  ←/→:Tempo ±1  [/]:±5  ↑/↓:Taal  k/K:Key  f/F:Fine  +/-:Vol  m:Mute  q:Quit")
}

func renderBar(value, max, width int) string {
	filled := int(math.Round(float64(value*width) / float64(max)))
	return strings.Repeat("█", filled) + strings.Repeat("░", width-filled)
}

func truncate(s string, length int) string {
	if len(s) <= length {
		return s
	}
	return s[:length-3] + "..."
}
