package screen

import (
	"context"
	"log/slog"
	"time"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
)

// DefaultFrame is the tick interval of the update loop
const DefaultFrame = 16 * time.Millisecond

type tickMsg time.Time

func tickCmd(frame time.Duration) tea.Cmd {
	return tea.Tick(frame, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

// Model adapts a Screen to the bubbletea event loop. Key presses are
// collected as edges and handed to the screen on the next tick.
type Model struct {
	ctx     context.Context
	screen  *Screen
	keys    KeyMap
	frame   time.Duration
	pending Input
}

// NewModel creates the bubbletea model for screen
func NewModel(ctx context.Context, screen *Screen, frame time.Duration) Model {
	if frame <= 0 {
		frame = DefaultFrame
	}
	return Model{
		ctx:    ctx,
		screen: screen,
		keys:   screen.keys,
		frame:  frame,
	}
}

func (m Model) Init() tea.Cmd {
	return tickCmd(m.frame)
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch {
		case key.Matches(msg, m.keys.Confirm):
			m.pending.Confirm = true
		case key.Matches(msg, m.keys.Back):
			m.pending.Back = true
		case key.Matches(msg, m.keys.Exit):
			m.pending.Exit = true
		case key.Matches(msg, m.keys.Interrupt):
			m.interrupt("key")
		}
		return m, nil

	case signalMsg:
		m.interrupt("signal")
		return m, nil

	case tea.WindowSizeMsg:
		m.screen.SetWidth(msg.Width)
		return m, nil

	case tickMsg:
		in := m.pending
		m.pending = Input{}
		if !m.screen.Update(m.ctx, in) {
			return m, tea.Quit
		}
		return m, tickCmd(m.frame)
	}

	return m, nil
}

// interrupt turns an interrupt into Exit, only while the session accepts input
func (m *Model) interrupt(source string) {
	phase := m.screen.Session().Phase()
	if !phase.Interruptible() {
		slog.Warn("interrupt_ignored", "source", source, "phase", phase)
		return
	}
	m.pending.Exit = true
}

func (m Model) View() string {
	return m.screen.Draw()
}
