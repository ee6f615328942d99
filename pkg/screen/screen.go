// Package screen renders an update session and maps user input onto it.
package screen

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/lipgloss"

	"github.com/drc-tools/drcflash/pkg/update"
)

// Input holds the button edges seen since the previous tick
type Input struct {
	Confirm bool
	Back    bool
	Exit    bool
}

// Screen drives one update session, one tick per frame
type Screen struct {
	session *update.Session
	keys    KeyMap
	bar     progress.Model
	width   int
}

// New creates the screen for session
func New(session *update.Session, keys KeyMap) *Screen {
	return &Screen{
		session: session,
		keys:    keys,
		bar: progress.New(
			progress.WithSolidFill(string(ColorAccent)),
			progress.WithoutPercentage(),
		),
		width: 60,
	}
}

// Session returns the session driven by the screen
func (s *Screen) Session() *update.Session {
	return s.session
}

// SetWidth sets the render width
func (s *Screen) SetWidth(w int) {
	if w > 8 {
		s.width = w
	}
}

// Update advances the screen by one tick. It returns false when the screen
// should be torn down.
func (s *Screen) Update(ctx context.Context, in Input) bool {
	switch s.session.Phase() {
	case update.PhaseConfirm:
		if in.Back || in.Exit {
			return !s.session.Close()
		}
		if in.Confirm {
			s.session.Confirm(ctx)
		}
		return true
	case update.PhaseDone, update.PhaseError:
		if in.Back || in.Exit {
			return !s.session.Close()
		}
		return true
	case update.PhasePrepare, update.PhaseUpdate, update.PhaseFlashing, update.PhaseActivate:
		s.session.Step(ctx)
	}
	return true
}

// Draw renders the screen
func (s *Screen) Draw() string {
	kind := s.session.Kind()

	var body string
	style := BodyStyle
	switch s.session.Phase() {
	case update.PhasePrepare:
		body = "Preparing..."
	case update.PhaseConfirm:
		body = kind.ConfirmText
		style = ErrorBodyStyle
	case update.PhaseUpdate:
		body = "Starting update..."
		if kind.Erase {
			body = "Resetting data"
		}
	case update.PhaseFlashing:
		pct := s.session.Progress()
		s.bar.Width = s.width - 8
		body = fmt.Sprintf("Flashing... %d%%", pct) + "\n\n" + s.bar.ViewAs(clampPercent(pct))
	case update.PhaseActivate:
		body = "Activating firmware..."
	case update.PhaseDone:
		body = kind.DoneText
	case update.PhaseError:
		body = "Error:\n" + s.session.ErrorMessage()
		style = ErrorBodyStyle
	}

	return lipgloss.JoinVertical(lipgloss.Left,
		TopBarStyle.Width(s.width).Render(kind.Title),
		style.Width(s.width).Render(body),
		BottomBarStyle.Width(s.width).Render(s.bottomBar()),
	)
}

func (s *Screen) bottomBar() string {
	switch s.session.Phase() {
	case update.PhaseConfirm:
		return strings.Join([]string{
			hint(s.keys.Exit),
			hint(s.keys.Confirm) + " / " + hint(s.keys.Back),
		}, "    ")
	case update.PhasePrepare, update.PhaseUpdate, update.PhaseFlashing, update.PhaseActivate:
		return "Please wait..."
	case update.PhaseDone, update.PhaseError:
		return hint(s.keys.Back)
	}
	return ""
}

// progress is reported by the device and may fall outside 0-100
func clampPercent(p int) float64 {
	switch {
	case p < 0:
		return 0
	case p > 100:
		return 1
	default:
		return float64(p) / 100
	}
}
