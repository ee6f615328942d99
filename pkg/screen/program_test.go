package screen

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/drc-tools/drcflash/pkg/drc"
	"github.com/drc-tools/drcflash/pkg/update"
)

// notifyingStager reports each Stage call, which ends the Prepare tick
type notifyingStager struct {
	path   string
	staged chan struct{}
}

func (s notifyingStager) Stage(context.Context, string, update.Kind) (string, error) {
	s.staged <- struct{}{}
	return s.path, nil
}

// notifyingHost reports when the update disables the home menu, which
// happens in the same tick that starts the transfer
type notifyingHost struct {
	*drc.Simulator
	disabled chan struct{}
}

func (h notifyingHost) SetHomeButtonMenuEnabled(enabled bool) {
	h.Simulator.SetHomeButtonMenuEnabled(enabled)
	if !enabled {
		h.disabled <- struct{}{}
	}
}

func headlessOptions() []tea.ProgramOption {
	return []tea.ProgramOption{tea.WithInput(nil), tea.WithOutput(io.Discard), tea.WithoutRenderer()}
}

func waitFor(t *testing.T, ch <-chan struct{}, what string) {
	t.Helper()
	select {
	case <-ch:
	case <-time.After(5 * time.Second):
		t.Fatalf("timed out waiting for %s", what)
	}
}

func TestProgramQuitMidFlashFinishesUpdate(t *testing.T) {
	path := filepath.Join(t.TempDir(), "lang.bin")
	require.NoError(t, os.WriteFile(path, []byte("lang"), 0o644))

	sim := drc.NewSimulator(drc.WithStep(20*time.Millisecond), drc.WithEepromDelay(0))
	host := notifyingHost{Simulator: sim, disabled: make(chan struct{}, 1)}
	stager := notifyingStager{path: path, staged: make(chan struct{}, 1)}
	session := update.NewSession(update.Language, sim, host, stager, update.WithConfig(testConfig()))

	p := NewProgram(context.Background(), New(session, DefaultKeyMap()), headlessOptions()...)
	result := make(chan error, 1)
	go func() { result <- p.Run() }()

	waitFor(t, stager.staged, "staging")
	p.Send(tea.KeyMsg{Type: tea.KeyEnter})

	waitFor(t, host.disabled, "update start")
	// bubbletea delivers SIGTERM as a QuitMsg
	p.Send(tea.QuitMsg{})

	select {
	case err := <-result:
		require.NoError(t, err)
	case <-time.After(10 * time.Second):
		t.Fatal("program did not return")
	}

	assert.Equal(t, update.PhaseDone, session.Phase(), session.ErrorMessage())
	assert.Equal(t, drc.StateActive, mustState(t, sim))
	assert.True(t, sim.HomeMenuEnabled())
	assert.True(t, session.Close(), "session already closed")
}

func TestProgramQuitAtConfirmCancels(t *testing.T) {
	path := filepath.Join(t.TempDir(), "lang.bin")
	require.NoError(t, os.WriteFile(path, []byte("lang"), 0o644))

	sim := newSim()
	stager := notifyingStager{path: path, staged: make(chan struct{}, 1)}
	session := update.NewSession(update.Language, sim, sim, stager, update.WithConfig(testConfig()))

	p := NewProgram(context.Background(), New(session, DefaultKeyMap()), headlessOptions()...)
	result := make(chan error, 1)
	go func() { result <- p.Run() }()

	waitFor(t, stager.staged, "staging")
	p.Send(signalMsg{})

	select {
	case err := <-result:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("program did not return")
	}

	assert.Equal(t, update.PhaseConfirm, session.Phase())
	assert.Equal(t, drc.StateActive, mustState(t, sim))
	assert.True(t, sim.HomeMenuEnabled())
}

func TestModelSignalIgnoredWhileBusy(t *testing.T) {
	sim := drc.NewSimulator(drc.WithStep(time.Hour), drc.WithEepromDelay(0))
	s := newLangScreen(t, sim, nil)
	var model tea.Model = NewModel(context.Background(), s, time.Millisecond)

	model, _ = model.Update(tickMsg(time.Now()))
	require.Equal(t, update.PhaseConfirm, s.Session().Phase())
	model, _ = model.Update(tea.KeyMsg{Type: tea.KeyEnter})
	model, _ = model.Update(tickMsg(time.Now()))
	model, _ = model.Update(tickMsg(time.Now()))
	require.Equal(t, update.PhaseFlashing, s.Session().Phase())

	model, _ = model.Update(signalMsg{})
	model, cmd := model.Update(tickMsg(time.Now()))
	require.NotNil(t, cmd)
	assert.IsType(t, tickMsg{}, cmd(), "still ticking")
	assert.Equal(t, update.PhaseFlashing, s.Session().Phase())
}
