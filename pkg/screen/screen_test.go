package screen

import (
	"context"
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

type fileStager struct {
	path string
	err  error
}

func (s fileStager) Stage(context.Context, string, update.Kind) (string, error) {
	return s.path, s.err
}

func testConfig() update.Config {
	return update.Config{
		Destination:        drc.DestinationDRC0,
		PollInterval:       time.Millisecond,
		EepromTimeout:      200 * time.Millisecond,
		AbortTimeout:       50 * time.Millisecond,
		ReactivateTimeout:  200 * time.Millisecond,
		ReactivateInterval: 5 * time.Millisecond,
	}
}

func newLangScreen(t *testing.T, sim *drc.Simulator, stageErr error) *Screen {
	t.Helper()
	path := filepath.Join(t.TempDir(), "lang.bin")
	require.NoError(t, os.WriteFile(path, []byte("lang"), 0o644))

	session := update.NewSession(update.Language, sim, sim, fileStager{path: path, err: stageErr}, update.WithConfig(testConfig()))
	return New(session, DefaultKeyMap())
}

func newSim() *drc.Simulator {
	return drc.NewSimulator(drc.WithStep(time.Millisecond), drc.WithEepromDelay(0))
}

// tickUntil ticks the screen without input until the phase is reached
func tickUntil(t *testing.T, s *Screen, want update.Phase) {
	t.Helper()
	ctx := context.Background()
	deadline := time.Now().Add(5 * time.Second)
	for s.Session().Phase() != want {
		require.True(t, time.Now().Before(deadline), "stuck in %s waiting for %s", s.Session().Phase(), want)
		require.True(t, s.Update(ctx, Input{}))
	}
}

func TestScreenFlashesLanguagePack(t *testing.T) {
	ctx := context.Background()
	sim := newSim()
	s := newLangScreen(t, sim, nil)

	assert.Contains(t, s.Draw(), "Preparing...")
	assert.Contains(t, s.Draw(), "Please wait...")

	tickUntil(t, s, update.PhaseConfirm)
	view := s.Draw()
	assert.Contains(t, view, "About to flash langpack.")
	assert.Contains(t, view, "[enter] Confirm")
	assert.Contains(t, view, "[esc] Back")
	assert.Contains(t, view, "[q] Exit")

	// without input the checkpoint holds
	for i := 0; i < 3; i++ {
		require.True(t, s.Update(ctx, Input{}))
	}
	assert.Equal(t, update.PhaseConfirm, s.Session().Phase())

	require.True(t, s.Update(ctx, Input{Confirm: true}))
	assert.Equal(t, update.PhaseUpdate, s.Session().Phase())

	require.True(t, s.Update(ctx, Input{}))
	assert.Equal(t, update.PhaseFlashing, s.Session().Phase(), s.Session().ErrorMessage())
	assert.Contains(t, s.Draw(), "Flashing...")
	assert.False(t, sim.HomeMenuEnabled())

	tickUntil(t, s, update.PhaseDone)
	assert.Contains(t, s.Draw(), "Flashed new language pack")
	assert.Contains(t, s.Draw(), "[esc] Back")

	assert.True(t, s.Update(ctx, Input{Confirm: true}), "confirm is ignored once done")
	assert.False(t, s.Update(ctx, Input{Back: true}))
	assert.True(t, sim.HomeMenuEnabled())
}

func TestScreenInputIgnoredWhileBusy(t *testing.T) {
	ctx := context.Background()
	sim := drc.NewSimulator(drc.WithStep(time.Hour), drc.WithEepromDelay(0))
	s := newLangScreen(t, sim, nil)

	tickUntil(t, s, update.PhaseConfirm)
	require.True(t, s.Update(ctx, Input{Confirm: true}))
	require.True(t, s.Update(ctx, Input{Back: true, Exit: true}))
	assert.Equal(t, update.PhaseFlashing, s.Session().Phase())

	require.True(t, s.Update(ctx, Input{Back: true, Exit: true}))
	assert.Equal(t, update.PhaseFlashing, s.Session().Phase())
	assert.Contains(t, s.Draw(), "Please wait...")
}

func TestScreenBackAtConfirm(t *testing.T) {
	for _, in := range []Input{{Back: true}, {Exit: true}} {
		sim := newSim()
		s := newLangScreen(t, sim, nil)
		tickUntil(t, s, update.PhaseConfirm)

		assert.False(t, s.Update(context.Background(), in))
		assert.Equal(t, drc.StateActive, mustState(t, sim))
	}
}

func TestScreenShowsError(t *testing.T) {
	sim := drc.NewSimulator(drc.WithStep(time.Millisecond), drc.WithEepromDelay(0), drc.WithFault(drc.FaultStartUpdate, -1))
	s := newLangScreen(t, sim, nil)

	tickUntil(t, s, update.PhaseConfirm)
	require.True(t, s.Update(context.Background(), Input{Confirm: true}))
	tickUntil(t, s, update.PhaseError)

	view := s.Draw()
	assert.Contains(t, view, "Error:")
	assert.Contains(t, view, update.MsgStartFailed)
	assert.Contains(t, view, "[esc] Back")
	assert.Equal(t, drc.StateActive, mustState(t, sim))
}

func TestScreenFormat(t *testing.T) {
	ctx := context.Background()
	sim := newSim()
	session := update.NewSession(update.Format, sim, sim, nil, update.WithConfig(testConfig()))
	s := New(session, DefaultKeyMap())

	tickUntil(t, s, update.PhaseConfirm)
	require.True(t, s.Update(ctx, Input{Confirm: true}))
	assert.Contains(t, s.Draw(), "Resetting data")

	tickUntil(t, s, update.PhaseDone)
	assert.True(t, sim.Erased())
	assert.Contains(t, s.Draw(), "Please hold POWER on the DRC.")
}

func TestClampPercent(t *testing.T) {
	tests := []struct {
		in   int
		want float64
	}{
		{-5, 0},
		{0, 0},
		{45, 0.45},
		{100, 1},
		{130, 1},
	}
	for _, tt := range tests {
		assert.InDelta(t, tt.want, clampPercent(tt.in), 1e-9, "clampPercent(%d)", tt.in)
	}
}

func TestModelTicksScreen(t *testing.T) {
	sim := newSim()
	s := newLangScreen(t, sim, nil)
	m := NewModel(context.Background(), s, time.Millisecond)

	require.NotNil(t, m.Init())

	var model tea.Model = m
	model, cmd := model.Update(tickMsg(time.Now()))
	require.NotNil(t, cmd)
	assert.Equal(t, update.PhaseConfirm, s.Session().Phase())

	model, cmd = model.Update(tea.KeyMsg{Type: tea.KeyEnter})
	assert.Nil(t, cmd)
	assert.Equal(t, update.PhaseConfirm, s.Session().Phase(), "keys apply on the next tick")

	model, _ = model.Update(tickMsg(time.Now()))
	assert.Equal(t, update.PhaseUpdate, s.Session().Phase())

	// interrupt is ignored while the update runs
	model, _ = model.Update(tea.KeyMsg{Type: tea.KeyCtrlC})
	model, _ = model.Update(tickMsg(time.Now()))
	assert.Equal(t, update.PhaseFlashing, s.Session().Phase())

	assert.Contains(t, model.View(), "Flashing...")
}

func TestModelQuitsOnBack(t *testing.T) {
	sim := newSim()
	s := newLangScreen(t, sim, nil)
	var model tea.Model = NewModel(context.Background(), s, time.Millisecond)

	model, _ = model.Update(tickMsg(time.Now()))
	require.Equal(t, update.PhaseConfirm, s.Session().Phase())

	model, _ = model.Update(tea.KeyMsg{Type: tea.KeyEsc})
	_, cmd := model.Update(tickMsg(time.Now()))
	require.NotNil(t, cmd)
	assert.IsType(t, tea.QuitMsg{}, cmd())
}

func mustState(t *testing.T, sim *drc.Simulator) drc.State {
	t.Helper()
	st, err := sim.GetState(drc.DestinationDRC0)
	require.NoError(t, err)
	return st
}
