package link

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/drc-tools/drcflash/pkg/drc"
)

// fakeDevice follows set-state requests unless sticky is set, and keeps the
// config store unreadable for eepromFailures probes.
type fakeDevice struct {
	mu sync.Mutex

	state          drc.State
	sticky         bool
	eepromFailures int
	setErr         error
	waitErr        error

	setCalls   int
	waitCalls  int
	probeCalls int
	initCalls  int
}

func (f *fakeDevice) GetState(drc.Destination) (drc.State, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state, nil
}

func (f *fakeDevice) SetState(_ drc.Destination, s drc.State) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.setCalls++
	if f.setErr != nil {
		return f.setErr
	}
	if !f.sticky {
		f.state = s
	}
	return nil
}

func (f *fakeDevice) InitReattach(int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.initCalls++
}

func (f *fakeDevice) WaitReattach(int, bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.waitCalls++
	return f.waitErr
}

func (f *fakeDevice) ProbeEeprom(int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.probeCalls++
	if f.eepromFailures < 0 || f.probeCalls <= f.eepromFailures {
		return drc.Status("eeprom", -1)
	}
	return nil
}

func (f *fakeDevice) SoftwareAbort(drc.Destination) error { return nil }
func (f *fakeDevice) SoftwareStartUpdate(drc.Destination, drc.Ext, string, drc.CompletionFunc) error {
	return nil
}
func (f *fakeDevice) FirmwareInfo(drc.Destination) (drc.FirmwareInfo, error) {
	return drc.FirmwareInfo{}, nil
}
func (f *fakeDevice) SoftwareActivate(drc.Destination) error { return nil }
func (f *fakeDevice) SoftwareVersion(drc.Destination) (drc.SoftwareVersion, error) {
	return drc.SoftwareVersion{}, nil
}
func (f *fakeDevice) SetCaffeineSlot(uint8) error { return nil }
func (f *fakeDevice) InitializeSettings() error   { return nil }

func TestReattach_AlreadyInTargetIsNoop(t *testing.T) {
	dev := &fakeDevice{state: drc.StateUpdate}
	c := NewController(dev, time.Millisecond, 50*time.Millisecond)

	require.NoError(t, c.Reattach(context.Background(), drc.DestinationDRC0, drc.StateUpdate))

	assert.Zero(t, dev.setCalls)
	assert.Zero(t, dev.initCalls)
	assert.Zero(t, dev.waitCalls)
}

func TestReattach_Unknown3CountsAsActive(t *testing.T) {
	dev := &fakeDevice{state: drc.StateUnknown3}
	c := NewController(dev, time.Millisecond, 50*time.Millisecond)

	require.NoError(t, c.Reattach(context.Background(), drc.DestinationDRC0, drc.StateActive))
	assert.Zero(t, dev.setCalls)
}

func TestReattach_Success(t *testing.T) {
	dev := &fakeDevice{state: drc.StateActive, eepromFailures: 3}
	c := NewController(dev, time.Millisecond, time.Second)

	require.NoError(t, c.Reattach(context.Background(), drc.DestinationDRC0, drc.StateUpdate))

	assert.Equal(t, 1, dev.initCalls)
	assert.Equal(t, 1, dev.setCalls)
	assert.Equal(t, 1, dev.waitCalls)
	assert.Equal(t, 4, dev.probeCalls)
	assert.Equal(t, drc.StateUpdate, dev.state)
}

func TestReattach_StateNeverMatches(t *testing.T) {
	dev := &fakeDevice{state: drc.StateActive, sticky: true}
	c := NewController(dev, 10*time.Millisecond, 100*time.Millisecond)

	err := c.Reattach(context.Background(), drc.DestinationDRC0, drc.StateUpdate)

	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrStateMismatch))
}

func TestReattach_EepromTimeoutIsBounded(t *testing.T) {
	dev := &fakeDevice{state: drc.StateActive, eepromFailures: -1}
	timeout := 150 * time.Millisecond
	c := NewController(dev, 20*time.Millisecond, timeout)

	start := time.Now()
	err := c.Reattach(context.Background(), drc.DestinationDRC0, drc.StateUpdate)
	elapsed := time.Since(start)

	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrEepromTimeout))
	assert.Less(t, elapsed, timeout+200*time.Millisecond)
	assert.Greater(t, dev.probeCalls, 1)
}

func TestReattach_StepFailuresShortCircuit(t *testing.T) {
	tests := []struct {
		name      string
		dev       *fakeDevice
		wantWaits int
	}{
		{
			name:      "set state fails",
			dev:       &fakeDevice{state: drc.StateActive, setErr: drc.Status("set_state", 1)},
			wantWaits: 0,
		},
		{
			name:      "wait reattach fails",
			dev:       &fakeDevice{state: drc.StateActive, waitErr: drc.Status("wait_reattach", 1)},
			wantWaits: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := NewController(tt.dev, time.Millisecond, 50*time.Millisecond)

			err := c.Reattach(context.Background(), drc.DestinationDRC0, drc.StateUpdate)

			require.Error(t, err)
			assert.Equal(t, tt.wantWaits, tt.dev.waitCalls)
			assert.Zero(t, tt.dev.probeCalls)
		})
	}
}

func TestReattach_ContextCancelled(t *testing.T) {
	dev := &fakeDevice{state: drc.StateActive, eepromFailures: -1}
	c := NewController(dev, 10*time.Millisecond, time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	err := c.Reattach(ctx, drc.DestinationDRC0, drc.StateUpdate)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestPoll_ReturnsLastError(t *testing.T) {
	want := errors.New("still busy")
	calls := 0

	err := Poll(context.Background(), time.Millisecond, 20*time.Millisecond, func() error {
		calls++
		return want
	})

	assert.ErrorIs(t, err, want)
	assert.Greater(t, calls, 1)
}
