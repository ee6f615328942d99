package update

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/drc-tools/drcflash/pkg/drc"
)

// scriptedDRC is a controllable drc.Controller that logs every mutating call.
type scriptedDRC struct {
	mu sync.Mutex

	state drc.State
	// updateLandsIn replaces the state a set-state to Update ends up in
	updateLandsIn drc.State
	// activeLandsIn replaces the state a set-state to Active ends up in
	activeLandsIn drc.State

	version     uint32
	versionErr  error
	caffeineErr error
	startErr    error
	activateErr error
	eraseErr    error
	// abortFailures is the number of aborts rejected before one is accepted; -1 rejects all
	abortFailures int

	progress []int
	infoErr  error

	calls    []string
	aborts   int
	infoHits int
	done     drc.CompletionFunc
}

func newScriptedDRC() *scriptedDRC {
	return &scriptedDRC{
		state:   drc.StateActive,
		version: 0x190c0117,
	}
}

func (d *scriptedDRC) log(call string) {
	d.calls = append(d.calls, call)
}

func (d *scriptedDRC) GetState(drc.Destination) (drc.State, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.state, nil
}

func (d *scriptedDRC) SetState(_ drc.Destination, s drc.State) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.log("set_state:" + s.String())
	switch {
	case s == drc.StateUpdate && d.updateLandsIn != 0:
		d.state = d.updateLandsIn
	case s == drc.StateActive && d.activeLandsIn != 0:
		d.state = d.activeLandsIn
	default:
		d.state = s
	}
	return nil
}

func (d *scriptedDRC) InitReattach(int)             {}
func (d *scriptedDRC) WaitReattach(int, bool) error { return nil }
func (d *scriptedDRC) ProbeEeprom(int) error        { return nil }

func (d *scriptedDRC) SoftwareAbort(drc.Destination) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.aborts++
	d.log("abort")
	if d.abortFailures < 0 || d.aborts <= d.abortFailures {
		return drc.Status("abort", -1)
	}
	return nil
}

func (d *scriptedDRC) SoftwareStartUpdate(_ drc.Destination, ext drc.Ext, path string, done drc.CompletionFunc) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.log(fmt.Sprintf("start:%d:%s", ext, path))
	if d.startErr != nil {
		return d.startErr
	}
	d.done = done
	return nil
}

func (d *scriptedDRC) FirmwareInfo(drc.Destination) (drc.FirmwareInfo, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.infoErr != nil {
		return drc.FirmwareInfo{}, d.infoErr
	}
	if len(d.progress) == 0 {
		return drc.FirmwareInfo{}, nil
	}
	i := d.infoHits
	if i >= len(d.progress) {
		i = len(d.progress) - 1
	}
	d.infoHits++
	return drc.FirmwareInfo{UpdateProgress: d.progress[i]}, nil
}

func (d *scriptedDRC) SoftwareActivate(drc.Destination) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.log("activate")
	return d.activateErr
}

func (d *scriptedDRC) SoftwareVersion(drc.Destination) (drc.SoftwareVersion, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return drc.SoftwareVersion{RunningVersion: d.version}, d.versionErr
}

func (d *scriptedDRC) SetCaffeineSlot(slot uint8) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.log(fmt.Sprintf("caffeine:%#x", slot))
	return d.caffeineErr
}

func (d *scriptedDRC) InitializeSettings() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.log("initialize_settings")
	return d.eraseErr
}

func (d *scriptedDRC) complete(result int32) {
	d.mu.Lock()
	done := d.done
	d.mu.Unlock()
	done(result)
}

func (d *scriptedDRC) callLog() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]string(nil), d.calls...)
}

func (d *scriptedDRC) called(call string) bool {
	for _, c := range d.callLog() {
		if c == call {
			return true
		}
	}
	return false
}

// indexOf returns the position of the first call matching name after from, or -1
func (d *scriptedDRC) indexOf(name string, from int) int {
	calls := d.callLog()
	for i := from; i < len(calls); i++ {
		if calls[i] == name {
			return i
		}
	}
	return -1
}

type fakeHost struct {
	mu      sync.Mutex
	enabled bool
	changes []bool
}

func (h *fakeHost) SetHomeButtonMenuEnabled(enabled bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.enabled = enabled
	h.changes = append(h.changes, enabled)
}

type fakeStager struct {
	path  string
	err   error
	calls int
}

func (s *fakeStager) Stage(_ context.Context, _ string, _ Kind) (string, error) {
	s.calls++
	return s.path, s.err
}

type memRecorder struct {
	records []PhaseRecord
}

func (r *memRecorder) RecordPhase(_ context.Context, rec PhaseRecord) error {
	r.records = append(r.records, rec)
	return nil
}

func (r *memRecorder) phases() []string {
	out := make([]string, 0, len(r.records))
	for _, rec := range r.records {
		out = append(out, rec.Phase)
	}
	return out
}

func testConfig() Config {
	return Config{
		Destination:        drc.DestinationDRC0,
		PollInterval:       time.Millisecond,
		EepromTimeout:      20 * time.Millisecond,
		AbortTimeout:       20 * time.Millisecond,
		ReactivateTimeout:  30 * time.Millisecond,
		ReactivateInterval: 2 * time.Millisecond,
	}
}
