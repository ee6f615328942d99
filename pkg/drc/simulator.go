package drc

import (
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"
)

// Fault names accepted by WithFault
const (
	FaultGetState     = "get_state"
	FaultSetState     = "set_state"
	FaultWaitReattach = "wait_reattach"
	FaultAbort        = "abort"
	FaultStartUpdate  = "start_update"
	FaultTransfer     = "transfer"
	FaultActivate     = "activate"
	FaultVersion      = "version"
	FaultCaffeine     = "caffeine"
	FaultInitialize   = "initialize_settings"
)

// SimOption configures a Simulator
type SimOption func(*Simulator)

// WithVersion sets the running firmware version
func WithVersion(v uint32) SimOption {
	return func(s *Simulator) { s.version = v }
}

// WithStep sets how long the simulated transfer takes per 10% of progress
func WithStep(d time.Duration) SimOption {
	return func(s *Simulator) { s.step = d }
}

// WithEepromDelay sets how long the config store stays unreadable after a state change
func WithEepromDelay(d time.Duration) SimOption {
	return func(s *Simulator) { s.eepromDelay = d }
}

// WithFault makes the named operation fail with the given vendor status
func WithFault(op string, code int32) SimOption {
	return func(s *Simulator) { s.faults[op] = code }
}

// Simulator is an in-memory DRC and host shell. It backs the CLI on hosts
// without a console and drives end-to-end tests.
type Simulator struct {
	mu sync.Mutex

	states        map[Destination]State
	version       uint32
	step          time.Duration
	eepromDelay   time.Duration
	eepromReadyAt time.Time
	faults        map[string]int32

	progress    int
	transferred bool
	stop        chan struct{}

	homeMenuEnabled bool
	erased          bool
}

// NewSimulator creates a simulator with every DRC in the active state
func NewSimulator(opts ...SimOption) *Simulator {
	s := &Simulator{
		states: map[Destination]State{
			DestinationDRC0: StateActive,
			DestinationDRC1: StateActive,
		},
		version:         0x190c0117,
		step:            300 * time.Millisecond,
		eepromDelay:     400 * time.Millisecond,
		faults:          make(map[string]int32),
		homeMenuEnabled: true,
	}
	for _, opt := range opts {
		opt(s)
	}

	slog.Info("drc_simulator_init", "version", fmt.Sprintf("0x%08x", s.version), "step", s.step)
	return s
}

func (s *Simulator) fault(op string) error {
	if code, ok := s.faults[op]; ok {
		return Status(op, code)
	}
	return nil
}

func (s *Simulator) GetState(dest Destination) (State, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.fault(FaultGetState); err != nil {
		return 0, err
	}
	return s.states[dest], nil
}

func (s *Simulator) SetState(dest Destination, state State) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.fault(FaultSetState); err != nil {
		return err
	}

	slog.Info("drc_simulator_set_state", "destination", dest, "from", s.states[dest], "to", state)
	s.states[dest] = state
	s.eepromReadyAt = time.Now().Add(s.eepromDelay)
	return nil
}

func (s *Simulator) InitReattach(slot int) {
	slog.Info("drc_simulator_init_reattach", "slot", slot)
}

func (s *Simulator) WaitReattach(slot int, flag bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.fault(FaultWaitReattach)
}

func (s *Simulator) ProbeEeprom(slot int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if time.Now().Before(s.eepromReadyAt) {
		return Status("eeprom", -1)
	}
	return nil
}

func (s *Simulator) SoftwareAbort(dest Destination) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.fault(FaultAbort); err != nil {
		return err
	}
	if s.stop != nil {
		close(s.stop)
		s.stop = nil
		slog.Info("drc_simulator_transfer_aborted", "destination", dest, "progress", s.progress)
	}
	return nil
}

func (s *Simulator) SoftwareStartUpdate(dest Destination, ext Ext, path string, done CompletionFunc) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.fault(FaultStartUpdate); err != nil {
		return err
	}
	if s.states[dest] != StateUpdate {
		return Status("start_update", -2)
	}
	if _, err := os.Stat(path); err != nil {
		return Status("start_update", -3)
	}
	if s.stop != nil {
		return Status("start_update", -4)
	}

	s.progress = 0
	s.transferred = false
	stop := make(chan struct{})
	s.stop = stop

	result := ResultOK
	if code, ok := s.faults[FaultTransfer]; ok {
		result = code
	}

	slog.Info("drc_simulator_transfer_start", "destination", dest, "ext", ext, "path", path)
	go s.transfer(stop, result, done)
	return nil
}

func (s *Simulator) transfer(stop chan struct{}, result int32, done CompletionFunc) {
	ticker := time.NewTicker(s.step)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
		}

		s.mu.Lock()
		if s.stop != stop {
			s.mu.Unlock()
			return
		}
		s.progress += 10
		finished := s.progress >= 100 || result != ResultOK && s.progress >= 50
		if finished {
			s.stop = nil
			s.transferred = result == ResultOK
		}
		s.mu.Unlock()

		if finished {
			slog.Info("drc_simulator_transfer_done", "result", result)
			done(result)
			return
		}
	}
}

func (s *Simulator) FirmwareInfo(dest Destination) (FirmwareInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return FirmwareInfo{UpdateProgress: s.progress}, nil
}

func (s *Simulator) SoftwareActivate(dest Destination) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.fault(FaultActivate); err != nil {
		return err
	}
	if !s.transferred {
		return Status("activate", -5)
	}

	s.transferred = false
	slog.Info("drc_simulator_activated", "destination", dest)
	return nil
}

func (s *Simulator) SoftwareVersion(dest Destination) (SoftwareVersion, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.fault(FaultVersion); err != nil {
		return SoftwareVersion{}, err
	}
	return SoftwareVersion{RunningVersion: s.version}, nil
}

func (s *Simulator) SetCaffeineSlot(slot uint8) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.fault(FaultCaffeine)
}

func (s *Simulator) InitializeSettings() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.fault(FaultInitialize); err != nil {
		return err
	}
	s.erased = true
	return nil
}

func (s *Simulator) SetHomeButtonMenuEnabled(enabled bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	slog.Info("drc_simulator_home_menu", "enabled", enabled)
	s.homeMenuEnabled = enabled
}

// HomeMenuEnabled reports the last home-menu setting
func (s *Simulator) HomeMenuEnabled() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.homeMenuEnabled
}

// Erased reports whether InitializeSettings succeeded
func (s *Simulator) Erased() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.erased
}

var (
	_ Controller = (*Simulator)(nil)
	_ Host       = (*Simulator)(nil)
)
