package drc

import "fmt"

// Destination addresses a DRC attached to the host
type Destination int

const (
	DestinationDRC0 Destination = 1
	DestinationDRC1 Destination = 2
)

// Slot returns the zero-based DRC slot used by the reattach and EEPROM calls
func (d Destination) Slot() int {
	return int(d - DestinationDRC0)
}

func (d Destination) String() string {
	return fmt.Sprintf("drc%d", d.Slot())
}

// State is the link state of a DRC as tracked by the host
type State uint32

const (
	StateActive   State = 1
	StateUpdate   State = 2
	StateUnknown3 State = 3
)

func (s State) String() string {
	switch s {
	case StateActive:
		return "active"
	case StateUpdate:
		return "update"
	case StateUnknown3:
		return "unknown3"
	default:
		return fmt.Sprintf("other(%d)", uint32(s))
	}
}

// Ext selects what a software update writes
type Ext uint32

const (
	ExtFirmware Ext = 0
	ExtLanguage Ext = 1
)

func (e Ext) String() string {
	switch e {
	case ExtFirmware:
		return "firmware"
	case ExtLanguage:
		return "language"
	default:
		return fmt.Sprintf("ext(%d)", uint32(e))
	}
}

// ResultOK is the completion code of a successful transfer
const ResultOK int32 = 0

// CompletionFunc is invoked at most once per transfer, from the transfer's own goroutine
type CompletionFunc func(result int32)

// FirmwareInfo is the transfer status reported by the DRC
type FirmwareInfo struct {
	UpdateProgress int
}

// SoftwareVersion is the firmware version reported by the DRC
type SoftwareVersion struct {
	RunningVersion uint32
}

// Controller is the host-side interface to the DRC controller
type Controller interface {
	// GetState reads the current link state
	GetState(dest Destination) (State, error)

	// SetState requests a new link state
	SetState(dest Destination, state State) error

	// InitReattach announces an upcoming reattach on the given slot
	InitReattach(slot int)

	// WaitReattach blocks until the DRC on slot has reattached.
	// The flag is passed through to the vendor call uninterpreted.
	WaitReattach(slot int, flag bool) error

	// ProbeEeprom reads the cached EEPROM; it fails until the DRC config store is readable
	ProbeEeprom(slot int) error

	// SoftwareAbort aborts any pending or running software update
	SoftwareAbort(dest Destination) error

	// SoftwareStartUpdate starts an asynchronous update from the image at path.
	// done is invoked once when the transfer finishes, unless starting failed.
	SoftwareStartUpdate(dest Destination, ext Ext, path string, done CompletionFunc) error

	// FirmwareInfo reports transfer progress
	FirmwareInfo(dest Destination) (FirmwareInfo, error)

	// SoftwareActivate makes the flashed firmware the running firmware
	SoftwareActivate(dest Destination) error

	// SoftwareVersion reports the running firmware version
	SoftwareVersion(dest Destination) (SoftwareVersion, error)

	// SetCaffeineSlot sets (and with 0xff invalidates) the background-service slot
	SetCaffeineSlot(slot uint8) error

	// InitializeSettings erases DRC settings
	InitializeSettings() error
}

// Host exposes the console shell affordances the update flow toggles
type Host interface {
	SetHomeButtonMenuEnabled(enabled bool)
}

// StatusError is a non-zero vendor status returned by a controller call
type StatusError struct {
	Op   string
	Code int32
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s: status %d", e.Op, e.Code)
}

// Status converts a vendor status into an error; zero is success
func Status(op string, code int32) error {
	if code == 0 {
		return nil
	}
	return &StatusError{Op: op, Code: code}
}
