package update

// Phase is the state of an update session
type Phase int

const (
	PhasePrepare Phase = iota
	PhaseConfirm
	PhaseUpdate
	PhaseFlashing
	PhaseActivate
	PhaseDone
	PhaseError
)

func (p Phase) String() string {
	switch p {
	case PhasePrepare:
		return "prepare"
	case PhaseConfirm:
		return "confirm"
	case PhaseUpdate:
		return "update"
	case PhaseFlashing:
		return "flashing"
	case PhaseActivate:
		return "activate"
	case PhaseDone:
		return "done"
	case PhaseError:
		return "error"
	default:
		return "unknown"
	}
}

// Interruptible reports whether user input is honored in this phase.
// Once the update has started the session runs to Done or Error first.
func (p Phase) Interruptible() bool {
	switch p {
	case PhaseConfirm, PhaseDone, PhaseError:
		return true
	default:
		return false
	}
}

// Terminal reports whether the session has finished
func (p Phase) Terminal() bool {
	return p == PhaseDone || p == PhaseError
}
