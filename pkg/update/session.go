// Package update runs the DRC update session: stage an image, take the DRC
// into update mode, stream the image, poll progress, activate, and bring the
// DRC back to active mode, unwinding to a safe link state on every failure.
package update

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/drc-tools/drcflash/pkg/drc"
	"github.com/drc-tools/drcflash/pkg/errors"
	"github.com/drc-tools/drcflash/pkg/link"
	"github.com/drc-tools/drcflash/pkg/metrics"
)

var (
	// ErrImageUnavailable is wrapped by stagers when the source image cannot be fetched
	ErrImageUnavailable = errors.New("image unavailable")
	// ErrImageInvalid is wrapped by stagers when the image fails validation
	ErrImageInvalid = errors.New("image invalid")
)

// Stager places the kind's image in device-writable storage and returns the staged path
type Stager interface {
	Stage(ctx context.Context, sessionID string, kind Kind) (string, error)
}

// PhaseRecord is one journal entry for a session
type PhaseRecord struct {
	SessionID string
	Kind      string
	Phase     string
	Progress  int
	Message   string
}

// Recorder keeps an audit trail of session phases
type Recorder interface {
	RecordPhase(ctx context.Context, rec PhaseRecord) error
}

// Config holds the session timing budget and target DRC
type Config struct {
	Destination        drc.Destination
	PollInterval       time.Duration
	EepromTimeout      time.Duration
	AbortTimeout       time.Duration
	ReactivateTimeout  time.Duration
	ReactivateInterval time.Duration
}

// DefaultConfig returns the protocol timings for DRC0
func DefaultConfig() Config {
	return Config{
		Destination:        drc.DestinationDRC0,
		PollInterval:       drc.DefaultPollInterval,
		EepromTimeout:      drc.DefaultEepromTimeout,
		AbortTimeout:       drc.DefaultAbortTimeout,
		ReactivateTimeout:  drc.DefaultReactivateTimeout,
		ReactivateInterval: drc.DefaultReactivateInterval,
	}
}

// Option configures a Session
type Option func(*Session)

// WithConfig overrides the default timings and destination
func WithConfig(cfg Config) Option {
	return func(s *Session) { s.cfg = cfg }
}

// WithRecorder journals every phase transition
func WithRecorder(r Recorder) Option {
	return func(s *Session) { s.recorder = r }
}

// WithID sets the session ID instead of a random one
func WithID(id string) Option {
	return func(s *Session) { s.id = id }
}

// Session is one update attempt on one DRC. It is driven from a single
// goroutine through Step, Confirm and Close; only the transfer completion
// arrives from elsewhere.
type Session struct {
	id       string
	kind     Kind
	cfg      Config
	dev      drc.Controller
	host     drc.Host
	link     *link.Controller
	stager   Stager
	recorder Recorder

	phase      Phase
	stagedPath string
	progress   int
	errMsg     string
	done       *completion

	homeMenuDisabled bool
	closed           bool
}

// NewSession creates a session in the Prepare phase
func NewSession(kind Kind, dev drc.Controller, host drc.Host, stager Stager, opts ...Option) *Session {
	s := &Session{
		id:     uuid.NewString(),
		kind:   kind,
		cfg:    DefaultConfig(),
		dev:    dev,
		host:   host,
		stager: stager,
		phase:  PhasePrepare,
		done:   newCompletion(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.kind.Activate == nil {
		s.kind.Activate = softwareActivate
	}
	s.link = link.NewController(dev, s.cfg.PollInterval, s.cfg.EepromTimeout)

	slog.Info("session_created", "session_id", s.id, "kind", kind.Name, "destination", s.cfg.Destination)
	return s
}

func (s *Session) ID() string         { return s.id }
func (s *Session) Kind() Kind         { return s.kind }
func (s *Session) Phase() Phase       { return s.phase }
func (s *Session) Progress() int      { return s.progress }
func (s *Session) StagedPath() string { return s.stagedPath }

// ErrorMessage is the human-readable reason for the Error phase
func (s *Session) ErrorMessage() string { return s.errMsg }

// Step advances the session by one tick. Phases waiting for the user are left untouched.
func (s *Session) Step(ctx context.Context) {
	if s.closed {
		return
	}

	switch s.phase {
	case PhasePrepare:
		s.handlePrepare(ctx)
	case PhaseUpdate:
		if s.kind.Erase {
			s.handleErase(ctx)
		} else {
			s.handleUpdate(ctx)
		}
	case PhaseFlashing:
		s.handleFlashing(ctx)
	case PhaseActivate:
		s.handleActivate(ctx)
	case PhaseConfirm, PhaseDone, PhaseError:
	}
}

// Confirm accepts the update at the confirmation checkpoint
func (s *Session) Confirm(ctx context.Context) bool {
	if s.closed || s.phase != PhaseConfirm {
		return false
	}
	s.setPhase(ctx, PhaseUpdate)
	return true
}

// Close ends the session. Late transfer completions are dropped and the
// home menu is restored if the session disabled it. It refuses to close a
// session that is mid-update.
func (s *Session) Close() bool {
	if s.closed {
		return true
	}
	if !s.phase.Interruptible() && s.phase != PhasePrepare {
		slog.Warn("session_close_refused", "session_id", s.id, "phase", s.phase)
		return false
	}

	s.closed = true
	s.done.detach()
	if s.homeMenuDisabled {
		s.host.SetHomeButtonMenuEnabled(true)
		s.homeMenuDisabled = false
	}

	outcome := "cancelled"
	switch s.phase {
	case PhaseDone:
		outcome = "done"
	case PhaseError:
		outcome = "error"
	}
	metrics.SessionsTotal.WithLabelValues(s.kind.Name, outcome).Inc()

	slog.Info("session_closed", "session_id", s.id, "phase", s.phase, "outcome", outcome)
	return true
}

// Drain steps a started update until it reaches Done or Error, then closes
// the session. Callers tearing down the UI use it so the DRC is never left
// mid-update; ctx should outlive the UI.
func (s *Session) Drain(ctx context.Context) {
	if s.busy() {
		slog.Warn("session_draining", "session_id", s.id, "phase", s.phase)
	}
	for !s.closed && s.busy() {
		s.Step(ctx)
	}
	s.Close()
}

// busy reports whether the update has started and not yet finished
func (s *Session) busy() bool {
	return s.phase > PhaseConfirm && !s.phase.Terminal()
}

func (s *Session) setPhase(ctx context.Context, p Phase) {
	slog.Info("session_phase", "session_id", s.id, "from", s.phase, "to", p)
	s.phase = p
	metrics.PhaseTransitionsTotal.WithLabelValues(p.String()).Inc()
	s.record(ctx)
}

func (s *Session) fail(ctx context.Context, msg string, err error) {
	slog.Error("session_failed", "session_id", s.id, "phase", s.phase, "message", msg, "error", err)
	s.errMsg = msg
	s.setPhase(ctx, PhaseError)
}

func (s *Session) record(ctx context.Context) {
	if s.recorder == nil {
		return
	}
	err := s.recorder.RecordPhase(ctx, PhaseRecord{
		SessionID: s.id,
		Kind:      s.kind.Name,
		Phase:     s.phase.String(),
		Progress:  s.progress,
		Message:   s.errMsg,
	})
	if err != nil {
		slog.Warn("session_record_failed", "session_id", s.id, "phase", s.phase, "error", err)
	}
}
