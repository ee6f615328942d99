// Package link moves a DRC between link states and waits for the device to
// confirm the new state.
package link

import (
	"context"
	"log/slog"
	"time"

	"github.com/drc-tools/drcflash/pkg/drc"
	"github.com/drc-tools/drcflash/pkg/errors"
	"github.com/drc-tools/drcflash/pkg/metrics"
)

var (
	// ErrEepromTimeout means the config store did not become readable after a reattach
	ErrEepromTimeout = errors.New("timed out waiting for eeprom")
	// ErrStateMismatch means the DRC reattached in a state other than the requested one
	ErrStateMismatch = errors.New("drc state does not match target")
)

// Controller reattaches DRCs into a requested link state
type Controller struct {
	dev           drc.Controller
	pollInterval  time.Duration
	eepromTimeout time.Duration
}

// NewController creates a link controller; zero durations fall back to the protocol defaults
func NewController(dev drc.Controller, pollInterval, eepromTimeout time.Duration) *Controller {
	if pollInterval <= 0 {
		pollInterval = drc.DefaultPollInterval
	}
	if eepromTimeout <= 0 {
		eepromTimeout = drc.DefaultEepromTimeout
	}
	return &Controller{
		dev:           dev,
		pollInterval:  pollInterval,
		eepromTimeout: eepromTimeout,
	}
}

// currentState reads the link state, folding the undocumented state 3 into active.
func (c *Controller) currentState(dest drc.Destination) (drc.State, error) {
	state, err := c.dev.GetState(dest)
	if err != nil {
		return 0, err
	}
	if state == drc.StateUnknown3 {
		state = drc.StateActive
	}
	return state, nil
}

// Reattach moves dest into target and waits until the DRC reports it.
// It is a no-op when the DRC is already in target. Any failing step aborts
// the call without retrying.
func (c *Controller) Reattach(ctx context.Context, dest drc.Destination, target drc.State) error {
	err := c.reattach(ctx, dest, target)
	switch {
	case err == errAlreadyInState:
		metrics.ReattachTotal.WithLabelValues(target.String(), "noop").Inc()
		return nil
	case err != nil:
		metrics.ReattachTotal.WithLabelValues(target.String(), "failed").Inc()
		slog.Error("reattach_failed", "destination", dest, "target", target, "error", err)
		return err
	}

	metrics.ReattachTotal.WithLabelValues(target.String(), "ok").Inc()
	slog.Info("reattach_complete", "destination", dest, "target", target)
	return nil
}

var errAlreadyInState = errors.New("already in target state")

func (c *Controller) reattach(ctx context.Context, dest drc.Destination, target drc.State) error {
	state, err := c.currentState(dest)
	if err != nil {
		return errors.Wrap(err, "failed to get drc state")
	}
	if state == target {
		slog.Info("reattach_skipped", "destination", dest, "state", state)
		return errAlreadyInState
	}

	slog.Info("reattach_start", "destination", dest, "from", state, "target", target)
	slot := dest.Slot()
	c.dev.InitReattach(slot)

	if err := c.dev.SetState(dest, target); err != nil {
		return errors.Wrap(err, "failed to set drc state")
	}

	if err := c.dev.WaitReattach(slot, false); err != nil {
		return errors.Wrap(err, "failed waiting for reattach")
	}

	if err := c.waitForEeprom(ctx, slot); err != nil {
		return err
	}

	state, err = c.currentState(dest)
	if err != nil {
		return errors.Wrap(err, "failed to get drc state")
	}
	if state != target {
		return errors.Wrapf(ErrStateMismatch, "got %s, want %s", state, target)
	}

	return nil
}

// waitForEeprom polls the cached EEPROM until the DRC config store answers.
func (c *Controller) waitForEeprom(ctx context.Context, slot int) error {
	start := time.Now()
	err := Poll(ctx, c.pollInterval, c.eepromTimeout, func() error {
		return c.dev.ProbeEeprom(slot)
	})
	if err != nil {
		slog.Warn("eeprom_wait_failed", "slot", slot, "elapsed", time.Since(start), "error", err)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return errors.Classify(ErrEepromTimeout, err)
	}

	slog.Info("eeprom_ready", "slot", slot, "elapsed", time.Since(start))
	return nil
}
