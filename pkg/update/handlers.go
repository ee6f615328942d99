package update

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/drc-tools/drcflash/pkg/drc"
	"github.com/drc-tools/drcflash/pkg/errors"
	"github.com/drc-tools/drcflash/pkg/link"
	"github.com/drc-tools/drcflash/pkg/metrics"
)

// Messages shown on the error screen
const (
	MsgCopyFailed     = "Failed to copy firmware."
	MsgFetchFailed    = "Failed to fetch firmware."
	MsgInvalidImage   = "Invalid firmware image."
	MsgCaffeineFailed = "Failed to invalidate caffeine."
	MsgReattachFailed = "Failed to reattach DRC in update mode."
	MsgStartFailed    = "Failed to start software update."
	MsgTransferFailed = "Software update failed."
	MsgActivateFailed = "Failed to activate software update."
	MsgEraseFailed    = "Erase failed."
)

// handlePrepare stages the image so the DRC controller can read it
func (s *Session) handlePrepare(ctx context.Context) {
	if !s.kind.NeedsImage() {
		s.setPhase(ctx, PhaseConfirm)
		return
	}

	path, err := s.stager.Stage(ctx, s.id, s.kind)
	if err != nil {
		msg := MsgCopyFailed
		switch {
		case errors.Is(err, ErrImageInvalid):
			msg = MsgInvalidImage
		case errors.Is(err, ErrImageUnavailable):
			msg = MsgFetchFailed
		}
		s.fail(ctx, msg, err)
		return
	}

	slog.Info("image_staged", "session_id", s.id, "path", path)
	s.stagedPath = path
	s.setPhase(ctx, PhaseConfirm)
}

// handleUpdate runs the pre-flight sequence and starts the transfer
func (s *Session) handleUpdate(ctx context.Context) {
	dest := s.cfg.Destination

	s.host.SetHomeButtonMenuEnabled(false)
	s.homeMenuDisabled = true

	if err := s.invalidateCaffeine(dest); err != nil {
		s.rollback(ctx)
		s.fail(ctx, MsgCaffeineFailed, err)
		return
	}

	// Clear whatever update may still be pending on the DRC
	if err := s.dev.SoftwareAbort(dest); err != nil {
		slog.Info("pending_update_abort_ignored", "session_id", s.id, "error", err)
	}

	if err := s.link.Reattach(ctx, dest, drc.StateUpdate); err != nil {
		s.rollback(ctx)
		s.fail(ctx, MsgReattachFailed, err)
		return
	}

	s.progress = 0
	s.done.detach()
	s.done = newCompletion()
	done := s.done
	notify := func(result int32) {
		if !done.notify(result) {
			slog.Warn("transfer_completion_dropped", "result", result)
		}
	}

	if err := s.dev.SoftwareStartUpdate(dest, s.kind.Ext, s.stagedPath, notify); err != nil {
		s.unwind(ctx)
		s.fail(ctx, MsgStartFailed, err)
		return
	}

	slog.Info("transfer_started", "session_id", s.id, "ext", s.kind.Ext, "path", s.stagedPath)
	s.setPhase(ctx, PhaseFlashing)
}

// handleErase aborts any pending update and erases the DRC settings
func (s *Session) handleErase(ctx context.Context) {
	dest := s.cfg.Destination

	s.host.SetHomeButtonMenuEnabled(false)
	s.homeMenuDisabled = true

	if err := s.dev.SoftwareAbort(dest); err != nil {
		slog.Info("pending_update_abort_ignored", "session_id", s.id, "error", err)
	}

	if err := s.dev.InitializeSettings(); err != nil {
		s.fail(ctx, MsgEraseFailed, err)
		return
	}
	s.setPhase(ctx, PhaseDone)
}

// handleFlashing refreshes progress and checks for the transfer result
func (s *Session) handleFlashing(ctx context.Context) {
	dest := s.cfg.Destination

	if info, err := s.dev.FirmwareInfo(dest); err == nil {
		s.progress = info.UpdateProgress
		metrics.FlashProgress.Set(float64(info.UpdateProgress))
	} else {
		slog.Debug("firmware_info_unavailable", "session_id", s.id, "error", err)
	}

	sleep(ctx, s.cfg.PollInterval)

	result, ok := s.done.observe()
	if !ok {
		return
	}

	if result == drc.ResultOK {
		slog.Info("transfer_complete", "session_id", s.id, "progress", s.progress)
		s.setPhase(ctx, PhaseActivate)
		return
	}

	s.unwind(ctx)
	s.fail(ctx, MsgTransferFailed, drc.Status("transfer", result))
}

// handleActivate activates the new image and returns the DRC to active mode
func (s *Session) handleActivate(ctx context.Context) {
	dest := s.cfg.Destination

	if err := s.kind.Activate(s.dev, dest); err != nil {
		s.unwind(ctx)
		s.fail(ctx, MsgActivateFailed, err)
		return
	}

	// The firmware is flashed at this point; the DRC may also come back on its own.
	err := link.Poll(ctx, s.cfg.ReactivateInterval, s.cfg.ReactivateTimeout, func() error {
		return s.link.Reattach(ctx, dest, drc.StateActive)
	})
	if err != nil {
		slog.Warn("reactivate_gave_up", "session_id", s.id, "timeout", s.cfg.ReactivateTimeout, "error", err)
	}

	s.setPhase(ctx, PhaseDone)
}

// invalidateCaffeine clears the background-service slot on firmware that has one
func (s *Session) invalidateCaffeine(dest drc.Destination) error {
	version, err := s.dev.SoftwareVersion(dest)
	if err != nil {
		return errors.Wrap(err, "failed to read running version")
	}

	if version.RunningVersion < drc.CaffeineMinVersion {
		slog.Info("caffeine_skipped", "session_id", s.id, "version", fmt.Sprintf("0x%08x", version.RunningVersion))
		return nil
	}

	if err := s.dev.SetCaffeineSlot(drc.CaffeineInvalidSlot); err != nil {
		return errors.Wrap(err, "failed to invalidate caffeine slot")
	}
	slog.Info("caffeine_invalidated", "session_id", s.id, "version", fmt.Sprintf("0x%08x", version.RunningVersion))
	return nil
}

// rollback tries to bring the DRC back to active mode; failure is only logged
func (s *Session) rollback(ctx context.Context) {
	if err := s.link.Reattach(ctx, s.cfg.Destination, drc.StateActive); err != nil {
		slog.Warn("rollback_failed", "session_id", s.id, "error", err)
	}
}

// unwind aborts the transfer and rolls back; failures are only logged
func (s *Session) unwind(ctx context.Context) {
	if err := AbortUpdate(ctx, s.dev, s.cfg.Destination, s.cfg.PollInterval, s.cfg.AbortTimeout); err != nil {
		slog.Warn("abort_failed", "session_id", s.id, "error", err)
	}
	s.rollback(ctx)
}

func sleep(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
