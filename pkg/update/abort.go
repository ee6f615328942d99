package update

import (
	"context"
	"log/slog"
	"time"

	"github.com/drc-tools/drcflash/pkg/drc"
	"github.com/drc-tools/drcflash/pkg/errors"
	"github.com/drc-tools/drcflash/pkg/link"
)

// AbortUpdate repeats the abort request until the DRC accepts it or timeout elapses
func AbortUpdate(ctx context.Context, dev drc.Controller, dest drc.Destination, interval, timeout time.Duration) error {
	attempts := 0
	err := link.Poll(ctx, interval, timeout, func() error {
		attempts++
		return dev.SoftwareAbort(dest)
	})
	if err != nil {
		return errors.Wrapf(err, "abort not accepted after %d attempts", attempts)
	}

	slog.Info("update_aborted", "destination", dest, "attempts", attempts)
	return nil
}
