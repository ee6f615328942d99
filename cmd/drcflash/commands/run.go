package commands

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/superfly/fsm"

	"github.com/drc-tools/drcflash/internal/config"
	"github.com/drc-tools/drcflash/pkg/db"
	"github.com/drc-tools/drcflash/pkg/drc"
	"github.com/drc-tools/drcflash/pkg/errors"
	"github.com/drc-tools/drcflash/pkg/firmware"
	"github.com/drc-tools/drcflash/pkg/metrics"
	"github.com/drc-tools/drcflash/pkg/screen"
	"github.com/drc-tools/drcflash/pkg/stage"
	"github.com/drc-tools/drcflash/pkg/storage"
	"github.com/drc-tools/drcflash/pkg/update"
)

// runSession wires one update session to the simulated DRC and runs the update screen
func runSession(ctx context.Context, kind update.Kind, source string) error {
	cfg, err := config.Load()
	if err != nil {
		return errors.Wrap(err, "config load failed")
	}
	if err := cfg.Validate(); err != nil {
		return errors.Wrap(err, "config invalid")
	}

	if err := ensureDirectories(cfg.SQLitePath, cfg.FSMDBPath, cfg.WorkDir, cfg.StagingDir); err != nil {
		return err
	}

	restoreLog, err := logToFile(cfg)
	if err != nil {
		return err
	}
	defer restoreLog()

	repo, err := db.NewRepository(cfg.SQLitePath)
	if err != nil {
		return errors.Wrap(err, "db init failed")
	}
	defer repo.Close()

	sim := drc.NewSimulator(drc.WithVersion(cfg.SimVersion), drc.WithStep(cfg.SimStep))

	var stager update.Stager
	if kind.NeedsImage() {
		var s3Client *storage.Client
		if storage.IsURI(source) {
			s3Client, err = storage.NewClient(ctx, cfg.S3Region)
			if err != nil {
				return errors.Wrap(err, "S3 client failed")
			}
		}

		manager, err := fsm.New(fsm.Config{DBPath: cfg.FSMDBPath})
		if err != nil {
			return errors.Wrap(err, "FSM manager failed")
		}
		defer manager.Shutdown(10 * time.Second)

		validator := firmware.NewValidator(cfg.MaxImageSize)
		machine := stage.NewMachine(repo, s3Client, validator, cfg.WorkDir, cfg.StagingDir, cfg.MaxImageSize, cfg.FSMMaxRetries)
		s, err := stage.NewStager(ctx, manager, machine, repo, cfg.SourceDir, source)
		if err != nil {
			return errors.Wrap(err, "FSM register failed")
		}
		stager = s
	}

	if cfg.MetricsAddr != "" {
		srv := metrics.NewServer(cfg.MetricsAddr)
		go func() {
			slog.Info("metrics_server_start", "addr", cfg.MetricsAddr, "endpoint", metrics.Endpoint)
			if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
				slog.Error("metrics_server_failed", "error", err)
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			srv.Shutdown(shutdownCtx)
		}()
	}

	session := update.NewSession(kind, sim, sim, stager,
		update.WithConfig(cfg.Session()),
		update.WithRecorder(repo),
	)
	scr := screen.New(session, screen.DefaultKeyMap())

	if err := screen.NewProgram(ctx, scr, tea.WithAltScreen()).Run(); err != nil {
		return err
	}

	switch session.Phase() {
	case update.PhaseDone:
		fmt.Printf("✅ %s (session %s)\n", kind.DoneText, session.ID())
	case update.PhaseError:
		return fmt.Errorf("session %s: %s", session.ID(), session.ErrorMessage())
	default:
		fmt.Printf("Cancelled in %s (session %s)\n", session.Phase(), session.ID())
	}
	return nil
}
