package stage

import (
	"context"
	"log/slog"
	"path/filepath"

	"github.com/superfly/fsm"

	"github.com/drc-tools/drcflash/pkg/db"
	"github.com/drc-tools/drcflash/pkg/errors"
	"github.com/drc-tools/drcflash/pkg/update"
)

// Stager runs the staging pipeline for an update session
type Stager struct {
	manager   *fsm.Manager
	machine   *Machine
	repo      *db.Repository
	start     fsm.Start[StageRequest, StageResponse]
	sourceDir string
	source    string
}

var _ update.Stager = (*Stager)(nil)

// NewStager registers the pipeline on manager. Images are looked up by name
// in sourceDir unless source overrides it with a path or s3:// URI.
func NewStager(ctx context.Context, manager *fsm.Manager, machine *Machine, repo *db.Repository, sourceDir, source string) (*Stager, error) {
	start, _, err := machine.Register(ctx, manager)
	if err != nil {
		return nil, err
	}
	return &Stager{
		manager:   manager,
		machine:   machine,
		repo:      repo,
		start:     start,
		sourceDir: sourceDir,
		source:    source,
	}, nil
}

// SourceFor returns where the image of kind is read from
func (s *Stager) SourceFor(kind update.Kind) string {
	if s.source != "" {
		return s.source
	}
	return filepath.Join(s.sourceDir, kind.Image)
}

// Stage runs the pipeline to completion and returns the staged path
func (s *Stager) Stage(ctx context.Context, sessionID string, kind update.Kind) (string, error) {
	req := &StageRequest{
		SessionID: sessionID,
		Kind:      kind.Name,
		Source:    s.SourceFor(kind),
		ImageName: kind.Image,
		HasHeader: kind.HasHeader,
	}

	version, err := s.start(ctx, sessionID, fsm.NewRequest(req, &StageResponse{}))
	if err != nil {
		return "", errors.Wrap(err, "FSM start failed")
	}
	slog.Info("stage_started", "session_id", sessionID, "source", req.Source, "version", version)

	waitErr := s.manager.Wait(ctx, version)

	rec, err := s.repo.Get(sessionID)
	if err != nil {
		return "", errors.Wrap(err, "failed to load staging result")
	}
	if waitErr == nil && rec != nil && rec.Status == db.StatusStaged {
		return rec.StagedPath, nil
	}

	reason := waitErr
	if reason == nil {
		reason = errors.New("staging ended without a staged image")
		if rec != nil && rec.ErrorMessage != "" {
			reason = errors.New(rec.ErrorMessage)
		}
	}
	if class := s.machine.failure(sessionID); class != nil {
		return "", errors.Classify(class, reason)
	}
	return "", errors.Wrap(reason, "staging failed")
}
