// Package stage implements the image staging pipeline. It resolves the
// image source, fetches it from local disk or S3, validates it and copies it
// into device-writable storage using the superfly/fsm library.
package stage

import (
	"context"
	"sync"

	"github.com/superfly/fsm"

	"github.com/drc-tools/drcflash/pkg/db"
	"github.com/drc-tools/drcflash/pkg/errors"
	"github.com/drc-tools/drcflash/pkg/firmware"
	"github.com/drc-tools/drcflash/pkg/storage"
)

// Machine holds dependencies for pipeline transitions
type Machine struct {
	repo       *db.Repository
	s3Client   *storage.Client
	validator  *firmware.Validator
	workDir    string
	stagingDir string
	maxSize    int64
	maxRetries int

	// failures classifies aborted runs by session ID for the stager
	failures sync.Map
}

// NewMachine creates a pipeline machine. s3Client may be nil when only local sources are used.
func NewMachine(
	repo *db.Repository,
	s3Client *storage.Client,
	validator *firmware.Validator,
	workDir string,
	stagingDir string,
	maxSize int64,
	maxRetries int,
) *Machine {
	return &Machine{
		repo:       repo,
		s3Client:   s3Client,
		validator:  validator,
		workDir:    workDir,
		stagingDir: stagingDir,
		maxSize:    maxSize,
		maxRetries: maxRetries,
	}
}

// Register registers the staging pipeline
func (m *Machine) Register(ctx context.Context, manager *fsm.Manager) (fsm.Start[StageRequest, StageResponse], fsm.Resume, error) {
	start, resume, err := fsm.Register[StageRequest, StageResponse](manager, "image-stage").
		Start(StateCheckSource, m.handleCheckSource).
		To(StateFetch, m.handleFetch).
		To(StateValidate, m.handleValidate).
		To(StateStage, m.handleStage).
		To(StateComplete, m.handleComplete).
		End(StateFailed).
		Build(ctx)
	if err != nil {
		return nil, nil, errors.Wrap(err, "failed to register FSM")
	}

	return start, resume, nil
}

func (m *Machine) setFailure(sessionID string, class error) {
	m.failures.Store(sessionID, class)
}

// failure returns the failure class recorded for an aborted run, or nil
func (m *Machine) failure(sessionID string) error {
	v, ok := m.failures.LoadAndDelete(sessionID)
	if !ok {
		return nil
	}
	err, _ := v.(error)
	return err
}
