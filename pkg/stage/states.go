package stage

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/superfly/fsm"

	"github.com/drc-tools/drcflash/pkg/db"
	"github.com/drc-tools/drcflash/pkg/errors"
	"github.com/drc-tools/drcflash/pkg/storage"
	"github.com/drc-tools/drcflash/pkg/update"
)

type stageRequest = fsm.Request[StageRequest, StageResponse]
type stageResponse = fsm.Response[StageResponse]

// abort marks the run failed in the journal and stops the pipeline.
// class is the update error the stager surfaces; nil means a copy failure.
func (m *Machine) abort(req *stageRequest, class error, err error) (*stageResponse, error) {
	if class != nil {
		m.setFailure(req.Msg.SessionID, class)
	}
	if uerr := m.repo.UpdateStatus(req.Msg.SessionID, db.StatusFailed, err.Error()); uerr != nil {
		slog.Error("status_update_failed", "session_id", req.Msg.SessionID, "error", uerr)
	}
	return nil, fsm.Abort(err)
}

// retriesExhausted reports an error once the retry budget of the current state is spent
func (m *Machine) retriesExhausted(ctx context.Context, req *stageRequest) error {
	if retryCount := fsm.RetryFromContext(ctx); retryCount >= uint64(m.maxRetries) {
		slog.Error("max_retries_exceeded", "session_id", req.Msg.SessionID, "max_retries", m.maxRetries)
		return fmt.Errorf("max retries (%d) exceeded", m.maxRetries)
	}
	return nil
}

func staged(resp *StageResponse) bool {
	return resp != nil && resp.Status == db.StatusStaged
}

// handleCheckSource creates the journal record and checks the source exists
func (m *Machine) handleCheckSource(ctx context.Context, req *stageRequest) (*stageResponse, error) {
	slog.Info("fsm_state_check_source", "session_id", req.Msg.SessionID, "source", req.Msg.Source)

	if err := m.retriesExhausted(ctx, req); err != nil {
		return m.abort(req, update.ErrImageUnavailable, err)
	}

	resp := req.W.Msg
	if resp == nil {
		resp = &StageResponse{}
	}

	rec, err := m.repo.Get(req.Msg.SessionID)
	if err != nil {
		return nil, fsm.Abort(errors.Wrap(err, "database error"))
	}

	if rec != nil && rec.Status == db.StatusStaged {
		if _, err := os.Stat(rec.StagedPath); err == nil {
			slog.Info("image_already_staged", "session_id", rec.ID, "staged_path", rec.StagedPath)
			resp.Status = db.StatusStaged
			resp.StagedPath = rec.StagedPath
			resp.SHA256 = rec.SHA256
			return fsm.NewResponse(resp), nil
		}
	}
	if rec == nil {
		rec = &db.Session{
			ID:     req.Msg.SessionID,
			Kind:   req.Msg.Kind,
			Source: req.Msg.Source,
			Status: db.StatusPending,
		}
		if err := m.repo.Create(rec); err != nil {
			return nil, errors.Wrap(err, "failed to create session record")
		}
	}

	if storage.IsURI(req.Msg.Source) {
		if m.s3Client == nil {
			return m.abort(req, update.ErrImageUnavailable, fmt.Errorf("no S3 client for %s", req.Msg.Source))
		}
		loc, err := storage.ParseURI(req.Msg.Source)
		if err != nil {
			return m.abort(req, update.ErrImageUnavailable, err)
		}
		ok, err := m.s3Client.Exists(ctx, loc)
		if err != nil {
			return nil, errors.Wrap(err, "failed to check source")
		}
		if !ok {
			return m.abort(req, update.ErrImageUnavailable, fmt.Errorf("%w: %s", storage.ErrNotFound, loc))
		}
	} else if _, err := os.Stat(req.Msg.Source); err != nil {
		slog.Error("source_missing", "session_id", req.Msg.SessionID, "source", req.Msg.Source, "error", err)
		return m.abort(req, update.ErrImageUnavailable, errors.Wrap(err, "source image missing"))
	}

	resp.Status = db.StatusStaging
	if err := m.repo.UpdateStatus(req.Msg.SessionID, db.StatusStaging, ""); err != nil {
		return nil, errors.Wrap(err, "failed to update status")
	}
	return fsm.NewResponse(resp), nil
}

// handleFetch brings the image to local disk and checksums it
func (m *Machine) handleFetch(ctx context.Context, req *stageRequest) (*stageResponse, error) {
	slog.Info("fsm_state_fetch", "session_id", req.Msg.SessionID, "source", req.Msg.Source)

	if err := m.retriesExhausted(ctx, req); err != nil {
		return m.abort(req, update.ErrImageUnavailable, err)
	}

	resp := req.W.Msg
	if resp == nil {
		return nil, fsm.Abort(fmt.Errorf("response not initialized"))
	}
	if staged(resp) {
		return fsm.NewResponse(resp), nil
	}

	if storage.IsURI(req.Msg.Source) {
		loc, err := storage.ParseURI(req.Msg.Source)
		if err != nil {
			return m.abort(req, update.ErrImageUnavailable, err)
		}

		downloadDir := filepath.Join(m.workDir, "downloads", req.Msg.SessionID)
		if err := os.MkdirAll(downloadDir, 0755); err != nil {
			return nil, errors.Wrap(err, "failed to create download dir")
		}

		result, err := m.s3Client.Download(ctx, loc, filepath.Join(downloadDir, req.Msg.ImageName), m.maxSize)
		if err != nil {
			slog.Error("download_failed", "session_id", req.Msg.SessionID, "source", req.Msg.Source, "error", err)
			return nil, errors.Wrap(err, "failed to download from S3")
		}
		resp.FetchPath = result.LocalPath
		resp.SHA256 = result.SHA256
		resp.Size = result.Size
	} else {
		sum, size, err := checksum(req.Msg.Source)
		if err != nil {
			return nil, errors.Wrap(err, "failed to read source image")
		}
		resp.FetchPath = req.Msg.Source
		resp.SHA256 = sum
		resp.Size = size
	}

	slog.Info("fetch_complete",
		"session_id", req.Msg.SessionID,
		"size_kb", resp.Size/1024,
		"sha256", resp.SHA256[:16]+"...",
	)

	rec, err := m.repo.Get(req.Msg.SessionID)
	if err != nil {
		return nil, errors.Wrap(err, "failed to load session")
	}
	if rec != nil {
		rec.SHA256 = resp.SHA256
		if err := m.repo.Update(rec); err != nil {
			return nil, errors.Wrap(err, "failed to update session")
		}
	}

	return fsm.NewResponse(resp), nil
}

// handleValidate checks the fetched image before it reaches the DRC
func (m *Machine) handleValidate(ctx context.Context, req *stageRequest) (*stageResponse, error) {
	slog.Info("fsm_state_validate", "session_id", req.Msg.SessionID)

	if err := m.retriesExhausted(ctx, req); err != nil {
		return m.abort(req, update.ErrImageInvalid, err)
	}

	resp := req.W.Msg
	if resp == nil {
		return nil, fsm.Abort(fmt.Errorf("response not initialized"))
	}
	if staged(resp) {
		return fsm.NewResponse(resp), nil
	}

	if err := m.validator.ValidateName(req.Msg.ImageName); err != nil {
		return m.abort(req, update.ErrImageInvalid, err)
	}

	header, err := m.validator.ValidateFile(resp.FetchPath, req.Msg.HasHeader)
	if err != nil {
		slog.Error("image_validation_failed", "session_id", req.Msg.SessionID, "path", resp.FetchPath, "error", err)
		return m.abort(req, update.ErrImageInvalid, err)
	}
	if header != nil {
		resp.ImageVersion = header.VersionString()
	}

	return fsm.NewResponse(resp), nil
}

// handleStage copies the image into device-writable storage
func (m *Machine) handleStage(ctx context.Context, req *stageRequest) (*stageResponse, error) {
	slog.Info("fsm_state_stage", "session_id", req.Msg.SessionID)

	if err := m.retriesExhausted(ctx, req); err != nil {
		return m.abort(req, nil, err)
	}

	resp := req.W.Msg
	if resp == nil {
		return nil, fsm.Abort(fmt.Errorf("response not initialized"))
	}
	if staged(resp) {
		return fsm.NewResponse(resp), nil
	}

	dir := filepath.Join(m.stagingDir, req.Msg.SessionID)
	if err := os.MkdirAll(dir, 0755); err != nil {
		slog.Error("staging_dir_creation_failed", "path", dir, "error", err)
		return m.abort(req, nil, errors.Wrap(err, "failed to create staging dir"))
	}

	dst := filepath.Join(dir, req.Msg.ImageName)
	if err := CopyFile(resp.FetchPath, dst); err != nil {
		slog.Error("image_copy_failed", "session_id", req.Msg.SessionID, "src", resp.FetchPath, "dst", dst, "error", err)
		return m.abort(req, nil, err)
	}

	slog.Info("image_copied", "session_id", req.Msg.SessionID, "staged_path", dst)
	resp.StagedPath = dst

	return fsm.NewResponse(resp), nil
}

// handleComplete marks the session staged
func (m *Machine) handleComplete(ctx context.Context, req *stageRequest) (*stageResponse, error) {
	slog.Info("fsm_state_complete", "session_id", req.Msg.SessionID)

	if err := m.retriesExhausted(ctx, req); err != nil {
		return m.abort(req, nil, err)
	}

	resp := req.W.Msg
	if resp == nil {
		return nil, fsm.Abort(fmt.Errorf("response not initialized"))
	}

	rec, err := m.repo.Get(req.Msg.SessionID)
	if err != nil {
		return nil, fsm.Abort(errors.Wrap(err, "failed to load session"))
	}
	if rec == nil {
		return nil, fsm.Abort(fmt.Errorf("session %s not found in database", req.Msg.SessionID))
	}

	rec.StagedPath = resp.StagedPath
	rec.SHA256 = resp.SHA256
	rec.ImageVersion = resp.ImageVersion
	rec.Status = db.StatusStaged
	rec.ErrorMessage = ""
	if err := m.repo.Update(rec); err != nil {
		return nil, errors.Wrap(err, "failed to update session")
	}
	resp.Status = db.StatusStaged

	slog.Info("fsm_complete", "session_id", req.Msg.SessionID, "staged_path", resp.StagedPath, "status", db.StatusStaged)
	return fsm.NewResponse(resp), nil
}

func checksum(path string) (string, int64, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", 0, err
	}
	defer f.Close()

	hash := sha256.New()
	size, err := io.Copy(hash, f)
	if err != nil {
		return "", 0, err
	}
	return hex.EncodeToString(hash.Sum(nil)), size, nil
}
