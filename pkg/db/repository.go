// Package db journals update sessions in SQLite.
package db

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	_ "modernc.org/sqlite"

	"github.com/drc-tools/drcflash/pkg/errors"
	"github.com/drc-tools/drcflash/pkg/update"
)

const sessionColumns = `id, kind, source, staged_path, sha256, image_version,
		       status, phase, progress, error_message, created_at, updated_at`

// Repository provides database operations for the session journal
type Repository struct {
	db *sql.DB
}

var _ update.Recorder = (*Repository)(nil)

// NewRepository opens the journal at dbPath and creates the schema
func NewRepository(dbPath string) (*Repository, error) {
	slog.Info("database_init", "db_path", dbPath)

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		slog.Error("database_open_failed", "db_path", dbPath, "error", err)
		return nil, errors.Wrap(err, "failed to open database")
	}

	// the session and the staging pipeline write from different goroutines
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(Schema); err != nil {
		db.Close()
		slog.Error("database_schema_failed", "db_path", dbPath, "error", err)
		return nil, errors.Wrap(err, "failed to create schema")
	}

	slog.Info("database_ready", "db_path", dbPath)
	return &Repository{db: db}, nil
}

// Close closes the database connection
func (r *Repository) Close() error {
	return r.db.Close()
}

// Create inserts a new session record
func (r *Repository) Create(s *Session) error {
	slog.Info("database_create_session", "session_id", s.ID, "kind", s.Kind, "status", s.Status)

	if s.Phase == "" {
		s.Phase = update.PhasePrepare.String()
	}
	query := `
		INSERT INTO sessions (id, kind, source, staged_path, sha256, image_version, status, phase, progress, error_message)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := r.db.Exec(query,
		s.ID, s.Kind, s.Source, s.StagedPath, s.SHA256, s.ImageVersion,
		s.Status, s.Phase, s.Progress, s.ErrorMessage)
	if err != nil {
		slog.Error("database_insert_failed", "session_id", s.ID, "error", err)
		return errors.Wrap(err, "failed to insert session")
	}

	slog.Info("database_session_created", "session_id", s.ID, "status", s.Status)
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanSession(row scanner) (*Session, error) {
	var s Session
	var source, stagedPath, sha, version, errorMessage sql.NullString

	err := row.Scan(
		&s.ID, &s.Kind, &source, &stagedPath, &sha, &version,
		&s.Status, &s.Phase, &s.Progress, &errorMessage,
		&s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		return nil, err
	}

	s.Source = source.String
	s.StagedPath = stagedPath.String
	s.SHA256 = sha.String
	s.ImageVersion = version.String
	s.ErrorMessage = errorMessage.String
	return &s, nil
}

// Get retrieves a session by ID; a missing session is (nil, nil)
func (r *Repository) Get(id string) (*Session, error) {
	slog.Debug("database_query_session", "session_id", id)

	query := `SELECT ` + sessionColumns + ` FROM sessions WHERE id = ?`
	s, err := scanSession(r.db.QueryRow(query, id))
	if err == sql.ErrNoRows {
		slog.Info("database_session_not_found", "session_id", id)
		return nil, nil
	}
	if err != nil {
		slog.Error("database_query_failed", "session_id", id, "error", err)
		return nil, errors.Wrap(err, "failed to query session")
	}
	return s, nil
}

// Update writes the staging fields of an existing session
func (r *Repository) Update(s *Session) error {
	slog.Info("database_update_session", "session_id", s.ID, "status", s.Status)

	query := `
		UPDATE sessions
		SET source = ?, staged_path = ?, sha256 = ?, image_version = ?, status = ?, error_message = ?,
		    updated_at = CURRENT_TIMESTAMP
		WHERE id = ?
	`
	result, err := r.db.Exec(query,
		s.Source, s.StagedPath, s.SHA256, s.ImageVersion, s.Status, s.ErrorMessage, s.ID)
	if err != nil {
		slog.Error("database_update_failed", "session_id", s.ID, "error", err)
		return errors.Wrap(err, "failed to update session")
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return errors.Wrap(err, "failed to get rows affected")
	}
	if rows == 0 {
		slog.Error("database_session_not_found_for_update", "session_id", s.ID)
		return fmt.Errorf("session not found: id=%s", s.ID)
	}
	return nil
}

// UpdateStatus updates only the staging status
func (r *Repository) UpdateStatus(id, status, errorMessage string) error {
	slog.Info("database_update_status", "session_id", id, "status", status)

	query := `UPDATE sessions SET status = ?, error_message = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`
	if _, err := r.db.Exec(query, status, errorMessage, id); err != nil {
		slog.Error("database_status_update_failed", "session_id", id, "status", status, "error", err)
		return errors.Wrap(err, "failed to update status")
	}
	return nil
}

// RecordPhase stores the session's current phase and appends it to the
// phase log. Sessions without a staging record are created on first use.
func (r *Repository) RecordPhase(ctx context.Context, rec update.PhaseRecord) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "failed to begin transaction")
	}
	defer tx.Rollback()

	upsert := `
		INSERT INTO sessions (id, kind, status, phase, progress, error_message)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
		    phase = excluded.phase,
		    progress = excluded.progress,
		    error_message = CASE WHEN excluded.error_message = '' THEN sessions.error_message ELSE excluded.error_message END,
		    updated_at = CURRENT_TIMESTAMP
	`
	if _, err := tx.ExecContext(ctx, upsert,
		rec.SessionID, rec.Kind, StatusPending, rec.Phase, rec.Progress, rec.Message); err != nil {
		slog.Error("database_record_phase_failed", "session_id", rec.SessionID, "phase", rec.Phase, "error", err)
		return errors.Wrap(err, "failed to upsert session phase")
	}

	logEntry := `INSERT INTO phase_log (session_id, phase, progress, message) VALUES (?, ?, ?, ?)`
	if _, err := tx.ExecContext(ctx, logEntry, rec.SessionID, rec.Phase, rec.Progress, rec.Message); err != nil {
		return errors.Wrap(err, "failed to append phase log")
	}

	if err := tx.Commit(); err != nil {
		return errors.Wrap(err, "failed to commit transaction")
	}

	slog.Debug("database_phase_recorded", "session_id", rec.SessionID, "phase", rec.Phase, "progress", rec.Progress)
	return nil
}

// Phases returns the recorded transitions of a session, oldest first
func (r *Repository) Phases(id string) ([]PhaseEntry, error) {
	rows, err := r.db.Query(
		`SELECT phase, progress, message, recorded_at FROM phase_log WHERE session_id = ? ORDER BY id`, id)
	if err != nil {
		slog.Error("database_phase_query_failed", "session_id", id, "error", err)
		return nil, errors.Wrap(err, "failed to query phase log")
	}
	defer rows.Close()

	var entries []PhaseEntry
	for rows.Next() {
		var e PhaseEntry
		var msg sql.NullString
		if err := rows.Scan(&e.Phase, &e.Progress, &msg, &e.RecordedAt); err != nil {
			return nil, errors.Wrap(err, "failed to scan phase log")
		}
		e.Message = msg.String
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "rows error")
	}
	return entries, nil
}

// List retrieves all sessions, newest first
func (r *Repository) List() ([]*Session, error) {
	slog.Debug("database_list_sessions")

	query := `SELECT ` + sessionColumns + ` FROM sessions ORDER BY created_at DESC, rowid DESC`
	rows, err := r.db.Query(query)
	if err != nil {
		slog.Error("database_list_query_failed", "error", err)
		return nil, errors.Wrap(err, "failed to list sessions")
	}
	defer rows.Close()

	var sessions []*Session
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			slog.Error("database_scan_row_failed", "error", err)
			return nil, errors.Wrap(err, "failed to scan row")
		}
		sessions = append(sessions, s)
	}

	if err := rows.Err(); err != nil {
		slog.Error("database_rows_error", "error", err)
		return nil, errors.Wrap(err, "rows error")
	}

	slog.Debug("database_list_complete", "session_count", len(sessions))
	return sessions, nil
}

// Delete removes a session and its phase log
func (r *Repository) Delete(id string) error {
	slog.Info("database_delete_session", "session_id", id)

	tx, err := r.db.Begin()
	if err != nil {
		return errors.Wrap(err, "failed to begin transaction")
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM phase_log WHERE session_id = ?`, id); err != nil {
		return errors.Wrap(err, "failed to delete phase log")
	}
	if _, err := tx.Exec(`DELETE FROM sessions WHERE id = ?`, id); err != nil {
		slog.Error("database_delete_failed", "session_id", id, "error", err)
		return errors.Wrap(err, "failed to delete session")
	}
	if err := tx.Commit(); err != nil {
		return errors.Wrap(err, "failed to commit transaction")
	}

	slog.Info("database_session_deleted", "session_id", id)
	return nil
}
