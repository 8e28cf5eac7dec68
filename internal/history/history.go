// Package history keeps a journal of sync runs and the last status per profile.
package history

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/davsync/davsync/internal/cloudsync"
	"github.com/davsync/davsync/internal/daverr"
	"github.com/davsync/davsync/internal/db"
	"github.com/davsync/davsync/internal/utils"
)

var schema = []string{
	`CREATE TABLE IF NOT EXISTS sync_runs (
		id              INTEGER PRIMARY KEY AUTOINCREMENT,
		profile         TEXT    NOT NULL,
		operation       TEXT    NOT NULL,
		action          TEXT    NOT NULL,
		success         INTEGER NOT NULL,
		message         TEXT    NOT NULL DEFAULT '',
		error_code      TEXT    NOT NULL DEFAULT '',
		bytes           INTEGER NOT NULL DEFAULT 0,
		local_checksum  TEXT    NOT NULL DEFAULT '',
		remote_checksum TEXT    NOT NULL DEFAULT '',
		started_at      INTEGER NOT NULL,
		finished_at     INTEGER NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_sync_runs_profile ON sync_runs (profile, id DESC)`,
	`CREATE TABLE IF NOT EXISTS sync_state (
		profile    TEXT PRIMARY KEY,
		status     TEXT    NOT NULL,
		updated_at INTEGER NOT NULL
	)`,
}

// Run is one journal entry. Failed runs carry the error code and message.
type Run struct {
	ID             int64     `json:"id"`
	Profile        string    `json:"profile"`
	Operation      string    `json:"operation"`
	Action         string    `json:"action"`
	Success        bool      `json:"success"`
	Message        string    `json:"message"`
	ErrorCode      string    `json:"error_code,omitempty"`
	Bytes          int64     `json:"bytes"`
	LocalChecksum  string    `json:"local_checksum,omitempty"`
	RemoteChecksum string    `json:"remote_checksum,omitempty"`
	StartedAt      time.Time `json:"started_at"`
	FinishedAt     time.Time `json:"finished_at"`
}

func (r Run) Duration() time.Duration {
	return r.FinishedAt.Sub(r.StartedAt)
}

// NewRun builds the entry for an operation that returned res and err.
func NewRun(profile, operation string, started, finished time.Time, res *cloudsync.SyncResult, err error) Run {
	run := Run{
		Profile:    profile,
		Operation:  operation,
		StartedAt:  started,
		FinishedAt: finished,
	}
	if err != nil {
		run.Action = "error"
		run.Message = daverr.FriendlyMessage(err)
		if e, ok := daverr.As(err); ok {
			run.ErrorCode = e.Code()
		}
		return run
	}
	if res != nil {
		run.Action = res.Action.String()
		run.Success = res.Success
		run.Message = res.Message
		run.Bytes = res.BytesTransferred
		run.LocalChecksum = res.LocalChecksum
		run.RemoteChecksum = res.RemoteChecksum
	}
	return run
}

// row mirrors sync_runs; times are unix milliseconds so both drivers agree.
type row struct {
	ID             int64  `db:"id"`
	Profile        string `db:"profile"`
	Operation      string `db:"operation"`
	Action         string `db:"action"`
	Success        bool   `db:"success"`
	Message        string `db:"message"`
	ErrorCode      string `db:"error_code"`
	Bytes          int64  `db:"bytes"`
	LocalChecksum  string `db:"local_checksum"`
	RemoteChecksum string `db:"remote_checksum"`
	StartedAt      int64  `db:"started_at"`
	FinishedAt     int64  `db:"finished_at"`
}

func (r row) run() Run {
	return Run{
		ID:             r.ID,
		Profile:        r.Profile,
		Operation:      r.Operation,
		Action:         r.Action,
		Success:        r.Success,
		Message:        r.Message,
		ErrorCode:      r.ErrorCode,
		Bytes:          r.Bytes,
		LocalChecksum:  r.LocalChecksum,
		RemoteChecksum: r.RemoteChecksum,
		StartedAt:      time.UnixMilli(r.StartedAt),
		FinishedAt:     time.UnixMilli(r.FinishedAt),
	}
}

type Journal struct {
	db  *sqlx.DB
	now func() time.Time
}

// Open opens or creates the journal at path. db.MemoryPath gives a throwaway journal.
func Open(ctx context.Context, path string) (*Journal, error) {
	conn, err := db.NewSqliteDB(db.WithPath(path))
	if err != nil {
		return nil, err
	}
	if err := db.Migrate(ctx, conn, schema...); err != nil {
		conn.Close()
		return nil, err
	}
	return &Journal{db: conn, now: time.Now}, nil
}

func (j *Journal) Close() error {
	return j.db.Close()
}

// Record appends run and returns its id.
func (j *Journal) Record(ctx context.Context, run Run) (int64, error) {
	res, err := j.db.NamedExecContext(ctx, `
		INSERT INTO sync_runs (profile, operation, action, success, message, error_code, bytes,
			local_checksum, remote_checksum, started_at, finished_at)
		VALUES (:profile, :operation, :action, :success, :message, :error_code, :bytes,
			:local_checksum, :remote_checksum, :started_at, :finished_at)`,
		row{
			Profile:        run.Profile,
			Operation:      run.Operation,
			Action:         run.Action,
			Success:        run.Success,
			Message:        run.Message,
			ErrorCode:      run.ErrorCode,
			Bytes:          run.Bytes,
			LocalChecksum:  run.LocalChecksum,
			RemoteChecksum: run.RemoteChecksum,
			StartedAt:      run.StartedAt.UnixMilli(),
			FinishedAt:     run.FinishedAt.UnixMilli(),
		})
	if err != nil {
		return 0, fmt.Errorf("history: record run: %w", err)
	}
	return res.LastInsertId()
}

// Recent returns up to n runs of profile, newest first.
func (j *Journal) Recent(ctx context.Context, profile string, n int) ([]Run, error) {
	if n <= 0 {
		n = 10
	}
	var rows []row
	err := j.db.SelectContext(ctx, &rows, `
		SELECT * FROM sync_runs WHERE profile = ? ORDER BY id DESC LIMIT ?`, profile, n)
	if err != nil {
		return nil, fmt.Errorf("history: recent runs: %w", err)
	}

	runs := make([]Run, 0, len(rows))
	for _, r := range rows {
		runs = append(runs, r.run())
	}
	return runs, nil
}

// SaveStatus replaces the stored status of profile.
func (j *Journal) SaveStatus(ctx context.Context, profile string, status cloudsync.SyncStatus) error {
	data, err := utils.JSONMarshal(status)
	if err != nil {
		return err
	}
	_, err = j.db.ExecContext(ctx, `
		INSERT INTO sync_state (profile, status, updated_at) VALUES (?, ?, ?)
		ON CONFLICT (profile) DO UPDATE SET status = excluded.status, updated_at = excluded.updated_at`,
		profile, string(data), j.now().UnixMilli())
	if err != nil {
		return fmt.Errorf("history: save status: %w", err)
	}
	return nil
}

// LoadStatus returns the stored status of profile and whether there was one.
func (j *Journal) LoadStatus(ctx context.Context, profile string) (cloudsync.SyncStatus, bool, error) {
	var raw string
	err := j.db.GetContext(ctx, &raw, `SELECT status FROM sync_state WHERE profile = ?`, profile)
	if errors.Is(err, sql.ErrNoRows) {
		return cloudsync.SyncStatus{}, false, nil
	}
	if err != nil {
		return cloudsync.SyncStatus{}, false, fmt.Errorf("history: load status: %w", err)
	}

	var status cloudsync.SyncStatus
	if err := utils.JSONUnmarshal([]byte(raw), &status); err != nil {
		return cloudsync.SyncStatus{}, false, fmt.Errorf("history: decode status: %w", err)
	}
	return status, true, nil
}

// Prune keeps the newest keep runs of profile.
func (j *Journal) Prune(ctx context.Context, profile string, keep int) (int64, error) {
	res, err := j.db.ExecContext(ctx, `
		DELETE FROM sync_runs WHERE profile = ? AND id NOT IN (
			SELECT id FROM sync_runs WHERE profile = ? ORDER BY id DESC LIMIT ?)`,
		profile, profile, keep)
	if err != nil {
		return 0, fmt.Errorf("history: prune: %w", err)
	}
	return res.RowsAffected()
}
