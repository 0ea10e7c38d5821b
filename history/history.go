// Package history keeps a local SQLite record of the jobs this node has
// finished, for operators inspecting the node with the history command.
package history

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/pkg/errors"
	_ "modernc.org/sqlite"

	"github.com/stanplayground/jobrunner/runner/jobs"
)

type JobRecord struct {
	JobID          string
	WorkspaceID    string
	ProjectID      string
	ScriptFileName string
	State          string
	Error          string
	NumCPUs        int
	RAMGB          float64
	TimeoutSec     int
	Started        time.Time
	Finished       time.Time
	ElapsedSec     float64
}

// RecordFromInfo builds the record of a job finishing at finished.
func RecordFromInfo(info jobs.Info, finished time.Time) JobRecord {
	return JobRecord{
		JobID:          info.JobID,
		WorkspaceID:    info.WorkspaceID,
		ProjectID:      info.ProjectID,
		ScriptFileName: info.ScriptFileName,
		State:          info.State,
		Error:          info.Error,
		NumCPUs:        info.Grant.NumCPUs,
		RAMGB:          info.Grant.RAMGB,
		TimeoutSec:     info.Grant.TimeoutSec,
		Started:        info.Started,
		Finished:       finished,
		ElapsedSec:     info.ElapsedSec,
	}
}

type Store struct {
	db *sql.DB
}

const schema = `
CREATE TABLE IF NOT EXISTS finished_jobs (
	job_id TEXT PRIMARY KEY,
	workspace_id TEXT NOT NULL,
	project_id TEXT NOT NULL,
	script_file_name TEXT NOT NULL,
	state TEXT NOT NULL,
	error TEXT NOT NULL,
	num_cpus INTEGER NOT NULL,
	ram_gb REAL NOT NULL,
	timeout_sec INTEGER NOT NULL,
	started_ms INTEGER NOT NULL,
	finished_ms INTEGER NOT NULL,
	elapsed_sec REAL NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_finished_jobs_finished ON finished_jobs(finished_ms);
`

// Open opens or creates the database at path.
func Open(path string) (*Store, error) {
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, errors.Wrap(err, "opening history database")
	}
	// Writes are serialized by sqlite anyway.
	db.SetMaxOpenConns(1)
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "connecting to history database")
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "initializing history schema")
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// Record stores r, replacing any earlier record of the same job.
func (s *Store) Record(ctx context.Context, r JobRecord) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO finished_jobs
		(job_id, workspace_id, project_id, script_file_name, state, error,
		 num_cpus, ram_gb, timeout_sec, started_ms, finished_ms, elapsed_sec)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.JobID, r.WorkspaceID, r.ProjectID, r.ScriptFileName, r.State, r.Error,
		r.NumCPUs, r.RAMGB, r.TimeoutSec, toMillis(r.Started), toMillis(r.Finished), r.ElapsedSec)
	return errors.Wrapf(err, "recording job %s", r.JobID)
}

// Recent returns up to limit records, most recently finished first.
func (s *Store) Recent(ctx context.Context, limit int) ([]JobRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT job_id, workspace_id, project_id, script_file_name, state, error,
		       num_cpus, ram_gb, timeout_sec, started_ms, finished_ms, elapsed_sec
		FROM finished_jobs ORDER BY finished_ms DESC, job_id LIMIT ?`, limit)
	if err != nil {
		return nil, errors.Wrap(err, "querying history")
	}
	defer rows.Close()

	var out []JobRecord
	for rows.Next() {
		var r JobRecord
		var started, finished int64
		if err := rows.Scan(&r.JobID, &r.WorkspaceID, &r.ProjectID, &r.ScriptFileName, &r.State, &r.Error,
			&r.NumCPUs, &r.RAMGB, &r.TimeoutSec, &started, &finished, &r.ElapsedSec); err != nil {
			return nil, errors.Wrap(err, "reading history")
		}
		r.Started, r.Finished = fromMillis(started), fromMillis(finished)
		out = append(out, r)
	}
	return out, rows.Err()
}

func toMillis(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixMilli()
}

func fromMillis(ms int64) time.Time {
	if ms == 0 {
		return time.Time{}
	}
	return time.UnixMilli(ms)
}
