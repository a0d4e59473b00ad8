package storage

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"logistria/internal/domain"
)

// ErrJobNotFound is returned when no import job has the requested id.
var ErrJobNotFound = errors.New("import job not found")

// ImportStore implements persistence for saved import jobs and run history.
type ImportStore struct {
	db *DB
}

// NewImportStore creates a new ImportStore.
func NewImportStore(db *DB) *ImportStore {
	return &ImportStore{db: db}
}

const jobColumns = `id, name, target, file_path, trigger_type, trigger_config, enabled,
	last_run_at, last_status, last_error, created_at, updated_at`

type scanner interface {
	Scan(dest ...any) error
}

func scanJob(row scanner) (domain.ImportJob, error) {
	var job domain.ImportJob
	var lastRun sql.NullTime
	err := row.Scan(
		&job.ID, &job.Name, &job.Target, &job.FilePath,
		&job.TriggerType, &job.TriggerConfig, &job.Enabled,
		&lastRun, &job.LastStatus, &job.LastError,
		&job.CreatedAt, &job.UpdatedAt,
	)
	if lastRun.Valid {
		job.LastRunAt = lastRun.Time
	}
	return job, err
}

// ── ImportJob CRUD ─────────────────────────────────────────

func (s *ImportStore) CreateJob(job *domain.ImportJob) error {
	now := time.Now().UTC()
	job.ID = uuid.New().String()
	job.CreatedAt = now
	job.UpdatedAt = now
	if job.TriggerType == "" {
		job.TriggerType = domain.TriggerManual
	}

	_, err := s.db.conn.Exec(
		`INSERT INTO import_jobs (id, name, target, file_path, trigger_type, trigger_config,
		 enabled, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		job.ID, job.Name, job.Target, job.FilePath,
		job.TriggerType, job.TriggerConfig, job.Enabled,
		job.CreatedAt, job.UpdatedAt,
	)
	return err
}

func (s *ImportStore) GetJob(id string) (*domain.ImportJob, error) {
	job, err := scanJob(s.db.conn.QueryRow(`SELECT `+jobColumns+` FROM import_jobs WHERE id = ?`, id))
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: %s", ErrJobNotFound, id)
	}
	if err != nil {
		return nil, err
	}
	return &job, nil
}

func (s *ImportStore) UpdateJob(job *domain.ImportJob) error {
	job.UpdatedAt = time.Now().UTC()
	res, err := s.db.conn.Exec(
		`UPDATE import_jobs SET name=?, target=?, file_path=?, trigger_type=?, trigger_config=?,
		 enabled=?, updated_at=? WHERE id=?`,
		job.Name, job.Target, job.FilePath, job.TriggerType, job.TriggerConfig,
		job.Enabled, job.UpdatedAt, job.ID,
	)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: %s", ErrJobNotFound, job.ID)
	}
	return nil
}

func (s *ImportStore) UpdateJobStatus(id, status, errMsg string) error {
	now := time.Now().UTC()
	_, err := s.db.conn.Exec(
		`UPDATE import_jobs SET last_run_at=?, last_status=?, last_error=?, updated_at=? WHERE id=?`,
		now, status, errMsg, now, id,
	)
	return err
}

func (s *ImportStore) DeleteJob(id string) error {
	// Delete run history first.
	if _, err := s.db.conn.Exec(`DELETE FROM import_runs WHERE job_id = ?`, id); err != nil {
		return err
	}
	res, err := s.db.conn.Exec(`DELETE FROM import_jobs WHERE id = ?`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: %s", ErrJobNotFound, id)
	}
	return nil
}

func (s *ImportStore) ListJobs() ([]domain.ImportJob, error) {
	return s.queryJobs(`SELECT ` + jobColumns + ` FROM import_jobs ORDER BY created_at ASC`)
}

// ListEnabledTriggeredJobs returns enabled jobs with a schedule or
// file-watch trigger.
func (s *ImportStore) ListEnabledTriggeredJobs() ([]domain.ImportJob, error) {
	return s.queryJobs(`SELECT ` + jobColumns + ` FROM import_jobs
		WHERE enabled = 1 AND trigger_type IN ('schedule', 'file_watch')
		ORDER BY created_at ASC`)
}

func (s *ImportStore) queryJobs(query string, args ...any) ([]domain.ImportJob, error) {
	rows, err := s.db.conn.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var jobs []domain.ImportJob
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, job)
	}
	return jobs, rows.Err()
}

// ── Run history ────────────────────────────────────────────

func (s *ImportStore) CreateRun(run *domain.ImportRun) error {
	run.ID = uuid.New().String()
	_, err := s.db.conn.Exec(
		`INSERT INTO import_runs (id, job_id, surface, target, collection, file_name,
		 started_at, finished_at, status, rows_read, rows_written, duration_ms, error)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID, run.JobID, run.Surface, run.Target, run.Collection, run.FileName,
		run.StartedAt.UTC(), run.FinishedAt.UTC(), run.Status,
		run.RowsRead, run.RowsWritten, run.DurationMs, run.Error,
	)
	return err
}

// ListRuns returns the newest runs first. An empty jobID lists runs of
// every job and of ad-hoc imports.
func (s *ImportStore) ListRuns(jobID string, limit int) ([]domain.ImportRun, error) {
	if limit <= 0 {
		limit = 50
	}
	query := `SELECT id, job_id, surface, target, collection, file_name, started_at, finished_at,
		 status, rows_read, rows_written, duration_ms, error FROM import_runs`
	args := []any{}
	if jobID != "" {
		query += ` WHERE job_id = ?`
		args = append(args, jobID)
	}
	query += ` ORDER BY started_at DESC LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.conn.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []domain.ImportRun
	for rows.Next() {
		var r domain.ImportRun
		if err := rows.Scan(
			&r.ID, &r.JobID, &r.Surface, &r.Target, &r.Collection, &r.FileName,
			&r.StartedAt, &r.FinishedAt, &r.Status, &r.RowsRead, &r.RowsWritten,
			&r.DurationMs, &r.Error,
		); err != nil {
			return nil, err
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}
