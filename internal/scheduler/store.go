package scheduler

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

// ErrJobNotFound is returned when a job id does not exist. Callers like
// RunJobNow dereference the result, so a miss must be an error, not nil.
var ErrJobNotFound = errors.New("scheduled job not found")

// PostgresStore persists jobs and their execution history in Postgres.
// Job.Config scans straight through its JobConfig value methods, so no
// row-mapping layer is needed.
type PostgresStore struct {
	db *sqlx.DB
}

func NewPostgresStore(db *sqlx.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) GetJob(ctx context.Context, id string) (*Job, error) {
	var job Job
	err := s.db.GetContext(ctx, &job,
		`SELECT * FROM scheduled_jobs WHERE id = $1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrJobNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("loading scheduled job: %w", err)
	}
	return &job, nil
}

func (s *PostgresStore) ListJobs(ctx context.Context) ([]*Job, error) {
	var jobs []*Job
	err := s.db.SelectContext(ctx, &jobs,
		`SELECT * FROM scheduled_jobs ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("listing scheduled jobs: %w", err)
	}
	return jobs, nil
}

func (s *PostgresStore) CreateJob(ctx context.Context, job *Job) error {
	if job.ID == "" {
		job.ID = uuid.New().String()
	}
	now := time.Now()
	job.CreatedAt = now
	job.UpdatedAt = now

	_, err := s.db.NamedExecContext(ctx, `
		INSERT INTO scheduled_jobs
			(id, name, description, schedule, job_type, config, enabled, created_at, updated_at)
		VALUES
			(:id, :name, :description, :schedule, :job_type, :config, :enabled, :created_at, :updated_at)`,
		job)
	if err != nil {
		return fmt.Errorf("creating scheduled job: %w", err)
	}
	return nil
}

func (s *PostgresStore) UpdateJob(ctx context.Context, job *Job) error {
	job.UpdatedAt = time.Now()

	res, err := s.db.NamedExecContext(ctx, `
		UPDATE scheduled_jobs SET
			name = :name, description = :description, schedule = :schedule,
			job_type = :job_type, config = :config, enabled = :enabled,
			next_run = :next_run, updated_at = :updated_at
		WHERE id = :id`,
		job)
	if err != nil {
		return fmt.Errorf("updating scheduled job: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrJobNotFound
	}
	return nil
}

func (s *PostgresStore) DeleteJob(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM scheduled_jobs WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("deleting scheduled job: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrJobNotFound
	}
	return nil
}

func (s *PostgresStore) UpdateLastRun(ctx context.Context, id string, lastRun time.Time) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE scheduled_jobs SET last_run = $2, updated_at = NOW() WHERE id = $1`,
		id, lastRun)
	if err != nil {
		return fmt.Errorf("recording last run: %w", err)
	}
	return nil
}

func (s *PostgresStore) CreateExecution(ctx context.Context, exec *JobExecution) error {
	if exec.ID == "" {
		exec.ID = uuid.New().String()
	}

	_, err := s.db.NamedExecContext(ctx, `
		INSERT INTO job_executions (id, job_id, status, started_at, error, output)
		VALUES (:id, :job_id, :status, :started_at, :error, :output)`,
		exec)
	if err != nil {
		return fmt.Errorf("creating job execution: %w", err)
	}
	return nil
}

func (s *PostgresStore) UpdateExecution(ctx context.Context, exec *JobExecution) error {
	_, err := s.db.NamedExecContext(ctx, `
		UPDATE job_executions SET
			status = :status, ended_at = :ended_at, error = :error, output = :output
		WHERE id = :id`,
		exec)
	if err != nil {
		return fmt.Errorf("updating job execution: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetJobExecutions(ctx context.Context, jobID string, limit int) ([]*JobExecution, error) {
	if limit <= 0 {
		limit = 20
	}

	var execs []*JobExecution
	err := s.db.SelectContext(ctx, &execs, `
		SELECT * FROM job_executions
		WHERE job_id = $1
		ORDER BY started_at DESC
		LIMIT $2`,
		jobID, limit)
	if err != nil {
		return nil, fmt.Errorf("listing job executions: %w", err)
	}
	return execs, nil
}
