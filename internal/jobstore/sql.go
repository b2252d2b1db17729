// Copyright 2025 James Ross
package jobstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/asyncforge/contentcore/internal/job"

	// Dialect-specific drivers registered via side-effecting imports, the
	// same pattern the teacher's exactly_once outbox uses for database/sql.
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
)

// Dialect selects placeholder syntax between the two relational backends the
// Job Store supports: Postgres for production, SQLite for local/dev/test
// (spec §2 calls the Job Store "backed by ... a relational store").
type Dialect int

const (
	DialectPostgres Dialect = iota
	DialectSQLite
)

// SQLStore implements Store over database/sql, sharing one schema across
// both dialects (TEXT/INTEGER/TIMESTAMP are portable between pq and sqlite3).
type SQLStore struct {
	db      *sql.DB
	dialect Dialect
}

// OpenPostgres opens a lib/pq connection and ensures the jobs table exists.
func OpenPostgres(ctx context.Context, dsn string) (*SQLStore, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	s := &SQLStore{db: db, dialect: DialectPostgres}
	if err := s.migrate(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

// OpenSQLite opens a mattn/go-sqlite3 connection (file path or ":memory:")
// and ensures the jobs table exists. Used for local development and tests
// that want real SQL semantics without a Postgres server.
func OpenSQLite(ctx context.Context, path string) (*SQLStore, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite3: %w", err)
	}
	s := &SQLStore{db: db, dialect: DialectSQLite}
	if err := s.migrate(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *SQLStore) migrate(ctx context.Context) error {
	// No bit-exact format is externally mandated (spec §6); the jobs row
	// stores the full Job as JSON alongside indexed projection columns so
	// new job types never require a migration.
	_, err := s.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS jobs (
			id TEXT PRIMARY KEY,
			user_id TEXT NOT NULL,
			status TEXT NOT NULL,
			created_at TIMESTAMP NOT NULL,
			completed_at TIMESTAMP,
			body TEXT NOT NULL
		)
	`)
	if err != nil {
		return fmt.Errorf("migrate jobs table: %w", err)
	}
	_, _ = s.db.ExecContext(ctx, `CREATE INDEX IF NOT EXISTS idx_jobs_status ON jobs(status, created_at)`)
	_, _ = s.db.ExecContext(ctx, `CREATE INDEX IF NOT EXISTS idx_jobs_user ON jobs(user_id, created_at)`)
	return nil
}

// ph renders a positional placeholder for the store's dialect: $N for
// Postgres, ? for SQLite.
func (s *SQLStore) ph(n int) string {
	if s.dialect == DialectPostgres {
		return fmt.Sprintf("$%d", n)
	}
	return "?"
}

func (s *SQLStore) Create(ctx context.Context, j job.Job) error {
	body, err := j.Marshal()
	if err != nil {
		return err
	}
	q := fmt.Sprintf(`INSERT INTO jobs (id, user_id, status, created_at, completed_at, body) VALUES (%s, %s, %s, %s, %s, %s)`,
		s.ph(1), s.ph(2), s.ph(3), s.ph(4), s.ph(5), s.ph(6))
	_, err = s.db.ExecContext(ctx, q, j.ID, j.UserID, string(j.Status), j.CreatedAt, nullTime(j.CompletedAt), string(body))
	return err
}

func (s *SQLStore) Get(ctx context.Context, id string) (job.Job, bool, error) {
	q := fmt.Sprintf(`SELECT body FROM jobs WHERE id = %s`, s.ph(1))
	var body string
	err := s.db.QueryRowContext(ctx, q, id).Scan(&body)
	if err == sql.ErrNoRows {
		return job.Job{}, false, nil
	}
	if err != nil {
		return job.Job{}, false, err
	}
	j, err := job.Unmarshal([]byte(body))
	if err != nil {
		return job.Job{}, false, err
	}
	return j, true, nil
}

func (s *SQLStore) UpdateStatus(ctx context.Context, id string, status job.Status, result json.RawMessage, errMsg string) error {
	j, ok, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	if !ok {
		return &NotFoundError{ID: id}
	}
	now := time.Now().UTC()
	if status == job.StatusProcessing && j.StartedAt == nil {
		j.StartedAt = &now
	}
	if status.Terminal() && j.CompletedAt == nil {
		j.CompletedAt = &now
	}
	j.Status = status
	if result != nil {
		j.Result = result
	}
	if errMsg != "" {
		j.Error = errMsg
	}
	body, err := j.Marshal()
	if err != nil {
		return err
	}
	q := fmt.Sprintf(`UPDATE jobs SET status = %s, completed_at = %s, body = %s WHERE id = %s`,
		s.ph(1), s.ph(2), s.ph(3), s.ph(4))
	_, err = s.db.ExecContext(ctx, q, string(status), nullTime(j.CompletedAt), string(body), id)
	return err
}

func (s *SQLStore) IncrementRetry(ctx context.Context, id string) (int, error) {
	j, ok, err := s.Get(ctx, id)
	if err != nil {
		return 0, err
	}
	if !ok {
		return 0, &NotFoundError{ID: id}
	}
	j.RetryCount++
	body, err := j.Marshal()
	if err != nil {
		return 0, err
	}
	q := fmt.Sprintf(`UPDATE jobs SET body = %s WHERE id = %s`, s.ph(1), s.ph(2))
	if _, err := s.db.ExecContext(ctx, q, string(body), id); err != nil {
		return 0, err
	}
	return j.RetryCount, nil
}

func (s *SQLStore) queryJobs(ctx context.Context, whereCol, whereVal string, limit int) ([]job.Job, error) {
	if limit <= 0 {
		limit = 100
	}
	q := fmt.Sprintf(`SELECT body FROM jobs WHERE %s = %s ORDER BY created_at DESC LIMIT %s`, whereCol, s.ph(1), s.ph(2))
	rows, err := s.db.QueryContext(ctx, q, whereVal, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []job.Job
	for rows.Next() {
		var body string
		if err := rows.Scan(&body); err != nil {
			return nil, err
		}
		j, err := job.Unmarshal([]byte(body))
		if err != nil {
			return nil, err
		}
		out = append(out, j)
	}
	return out, rows.Err()
}

func (s *SQLStore) ListByStatus(ctx context.Context, status job.Status, limit int) ([]job.Job, error) {
	return s.queryJobs(ctx, "status", string(status), limit)
}

func (s *SQLStore) ListByUser(ctx context.Context, userID string, limit int) ([]job.Job, error) {
	return s.queryJobs(ctx, "user_id", userID, limit)
}

func (s *SQLStore) DeleteCompletedBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	q := fmt.Sprintf(`DELETE FROM jobs WHERE status IN ('completed','failed','dead') AND completed_at < %s`, s.ph(1))
	res, err := s.db.ExecContext(ctx, q, cutoff)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (s *SQLStore) Close() error { return s.db.Close() }

func nullTime(t *time.Time) interface{} {
	if t == nil {
		return nil
	}
	return *t
}
