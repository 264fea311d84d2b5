package report

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "github.com/jackc/pgx/v5/stdlib"
)

// DB is the subset of *sql.DB the Postgres sink uses.
type DB interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

const (
	schemaInstanceEvents = `CREATE TABLE IF NOT EXISTS gridci_instance_events (
	event_id   UUID PRIMARY KEY,
	run_id     TEXT NOT NULL,
	instance   TEXT NOT NULL,
	job        TEXT NOT NULL,
	matrix     JSONB NOT NULL,
	outcome    TEXT NOT NULL,
	reason     TEXT NOT NULL,
	attempt    INTEGER NOT NULL,
	final      BOOLEAN NOT NULL,
	started_at TIMESTAMPTZ,
	ended_at   TIMESTAMPTZ,
	error      TEXT
)`
	schemaRuns = `CREATE TABLE IF NOT EXISTS gridci_runs (
	run_id      TEXT PRIMARY KEY,
	pipeline    TEXT NOT NULL,
	outcome     TEXT NOT NULL,
	jobs        JSONB NOT NULL,
	started_at  TIMESTAMPTZ NOT NULL,
	finished_at TIMESTAMPTZ NOT NULL,
	error       TEXT
)`

	insertInstanceEvent = `INSERT INTO gridci_instance_events (
	event_id, run_id, instance, job, matrix, outcome, reason, attempt, final, started_at, ended_at, error
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
ON CONFLICT (event_id) DO NOTHING`

	insertRun = `INSERT INTO gridci_runs (
	run_id, pipeline, outcome, jobs, started_at, finished_at, error
) VALUES ($1, $2, $3, $4, $5, $6, $7)
ON CONFLICT (run_id) DO NOTHING`
)

// PostgresSink persists the event stream.
type PostgresSink struct {
	db DB
}

func NewPostgresSink(db DB) *PostgresSink {
	return &PostgresSink{db: db}
}

// OpenPostgres opens and pings a database using the pgx driver.
func OpenPostgres(ctx context.Context, url string, pingTimeout time.Duration) (*sql.DB, error) {
	if url == "" {
		return nil, errors.New("database url is required")
	}
	db, err := sql.Open("pgx", url)
	if err != nil {
		return nil, fmt.Errorf("open: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping: %w", err)
	}
	return db, nil
}

// EnsureSchema creates the sink's tables when missing.
func (s *PostgresSink) EnsureSchema(ctx context.Context) error {
	for _, stmt := range []string{schemaInstanceEvents, schemaRuns} {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("ensure report schema: %w", err)
		}
	}
	return nil
}

func (s *PostgresSink) InstanceEvent(ctx context.Context, ev InstanceEvent) error {
	matrix := ev.Matrix
	if matrix == nil {
		matrix = map[string]string{}
	}
	matrixJSON, err := json.Marshal(matrix)
	if err != nil {
		return fmt.Errorf("marshal matrix: %w", err)
	}

	_, err = s.db.ExecContext(ctx, insertInstanceEvent,
		uuid.NewString(),
		ev.RunID,
		ev.Instance,
		ev.Job,
		matrixJSON,
		ev.Outcome.String(),
		string(ev.Reason),
		ev.Attempt,
		ev.Final,
		nullTime(ev.Start),
		nullTime(ev.End),
		nullString(ev.Error),
	)
	if err != nil {
		return fmt.Errorf("insert instance event: %w", err)
	}
	return nil
}

func (s *PostgresSink) RunFinished(ctx context.Context, summary RunSummary) error {
	jobs := make(map[string]string, len(summary.Jobs))
	for id, o := range summary.Jobs {
		jobs[id] = o.String()
	}
	jobsJSON, err := json.Marshal(jobs)
	if err != nil {
		return fmt.Errorf("marshal jobs: %w", err)
	}

	_, err = s.db.ExecContext(ctx, insertRun,
		summary.RunID,
		summary.Pipeline,
		summary.Outcome.String(),
		jobsJSON,
		summary.Start.UTC(),
		summary.End.UTC(),
		nullString(summary.Error),
	)
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}
	return nil
}

func nullTime(t time.Time) sql.NullTime {
	if t.IsZero() {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: t.UTC(), Valid: true}
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
