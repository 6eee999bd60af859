// Copyright 2026 The Saferclaw Authors
// SPDX-License-Identifier: Apache-2.0

// Package queue persists action requests as jobs and executes them
// later through the same policy pipeline a direct caller uses.
//
// Transitions are atomic: a claim moves exactly one job from queued to
// running inside an immediate transaction, so concurrent workers on
// one store never run the same job twice. Denied jobs park as blocked
// and are never retried; execution failures retry until the attempt
// budget is spent.
package queue

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"zombiezen.com/go/sqlite"
	"zombiezen.com/go/sqlite/sqlitex"

	"github.com/saferclaw/saferclaw/lib/action"
	"github.com/saferclaw/saferclaw/lib/clock"
	"github.com/saferclaw/saferclaw/lib/sqlitepool"
)

var (
	// ErrNoJob reports that no queued job was available to claim.
	// Benign; pollers sleep and retry.
	ErrNoJob = errors.New("queue: no job available")
	// ErrNotFound reports that no job has the requested identifier.
	ErrNotFound = errors.New("queue: job not found")
	// ErrTerminal reports a transition attempted on a job already in
	// a terminal state.
	ErrTerminal = errors.New("queue: job is in a terminal state")
)

const schema = `
CREATE TABLE IF NOT EXISTS jobs (
	id           INTEGER PRIMARY KEY AUTOINCREMENT,
	kind         TEXT NOT NULL,
	payload      TEXT NOT NULL,
	status       TEXT NOT NULL DEFAULT 'queued',
	attempts     INTEGER NOT NULL DEFAULT 0,
	max_attempts INTEGER NOT NULL,
	created_at   TEXT NOT NULL,
	claimed_at   TEXT NOT NULL DEFAULT '',
	finished_at  TEXT NOT NULL DEFAULT '',
	last_error   TEXT NOT NULL DEFAULT '',
	result       TEXT NOT NULL DEFAULT ''
);
CREATE INDEX IF NOT EXISTS jobs_by_status ON jobs (status, id);
`

// Store is the durable job store. Safe for concurrent use; every
// method takes its own pooled connection.
type Store struct {
	pool   *sqlitepool.Pool
	clock  clock.Clock
	logger *slog.Logger
}

// Open creates or opens the job store at path.
func Open(path string, clk clock.Clock, logger *slog.Logger) (*Store, error) {
	if clk == nil {
		clk = clock.Real()
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	pool, err := sqlitepool.Open(sqlitepool.Config{
		Path:   path,
		Logger: logger,
		OnConnect: func(conn *sqlite.Conn) error {
			return sqlitex.ExecuteScript(conn, schema, nil)
		},
	})
	if err != nil {
		return nil, err
	}
	return &Store{pool: pool, clock: clk, logger: logger}, nil
}

// Close releases the store's connections.
func (s *Store) Close() error {
	return s.pool.Close()
}

// Enqueue persists a request as a new queued job and returns it.
func (s *Store) Enqueue(ctx context.Context, request action.Request, maxAttempts int) (Job, error) {
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	payload, err := action.MarshalPayload(request)
	if err != nil {
		return Job{}, fmt.Errorf("queue: encoding payload: %w", err)
	}

	conn, err := s.pool.Take(ctx)
	if err != nil {
		return Job{}, err
	}
	defer s.pool.Put(conn)

	now := s.clock.Now().UTC().Format(time.RFC3339Nano)
	err = sqlitex.Execute(conn, `
		INSERT INTO jobs (kind, payload, status, max_attempts, created_at)
		VALUES (?, ?, ?, ?, ?)`,
		&sqlitex.ExecOptions{
			Args: []any{request.Kind.String(), string(payload), string(StatusQueued), maxAttempts, now},
		})
	if err != nil {
		return Job{}, fmt.Errorf("queue: enqueue: %w", err)
	}

	id := conn.LastInsertRowID()
	s.logger.Info("job enqueued", "job_id", id, "kind", request.Kind.String())
	return s.getOn(conn, id)
}

// ClaimNext atomically claims the oldest queued job, moving it to
// running. Returns ErrNoJob when nothing is queued. The selection and
// the status flip happen inside one immediate transaction, so under N
// concurrent claims of a single queued job exactly one caller wins.
func (s *Store) ClaimNext(ctx context.Context) (Job, error) {
	conn, err := s.pool.Take(ctx)
	if err != nil {
		return Job{}, err
	}
	defer s.pool.Put(conn)

	endTx, err := sqlitex.ImmediateTransaction(conn)
	if err != nil {
		return Job{}, fmt.Errorf("queue: claim transaction: %w", err)
	}
	defer endTx(&err)

	var id int64
	found := false
	err = sqlitex.Execute(conn, `
		SELECT id FROM jobs WHERE status = ? ORDER BY id LIMIT 1`,
		&sqlitex.ExecOptions{
			Args: []any{string(StatusQueued)},
			ResultFunc: func(stmt *sqlite.Stmt) error {
				id = stmt.ColumnInt64(0)
				found = true
				return nil
			},
		})
	if err != nil {
		return Job{}, fmt.Errorf("queue: claim select: %w", err)
	}
	if !found {
		err = ErrNoJob
		return Job{}, err
	}

	now := s.clock.Now().UTC().Format(time.RFC3339Nano)
	err = sqlitex.Execute(conn, `
		UPDATE jobs SET status = ?, claimed_at = ? WHERE id = ?`,
		&sqlitex.ExecOptions{
			Args: []any{string(StatusRunning), now, id},
		})
	if err != nil {
		return Job{}, fmt.Errorf("queue: claim update: %w", err)
	}

	return s.getOn(conn, id)
}

// MarkDone moves a running job to done and records its result.
func (s *Store) MarkDone(ctx context.Context, id int64, result string) error {
	return s.finish(ctx, id, StatusDone, result, "")
}

// MarkBlocked parks a job as blocked with the policy denial reason.
// Blocked is terminal: the same request re-validates to the same
// denial, so retrying is pointless.
func (s *Store) MarkBlocked(ctx context.Context, id int64, reason string) error {
	return s.finish(ctx, id, StatusBlocked, "", reason)
}

// MarkFailed records an execution failure. The attempt count
// increments; the job re-queues if attempts remain, otherwise it moves
// to failed. Returns the job after the transition.
func (s *Store) MarkFailed(ctx context.Context, id int64, cause string) (Job, error) {
	conn, err := s.pool.Take(ctx)
	if err != nil {
		return Job{}, err
	}
	defer s.pool.Put(conn)

	endTx, err := sqlitex.ImmediateTransaction(conn)
	if err != nil {
		return Job{}, fmt.Errorf("queue: fail transaction: %w", err)
	}
	defer endTx(&err)

	job, err := s.getOn(conn, id)
	if err != nil {
		return Job{}, err
	}
	if job.Status.terminal() {
		err = fmt.Errorf("%w: job %d is %s", ErrTerminal, id, job.Status)
		return Job{}, err
	}

	attempts := job.Attempts + 1
	next := StatusQueued
	finishedAt := ""
	if attempts >= job.MaxAttempts {
		next = StatusFailed
		finishedAt = s.clock.Now().UTC().Format(time.RFC3339Nano)
	}

	err = sqlitex.Execute(conn, `
		UPDATE jobs SET status = ?, attempts = ?, last_error = ?, finished_at = ?
		WHERE id = ?`,
		&sqlitex.ExecOptions{
			Args: []any{string(next), attempts, cause, finishedAt, id},
		})
	if err != nil {
		return Job{}, fmt.Errorf("queue: fail update: %w", err)
	}

	s.logger.Info("job attempt failed",
		"job_id", id, "attempt", attempts, "max_attempts", job.MaxAttempts, "status", string(next))
	return s.getOn(conn, id)
}

// Get returns the job with the given identifier.
func (s *Store) Get(ctx context.Context, id int64) (Job, error) {
	conn, err := s.pool.Take(ctx)
	if err != nil {
		return Job{}, err
	}
	defer s.pool.Put(conn)
	return s.getOn(conn, id)
}

// List returns jobs in creation order, optionally filtered by status
// and capped at limit. An empty status returns every status; a limit
// of zero or less returns every matching job.
func (s *Store) List(ctx context.Context, status Status, limit int) ([]Job, error) {
	conn, err := s.pool.Take(ctx)
	if err != nil {
		return nil, err
	}
	defer s.pool.Put(conn)

	query := `SELECT ` + jobColumns + ` FROM jobs ORDER BY id`
	args := []any{}
	if status != "" {
		query = `SELECT ` + jobColumns + ` FROM jobs WHERE status = ? ORDER BY id`
		args = append(args, string(status))
	}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	var jobs []Job
	err = sqlitex.Execute(conn, query, &sqlitex.ExecOptions{
		Args: args,
		ResultFunc: func(stmt *sqlite.Stmt) error {
			job, err := scanJob(stmt)
			if err != nil {
				return err
			}
			jobs = append(jobs, job)
			return nil
		},
	})
	if err != nil {
		return nil, fmt.Errorf("queue: list: %w", err)
	}
	return jobs, nil
}

// finish moves a running job into a terminal state.
func (s *Store) finish(ctx context.Context, id int64, status Status, result, cause string) error {
	conn, err := s.pool.Take(ctx)
	if err != nil {
		return err
	}
	defer s.pool.Put(conn)

	endTx, err := sqlitex.ImmediateTransaction(conn)
	if err != nil {
		return fmt.Errorf("queue: finish transaction: %w", err)
	}
	defer endTx(&err)

	job, err := s.getOn(conn, id)
	if err != nil {
		return err
	}
	if job.Status.terminal() {
		err = fmt.Errorf("%w: job %d is %s", ErrTerminal, id, job.Status)
		return err
	}

	now := s.clock.Now().UTC().Format(time.RFC3339Nano)
	err = sqlitex.Execute(conn, `
		UPDATE jobs SET status = ?, result = ?, last_error = ?, finished_at = ?
		WHERE id = ?`,
		&sqlitex.ExecOptions{
			Args: []any{string(status), result, cause, now, id},
		})
	if err != nil {
		return fmt.Errorf("queue: finish update: %w", err)
	}
	s.logger.Info("job finished", "job_id", id, "status", string(status))
	return nil
}

const jobColumns = `id, kind, payload, status, attempts, max_attempts,
	created_at, claimed_at, finished_at, last_error, result`

func (s *Store) getOn(conn *sqlite.Conn, id int64) (Job, error) {
	var job Job
	found := false
	err := sqlitex.Execute(conn, `SELECT `+jobColumns+` FROM jobs WHERE id = ?`,
		&sqlitex.ExecOptions{
			Args: []any{id},
			ResultFunc: func(stmt *sqlite.Stmt) error {
				var err error
				job, err = scanJob(stmt)
				found = true
				return err
			},
		})
	if err != nil {
		return Job{}, fmt.Errorf("queue: get %d: %w", id, err)
	}
	if !found {
		return Job{}, fmt.Errorf("%w: %d", ErrNotFound, id)
	}
	return job, nil
}

func scanJob(stmt *sqlite.Stmt) (Job, error) {
	kind, err := action.ParseKind(stmt.ColumnText(1))
	if err != nil {
		return Job{}, err
	}
	job := Job{
		ID:          stmt.ColumnInt64(0),
		Kind:        kind,
		Payload:     []byte(stmt.ColumnText(2)),
		Status:      Status(stmt.ColumnText(3)),
		Attempts:    stmt.ColumnInt(4),
		MaxAttempts: stmt.ColumnInt(5),
		LastError:   stmt.ColumnText(9),
		Result:      stmt.ColumnText(10),
	}
	if job.CreatedAt, err = parseTime(stmt.ColumnText(6)); err != nil {
		return Job{}, err
	}
	if job.ClaimedAt, err = parseTime(stmt.ColumnText(7)); err != nil {
		return Job{}, err
	}
	if job.FinishedAt, err = parseTime(stmt.ColumnText(8)); err != nil {
		return Job{}, err
	}
	return job, nil
}

func parseTime(text string) (time.Time, error) {
	if text == "" {
		return time.Time{}, nil
	}
	parsed, err := time.Parse(time.RFC3339Nano, text)
	if err != nil {
		return time.Time{}, fmt.Errorf("queue: bad timestamp %q: %w", text, err)
	}
	return parsed, nil
}
