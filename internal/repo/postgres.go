/* Copyright (c) 2025 Hamed Shams <https://hamedshams.com>
 * SPDX-License-Identifier: BSD-3-Clause */
package repo

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"github.com/sioXD/GitLab-TimeTool/internal/config"
	"github.com/sioXD/GitLab-TimeTool/internal/domain"
)

var schema = []string{
	`CREATE TABLE IF NOT EXISTS job_runs(
		id bigserial PRIMARY KEY,
		kind text NOT NULL,
		epic_root_id text NOT NULL DEFAULT '',
		started_at timestamptz NOT NULL,
		finished_at timestamptz,
		items int,
		success boolean,
		error text)`,
	`CREATE TABLE IF NOT EXISTS reports(
		id bigserial PRIMARY KEY,
		created_at timestamptz NOT NULL,
		snapshot_id text NOT NULL,
		days int NOT NULL,
		model text NOT NULL,
		body text NOT NULL)`,
	`CREATE TABLE IF NOT EXISTS snapshots(
		id text PRIMARY KEY,
		loaded_at timestamptz NOT NULL,
		epic_root_id text NOT NULL)`,
	`CREATE TABLE IF NOT EXISTS snapshot_issues(
		snapshot_id text NOT NULL REFERENCES snapshots(id) ON DELETE CASCADE,
		issue_id text NOT NULL,
		parent_id text NOT NULL,
		title text NOT NULL,
		state text NOT NULL,
		spent_hours double precision NOT NULL,
		estimate_hours double precision NOT NULL,
		PRIMARY KEY (snapshot_id, issue_id))`,
}

type DB struct {
	Pool *pgxpool.Pool
	log  zerolog.Logger
}

func Open(ctx context.Context, cfg config.Config, log zerolog.Logger) (*DB, error) {
	pool, err := pgxpool.New(ctx, cfg.DBDSN)
	if err != nil {
		return nil, fmt.Errorf("db connect: %w", err)
	}
	ctx2, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := pool.Ping(ctx2); err != nil {
		pool.Close()
		return nil, fmt.Errorf("db ping: %w", err)
	}
	return &DB{Pool: pool, log: log}, nil
}

func MustOpen(ctx context.Context, cfg config.Config, log zerolog.Logger) *DB {
	d, err := Open(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("db open failed")
	}
	return d
}

func (d *DB) Close() { d.Pool.Close() }

// Migrate creates the tables if they are missing.
func (d *DB) Migrate(ctx context.Context) error {
	batch := &pgx.Batch{}
	for _, q := range schema {
		batch.Queue(q)
	}
	br := d.Pool.SendBatch(ctx, batch)
	defer br.Close()
	for range schema {
		if _, err := br.Exec(); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}

type Repository struct {
	db  *DB
	log zerolog.Logger

	mu    sync.Mutex
	locks map[int64]*pgxpool.Conn
}

func NewRepository(d *DB, log zerolog.Logger) *Repository {
	return &Repository{db: d, log: log, locks: map[int64]*pgxpool.Conn{}}
}

// TryAdvisoryLock takes a session lock and pins the connection that holds
// it until AdvisoryUnlock.
func (r *Repository) TryAdvisoryLock(ctx context.Context, key int64) (bool, error) {
	conn, err := r.db.Pool.Acquire(ctx)
	if err != nil {
		return false, err
	}
	var ok bool
	if err := conn.QueryRow(ctx, "SELECT pg_try_advisory_lock($1)", key).Scan(&ok); err != nil {
		conn.Release()
		return false, err
	}
	if !ok {
		conn.Release()
		return false, nil
	}
	r.mu.Lock()
	r.locks[key] = conn
	r.mu.Unlock()
	return true, nil
}

func (r *Repository) AdvisoryUnlock(ctx context.Context, key int64) error {
	r.mu.Lock()
	conn, held := r.locks[key]
	delete(r.locks, key)
	r.mu.Unlock()
	if !held {
		return errors.New("advisory lock not held")
	}
	defer conn.Release()
	var ok bool
	err := conn.QueryRow(ctx, "SELECT pg_advisory_unlock($1)", key).Scan(&ok)
	if !ok && err == nil {
		return errors.New("advisory unlock returned false")
	}
	return err
}

// Job runs
func (r *Repository) StartJobRun(ctx context.Context, kind, epicRootID string) (int64, error) {
	const q = `INSERT INTO job_runs(kind, epic_root_id, started_at, success) VALUES($1, $2, now(), false) RETURNING id`
	var id int64
	if err := r.db.Pool.QueryRow(ctx, q, kind, epicRootID).Scan(&id); err != nil {
		return 0, err
	}
	return id, nil
}

func (r *Repository) FinishJobRun(ctx context.Context, id int64, items int, success bool, errStr string) error {
	const q = `UPDATE job_runs SET finished_at=now(), items=$2, success=$3, error=$4 WHERE id=$1`
	_, err := r.db.Pool.Exec(ctx, q, id, items, success, errStr)
	return err
}

func (r *Repository) GetLastRun(ctx context.Context) (*domain.JobRun, error) {
	const q = `SELECT id, kind, epic_root_id, started_at, finished_at,
		coalesce(items,0), coalesce(success,false), coalesce(error,'')
		FROM job_runs ORDER BY id DESC LIMIT 1`
	lr := &domain.JobRun{}
	err := r.db.Pool.QueryRow(ctx, q).Scan(&lr.ID, &lr.Kind, &lr.EpicRootID, &lr.StartedAt, &lr.FinishedAt, &lr.Items, &lr.Success, &lr.Error)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return lr, nil
}

// Reports
func (r *Repository) SaveReport(ctx context.Context, rep domain.Report) (int64, error) {
	const q = `INSERT INTO reports(created_at, snapshot_id, days, model, body) VALUES($1,$2,$3,$4,$5) RETURNING id`
	var id int64
	if err := r.db.Pool.QueryRow(ctx, q, rep.CreatedAt, rep.SnapshotID, rep.Days, rep.Model, rep.Text).Scan(&id); err != nil {
		return 0, err
	}
	return id, nil
}

func (r *Repository) LatestReport(ctx context.Context) (*domain.Report, error) {
	const q = `SELECT id, created_at, snapshot_id, days, model, body FROM reports ORDER BY id DESC LIMIT 1`
	rep := &domain.Report{}
	err := r.db.Pool.QueryRow(ctx, q).Scan(&rep.ID, &rep.CreatedAt, &rep.SnapshotID, &rep.Days, &rep.Model, &rep.Text)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return rep, nil
}

// SaveSnapshot archives the issue totals of one refresh in a single batch.
func (r *Repository) SaveSnapshot(ctx context.Context, s domain.SnapshotRecord) error {
	batch := &pgx.Batch{}
	batch.Queue(`INSERT INTO snapshots(id, loaded_at, epic_root_id) VALUES($1,$2,$3) ON CONFLICT (id) DO NOTHING`,
		s.ID, s.LoadedAt, s.EpicRootID)
	const q = `INSERT INTO snapshot_issues(snapshot_id, issue_id, parent_id, title, state, spent_hours, estimate_hours)
		VALUES($1,$2,$3,$4,$5,$6,$7)
		ON CONFLICT (snapshot_id, issue_id) DO NOTHING`
	for _, it := range s.Issues {
		batch.Queue(q, s.ID, it.ID, it.ParentID, it.Title, string(it.State), it.Spent, it.Estimate)
	}
	br := r.db.Pool.SendBatch(ctx, batch)
	defer br.Close()
	for i := 0; i < batch.Len(); i++ {
		if _, err := br.Exec(); err != nil {
			return err
		}
	}
	return nil
}

// SnapshotHistory returns the total spent hours of the most recent archived
// refreshes, newest first.
func (r *Repository) SnapshotHistory(ctx context.Context, limit int) ([]domain.SnapshotTotal, error) {
	if limit <= 0 {
		limit = 30
	}
	const q = `SELECT s.id, s.loaded_at, count(i.issue_id), coalesce(sum(i.spent_hours),0), coalesce(sum(i.estimate_hours),0)
		FROM snapshots s LEFT JOIN snapshot_issues i ON i.snapshot_id = s.id
		GROUP BY s.id, s.loaded_at ORDER BY s.loaded_at DESC LIMIT $1`
	rows, err := r.db.Pool.Query(ctx, q, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []domain.SnapshotTotal
	for rows.Next() {
		var t domain.SnapshotTotal
		if err := rows.Scan(&t.ID, &t.LoadedAt, &t.Issues, &t.Spent, &t.Estimate); err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}
