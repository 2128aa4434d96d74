/* Copyright (c) 2025 Hamed Shams <https://hamedshams.com>
 * SPDX-License-Identifier: BSD-3-Clause */
package services

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/sioXD/GitLab-TimeTool/internal/config"
	"github.com/sioXD/GitLab-TimeTool/internal/domain"
	"github.com/sioXD/GitLab-TimeTool/internal/stats"
)

type LLM interface {
	Summarize(ctx context.Context, facts any) (string, error)
	Model() string
}

type Notifier interface {
	SendMessagePlain(ctx context.Context, chatID int64, text string) error
	SendMarkdownV2(ctx context.Context, chatID int64, text string) error
}

// Store persists job runs and generated reports.
type Store interface {
	StartJobRun(ctx context.Context, kind, epicRootID string) (int64, error)
	FinishJobRun(ctx context.Context, id int64, items int, success bool, errStr string) error
	GetLastRun(ctx context.Context) (*domain.JobRun, error)
	SaveReport(ctx context.Context, r domain.Report) (int64, error)
	LatestReport(ctx context.Context) (*domain.Report, error)
	SaveSnapshot(ctx context.Context, s domain.SnapshotRecord) error
	SnapshotHistory(ctx context.Context, limit int) ([]domain.SnapshotTotal, error)
}

// Snapshot is one complete load. It is never modified after it is
// published.
type Snapshot struct {
	ID       string
	LoadedAt time.Time
	Root     *domain.Epic
	Rows     []stats.Row
	Users    []string
	Labels   []string
}

type Service struct {
	cfg   config.Config
	log   zerolog.Logger
	store Store
	src   Fetcher
	llm   LLM
	tg    Notifier
	now   func() time.Time

	refreshMu sync.Mutex
	snap      atomic.Pointer[Snapshot]
}

// New wires the service. llm and tg may be nil when reports are not
// configured.
func New(cfg config.Config, log zerolog.Logger, store Store, src Fetcher, llm LLM, tg Notifier) *Service {
	if store == nil {
		store = NewMemoryStore()
	}
	return &Service{cfg: cfg, log: log, store: store, src: src, llm: llm, tg: tg, now: time.Now}
}

// Refresh rebuilds the tree off to the side and publishes it only when the
// whole build succeeded. Refreshes are serialized.
func (s *Service) Refresh(ctx context.Context) (*Snapshot, error) {
	if err := s.cfg.Validate(); err != nil {
		return nil, err
	}
	s.refreshMu.Lock()
	defer s.refreshMu.Unlock()
	return s.refreshLocked(ctx)
}

func (s *Service) refreshLocked(ctx context.Context) (*Snapshot, error) {
	runID, err := s.store.StartJobRun(ctx, "refresh", s.cfg.EpicRootID)
	if err != nil {
		s.log.Error().Err(err).Msg("start job run failed")
	}
	var items int
	var buildErr error
	defer func() {
		if runID != 0 {
			errStr := ""
			if buildErr != nil {
				errStr = buildErr.Error()
			}
			if err := s.store.FinishJobRun(context.WithoutCancel(ctx), runID, items, buildErr == nil, errStr); err != nil {
				s.log.Error().Err(err).Int64("run", runID).Msg("finish job run failed")
			}
		}
	}()

	start := s.now()
	s.log.Info().Str("group", s.cfg.GroupPath).Str("epic", s.cfg.EpicRootID).Msg("refresh: start")
	res, buildErr := BuildTree(ctx, s.src, s.cfg.GroupPath, s.cfg.EpicRootID, s.log)
	if buildErr != nil {
		s.log.Error().Err(buildErr).Msg("refresh: build failed")
		return nil, buildErr
	}
	res.Root.Accumulate()
	snap := &Snapshot{
		ID:       uuid.NewString(),
		LoadedAt: s.now(),
		Root:     res.Root,
		Rows:     stats.Flatten(res.Root, res.Users, res.Labels),
		Users:    res.Users,
		Labels:   res.Labels,
	}
	items = len(snap.Rows)
	s.snap.Store(snap)
	if err := s.store.SaveSnapshot(ctx, s.archive(snap)); err != nil {
		s.log.Error().Err(err).Str("snapshot", snap.ID).Msg("archive snapshot failed")
	}
	s.log.Info().Str("snapshot", snap.ID).Int("rows", len(snap.Rows)).Int("issues", res.Issues).
		Int("users", len(res.Users)).Dur("took", s.now().Sub(start)).Msg("refresh: done")
	return snap, nil
}

// Current returns the published snapshot, loading it on first use.
func (s *Service) Current(ctx context.Context) (*Snapshot, error) {
	if snap := s.snap.Load(); snap != nil {
		return snap, nil
	}
	if err := s.cfg.Validate(); err != nil {
		return nil, err
	}
	s.refreshMu.Lock()
	defer s.refreshMu.Unlock()
	if snap := s.snap.Load(); snap != nil {
		return snap, nil
	}
	return s.refreshLocked(ctx)
}

// GetLastRun returns nil when nothing has run yet.
func (s *Service) GetLastRun(ctx context.Context) (*domain.JobRun, error) {
	return s.store.GetLastRun(ctx)
}

// Loaded returns the published snapshot without triggering a load.
func (s *Service) Loaded() (*Snapshot, error) {
	if snap := s.snap.Load(); snap != nil {
		return snap, nil
	}
	return nil, domain.ErrNoSnapshot
}

func (s *Service) archive(snap *Snapshot) domain.SnapshotRecord {
	rec := domain.SnapshotRecord{ID: snap.ID, LoadedAt: snap.LoadedAt, EpicRootID: s.cfg.EpicRootID}
	for _, r := range snap.Rows {
		if _, ok := r.Issue(); ok {
			rec.Issues = append(rec.Issues, domain.SnapshotIssue{
				ID: r.ID, ParentID: r.ParentID, Title: r.Title, State: r.State, Spent: r.Spent, Estimate: r.Estimate,
			})
		}
	}
	return rec
}

// History lists the archived refreshes, newest first.
func (s *Service) History(ctx context.Context, limit int) ([]domain.SnapshotTotal, error) {
	return s.store.SnapshotHistory(ctx, limit)
}
