/* Copyright (c) 2025 Hamed Shams <https://hamedshams.com>
 * SPDX-License-Identifier: BSD-3-Clause */
package services

import (
	"context"
	"fmt"
	"time"

	"github.com/sioXD/GitLab-TimeTool/internal/domain"
	"github.com/sioXD/GitLab-TimeTool/internal/stats"
)

// Query selects the dashboard window. Days wins over Start/End; all zero
// means the whole history.
type Query struct {
	Days  int
	Start time.Time
	End   time.Time
}

// Dashboard is the payload served to the frontend.
type Dashboard struct {
	SnapshotID     string      `json:"snapshot_id"`
	LoadedAt       time.Time   `json:"loaded_at"`
	GroupPath      string      `json:"group_path"`
	RepositoryName string      `json:"repository_name"`
	Users          []string    `json:"users"`
	Labels         []string    `json:"labels"`
	Rows           []stats.Row `json:"data"`
	Stats          stats.Stats `json:"stats"`
}

func (q Query) window(now time.Time) (stats.Window, error) {
	if q.Days < 0 {
		return stats.Window{}, fmt.Errorf("%w: days must not be negative", domain.ErrInvalidWindow)
	}
	if q.Days > stats.MaxWindowDays {
		return stats.Window{}, fmt.Errorf("%w: days must not exceed %d", domain.ErrInvalidWindow, stats.MaxWindowDays)
	}
	if q.Days > 0 {
		return stats.LastDays(now, q.Days), nil
	}
	if q.Start.IsZero() && q.End.IsZero() {
		return stats.Window{Location: now.Location()}, nil
	}
	w, err := stats.Between(q.Start, q.End, now.Location())
	if err != nil {
		return stats.Window{}, err
	}
	// an open end runs to now
	if w.End.IsZero() && w.Start.AddDate(0, 0, stats.MaxWindowDays).Before(now) {
		return stats.Window{}, fmt.Errorf("%w: range exceeds %d days", domain.ErrInvalidWindow, stats.MaxWindowDays)
	}
	return w, nil
}

// Dashboard computes rows and statistics for q over the current snapshot.
func (s *Service) Dashboard(ctx context.Context, q Query) (*Dashboard, error) {
	now := s.now()
	w, err := q.window(now)
	if err != nil {
		return nil, err
	}
	snap, err := s.Current(ctx)
	if err != nil {
		return nil, err
	}
	rows := snap.Rows
	if !w.Unbounded() {
		rows = stats.FilterByWindow(snap.Root, snap.Users, snap.Labels, w, s.log)
	}
	st := stats.Compute(stats.Input{
		Rows:    rows,
		Users:   snap.Users,
		Labels:  snap.Labels,
		Targets: s.cfg.TargetLabels,
		Window:  w,
		Now:     now,
		Log:     s.log,
	})
	return &Dashboard{
		SnapshotID:     snap.ID,
		LoadedAt:       snap.LoadedAt,
		GroupPath:      s.cfg.GroupPath,
		RepositoryName: s.cfg.RepositoryName,
		Users:          snap.Users,
		Labels:         snap.Labels,
		Rows:           rows,
		Stats:          st,
	}, nil
}
