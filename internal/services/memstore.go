/* Copyright (c) 2025 Hamed Shams <https://hamedshams.com>
 * SPDX-License-Identifier: BSD-3-Clause */
package services

import (
	"context"
	"sync"
	"time"

	"github.com/sioXD/GitLab-TimeTool/internal/domain"
)

// MemoryStore keeps job runs and reports in process. It is used when no
// database is configured.
type MemoryStore struct {
	mu      sync.Mutex
	runs    []domain.JobRun
	reports []domain.Report
	snaps   []domain.SnapshotRecord
	locks   map[int64]bool
}

func NewMemoryStore() *MemoryStore { return &MemoryStore{locks: map[int64]bool{}} }

func (m *MemoryStore) StartJobRun(ctx context.Context, kind, epicRootID string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := int64(len(m.runs) + 1)
	m.runs = append(m.runs, domain.JobRun{ID: id, Kind: kind, StartedAt: time.Now(), EpicRootID: epicRootID})
	return id, nil
}

func (m *MemoryStore) FinishJobRun(ctx context.Context, id int64, items int, success bool, errStr string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if id <= 0 || int(id) > len(m.runs) {
		return nil
	}
	now := time.Now()
	r := &m.runs[id-1]
	r.FinishedAt, r.Items, r.Success, r.Error = &now, items, success, errStr
	return nil
}

func (m *MemoryStore) GetLastRun(ctx context.Context) (*domain.JobRun, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.runs) == 0 {
		return nil, nil
	}
	r := m.runs[len(m.runs)-1]
	return &r, nil
}

func (m *MemoryStore) SaveReport(ctx context.Context, r domain.Report) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r.ID = int64(len(m.reports) + 1)
	m.reports = append(m.reports, r)
	return r.ID, nil
}

func (m *MemoryStore) LatestReport(ctx context.Context) (*domain.Report, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.reports) == 0 {
		return nil, nil
	}
	r := m.reports[len(m.reports)-1]
	return &r, nil
}

func (m *MemoryStore) SaveSnapshot(ctx context.Context, s domain.SnapshotRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.snaps = append(m.snaps, s)
	return nil
}

func (m *MemoryStore) SnapshotHistory(ctx context.Context, limit int) ([]domain.SnapshotTotal, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if limit <= 0 {
		limit = 30
	}
	var out []domain.SnapshotTotal
	for i := len(m.snaps) - 1; i >= 0 && len(out) < limit; i-- {
		s := m.snaps[i]
		t := domain.SnapshotTotal{ID: s.ID, LoadedAt: s.LoadedAt, Issues: len(s.Issues)}
		for _, it := range s.Issues {
			t.Spent += it.Spent
			t.Estimate += it.Estimate
		}
		out = append(out, t)
	}
	return out, nil
}

func (m *MemoryStore) TryAdvisoryLock(ctx context.Context, key int64) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.locks[key] {
		return false, nil
	}
	m.locks[key] = true
	return true, nil
}

func (m *MemoryStore) AdvisoryUnlock(ctx context.Context, key int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.locks, key)
	return nil
}
