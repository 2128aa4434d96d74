/* Copyright (c) 2025 Hamed Shams <https://hamedshams.com>
 * SPDX-License-Identifier: BSD-3-Clause */
package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"github.com/sioXD/GitLab-TimeTool/internal/config"
	"github.com/sioXD/GitLab-TimeTool/internal/services"
)

const (
	refreshLockKey int64 = 424242
	reportLockKey  int64 = 424243
)

type service interface {
	Refresh(ctx context.Context) (*services.Snapshot, error)
	RunScheduledReport(ctx context.Context) error
}

// Locker guards a job across replicas.
type Locker interface {
	TryAdvisoryLock(ctx context.Context, key int64) (bool, error)
	AdvisoryUnlock(ctx context.Context, key int64) error
}

type Cron struct {
	cfg  config.Config
	log  zerolog.Logger
	svc  service
	lock Locker
	c    *cron.Cron
}

// NewCron schedules the refresh job and, when REPORT_CRON is set, the
// report job. An empty REFRESH_CRON disables periodic refresh.
func NewCron(cfg config.Config, log zerolog.Logger, svc service, lock Locker) (*Cron, error) {
	loc, err := time.LoadLocation(cfg.TZ)
	if err != nil {
		loc = time.Local
	}
	c := cron.New(cron.WithLocation(loc), cron.WithParser(cron.NewParser(cron.Minute|cron.Hour|cron.Dom|cron.Month|cron.Dow)))
	cr := &Cron{cfg: cfg, log: log, svc: svc, lock: lock, c: c}
	if cfg.RefreshCron != "" {
		if _, err := c.AddFunc(cfg.RefreshCron, cr.refresh); err != nil {
			return nil, fmt.Errorf("REFRESH_CRON %q: %w", cfg.RefreshCron, err)
		}
	}
	if cfg.ReportCron != "" {
		if _, err := c.AddFunc(cfg.ReportCron, cr.report); err != nil {
			return nil, fmt.Errorf("REPORT_CRON %q: %w", cfg.ReportCron, err)
		}
	}
	return cr, nil
}

func (cr *Cron) Start() { cr.c.Start() }

// Stop halts scheduling and waits for running jobs.
func (cr *Cron) Stop() { <-cr.c.Stop().Done() }

func (cr *Cron) Entries() int { return len(cr.c.Entries()) }

func (cr *Cron) refresh() {
	cr.locked("refresh", refreshLockKey, 5*time.Minute, func(ctx context.Context) error {
		_, err := cr.svc.Refresh(ctx)
		return err
	})
}

func (cr *Cron) report() {
	cr.locked("report", reportLockKey, 10*time.Minute, cr.svc.RunScheduledReport)
}

func (cr *Cron) locked(name string, key int64, timeout time.Duration, run func(context.Context) error) {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	ok, err := cr.lock.TryAdvisoryLock(ctx, key)
	if err != nil {
		cr.log.Error().Err(err).Str("job", name).Msg("cron: lock error")
		return
	}
	if !ok {
		cr.log.Info().Str("job", name).Msg("cron: already running elsewhere")
		return
	}
	defer func() {
		if err := cr.lock.AdvisoryUnlock(context.Background(), key); err != nil {
			cr.log.Error().Err(err).Str("job", name).Msg("cron: unlock error")
		}
	}()
	cr.log.Info().Str("job", name).Msg("cron: start")
	if err := run(ctx); err != nil {
		cr.log.Error().Err(err).Str("job", name).Msg("cron: job failed")
	}
}
