/* Copyright (c) 2025 Hamed Shams <https://hamedshams.com>
 * SPDX-License-Identifier: BSD-3-Clause */

// Package cli provides the timetool command line.
package cli

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/sioXD/GitLab-TimeTool/internal/adapters/gitlab"
	"github.com/sioXD/GitLab-TimeTool/internal/adapters/openai"
	"github.com/sioXD/GitLab-TimeTool/internal/adapters/telegram"
	"github.com/sioXD/GitLab-TimeTool/internal/config"
	"github.com/sioXD/GitLab-TimeTool/internal/jobs"
	"github.com/sioXD/GitLab-TimeTool/internal/repo"
	"github.com/sioXD/GitLab-TimeTool/internal/services"
)

// newFetcher builds the GitLab source. Tests swap it for a fake.
var newFetcher = func(cfg config.Config, log zerolog.Logger) services.Fetcher {
	return gitlab.NewClient(cfg, log)
}

// deps is everything a command may need, wired from cfg.
type deps struct {
	svc   *services.Service
	store store
	tg    *telegram.Client
	close func()
}

type store interface {
	services.Store
	jobs.Locker
}

// wire opens Postgres when DB_DSN is set and falls back to the in-memory
// store otherwise. The LLM and Telegram clients are only built when their
// credentials are present.
func wire(ctx context.Context, cfg config.Config, log zerolog.Logger) (*deps, error) {
	d := &deps{close: func() {}}
	if cfg.DBDSN != "" {
		db, err := repo.Open(ctx, cfg, log)
		if err != nil {
			return nil, err
		}
		if err := db.Migrate(ctx); err != nil {
			db.Close()
			return nil, err
		}
		d.store = repo.NewRepository(db, log)
		d.close = db.Close
	} else {
		log.Warn().Msg("DB_DSN not set; job runs and reports are kept in memory")
		d.store = services.NewMemoryStore()
	}

	var llm services.LLM
	if cfg.OpenAIKey != "" {
		llm = openai.NewClient(cfg, log)
	}
	var tg services.Notifier
	if cfg.TelegramToken != "" {
		d.tg = telegram.NewClient(cfg, log)
		tg = d.tg
	}
	d.svc = services.New(cfg, log, d.store, newFetcher(cfg, log), llm, tg)
	return d, nil
}

// NewRootCommand creates the timetool root command.
func NewRootCommand(cfg config.Config, log zerolog.Logger, version string) *cobra.Command {
	root := &cobra.Command{
		Use:   "timetool",
		Short: "Time attribution and statistics for a GitLab epic tree",
		Long: `timetool loads an epic and all of its descendant epics and issues from
GitLab, attributes logged time to users and labels, and serves the
resulting statistics as JSON, on the command line, or as LLM reports.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(
		newServeCommand(cfg, log),
		newRefreshCommand(cfg, log),
		newStatsCommand(cfg, log),
		newReportCommand(cfg, log),
	)
	return root
}

func withDeps(cmd *cobra.Command, cfg config.Config, log zerolog.Logger, run func(*deps) error) error {
	d, err := wire(cmd.Context(), cfg, log)
	if err != nil {
		return fmt.Errorf("wire: %w", err)
	}
	defer d.close()
	return run(d)
}
