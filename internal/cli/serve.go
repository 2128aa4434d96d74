/* Copyright (c) 2025 Hamed Shams <https://hamedshams.com>
 * SPDX-License-Identifier: BSD-3-Clause */
package cli

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/sioXD/GitLab-TimeTool/internal/config"
	apphttp "github.com/sioXD/GitLab-TimeTool/internal/http"
	"github.com/sioXD/GitLab-TimeTool/internal/jobs"
)

func newServeCommand(cfg config.Config, log zerolog.Logger) *cobra.Command {
	var noCron, noWarm bool
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the dashboard API and run the scheduled jobs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return withDeps(cmd, cfg, log, func(d *deps) error {
				if !noCron {
					cr, err := jobs.NewCron(cfg, log, d.svc, d.store)
					if err != nil {
						return err
					}
					cr.Start()
					defer cr.Stop()
				}
				if d.tg != nil {
					go registerWebhook(cfg, log, d.tg)
				}
				if !noWarm {
					go func() {
						if _, err := d.svc.Refresh(ctx); err != nil {
							log.Warn().Err(err).Msg("initial refresh failed; will load on first request")
						}
					}()
				}
				return serve(ctx, cfg, log, apphttp.NewRouter(cfg, log, d.svc))
			})
		},
	}
	cmd.Flags().BoolVar(&noCron, "no-cron", false, "Do not run the scheduled refresh and report jobs")
	cmd.Flags().BoolVar(&noWarm, "no-warm", false, "Skip the initial refresh at startup")
	return cmd
}

type webhookSetter interface {
	SetWebhook(ctx context.Context, webhookURL string, secretToken string) error
}

// registerWebhook only registers HTTPS endpoints, which is all Telegram
// accepts.
func registerWebhook(cfg config.Config, log zerolog.Logger, tg webhookSetter) {
	if cfg.TelegramWebhookSecret == "" || !strings.HasPrefix(strings.ToLower(cfg.PublicBaseURL), "https://") {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	webhookURL := strings.TrimRight(cfg.PublicBaseURL, "/") + "/telegram/webhook/" + cfg.TelegramWebhookSecret
	if err := tg.SetWebhook(ctx, webhookURL, cfg.TelegramWebhookSecret); err != nil {
		log.Error().Err(err).Msg("telegram setWebhook failed")
		return
	}
	log.Info().Msg("telegram setWebhook ok")
}

func serve(ctx context.Context, cfg config.Config, log zerolog.Logger, h http.Handler) error {
	srv := &http.Server{Addr: cfg.HTTPAddr, Handler: h, ReadHeaderTimeout: 10 * time.Second}
	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", cfg.HTTPAddr).Msg("http listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		log.Info().Msg("shutting down...")
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
