/* Copyright (c) 2025 Hamed Shams <https://hamedshams.com>
 * SPDX-License-Identifier: BSD-3-Clause */
package http

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/sioXD/GitLab-TimeTool/internal/config"
)

func NewRouter(cfg config.Config, log zerolog.Logger, svc service) *gin.Engine {
	return newRouter(NewHandlers(cfg, log, svc), cfg, log)
}

func newRouter(h *Handlers, cfg config.Config, log zerolog.Logger) *gin.Engine {
	if cfg.AppEnv != "dev" {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(func(c *gin.Context) {
		start := time.Now()
		c.Next()
		log.Info().Str("m", c.Request.Method).Str("p", c.FullPath()).Int("s", c.Writer.Status()).Dur("took", time.Since(start)).Msg("http")
	})

	r.GET("/healthz", h.Healthz)

	api := r.Group("/api")
	api.GET("/data", h.Data)
	api.POST("/refresh", h.Refresh)
	api.GET("/history", h.History)
	api.GET("/report/latest", h.LatestReport)
	api.POST("/report", h.CreateReport)

	r.GET("/admin/last-run", h.LastRun)
	// Support both header-authenticated and path-secret webhook endpoints
	r.POST("/telegram/webhook", h.TelegramWebhook)
	r.POST("/telegram/webhook/:secret", h.TelegramWebhook)

	return r
}
