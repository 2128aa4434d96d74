/* Copyright (c) 2025 Hamed Shams <https://hamedshams.com>
 * SPDX-License-Identifier: BSD-3-Clause */
package http

import (
	"context"
	"errors"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/sioXD/GitLab-TimeTool/internal/config"
	"github.com/sioXD/GitLab-TimeTool/internal/domain"
	"github.com/sioXD/GitLab-TimeTool/internal/services"
	"github.com/sioXD/GitLab-TimeTool/internal/stats"
)

type service interface {
	Dashboard(ctx context.Context, q services.Query) (*services.Dashboard, error)
	Refresh(ctx context.Context) (*services.Snapshot, error)
	Loaded() (*services.Snapshot, error)
	History(ctx context.Context, limit int) ([]domain.SnapshotTotal, error)
	GenerateReport(ctx context.Context, days int) (*domain.Report, error)
	LatestReport(ctx context.Context) (*domain.Report, error)
	RunOnDemandReport(ctx context.Context, chatID int64, days int) error
	RunOnDemandRefresh(ctx context.Context, chatID int64) error
	SendHelp(ctx context.Context, chatID int64) error
	GetLastRun(ctx context.Context) (*domain.JobRun, error)
}

type Handlers struct {
	cfg   config.Config
	log   zerolog.Logger
	svc   service
	async func(func())
}

func NewHandlers(cfg config.Config, log zerolog.Logger, svc service) *Handlers {
	return &Handlers{cfg: cfg, log: log, svc: svc, async: func(f func()) { go f() }}
}

// statusFor maps service errors to HTTP codes. Unclassified errors come from
// the GitLab fetch or the LLM and are reported as a bad gateway.
func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrInvalidWindow):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrMissingConfig):
		return http.StatusPreconditionFailed
	case errors.Is(err, domain.ErrNoReport), errors.Is(err, domain.ErrNoSnapshot):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrCycle):
		return http.StatusUnprocessableEntity
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusBadGateway
	}
}

func (h *Handlers) fail(c *gin.Context, err error) {
	status := statusFor(err)
	h.log.Error().Err(err).Int("status", status).Str("p", c.FullPath()).Msg("request failed")
	c.JSON(status, gin.H{"error": err.Error()})
}

func (h *Handlers) Healthz(c *gin.Context) {
	out := gin.H{"ok": true}
	if snap, err := h.svc.Loaded(); err == nil {
		out["snapshot_id"] = snap.ID
		out["loaded_at"] = snap.LoadedAt
	}
	c.JSON(http.StatusOK, out)
}

// parseQuery reads days or start/end. Dates without a zone are taken in the
// server's location.
func parseQuery(c *gin.Context) (services.Query, error) {
	var q services.Query
	if v := strings.TrimSpace(c.Query("days")); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return q, errors.Join(domain.ErrInvalidWindow, err)
		}
		q.Days = n
	}
	for _, p := range []struct {
		name string
		dst  *time.Time
	}{{"start", &q.Start}, {"end", &q.End}} {
		v := strings.TrimSpace(c.Query(p.name))
		if v == "" {
			continue
		}
		t, err := stats.ParseDate(v, time.Local)
		if err != nil {
			return q, errors.Join(domain.ErrInvalidWindow, err)
		}
		*p.dst = t
	}
	return q, nil
}

func (h *Handlers) Data(c *gin.Context) {
	q, err := parseQuery(c)
	if err != nil {
		h.fail(c, err)
		return
	}
	d, err := h.svc.Dashboard(c.Request.Context(), q)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, d)
}

func (h *Handlers) Refresh(c *gin.Context) {
	snap, err := h.svc.Refresh(c.Request.Context())
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"snapshot_id": snap.ID,
		"loaded_at":   snap.LoadedAt,
		"rows":        len(snap.Rows),
		"users":       snap.Users,
		"labels":      snap.Labels,
	})
}

func (h *Handlers) History(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "30"))
	hist, err := h.svc.History(c.Request.Context(), limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"snapshots": hist})
}

func (h *Handlers) LatestReport(c *gin.Context) {
	r, err := h.svc.LatestReport(c.Request.Context())
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, r)
}

func (h *Handlers) CreateReport(c *gin.Context) {
	days := h.cfg.ReportDays
	if v := c.Query("days"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "days must be a positive integer"})
			return
		}
		days = n
	}
	r, err := h.svc.GenerateReport(c.Request.Context(), days)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, r)
}

func (h *Handlers) LastRun(c *gin.Context) {
	lr, err := h.svc.GetLastRun(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if lr == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "no runs yet"})
		return
	}
	c.JSON(http.StatusOK, lr)
}

var reportCmd = regexp.MustCompile(`^/report(?:@\w+)?(?:\s+(\d+)d?)?$`)

// parseCommand splits a bot command. ok is false for anything unknown.
func parseCommand(text string) (cmd string, days int, ok bool) {
	text = strings.TrimSpace(text)
	if m := reportCmd.FindStringSubmatch(text); m != nil {
		days = 7
		if m[1] != "" {
			days, _ = strconv.Atoi(m[1])
		}
		if days <= 0 {
			return "", 0, false
		}
		return "report", days, true
	}
	word, _, _ := strings.Cut(text, " ")
	word, _, _ = strings.Cut(word, "@")
	switch word {
	case "/refresh":
		return "refresh", 0, true
	case "/start", "/help":
		return "help", 0, true
	}
	return "", 0, false
}

func (h *Handlers) TelegramWebhook(c *gin.Context) {
	headerSecret := c.GetHeader("X-Telegram-Bot-Api-Secret-Token")
	pathSecret := c.Param("secret")
	if h.cfg.TelegramWebhookSecret == "" || (headerSecret != h.cfg.TelegramWebhookSecret && pathSecret != h.cfg.TelegramWebhookSecret) {
		c.JSON(http.StatusForbidden, gin.H{"error": "forbidden"})
		return
	}
	h.log.Info().Str("ip", c.ClientIP()).Str("ua", c.GetHeader("User-Agent")).Msg("telegram webhook received")

	var upd struct {
		Message *struct {
			Chat struct {
				ID int64 `json:"id"`
			} `json:"chat"`
			Text string `json:"text"`
		} `json:"message"`
	}
	if err := c.ShouldBindJSON(&upd); err == nil && upd.Message != nil {
		chatID := upd.Message.Chat.ID
		allowed := len(h.cfg.TelegramChatIDs) == 0
		for _, id := range h.cfg.TelegramChatIDs {
			if id == chatID {
				allowed = true
				break
			}
		}
		cmd, days, ok := parseCommand(upd.Message.Text)
		if allowed && ok {
			ctx := context.WithoutCancel(c.Request.Context())
			switch cmd {
			case "report":
				h.async(func() { _ = h.svc.RunOnDemandReport(ctx, chatID, days) })
			case "refresh":
				h.async(func() { _ = h.svc.RunOnDemandRefresh(ctx, chatID) })
			case "help":
				h.async(func() { _ = h.svc.SendHelp(ctx, chatID) })
			}
		}
	}

	c.JSON(http.StatusOK, gin.H{"ok": true})
}
