/* Copyright (c) 2025 Hamed Shams <https://hamedshams.com>
 * SPDX-License-Identifier: BSD-3-Clause */
package config

import (
	"errors"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"

	"github.com/sioXD/GitLab-TimeTool/internal/domain"
)

type Config struct {
	AppEnv   string
	TZ       string
	HTTPAddr string

	DBDSN string

	PublicBaseURL string

	GitLabURL      string
	GitLabToken    string
	GroupPath      string
	EpicRootID     string
	RepositoryName string
	TargetLabels   []string

	OpenAIKey     string
	OpenAIModel   string
	OpenAITimeout time.Duration

	TelegramToken         string
	TelegramWebhookSecret string
	TelegramChatIDs       []int64

	RefreshCron string
	ReportCron  string
	ReportDays  int
	HTTPTimeout time.Duration

	ConfigFile string
}

// fileConfig mirrors the optional TOML overlay. Empty values leave the
// environment settings alone.
type fileConfig struct {
	GitLab struct {
		URL            string   `toml:"url"`
		GroupPath      string   `toml:"group_path"`
		EpicRootID     string   `toml:"epic_root_id"`
		RepositoryName string   `toml:"repository_name"`
		TargetLabels   []string `toml:"target_labels"`
	} `toml:"gitlab"`
	Schedule struct {
		RefreshCron string `toml:"refresh_cron"`
		ReportCron  string `toml:"report_cron"`
		ReportDays  int    `toml:"report_days"`
	} `toml:"schedule"`
	OpenAI struct {
		Model string `toml:"model"`
	} `toml:"openai"`
	Telegram struct {
		ChatIDs []int64 `toml:"chat_ids"`
	} `toml:"telegram"`
}

func getenv(key, def string) string {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	return v
}

func atoi(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return i
}

func dur(key string, def time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return def
	}
	return d
}

func parseInt64s(csv string) []int64 {
	if csv == "" {
		return nil
	}
	parts := strings.Split(csv, ",")
	out := make([]int64, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		n, err := strconv.ParseInt(p, 10, 64)
		if err == nil {
			out = append(out, n)
		}
	}
	return out
}

func parseStrings(csv string) []string {
	if csv == "" {
		return nil
	}
	parts := strings.Split(csv, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		out = append(out, p)
	}
	return out
}

func Load() Config {
	cfg := Config{
		AppEnv:   getenv("APP_ENV", "dev"),
		TZ:       getenv("APP_TZ", "Europe/Berlin"),
		HTTPAddr: getenv("HTTP_ADDR", ":8080"),

		DBDSN: getenv("DB_DSN", ""),

		PublicBaseURL: getenv("PUBLIC_BASE_URL", "http://localhost:8080"),

		GitLabURL:      getenv("GITLAB_URL", "https://gitlab.com"),
		GitLabToken:    getenv("GITLAB_TOKEN", os.Getenv("TOKEN")),
		GroupPath:      getenv("GROUP_FULL_PATH", ""),
		EpicRootID:     getenv("EPIC_ROOT_ID", ""),
		RepositoryName: getenv("REPOSITORY_NAME", ""),
		TargetLabels:   parseStrings(getenv("TARGET_LABELS", "Bug,Feature,Documentation,Meeting")),

		OpenAIKey:     getenv("OPENAI_API_KEY", ""),
		OpenAIModel:   getenv("OPENAI_MODEL", "gpt-4.1-mini"),
		OpenAITimeout: dur("OPENAI_TIMEOUT", 30*time.Second),

		TelegramToken:         getenv("TELEGRAM_BOT_TOKEN", ""),
		TelegramWebhookSecret: getenv("TELEGRAM_WEBHOOK_SECRET", ""),
		TelegramChatIDs:       parseInt64s(getenv("TELEGRAM_CHAT_IDS", "")),

		RefreshCron: getenv("REFRESH_CRON", "*/30 * * * *"),
		ReportCron:  getenv("REPORT_CRON", "0 9 * * MON"),
		ReportDays:  atoi("REPORT_DAYS", 7),
		HTTPTimeout: dur("HTTP_TIMEOUT", 15*time.Second),

		ConfigFile: getenv("CONFIG_FILE", "config/timetool.toml"),
	}

	if err := cfg.overlayFile(); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Printf("warning: cannot read config file %s: %v", cfg.ConfigFile, err)
	}

	// set global timezone if available
	if loc, err := time.LoadLocation(cfg.TZ); err == nil {
		time.Local = loc
	} else {
		log.Printf("warning: cannot load TZ %s: %v", cfg.TZ, err)
	}
	return cfg
}

func (c *Config) overlayFile() error {
	if c.ConfigFile == "" {
		return nil
	}
	data, err := os.ReadFile(c.ConfigFile)
	if err != nil {
		return err
	}
	var fc fileConfig
	if err := toml.Unmarshal(data, &fc); err != nil {
		return fmt.Errorf("parse %s: %w", c.ConfigFile, err)
	}
	set := func(dst *string, v string) {
		if strings.TrimSpace(v) != "" {
			*dst = strings.TrimSpace(v)
		}
	}
	set(&c.GitLabURL, fc.GitLab.URL)
	set(&c.GroupPath, fc.GitLab.GroupPath)
	set(&c.EpicRootID, fc.GitLab.EpicRootID)
	set(&c.RepositoryName, fc.GitLab.RepositoryName)
	set(&c.RefreshCron, fc.Schedule.RefreshCron)
	set(&c.ReportCron, fc.Schedule.ReportCron)
	set(&c.OpenAIModel, fc.OpenAI.Model)
	if len(fc.GitLab.TargetLabels) > 0 {
		c.TargetLabels = fc.GitLab.TargetLabels
	}
	if fc.Schedule.ReportDays > 0 {
		c.ReportDays = fc.Schedule.ReportDays
	}
	if len(fc.Telegram.ChatIDs) > 0 {
		c.TelegramChatIDs = fc.Telegram.ChatIDs
	}
	return nil
}

// Validate checks the settings a tree load cannot start without.
func (c Config) Validate() error {
	var missing []string
	if strings.TrimSpace(c.GroupPath) == "" {
		missing = append(missing, "GROUP_FULL_PATH")
	}
	if strings.TrimSpace(c.EpicRootID) == "" {
		missing = append(missing, "EPIC_ROOT_ID")
	}
	if strings.TrimSpace(c.GitLabToken) == "" {
		missing = append(missing, "GITLAB_TOKEN")
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: %s", domain.ErrMissingConfig, strings.Join(missing, ", "))
	}
	return nil
}
