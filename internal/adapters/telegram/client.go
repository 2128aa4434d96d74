/* Copyright (c) 2025 Hamed Shams <https://hamedshams.com>
 * SPDX-License-Identifier: BSD-3-Clause */
package telegram

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/sioXD/GitLab-TimeTool/internal/config"
)

const defaultAPI = "https://api.telegram.org"

type Client struct {
	token   string
	apiBase string
	http    *http.Client
	log     zerolog.Logger
}

func NewClient(cfg config.Config, log zerolog.Logger) *Client {
	return &Client{token: cfg.TelegramToken, apiBase: defaultAPI, http: &http.Client{Timeout: 10 * time.Second}, log: log}
}

// SendMessagePlain sends without parse_mode so report text never trips the
// markdown parser.
func (c *Client) SendMessagePlain(ctx context.Context, chatID int64, text string) error {
	return c.sendMessage(ctx, chatID, text, "")
}

// SendMarkdownV2 sends a message using MarkdownV2 parse mode.
func (c *Client) SendMarkdownV2(ctx context.Context, chatID int64, text string) error {
	return c.sendMessage(ctx, chatID, text, "MarkdownV2")
}

func (c *Client) sendMessage(ctx context.Context, chatID int64, text, parseMode string) error {
	if c.token == "" || chatID == 0 {
		return fmt.Errorf("telegram: missing token or chat id")
	}
	body := map[string]any{"chat_id": chatID, "text": text, "disable_web_page_preview": true}
	if parseMode != "" {
		body["parse_mode"] = parseMode
	}
	return c.call(ctx, "sendMessage", body)
}

// SetWebhook registers the webhook URL and secret with Telegram.
func (c *Client) SetWebhook(ctx context.Context, webhookURL string, secretToken string) error {
	if c.token == "" || webhookURL == "" || secretToken == "" {
		return fmt.Errorf("telegram: missing token, url or secret")
	}
	body := map[string]any{
		"url":                  webhookURL,
		"secret_token":         secretToken,
		"drop_pending_updates": true,
		"allowed_updates":      []string{"message"},
	}
	return c.call(ctx, "setWebhook", body)
}

func (c *Client) call(ctx context.Context, method string, body any) error {
	b, err := json.Marshal(body)
	if err != nil {
		return err
	}
	u := fmt.Sprintf("%s/bot%s/%s", strings.TrimRight(c.apiBase, "/"), c.token, method)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, bytes.NewReader(b))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		bodyBytes, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("telegram %s status=%d body=%s", method, resp.StatusCode, string(bodyBytes))
	}
	return nil
}
