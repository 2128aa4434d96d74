/* Copyright (c) 2025 Hamed Shams <https://hamedshams.com>
 * SPDX-License-Identifier: BSD-3-Clause */
package openai

import (
	"context"
	"encoding/json"
	"errors"
	"strings"

	openai "github.com/openai/openai-go/v2"
	"github.com/openai/openai-go/v2/option"
	"github.com/openai/openai-go/v2/shared"
	"github.com/rs/zerolog"

	"github.com/sioXD/GitLab-TimeTool/internal/config"
)

const reportPrompt = "You are an engineering manager reviewing time tracking for a GitLab epic tree. " +
	"Given the JSON statistics for the period, write a short plain-text report: where the hours went, " +
	"which labels dominated, who carried the load (keep the user aliases exactly as given), " +
	"how the flow of open and closed issues looks, and any estimate overruns or anomalies worth a follow up. " +
	"No markdown tables."

type Client struct {
	key   string
	model string
	cli   openai.Client
	log   zerolog.Logger
}

func NewClient(cfg config.Config, log zerolog.Logger, opts ...option.RequestOption) *Client {
	model := cfg.OpenAIModel
	if strings.TrimSpace(model) == "" {
		model = "gpt-4.1-mini"
	}
	base := []option.RequestOption{option.WithAPIKey(cfg.OpenAIKey), option.WithMaxRetries(2)}
	if cfg.OpenAITimeout > 0 {
		base = append(base, option.WithRequestTimeout(cfg.OpenAITimeout))
	}
	cli := openai.NewClient(append(base, opts...)...)
	return &Client{key: cfg.OpenAIKey, model: model, cli: cli, log: log}
}

func (c *Client) Model() string { return c.model }

// Summarize sends the statistics as JSON and returns the model's report.
func (c *Client) Summarize(ctx context.Context, facts any) (string, error) {
	if strings.TrimSpace(c.key) == "" {
		return "", errors.New("openai: missing key")
	}
	b, err := json.Marshal(facts)
	if err != nil {
		return "", err
	}
	c.log.Info().Str("model", c.model).Int("bytes", len(b)).Msg("openai Summarize call")
	params := openai.ChatCompletionNewParams{
		Model: shared.ChatModel(c.model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(reportPrompt),
			openai.UserMessage(string(b)),
		},
	}
	resp, err := c.cli.Chat.Completions.New(ctx, params)
	if err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("openai: no choices")
	}
	return resp.Choices[0].Message.Content, nil
}
