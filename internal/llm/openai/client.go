// Package openai is the OpenAI (or compatible) chat completions backend.
package openai

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	openaiclient "github.com/openai/openai-go/v2"
	openaioption "github.com/openai/openai-go/v2/option"

	"github.com/joseph-ayodele/docextract/internal/llm"
)

// Config for the OpenAI client.
type Config struct {
	APIKey      string
	BaseURL     string        // optional, for compatible gateways
	Model       string        // default gpt-4o-mini
	Temperature float32       // 0..2
	MaxTokens   int           // 0 = provider default
	Timeout     time.Duration // per request
}

type Client struct {
	cfg    Config
	client openaiclient.Client
	logger *slog.Logger
}

func NewClient(cfg Config, logger *slog.Logger) (*Client, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, errors.New("openai: api key is required")
	}
	if cfg.Model == "" {
		cfg.Model = "gpt-4o-mini"
	}

	opts := []openaioption.RequestOption{
		openaioption.WithAPIKey(cfg.APIKey),
		openaioption.WithMaxRetries(0),
	}
	if base := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/"); base != "" {
		opts = append(opts, openaioption.WithBaseURL(base))
	}
	if cfg.Timeout > 0 {
		opts = append(opts, openaioption.WithRequestTimeout(cfg.Timeout))
	}

	logger.Info("llm.openai.ready", "model", cfg.Model)
	return &Client{cfg: cfg, client: openaiclient.NewClient(opts...), logger: logger}, nil
}

func (c *Client) Name() string { return "openai/" + c.cfg.Model }

func (c *Client) Generate(ctx context.Context, prompt string, image *llm.ImagePart) (string, error) {
	var msg openaiclient.ChatCompletionMessageParamUnion
	if image != nil {
		msg = openaiclient.UserMessage([]openaiclient.ChatCompletionContentPartUnionParam{
			openaiclient.TextContentPart(prompt),
			openaiclient.ImageContentPart(openaiclient.ChatCompletionContentPartImageImageURLParam{
				URL: llm.DataURL(*image),
			}),
		})
	} else {
		msg = openaiclient.UserMessage(prompt)
	}

	params := openaiclient.ChatCompletionNewParams{
		Model:       openaiclient.ChatModel(c.cfg.Model),
		Messages:    []openaiclient.ChatCompletionMessageParamUnion{msg},
		Temperature: openaiclient.Float(float64(c.cfg.Temperature)),
	}
	if c.cfg.MaxTokens > 0 {
		params.MaxCompletionTokens = openaiclient.Int(int64(c.cfg.MaxTokens))
	}

	resp, err := c.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return "", fmt.Errorf("openai chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("openai: no choices in response")
	}
	return resp.Choices[0].Message.Content, nil
}
