// Package anthropic is the Claude messages backend.
package anthropic

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	anthropicclient "github.com/anthropics/anthropic-sdk-go"
	anthropicoption "github.com/anthropics/anthropic-sdk-go/option"

	"github.com/joseph-ayodele/docextract/internal/llm"
)

// Config for the Anthropic client.
type Config struct {
	APIKey      string
	BaseURL     string
	Model       string // default claude-haiku-4-5-20251001
	Temperature float32
	MaxTokens   int // default 4096
	Timeout     time.Duration
}

type Client struct {
	cfg    Config
	client anthropicclient.Client
	logger *slog.Logger
}

func NewClient(cfg Config, logger *slog.Logger) (*Client, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, errors.New("anthropic: api key is required")
	}
	if cfg.Model == "" {
		cfg.Model = "claude-haiku-4-5-20251001"
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = 4096
	}

	opts := []anthropicoption.RequestOption{
		anthropicoption.WithAPIKey(cfg.APIKey),
		anthropicoption.WithMaxRetries(0),
	}
	if base := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/"); base != "" {
		opts = append(opts, anthropicoption.WithBaseURL(base))
	}
	if cfg.Timeout > 0 {
		opts = append(opts, anthropicoption.WithRequestTimeout(cfg.Timeout))
	}

	logger.Info("llm.anthropic.ready", "model", cfg.Model)
	return &Client{cfg: cfg, client: anthropicclient.NewClient(opts...), logger: logger}, nil
}

func (c *Client) Name() string { return "anthropic/" + c.cfg.Model }

func (c *Client) Generate(ctx context.Context, prompt string, image *llm.ImagePart) (string, error) {
	blocks := make([]anthropicclient.ContentBlockParamUnion, 0, 2)
	if image != nil {
		blocks = append(blocks, anthropicclient.NewImageBlockBase64(image.MIMEType, image.Data))
	}
	blocks = append(blocks, anthropicclient.NewTextBlock(prompt))

	msg, err := c.client.Messages.New(ctx, anthropicclient.MessageNewParams{
		Model:       anthropicclient.Model(c.cfg.Model),
		MaxTokens:   int64(c.cfg.MaxTokens),
		Temperature: anthropicclient.Float(float64(c.cfg.Temperature)),
		Messages:    []anthropicclient.MessageParam{anthropicclient.NewUserMessage(blocks...)},
	})
	if err != nil {
		return "", fmt.Errorf("anthropic messages: %w", err)
	}

	var b strings.Builder
	for _, block := range msg.Content {
		if t, ok := block.AsAny().(anthropicclient.TextBlock); ok {
			b.WriteString(t.Text)
		}
	}
	if b.Len() == 0 {
		return "", errors.New("anthropic: no text in response")
	}
	return b.String(), nil
}
