// Package provider builds the configured llm.Model backend.
package provider

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/joseph-ayodele/docextract/internal/common"
	"github.com/joseph-ayodele/docextract/internal/llm"
	"github.com/joseph-ayodele/docextract/internal/llm/anthropic"
	"github.com/joseph-ayodele/docextract/internal/llm/gemini"
	"github.com/joseph-ayodele/docextract/internal/llm/openai"
)

// New returns the backend named by cfg.Provider wrapped with call logging,
// plus a release func for backends holding connections.
func New(ctx context.Context, cfg common.LLMConfig, logger *slog.Logger) (llm.Model, func() error, error) {
	if logger == nil {
		logger = slog.Default()
	}
	noop := func() error { return nil }

	switch strings.ToLower(cfg.Provider) {
	case "", "gemini":
		c, err := gemini.NewClient(ctx, gemini.Config{
			ProjectID:       cfg.ProjectID,
			Region:          cfg.Region,
			Model:           cfg.Model,
			CredentialsFile: cfg.CredentialsFile,
			Temperature:     cfg.Temperature,
			MaxTokens:       int32(cfg.MaxTokens),
		}, logger)
		if err != nil {
			return nil, noop, err
		}
		return llm.WithLogging(c, logger), c.Close, nil
	case "openai":
		c, err := openai.NewClient(openai.Config{
			APIKey:      cfg.APIKey,
			BaseURL:     cfg.BaseURL,
			Model:       cfg.Model,
			Temperature: cfg.Temperature,
			MaxTokens:   cfg.MaxTokens,
			Timeout:     cfg.Timeout,
		}, logger)
		if err != nil {
			return nil, noop, err
		}
		return llm.WithLogging(c, logger), noop, nil
	case "anthropic":
		c, err := anthropic.NewClient(anthropic.Config{
			APIKey:      cfg.APIKey,
			BaseURL:     cfg.BaseURL,
			Model:       cfg.Model,
			Temperature: cfg.Temperature,
			MaxTokens:   cfg.MaxTokens,
			Timeout:     cfg.Timeout,
		}, logger)
		if err != nil {
			return nil, noop, err
		}
		return llm.WithLogging(c, logger), noop, nil
	default:
		return nil, noop, common.NewAppError(common.CodeConfig, fmt.Sprintf("unknown llm provider %q", cfg.Provider), common.ErrInvalidInput)
	}
}
