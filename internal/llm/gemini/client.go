// Package gemini is the Vertex AI Gemini backend.
package gemini

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"cloud.google.com/go/vertexai/genai"
	"google.golang.org/api/option"

	"github.com/joseph-ayodele/docextract/internal/llm"
)

// Config for the Gemini client.
type Config struct {
	ProjectID       string
	Region          string // default us-central1
	Model           string // default gemini-2.0-flash
	CredentialsFile string // optional service account JSON
	Temperature     float32
	MaxTokens       int32
}

type Client struct {
	base   *genai.Client
	model  *genai.GenerativeModel
	name   string
	logger *slog.Logger
}

func NewClient(ctx context.Context, cfg Config, logger *slog.Logger) (*Client, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.ProjectID == "" {
		return nil, errors.New("gemini: project id is required")
	}
	if cfg.Region == "" {
		cfg.Region = "us-central1"
	}
	if cfg.Model == "" {
		cfg.Model = "gemini-2.0-flash"
	}

	var opts []option.ClientOption
	if cfg.CredentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(cfg.CredentialsFile))
	}
	base, err := genai.NewClient(ctx, cfg.ProjectID, cfg.Region, opts...)
	if err != nil {
		return nil, fmt.Errorf("genai.NewClient: %w", err)
	}

	m := base.GenerativeModel(cfg.Model)
	m.GenerationConfig = genai.GenerationConfig{
		Temperature: genai.Ptr(cfg.Temperature),
	}
	if cfg.MaxTokens > 0 {
		m.GenerationConfig.MaxOutputTokens = genai.Ptr(cfg.MaxTokens)
	}
	// scanned identity documents trip the default filters
	m.SafetySettings = []*genai.SafetySetting{
		{Category: genai.HarmCategoryHateSpeech, Threshold: genai.HarmBlockOnlyHigh},
		{Category: genai.HarmCategoryDangerousContent, Threshold: genai.HarmBlockOnlyHigh},
		{Category: genai.HarmCategorySexuallyExplicit, Threshold: genai.HarmBlockOnlyHigh},
		{Category: genai.HarmCategoryHarassment, Threshold: genai.HarmBlockOnlyHigh},
	}

	logger.Info("llm.gemini.ready", "model", cfg.Model, "region", cfg.Region)
	return &Client{base: base, model: m, name: "gemini/" + cfg.Model, logger: logger}, nil
}

func (c *Client) Name() string { return c.name }

func (c *Client) Generate(ctx context.Context, prompt string, image *llm.ImagePart) (string, error) {
	parts := []genai.Part{genai.Text(prompt)}
	if image != nil {
		data, err := image.Bytes()
		if err != nil {
			return "", fmt.Errorf("decode image payload: %w", err)
		}
		parts = append(parts, genai.Blob{MIMEType: image.MIMEType, Data: data})
	}

	resp, err := c.model.GenerateContent(ctx, parts...)
	if err != nil {
		return "", fmt.Errorf("gemini generate: %w", err)
	}
	return responseText(resp)
}

// Close releases the underlying gRPC connection.
func (c *Client) Close() error {
	return c.base.Close()
}

func responseText(resp *genai.GenerateContentResponse) (string, error) {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return "", errors.New("gemini: empty response")
	}
	var b strings.Builder
	for _, p := range resp.Candidates[0].Content.Parts {
		if t, ok := p.(genai.Text); ok {
			b.WriteString(string(t))
		}
	}
	return b.String(), nil
}
