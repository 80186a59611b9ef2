package extract

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/joseph-ayodele/docextract/constants"
	"github.com/joseph-ayodele/docextract/internal/common"
	"github.com/joseph-ayodele/docextract/internal/llm"
	"github.com/joseph-ayodele/docextract/internal/pages"
)

// Extractor sends one page image and its prompt to the vision model.
type Extractor struct {
	model       llm.Model
	pageTimeout time.Duration
	logger      *slog.Logger
}

// NewExtractor returns an Extractor. pageTimeout bounds each page's model
// call; zero leaves it to the caller's context.
func NewExtractor(model llm.Model, pageTimeout time.Duration, logger *slog.Logger) *Extractor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Extractor{model: model, pageTimeout: pageTimeout, logger: logger}
}

// Extract returns the model's raw reply for one page. It makes exactly one
// round-trip; failures come back as ModelCallFailure.
func (e *Extractor) Extract(ctx context.Context, page pages.PageImage, t constants.DocumentType, customPrompt string) (string, error) {
	log := common.LoggerFrom(ctx, e.logger).With("page", page.Index+1, "document_type", t)
	start := time.Now()

	img, err := llm.ReadImage(page.Path, page.MIMEType)
	if err != nil {
		return "", common.ModelCallError(fmt.Sprintf("page %d: encode image", page.Index+1), err)
	}
	prompt := llm.PromptFor(t, customPrompt)

	ctx, cancel := common.WithTimeout(ctx, e.pageTimeout)
	defer cancel()

	out, err := e.model.Generate(ctx, prompt, img)
	if err != nil {
		log.Warn("extract.page.failed", "error", err, "elapsed_ms", time.Since(start).Milliseconds())
		return "", common.ModelCallError(fmt.Sprintf("page %d", page.Index+1), err)
	}
	log.Debug("extract.page.ok",
		"custom_prompt", customPrompt != "",
		"response_chars", len(out),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return out, nil
}
