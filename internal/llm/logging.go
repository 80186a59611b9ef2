package llm

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/docextract/internal/common"
)

type loggedModel struct {
	next   Model
	logger *slog.Logger
}

// WithLogging wraps m so that every round-trip is logged with a call id,
// payload sizes and latency.
func WithLogging(m Model, logger *slog.Logger) Model {
	if logger == nil {
		logger = slog.Default()
	}
	return &loggedModel{next: m, logger: logger}
}

func (l *loggedModel) Name() string { return l.next.Name() }

func (l *loggedModel) Generate(ctx context.Context, prompt string, image *ImagePart) (string, error) {
	log := common.LoggerFrom(ctx, l.logger).With("call_id", uuid.NewString(), "model", l.next.Name())
	start := time.Now()

	imageBytes := 0
	if image != nil {
		imageBytes = len(image.Data)
	}
	log.Debug("llm.generate.request", "prompt_chars", len(prompt), "image_b64_bytes", imageBytes)

	out, err := l.next.Generate(ctx, prompt, image)
	if err != nil {
		log.Warn("llm.generate.failed", "error", err, "elapsed_ms", time.Since(start).Milliseconds())
		return "", err
	}
	log.Info("llm.generate.ok",
		"vision", image != nil,
		"response_chars", len(out),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return out, nil
}
