package llm

import "context"

// ImagePart is one inline image sent alongside a prompt.
type ImagePart struct {
	MIMEType string
	Data     string // base64, standard encoding
}

// Model is a single-shot text (or vision) completion backend. A nil image
// makes a text-only call. Implementations must not retry.
type Model interface {
	Generate(ctx context.Context, prompt string, image *ImagePart) (string, error)
	Name() string
}
