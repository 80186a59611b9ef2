// Package llmtest provides a scriptable llm.Model for tests.
package llmtest

import (
	"context"
	"strings"
	"sync"

	"github.com/joseph-ayodele/docextract/internal/llm"
)

// Call records one Generate invocation.
type Call struct {
	Prompt string
	Image  *llm.ImagePart
}

// Model answers with Func and records every call.
type Model struct {
	Func func(ctx context.Context, prompt string, image *llm.ImagePart) (string, error)

	mu    sync.Mutex
	calls []Call
}

func (m *Model) Name() string { return "fake" }

func (m *Model) Generate(ctx context.Context, prompt string, image *llm.ImagePart) (string, error) {
	m.mu.Lock()
	m.calls = append(m.calls, Call{Prompt: prompt, Image: image})
	m.mu.Unlock()
	if m.Func == nil {
		return "", nil
	}
	return m.Func(ctx, prompt, image)
}

// Calls returns a snapshot of recorded calls.
func (m *Model) Calls() []Call {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Call, len(m.calls))
	copy(out, m.calls)
	return out
}

// CountPrefix counts calls whose prompt starts with prefix.
func (m *Model) CountPrefix(prefix string) int {
	n := 0
	for _, c := range m.Calls() {
		if strings.HasPrefix(c.Prompt, prefix) {
			n++
		}
	}
	return n
}

// Language answers detection and translation prompts from fixed tables,
// keyed by the text under "Text: ". Unlisted text is English.
func Language(langs map[string]string, translations map[string]string) func(context.Context, string, *llm.ImagePart) (string, error) {
	return func(_ context.Context, prompt string, _ *llm.ImagePart) (string, error) {
		text := prompt
		if i := strings.LastIndex(prompt, "Text: "); i >= 0 {
			text = prompt[i+len("Text: "):]
		}
		switch {
		case strings.HasPrefix(prompt, "Analyze the following text"):
			if l, ok := langs[text]; ok {
				return l, nil
			}
			return "en", nil
		case strings.HasPrefix(prompt, "Translate the following text"):
			return translations[text], nil
		}
		return "", nil
	}
}
