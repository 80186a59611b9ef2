// Package translate tags extracted text with its language and an English
// rendering.
package translate

import (
	"context"
	"encoding/json"
	"log/slog"
	"strconv"
	"strings"
	"time"
	"unicode"

	"github.com/joseph-ayodele/docextract/constants"
	"github.com/joseph-ayodele/docextract/internal/common"
	"github.com/joseph-ayodele/docextract/internal/entity"
	"github.com/joseph-ayodele/docextract/internal/llm"
	"github.com/joseph-ayodele/docextract/internal/recovery"
)

// Annotator detects languages and translates through a text-only model call.
type Annotator struct {
	model   llm.Model
	cache   Cache
	timeout time.Duration
	logger  *slog.Logger
}

// Option customizes an Annotator.
type Option func(*Annotator)

// WithCache enables caching of successful annotations.
func WithCache(c Cache) Option {
	return func(a *Annotator) { a.cache = c }
}

// WithTimeout bounds each detect or translate call.
func WithTimeout(d time.Duration) Option {
	return func(a *Annotator) { a.timeout = d }
}

func NewAnnotator(model llm.Model, logger *slog.Logger, opts ...Option) *Annotator {
	if logger == nil {
		logger = slog.Default()
	}
	a := &Annotator{model: model, logger: logger}
	for _, o := range opts {
		o(a)
	}
	return a
}

// Annotate returns the (original, language, translated) triple for text.
// It never fails: model errors yield {text, "unknown", text}.
func (a *Annotator) Annotate(ctx context.Context, text string) entity.TranslatableField {
	if strings.TrimSpace(text) == "" {
		return entity.TranslatableField{}
	}
	logger := common.LoggerFrom(ctx, a.logger)

	key := Key(text)
	if a.cache != nil {
		if f, ok, err := a.cache.Get(ctx, key); err != nil {
			logger.Warn("translate.cache.get_failed", "error", err)
		} else if ok {
			f.Original = text
			return f
		}
	}

	reply, err := a.call(ctx, llm.DetectLanguagePrompt(text))
	if err != nil {
		logger.Warn("translate.detect.failed", "error", err)
		return entity.PassThrough(text, constants.LanguageUnknown)
	}
	lang := NormalizeLanguage(reply)
	if lang == "" {
		logger.Warn("translate.detect.empty", "reply", reply)
		return entity.PassThrough(text, constants.LanguageUnknown)
	}

	out := entity.PassThrough(text, lang)
	if lang != constants.LanguageEnglish {
		translated, err := a.call(ctx, llm.TranslatePrompt(text, lang))
		if err != nil {
			logger.Warn("translate.translate.failed", "language", lang, "error", err)
			return entity.PassThrough(text, constants.LanguageUnknown)
		}
		if t := strings.TrimSpace(translated); t != "" {
			out.Translated = t
		}
	}

	if a.cache != nil {
		if err := a.cache.Set(ctx, key, out); err != nil {
			logger.Warn("translate.cache.set_failed", "error", err)
		}
	}
	return out
}

func (a *Annotator) call(ctx context.Context, prompt string) (string, error) {
	ctx, cancel := common.WithTimeout(ctx, a.timeout)
	defer cancel()
	reply, err := a.model.Generate(ctx, prompt, nil)
	if err != nil {
		return "", common.ModelCallError("annotate", err)
	}
	return reply, nil
}

// NormalizeLanguage reduces a detector reply to a bare language code:
// trimmed, quotes and punctuation stripped, lowercased, first token.
func NormalizeLanguage(reply string) string {
	clean := strings.Map(func(r rune) rune {
		if unicode.IsPunct(r) || unicode.IsSymbol(r) {
			return ' '
		}
		return unicode.ToLower(r)
	}, strings.TrimSpace(reply))
	fields := strings.Fields(clean)
	if len(fields) == 0 {
		return ""
	}
	return fields[0]
}

// AnnotateValue annotates one decoded JSON value. Strings are detected and
// translated, numbers and bools are tagged "none", nil becomes an empty
// triple, lists go through AnnotateList and objects pass through as scalars.
func (a *Annotator) AnnotateValue(ctx context.Context, v any) entity.Value {
	switch x := v.(type) {
	case nil:
		return entity.TranslatableField{}
	case string:
		return a.Annotate(ctx, x)
	case []any:
		return a.AnnotateList(ctx, x)
	case map[string]any:
		return entity.Scalar{V: x}
	default:
		return entity.PassThrough(formatScalar(x), constants.LanguageNone)
	}
}

// AnnotateList annotates non-empty string items. Empty strings and other
// scalars are tagged "none"; objects and nested lists pass through raw.
func (a *Annotator) AnnotateList(ctx context.Context, items []any) entity.ListField {
	out := make(entity.ListField, 0, len(items))
	for _, it := range items {
		var f entity.TranslatableField
		switch x := it.(type) {
		case map[string]any, []any:
			out = append(out, entity.ListItem{Raw: x})
			continue
		case string:
			if strings.TrimSpace(x) == "" {
				f = entity.PassThrough(x, constants.LanguageNone)
			} else {
				f = a.Annotate(ctx, x)
			}
		default:
			f = entity.PassThrough(formatScalar(x), constants.LanguageNone)
		}
		out = append(out, entity.ListItem{Field: &f})
	}
	return out
}

// AnnotateRecord annotates every field of a recovered mapping. With a fixed
// schema the record holds exactly the schema fields in schema order and
// missing fields are empty; otherwise keys keep their first-seen order.
func (a *Annotator) AnnotateRecord(ctx context.Context, res recovery.Result, schema constants.Schema) *entity.Record {
	if schema == nil {
		rec := entity.NewRecord(entity.Dynamic)
		for _, k := range res.Keys {
			rec.Set(k, a.AnnotateValue(ctx, res.Data[k]))
		}
		return rec
	}

	rec := entity.NewRecord(entity.FixedSchema)
	for _, f := range schema {
		v, ok := res.Data[f.Name]
		switch {
		case f.List:
			items, _ := v.([]any)
			rec.Set(f.Name, a.AnnotateList(ctx, items))
		case !ok:
			rec.Set(f.Name, entity.TranslatableField{})
		default:
			rec.Set(f.Name, a.AnnotateValue(ctx, v))
		}
	}
	for _, k := range res.Keys {
		if !schema.Has(k) {
			common.LoggerFrom(ctx, a.logger).Debug("translate.field.dropped", "field", k)
		}
	}
	return rec
}

func formatScalar(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(x)
	case json.Number:
		return x.String()
	case int:
		return strconv.Itoa(x)
	default:
		b, err := json.Marshal(x)
		if err != nil {
			return ""
		}
		return string(b)
	}
}
