// Package merge folds per-page records into one document record.
package merge

import (
	"fmt"
	"log/slog"
	"reflect"

	"github.com/joseph-ayodele/docextract/internal/common"
	"github.com/joseph-ayodele/docextract/internal/entity"
)

// Mode selects how list fields combine across pages.
type Mode int

const (
	// DefaultSchema appends list items from every page.
	DefaultSchema Mode = iota
	// CustomPrompt appends a list item only when an equal item is not
	// already present.
	CustomPrompt
)

func (m Mode) String() string {
	if m == CustomPrompt {
		return "custom_prompt"
	}
	return "default_schema"
}

// Merger combines page records. The zero value logs to slog.Default.
type Merger struct {
	logger *slog.Logger
}

func NewMerger(logger *slog.Logger) *Merger {
	if logger == nil {
		logger = slog.Default()
	}
	return &Merger{logger: logger}
}

// Merge folds pages, in order, into a single record. The first page seeds the
// result; later pages only fill gaps or extend lists. Nil pages are skipped.
// Returns nil when no page is given.
func (m *Merger) Merge(pages []*entity.Record, mode Mode) *entity.Record {
	var merged *entity.Record
	for i, p := range pages {
		if p == nil {
			continue
		}
		if merged == nil {
			merged = p.Clone()
			continue
		}
		for _, name := range p.Keys() {
			incoming, _ := p.Get(name)
			if err := m.mergeField(merged, name, incoming, mode); err != nil {
				m.log().Warn("merge.field.skipped", "field", name, "page", i, "mode", mode.String(), "error", err)
			}
		}
	}
	return merged
}

func (m *Merger) log() *slog.Logger {
	if m == nil || m.logger == nil {
		return slog.Default()
	}
	return m.logger
}

// Merge uses a default Merger.
func Merge(pages []*entity.Record, mode Mode) *entity.Record {
	return NewMerger(nil).Merge(pages, mode)
}

func (m *Merger) mergeField(merged *entity.Record, name string, incoming entity.Value, mode Mode) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = common.MergeFieldError(name, fmt.Errorf("panic: %v", p))
		}
	}()

	current, ok := merged.Get(name)
	if !ok {
		merged.Set(name, cloneValue(incoming))
		return nil
	}

	switch cur := current.(type) {
	case entity.TranslatableField:
		in, ok := incoming.(entity.TranslatableField)
		if !ok {
			return mismatch(name, current, incoming)
		}
		if cur.IsEmpty() && !in.IsEmpty() {
			merged.Set(name, in)
		}
	case entity.ListField:
		in, ok := incoming.(entity.ListField)
		if !ok {
			return mismatch(name, current, incoming)
		}
		merged.Set(name, appendItems(cur, in, mode))
	case entity.Scalar:
		in, ok := incoming.(entity.Scalar)
		if !ok {
			return mismatch(name, current, incoming)
		}
		if cur.IsFalsy() && !in.IsFalsy() {
			merged.Set(name, in)
		}
	default:
		return mismatch(name, current, incoming)
	}
	return nil
}

func appendItems(cur, in entity.ListField, mode Mode) entity.ListField {
	out := make(entity.ListField, len(cur), len(cur)+len(in))
	copy(out, cur)
	for _, it := range in {
		if mode == CustomPrompt && containsItem(out, it) {
			continue
		}
		out = append(out, it)
	}
	return out
}

func containsItem(list entity.ListField, it entity.ListItem) bool {
	for _, x := range list {
		if reflect.DeepEqual(itemValue(x), itemValue(it)) {
			return true
		}
	}
	return false
}

func itemValue(it entity.ListItem) any {
	if it.Field != nil {
		return *it.Field
	}
	return it.Raw
}

func cloneValue(v entity.Value) entity.Value {
	if l, ok := v.(entity.ListField); ok {
		out := make(entity.ListField, len(l))
		copy(out, l)
		return out
	}
	return v
}

func mismatch(name string, current, incoming entity.Value) error {
	return common.MergeFieldError(name, fmt.Errorf("cannot merge %T into %T", incoming, current))
}

// MergeTables concatenates page tables: columns are unioned in first-seen
// order, rows kept in page order and back-filled with "".
func MergeTables(pages []entity.TableExtraction) entity.TableExtraction {
	var out entity.TableExtraction
	seen := map[string]bool{}
	for _, p := range pages {
		for _, c := range p.Columns {
			if !seen[c] {
				seen[c] = true
				out.Columns = append(out.Columns, c)
			}
		}
		for _, r := range p.Rows {
			row := make(map[string]string, len(r))
			for k, v := range r {
				row[k] = v
				if !seen[k] {
					seen[k] = true
					out.Columns = append(out.Columns, k)
				}
			}
			out.Rows = append(out.Rows, row)
		}
	}
	out.BackFill()
	return out
}
