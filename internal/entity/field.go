package entity

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// ValueKind tags the variant held by a Value.
type ValueKind int

const (
	KindField ValueKind = iota + 1
	KindList
	KindScalar
)

// Value is one field of a Record: a TranslatableField, a ListField or a Scalar.
type Value interface {
	Kind() ValueKind
}

// TranslatableField is the (original, language, translated) triple for one
// extracted textual value. Translated is never empty when Original is not.
type TranslatableField struct {
	Original   string `json:"original"`
	Language   string `json:"language"`
	Translated string `json:"translated"`
}

func (TranslatableField) Kind() ValueKind { return KindField }

// IsEmpty reports whether nothing was scanned for this field.
func (f TranslatableField) IsEmpty() bool { return strings.TrimSpace(f.Original) == "" }

// PassThrough wraps text without detection, tagging it with language.
func PassThrough(text, language string) TranslatableField {
	return TranslatableField{Original: text, Language: language, Translated: text}
}

// ListItem is either an annotated string (Field) or a raw passthrough value.
type ListItem struct {
	Field *TranslatableField
	Raw   any
}

func (i ListItem) MarshalJSON() ([]byte, error) {
	if i.Field != nil {
		return json.Marshal(i.Field)
	}
	return json.Marshal(i.Raw)
}

// ListField is an ordered sequence of items, in document then page order.
type ListField []ListItem

func (ListField) Kind() ValueKind { return KindList }

// Scalar is any other JSON value.
type Scalar struct {
	V any
}

func (Scalar) Kind() ValueKind { return KindScalar }

func (s Scalar) MarshalJSON() ([]byte, error) { return json.Marshal(s.V) }

// IsFalsy mirrors loose truthiness: nil, "", 0, false and empty collections.
func (s Scalar) IsFalsy() bool {
	switch v := s.V.(type) {
	case nil:
		return true
	case string:
		return strings.TrimSpace(v) == ""
	case bool:
		return !v
	case float64:
		return v == 0
	case int:
		return v == 0
	case json.Number:
		return v.String() == "0"
	case []any:
		return len(v) == 0
	case map[string]any:
		return len(v) == 0
	default:
		return false
	}
}

// DecodeValue rebuilds a Value from its JSON form.
func DecodeValue(raw json.RawMessage) (Value, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return Scalar{}, nil
	}
	switch trimmed[0] {
	case '{':
		if f, ok := decodeTriple(trimmed); ok {
			return f, nil
		}
	case '[':
		var items []json.RawMessage
		if err := json.Unmarshal(trimmed, &items); err != nil {
			return nil, fmt.Errorf("decode list: %w", err)
		}
		out := make(ListField, 0, len(items))
		for _, it := range items {
			if f, ok := decodeTriple(bytes.TrimSpace(it)); ok {
				ff := f
				out = append(out, ListItem{Field: &ff})
				continue
			}
			var v any
			if err := json.Unmarshal(it, &v); err != nil {
				return nil, fmt.Errorf("decode list item: %w", err)
			}
			out = append(out, ListItem{Raw: v})
		}
		return out, nil
	}
	var v any
	if err := json.Unmarshal(trimmed, &v); err != nil {
		return nil, fmt.Errorf("decode scalar: %w", err)
	}
	return Scalar{V: v}, nil
}

// decodeTriple accepts exactly an {original, language, translated} object.
func decodeTriple(b []byte) (TranslatableField, bool) {
	if len(b) == 0 || b[0] != '{' {
		return TranslatableField{}, false
	}
	var m map[string]any
	if err := json.Unmarshal(b, &m); err != nil || len(m) != 3 {
		return TranslatableField{}, false
	}
	var f TranslatableField
	for k, dst := range map[string]*string{"original": &f.Original, "language": &f.Language, "translated": &f.Translated} {
		s, ok := m[k].(string)
		if !ok {
			return TranslatableField{}, false
		}
		*dst = s
	}
	return f, true
}
