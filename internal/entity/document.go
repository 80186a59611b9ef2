package entity

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/joseph-ayodele/docextract/constants"
)

// Document is the merged result of one extraction run. Exactly one of
// Record and Table is set.
type Document struct {
	Type   constants.DocumentType
	Record *Record
	Table  *TableExtraction
}

func (d *Document) MarshalJSON() ([]byte, error) {
	if d.Table != nil {
		return json.Marshal(d.Table)
	}
	if d.Record != nil {
		return json.Marshal(d.Record)
	}
	return []byte("{}"), nil
}

// DecodeDocument rebuilds a Document from its stored JSON. A record
// extracted with a custom prompt decodes as Dynamic whatever its type.
func DecodeDocument(t constants.DocumentType, data []byte, customPrompt string) (*Document, error) {
	doc := &Document{Type: t}
	if t == constants.DocumentTable {
		var tbl TableExtraction
		if err := json.Unmarshal(data, &tbl); err != nil {
			return nil, fmt.Errorf("decode table: %w", err)
		}
		tbl.BackFill()
		doc.Table = &tbl
		return doc, nil
	}
	kind := FixedSchema
	if constants.SchemaFor(t) == nil || strings.TrimSpace(customPrompt) != "" {
		kind = Dynamic
	}
	rec := NewRecord(kind)
	if err := json.Unmarshal(data, rec); err != nil {
		return nil, fmt.Errorf("decode record: %w", err)
	}
	doc.Record = rec
	return doc, nil
}

// Subject is a short headline for listings.
func (d *Document) Subject() string {
	if d.Table != nil {
		return fmt.Sprintf("table (%d rows)", len(d.Table.Rows))
	}
	if d.Record == nil {
		return ""
	}
	if name := constants.SubjectField(d.Type); name != "" {
		if f, ok := d.Record.Field(name); ok && !f.IsEmpty() {
			return f.Original
		}
	}
	for _, k := range d.Record.Keys() {
		if f, ok := d.Record.Field(k); ok && !f.IsEmpty() {
			return strings.TrimSpace(f.Original)
		}
	}
	return ""
}

// HasUnknownLanguage reports whether any annotation degraded to "unknown".
func (d *Document) HasUnknownLanguage() bool {
	if d.Record == nil {
		return false
	}
	for _, k := range d.Record.Keys() {
		v, _ := d.Record.Get(k)
		switch t := v.(type) {
		case TranslatableField:
			if t.Language == constants.LanguageUnknown {
				return true
			}
		case ListField:
			for _, it := range t {
				if it.Field != nil && it.Field.Language == constants.LanguageUnknown {
					return true
				}
			}
		}
	}
	return false
}
