package entity

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// RecordKind distinguishes records bound to a known schema from records
// whose keys are whatever the model returned.
type RecordKind string

const (
	FixedSchema RecordKind = "fixed"
	Dynamic     RecordKind = "dynamic"
)

// Record is an ordered mapping from field name to Value.
type Record struct {
	Kind   RecordKind
	keys   []string
	values map[string]Value
}

func NewRecord(kind RecordKind) *Record {
	return &Record{Kind: kind, values: make(map[string]Value)}
}

// Set stores v under name, keeping the first-seen position of name.
func (r *Record) Set(name string, v Value) {
	if r.values == nil {
		r.values = make(map[string]Value)
	}
	if _, ok := r.values[name]; !ok {
		r.keys = append(r.keys, name)
	}
	r.values[name] = v
}

func (r *Record) Get(name string) (Value, bool) {
	v, ok := r.values[name]
	return v, ok
}

// Field returns the TranslatableField stored under name, if that is what it holds.
func (r *Record) Field(name string) (TranslatableField, bool) {
	f, ok := r.values[name].(TranslatableField)
	return f, ok
}

// Keys returns field names in insertion order.
func (r *Record) Keys() []string {
	out := make([]string, len(r.keys))
	copy(out, r.keys)
	return out
}

func (r *Record) Len() int { return len(r.keys) }

// Clone returns a copy that shares no slices with r.
func (r *Record) Clone() *Record {
	out := NewRecord(r.Kind)
	for _, k := range r.keys {
		v := r.values[k]
		if l, ok := v.(ListField); ok {
			cp := make(ListField, len(l))
			copy(cp, l)
			v = cp
		}
		out.Set(k, v)
	}
	return out
}

func (r *Record) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, k := range r.keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		kb, err := json.Marshal(k)
		if err != nil {
			return nil, err
		}
		buf.Write(kb)
		buf.WriteByte(':')
		vb, err := json.Marshal(r.values[k])
		if err != nil {
			return nil, fmt.Errorf("field %s: %w", k, err)
		}
		buf.Write(vb)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON decodes an object keeping key order. Kind is left as is.
func (r *Record) UnmarshalJSON(b []byte) error {
	dec := json.NewDecoder(bytes.NewReader(b))
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return fmt.Errorf("record: expected object")
	}
	r.keys = nil
	r.values = make(map[string]Value)
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		key, _ := tok.(string)
		var raw json.RawMessage
		if err := dec.Decode(&raw); err != nil {
			return fmt.Errorf("field %s: %w", key, err)
		}
		v, err := DecodeValue(raw)
		if err != nil {
			return fmt.Errorf("field %s: %w", key, err)
		}
		r.Set(key, v)
	}
	_, err = dec.Token()
	return err
}
