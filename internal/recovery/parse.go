package recovery

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"regexp"
	"strings"

	"github.com/joseph-ayodele/docextract/constants"
)

// mapping is a decoded JSON object with its key order. rowKeys holds the key
// order of each object in a top-level "rows" array.
type mapping struct {
	data    map[string]any
	keys    []string
	rowKeys [][]string
}

func (m *mapping) set(k string, v any) {
	if m.data == nil {
		m.data = make(map[string]any)
	}
	if _, ok := m.data[k]; !ok {
		m.keys = append(m.keys, k)
	}
	m.data[k] = v
}

var reFence = regexp.MustCompile("```[A-Za-z0-9_-]*")

func stripFences(s string) string {
	return reFence.ReplaceAllString(s, "")
}

// decodeObject strictly decodes a single top-level JSON object, keeping key
// order. Trailing non-whitespace is an error.
func decodeObject(s string) (mapping, error) {
	dec := json.NewDecoder(strings.NewReader(s))
	tok, err := dec.Token()
	if err != nil {
		return mapping{}, err
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return mapping{}, errors.New("not a json object")
	}
	m := mapping{data: make(map[string]any)}
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return mapping{}, err
		}
		key, ok := tok.(string)
		if !ok {
			return mapping{}, fmt.Errorf("unexpected key token %v", tok)
		}
		var raw json.RawMessage
		if err := dec.Decode(&raw); err != nil {
			return mapping{}, err
		}
		if key == "rows" && bytes.HasPrefix(bytes.TrimSpace(raw), []byte("[")) {
			rows, order, err := decodeRows(raw)
			if err != nil {
				return mapping{}, err
			}
			m.set(key, rows)
			m.rowKeys = order
			continue
		}
		var v any
		if err := json.Unmarshal(raw, &v); err != nil {
			return mapping{}, err
		}
		m.set(key, v)
	}
	if _, err := dec.Token(); err != nil {
		return mapping{}, err
	}
	if _, err := dec.Token(); err != io.EOF {
		return mapping{}, errors.New("trailing data after object")
	}
	return m, nil
}

// decodeRows decodes a JSON array, keeping the key order of object elements.
func decodeRows(raw []byte) ([]any, [][]string, error) {
	var elems []json.RawMessage
	if err := json.Unmarshal(raw, &elems); err != nil {
		return nil, nil, err
	}
	rows := make([]any, len(elems))
	order := make([][]string, len(elems))
	for i, e := range elems {
		e = bytes.TrimSpace(e)
		if bytes.HasPrefix(e, []byte("{")) {
			obj, err := decodeObject(string(e))
			if err != nil {
				return nil, nil, err
			}
			rows[i], order[i] = obj.data, obj.keys
			continue
		}
		if err := json.Unmarshal(e, &rows[i]); err != nil {
			return nil, nil, err
		}
	}
	return rows, order, nil
}

func strictParse(in input) (mapping, error) {
	m, err := decodeObject(in.stripped)
	if err == nil {
		return m, nil
	}
	// tables are sometimes returned as a bare array of rows
	if in.docType == constants.DocumentTable && strings.HasPrefix(in.stripped, "[") {
		if rows, order, jerr := decodeRows([]byte(in.stripped)); jerr == nil {
			out := mapping{rowKeys: order}
			out.set("rows", rows)
			return out, nil
		}
	}
	return mapping{}, err
}

// braceSpan returns the text between the first '{' and the last '}'.
func braceSpan(s string) (string, bool) {
	i := strings.IndexByte(s, '{')
	j := strings.LastIndexByte(s, '}')
	if i < 0 || j <= i {
		return "", false
	}
	return s[i : j+1], true
}

func singleQuotedSpan(in input) (mapping, error) {
	span, ok := braceSpan(in.stripped)
	if !ok || !strings.Contains(span, "'") {
		return mapping{}, errNotApplicable
	}
	return decodeObject(requoteSingle(span))
}

func plainSpan(in input) (mapping, error) {
	span, ok := braceSpan(in.stripped)
	if !ok || strings.Contains(span, "'") {
		return mapping{}, errNotApplicable
	}
	return decodeObject(span)
}

var (
	reBareKey   = regexp.MustCompile(`(?m)(^\s*|[{,]\s*)([A-Za-z_][A-Za-z0-9_]*)\s*:`)
	reLineBreak = regexp.MustCompile(`("|\d|true|false|null)\s*\n\s*"`)
)

func blanketFixup(in input) (mapping, error) {
	if _, ok := braceSpan(in.stripped); ok {
		return mapping{}, errNotApplicable
	}
	s := strings.ReplaceAll(in.stripped, "'", `"`)
	if !reBareKey.MatchString(s) && !strings.Contains(s, `":`) {
		return mapping{}, errNotApplicable
	}
	s = reBareKey.ReplaceAllString(s, `${1}"${2}":`)
	s = reLineBreak.ReplaceAllString(s, "${1},\n\"")
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "{") {
		s = "{" + s + "}"
	}
	return decodeObject(s)
}

// requoteSingle rewrites single-quoted strings as JSON strings. Double-quoted
// strings are copied untouched, and bare True/False/None become JSON literals.
func requoteSingle(s string) string {
	var b strings.Builder
	b.Grow(len(s) + 8)
	for i := 0; i < len(s); {
		switch c := s[i]; c {
		case '"':
			j, _ := scanQuoted(s, i, '"')
			b.WriteString(s[i:j])
			i = j
		case '\'':
			j, closed := scanQuoted(s, i, '\'')
			end := j
			if closed {
				end = j - 1
			}
			inner := strings.ReplaceAll(s[i+1:end], `\'`, `'`)
			enc, _ := json.Marshal(inner)
			b.Write(enc)
			i = j
		default:
			if lit, n := pyLiteral(s, i); n > 0 {
				b.WriteString(lit)
				i += n
				continue
			}
			b.WriteByte(c)
			i++
		}
	}
	return b.String()
}

// scanQuoted returns the index just past the closing quote q of the string
// starting at start, honouring backslash escapes.
func scanQuoted(s string, start int, q byte) (int, bool) {
	for i := start + 1; i < len(s); i++ {
		switch s[i] {
		case '\\':
			i++
		case q:
			return i + 1, true
		}
	}
	return len(s), false
}

var pyLiterals = []struct{ py, js string }{
	{"True", "true"},
	{"False", "false"},
	{"None", "null"},
}

func pyLiteral(s string, i int) (string, int) {
	if i > 0 && isIdent(s[i-1]) {
		return "", 0
	}
	for _, l := range pyLiterals {
		if strings.HasPrefix(s[i:], l.py) {
			end := i + len(l.py)
			if end < len(s) && isIdent(s[end]) {
				continue
			}
			return l.js, len(l.py)
		}
	}
	return "", 0
}

func isIdent(c byte) bool {
	return c == '_' || c >= '0' && c <= '9' || c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z'
}
