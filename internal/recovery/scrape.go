package recovery

import (
	"encoding/json"
	"regexp"
	"sort"
	"strings"

	"github.com/joseph-ayodele/docextract/constants"
)

var (
	reInnerObject = regexp.MustCompile(`\{[^{}]*\}`)
	rePair        = regexp.MustCompile(`["']?([A-Za-z_][A-Za-z0-9_ ]*?)["']?\s*:\s*("(?:[^"\\]|\\.)*"|'(?:[^'\\]|\\.)*'|[^,}\n]+)`)
)

// scrapePairs harvests key/value pairs from the brace regions of a reply that
// no parser accepted.
func scrapePairs(in input) (mapping, error) {
	var regions []string
	if span, ok := braceSpan(in.stripped); ok {
		regions = append(regions, span)
	}
	regions = append(regions, reInnerObject.FindAllString(in.stripped, -1)...)

	out := mapping{}
	for _, r := range regions {
		for _, m := range rePair.FindAllStringSubmatch(r, -1) {
			key := strings.TrimSpace(m[1])
			if key == "" {
				continue
			}
			if _, seen := out.data[key]; seen {
				continue
			}
			out.set(key, scrapedValue(m[2]))
		}
	}
	if len(out.keys) == 0 {
		return mapping{}, errNotApplicable
	}
	return out, nil
}

func scrapedValue(v string) string {
	v = strings.TrimSpace(v)
	switch {
	case len(v) >= 2 && v[0] == '"':
		var s string
		if err := json.Unmarshal([]byte(v), &s); err == nil {
			return s
		}
		return v[1 : len(v)-1]
	case len(v) >= 2 && v[0] == '\'':
		return strings.ReplaceAll(v[1:len(v)-1], `\'`, `'`)
	case v == "null" || v == "None":
		return ""
	}
	return v
}

var (
	reExtractWord = regexp.MustCompile(`(?i)\bextract(?:s|ing)?\s+(?:the\s+|all\s+)?([A-Za-z][A-Za-z0-9_]*)`)
	rePunct       = regexp.MustCompile(`[,;:.\n•*()\[\]{}"'|/]+|\s+-\s+|\band\b`)
	reFieldWord   = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9_]*$`)
)

var promptStopWords = map[string]bool{
	"extract": true, "return": true, "please": true, "provide": true, "output": true,
	"give": true, "list": true, "json": true, "format": true, "following": true,
	"fields": true, "field": true, "document": true, "image": true, "page": true,
	"the": true, "a": true, "an": true, "and": true, "or": true, "with": true,
	"in": true, "as": true, "from": true, "all": true, "only": true, "values": true,
	"e": true, "g": true, "eg": true, "etc": true,
}

type promptField struct {
	pos  int
	name string
}

// PromptFieldNames guesses the field names a free-text prompt asks for:
// words following "extract" and short phrases set off by punctuation, in
// prompt order, snake_cased.
func PromptFieldNames(prompt string) []string {
	var found []promptField
	for _, m := range reExtractWord.FindAllStringSubmatchIndex(prompt, -1) {
		word := prompt[m[2]:m[3]]
		if !promptStopWords[strings.ToLower(word)] {
			found = append(found, promptField{pos: m[2], name: snake(word)})
		}
	}

	bounds := rePunct.FindAllStringIndex(prompt, -1)
	// a segment is flanked when a separator sits on both sides; after the
	// first separator the end of the prompt counts as one
	if len(bounds) > 0 {
		bounds = append(bounds, []int{len(prompt), len(prompt)})
	}
	for i := 0; i+1 < len(bounds); i++ {
		start, end := bounds[i][1], bounds[i+1][0]
		seg := strings.TrimSpace(prompt[start:end])
		if name, ok := segmentField(seg); ok {
			found = append(found, promptField{pos: start, name: name})
		}
	}

	sort.SliceStable(found, func(i, j int) bool { return found[i].pos < found[j].pos })
	seen := make(map[string]bool, len(found))
	names := make([]string, 0, len(found))
	for _, f := range found {
		if f.name == "" || seen[f.name] {
			continue
		}
		seen[f.name] = true
		names = append(names, f.name)
	}
	return names
}

func segmentField(seg string) (string, bool) {
	words := strings.Fields(seg)
	if len(words) == 0 || len(words) > 3 {
		return "", false
	}
	for _, w := range words {
		if !reFieldWord.MatchString(w) || promptStopWords[strings.ToLower(w)] {
			return "", false
		}
	}
	return snake(strings.Join(words, " ")), true
}

func snake(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	var b strings.Builder
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '_':
			b.WriteRune(r)
		case r == ' ' || r == '-':
			b.WriteByte('_')
		}
	}
	return strings.Trim(b.String(), "_")
}

func promptFields(in input) (mapping, error) {
	if strings.TrimSpace(in.customPrompt) == "" {
		return mapping{}, errNotApplicable
	}
	names := PromptFieldNames(in.customPrompt)
	if len(names) == 0 {
		return mapping{}, errNotApplicable
	}
	out := mapping{}
	for _, n := range names {
		out.set(n, "")
	}
	return out, nil
}

func defaultSchema(in input) (mapping, error) {
	out := mapping{}
	if in.docType == constants.DocumentTable {
		out.set("columns", []any{})
		out.set("rows", []any{})
		return out, nil
	}
	for _, f := range constants.DefaultSchemaFor(in.docType) {
		if f.List {
			out.set(f.Name, []any{})
			continue
		}
		out.set(f.Name, "")
	}
	return out, nil
}
