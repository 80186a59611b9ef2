// Package recovery turns unreliable model replies into a field mapping.
package recovery

import (
	"errors"
	"strings"

	"github.com/joseph-ayodele/docextract/constants"
)

// Strategy names, in cascade order.
const (
	StrategyStrict        = "strict"
	StrategySingleQuoted  = "single_quoted_span"
	StrategySpan          = "span"
	StrategyBlanketFixup  = "blanket_fixup"
	StrategyScrape        = "scrape"
	StrategyPromptFields  = "prompt_fields"
	StrategyDefaultSchema = "default_schema"
)

// Result is the recovered mapping. Keys lists Data's keys in the order they
// first appeared in the reply (or schema order for synthesized results).
// RowKeys, when known, lists the key order of each object in Data["rows"].
type Result struct {
	Data     map[string]any
	Keys     []string
	RowKeys  [][]string
	Strategy string
	Conforms bool // fixed schemas only; always true for custom and table
}

// Repaired reports whether anything beyond a strict parse was needed.
func (r Result) Repaired() bool { return r.Strategy != StrategyStrict }

// Get returns the value stored under key.
func (r Result) Get(key string) (any, bool) {
	v, ok := r.Data[key]
	return v, ok
}

var errNotApplicable = errors.New("strategy not applicable")

type input struct {
	raw          string
	stripped     string
	docType      constants.DocumentType
	customPrompt string
}

type strategy struct {
	name string
	run  func(in input) (mapping, error)
}

// strategies run in order; the first success wins.
var strategies = []strategy{
	{StrategyStrict, strictParse},
	{StrategySingleQuoted, singleQuotedSpan},
	{StrategySpan, plainSpan},
	{StrategyBlanketFixup, blanketFixup},
	{StrategyScrape, scrapePairs},
	{StrategyPromptFields, promptFields},
	{StrategyDefaultSchema, defaultSchema},
}

// Recover parses raw into a mapping. It never fails: when every repair
// strategy is exhausted the default schema for docType is returned with
// every field empty.
func Recover(raw string, docType constants.DocumentType, customPrompt string) (res Result) {
	defer func() {
		if p := recover(); p != nil {
			m, _ := defaultSchema(input{docType: docType})
			res = Result{Data: m.data, Keys: m.keys, Strategy: StrategyDefaultSchema}
			finalize(&res, docType)
		}
	}()

	in := input{
		raw:          raw,
		stripped:     strings.TrimSpace(stripFences(raw)),
		docType:      docType,
		customPrompt: customPrompt,
	}
	for _, s := range strategies {
		m, err := s.run(in)
		if err != nil || m.data == nil {
			continue
		}
		res = Result{Data: m.data, Keys: m.keys, RowKeys: m.rowKeys, Strategy: s.name}
		break
	}
	finalize(&res, docType)
	return res
}

// finalize coerces list fields of fixed schemas and records conformance.
func finalize(res *Result, docType constants.DocumentType) {
	if res.Data == nil {
		m, _ := defaultSchema(input{docType: docType})
		res.Data, res.Keys, res.Strategy = m.data, m.keys, StrategyDefaultSchema
	}
	res.Conforms = true

	schema := constants.SchemaFor(docType)
	if schema == nil {
		return
	}
	for _, f := range schema {
		if !f.List {
			continue
		}
		if _, ok := res.Data[f.Name]; !ok {
			res.Keys = append(res.Keys, f.Name)
		}
		res.Data[f.Name] = coerceList(res.Data[f.Name])
	}
	res.Conforms = validate(docType, res.Data) == nil
}
