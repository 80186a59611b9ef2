package recovery

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/docextract/constants"
)

func fullLoanJSON(t *testing.T, override map[string]any) string {
	t.Helper()
	var b strings.Builder
	b.WriteString("{")
	for i, f := range constants.SchemaFor(constants.DocumentLoan) {
		if i > 0 {
			b.WriteString(",")
		}
		var v any = "x"
		if f.List {
			v = []any{"item"}
		}
		if o, ok := override[f.Name]; ok {
			v = o
		}
		enc, err := json.Marshal(v)
		require.NoError(t, err)
		b.WriteString(`"` + f.Name + `":`)
		b.Write(enc)
	}
	b.WriteString("}")
	return b.String()
}

func TestRecoverStrictKeepsOrder(t *testing.T) {
	res := Recover(`{"zeta": "1", "alpha": "2", "mid": "3"}`, constants.DocumentCustom, "")
	assert.Equal(t, StrategyStrict, res.Strategy)
	assert.False(t, res.Repaired())
	assert.Equal(t, []string{"zeta", "alpha", "mid"}, res.Keys)
	assert.True(t, res.Conforms)
}

func TestRecoverStrictRoundTrip(t *testing.T) {
	raw := fullLoanJSON(t, map[string]any{"borrower_name": "O'Brien", "loan_amount": 5000})
	res := Recover(raw, constants.DocumentLoan, "")
	require.Equal(t, StrategyStrict, res.Strategy)
	assert.True(t, res.Conforms)
	assert.Equal(t, constants.SchemaFor(constants.DocumentLoan).Names(), res.Keys)

	out, err := json.Marshal(res.Data)
	require.NoError(t, err)
	assert.JSONEq(t, raw, string(out))
}

func TestRecoverStripsFences(t *testing.T) {
	res := Recover("```json\n{\"a\": \"b\"}\n```", constants.DocumentCustom, "")
	assert.Equal(t, StrategyStrict, res.Strategy)
	assert.Equal(t, "b", res.Data["a"])
}

func TestRecoverSingleQuotes(t *testing.T) {
	for _, raw := range []string{
		`{'name': 'Ravi', 'age': '30'}`,
		`Here is the data: {'name': 'Ravi', 'age': '30'} Let me know!`,
	} {
		res := Recover(raw, constants.DocumentCustom, "")
		assert.Equal(t, StrategySingleQuoted, res.Strategy, raw)
		assert.Equal(t, map[string]any{"name": "Ravi", "age": "30"}, res.Data, raw)
		assert.Equal(t, []string{"name", "age"}, res.Keys, raw)
	}
}

func TestRecoverSingleQuotesMixed(t *testing.T) {
	res := Recover(`{"name": "O'Brien", 'quote': 'He said "hi"', 'ok': True, 'none': None}`, constants.DocumentCustom, "")
	require.Equal(t, StrategySingleQuoted, res.Strategy)
	assert.Equal(t, "O'Brien", res.Data["name"])
	assert.Equal(t, `He said "hi"`, res.Data["quote"])
	assert.Equal(t, true, res.Data["ok"])
	assert.Nil(t, res.Data["none"])
	assert.Contains(t, res.Data, "none")
}

func TestRecoverSpanWithProse(t *testing.T) {
	res := Recover(`Sure! {"a": "b"} hope this helps`, constants.DocumentCustom, "")
	assert.Equal(t, StrategySpan, res.Strategy)
	assert.Equal(t, "b", res.Data["a"])

	res = Recover(`{"a": 1} {"b": 2}`, constants.DocumentCustom, "")
	assert.NotEqual(t, StrategyStrict, res.Strategy)
}

func TestRecoverBlanketFixup(t *testing.T) {
	res := Recover("name: 'Ravi', age: '30'", constants.DocumentCustom, "")
	assert.Equal(t, StrategyBlanketFixup, res.Strategy)
	assert.Equal(t, map[string]any{"name": "Ravi", "age": "30"}, res.Data)

	res = Recover("name: 'Ravi'\nage: '30'", constants.DocumentCustom, "")
	assert.Equal(t, StrategyBlanketFixup, res.Strategy)
	assert.Equal(t, []string{"name", "age"}, res.Keys)
}

func TestRecoverScrape(t *testing.T) {
	res := Recover(`{"name": "Ravi", "age": 30,,}`, constants.DocumentCustom, "")
	assert.Equal(t, StrategyScrape, res.Strategy)
	assert.Equal(t, "Ravi", res.Data["name"])
	assert.Equal(t, "30", res.Data["age"])
	assert.Equal(t, []string{"name", "age"}, res.Keys)
}

func TestRecoverPromptFields(t *testing.T) {
	prompt := "Extract the following: invoice number, vendor name, total amount."
	res := Recover("I could not read this page.", constants.DocumentCustom, prompt)
	assert.Equal(t, StrategyPromptFields, res.Strategy)
	assert.Equal(t, []string{"invoice_number", "vendor_name", "total_amount"}, res.Keys)
	for _, k := range res.Keys {
		assert.Equal(t, "", res.Data[k])
	}
}

func TestRecoverDefaultSchema(t *testing.T) {
	res := Recover("The image is too blurry.", constants.DocumentLoan, "")
	assert.Equal(t, StrategyDefaultSchema, res.Strategy)
	assert.Equal(t, constants.SchemaFor(constants.DocumentLoan).Names(), res.Keys)
	assert.Equal(t, []any{}, res.Data["witness_details"])
	assert.Equal(t, "", res.Data["borrower_name"])

	res = Recover("", constants.DocumentCustom, "")
	assert.Equal(t, StrategyDefaultSchema, res.Strategy)
	assert.Equal(t, constants.DefaultSchemaFor(constants.DocumentCustom).Names(), res.Keys)

	res = Recover("nope", constants.DocumentTable, "")
	assert.Equal(t, []string{"columns", "rows"}, res.Keys)
}

func TestRecoverNeverPanics(t *testing.T) {
	inputs := []string{
		"", "{", "}", "}{", "{{{{", "'", "```", "\x00", `{"a": [1, 2`,
		"True False None", "{'unterminated", strings.Repeat("{", 1000),
		`{'a': 'b\'`, `{"a": "\u00"}`, ":::", `{"": ""}`, "[1,2,3]", `"just a string"`,
	}
	types := append(constants.AllDocumentTypes(), constants.DocumentType("bogus"))
	for _, in := range inputs {
		for _, dt := range types {
			assert.NotPanics(t, func() {
				res := Recover(in, dt, "extract name, age.")
				assert.NotNil(t, res.Data)
				assert.Len(t, res.Keys, len(res.Data))
			}, "%q %s", in, dt)
		}
	}
}

func TestRecoverListCoercion(t *testing.T) {
	raw := `{"borrower_name": "Ravi", "witness_details": "Ram, brother", "emi_history": "[\"Jan paid\", \"Feb paid\"]"}`
	res := Recover(raw, constants.DocumentLoan, "")
	assert.Equal(t, []any{"Ram, brother"}, res.Data["witness_details"])
	assert.Equal(t, []any{"Jan paid", "Feb paid"}, res.Data["emi_history"])

	res = Recover(`{"borrower_name": "Ravi", "witness_details": null}`, constants.DocumentLoan, "")
	assert.Equal(t, []any{}, res.Data["witness_details"])
	assert.Equal(t, []any{}, res.Data["emi_history"])
	assert.Contains(t, res.Keys, "emi_history")
	assert.False(t, res.Conforms)
}

func TestRecoverConformance(t *testing.T) {
	res := Recover(fullLoanJSON(t, map[string]any{"loan_amount": map[string]any{"value": 1}}), constants.DocumentLoan, "")
	assert.Equal(t, StrategyStrict, res.Strategy)
	assert.False(t, res.Conforms)

	res = Recover(`{"whatever": 1}`, constants.DocumentCustom, "")
	assert.True(t, res.Conforms)
}

func TestRecoverTableArray(t *testing.T) {
	res := Recover(`[{"Name": "A", "Age": "3"}]`, constants.DocumentTable, "")
	assert.Equal(t, StrategyStrict, res.Strategy)
	assert.Equal(t, []string{"rows"}, res.Keys)
	assert.Equal(t, [][]string{{"Name", "Age"}}, res.RowKeys)
}

func TestPromptFieldNames(t *testing.T) {
	tests := []struct {
		prompt string
		want   []string
	}{
		{"extract name and age", []string{"name", "age"}},
		{"Please extract name, address, and phone number", []string{"name", "address", "phone_number"}},
		{"Fields: invoice number, vendor name, total amount", []string{"invoice_number", "vendor_name", "total_amount"}},
		{"Extract the following: invoice number, vendor name, total amount.", []string{"invoice_number", "vendor_name", "total_amount"}},
		{"Please return JSON with: Name; Date of Birth; Village.", []string{"name", "date_of_birth", "village"}},
		{"Just read it", []string{}},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, PromptFieldNames(tt.prompt), tt.prompt)
	}
}
