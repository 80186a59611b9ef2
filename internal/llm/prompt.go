package llm

import (
	"fmt"
	"strings"

	"github.com/joseph-ayodele/docextract/constants"
)

// formatting rules shared by every built-in field prompt
var fieldRules = []string{
	"Return ONLY a single JSON object. No markdown, no commentary.",
	"Use double quotes for every key and string value.",
	"Format all dates as YYYY-MM-DD.",
	"Remove currency symbols and thousands separators from amounts; keep digits and the decimal point only.",
	"If a field is not present in the document, use an empty string, or an empty array for list fields.",
	"Copy text exactly as written in the document, in its original language and script. Do not translate.",
}

// PromptFor selects the extraction prompt for one page. A non-blank custom
// prompt is used verbatim.
func PromptFor(t constants.DocumentType, customPrompt string) string {
	if strings.TrimSpace(customPrompt) != "" {
		return customPrompt
	}
	switch t {
	case constants.DocumentTable:
		return tablePrompt()
	case constants.DocumentLoan:
		return fieldPrompt("a loan application or loan record", constants.SchemaFor(t), map[string]string{
			"sex":                 "M, F or the value as written",
			"aadhar_number":       "12 digits, no spaces",
			"pan_number":          "10 characters, uppercase",
			"witness_details":     "array with one string per witness: name, relation and address as written",
			"emi_history":         "array with one string per instalment: date, amount and status as written",
			"credibility_summary": "one or two sentences on repayment behaviour visible in the document",
		})
	case constants.DocumentProperty:
		return fieldPrompt("a property or land record", constants.SchemaFor(t), map[string]string{
			"property_area":        "number with unit as written, e.g. 1200 sq ft",
			"property_coordinates": "latitude,longitude when printed, else empty",
			"risk_summary":         "one or two sentences on encumbrances, disputes or other risks stated in the document",
		})
	default:
		return fieldPrompt("a scanned document", constants.DefaultSchemaFor(t), nil)
	}
}

func fieldPrompt(kind string, schema constants.Schema, hints map[string]string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "You are a data extraction assistant. The image is one page of %s.\n", kind)
	b.WriteString("Extract the following fields and return them as JSON with exactly these keys:\n")
	for _, f := range schema {
		b.WriteString("- ")
		b.WriteString(f.Name)
		if f.List {
			b.WriteString(" (array)")
		}
		if h, ok := hints[f.Name]; ok {
			b.WriteString(": ")
			b.WriteString(h)
		}
		b.WriteString("\n")
	}
	b.WriteString("Rules:\n")
	for _, r := range fieldRules {
		b.WriteString("- ")
		b.WriteString(r)
		b.WriteString("\n")
	}
	return b.String()
}

func tablePrompt() string {
	parts := []string{
		"You are a table extraction assistant. The image contains one or more tables.",
		`Return ONLY a JSON object of the form {"columns": ["<header>", ...], "rows": [{"<header>": "<cell>", ...}, ...]}.`,
		"Use the table's own header texts as column names, in left-to-right order.",
		"Emit one object per table row, top to bottom, keyed by column name.",
		"Use an empty string for empty cells. Copy cell text exactly as written; do not translate.",
		"Use double quotes for every key and string value.",
	}
	return strings.Join(parts, "\n")
}

// DetectLanguagePrompt asks for the dominant language code of text.
func DetectLanguagePrompt(text string) string {
	return "Analyze the following text and determine its language. " +
		"Return ONLY the ISO 639-1 language code (e.g., 'hi' for Hindi, 'ta' for Tamil, 'bn' for Bengali) " +
		"or 'en' if it is English. Do not add any other words.\n\nText: " + text
}

// TranslatePrompt asks for an English rendering of text.
func TranslatePrompt(text, language string) string {
	return fmt.Sprintf("Translate the following text from %s to English. "+
		"Provide ONLY the English translation, without explanations, quotes or notes. "+
		"Keep numbers, dates and identifiers unchanged.\n\nText: %s", language, text)
}
