package constants

import (
	"fmt"
	"strings"
)

// DocumentType selects the extraction schema, prompt and merge policy.
type DocumentType string

const (
	DocumentLoan     DocumentType = "loan"
	DocumentProperty DocumentType = "property"
	DocumentTable    DocumentType = "table"
	DocumentCustom   DocumentType = "custom"
)

var allDocumentTypes = []DocumentType{DocumentLoan, DocumentProperty, DocumentTable, DocumentCustom}

// AllDocumentTypes returns every supported document type.
func AllDocumentTypes() []DocumentType {
	out := make([]DocumentType, len(allDocumentTypes))
	copy(out, allDocumentTypes)
	return out
}

// ParseDocumentType maps user input to a DocumentType (case-insensitive).
func ParseDocumentType(s string) (DocumentType, error) {
	v := DocumentType(strings.ToLower(strings.TrimSpace(s)))
	for _, t := range allDocumentTypes {
		if v == t {
			return t, nil
		}
	}
	return "", fmt.Errorf("unsupported document type %q", s)
}

func (t DocumentType) String() string { return string(t) }

// FieldSpec is one named entry of an extraction schema.
type FieldSpec struct {
	Name string
	List bool
}

// Schema is the ordered field set requested for a document type.
type Schema []FieldSpec

// Names returns the field names in schema order.
func (s Schema) Names() []string {
	out := make([]string, 0, len(s))
	for _, f := range s {
		out = append(out, f.Name)
	}
	return out
}

// IsList reports whether name is a list-typed field of the schema.
func (s Schema) IsList(name string) bool {
	for _, f := range s {
		if f.Name == name {
			return f.List
		}
	}
	return false
}

// Has reports whether name belongs to the schema.
func (s Schema) Has(name string) bool {
	for _, f := range s {
		if f.Name == name {
			return true
		}
	}
	return false
}

var loanSchema = Schema{
	{Name: "borrower_name"},
	{Name: "date_of_birth"},
	{Name: "sex"},
	{Name: "father_name"},
	{Name: "spouse_name"},
	{Name: "aadhar_number"},
	{Name: "pan_number"},
	{Name: "passport_number"},
	{Name: "driving_license"},
	{Name: "loan_amount"},
	{Name: "loan_sanction_date"},
	{Name: "loan_balance"},
	{Name: "witness_details", List: true},
	{Name: "emi_history", List: true},
	{Name: "credibility_summary"},
}

var propertySchema = Schema{
	{Name: "property_owner"},
	{Name: "property_area"},
	{Name: "property_location"},
	{Name: "property_coordinates"},
	{Name: "property_value"},
	{Name: "loan_limit"},
	{Name: "risk_summary"},
}

// genericSchema is used when a custom extraction yields nothing usable.
var genericSchema = Schema{
	{Name: "title"},
	{Name: "name"},
	{Name: "date"},
	{Name: "address"},
	{Name: "amount"},
	{Name: "identifier"},
	{Name: "description"},
}

// SchemaFor returns the fixed schema of a document type, or nil when the
// schema is emergent (custom) or tabular.
func SchemaFor(t DocumentType) Schema {
	switch t {
	case DocumentLoan:
		return loanSchema
	case DocumentProperty:
		return propertySchema
	default:
		return nil
	}
}

// DefaultSchemaFor is the schema used to initialize an empty record when
// every recovery strategy fails.
func DefaultSchemaFor(t DocumentType) Schema {
	if s := SchemaFor(t); s != nil {
		return s
	}
	return genericSchema
}

// SubjectField names the field used as a record's headline, if any.
func SubjectField(t DocumentType) string {
	switch t {
	case DocumentLoan:
		return "borrower_name"
	case DocumentProperty:
		return "property_owner"
	default:
		return ""
	}
}
