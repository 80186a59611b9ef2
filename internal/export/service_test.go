package export

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/joseph-ayodele/docextract/constants"
	"github.com/joseph-ayodele/docextract/internal/common"
	"github.com/joseph-ayodele/docextract/internal/entity"
	"github.com/joseph-ayodele/docextract/internal/repository"
)

func loanDoc() *entity.Document {
	r := entity.NewRecord(entity.FixedSchema)
	r.Set("borrower_name", entity.TranslatableField{Original: "रवि कुमार", Language: "hi", Translated: "Ravi Kumar"})
	r.Set("loan_amount", entity.PassThrough("50000", "en"))
	r.Set("witness_details", entity.ListField{
		{Field: &entity.TranslatableField{Original: "Sita", Language: "en", Translated: "Sita"}},
		{Raw: map[string]any{"name": "Gopal"}},
	})
	r.Set("emi_history", entity.ListField{})
	r.Set("page_total", entity.Scalar{V: 2.0})
	return &entity.Document{Type: constants.DocumentLoan, Record: r}
}

func tableDoc() *entity.Document {
	return &entity.Document{Type: constants.DocumentTable, Table: &entity.TableExtraction{
		Columns: []string{"village", "area"},
		Rows: []map[string]string{
			{"village": "Rampur", "area": "2 acre"},
			{"village": "Sitapur"},
		},
	}}
}

func TestJSONIndentsAndKeepsOrder(t *testing.T) {
	b, err := JSON(loanDoc())
	require.NoError(t, err)
	s := string(b)
	assert.True(t, strings.HasPrefix(s, "{\n    \"borrower_name\": {\n        \"original\""), s)
	assert.Less(t, strings.Index(s, "borrower_name"), strings.Index(s, "loan_amount"))
	assert.Less(t, strings.Index(s, "loan_amount"), strings.Index(s, "witness_details"))
	assert.True(t, json.Valid(b))
}

func TestRowsForRecord(t *testing.T) {
	rows := Rows(loanDoc())
	assert.Equal(t, [][]string{
		{"Field", "Original Value", "Language", "Translated Value"},
		{"borrower_name", "रवि कुमार", "hi", "Ravi Kumar"},
		{"loan_amount", "50000", "en", "50000"},
		{"witness_details[0]", "Sita", "en", "Sita"},
		{"witness_details[1]", `{"name":"Gopal"}`, "", ""},
		{"emi_history", "", "", ""},
		{"page_total", "2", "", ""},
	}, rows)
}

func TestRowsForTable(t *testing.T) {
	assert.Equal(t, [][]string{
		{"village", "area"},
		{"Rampur", "2 acre"},
		{"Sitapur", ""},
	}, Rows(tableDoc()))
}

func TestCSV(t *testing.T) {
	b, err := CSV(loanDoc())
	require.NoError(t, err)
	got, err := csv.NewReader(bytes.NewReader(b)).ReadAll()
	require.NoError(t, err)
	assert.Equal(t, Rows(loanDoc()), got)
}

func TestXLSX(t *testing.T) {
	for name, doc := range map[string]*entity.Document{"record": loanDoc(), "table": tableDoc()} {
		t.Run(name, func(t *testing.T) {
			b, err := XLSX(doc)
			require.NoError(t, err)

			f, err := excelize.OpenReader(bytes.NewReader(b))
			require.NoError(t, err)
			defer f.Close()
			assert.Equal(t, []string{sheet}, f.GetSheetList())

			rows, err := f.GetRows(sheet)
			require.NoError(t, err)
			want := Rows(doc)
			require.Len(t, rows, len(want))
			assert.Equal(t, want[0], rows[0])
			assert.Equal(t, want[1][0], rows[1][0])
		})
	}
}

func TestParseFormat(t *testing.T) {
	f, err := ParseFormat(" XLSX ")
	require.NoError(t, err)
	assert.Equal(t, FormatXLSX, f)

	_, err = ParseFormat("pdf")
	assert.ErrorIs(t, err, common.ErrInvalidInput)
}

func TestFileName(t *testing.T) {
	id := uuid.MustParse("6f1c1f6e-8a57-4a7e-9c55-0d1b2b7f9a10")
	assert.Equal(t, "loan_extraction_6f1c1f6e-8a57-4a7e-9c55-0d1b2b7f9a10.csv", FileName(constants.DocumentLoan, id, FormatCSV))
}

func TestServiceExport(t *testing.T) {
	ctx := context.Background()
	db, err := repository.OpenInMemory(ctx, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	require.NoError(t, db.Migrate(ctx))

	repo := repository.NewExtractionRepository(db, nil)
	data, err := json.Marshal(loanDoc())
	require.NoError(t, err)
	saved, err := repo.Create(ctx, &entity.Extraction{UserID: "u1", DocumentType: constants.DocumentLoan, Data: data})
	require.NoError(t, err)

	svc := NewService(repo, nil)
	file, err := svc.Export(ctx, "u1", constants.DocumentLoan, saved.ID, FormatCSV)
	require.NoError(t, err)
	assert.Equal(t, "loan_extraction_"+saved.ID.String()+".csv", file.Name)
	assert.Equal(t, "text/csv", file.ContentType)
	assert.Contains(t, string(file.Data), "Ravi Kumar")

	_, err = svc.Export(ctx, "u1", constants.DocumentProperty, saved.ID, FormatJSON)
	assert.ErrorIs(t, err, common.ErrNotFound)
	_, err = svc.Export(ctx, "u2", constants.DocumentLoan, saved.ID, FormatJSON)
	assert.ErrorIs(t, err, common.ErrNotFound)
}
