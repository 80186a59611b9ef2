package export

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/xuri/excelize/v2"

	"github.com/joseph-ayodele/docextract/constants"
	"github.com/joseph-ayodele/docextract/internal/common"
	"github.com/joseph-ayodele/docextract/internal/entity"
	"github.com/joseph-ayodele/docextract/internal/repository"
)

// Format is a download format.
type Format string

const (
	FormatJSON Format = "json"
	FormatCSV  Format = "csv"
	FormatXLSX Format = "xlsx"
)

// ParseFormat accepts json, csv or xlsx in any case.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case FormatJSON, FormatCSV, FormatXLSX:
		return f, nil
	default:
		return "", common.NewAppError(common.CodeInvalidInput, "unsupported export format "+s, common.ErrInvalidInput)
	}
}

func (f Format) ContentType() string {
	switch f {
	case FormatCSV:
		return "text/csv"
	case FormatXLSX:
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	default:
		return "application/json"
	}
}

// File is a rendered download.
type File struct {
	Name        string
	ContentType string
	Data        []byte
}

// FileName is <document_type>_extraction_<id>.<ext>.
func FileName(t constants.DocumentType, id uuid.UUID, f Format) string {
	return fmt.Sprintf("%s_extraction_%s.%s", t, id, f)
}

const sheet = "Extraction"

// Service renders stored extractions for download.
type Service struct {
	repo   repository.ExtractionRepository
	logger *slog.Logger
}

func NewService(repo repository.ExtractionRepository, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, logger: logger}
}

// Export loads the user's extraction and renders it. The document type must
// match the stored one.
func (s *Service) Export(ctx context.Context, userID string, docType constants.DocumentType, id uuid.UUID, f Format) (*File, error) {
	start := time.Now()
	e, err := s.repo.Get(ctx, userID, docType, id)
	if err != nil {
		return nil, err
	}
	doc, err := e.Document()
	if err != nil {
		return nil, fmt.Errorf("decode extraction %s: %w", id, err)
	}
	data, err := Render(doc, f)
	if err != nil {
		return nil, err
	}
	common.LoggerFrom(ctx, s.logger).Info("export."+string(f)+".ok",
		"extraction_id", id.String(),
		"bytes", len(data),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return &File{Name: FileName(e.DocumentType, e.ID, f), ContentType: f.ContentType(), Data: data}, nil
}

// Render encodes doc in format f.
func Render(doc *entity.Document, f Format) ([]byte, error) {
	switch f {
	case FormatJSON:
		return JSON(doc)
	case FormatCSV:
		return CSV(doc)
	case FormatXLSX:
		return XLSX(doc)
	default:
		return nil, common.NewAppError(common.CodeInvalidInput, "unsupported export format "+string(f), common.ErrInvalidInput)
	}
}

// JSON renders doc with 4-space indentation, keeping field order.
func JSON(doc *entity.Document) ([]byte, error) {
	raw, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("json encode: %w", err)
	}
	var buf bytes.Buffer
	if err := json.Indent(&buf, raw, "", "    "); err != nil {
		return nil, fmt.Errorf("json indent: %w", err)
	}
	return buf.Bytes(), nil
}

// CSV renders Rows(doc).
func CSV(doc *entity.Document) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.WriteAll(Rows(doc)); err != nil {
		return nil, fmt.Errorf("csv write: %w", err)
	}
	return buf.Bytes(), nil
}

// XLSX renders Rows(doc) on a single "Extraction" sheet.
func XLSX(doc *entity.Document) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()
	if err := f.SetSheetName(f.GetSheetName(0), sheet); err != nil {
		return nil, err
	}

	rows := Rows(doc)
	for r, row := range rows {
		for c, v := range row {
			cell, _ := excelize.CoordinatesToCellName(c+1, r+1)
			_ = f.SetCellValue(sheet, cell, v)
		}
	}

	if len(rows) > 0 && len(rows[0]) > 0 {
		if bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}}); err == nil {
			last, _ := excelize.CoordinatesToCellName(len(rows[0]), 1)
			_ = f.SetCellStyle(sheet, "A1", last, bold)
		}
	}

	// Widen columns
	if doc.Table != nil {
		for i := range doc.Table.Columns {
			col, _ := excelize.ColumnNumberToName(i + 1)
			_ = f.SetColWidth(sheet, col, col, 20)
		}
	} else {
		_ = f.SetColWidth(sheet, "A", "A", 28) // field
		_ = f.SetColWidth(sheet, "B", "B", 48) // original
		_ = f.SetColWidth(sheet, "C", "C", 10) // language
		_ = f.SetColWidth(sheet, "D", "D", 48) // translated
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("xlsx write: %w", err)
	}
	return buf.Bytes(), nil
}

// Rows flattens doc into a header row followed by data rows. Records give one
// row per field (one per item for lists, named field[i]); tables give their
// columns then one row per table row.
func Rows(doc *entity.Document) [][]string {
	if doc.Table != nil {
		out := make([][]string, 0, len(doc.Table.Rows)+1)
		out = append(out, append([]string(nil), doc.Table.Columns...))
		for _, r := range doc.Table.Rows {
			row := make([]string, len(doc.Table.Columns))
			for i, c := range doc.Table.Columns {
				row[i] = r[c]
			}
			out = append(out, row)
		}
		return out
	}

	out := [][]string{{"Field", "Original Value", "Language", "Translated Value"}}
	if doc.Record == nil {
		return out
	}
	for _, k := range doc.Record.Keys() {
		v, _ := doc.Record.Get(k)
		switch x := v.(type) {
		case entity.TranslatableField:
			out = append(out, []string{k, x.Original, x.Language, x.Translated})
		case entity.ListField:
			if len(x) == 0 {
				out = append(out, []string{k, "", "", ""})
			}
			for i, it := range x {
				name := fmt.Sprintf("%s[%d]", k, i)
				if it.Field != nil {
					out = append(out, []string{name, it.Field.Original, it.Field.Language, it.Field.Translated})
					continue
				}
				out = append(out, []string{name, encodeRaw(it.Raw), "", ""})
			}
		case entity.Scalar:
			out = append(out, []string{k, encodeRaw(x.V), "", ""})
		}
	}
	return out
}

func encodeRaw(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	if v == nil {
		return ""
	}
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprint(v)
	}
	return string(b)
}
