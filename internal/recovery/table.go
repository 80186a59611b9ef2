package recovery

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/joseph-ayodele/docextract/internal/entity"
)

// NormalizeTable shapes a recovered mapping into a TableExtraction. Positional
// rows are keyed by column order, row keys missing from the column list are
// appended to it, cells are stringified and every row is back-filled.
func NormalizeTable(res Result) entity.TableExtraction {
	var t entity.TableExtraction

	colsRaw, hasCols := res.Data["columns"]
	rowsRaw, hasRows := res.Data["rows"]
	if !hasCols && !hasRows && len(res.Keys) > 0 {
		// a single flat object reads as a one-row table
		row := make(map[string]string, len(res.Keys))
		for _, k := range res.Keys {
			row[k] = cellString(res.Data[k])
		}
		t.Columns = append([]string(nil), res.Keys...)
		t.Rows = []map[string]string{row}
		t.BackFill()
		return t
	}

	seen := map[string]bool{}
	addColumn := func(c string) {
		if !seen[c] {
			seen[c] = true
			t.Columns = append(t.Columns, c)
		}
	}
	for _, c := range coerceList(colsRaw) {
		addColumn(cellString(c))
	}

	for ri, r := range coerceList(rowsRaw) {
		row := map[string]string{}
		switch x := r.(type) {
		case map[string]any:
			var order []string
			if ri < len(res.RowKeys) {
				order = res.RowKeys[ri]
			}
			for _, k := range rowKeyOrder(x, order) {
				addColumn(k)
				row[k] = cellString(x[k])
			}
		case []any:
			for i, cell := range x {
				for n := len(t.Columns) + 1; i >= len(t.Columns); n++ {
					addColumn(fmt.Sprintf("column_%d", n))
				}
				row[t.Columns[i]] = cellString(cell)
			}
		default:
			if len(t.Columns) == 0 {
				addColumn("column_1")
			}
			row[t.Columns[0]] = cellString(x)
		}
		t.Rows = append(t.Rows, row)
	}
	t.BackFill()
	return t
}

// rowKeyOrder returns the keys of row in reply order. Keys the reply order
// does not cover follow in sorted order.
func rowKeyOrder(row map[string]any, order []string) []string {
	keys := make([]string, 0, len(row))
	placed := make(map[string]bool, len(row))
	for _, k := range order {
		if _, ok := row[k]; ok && !placed[k] {
			placed[k] = true
			keys = append(keys, k)
		}
	}
	var rest []string
	for k := range row {
		if !placed[k] {
			rest = append(rest, k)
		}
	}
	sort.Strings(rest)
	return append(keys, rest...)
}

func cellString(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(x)
	case json.Number:
		return x.String()
	default:
		b, err := json.Marshal(x)
		if err != nil {
			return fmt.Sprint(x)
		}
		return strings.TrimSpace(string(b))
	}
}
