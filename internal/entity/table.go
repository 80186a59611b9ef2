package entity

// TableExtraction is tabular output: ordered columns and rows keyed by column.
type TableExtraction struct {
	Columns []string            `json:"columns"`
	Rows    []map[string]string `json:"rows"`
}

// BackFill makes every row carry every column, using "" for missing cells.
func (t *TableExtraction) BackFill() {
	if t.Columns == nil {
		t.Columns = []string{}
	}
	if t.Rows == nil {
		t.Rows = []map[string]string{}
	}
	for i, row := range t.Rows {
		if row == nil {
			row = make(map[string]string, len(t.Columns))
			t.Rows[i] = row
		}
		for _, c := range t.Columns {
			if _, ok := row[c]; !ok {
				row[c] = ""
			}
		}
	}
}
