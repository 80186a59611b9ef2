package recovery

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/joseph-ayodele/docextract/constants"
	"github.com/joseph-ayodele/docextract/internal/entity"
)

func TestNormalizeTable(t *testing.T) {
	tests := []struct {
		name string
		res  Result
		want entity.TableExtraction
	}{
		{
			name: "back-fills missing cells",
			res: Result{Data: map[string]any{
				"columns": []any{"A", "B"},
				"rows":    []any{map[string]any{"A": float64(1)}},
			}},
			want: entity.TableExtraction{
				Columns: []string{"A", "B"},
				Rows:    []map[string]string{{"A": "1", "B": ""}},
			},
		},
		{
			name: "positional rows extend columns",
			res: Result{Data: map[string]any{
				"columns": []any{"A"},
				"rows":    []any{[]any{"x", "y", true}},
			}},
			want: entity.TableExtraction{
				Columns: []string{"A", "column_2", "column_3"},
				Rows:    []map[string]string{{"A": "x", "column_2": "y", "column_3": "true"}},
			},
		},
		{
			name: "positional rows skip taken names",
			res: Result{Data: map[string]any{
				"columns": []any{"column_2"},
				"rows":    []any{[]any{"x", "y"}},
			}},
			want: entity.TableExtraction{
				Columns: []string{"column_2", "column_3"},
				Rows:    []map[string]string{{"column_2": "x", "column_3": "y"}},
			},
		},
		{
			name: "scalar row",
			res: Result{Data: map[string]any{
				"rows": []any{"only"},
			}},
			want: entity.TableExtraction{
				Columns: []string{"column_1"},
				Rows:    []map[string]string{{"column_1": "only"}},
			},
		},
		{
			name: "flat object is one row",
			res: Result{
				Data: map[string]any{"zeta": "1", "alpha": nil},
				Keys: []string{"zeta", "alpha"},
			},
			want: entity.TableExtraction{
				Columns: []string{"zeta", "alpha"},
				Rows:    []map[string]string{{"zeta": "1", "alpha": ""}},
			},
		},
		{
			name: "missing columns and rows",
			res:  Result{Data: map[string]any{}},
			want: entity.TableExtraction{Columns: []string{}, Rows: []map[string]string{}},
		},
		{
			name: "columns without rows",
			res:  Result{Data: map[string]any{"columns": []any{"A"}}, Keys: []string{"columns"}},
			want: entity.TableExtraction{Columns: []string{"A"}, Rows: []map[string]string{}},
		},
		{
			name: "row keys follow recorded order",
			res: Result{
				Data: map[string]any{
					"columns": []any{"Zone"},
					"rows": []any{map[string]any{
						"Zone": "1", "Village": "Rampur", "Area": "2", "Block": "B",
					}},
				},
				RowKeys: [][]string{{"Zone", "Village", "Area"}},
			},
			want: entity.TableExtraction{
				Columns: []string{"Zone", "Village", "Area", "Block"},
				Rows: []map[string]string{
					{"Zone": "1", "Village": "Rampur", "Area": "2", "Block": "B"},
				},
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, NormalizeTable(tt.res))
		})
	}
}

func TestNormalizeTableKeepsReplyHeaderOrder(t *testing.T) {
	res := Recover(`{"rows":[{"Zone":"1","Village":"Rampur","Area":"2"},{"Area":"5","Zone":"3","Owner":"Devi"}]}`,
		constants.DocumentTable, "")
	assert.Equal(t, StrategyStrict, res.Strategy)

	table := NormalizeTable(res)
	assert.Equal(t, []string{"Zone", "Village", "Area", "Owner"}, table.Columns)
	assert.Equal(t, map[string]string{"Zone": "3", "Village": "", "Area": "5", "Owner": "Devi"}, table.Rows[1])
}

func TestNormalizeTableBareArrayOrder(t *testing.T) {
	res := Recover(`[{"Village":"Rampur","Zone":"1"}]`, constants.DocumentTable, "")
	assert.Equal(t, []string{"Village", "Zone"}, NormalizeTable(res).Columns)
}
