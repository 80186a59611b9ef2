package utils

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/joseph-ayodele/docextract/constants"
	"github.com/joseph-ayodele/docextract/internal/entity"
)

func TestToPBExtraction(t *testing.T) {
	e := &entity.Extraction{
		ID:           uuid.New(),
		UserID:       "u1",
		DocumentType: constants.DocumentTable,
		Data:         json.RawMessage(`{"columns":["village"],"rows":[{"village":"Rampur"}]}`),
		PageCount:    2,
		CreatedAt:    time.Date(2024, 3, 1, 10, 0, 0, 0, time.FixedZone("IST", 19800)),
	}
	s, err := ToPBExtraction(e)
	require.NoError(t, err)
	m := s.AsMap()
	assert.Equal(t, "table", m["document_type"])
	assert.Equal(t, float64(2), m["page_count"])
	assert.Equal(t, "2024-03-01T04:30:00Z", m["created_at"])
	assert.Equal(t, []any{"village"}, m["data"].(map[string]any)["columns"])

	e.Data = json.RawMessage(`{`)
	_, err = ToPBExtraction(e)
	assert.Error(t, err)
}

func TestExtractionSummaryOmitsData(t *testing.T) {
	m := ExtractionSummary(&entity.Extraction{ID: uuid.New()})
	assert.NotContains(t, m, "data")
	assert.Equal(t, "", m["created_at"])
}

func TestStructAccessors(t *testing.T) {
	s, err := structpb.NewStruct(map[string]any{"name": "  loan ", "limit": 25.9, "default": true})
	require.NoError(t, err)
	assert.Equal(t, "loan", StructString(s, "name"))
	assert.Equal(t, "", StructString(s, "missing"))
	assert.Equal(t, 25, StructInt(s, "limit"))
	assert.True(t, StructBool(s, "default"))
	assert.False(t, StructBool(nil, "default"))
	assert.Equal(t, "", StructString(nil, "name"))
}
