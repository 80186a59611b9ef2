package utils

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"google.golang.org/protobuf/types/known/structpb"

	"github.com/joseph-ayodele/docextract/internal/entity"
)

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}

// ExtractionSummary is the listing form of an extraction, without its data.
func ExtractionSummary(e *entity.Extraction) map[string]any {
	return map[string]any{
		"id":            e.ID.String(),
		"user_id":       e.UserID,
		"document_type": string(e.DocumentType),
		"source_name":   e.SourceName,
		"subject":       e.Subject,
		"custom_prompt": e.CustomPrompt,
		"page_count":    e.PageCount,
		"failed_pages":  e.FailedPages,
		"needs_review":  e.NeedsReview,
		"created_at":    formatTime(e.CreatedAt),
	}
}

// ToPBExtraction renders e, including its extracted data, as a Struct.
func ToPBExtraction(e *entity.Extraction) (*structpb.Struct, error) {
	m := ExtractionSummary(e)
	var data any = map[string]any{}
	if len(e.Data) > 0 {
		if err := json.Unmarshal(e.Data, &data); err != nil {
			return nil, fmt.Errorf("decode extraction %s: %w", e.ID, err)
		}
	}
	m["data"] = data
	return structpb.NewStruct(m)
}

// DocumentData decodes doc's JSON form into plain maps and slices.
func DocumentData(doc *entity.Document) (any, error) {
	b, err := json.Marshal(doc)
	if err != nil {
		return nil, err
	}
	var out any
	if err := json.Unmarshal(b, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// PromptMap is the wire form of a saved prompt.
func PromptMap(p *entity.SavedPrompt) map[string]any {
	return map[string]any{
		"id":            p.ID.String(),
		"name":          p.Name,
		"document_type": string(p.DocumentType),
		"prompt_text":   p.PromptText,
		"is_default":    p.IsDefault,
		"created_at":    formatTime(p.CreatedAt),
		"updated_at":    formatTime(p.UpdatedAt),
	}
}

// StructString returns the trimmed string at key, or "".
func StructString(s *structpb.Struct, key string) string {
	if s == nil {
		return ""
	}
	v, ok := s.GetFields()[key]
	if !ok {
		return ""
	}
	return strings.TrimSpace(v.GetStringValue())
}

// StructBool returns the bool at key, or false.
func StructBool(s *structpb.Struct, key string) bool {
	if s == nil {
		return false
	}
	return s.GetFields()[key].GetBoolValue()
}

// StructInt returns the number at key truncated to int, or 0.
func StructInt(s *structpb.Struct, key string) int {
	if s == nil {
		return 0
	}
	return int(s.GetFields()[key].GetNumberValue())
}
