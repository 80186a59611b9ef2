package entity

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/docextract/constants"
)

// Extraction is the persisted form of a Document, owned by one user.
type Extraction struct {
	ID           uuid.UUID              `json:"id"`
	UserID       string                 `json:"user_id"`
	DocumentType constants.DocumentType `json:"document_type"`
	Data         json.RawMessage        `json:"extracted_data"`
	CustomPrompt string                 `json:"custom_prompt,omitempty"`
	SourceName   string                 `json:"source_name"`
	Subject      string                 `json:"subject"`
	PageCount    int                    `json:"page_count"`
	FailedPages  int                    `json:"failed_pages"`
	NeedsReview  bool                   `json:"needs_review"`
	CreatedAt    time.Time              `json:"created_at"`
}

// Document decodes the stored data.
func (e *Extraction) Document() (*Document, error) {
	return DecodeDocument(e.DocumentType, e.Data, e.CustomPrompt)
}
