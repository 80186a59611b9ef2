package entity

import (
	"time"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/docextract/constants"
)

// SavedPrompt is a named extraction prompt, unique per (user, name, document type).
type SavedPrompt struct {
	ID           uuid.UUID              `json:"id"`
	UserID       string                 `json:"user_id"`
	Name         string                 `json:"name"`
	DocumentType constants.DocumentType `json:"document_type"`
	PromptText   string                 `json:"prompt_text"`
	IsDefault    bool                   `json:"is_default"`
	CreatedAt    time.Time              `json:"created_at"`
	UpdatedAt    time.Time              `json:"updated_at"`
}
