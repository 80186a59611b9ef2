package schema

import (
	"encoding/json"
	"time"

	"entgo.io/ent"
	"entgo.io/ent/dialect/entsql"
	"entgo.io/ent/schema"
	"entgo.io/ent/schema/field"
	"entgo.io/ent/schema/index"
	"github.com/google/uuid"

	"github.com/joseph-ayodele/docextract/constants"
	"github.com/joseph-ayodele/docextract/db/ent/schema/utils"
)

// Extraction is one processed document: the merged record plus review flags.
type Extraction struct{ ent.Schema }

func (Extraction) Annotations() []schema.Annotation {
	return []schema.Annotation{
		entsql.Annotation{Table: "extractions"},
	}
}

func (Extraction) Fields() []ent.Field {
	return []ent.Field{
		field.UUID("id", uuid.UUID{}).Default(uuid.New).Immutable(),
		field.String("user_id").NotEmpty().MaxLen(128),
		field.String("document_type").NotEmpty().
			Validate(utils.EnumValidator(utils.DocumentTypes(constants.AllDocumentTypes())...)),
		field.JSON("extracted_data", json.RawMessage{}),
		// only set for custom extractions
		field.Text("custom_prompt").Optional(),
		field.String("source_name").Optional(),
		field.Text("subject").Optional(),
		field.Int("page_count").Default(0),
		field.Int("failed_pages").Default(0),
		field.Bool("needs_review").Default(false),
		field.Time("created_at").Default(time.Now).Immutable(),
	}
}

func (Extraction) Indexes() []ent.Index {
	return []ent.Index{
		index.Fields("user_id", "document_type", "created_at"),
	}
}
