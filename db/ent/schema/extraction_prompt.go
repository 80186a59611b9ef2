package schema

import (
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

// ExtractionPrompt is a named custom prompt saved by a user.
type ExtractionPrompt struct{ ent.Schema }

func (ExtractionPrompt) Annotations() []schema.Annotation {
	return []schema.Annotation{
		entsql.Annotation{Table: "extraction_prompts"},
	}
}

func (ExtractionPrompt) Fields() []ent.Field {
	return []ent.Field{
		field.UUID("id", uuid.UUID{}).Default(uuid.New).Immutable(),
		field.String("user_id").NotEmpty().MaxLen(128),
		field.String("name").NotEmpty().MaxLen(100),
		field.String("document_type").NotEmpty().
			Validate(utils.EnumValidator(utils.DocumentTypes(constants.AllDocumentTypes())...)),
		field.Text("prompt_text").NotEmpty(),
		field.Bool("is_default").Default(false),
		field.Time("created_at").Default(time.Now).Immutable(),
		field.Time("updated_at").Default(time.Now).UpdateDefault(time.Now),
	}
}

func (ExtractionPrompt) Indexes() []ent.Index {
	return []ent.Index{
		// saving under an existing name replaces the prompt
		index.Fields("user_id", "name", "document_type").Unique(),
		index.Fields("user_id", "document_type"),
	}
}
