package server

import (
	"context"

	"google.golang.org/protobuf/types/known/structpb"

	"github.com/joseph-ayodele/docextract/constants"
	"github.com/joseph-ayodele/docextract/internal/entity"
	"github.com/joseph-ayodele/docextract/internal/utils"
)

// SavePrompt upserts a prompt by (user_id, name, document_type).
func (s *ExtractionServer) SavePrompt(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	userID, err := requireUser(req)
	if err != nil {
		return nil, err
	}
	docType, err := constants.ParseDocumentType(utils.StructString(req, "document_type"))
	if err != nil {
		return nil, invalid(err.Error())
	}
	p, err := s.prompts.Save(ctx, &entity.SavedPrompt{
		UserID:       userID,
		Name:         utils.StructString(req, "name"),
		DocumentType: docType,
		PromptText:   utils.StructString(req, "prompt_text"),
		IsDefault:    utils.StructBool(req, "is_default"),
	})
	if err != nil {
		return nil, err
	}
	return structpb.NewStruct(map[string]any{"prompt": utils.PromptMap(p)})
}

func (s *ExtractionServer) GetPrompt(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	userID, err := requireUser(req)
	if err != nil {
		return nil, err
	}
	id, err := parseID(req, "id")
	if err != nil {
		return nil, err
	}
	p, err := s.prompts.Get(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	return structpb.NewStruct(map[string]any{"prompt": utils.PromptMap(p)})
}

// ListPrompts returns the user's prompts ordered by name, optionally for one
// document type.
func (s *ExtractionServer) ListPrompts(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	userID, err := requireUser(req)
	if err != nil {
		return nil, err
	}
	docType, err := optionalDocType(req)
	if err != nil {
		return nil, err
	}
	list, err := s.prompts.List(ctx, userID, docType)
	if err != nil {
		return nil, err
	}
	out := make([]any, 0, len(list))
	for _, p := range list {
		out = append(out, utils.PromptMap(p))
	}
	return structpb.NewStruct(map[string]any{"prompts": out})
}

func (s *ExtractionServer) DeletePrompt(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	userID, err := requireUser(req)
	if err != nil {
		return nil, err
	}
	id, err := parseID(req, "id")
	if err != nil {
		return nil, err
	}
	if err := s.prompts.Delete(ctx, userID, id); err != nil {
		return nil, err
	}
	return &structpb.Struct{}, nil
}
