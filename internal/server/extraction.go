package server

import (
	"context"
	"encoding/base64"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/joseph-ayodele/docextract/constants"
	"github.com/joseph-ayodele/docextract/internal/async"
	"github.com/joseph-ayodele/docextract/internal/common"
	"github.com/joseph-ayodele/docextract/internal/export"
	"github.com/joseph-ayodele/docextract/internal/pipeline"
	"github.com/joseph-ayodele/docextract/internal/repository"
	"github.com/joseph-ayodele/docextract/internal/utils"
)

// ExtractionServer implements ExtractionService.
type ExtractionServer struct {
	processor   async.Processor
	queue       async.Queue
	extractions repository.ExtractionRepository
	prompts     repository.PromptRepository
	exporter    *export.Service
	logger      *slog.Logger
}

var _ ExtractionService = (*ExtractionServer)(nil)

// NewExtractionServer wires the handlers. queue may be nil, which disables
// SubmitExtraction and GetJob.
func NewExtractionServer(
	proc async.Processor,
	queue async.Queue,
	extractions repository.ExtractionRepository,
	prompts repository.PromptRepository,
	exporter *export.Service,
	logger *slog.Logger,
) *ExtractionServer {
	if logger == nil {
		logger = slog.Default()
	}
	return &ExtractionServer{
		processor:   proc,
		queue:       queue,
		extractions: extractions,
		prompts:     prompts,
		exporter:    exporter,
		logger:      logger,
	}
}

// ExtractDocument runs the pipeline synchronously. The document is either a
// server-side "path" or base64 "content" with a "file_name".
func (s *ExtractionServer) ExtractDocument(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	preq, cleanup, err := s.pipelineRequest(req)
	if err != nil {
		return nil, err
	}
	defer cleanup()

	res, err := s.processor.Process(ctx, preq)
	if err != nil {
		return nil, err
	}

	pages := make([]any, 0, len(res.Pages))
	for _, p := range res.Pages {
		page := map[string]any{"index": p.Index, "strategy": p.Strategy, "conforms": p.Conforms}
		if p.Err != nil {
			page["error"] = common.UserMessage(p.Err)
		}
		pages = append(pages, page)
	}
	out := map[string]any{
		"needs_review": res.NeedsReview,
		"failed_pages": res.FailedPages,
		"pages":        pages,
	}
	if res.Extraction != nil {
		ext, err := utils.ToPBExtraction(res.Extraction)
		if err != nil {
			return nil, err
		}
		out["extraction"] = ext.AsMap()
	} else {
		data, err := utils.DocumentData(res.Document)
		if err != nil {
			return nil, err
		}
		out["data"] = data
	}
	return structpb.NewStruct(out)
}

// SubmitExtraction queues the request and returns its job id at once.
func (s *ExtractionServer) SubmitExtraction(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	if s.queue == nil {
		return nil, common.NewAppError(common.CodeInvalidInput, "background extraction is not enabled", common.ErrInvalidInput)
	}
	if utils.StructString(req, "content") != "" {
		return nil, common.NewAppError(common.CodeInvalidInput, "background extraction needs a server-side path", common.ErrInvalidInput)
	}
	preq, _, err := s.pipelineRequest(req)
	if err != nil {
		return nil, err
	}
	job := async.NewJob(preq, common.RequestIDFromContext(ctx))
	if err := s.queue.Enqueue(ctx, job); err != nil {
		return nil, common.WrapError(err, "enqueue")
	}
	return structpb.NewStruct(map[string]any{"job_id": job.ID.String(), "status": string(constants.JobStatusQueued)})
}

func (s *ExtractionServer) GetJob(_ context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	if s.queue == nil {
		return nil, common.NewAppError(common.CodeInvalidInput, "background extraction is not enabled", common.ErrInvalidInput)
	}
	id, err := parseID(req, "job_id")
	if err != nil {
		return nil, err
	}
	st, ok := s.queue.Status(id)
	if !ok || (st.UserID != "" && st.UserID != utils.StructString(req, "user_id")) {
		return nil, common.NewAppError(common.CodeNotFound, "job "+id.String(), common.ErrNotFound)
	}
	out := map[string]any{
		"job_id":       st.ID.String(),
		"status":       string(st.Status),
		"source_name":  st.SourceName,
		"needs_review": st.NeedsReview,
		"error":        st.Error,
	}
	if st.ExtractionID != uuid.Nil {
		out["extraction_id"] = st.ExtractionID.String()
	}
	return structpb.NewStruct(out)
}

func (s *ExtractionServer) GetExtraction(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	userID, err := requireUser(req)
	if err != nil {
		return nil, err
	}
	docType, err := optionalDocType(req)
	if err != nil {
		return nil, err
	}
	id, err := parseID(req, "id")
	if err != nil {
		return nil, err
	}
	e, err := s.extractions.Get(ctx, userID, docType, id)
	if err != nil {
		return nil, err
	}
	return utils.ToPBExtraction(e)
}

func (s *ExtractionServer) ListExtractions(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	userID, err := requireUser(req)
	if err != nil {
		return nil, err
	}
	docType, err := optionalDocType(req)
	if err != nil {
		return nil, err
	}
	list, err := s.extractions.List(ctx, repository.ListFilter{
		UserID:       userID,
		DocumentType: docType,
		Limit:        utils.StructInt(req, "limit"),
	})
	if err != nil {
		return nil, err
	}
	out := make([]any, 0, len(list))
	for _, e := range list {
		out = append(out, utils.ExtractionSummary(e))
	}
	return structpb.NewStruct(map[string]any{"extractions": out})
}

func (s *ExtractionServer) DeleteExtraction(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	userID, err := requireUser(req)
	if err != nil {
		return nil, err
	}
	id, err := parseID(req, "id")
	if err != nil {
		return nil, err
	}
	if err := s.extractions.Delete(ctx, userID, id); err != nil {
		return nil, err
	}
	return &structpb.Struct{}, nil
}

// pipelineRequest maps the wire request onto a pipeline.Request. Uploaded
// content is written to a scratch file removed by the returned cleanup.
func (s *ExtractionServer) pipelineRequest(req *structpb.Struct) (pipeline.Request, func(), error) {
	noop := func() {}
	userID, err := requireUser(req)
	if err != nil {
		return pipeline.Request{}, noop, err
	}
	docType, err := constants.ParseDocumentType(utils.StructString(req, "document_type"))
	if err != nil {
		return pipeline.Request{}, noop, invalid(err.Error())
	}
	preq := pipeline.Request{
		UserID:         userID,
		Path:           utils.StructString(req, "path"),
		DocumentType:   docType,
		CustomPrompt:   utils.StructString(req, "custom_prompt"),
		SavePromptName: utils.StructString(req, "save_prompt_name"),
		DefaultPrompt:  utils.StructBool(req, "default_prompt"),
	}

	content := utils.StructString(req, "content")
	if content == "" {
		if preq.Path == "" {
			return pipeline.Request{}, noop, invalid("path or content is required")
		}
		return preq, noop, nil
	}

	name := filepath.Base(utils.StructString(req, "file_name"))
	if !constants.IsAllowed(name) {
		return pipeline.Request{}, noop, invalid("file_name must be a .pdf, .png, .jpg or .jpeg file")
	}
	data, err := base64.StdEncoding.DecodeString(content)
	if err != nil {
		return pipeline.Request{}, noop, invalid("content must be base64")
	}
	dir, err := os.MkdirTemp("", "dx-upload-*")
	if err != nil {
		return pipeline.Request{}, noop, err
	}
	cleanup := func() {
		if err := os.RemoveAll(dir); err != nil {
			s.logger.Warn("server.upload.cleanup_failed", "dir", dir, "error", err)
		}
	}
	preq.Path = filepath.Join(dir, name)
	preq.SourceName = name
	if err := os.WriteFile(preq.Path, data, 0o600); err != nil {
		cleanup()
		return pipeline.Request{}, noop, err
	}
	return preq, cleanup, nil
}

func requireUser(req *structpb.Struct) (string, error) {
	id := utils.StructString(req, "user_id")
	if id == "" {
		return "", invalid("user_id is required")
	}
	return id, nil
}

func optionalDocType(req *structpb.Struct) (constants.DocumentType, error) {
	raw := utils.StructString(req, "document_type")
	if raw == "" {
		return "", nil
	}
	t, err := constants.ParseDocumentType(raw)
	if err != nil {
		return "", invalid(err.Error())
	}
	return t, nil
}

func parseID(req *structpb.Struct, key string) (uuid.UUID, error) {
	raw := utils.StructString(req, key)
	if err := common.NewValidator().Field(key, raw, common.Required, common.UUID).Error(); err != nil {
		return uuid.Nil, err
	}
	return uuid.MustParse(raw), nil
}

func invalid(msg string) error {
	return common.NewAppError(common.CodeInvalidInput, msg, common.ErrInvalidInput)
}
