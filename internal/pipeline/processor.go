// Package pipeline runs one document through page rendering, extraction,
// recovery, annotation and merge, and persists the result.
package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/joseph-ayodele/docextract/constants"
	"github.com/joseph-ayodele/docextract/internal/common"
	"github.com/joseph-ayodele/docextract/internal/entity"
	"github.com/joseph-ayodele/docextract/internal/extract"
	"github.com/joseph-ayodele/docextract/internal/merge"
	"github.com/joseph-ayodele/docextract/internal/pages"
	"github.com/joseph-ayodele/docextract/internal/recovery"
	"github.com/joseph-ayodele/docextract/internal/repository"
	"github.com/joseph-ayodele/docextract/internal/translate"
)

// Request is one extraction run.
type Request struct {
	UserID       string
	Path         string
	SourceName   string // defaults to the base name of Path
	DocumentType constants.DocumentType
	CustomPrompt string
	// SavePromptName persists CustomPrompt under this name before extracting.
	SavePromptName string
	DefaultPrompt  bool // mark the saved prompt as the user's default
}

// PageOutcome records how one page went.
type PageOutcome struct {
	Index    int
	Strategy string
	Conforms bool
	Err      error
}

// Result is the merged document plus what is needed to judge its quality.
type Result struct {
	Extraction  *entity.Extraction // nil when nothing was persisted
	Document    *entity.Document
	Pages       []PageOutcome
	FailedPages int
	NeedsReview bool
	Prompt      string // custom or saved prompt in effect, empty for built-ins
}

// Processor coordinates the normalizer, extractor, annotator and merger.
type Processor struct {
	logger      *slog.Logger
	normalizer  *pages.Normalizer
	extractor   *extract.Extractor
	annotator   *translate.Annotator
	merger      *merge.Merger
	extractions repository.ExtractionRepository
	prompts     repository.PromptRepository
	pageWorkers int
}

// NewProcessor wires a Processor. extractions and prompts may be nil, in
// which case results are not persisted and saved prompts are not consulted.
func NewProcessor(
	logger *slog.Logger,
	normalizer *pages.Normalizer,
	extractor *extract.Extractor,
	annotator *translate.Annotator,
	extractions repository.ExtractionRepository,
	prompts repository.PromptRepository,
	pageWorkers int,
) *Processor {
	if logger == nil {
		logger = slog.Default()
	}
	if pageWorkers < 1 {
		pageWorkers = 1
	}
	return &Processor{
		logger:      logger,
		normalizer:  normalizer,
		extractor:   extractor,
		annotator:   annotator,
		merger:      merge.NewMerger(logger),
		extractions: extractions,
		prompts:     prompts,
		pageWorkers: pageWorkers,
	}
}

// Process runs the whole pipeline for req. When the merged result cannot be
// saved, the Result is still returned together with a PersistenceFailure.
func (p *Processor) Process(ctx context.Context, req Request) (*Result, error) {
	start := time.Now()
	ctx, _ = common.EnsureRequestID(ctx)
	if req.UserID != "" {
		ctx = common.WithUserID(ctx, req.UserID)
	}
	log := common.LoggerFrom(ctx, p.logger).With("document_type", req.DocumentType, "path", req.Path)

	if err := validateRequest(req); err != nil {
		return nil, err
	}
	if req.SourceName == "" {
		req.SourceName = filepath.Base(req.Path)
	}

	prompt := strings.TrimSpace(req.CustomPrompt)
	if prompt != "" && req.SavePromptName != "" {
		p.savePrompt(ctx, req, prompt)
	}
	if prompt == "" {
		prompt = p.defaultPrompt(ctx, req.UserID, req.DocumentType)
	}

	opts := pages.Options{Profile: pages.Standard}
	if req.DocumentType == constants.DocumentTable {
		opts = pages.Options{Profile: pages.Table, Raw: true}
	}
	set, err := p.normalizer.Normalize(ctx, req.Path, opts)
	if err != nil {
		return nil, err
	}
	defer set.Cleanup()

	res := &Result{Prompt: prompt, Pages: make([]PageOutcome, set.Len())}
	doc, err := p.extractPages(ctx, set, req.DocumentType, prompt, res)
	if err != nil {
		log.Error("pipeline.failed", "pages", set.Len(), "error", err)
		return nil, err
	}
	res.Document = doc
	res.NeedsReview = needsReview(res)

	log.Info("pipeline.ok",
		"pages", set.Len(),
		"failed_pages", res.FailedPages,
		"needs_review", res.NeedsReview,
		"elapsed_ms", time.Since(start).Milliseconds(),
	)

	if p.extractions == nil {
		return res, nil
	}
	saved, err := p.persist(ctx, req, res)
	if err != nil {
		log.Error("pipeline.persist.failed", "error", err)
		return res, common.PersistenceError("save extraction", err)
	}
	res.Extraction = saved
	return res, nil
}

func validateRequest(req Request) error {
	return common.NewValidator().
		Field("user_id", req.UserID, common.Required, common.MaxLength(128)).
		Field("path", req.Path, common.Required, common.ExtensionAllowed).
		Field("document_type", string(req.DocumentType), common.DocumentType).
		Error()
}

// extractPages fans pages out to the extractor and merges the annotated
// per-page results in page order. Page failures are recorded on res.
func (p *Processor) extractPages(ctx context.Context, set *pages.Set, t constants.DocumentType, prompt string, res *Result) (*entity.Document, error) {
	// A custom prompt decides its own fields, so the record is dynamic.
	recoverAs := t
	if prompt != "" && t != constants.DocumentTable {
		recoverAs = constants.DocumentCustom
	}
	schema := constants.SchemaFor(recoverAs)

	records := make([]*entity.Record, set.Len())
	tables := make([]*entity.TableExtraction, set.Len())

	var g errgroup.Group
	g.SetLimit(p.pageWorkers)
	for i, page := range set.Pages {
		g.Go(func() error {
			out := &res.Pages[i]
			out.Index = page.Index

			raw, err := p.extractor.Extract(ctx, page, t, prompt)
			if err != nil {
				out.Err = err
				common.LoggerFrom(ctx, p.logger).Warn("pipeline.page.failed", "page", page.Index+1, "error", err)
				return nil
			}

			rec := recovery.Recover(raw, recoverAs, prompt)
			out.Strategy, out.Conforms = rec.Strategy, rec.Conforms
			if rec.Strategy == recovery.StrategyDefaultSchema {
				common.LoggerFrom(ctx, p.logger).Warn("pipeline.page.malformed",
					"page", page.Index+1,
					"error", common.NewAppError(common.CodeMalformedOutput, "no structure recovered", common.ErrMalformedOutput),
				)
			} else if rec.Repaired() {
				common.LoggerFrom(ctx, p.logger).Info("pipeline.page.repaired", "page", page.Index+1, "strategy", rec.Strategy)
			}

			if t == constants.DocumentTable {
				tbl := recovery.NormalizeTable(rec)
				tables[i] = &tbl
				return nil
			}
			records[i] = p.annotator.AnnotateRecord(ctx, rec, schema)
			return nil
		})
	}
	_ = g.Wait()

	var errs []error
	for _, o := range res.Pages {
		if o.Err != nil {
			res.FailedPages++
			errs = append(errs, fmt.Errorf("page %d: %w", o.Index+1, o.Err))
		}
	}
	if len(res.Pages) == 0 || res.FailedPages == len(res.Pages) {
		return nil, common.ExtractionError(fmt.Sprintf("all %d pages failed", len(res.Pages)), errors.Join(errs...))
	}

	doc := &entity.Document{Type: t}
	if t == constants.DocumentTable {
		var ok []entity.TableExtraction
		for _, tbl := range tables {
			if tbl != nil {
				ok = append(ok, *tbl)
			}
		}
		merged := merge.MergeTables(ok)
		doc.Table = &merged
		return doc, nil
	}

	mode := merge.DefaultSchema
	if recoverAs == constants.DocumentCustom {
		mode = merge.CustomPrompt
	}
	doc.Record = p.merger.Merge(records, mode)
	return doc, nil
}

func needsReview(res *Result) bool {
	if res.FailedPages > 0 {
		return true
	}
	for _, o := range res.Pages {
		if o.Strategy != recovery.StrategyStrict || !o.Conforms {
			return true
		}
	}
	return res.Document != nil && res.Document.HasUnknownLanguage()
}

func (p *Processor) persist(ctx context.Context, req Request, res *Result) (*entity.Extraction, error) {
	data, err := json.Marshal(res.Document)
	if err != nil {
		return nil, fmt.Errorf("encode document: %w", err)
	}
	return p.extractions.Create(ctx, &entity.Extraction{
		UserID:       req.UserID,
		DocumentType: req.DocumentType,
		Data:         data,
		CustomPrompt: res.Prompt,
		SourceName:   req.SourceName,
		Subject:      res.Document.Subject(),
		PageCount:    len(res.Pages),
		FailedPages:  res.FailedPages,
		NeedsReview:  res.NeedsReview,
	})
}

// defaultPrompt returns the user's default saved prompt for t, or "".
func (p *Processor) defaultPrompt(ctx context.Context, userID string, t constants.DocumentType) string {
	if p.prompts == nil {
		return ""
	}
	sp, err := p.prompts.Default(ctx, userID, t)
	if err != nil {
		if !errors.Is(err, common.ErrNotFound) {
			common.LoggerFrom(ctx, p.logger).Warn("pipeline.prompt.default_failed", "error", err)
		}
		return ""
	}
	common.LoggerFrom(ctx, p.logger).Debug("pipeline.prompt.default", "prompt_id", sp.ID, "name", sp.Name)
	return sp.PromptText
}

// savePrompt stores the request's prompt. A failure is logged and does not
// stop the extraction.
func (p *Processor) savePrompt(ctx context.Context, req Request, prompt string) {
	if p.prompts == nil {
		return
	}
	_, err := p.prompts.Save(ctx, &entity.SavedPrompt{
		UserID:       req.UserID,
		Name:         req.SavePromptName,
		DocumentType: req.DocumentType,
		PromptText:   prompt,
		IsDefault:    req.DefaultPrompt,
	})
	if err != nil {
		common.LoggerFrom(ctx, p.logger).Warn("pipeline.prompt.save_failed", "name", req.SavePromptName, "error", err)
	}
}
