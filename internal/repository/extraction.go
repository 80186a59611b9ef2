package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	entsql "entgo.io/ent/dialect/sql"
	"github.com/google/uuid"

	"github.com/joseph-ayodele/docextract/constants"
	entschema "github.com/joseph-ayodele/docextract/db/ent/schema"
	"github.com/joseph-ayodele/docextract/internal/common"
	"github.com/joseph-ayodele/docextract/internal/entity"
)

const extractionsTable = "extractions"

var extractionColumns = []string{
	"id", "user_id", "document_type", "extracted_data", "custom_prompt", "source_name",
	"subject", "page_count", "failed_pages", "needs_review", "created_at",
}

// ListFilter narrows ListExtractions. An empty DocumentType lists every type.
type ListFilter struct {
	UserID       string
	DocumentType constants.DocumentType
	Limit        int
}

type ExtractionRepository interface {
	Create(ctx context.Context, e *entity.Extraction) (*entity.Extraction, error)
	Get(ctx context.Context, userID string, docType constants.DocumentType, id uuid.UUID) (*entity.Extraction, error)
	List(ctx context.Context, f ListFilter) ([]*entity.Extraction, error)
	Delete(ctx context.Context, userID string, id uuid.UUID) error
}

type extractionRepository struct {
	db     *DB
	logger *slog.Logger
}

func NewExtractionRepository(db *DB, logger *slog.Logger) ExtractionRepository {
	if logger == nil {
		logger = slog.Default()
	}
	return &extractionRepository{
		db:     db,
		logger: logger,
	}
}

func (r *extractionRepository) Create(ctx context.Context, e *entity.Extraction) (*entity.Extraction, error) {
	if err := validateRow(entschema.Extraction{}, map[string]string{
		"user_id":       e.UserID,
		"document_type": string(e.DocumentType),
	}); err != nil {
		return nil, common.NewAppError(common.CodeInvalidInput, err.Error(), errors.Join(common.ErrValidation, err))
	}

	out := *e
	if out.ID == uuid.Nil {
		out.ID = uuid.New()
	}
	if out.CreatedAt.IsZero() {
		out.CreatedAt = time.Now().UTC()
	}
	if len(out.Data) == 0 {
		out.Data = []byte("{}")
	}

	q, args := r.db.builder().Insert(extractionsTable).
		Columns(extractionColumns...).
		Values(out.ID, out.UserID, string(out.DocumentType), string(out.Data), out.CustomPrompt, out.SourceName,
			out.Subject, out.PageCount, out.FailedPages, out.NeedsReview, out.CreatedAt).
		Query()
	if _, err := r.db.db.ExecContext(ctx, q, args...); err != nil {
		r.logger.Error("failed to create extraction", "user_id", out.UserID, "document_type", out.DocumentType, "error", err)
		return nil, fmt.Errorf("insert extraction: %w", errors.Join(common.ErrDatabase, err))
	}
	r.logger.Info("extraction created", "extraction_id", out.ID, "document_type", out.DocumentType)
	return &out, nil
}

func (r *extractionRepository) Get(ctx context.Context, userID string, docType constants.DocumentType, id uuid.UUID) (*entity.Extraction, error) {
	preds := []*entsql.Predicate{entsql.EQ("id", id), entsql.EQ("user_id", userID)}
	if docType != "" {
		preds = append(preds, entsql.EQ("document_type", string(docType)))
	}
	q, args := r.db.builder().Select(extractionColumns...).
		From(r.db.builder().Table(extractionsTable)).
		Where(entsql.And(preds...)).
		Query()

	list, err := r.query(ctx, q, args)
	if err != nil {
		r.logger.Error("failed to get extraction", "extraction_id", id, "error", err)
		return nil, err
	}
	if len(list) == 0 {
		return nil, common.NewAppError(common.CodeNotFound, "extraction "+id.String(), common.ErrNotFound)
	}
	return list[0], nil
}

func (r *extractionRepository) List(ctx context.Context, f ListFilter) ([]*entity.Extraction, error) {
	preds := []*entsql.Predicate{entsql.EQ("user_id", f.UserID)}
	if f.DocumentType != "" {
		preds = append(preds, entsql.EQ("document_type", string(f.DocumentType)))
	}
	sel := r.db.builder().Select(extractionColumns...).
		From(r.db.builder().Table(extractionsTable)).
		Where(entsql.And(preds...)).
		OrderBy(entsql.Desc("created_at"), entsql.Desc("id"))
	if f.Limit > 0 {
		sel = sel.Limit(f.Limit)
	}
	q, args := sel.Query()

	list, err := r.query(ctx, q, args)
	if err != nil {
		r.logger.Error("failed to list extractions", "user_id", f.UserID, "error", err)
		return nil, err
	}
	return list, nil
}

func (r *extractionRepository) Delete(ctx context.Context, userID string, id uuid.UUID) error {
	q, args := r.db.builder().Delete(extractionsTable).
		Where(entsql.And(entsql.EQ("id", id), entsql.EQ("user_id", userID))).
		Query()
	res, err := r.db.db.ExecContext(ctx, q, args...)
	if err != nil {
		r.logger.Error("failed to delete extraction", "extraction_id", id, "error", err)
		return fmt.Errorf("delete extraction: %w", errors.Join(common.ErrDatabase, err))
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return common.NewAppError(common.CodeNotFound, "extraction "+id.String(), common.ErrNotFound)
	}
	return nil
}

func (r *extractionRepository) query(ctx context.Context, q string, args []any) ([]*entity.Extraction, error) {
	rows, err := r.db.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("query extractions: %w", errors.Join(common.ErrDatabase, err))
	}
	defer rows.Close()

	var out []*entity.Extraction
	for rows.Next() {
		var e entity.Extraction
		var docType string
		var data []byte
		var customPrompt, source, subject sql.NullString
		if err := rows.Scan(&e.ID, &e.UserID, &docType, &data, &customPrompt, &source,
			&subject, &e.PageCount, &e.FailedPages, &e.NeedsReview, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan extraction: %w", errors.Join(common.ErrDatabase, err))
		}
		e.DocumentType = constants.DocumentType(docType)
		e.Data = data
		e.CustomPrompt = customPrompt.String
		e.SourceName = source.String
		e.Subject = subject.String
		out = append(out, &e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate extractions: %w", errors.Join(common.ErrDatabase, err))
	}
	return out, nil
}
