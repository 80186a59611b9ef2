package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	entsql "entgo.io/ent/dialect/sql"
	"github.com/google/uuid"

	"github.com/joseph-ayodele/docextract/constants"
	entschema "github.com/joseph-ayodele/docextract/db/ent/schema"
	"github.com/joseph-ayodele/docextract/internal/common"
	"github.com/joseph-ayodele/docextract/internal/entity"
)

const promptsTable = "extraction_prompts"

var promptColumns = []string{
	"id", "user_id", "name", "document_type", "prompt_text", "is_default", "created_at", "updated_at",
}

type PromptRepository interface {
	// Save inserts p or, when (user, name, document type) exists, replaces its
	// text and default flag. Marking a prompt default clears the flag on the
	// user's other prompts of the same type.
	Save(ctx context.Context, p *entity.SavedPrompt) (*entity.SavedPrompt, error)
	Get(ctx context.Context, userID string, id uuid.UUID) (*entity.SavedPrompt, error)
	List(ctx context.Context, userID string, docType constants.DocumentType) ([]*entity.SavedPrompt, error)
	Default(ctx context.Context, userID string, docType constants.DocumentType) (*entity.SavedPrompt, error)
	Delete(ctx context.Context, userID string, id uuid.UUID) error
}

type promptRepository struct {
	db     *DB
	logger *slog.Logger
}

func NewPromptRepository(db *DB, logger *slog.Logger) PromptRepository {
	if logger == nil {
		logger = slog.Default()
	}
	return &promptRepository{db: db, logger: logger}
}

func (r *promptRepository) Save(ctx context.Context, p *entity.SavedPrompt) (_ *entity.SavedPrompt, err error) {
	p.Name = strings.TrimSpace(p.Name)
	if err := validateRow(entschema.ExtractionPrompt{}, map[string]string{
		"user_id":       p.UserID,
		"name":          p.Name,
		"document_type": string(p.DocumentType),
		"prompt_text":   strings.TrimSpace(p.PromptText),
	}); err != nil {
		return nil, common.NewAppError(common.CodeInvalidInput, err.Error(), errors.Join(common.ErrValidation, err))
	}

	now := time.Now().UTC()
	tx, err := r.db.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin: %w", errors.Join(common.ErrDatabase, err))
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if p.IsDefault {
		q, args := r.db.builder().Update(promptsTable).
			Set("is_default", false).
			Where(entsql.And(
				entsql.EQ("user_id", p.UserID),
				entsql.EQ("document_type", string(p.DocumentType)),
				entsql.NEQ("name", p.Name),
			)).
			Query()
		if _, err = tx.ExecContext(ctx, q, args...); err != nil {
			return nil, fmt.Errorf("clear default prompt: %w", errors.Join(common.ErrDatabase, err))
		}
	}

	q, args := r.db.builder().Insert(promptsTable).
		Columns(promptColumns...).
		Values(uuid.New(), p.UserID, p.Name, string(p.DocumentType), p.PromptText, p.IsDefault, now, now).
		OnConflict(
			entsql.ConflictColumns("user_id", "name", "document_type"),
			entsql.ResolveWith(func(u *entsql.UpdateSet) {
				u.SetExcluded("prompt_text")
				u.SetExcluded("is_default")
				u.SetExcluded("updated_at")
			}),
		).
		Query()
	if _, err = tx.ExecContext(ctx, q, args...); err != nil {
		r.logger.Error("failed to save prompt", "user_id", p.UserID, "name", p.Name, "error", err)
		return nil, fmt.Errorf("save prompt: %w", errors.Join(common.ErrDatabase, err))
	}

	sel, selArgs := r.selectWhere(entsql.And(
		entsql.EQ("user_id", p.UserID),
		entsql.EQ("name", p.Name),
		entsql.EQ("document_type", string(p.DocumentType)),
	))
	saved, err := scanPrompts(tx.QueryContext(ctx, sel, selArgs...))
	if err != nil {
		return nil, err
	}
	if len(saved) == 0 {
		err = errors.New("saved prompt not found")
		return nil, fmt.Errorf("save prompt: %w", errors.Join(common.ErrDatabase, err))
	}
	if err = tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit: %w", errors.Join(common.ErrDatabase, err))
	}
	r.logger.Info("prompt saved", "prompt_id", saved[0].ID, "name", p.Name, "document_type", p.DocumentType)
	return saved[0], nil
}

func (r *promptRepository) Get(ctx context.Context, userID string, id uuid.UUID) (*entity.SavedPrompt, error) {
	q, args := r.selectWhere(entsql.And(entsql.EQ("id", id), entsql.EQ("user_id", userID)))
	list, err := scanPrompts(r.db.db.QueryContext(ctx, q, args...))
	if err != nil {
		return nil, err
	}
	if len(list) == 0 {
		return nil, common.NewAppError(common.CodeNotFound, "prompt "+id.String(), common.ErrNotFound)
	}
	return list[0], nil
}

func (r *promptRepository) List(ctx context.Context, userID string, docType constants.DocumentType) ([]*entity.SavedPrompt, error) {
	preds := []*entsql.Predicate{entsql.EQ("user_id", userID)}
	if docType != "" {
		preds = append(preds, entsql.EQ("document_type", string(docType)))
	}
	q, args := r.db.builder().Select(promptColumns...).
		From(r.db.builder().Table(promptsTable)).
		Where(entsql.And(preds...)).
		OrderBy("name").
		Query()
	list, err := scanPrompts(r.db.db.QueryContext(ctx, q, args...))
	if err != nil {
		r.logger.Error("failed to list prompts", "user_id", userID, "error", err)
		return nil, err
	}
	return list, nil
}

func (r *promptRepository) Default(ctx context.Context, userID string, docType constants.DocumentType) (*entity.SavedPrompt, error) {
	q, args := r.selectWhere(entsql.And(
		entsql.EQ("user_id", userID),
		entsql.EQ("document_type", string(docType)),
		entsql.EQ("is_default", true),
	))
	list, err := scanPrompts(r.db.db.QueryContext(ctx, q, args...))
	if err != nil {
		return nil, err
	}
	if len(list) == 0 {
		return nil, common.NewAppError(common.CodeNotFound, "default prompt", common.ErrNotFound)
	}
	return list[0], nil
}

func (r *promptRepository) Delete(ctx context.Context, userID string, id uuid.UUID) error {
	q, args := r.db.builder().Delete(promptsTable).
		Where(entsql.And(entsql.EQ("id", id), entsql.EQ("user_id", userID))).
		Query()
	res, err := r.db.db.ExecContext(ctx, q, args...)
	if err != nil {
		r.logger.Error("failed to delete prompt", "prompt_id", id, "error", err)
		return fmt.Errorf("delete prompt: %w", errors.Join(common.ErrDatabase, err))
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return common.NewAppError(common.CodeNotFound, "prompt "+id.String(), common.ErrNotFound)
	}
	return nil
}

func (r *promptRepository) selectWhere(p *entsql.Predicate) (string, []any) {
	return r.db.builder().Select(promptColumns...).
		From(r.db.builder().Table(promptsTable)).
		Where(p).
		Query()
}

func scanPrompts(rows *sql.Rows, err error) ([]*entity.SavedPrompt, error) {
	if err != nil {
		return nil, fmt.Errorf("query prompts: %w", errors.Join(common.ErrDatabase, err))
	}
	defer rows.Close()

	var out []*entity.SavedPrompt
	for rows.Next() {
		var p entity.SavedPrompt
		var docType string
		if err := rows.Scan(&p.ID, &p.UserID, &p.Name, &docType, &p.PromptText, &p.IsDefault, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan prompt: %w", errors.Join(common.ErrDatabase, err))
		}
		p.DocumentType = constants.DocumentType(docType)
		out = append(out, &p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate prompts: %w", errors.Join(common.ErrDatabase, err))
	}
	return out, nil
}
