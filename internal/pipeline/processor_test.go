package pipeline

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/docextract/constants"
	"github.com/joseph-ayodele/docextract/internal/common"
	"github.com/joseph-ayodele/docextract/internal/entity"
	"github.com/joseph-ayodele/docextract/internal/extract"
	"github.com/joseph-ayodele/docextract/internal/llm"
	"github.com/joseph-ayodele/docextract/internal/llm/llmtest"
	"github.com/joseph-ayodele/docextract/internal/pages"
	"github.com/joseph-ayodele/docextract/internal/repository"
	"github.com/joseph-ayodele/docextract/internal/testutil"
	"github.com/joseph-ayodele/docextract/internal/translate"
)

type fixture struct {
	proc        *Processor
	scratch     string
	extractions repository.ExtractionRepository
	prompts     repository.PromptRepository
}

func newFixture(t *testing.T, model llm.Model, store repository.ExtractionRepository) *fixture {
	t.Helper()
	ctx := context.Background()
	db, err := repository.OpenInMemory(ctx, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	require.NoError(t, db.Migrate(ctx))

	if store == nil {
		store = repository.NewExtractionRepository(db, nil)
	}
	prompts := repository.NewPromptRepository(db, nil)

	scratch := t.TempDir()
	norm := pages.NewNormalizer(pages.Config{TempDir: scratch}, nil, pages.WithRunner(&testutil.FakePdftoppm{T: t}))
	proc := NewProcessor(nil, norm, extract.NewExtractor(model, 0, nil), translate.NewAnnotator(model, nil), store, prompts, 1)
	return &fixture{proc: proc, scratch: scratch, extractions: store, prompts: prompts}
}

// visionModel answers page calls in order from replies and language calls
// from the Hindi tables.
func visionModel(replies ...string) *llmtest.Model {
	var mu sync.Mutex
	n := 0
	lang := llmtest.Language(
		map[string]string{"रवि कुमार": "hi", "ग्राम": "hi"},
		map[string]string{"रवि कुमार": "Ravi Kumar", "ग्राम": "Village"},
	)
	return &llmtest.Model{Func: func(ctx context.Context, prompt string, image *llm.ImagePart) (string, error) {
		if image == nil {
			return lang(ctx, prompt, image)
		}
		mu.Lock()
		defer mu.Unlock()
		if n >= len(replies) {
			return "", errors.New("no reply scripted")
		}
		n++
		return replies[n-1], nil
	}}
}

func TestProcessTwoPageLoanMergesHindiName(t *testing.T) {
	model := visionModel(
		"```json\n{\"borrower_name\": \"\", \"witness_details\": []}\n```",
		`{"borrower_name": "रवि कुमार", "loan_amount": "50000", "witness_details": ["Sita"]}`,
	)
	fx := newFixture(t, model, nil)
	src := testutil.WritePDF(t, t.TempDir(), 2)

	res, err := fx.proc.Process(context.Background(), Request{
		UserID:       "u1",
		Path:         src,
		DocumentType: constants.DocumentLoan,
	})
	require.NoError(t, err)
	require.NotNil(t, res.Document.Record)

	name, ok := res.Document.Record.Field("borrower_name")
	require.True(t, ok)
	assert.Equal(t, entity.TranslatableField{Original: "रवि कुमार", Language: "hi", Translated: "Ravi Kumar"}, name)

	amount, _ := res.Document.Record.Field("loan_amount")
	assert.Equal(t, entity.PassThrough("50000", "en"), amount)

	v, _ := res.Document.Record.Get("witness_details")
	require.Len(t, v.(entity.ListField), 1)

	assert.Equal(t, constants.SchemaFor(constants.DocumentLoan).Names(), res.Document.Record.Keys())
	assert.Equal(t, 0, res.FailedPages)
	assert.Len(t, res.Pages, 2)
	assert.True(t, res.NeedsReview, "partial pages do not conform to the loan schema")

	require.NotNil(t, res.Extraction)
	assert.Equal(t, "रवि कुमार", res.Extraction.Subject)
	assert.Equal(t, 2, res.Extraction.PageCount)
	assert.Equal(t, "doc-2p.pdf", res.Extraction.SourceName)

	stored, err := fx.extractions.Get(context.Background(), "u1", constants.DocumentLoan, res.Extraction.ID)
	require.NoError(t, err)
	doc, err := stored.Document()
	require.NoError(t, err)
	f, _ := doc.Record.Field("borrower_name")
	assert.Equal(t, "Ravi Kumar", f.Translated)

	entries, _ := os.ReadDir(fx.scratch)
	assert.Empty(t, entries, "page images are removed")
}

func TestProcessSkipsFailedPage(t *testing.T) {
	model := visionModel(`{"property_owner": "Asha"}`)
	fx := newFixture(t, model, nil)
	src := testutil.WritePDF(t, t.TempDir(), 2)

	res, err := fx.proc.Process(context.Background(), Request{UserID: "u1", Path: src, DocumentType: constants.DocumentProperty})
	require.NoError(t, err)
	assert.Equal(t, 1, res.FailedPages)
	assert.True(t, res.NeedsReview)
	assert.ErrorIs(t, res.Pages[1].Err, common.ErrModelCall)

	owner, _ := res.Document.Record.Field("property_owner")
	assert.Equal(t, "Asha", owner.Original)
	assert.Equal(t, 1, res.Extraction.FailedPages)
}

func TestProcessAllPagesFailed(t *testing.T) {
	fx := newFixture(t, visionModel(), nil)
	src := testutil.WritePDF(t, t.TempDir(), 2)

	res, err := fx.proc.Process(context.Background(), Request{UserID: "u1", Path: src, DocumentType: constants.DocumentLoan})
	require.Error(t, err)
	assert.Nil(t, res)
	assert.ErrorIs(t, err, common.ErrExtraction)

	list, err := fx.extractions.List(context.Background(), repository.ListFilter{UserID: "u1"})
	require.NoError(t, err)
	assert.Empty(t, list)

	entries, _ := os.ReadDir(fx.scratch)
	assert.Empty(t, entries)
}

func TestProcessTableMergesPages(t *testing.T) {
	model := visionModel(
		`{"columns": ["village", "area"], "rows": [{"village": "Rampur", "area": "2"}]}`,
		`[{"village": "Sitapur", "owner": "Asha"}]`,
	)
	fx := newFixture(t, model, nil)
	src := testutil.WritePDF(t, t.TempDir(), 2)

	res, err := fx.proc.Process(context.Background(), Request{UserID: "u1", Path: src, DocumentType: constants.DocumentTable})
	require.NoError(t, err)
	require.NotNil(t, res.Document.Table)
	assert.Equal(t, []string{"village", "area", "owner"}, res.Document.Table.Columns)
	require.Len(t, res.Document.Table.Rows, 2)
	assert.Equal(t, "", res.Document.Table.Rows[0]["owner"])
	assert.Equal(t, "table (2 rows)", res.Extraction.Subject)
}

func TestProcessSavesAndReusesDefaultPrompt(t *testing.T) {
	reply := `{"village_name": "ग्राम", "owner": "Asha"}`
	model := visionModel(reply, reply)
	fx := newFixture(t, model, nil)
	src := filepath.Join(t.TempDir(), "scan.png")
	testutil.WritePNG(t, src, 40, 30)
	ctx := context.Background()

	const prompt = "Extract village name and owner."
	res, err := fx.proc.Process(ctx, Request{
		UserID:         "u1",
		Path:           src,
		DocumentType:   constants.DocumentCustom,
		CustomPrompt:   prompt,
		SavePromptName: "village",
		DefaultPrompt:  true,
	})
	require.NoError(t, err)
	assert.Equal(t, entity.Dynamic, res.Document.Record.Kind)
	assert.Equal(t, []string{"village_name", "owner"}, res.Document.Record.Keys())
	village, _ := res.Document.Record.Field("village_name")
	assert.Equal(t, "Village", village.Translated)
	assert.Equal(t, prompt, res.Extraction.CustomPrompt)

	res, err = fx.proc.Process(ctx, Request{UserID: "u1", Path: src, DocumentType: constants.DocumentCustom})
	require.NoError(t, err)
	assert.Equal(t, prompt, res.Prompt)

	var vision []string
	for _, c := range model.Calls() {
		if c.Image != nil {
			vision = append(vision, c.Prompt)
		}
	}
	assert.Equal(t, []string{prompt, prompt}, vision)
}

type failingStore struct {
	repository.ExtractionRepository
}

func (failingStore) Create(context.Context, *entity.Extraction) (*entity.Extraction, error) {
	return nil, errors.New("disk full")
}

func TestProcessPersistenceFailureKeepsResult(t *testing.T) {
	fx := newFixture(t, visionModel(`{"property_owner": "Asha"}`), failingStore{})
	src := testutil.WritePDF(t, t.TempDir(), 1)

	res, err := fx.proc.Process(context.Background(), Request{UserID: "u1", Path: src, DocumentType: constants.DocumentProperty})
	require.Error(t, err)
	assert.ErrorIs(t, err, common.ErrPersistence)
	require.NotNil(t, res)
	assert.Nil(t, res.Extraction)
	owner, _ := res.Document.Record.Field("property_owner")
	assert.Equal(t, "Asha", owner.Original)
	assert.Equal(t, "the document was processed but the result could not be saved", common.UserMessage(err))
}

func TestProcessRejectsBadRequest(t *testing.T) {
	fx := newFixture(t, visionModel(), nil)
	cases := []Request{
		{Path: "a.pdf", DocumentType: constants.DocumentLoan},
		{UserID: "u1", Path: "a.docx", DocumentType: constants.DocumentLoan},
		{UserID: "u1", Path: "a.pdf", DocumentType: "receipt"},
	}
	for _, req := range cases {
		_, err := fx.proc.Process(context.Background(), req)
		assert.ErrorIs(t, err, common.ErrInvalidInput)
	}
}
