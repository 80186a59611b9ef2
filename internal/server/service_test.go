package server

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/joseph-ayodele/docextract/constants"
	"github.com/joseph-ayodele/docextract/internal/async"
	"github.com/joseph-ayodele/docextract/internal/common"
	"github.com/joseph-ayodele/docextract/internal/entity"
	"github.com/joseph-ayodele/docextract/internal/export"
	"github.com/joseph-ayodele/docextract/internal/pipeline"
	"github.com/joseph-ayodele/docextract/internal/repository"
	"github.com/joseph-ayodele/docextract/internal/testutil"
)

const loanData = `{"borrower_name":{"original":"रवि","language":"hi","translated":"Ravi"},"witness_details":[]}`

// stubProcessor persists a fixed loan record for every request.
type stubProcessor struct {
	repo repository.ExtractionRepository
	err  error

	mu    sync.Mutex
	paths []string
	seen  []bool // whether the input file existed during Process
}

func (p *stubProcessor) Process(ctx context.Context, req pipeline.Request) (*pipeline.Result, error) {
	_, statErr := os.Stat(req.Path)
	p.mu.Lock()
	p.paths = append(p.paths, req.Path)
	p.seen = append(p.seen, statErr == nil)
	p.mu.Unlock()

	doc, err := entity.DecodeDocument(req.DocumentType, []byte(loanData), req.CustomPrompt)
	if err != nil {
		return nil, err
	}
	res := &pipeline.Result{
		Document:    doc,
		Pages:       []pipeline.PageOutcome{{Index: 0, Strategy: "strict", Conforms: true}},
		NeedsReview: false,
	}
	if p.err != nil {
		return res, p.err
	}
	res.Extraction, err = p.repo.Create(ctx, &entity.Extraction{
		UserID:       req.UserID,
		DocumentType: req.DocumentType,
		Data:         json.RawMessage(loanData),
		SourceName:   req.SourceName,
		Subject:      doc.Subject(),
		PageCount:    1,
	})
	return res, err
}

type harness struct {
	conn        *grpc.ClientConn
	proc        *stubProcessor
	extractions repository.ExtractionRepository
	queue       *async.ProcessorQueue
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	ctx := context.Background()
	db, err := repository.OpenInMemory(ctx, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	require.NoError(t, db.Migrate(ctx))

	extractions := repository.NewExtractionRepository(db, nil)
	prompts := repository.NewPromptRepository(db, nil)
	proc := &stubProcessor{repo: extractions}
	queue := async.NewProcessorQueue(proc, nil, async.WithWorkers(1))
	t.Cleanup(func() { queue.Shutdown(context.Background()) })

	srv := NewExtractionServer(proc, queue, extractions, prompts, export.NewService(extractions, nil), nil)
	gs, _ := New(srv, nil)

	lis := bufconn.Listen(1 << 20)
	go func() { _ = gs.Serve(lis) }()
	t.Cleanup(gs.Stop)

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) { return lis.DialContext(ctx) }),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return &harness{conn: conn, proc: proc, extractions: extractions, queue: queue}
}

func (h *harness) call(method string, in map[string]any, opts ...grpc.CallOption) (*structpb.Struct, error) {
	req, err := structpb.NewStruct(in)
	if err != nil {
		return nil, err
	}
	out := new(structpb.Struct)
	err = h.conn.Invoke(context.Background(), "/"+ServiceName+"/"+method, req, out, opts...)
	return out, err
}

func TestHealthServing(t *testing.T) {
	h := newHarness(t)
	resp, err := grpc_health_v1.NewHealthClient(h.conn).Check(context.Background(),
		&grpc_health_v1.HealthCheckRequest{Service: ServiceName})
	require.NoError(t, err)
	assert.Equal(t, grpc_health_v1.HealthCheckResponse_SERVING, resp.GetStatus())
}

func TestExtractDocumentUpload(t *testing.T) {
	h := newHarness(t)
	png := testutil.WritePNG(t, filepath.Join(t.TempDir(), "scan.png"), 20, 20)
	raw, err := os.ReadFile(png)
	require.NoError(t, err)

	var header metadata.MD
	out, err := h.call("ExtractDocument", map[string]any{
		"user_id":       "u1",
		"document_type": "LOAN",
		"file_name":     "scan.png",
		"content":       base64.StdEncoding.EncodeToString(raw),
	}, grpc.Header(&header))
	require.NoError(t, err)
	assert.NotEmpty(t, header.Get("x-request-id"))

	m := out.AsMap()
	ext := m["extraction"].(map[string]any)
	assert.Equal(t, "loan", ext["document_type"])
	assert.Equal(t, "scan.png", ext["source_name"])
	assert.Equal(t, "रवि", ext["subject"])
	data := ext["data"].(map[string]any)
	assert.Equal(t, "Ravi", data["borrower_name"].(map[string]any)["translated"])
	assert.Len(t, m["pages"], 1)

	require.Len(t, h.proc.paths, 1)
	assert.True(t, h.proc.seen[0], "upload is on disk while processing")
	assert.NoFileExists(t, h.proc.paths[0], "upload is removed afterwards")
}

func TestExtractDocumentRejectsBadInput(t *testing.T) {
	h := newHarness(t)
	cases := []map[string]any{
		{"document_type": "loan", "path": "/tmp/a.pdf"},
		{"user_id": "u1", "document_type": "receipt", "path": "/tmp/a.pdf"},
		{"user_id": "u1", "document_type": "loan"},
		{"user_id": "u1", "document_type": "loan", "file_name": "a.docx", "content": "AAAA"},
		{"user_id": "u1", "document_type": "loan", "file_name": "a.png", "content": "%%%"},
	}
	for _, in := range cases {
		_, err := h.call("ExtractDocument", in)
		assert.Equal(t, codes.InvalidArgument, status.Code(err), "%v", in)
	}
	assert.Empty(t, h.proc.paths)
}

func TestExtractDocumentPersistenceFailure(t *testing.T) {
	h := newHarness(t)
	h.proc.err = common.PersistenceError("save extraction", errors.New("disk full"))
	_, err := h.call("ExtractDocument", map[string]any{"user_id": "u1", "document_type": "loan", "path": "/tmp/a.pdf"})
	st, _ := status.FromError(err)
	assert.Equal(t, codes.Internal, st.Code())
	assert.Equal(t, "the document was processed but the result could not be saved", st.Message())
}

func TestExtractionLifecycle(t *testing.T) {
	h := newHarness(t)
	saved, err := h.extractions.Create(context.Background(), &entity.Extraction{
		UserID: "u1", DocumentType: constants.DocumentLoan, Data: json.RawMessage(loanData), Subject: "रवि",
	})
	require.NoError(t, err)
	id := saved.ID.String()

	got, err := h.call("GetExtraction", map[string]any{"user_id": "u1", "document_type": "loan", "id": id})
	require.NoError(t, err)
	assert.Equal(t, id, got.AsMap()["id"])

	_, err = h.call("GetExtraction", map[string]any{"user_id": "u2", "id": id})
	assert.Equal(t, codes.NotFound, status.Code(err))
	_, err = h.call("GetExtraction", map[string]any{"user_id": "u1", "id": "nope"})
	assert.Equal(t, codes.InvalidArgument, status.Code(err))

	list, err := h.call("ListExtractions", map[string]any{"user_id": "u1", "document_type": "loan"})
	require.NoError(t, err)
	items := list.AsMap()["extractions"].([]any)
	require.Len(t, items, 1)
	assert.NotContains(t, items[0].(map[string]any), "data")

	exp, err := h.call("ExportExtraction", map[string]any{"user_id": "u1", "document_type": "loan", "id": id, "format": "csv"})
	require.NoError(t, err)
	assert.Equal(t, "loan_extraction_"+id+".csv", exp.AsMap()["file_name"])
	body, err := base64.StdEncoding.DecodeString(exp.AsMap()["content"].(string))
	require.NoError(t, err)
	assert.Contains(t, string(body), "Field,Original Value,Language,Translated Value")
	assert.Contains(t, string(body), "borrower_name,रवि,hi,Ravi")

	_, err = h.call("ExportExtraction", map[string]any{"user_id": "u1", "document_type": "loan", "id": id, "format": "pdf"})
	assert.Equal(t, codes.InvalidArgument, status.Code(err))

	_, err = h.call("DeleteExtraction", map[string]any{"user_id": "u1", "id": id})
	require.NoError(t, err)
	_, err = h.call("DeleteExtraction", map[string]any{"user_id": "u1", "id": id})
	assert.Equal(t, codes.NotFound, status.Code(err))
}

func TestPromptLifecycle(t *testing.T) {
	h := newHarness(t)
	saved, err := h.call("SavePrompt", map[string]any{
		"user_id": "u1", "name": "village", "document_type": "custom",
		"prompt_text": "Extract village name.", "is_default": true,
	})
	require.NoError(t, err)
	p := saved.AsMap()["prompt"].(map[string]any)
	assert.Equal(t, true, p["is_default"])

	list, err := h.call("ListPrompts", map[string]any{"user_id": "u1", "document_type": "custom"})
	require.NoError(t, err)
	prompts := list.AsMap()["prompts"].([]any)
	require.Len(t, prompts, 1)
	assert.Equal(t, "Extract village name.", prompts[0].(map[string]any)["prompt_text"])

	got, err := h.call("GetPrompt", map[string]any{"user_id": "u1", "id": p["id"]})
	require.NoError(t, err)
	assert.Equal(t, "village", got.AsMap()["prompt"].(map[string]any)["name"])

	_, err = h.call("SavePrompt", map[string]any{"user_id": "u1", "name": "x", "document_type": "custom"})
	assert.Equal(t, codes.InvalidArgument, status.Code(err))

	_, err = h.call("DeletePrompt", map[string]any{"user_id": "u1", "id": p["id"]})
	require.NoError(t, err)
	list, err = h.call("ListPrompts", map[string]any{"user_id": "u1"})
	require.NoError(t, err)
	assert.Empty(t, list.AsMap()["prompts"])
}

func TestSubmitExtractionAndPollJob(t *testing.T) {
	h := newHarness(t)
	out, err := h.call("SubmitExtraction", map[string]any{"user_id": "u1", "document_type": "loan", "path": "/srv/in/loan.pdf"})
	require.NoError(t, err)
	jobID := out.AsMap()["job_id"].(string)
	_, err = uuid.Parse(jobID)
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		st, err := h.call("GetJob", map[string]any{"user_id": "u1", "job_id": jobID})
		return err == nil && st.AsMap()["status"] == string(constants.JobStatusDone)
	}, 2*time.Second, 10*time.Millisecond)

	st, err := h.call("GetJob", map[string]any{"user_id": "u1", "job_id": jobID})
	require.NoError(t, err)
	assert.NotEmpty(t, st.AsMap()["extraction_id"])
	assert.Equal(t, "loan.pdf", st.AsMap()["source_name"])

	_, err = h.call("GetJob", map[string]any{"user_id": "u2", "job_id": jobID})
	assert.Equal(t, codes.NotFound, status.Code(err))

	_, err = h.call("SubmitExtraction", map[string]any{"user_id": "u1", "document_type": "loan", "file_name": "a.png", "content": "AAAA"})
	assert.Equal(t, codes.InvalidArgument, status.Code(err))
}
