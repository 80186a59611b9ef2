package async

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/docextract/constants"
	"github.com/joseph-ayodele/docextract/internal/common"
	"github.com/joseph-ayodele/docextract/internal/entity"
	"github.com/joseph-ayodele/docextract/internal/pipeline"
)

type fakeProcessor struct {
	calls   atomic.Int32
	block   chan struct{}
	fail    map[string]error
	mu      sync.Mutex
	lastCtx context.Context
}

func (f *fakeProcessor) Process(ctx context.Context, req pipeline.Request) (*pipeline.Result, error) {
	f.calls.Add(1)
	f.mu.Lock()
	f.lastCtx = ctx
	f.mu.Unlock()
	if f.block != nil {
		<-f.block
	}
	if err := f.fail[req.Path]; err != nil {
		return nil, err
	}
	return &pipeline.Result{
		Extraction:  &entity.Extraction{ID: uuid.New(), UserID: req.UserID},
		NeedsReview: true,
	}, nil
}

func TestQueueProcessesJobsAndTracksState(t *testing.T) {
	proc := &fakeProcessor{fail: map[string]error{
		"bad.pdf": common.ExtractionError("all 1 pages failed", errors.New("boom")),
	}}
	q := NewProcessorQueue(proc, nil, WithWorkers(2), WithQueueSize(4))

	ok := NewJob(pipeline.Request{UserID: "u1", Path: "/in/good.pdf", DocumentType: constants.DocumentLoan}, "trace-1")
	bad := NewJob(pipeline.Request{UserID: "u1", Path: "bad.pdf", DocumentType: constants.DocumentLoan}, "")
	require.NoError(t, q.Enqueue(context.Background(), ok))
	require.NoError(t, q.Enqueue(context.Background(), bad))

	q.Shutdown(context.Background())
	assert.EqualValues(t, 2, proc.calls.Load())

	s, found := q.Status(ok.ID)
	require.True(t, found)
	assert.Equal(t, constants.JobStatusDone, s.Status)
	assert.NotEqual(t, uuid.Nil, s.ExtractionID)
	assert.True(t, s.NeedsReview)
	assert.Equal(t, "good.pdf", s.SourceName)
	assert.False(t, s.FinishedAt.IsZero())

	s, _ = q.Status(bad.ID)
	assert.Equal(t, constants.JobStatusFailed, s.Status)
	assert.Equal(t, "no data could be extracted from the document", s.Error)

	assert.Len(t, q.Jobs(), 2)
	_, found = q.Status(uuid.New())
	assert.False(t, found)
}

func TestQueueRejectsAfterShutdown(t *testing.T) {
	q := NewProcessorQueue(&fakeProcessor{}, nil, WithWorkers(1))
	q.Shutdown(context.Background())
	q.Shutdown(context.Background())

	err := q.Enqueue(context.Background(), NewJob(pipeline.Request{Path: "a.pdf"}, ""))
	assert.ErrorIs(t, err, ErrClosed)
}

func TestQueueFullHonoursContext(t *testing.T) {
	proc := &fakeProcessor{block: make(chan struct{})}
	q := NewProcessorQueue(proc, nil, WithWorkers(1), WithQueueSize(1))

	require.NoError(t, q.Enqueue(context.Background(), NewJob(pipeline.Request{Path: "1.pdf"}, "")))
	require.Eventually(t, func() bool { return proc.calls.Load() == 1 }, time.Second, 5*time.Millisecond)
	require.NoError(t, q.Enqueue(context.Background(), NewJob(pipeline.Request{Path: "2.pdf"}, "")))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	third := NewJob(pipeline.Request{Path: "3.pdf"}, "")
	assert.ErrorIs(t, q.Enqueue(ctx, third), context.DeadlineExceeded)
	_, found := q.Status(third.ID)
	assert.False(t, found)

	close(proc.block)
	q.Shutdown(context.Background())
	assert.EqualValues(t, 2, proc.calls.Load())
}

func TestQueuePropagatesTraceID(t *testing.T) {
	proc := &fakeProcessor{}
	q := NewProcessorQueue(proc, nil, WithWorkers(1), WithProcessTimeout(time.Second))
	require.NoError(t, q.Enqueue(context.Background(), NewJob(pipeline.Request{Path: "a.pdf"}, "trace-9")))
	q.Shutdown(context.Background())

	proc.mu.Lock()
	defer proc.mu.Unlock()
	assert.Equal(t, "trace-9", common.RequestIDFromContext(proc.lastCtx))
	_, hasDeadline := proc.lastCtx.Deadline()
	assert.True(t, hasDeadline)
}
