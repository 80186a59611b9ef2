package async

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/docextract/constants"
	"github.com/joseph-ayodele/docextract/internal/pipeline"
)

// ErrClosed is returned by Enqueue once Shutdown has started.
var ErrClosed = errors.New("queue is shutting down")

// Job is one queued extraction.
type Job struct {
	ID          uuid.UUID
	Request     pipeline.Request
	SubmittedAt time.Time
	TraceID     string
}

// NewJob assigns an id and submission time to req.
func NewJob(req pipeline.Request, traceID string) Job {
	return Job{ID: uuid.New(), Request: req, SubmittedAt: time.Now().UTC(), TraceID: traceID}
}

// JobState is the observable progress of a Job.
type JobState struct {
	ID           uuid.UUID
	UserID       string
	SourceName   string
	Status       constants.JobStatus
	ExtractionID uuid.UUID
	NeedsReview  bool
	Error        string
	SubmittedAt  time.Time
	FinishedAt   time.Time
}

type Queue interface {
	Enqueue(ctx context.Context, job Job) error
	Status(id uuid.UUID) (JobState, bool)
	Shutdown(ctx context.Context)
}
