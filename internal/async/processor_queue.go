package async

import (
	"context"
	"log/slog"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/docextract/constants"
	"github.com/joseph-ayodele/docextract/internal/common"
	"github.com/joseph-ayodele/docextract/internal/pipeline"
)

// Processor runs one extraction. *pipeline.Processor satisfies it.
type Processor interface {
	Process(ctx context.Context, req pipeline.Request) (*pipeline.Result, error)
}

type ProcessorQueue struct {
	proc    Processor
	logger  *slog.Logger
	workers int
	timeout time.Duration

	ch   chan Job
	wg   sync.WaitGroup
	once sync.Once

	mu     sync.Mutex
	closed bool

	stateMu sync.RWMutex
	states  map[uuid.UUID]*JobState
}

type Option func(*ProcessorQueue)

func WithWorkers(n int) Option {
	return func(q *ProcessorQueue) {
		if n > 0 {
			q.workers = n
		}
	}
}
func WithQueueSize(n int) Option {
	return func(q *ProcessorQueue) {
		if n > 0 {
			q.ch = make(chan Job, n)
		}
	}
}
func WithProcessTimeout(d time.Duration) Option {
	return func(q *ProcessorQueue) {
		if d > 0 {
			q.timeout = d
		}
	}
}

func NewProcessorQueue(proc Processor, logger *slog.Logger, opts ...Option) *ProcessorQueue {
	if logger == nil {
		logger = slog.Default()
	}
	q := &ProcessorQueue{
		proc:    proc,
		logger:  logger,
		workers: 4,
		timeout: 10 * time.Minute,
		ch:      make(chan Job, 256),
		states:  make(map[uuid.UUID]*JobState),
	}
	for _, o := range opts {
		o(q)
	}
	q.start()
	return q
}

func (q *ProcessorQueue) start() {
	q.once.Do(func() {
		for i := 0; i < q.workers; i++ {
			q.wg.Add(1)
			go func(workerID int) {
				defer q.wg.Done()
				q.logger.Debug("queue.worker.started", "worker_id", workerID)
				for job := range q.ch {
					q.run(workerID, job)
				}
				q.logger.Debug("queue.worker.stopped", "worker_id", workerID)
			}(i + 1)
		}
	})
}

func (q *ProcessorQueue) run(workerID int, job Job) {
	q.update(job.ID, func(s *JobState) { s.Status = constants.JobStatusRunning })

	ctx, cancel := context.WithTimeout(context.Background(), q.timeout)
	if job.TraceID != "" {
		ctx = common.WithRequestID(ctx, job.TraceID)
	}
	res, err := q.proc.Process(ctx, job.Request)
	cancel()

	q.update(job.ID, func(s *JobState) {
		s.FinishedAt = time.Now().UTC()
		if res != nil {
			s.NeedsReview = res.NeedsReview
			if res.Extraction != nil {
				s.ExtractionID = res.Extraction.ID
			}
		}
		if err != nil {
			s.Status = constants.JobStatusFailed
			s.Error = common.UserMessage(err)
			return
		}
		s.Status = constants.JobStatusDone
	})

	if err != nil {
		q.logger.Error("queue.job.failed", "worker_id", workerID, "job_id", job.ID, "path", job.Request.Path, "error", err)
		return
	}
	q.logger.Info("queue.job.ok", "worker_id", workerID, "job_id", job.ID, "path", job.Request.Path,
		"elapsed_ms", time.Since(job.SubmittedAt).Milliseconds())
}

// Enqueue registers job as QUEUED and hands it to the workers. A full queue
// blocks until a slot frees up or ctx is done.
func (q *ProcessorQueue) Enqueue(ctx context.Context, job Job) error {
	if job.ID == uuid.Nil {
		job.ID = uuid.New()
	}
	if job.SubmittedAt.IsZero() {
		job.SubmittedAt = time.Now().UTC()
	}
	source := job.Request.SourceName
	if source == "" {
		source = filepath.Base(job.Request.Path)
	}

	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		q.logger.Warn("queue.enqueue.closed", "job_id", job.ID)
		return ErrClosed
	}

	q.stateMu.Lock()
	q.states[job.ID] = &JobState{
		ID:          job.ID,
		UserID:      job.Request.UserID,
		SourceName:  source,
		Status:      constants.JobStatusQueued,
		SubmittedAt: job.SubmittedAt,
	}
	q.stateMu.Unlock()

	select {
	case q.ch <- job:
	default:
		q.logger.Warn("queue.full", "job_id", job.ID)
		select {
		case q.ch <- job:
		case <-ctx.Done():
			q.stateMu.Lock()
			delete(q.states, job.ID)
			q.stateMu.Unlock()
			return ctx.Err()
		}
	}
	q.logger.Info("queue.job.queued", "job_id", job.ID, "path", job.Request.Path)
	return nil
}

// Status returns a snapshot of the job's state.
func (q *ProcessorQueue) Status(id uuid.UUID) (JobState, bool) {
	q.stateMu.RLock()
	defer q.stateMu.RUnlock()
	s, ok := q.states[id]
	if !ok {
		return JobState{}, false
	}
	return *s, true
}

// Jobs returns every known job, oldest first.
func (q *ProcessorQueue) Jobs() []JobState {
	q.stateMu.RLock()
	out := make([]JobState, 0, len(q.states))
	for _, s := range q.states {
		out = append(out, *s)
	}
	q.stateMu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].SubmittedAt.Before(out[j].SubmittedAt) })
	return out
}

func (q *ProcessorQueue) update(id uuid.UUID, fn func(*JobState)) {
	q.stateMu.Lock()
	defer q.stateMu.Unlock()
	if s, ok := q.states[id]; ok {
		fn(s)
	}
}

// Shutdown stops accepting jobs and waits for queued ones to finish, or for
// ctx to be done.
func (q *ProcessorQueue) Shutdown(ctx context.Context) {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.closed = true
	close(q.ch)
	q.mu.Unlock()

	done := make(chan struct{})
	go func() { defer close(done); q.wg.Wait() }()

	select {
	case <-ctx.Done():
		q.logger.Warn("queue.shutdown.interrupted")
	case <-done:
		q.logger.Info("queue.shutdown.ok")
	}
}
