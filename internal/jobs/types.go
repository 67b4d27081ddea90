package jobs

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// JobType represents the type of job to be executed.
type JobType string

const (
	// JobTypeExtractStatement runs the extraction pipeline for an uploaded
	// statement and completes the wizard's import stage.
	JobTypeExtractStatement JobType = "extract_statement"
	// JobTypePersistBatch writes a saved reconciliation batch to the
	// reporting table and the optional export.
	JobTypePersistBatch JobType = "persist_batch"
)

// DefaultMaxRetries returns the retry budget of a job type. Extraction is
// single-flight per file and never retried; persistence is idempotent per
// batch id.
func DefaultMaxRetries(t JobType) int {
	if t == JobTypePersistBatch {
		return 3
	}
	return 0
}

// JobStatus represents the current status of a job.
type JobStatus string

const (
	// JobStatusPending indicates the job is waiting to be processed.
	JobStatusPending JobStatus = "pending"
	// JobStatusRunning indicates the job is currently being processed.
	JobStatusRunning JobStatus = "running"
	// JobStatusCompleted indicates the job completed successfully.
	JobStatusCompleted JobStatus = "completed"
	// JobStatusFailed indicates the job failed.
	JobStatusFailed JobStatus = "failed"
	// JobStatusRetrying indicates the job failed and is being retried.
	JobStatusRetrying JobStatus = "retrying"
)

// ErrJobNotFound is returned by stores for unknown job ids.
var ErrJobNotFound = errors.New("job not found")

// ErrQueueClosed is returned when publishing to or starting a stopped queue.
var ErrQueueClosed = errors.New("queue is closed")

// Job is a unit of background work tied to a wizard session.
type Job struct {
	// JobID is the unique identifier for this job.
	JobID string `json:"job_id"`

	Type JobType `json:"type"`

	// WizardID is the wizard session the job reports back to.
	WizardID string `json:"wizard_id"`

	// Owner is the email of the user who started the job.
	Owner string `json:"owner"`

	// DocumentID is the id of the uploaded statement document.
	DocumentID string `json:"document_id,omitempty"`

	// ObjectURI is where the uploaded PDF is stored (gs:// or file://).
	ObjectURI string `json:"object_uri,omitempty"`

	// BatchID is the saved reconciliation batch, for persist jobs.
	BatchID string `json:"batch_id,omitempty"`

	// RunID is the extraction run created by the pipeline.
	RunID string `json:"run_id,omitempty"`

	Status JobStatus `json:"status"`

	CreatedAt   time.Time  `json:"created_at"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`

	// Error contains error details if the job failed.
	Error string `json:"error,omitempty"`

	RetryCount int `json:"retry_count"`
	MaxRetries int `json:"max_retries"`
}

// Publisher defines the interface for publishing jobs to a queue.
type Publisher interface {
	// Publish enqueues a job. Missing ids, status, timestamps and retry
	// budgets are filled in.
	Publish(ctx context.Context, job *Job) error

	// Close closes the publisher and releases resources.
	Close() error
}

// Consumer defines the interface for consuming jobs from a queue.
type Consumer interface {
	// Start begins consuming jobs from the queue.
	// The handler function is called for each job received.
	Start(ctx context.Context, handler JobHandler) error

	// Stop stops consuming jobs and waits for in-flight jobs to complete.
	Stop(ctx context.Context) error
}

// JobHandler is a function that processes a job.
// It should return an error if the job failed and should be retried.
type JobHandler func(ctx context.Context, job *Job) error

// Mux dispatches jobs to a handler registered for their type.
type Mux struct {
	handlers map[JobType]JobHandler
}

// NewMux creates an empty dispatcher.
func NewMux() *Mux {
	return &Mux{handlers: make(map[JobType]JobHandler)}
}

// Handle registers h for jobs of type t, replacing any earlier handler.
func (m *Mux) Handle(t JobType, h JobHandler) {
	m.handlers[t] = h
}

// Handler returns a JobHandler that dispatches on job type.
func (m *Mux) Handler() JobHandler {
	return func(ctx context.Context, job *Job) error {
		h, ok := m.handlers[job.Type]
		if !ok {
			return fmt.Errorf("no handler for job type %q", job.Type)
		}
		return h(ctx, job)
	}
}

// JobStore defines the interface for storing and retrieving job status.
type JobStore interface {
	// SaveJob saves or updates a job's state.
	SaveJob(ctx context.Context, job *Job) error

	// GetJob retrieves a job by ID.
	GetJob(ctx context.Context, jobID string) (*Job, error)

	// ListJobs retrieves jobs with optional filtering, newest first.
	ListJobs(ctx context.Context, filter JobFilter) ([]*Job, error)

	// UpdateJobStatus updates the status of a job.
	UpdateJobStatus(ctx context.Context, jobID string, status JobStatus, errorMsg string) error
}

// JobFilter defines filtering criteria for listing jobs.
type JobFilter struct {
	Owner      string
	WizardID   string
	DocumentID string
	Type       JobType
	Status     JobStatus

	// Limit limits the number of results.
	Limit int

	// Offset for pagination.
	Offset int
}

// Matches reports whether job passes every non-empty filter field.
func (f JobFilter) Matches(job *Job) bool {
	switch {
	case f.Owner != "" && job.Owner != f.Owner:
		return false
	case f.WizardID != "" && job.WizardID != f.WizardID:
		return false
	case f.DocumentID != "" && job.DocumentID != f.DocumentID:
		return false
	case f.Type != "" && job.Type != f.Type:
		return false
	case f.Status != "" && job.Status != f.Status:
		return false
	}
	return true
}
