// Package jobs defines the asynchronous work items behind the HTTP surface:
// statement parsing and account syncs, published to a queue and tracked in a
// job store.
package jobs

import (
	"context"
	"time"
)

// JobType says what kind of work a job carries.
type JobType string

const (
	// JobTypeParseStatement parses an uploaded statement document.
	JobTypeParseStatement JobType = "parse_statement"
	// JobTypeSyncAccount pulls fresh transactions for a linked account.
	JobTypeSyncAccount JobType = "sync_account"
)

// JobStatus is the lifecycle state of a job.
type JobStatus string

const (
	JobStatusPending   JobStatus = "pending"
	JobStatusRunning   JobStatus = "running"
	JobStatusCompleted JobStatus = "completed"
	JobStatusFailed    JobStatus = "failed"
	JobStatusRetrying  JobStatus = "retrying"
)

// Job is one queued unit of work. StatementID/GCSPath are set for
// parse_statement jobs, AccountID/Trigger for sync_account jobs.
type Job struct {
	JobID string  `json:"job_id"`
	Type  JobType `json:"type"`

	StatementID string `json:"statement_id,omitempty"`
	GCSPath     string `json:"gcs_path,omitempty"`

	AccountID string `json:"account_id,omitempty"`
	Trigger   string `json:"trigger,omitempty"`

	Status      JobStatus  `json:"status"`
	CreatedAt   time.Time  `json:"created_at"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	Error       string     `json:"error,omitempty"`
	RetryCount  int        `json:"retry_count"`
	MaxRetries  int        `json:"max_retries"`
}

// NewParseStatementJob builds a pending statement-parsing job.
func NewParseStatementJob(statementID, gcsPath string) *Job {
	return &Job{
		Type:        JobTypeParseStatement,
		StatementID: statementID,
		GCSPath:     gcsPath,
	}
}

// NewSyncAccountJob builds a pending account-sync job.
func NewSyncAccountJob(accountID, trigger string) *Job {
	return &Job{
		Type:      JobTypeSyncAccount,
		AccountID: accountID,
		Trigger:   trigger,
	}
}

// Publisher enqueues jobs. Implementations may be in-memory or backed by a
// real broker.
type Publisher interface {
	Publish(ctx context.Context, job *Job) error
	Close() error
}

// Consumer pulls jobs off the queue and hands them to a handler.
type Consumer interface {
	// Start begins consuming. The handler is invoked once per job; a
	// returned error schedules a retry until MaxRetries is exhausted.
	Start(ctx context.Context, handler JobHandler) error

	// Stop drains in-flight jobs and shuts the consumer down.
	Stop(ctx context.Context) error
}

// JobHandler processes one job.
type JobHandler func(ctx context.Context, job *Job) error

// JobStore tracks job state so the API can answer status queries.
type JobStore interface {
	SaveJob(ctx context.Context, job *Job) error
	GetJob(ctx context.Context, jobID string) (*Job, error)
	ListJobs(ctx context.Context, filter JobFilter) ([]*Job, error)
	UpdateJobStatus(ctx context.Context, jobID string, status JobStatus, errorMsg string) error
}

// JobFilter narrows a ListJobs call. Zero values mean "any".
type JobFilter struct {
	Type        JobType
	StatementID string
	AccountID   string
	Status      JobStatus
	Limit       int
	Offset      int
}
