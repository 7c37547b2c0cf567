package domain

import (
	"time"

	"cloud.google.com/go/civil"
)

// SyncStatus is the lifecycle state of one sync attempt.
type SyncStatus string

const (
	SyncPending    SyncStatus = "PENDING"
	SyncInProgress SyncStatus = "IN_PROGRESS"
	SyncSuccess    SyncStatus = "SUCCESS"
	SyncPartial    SyncStatus = "PARTIAL"
	SyncFailed     SyncStatus = "FAILED"
)

// Sync trigger types.
const (
	TriggerManual    = "MANUAL"
	TriggerScheduled = "SCHEDULED"
	TriggerWebhook   = "WEBHOOK"
	TriggerInitial   = "INITIAL"
)

// SyncHistory is the audit record for one sync attempt against an account.
// Every attempt appends exactly one record, whatever the outcome.
type SyncHistory struct {
	ID            string
	BankAccountID string
	ProfileID     string
	SessionID     string
	TriggerType   string

	Status    SyncStatus
	DataFrom  civil.Date
	DataTo    civil.Date
	StartedAt time.Time
	EndedAt   time.Time

	TxnsFetched int
	TxnsSaved   int
	TxnsSkipped int

	ErrorCode    string
	ErrorMessage string
}

// MarkInProgress transitions the record out of PENDING.
func (s *SyncHistory) MarkInProgress() {
	s.Status = SyncInProgress
	if s.StartedAt.IsZero() {
		s.StartedAt = time.Now().UTC()
	}
}

// MarkSuccess closes the record with final counters.
func (s *SyncHistory) MarkSuccess(fetched, saved, skipped int) {
	s.Status = SyncSuccess
	s.TxnsFetched = fetched
	s.TxnsSaved = saved
	s.TxnsSkipped = skipped
	s.EndedAt = time.Now().UTC()
}

// MarkPartial closes the record when the provider delivered an incomplete
// data set, keeping whatever counters were accumulated.
func (s *SyncHistory) MarkPartial(fetched, saved, skipped int) {
	s.Status = SyncPartial
	s.TxnsFetched = fetched
	s.TxnsSaved = saved
	s.TxnsSkipped = skipped
	s.EndedAt = time.Now().UTC()
}

// MarkFailed closes the record with an error code and message.
func (s *SyncHistory) MarkFailed(code, message string) {
	s.Status = SyncFailed
	s.ErrorCode = code
	s.ErrorMessage = message
	s.EndedAt = time.Now().UTC()
}
