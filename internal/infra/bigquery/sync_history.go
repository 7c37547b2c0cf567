package bigquery

import (
	"context"
	"fmt"

	"cloud.google.com/go/bigquery"

	"github.com/ametsa/bachat-core/internal/domain"
)

// SyncHistoryRow is the sync_history table schema.
type SyncHistoryRow struct {
	SyncID        string                 `bigquery:"sync_id"` // REQUIRED
	BankAccountID string                 `bigquery:"bank_account_id"`
	ProfileID     string                 `bigquery:"profile_id"`
	SessionID     string                 `bigquery:"session_id"`
	TriggerType   string                 `bigquery:"trigger_type"`
	Status        string                 `bigquery:"status"`
	DataFrom      bigquery.NullDate      `bigquery:"data_from"`
	DataTo        bigquery.NullDate      `bigquery:"data_to"`
	StartedAt     bigquery.NullTimestamp `bigquery:"started_at"`
	EndedAt       bigquery.NullTimestamp `bigquery:"ended_at"`
	TxnsFetched   int64                  `bigquery:"txns_fetched"`
	TxnsSaved     int64                  `bigquery:"txns_saved"`
	TxnsSkipped   int64                  `bigquery:"txns_skipped"`
	ErrorCode     string                 `bigquery:"error_code"`
	ErrorMessage  string                 `bigquery:"error_message"`
}

func syncHistoryRowFromDomain(s *domain.SyncHistory) *SyncHistoryRow {
	return &SyncHistoryRow{
		SyncID:        s.ID,
		BankAccountID: s.BankAccountID,
		ProfileID:     s.ProfileID,
		SessionID:     s.SessionID,
		TriggerType:   s.TriggerType,
		Status:        string(s.Status),
		DataFrom:      nullDate(s.DataFrom),
		DataTo:        nullDate(s.DataTo),
		StartedAt:     nullTimestamp(s.StartedAt),
		EndedAt:       nullTimestamp(s.EndedAt),
		TxnsFetched:   int64(s.TxnsFetched),
		TxnsSaved:     int64(s.TxnsSaved),
		TxnsSkipped:   int64(s.TxnsSkipped),
		ErrorCode:     s.ErrorCode,
		ErrorMessage:  s.ErrorMessage,
	}
}

func (row *SyncHistoryRow) toDomain() *domain.SyncHistory {
	return &domain.SyncHistory{
		ID:            row.SyncID,
		BankAccountID: row.BankAccountID,
		ProfileID:     row.ProfileID,
		SessionID:     row.SessionID,
		TriggerType:   row.TriggerType,
		Status:        domain.SyncStatus(row.Status),
		DataFrom:      row.DataFrom.Date,
		DataTo:        row.DataTo.Date,
		StartedAt:     row.StartedAt.Timestamp,
		EndedAt:       row.EndedAt.Timestamp,
		TxnsFetched:   int(row.TxnsFetched),
		TxnsSaved:     int(row.TxnsSaved),
		TxnsSkipped:   int(row.TxnsSkipped),
		ErrorCode:     row.ErrorCode,
		ErrorMessage:  row.ErrorMessage,
	}
}

// InsertSyncHistory appends one sync attempt record.
func (r *Repository) InsertSyncHistory(ctx context.Context, record *domain.SyncHistory) error {
	row := syncHistoryRowFromDomain(record)
	inserter := r.client.Dataset(r.datasetID).Table(tableSyncHistory).Inserter()
	if err := inserter.Put(ctx, row); err != nil {
		return fmt.Errorf("InsertSyncHistory: %w", err)
	}
	return nil
}

// UpdateSyncHistory rewrites the lifecycle columns of an attempt record.
func (r *Repository) UpdateSyncHistory(ctx context.Context, record *domain.SyncHistory) error {
	q := r.client.Query(fmt.Sprintf(`
		UPDATE %s SET
			session_id = @session_id,
			status = @status,
			started_at = @started_at,
			ended_at = @ended_at,
			txns_fetched = @txns_fetched,
			txns_saved = @txns_saved,
			txns_skipped = @txns_skipped,
			error_code = @error_code,
			error_message = @error_message
		WHERE sync_id = @sync_id
	`, r.table(tableSyncHistory)))
	q.Parameters = []bigquery.QueryParameter{
		{Name: "session_id", Value: record.SessionID},
		{Name: "status", Value: string(record.Status)},
		{Name: "started_at", Value: nullTimestamp(record.StartedAt)},
		{Name: "ended_at", Value: nullTimestamp(record.EndedAt)},
		{Name: "txns_fetched", Value: int64(record.TxnsFetched)},
		{Name: "txns_saved", Value: int64(record.TxnsSaved)},
		{Name: "txns_skipped", Value: int64(record.TxnsSkipped)},
		{Name: "error_code", Value: record.ErrorCode},
		{Name: "error_message", Value: record.ErrorMessage},
		{Name: "sync_id", Value: record.ID},
	}
	if err := runDML(ctx, q); err != nil {
		return fmt.Errorf("UpdateSyncHistory: %w", err)
	}
	return nil
}

// ListSyncHistory fetches recent attempts for an account, newest first.
func (r *Repository) ListSyncHistory(ctx context.Context, accountID string, limit int) ([]*domain.SyncHistory, error) {
	if limit <= 0 {
		limit = 20
	}
	q := r.client.Query(fmt.Sprintf(`
		SELECT *
		FROM %s
		WHERE bank_account_id = @bank_account_id
		ORDER BY started_at DESC
		LIMIT @row_limit
	`, r.table(tableSyncHistory)))
	q.Parameters = []bigquery.QueryParameter{
		{Name: "bank_account_id", Value: accountID},
		{Name: "row_limit", Value: int64(limit)},
	}

	it, err := q.Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("ListSyncHistory: %w", err)
	}
	var records []*domain.SyncHistory
	for {
		var row SyncHistoryRow
		err := it.Next(&row)
		if err == errIterDone {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("ListSyncHistory: iterating: %w", err)
		}
		records = append(records, row.toDomain())
	}
	return records, nil
}
