package bigquery

import (
	"context"
	"fmt"
	"time"

	"cloud.google.com/go/bigquery"

	"github.com/ametsa/bachat-core/internal/domain"
)

// StatementRow is the statements table schema.
type StatementRow struct {
	StatementID   string                 `bigquery:"statement_id"` // REQUIRED
	ProfileID     string                 `bigquery:"profile_id"`
	BankAccountID string                 `bigquery:"bank_account_id"`
	Filename      string                 `bigquery:"filename"`
	GCSPath       string                 `bigquery:"gcs_path"`
	BankCode      string                 `bigquery:"bank_code"`
	Status        string                 `bigquery:"status"`
	TxnsParsed    int64                  `bigquery:"txns_parsed"`
	TxnsSaved     int64                  `bigquery:"txns_saved"`
	TxnsSkipped   int64                  `bigquery:"txns_skipped"`
	ErrorMessage  string                 `bigquery:"error_message"`
	UploadedTS    time.Time              `bigquery:"uploaded_ts"`
	ParsedTS      bigquery.NullTimestamp `bigquery:"parsed_ts"`
}

func (row *StatementRow) toDomain() *domain.Statement {
	return &domain.Statement{
		ID:            row.StatementID,
		ProfileID:     row.ProfileID,
		BankAccountID: row.BankAccountID,
		Filename:      row.Filename,
		GCSPath:       row.GCSPath,
		BankCode:      row.BankCode,
		Status:        domain.StatementStatus(row.Status),
		TxnsParsed:    int(row.TxnsParsed),
		TxnsSaved:     int(row.TxnsSaved),
		TxnsSkipped:   int(row.TxnsSkipped),
		ErrorMessage:  row.ErrorMessage,
		UploadedAt:    row.UploadedTS,
		ParsedAt:      row.ParsedTS.Timestamp,
	}
}

// InsertStatement records an uploaded statement document. DML rather than the
// streaming inserter: the parse pipeline updates the row moments later, and
// rows in the streaming buffer reject UPDATE.
func (r *Repository) InsertStatement(ctx context.Context, st *domain.Statement) error {
	q := r.client.Query(fmt.Sprintf(`
		INSERT INTO %s (
			statement_id, profile_id, bank_account_id, filename, gcs_path,
			bank_code, status, txns_parsed, txns_saved, txns_skipped,
			error_message, uploaded_ts, parsed_ts
		) VALUES (
			@statement_id, @profile_id, @bank_account_id, @filename, @gcs_path,
			@bank_code, @status, @txns_parsed, @txns_saved, @txns_skipped,
			@error_message, @uploaded_ts, @parsed_ts
		)
	`, r.table(tableStatements)))
	q.Parameters = []bigquery.QueryParameter{
		{Name: "statement_id", Value: st.ID},
		{Name: "profile_id", Value: st.ProfileID},
		{Name: "bank_account_id", Value: st.BankAccountID},
		{Name: "filename", Value: st.Filename},
		{Name: "gcs_path", Value: st.GCSPath},
		{Name: "bank_code", Value: st.BankCode},
		{Name: "status", Value: string(st.Status)},
		{Name: "txns_parsed", Value: int64(st.TxnsParsed)},
		{Name: "txns_saved", Value: int64(st.TxnsSaved)},
		{Name: "txns_skipped", Value: int64(st.TxnsSkipped)},
		{Name: "error_message", Value: st.ErrorMessage},
		{Name: "uploaded_ts", Value: st.UploadedAt},
		{Name: "parsed_ts", Value: nullTimestamp(st.ParsedAt)},
	}
	if err := runDML(ctx, q); err != nil {
		return fmt.Errorf("InsertStatement: %w", err)
	}
	return nil
}

// GetStatement fetches one statement record by ID.
func (r *Repository) GetStatement(ctx context.Context, id string) (*domain.Statement, error) {
	q := r.client.Query(fmt.Sprintf(`
		SELECT *
		FROM %s
		WHERE statement_id = @statement_id
	`, r.table(tableStatements)))
	q.Parameters = []bigquery.QueryParameter{{Name: "statement_id", Value: id}}

	var row StatementRow
	found, err := r.queryRow(ctx, q, &row)
	if err != nil {
		return nil, fmt.Errorf("GetStatement: %w", err)
	}
	if !found {
		return nil, fmt.Errorf("GetStatement: statement %s not found", id)
	}
	return row.toDomain(), nil
}

// UpdateStatement rewrites the processing-state columns of a statement.
func (r *Repository) UpdateStatement(ctx context.Context, st *domain.Statement) error {
	q := r.client.Query(fmt.Sprintf(`
		UPDATE %s SET
			bank_account_id = @bank_account_id,
			bank_code = @bank_code,
			status = @status,
			txns_parsed = @txns_parsed,
			txns_saved = @txns_saved,
			txns_skipped = @txns_skipped,
			error_message = @error_message,
			parsed_ts = @parsed_ts
		WHERE statement_id = @statement_id
	`, r.table(tableStatements)))
	q.Parameters = []bigquery.QueryParameter{
		{Name: "bank_account_id", Value: st.BankAccountID},
		{Name: "bank_code", Value: st.BankCode},
		{Name: "status", Value: string(st.Status)},
		{Name: "txns_parsed", Value: int64(st.TxnsParsed)},
		{Name: "txns_saved", Value: int64(st.TxnsSaved)},
		{Name: "txns_skipped", Value: int64(st.TxnsSkipped)},
		{Name: "error_message", Value: st.ErrorMessage},
		{Name: "parsed_ts", Value: nullTimestamp(st.ParsedAt)},
		{Name: "statement_id", Value: st.ID},
	}
	if err := runDML(ctx, q); err != nil {
		return fmt.Errorf("UpdateStatement: %w", err)
	}
	return nil
}

// ListStatementsByProfileID fetches a profile's uploads, newest first.
func (r *Repository) ListStatementsByProfileID(ctx context.Context, profileID string) ([]*domain.Statement, error) {
	q := r.client.Query(fmt.Sprintf(`
		SELECT *
		FROM %s
		WHERE profile_id = @profile_id
		ORDER BY uploaded_ts DESC
	`, r.table(tableStatements)))
	q.Parameters = []bigquery.QueryParameter{{Name: "profile_id", Value: profileID}}

	it, err := q.Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("ListStatementsByProfileID: %w", err)
	}
	var statements []*domain.Statement
	for {
		var row StatementRow
		err := it.Next(&row)
		if err == errIterDone {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("ListStatementsByProfileID: iterating: %w", err)
		}
		statements = append(statements, row.toDomain())
	}
	return statements, nil
}
