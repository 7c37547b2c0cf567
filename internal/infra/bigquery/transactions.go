package bigquery

import (
	"context"
	"fmt"
	"time"

	"cloud.google.com/go/bigquery"
	"cloud.google.com/go/civil"

	"github.com/ametsa/bachat-core/internal/domain"
)

// TransactionRow is the transactions table schema. Money columns are
// integer paisa.
type TransactionRow struct {
	TransactionID string `bigquery:"transaction_id"` // REQUIRED
	BankAccountID string `bigquery:"bank_account_id"`
	ProfileID     string `bigquery:"profile_id"`
	StatementID   string `bigquery:"statement_id"`
	SourceType    string `bigquery:"source_type"`

	BankTxnID    string                 `bigquery:"bank_txn_id"`
	TxnDate      bigquery.NullDate      `bigquery:"txn_date"` // DATE, NULLABLE
	ValueDate    bigquery.NullDate      `bigquery:"value_date"`
	TxnTimestamp bigquery.NullTimestamp `bigquery:"txn_timestamp"`

	AmountPaisa  int64  `bigquery:"amount_paisa"`
	Direction    string `bigquery:"direction"`
	BalancePaisa int64  `bigquery:"balance_paisa"`
	Currency     string `bigquery:"currency"`

	TxnType     string `bigquery:"txn_type"`
	Description string `bigquery:"description"`
	Merchant    string `bigquery:"merchant"`
	UPIRef      string `bigquery:"upi_ref"`

	CounterpartyName    string `bigquery:"counterparty_name"`
	CounterpartyAccount string `bigquery:"counterparty_account"`
	CounterpartyIFSC    string `bigquery:"counterparty_ifsc"`

	Category    string `bigquery:"category"`
	Subcategory string `bigquery:"subcategory"`

	DedupeKey string    `bigquery:"dedupe_key"`
	RawText   string    `bigquery:"raw_text"`
	CreatedTS time.Time `bigquery:"created_ts"`
}

func transactionRowFromDomain(t *domain.Transaction) *TransactionRow {
	return &TransactionRow{
		TransactionID:       t.ID,
		BankAccountID:       t.BankAccountID,
		ProfileID:           t.ProfileID,
		StatementID:         t.StatementID,
		SourceType:          string(t.SourceType),
		BankTxnID:           t.BankTxnID,
		TxnDate:             nullDate(t.TxnDate),
		ValueDate:           nullDate(t.ValueDate),
		TxnTimestamp:        nullTimestamp(t.TxnTimestamp),
		AmountPaisa:         t.AmountPaisa,
		Direction:           string(t.Direction),
		BalancePaisa:        t.BalancePaisa,
		Currency:            t.Currency,
		TxnType:             t.TxnType,
		Description:         t.Description,
		Merchant:            t.Merchant,
		UPIRef:              t.UPIRef,
		CounterpartyName:    t.CounterpartyName,
		CounterpartyAccount: t.CounterpartyAccount,
		CounterpartyIFSC:    t.CounterpartyIFSC,
		Category:            t.Category,
		Subcategory:         t.Subcategory,
		DedupeKey:           t.DedupeKey,
		RawText:             t.RawText,
		CreatedTS:           t.CreatedAt,
	}
}

func (row *TransactionRow) toDomain() *domain.Transaction {
	return &domain.Transaction{
		ID:                  row.TransactionID,
		BankAccountID:       row.BankAccountID,
		ProfileID:           row.ProfileID,
		StatementID:         row.StatementID,
		SourceType:          domain.SourceType(row.SourceType),
		BankTxnID:           row.BankTxnID,
		TxnDate:             row.TxnDate.Date,
		ValueDate:           row.ValueDate.Date,
		TxnTimestamp:        row.TxnTimestamp.Timestamp,
		AmountPaisa:         row.AmountPaisa,
		Direction:           domain.Direction(row.Direction),
		BalancePaisa:        row.BalancePaisa,
		Currency:            row.Currency,
		TxnType:             row.TxnType,
		Description:         row.Description,
		Merchant:            row.Merchant,
		UPIRef:              row.UPIRef,
		CounterpartyName:    row.CounterpartyName,
		CounterpartyAccount: row.CounterpartyAccount,
		CounterpartyIFSC:    row.CounterpartyIFSC,
		Category:            row.Category,
		Subcategory:         row.Subcategory,
		DedupeKey:           row.DedupeKey,
		RawText:             row.RawText,
		CreatedAt:           row.CreatedTS,
	}
}

// InsertTransaction appends one transaction row. The dedupe gate runs
// before this call; the table has no uniqueness enforcement of its own.
func (r *Repository) InsertTransaction(ctx context.Context, tx *domain.Transaction) error {
	row := transactionRowFromDomain(tx)
	inserter := r.client.Dataset(r.datasetID).Table(tableTxns).Inserter()
	if err := inserter.Put(ctx, row); err != nil {
		return fmt.Errorf("InsertTransaction: %w", err)
	}
	return nil
}

// ExistsByDedupeKey reports whether a transaction was already ingested.
func (r *Repository) ExistsByDedupeKey(ctx context.Context, key string) (bool, error) {
	q := r.client.Query(fmt.Sprintf(`
		SELECT COUNT(*) AS cnt
		FROM %s
		WHERE dedupe_key = @dedupe_key
	`, r.table(tableTxns)))
	q.Parameters = []bigquery.QueryParameter{{Name: "dedupe_key", Value: key}}

	found, err := r.exists(ctx, q)
	if err != nil {
		return false, fmt.Errorf("ExistsByDedupeKey: %w", err)
	}
	return found, nil
}

// ExistsByAccountAndBankTxnID is the fallback lookup for rows written before
// the dedupe key format stabilized.
func (r *Repository) ExistsByAccountAndBankTxnID(ctx context.Context, accountID, bankTxnID string) (bool, error) {
	q := r.client.Query(fmt.Sprintf(`
		SELECT COUNT(*) AS cnt
		FROM %s
		WHERE bank_account_id = @bank_account_id AND bank_txn_id = @bank_txn_id
	`, r.table(tableTxns)))
	q.Parameters = []bigquery.QueryParameter{
		{Name: "bank_account_id", Value: accountID},
		{Name: "bank_txn_id", Value: bankTxnID},
	}

	found, err := r.exists(ctx, q)
	if err != nil {
		return false, fmt.Errorf("ExistsByAccountAndBankTxnID: %w", err)
	}
	return found, nil
}

// ListTransactions fetches an account's transactions inside a date range,
// newest first. Zero dates drop the corresponding bound.
func (r *Repository) ListTransactions(ctx context.Context, accountID string, from, to civil.Date, limit int) ([]*domain.Transaction, error) {
	if limit <= 0 {
		limit = 100
	}
	query := fmt.Sprintf(`
		SELECT *
		FROM %s
		WHERE bank_account_id = @bank_account_id
	`, r.table(tableTxns))
	params := []bigquery.QueryParameter{{Name: "bank_account_id", Value: accountID}}
	if !from.IsZero() {
		query += " AND txn_date >= @from_date"
		params = append(params, bigquery.QueryParameter{Name: "from_date", Value: from})
	}
	if !to.IsZero() {
		query += " AND txn_date <= @to_date"
		params = append(params, bigquery.QueryParameter{Name: "to_date", Value: to})
	}
	query += " ORDER BY txn_date DESC, created_ts DESC LIMIT @row_limit"
	params = append(params, bigquery.QueryParameter{Name: "row_limit", Value: int64(limit)})

	q := r.client.Query(query)
	q.Parameters = params

	it, err := q.Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("ListTransactions: %w", err)
	}
	var txns []*domain.Transaction
	for {
		var row TransactionRow
		err := it.Next(&row)
		if err == errIterDone {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("ListTransactions: iterating: %w", err)
		}
		txns = append(txns, row.toDomain())
	}
	return txns, nil
}
