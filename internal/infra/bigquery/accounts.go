package bigquery

import (
	"context"
	"fmt"
	"time"

	"cloud.google.com/go/bigquery"

	"github.com/ametsa/bachat-core/internal/domain"
)

// AccountRow is the bank_accounts table schema.
type AccountRow struct {
	AccountID     string                 `bigquery:"account_id"` // REQUIRED
	ProfileID     string                 `bigquery:"profile_id"`
	BankName      string                 `bigquery:"bank_name"`
	MaskedNumber  string                 `bigquery:"masked_number"`
	AccountType   string                 `bigquery:"account_type"`
	Branch        string                 `bigquery:"branch"`
	IFSC          string                 `bigquery:"ifsc"`
	Currency      string                 `bigquery:"currency"`
	LinkRefNumber string                 `bigquery:"link_ref_number"`
	ConsentID     string                 `bigquery:"consent_id"`
	ConsentStatus string                 `bigquery:"consent_status"`
	ConsentURL    string                 `bigquery:"consent_url"`
	BalancePaisa  int64                  `bigquery:"balance_paisa"`
	BalanceAsOf   bigquery.NullTimestamp `bigquery:"balance_as_of"` // TIMESTAMP, NULLABLE
	Active        bool                   `bigquery:"active"`
	LastSyncedAt  bigquery.NullTimestamp `bigquery:"last_synced_at"` // TIMESTAMP, NULLABLE
	LastSyncError string                 `bigquery:"last_sync_error"`
	CreatedTS     time.Time              `bigquery:"created_ts"`
	UpdatedTS     time.Time              `bigquery:"updated_ts"`
}

const accountColumns = `account_id, profile_id, bank_name, masked_number, account_type,
			branch, ifsc, currency, link_ref_number, consent_id, consent_status,
			consent_url, balance_paisa, balance_as_of, active, last_synced_at,
			last_sync_error, created_ts, updated_ts`

func accountRowFromDomain(a *domain.BankAccount) *AccountRow {
	return &AccountRow{
		AccountID:     a.ID,
		ProfileID:     a.ProfileID,
		BankName:      a.BankName,
		MaskedNumber:  a.MaskedNumber,
		AccountType:   a.AccountType,
		Branch:        a.Branch,
		IFSC:          a.IFSC,
		Currency:      a.Currency,
		LinkRefNumber: a.LinkRefNumber,
		ConsentID:     a.ConsentID,
		ConsentStatus: string(a.ConsentStatus),
		ConsentURL:    a.ConsentURL,
		BalancePaisa:  a.BalancePaisa,
		BalanceAsOf:   nullTimestamp(a.BalanceAsOf),
		Active:        a.Active,
		LastSyncedAt:  nullTimestamp(a.LastSyncedAt),
		LastSyncError: a.LastSyncError,
		CreatedTS:     a.CreatedAt,
		UpdatedTS:     a.UpdatedAt,
	}
}

func (row *AccountRow) toDomain() *domain.BankAccount {
	return &domain.BankAccount{
		ID:            row.AccountID,
		ProfileID:     row.ProfileID,
		BankName:      row.BankName,
		MaskedNumber:  row.MaskedNumber,
		AccountType:   row.AccountType,
		Branch:        row.Branch,
		IFSC:          row.IFSC,
		Currency:      row.Currency,
		LinkRefNumber: row.LinkRefNumber,
		ConsentID:     row.ConsentID,
		ConsentStatus: domain.ConsentStatus(row.ConsentStatus),
		ConsentURL:    row.ConsentURL,
		BalancePaisa:  row.BalancePaisa,
		BalanceAsOf:   row.BalanceAsOf.Timestamp,
		Active:        row.Active,
		LastSyncedAt:  row.LastSyncedAt.Timestamp,
		LastSyncError: row.LastSyncError,
		CreatedAt:     row.CreatedTS,
		UpdatedAt:     row.UpdatedTS,
	}
}

// GetAccount fetches one account by ID.
func (r *Repository) GetAccount(ctx context.Context, id string) (*domain.BankAccount, error) {
	q := r.client.Query(fmt.Sprintf(`
		SELECT %s
		FROM %s
		WHERE account_id = @account_id
	`, accountColumns, r.table(tableAccounts)))
	q.Parameters = []bigquery.QueryParameter{{Name: "account_id", Value: id}}

	var row AccountRow
	found, err := r.queryRow(ctx, q, &row)
	if err != nil {
		return nil, fmt.Errorf("GetAccount: %w", err)
	}
	if !found {
		return nil, fmt.Errorf("GetAccount: account %s not found", id)
	}
	return row.toDomain(), nil
}

// ListAccountsByConsentID fetches every account linked under a consent,
// oldest first so the trigger account stays stable.
func (r *Repository) ListAccountsByConsentID(ctx context.Context, consentID string) ([]*domain.BankAccount, error) {
	q := r.client.Query(fmt.Sprintf(`
		SELECT %s
		FROM %s
		WHERE consent_id = @consent_id
		ORDER BY created_ts
	`, accountColumns, r.table(tableAccounts)))
	q.Parameters = []bigquery.QueryParameter{{Name: "consent_id", Value: consentID}}

	rows, err := readAccountRows(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("ListAccountsByConsentID: %w", err)
	}
	return rows, nil
}

// ListAccountsByProfileID fetches a profile's accounts, newest first.
func (r *Repository) ListAccountsByProfileID(ctx context.Context, profileID string) ([]*domain.BankAccount, error) {
	q := r.client.Query(fmt.Sprintf(`
		SELECT %s
		FROM %s
		WHERE profile_id = @profile_id
		ORDER BY created_ts DESC
	`, accountColumns, r.table(tableAccounts)))
	q.Parameters = []bigquery.QueryParameter{{Name: "profile_id", Value: profileID}}

	rows, err := readAccountRows(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("ListAccountsByProfileID: %w", err)
	}
	return rows, nil
}

// ListAccountsByConsentStatus fetches every account whose consent is in the
// given state, oldest first. The scheduled sync loop uses it to find
// ACTIVE accounts due for a refresh.
func (r *Repository) ListAccountsByConsentStatus(ctx context.Context, status domain.ConsentStatus) ([]*domain.BankAccount, error) {
	q := r.client.Query(fmt.Sprintf(`
		SELECT %s
		FROM %s
		WHERE consent_status = @consent_status
		ORDER BY created_ts
	`, accountColumns, r.table(tableAccounts)))
	q.Parameters = []bigquery.QueryParameter{{Name: "consent_status", Value: string(status)}}

	rows, err := readAccountRows(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("ListAccountsByConsentStatus: %w", err)
	}
	return rows, nil
}

func readAccountRows(ctx context.Context, q *bigquery.Query) ([]*domain.BankAccount, error) {
	it, err := q.Read(ctx)
	if err != nil {
		return nil, err
	}
	var accounts []*domain.BankAccount
	for {
		var row AccountRow
		err := it.Next(&row)
		if err == errIterDone {
			break
		}
		if err != nil {
			return nil, err
		}
		accounts = append(accounts, row.toDomain())
	}
	return accounts, nil
}

// InsertAccount appends a new account row.
func (r *Repository) InsertAccount(ctx context.Context, account *domain.BankAccount) error {
	q := r.client.Query(fmt.Sprintf(`
		INSERT INTO %s (%s)
		VALUES (@account_id, @profile_id, @bank_name, @masked_number, @account_type,
			@branch, @ifsc, @currency, @link_ref_number, @consent_id, @consent_status,
			@consent_url, @balance_paisa, @balance_as_of, @active, @last_synced_at,
			@last_sync_error, @created_ts, @updated_ts)
	`, r.table(tableAccounts), accountColumns))
	q.Parameters = accountParams(account)
	q.Parameters = append(q.Parameters,
		bigquery.QueryParameter{Name: "consent_id", Value: account.ConsentID},
		bigquery.QueryParameter{Name: "consent_url", Value: account.ConsentURL},
		bigquery.QueryParameter{Name: "created_ts", Value: account.CreatedAt},
	)
	if err := runDML(ctx, q); err != nil {
		return fmt.Errorf("InsertAccount: %w", err)
	}
	return nil
}

// UpdateAccount rewrites the mutable columns of an account row.
func (r *Repository) UpdateAccount(ctx context.Context, account *domain.BankAccount) error {
	q := r.client.Query(fmt.Sprintf(`
		UPDATE %s SET
			bank_name = @bank_name,
			masked_number = @masked_number,
			account_type = @account_type,
			branch = @branch,
			ifsc = @ifsc,
			currency = @currency,
			link_ref_number = @link_ref_number,
			consent_status = @consent_status,
			balance_paisa = @balance_paisa,
			balance_as_of = @balance_as_of,
			active = @active,
			last_synced_at = @last_synced_at,
			last_sync_error = @last_sync_error,
			updated_ts = @updated_ts
		WHERE account_id = @account_id
	`, r.table(tableAccounts)))
	q.Parameters = accountParams(account)
	if err := runDML(ctx, q); err != nil {
		return fmt.Errorf("UpdateAccount: %w", err)
	}
	return nil
}

// accountParams covers the parameters shared by insert and update.
func accountParams(account *domain.BankAccount) []bigquery.QueryParameter {
	return []bigquery.QueryParameter{
		{Name: "account_id", Value: account.ID},
		{Name: "profile_id", Value: account.ProfileID},
		{Name: "bank_name", Value: account.BankName},
		{Name: "masked_number", Value: account.MaskedNumber},
		{Name: "account_type", Value: account.AccountType},
		{Name: "branch", Value: account.Branch},
		{Name: "ifsc", Value: account.IFSC},
		{Name: "currency", Value: account.Currency},
		{Name: "link_ref_number", Value: account.LinkRefNumber},
		{Name: "consent_status", Value: string(account.ConsentStatus)},
		{Name: "balance_paisa", Value: account.BalancePaisa},
		{Name: "balance_as_of", Value: nullTimestamp(account.BalanceAsOf)},
		{Name: "active", Value: account.Active},
		{Name: "last_synced_at", Value: nullTimestamp(account.LastSyncedAt)},
		{Name: "last_sync_error", Value: account.LastSyncError},
		{Name: "updated_ts", Value: time.Now().UTC()},
	}
}
