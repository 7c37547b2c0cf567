package bigquery

import (
	"context"
	"fmt"
	"time"

	"cloud.google.com/go/bigquery"

	"github.com/ametsa/bachat-core/internal/domain"
)

// HolderRow is the account_holders table schema.
type HolderRow struct {
	HolderID      string            `bigquery:"holder_id"` // REQUIRED
	BankAccountID string            `bigquery:"bank_account_id"`
	Name          string            `bigquery:"name"`
	DOB           bigquery.NullDate `bigquery:"dob"`
	Mobile        string            `bigquery:"mobile"`
	Email         string            `bigquery:"email"`
	PAN           string            `bigquery:"pan"`
	Address       string            `bigquery:"address"`
	Nominee       string            `bigquery:"nominee"`
	CKYCCompliant bool              `bigquery:"ckyc_compliant"`
	CreatedTS     time.Time         `bigquery:"created_ts"`
}

// ReplaceHolders swaps an account's holder set for the profile block the
// latest sync delivered. Holders carry no history; the provider view wins.
func (r *Repository) ReplaceHolders(ctx context.Context, accountID string, holders []*domain.AccountHolder) error {
	del := r.client.Query(fmt.Sprintf(`
		DELETE FROM %s WHERE bank_account_id = @bank_account_id
	`, r.table(tableHolders)))
	del.Parameters = []bigquery.QueryParameter{{Name: "bank_account_id", Value: accountID}}
	if err := runDML(ctx, del); err != nil {
		return fmt.Errorf("ReplaceHolders: delete: %w", err)
	}

	if len(holders) == 0 {
		return nil
	}
	rows := make([]*HolderRow, len(holders))
	for i, h := range holders {
		rows[i] = &HolderRow{
			HolderID:      h.ID,
			BankAccountID: accountID,
			Name:          h.Name,
			DOB:           nullDate(h.DOB),
			Mobile:        h.Mobile,
			Email:         h.Email,
			PAN:           h.PAN,
			Address:       h.Address,
			Nominee:       h.Nominee,
			CKYCCompliant: h.CKYCCompliant,
			CreatedTS:     h.CreatedAt,
		}
	}
	inserter := r.client.Dataset(r.datasetID).Table(tableHolders).Inserter()
	if err := inserter.Put(ctx, rows); err != nil {
		return fmt.Errorf("ReplaceHolders: insert: %w", err)
	}
	return nil
}

// ListHolders fetches the holders attached to an account.
func (r *Repository) ListHolders(ctx context.Context, accountID string) ([]*domain.AccountHolder, error) {
	q := r.client.Query(fmt.Sprintf(`
		SELECT *
		FROM %s
		WHERE bank_account_id = @bank_account_id
		ORDER BY name
	`, r.table(tableHolders)))
	q.Parameters = []bigquery.QueryParameter{{Name: "bank_account_id", Value: accountID}}

	it, err := q.Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("ListHolders: %w", err)
	}
	var holders []*domain.AccountHolder
	for {
		var row HolderRow
		err := it.Next(&row)
		if err == errIterDone {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("ListHolders: iterating: %w", err)
		}
		holders = append(holders, &domain.AccountHolder{
			ID:            row.HolderID,
			BankAccountID: row.BankAccountID,
			Name:          row.Name,
			DOB:           row.DOB.Date,
			Mobile:        row.Mobile,
			Email:         row.Email,
			PAN:           row.PAN,
			Address:       row.Address,
			Nominee:       row.Nominee,
			CKYCCompliant: row.CKYCCompliant,
			CreatedAt:     row.CreatedTS,
		})
	}
	return holders, nil
}
