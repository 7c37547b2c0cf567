// Package bigquery persists the ledger in BigQuery: bank accounts, all
// ingested transactions, sync attempts, holder profiles and uploaded
// statements. One Repository holds a shared client for every table.
package bigquery

import (
	"context"
	"fmt"
	"time"

	"cloud.google.com/go/bigquery"
	"cloud.google.com/go/civil"
	"google.golang.org/api/iterator"
)

// errIterDone keeps table files free of the iterator import.
var errIterDone = iterator.Done

// Table names inside the dataset.
const (
	tableAccounts    = "bank_accounts"
	tableTxns        = "transactions"
	tableSyncHistory = "sync_history"
	tableHolders     = "account_holders"
	tableStatements  = "statements"
)

// Repository is the concrete store backed by BigQuery. It satisfies the
// banksync and pipeline store interfaces.
type Repository struct {
	client    *bigquery.Client
	projectID string
	datasetID string
}

// NewRepository creates a repository with a shared BigQuery client.
func NewRepository(ctx context.Context, projectID, datasetID string) (*Repository, error) {
	client, err := bigquery.NewClient(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("NewRepository: creating client: %w", err)
	}
	return &Repository{client: client, projectID: projectID, datasetID: datasetID}, nil
}

// NewRepositoryWithClient wraps an existing client, mainly for tests and
// commands that already own one.
func NewRepositoryWithClient(client *bigquery.Client, projectID, datasetID string) *Repository {
	return &Repository{client: client, projectID: projectID, datasetID: datasetID}
}

// Close closes the underlying client.
func (r *Repository) Close() error {
	if r.client != nil {
		return r.client.Close()
	}
	return nil
}

// table renders a fully qualified table reference for query text.
func (r *Repository) table(name string) string {
	return fmt.Sprintf("`%s.%s.%s`", r.projectID, r.datasetID, name)
}

// queryRow runs a query expected to return at most one row into dst.
// Missing rows surface as (false, nil).
func (r *Repository) queryRow(ctx context.Context, q *bigquery.Query, dst any) (bool, error) {
	it, err := q.Read(ctx)
	if err != nil {
		return false, err
	}
	err = it.Next(dst)
	if err == iterator.Done {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// exists runs a COUNT query and reports whether it returned a nonzero count.
func (r *Repository) exists(ctx context.Context, q *bigquery.Query) (bool, error) {
	it, err := q.Read(ctx)
	if err != nil {
		return false, err
	}
	var row struct {
		Count int64 `bigquery:"cnt"`
	}
	if err := it.Next(&row); err != nil && err != iterator.Done {
		return false, err
	}
	return row.Count > 0, nil
}

// runDML executes a mutation query and waits for it to finish.
func runDML(ctx context.Context, q *bigquery.Query) error {
	job, err := q.Run(ctx)
	if err != nil {
		return err
	}
	status, err := job.Wait(ctx)
	if err != nil {
		return err
	}
	return status.Err()
}

// nullTimestamp maps a zero time to a BigQuery NULL.
func nullTimestamp(t time.Time) bigquery.NullTimestamp {
	if t.IsZero() {
		return bigquery.NullTimestamp{}
	}
	return bigquery.NullTimestamp{Timestamp: t, Valid: true}
}

// nullDate maps a zero civil date to a BigQuery NULL.
func nullDate(d civil.Date) bigquery.NullDate {
	if d.IsZero() {
		return bigquery.NullDate{}
	}
	return bigquery.NullDate{Date: d, Valid: true}
}
