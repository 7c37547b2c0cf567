package handlers

import (
	"context"
	"io"

	"cloud.google.com/go/civil"

	"github.com/ametsa/bachat-core/internal/aggregator"
	"github.com/ametsa/bachat-core/internal/banksync"
	"github.com/ametsa/bachat-core/internal/domain"
)

// SyncService is the slice of the banksync service the HTTP layer calls.
type SyncService interface {
	InitiateConnection(ctx context.Context, profileID, mobile string, from, to civil.Date) (*banksync.ConnectionResult, error)
	RefreshConsentStatus(ctx context.Context, accountID string) (*domain.BankAccount, error)
	Disconnect(ctx context.Context, accountID string) error
	History(ctx context.Context, accountID string, limit int) ([]*domain.SyncHistory, error)
	HandleNotification(ctx context.Context, payload *aggregator.WebhookPayload) error
}

// AccountReader serves account lookups.
type AccountReader interface {
	GetAccount(ctx context.Context, id string) (*domain.BankAccount, error)
	ListAccountsByProfileID(ctx context.Context, profileID string) ([]*domain.BankAccount, error)
	ListHolders(ctx context.Context, accountID string) ([]*domain.AccountHolder, error)
}

// StatementStore serves statement record reads and writes.
type StatementStore interface {
	InsertStatement(ctx context.Context, st *domain.Statement) error
	GetStatement(ctx context.Context, id string) (*domain.Statement, error)
	ListStatementsByProfileID(ctx context.Context, profileID string) ([]*domain.Statement, error)
}

// TransactionReader serves ledger queries.
type TransactionReader interface {
	ListTransactions(ctx context.Context, accountID string, from, to civil.Date, limit int) ([]*domain.Transaction, error)
}

// DocumentSaver streams uploaded statement documents into storage.
type DocumentSaver interface {
	Save(ctx context.Context, objectPath string, src io.Reader) (string, error)
}
