package banksync

import (
	"context"

	"cloud.google.com/go/civil"

	"github.com/ametsa/bachat-core/internal/aggregator"
	"github.com/ametsa/bachat-core/internal/domain"
)

// AggregatorAPI is the slice of the provider client the sync service needs.
type AggregatorAPI interface {
	CreateConsent(ctx context.Context, mobile string, from, to civil.Date) (*aggregator.ConsentResponse, error)
	ConsentStatus(ctx context.Context, consentID string, expanded bool) (*aggregator.ConsentResponse, error)
	CreateDataSession(ctx context.Context, consentID string, from, to civil.Date) (*aggregator.DataSessionResponse, error)
	FetchSessionData(ctx context.Context, sessionID string) (*aggregator.FIDataResponse, error)
	RevokeConsent(ctx context.Context, consentID string) error
}

// AccountStore persists bank accounts.
type AccountStore interface {
	GetAccount(ctx context.Context, id string) (*domain.BankAccount, error)
	ListAccountsByConsentID(ctx context.Context, consentID string) ([]*domain.BankAccount, error)
	InsertAccount(ctx context.Context, account *domain.BankAccount) error
	UpdateAccount(ctx context.Context, account *domain.BankAccount) error
}

// TransactionStore persists transactions and answers dedupe lookups.
type TransactionStore interface {
	ExistsByDedupeKey(ctx context.Context, key string) (bool, error)
	ExistsByAccountAndBankTxnID(ctx context.Context, accountID, bankTxnID string) (bool, error)
	InsertTransaction(ctx context.Context, tx *domain.Transaction) error
}

// SyncHistoryStore persists sync attempt records.
type SyncHistoryStore interface {
	InsertSyncHistory(ctx context.Context, record *domain.SyncHistory) error
	UpdateSyncHistory(ctx context.Context, record *domain.SyncHistory) error
	ListSyncHistory(ctx context.Context, accountID string, limit int) ([]*domain.SyncHistory, error)
}

// HolderStore persists account holder profiles.
type HolderStore interface {
	ReplaceHolders(ctx context.Context, accountID string, holders []*domain.AccountHolder) error
}

// Store is the full persistence surface the sync service depends on.
type Store interface {
	AccountStore
	TransactionStore
	SyncHistoryStore
	HolderStore
}
