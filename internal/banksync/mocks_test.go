package banksync

import (
	"context"
	"fmt"

	"cloud.google.com/go/civil"

	"github.com/ametsa/bachat-core/internal/aggregator"
	"github.com/ametsa/bachat-core/internal/domain"
)

// mockStore is an in-memory Store for service tests.
type mockStore struct {
	accounts map[string]*domain.BankAccount
	txns     map[string]*domain.Transaction // by dedupe key
	history  map[string]*domain.SyncHistory
	holders  map[string][]*domain.AccountHolder

	accountInserts int
	accountUpdates int
}

func newMockStore() *mockStore {
	return &mockStore{
		accounts: make(map[string]*domain.BankAccount),
		txns:     make(map[string]*domain.Transaction),
		history:  make(map[string]*domain.SyncHistory),
		holders:  make(map[string][]*domain.AccountHolder),
	}
}

func (m *mockStore) GetAccount(_ context.Context, id string) (*domain.BankAccount, error) {
	a, ok := m.accounts[id]
	if !ok {
		return nil, fmt.Errorf("account %s not found", id)
	}
	cp := *a
	return &cp, nil
}

func (m *mockStore) ListAccountsByConsentID(_ context.Context, consentID string) ([]*domain.BankAccount, error) {
	var out []*domain.BankAccount
	for _, a := range m.accounts {
		if a.ConsentID == consentID {
			cp := *a
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *mockStore) InsertAccount(_ context.Context, account *domain.BankAccount) error {
	cp := *account
	m.accounts[account.ID] = &cp
	m.accountInserts++
	return nil
}

func (m *mockStore) UpdateAccount(_ context.Context, account *domain.BankAccount) error {
	if _, ok := m.accounts[account.ID]; !ok {
		return fmt.Errorf("update of unknown account %s", account.ID)
	}
	cp := *account
	m.accounts[account.ID] = &cp
	m.accountUpdates++
	return nil
}

func (m *mockStore) ExistsByDedupeKey(_ context.Context, key string) (bool, error) {
	_, ok := m.txns[key]
	return ok, nil
}

func (m *mockStore) ExistsByAccountAndBankTxnID(_ context.Context, accountID, bankTxnID string) (bool, error) {
	for _, tx := range m.txns {
		if tx.BankAccountID == accountID && tx.BankTxnID == bankTxnID {
			return true, nil
		}
	}
	return false, nil
}

func (m *mockStore) InsertTransaction(_ context.Context, tx *domain.Transaction) error {
	if _, dup := m.txns[tx.DedupeKey]; dup {
		return fmt.Errorf("duplicate dedupe key %s", tx.DedupeKey)
	}
	cp := *tx
	m.txns[tx.DedupeKey] = &cp
	return nil
}

func (m *mockStore) InsertSyncHistory(_ context.Context, record *domain.SyncHistory) error {
	cp := *record
	m.history[record.ID] = &cp
	return nil
}

func (m *mockStore) UpdateSyncHistory(_ context.Context, record *domain.SyncHistory) error {
	if _, ok := m.history[record.ID]; !ok {
		return fmt.Errorf("update of unknown sync record %s", record.ID)
	}
	cp := *record
	m.history[record.ID] = &cp
	return nil
}

func (m *mockStore) ListSyncHistory(_ context.Context, accountID string, limit int) ([]*domain.SyncHistory, error) {
	var out []*domain.SyncHistory
	for _, h := range m.history {
		if h.BankAccountID == accountID {
			cp := *h
			out = append(out, &cp)
		}
	}
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *mockStore) ReplaceHolders(_ context.Context, accountID string, holders []*domain.AccountHolder) error {
	m.holders[accountID] = holders
	return nil
}

// mockAPI is a canned AggregatorAPI.
type mockAPI struct {
	consent     *aggregator.ConsentResponse
	session     *aggregator.DataSessionResponse
	sessionData *aggregator.FIDataResponse

	revoked      []string
	fetchedIDs   []string
	consentPolls int
}

func (m *mockAPI) CreateConsent(_ context.Context, mobile string, from, to civil.Date) (*aggregator.ConsentResponse, error) {
	if m.consent == nil {
		return nil, fmt.Errorf("no consent configured")
	}
	return m.consent, nil
}

func (m *mockAPI) ConsentStatus(_ context.Context, consentID string, expanded bool) (*aggregator.ConsentResponse, error) {
	m.consentPolls++
	if m.consent == nil {
		return nil, fmt.Errorf("no consent configured")
	}
	return m.consent, nil
}

func (m *mockAPI) CreateDataSession(_ context.Context, consentID string, from, to civil.Date) (*aggregator.DataSessionResponse, error) {
	if m.session == nil {
		return nil, fmt.Errorf("no session configured")
	}
	return m.session, nil
}

func (m *mockAPI) FetchSessionData(_ context.Context, sessionID string) (*aggregator.FIDataResponse, error) {
	m.fetchedIDs = append(m.fetchedIDs, sessionID)
	if m.sessionData == nil {
		return nil, fmt.Errorf("no session data configured")
	}
	return m.sessionData, nil
}

func (m *mockAPI) RevokeConsent(_ context.Context, consentID string) error {
	m.revoked = append(m.revoked, consentID)
	return nil
}
