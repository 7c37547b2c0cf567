package banksync

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"cloud.google.com/go/civil"
	"github.com/rs/zerolog"

	"github.com/ametsa/bachat-core/internal/aggregator"
	"github.com/ametsa/bachat-core/internal/domain"
)

func newTestService(store *mockStore, api *mockAPI) *Service {
	return New(api, store, nil, Config{DataFetchMonths: 3}, zerolog.Nop())
}

func activeAccount(store *mockStore, id, consentID, masked string) *domain.BankAccount {
	account := &domain.BankAccount{
		ID:            id,
		ProfileID:     "profile-1",
		ConsentID:     consentID,
		ConsentStatus: domain.ConsentActive,
		MaskedNumber:  masked,
		Active:        true,
		CreatedAt:     time.Now().UTC(),
	}
	store.accounts[id] = account
	return account
}

func sessionData(status string, accounts ...aggregator.Account) *aggregator.FIDataResponse {
	return &aggregator.FIDataResponse{
		ID:     "session-1",
		Status: status,
		FIPs:   []aggregator.FIPData{{FIPID: "HDFC-FIP", Accounts: accounts}},
	}
}

func reportedAccount(masked string, txns ...aggregator.Transaction) aggregator.Account {
	return aggregator.Account{
		MaskedAccNumber: masked,
		LinkRefNumber:   "link-" + masked,
		FIType:          "DEPOSIT",
		Data: &aggregator.AccountPayload{
			Account: aggregator.AccountInfo{
				Type:           "SAVINGS",
				IFSC:           "HDFC0000001",
				CurrentBalance: "12500.00",
				Currency:       "INR",
				Transactions:   &aggregator.TransactionsBlock{Transaction: txns},
			},
		},
	}
}

func aaTxn(id, amount, typ, narration string) aggregator.Transaction {
	return aggregator.Transaction{
		TxnID:                id,
		Type:                 typ,
		Mode:                 "UPI",
		Amount:               amount,
		CurrentBalance:       "12500.00",
		TransactionTimestamp: "2024-03-01T10:15:00.000Z",
		ValueDate:            "2024-03-01",
		Narration:            narration,
	}
}

func TestSyncAccountSavesTransactions(t *testing.T) {
	store := newMockStore()
	account := activeAccount(store, "acc-1", "consent-1", "XXXXXXXX1234")
	api := &mockAPI{
		session: &aggregator.DataSessionResponse{ID: "session-1", Status: aggregator.SessionStatusPending},
		sessionData: sessionData(aggregator.SessionStatusCompleted,
			reportedAccount("XXXXXXXX1234",
				aaTxn("T1", "250.00", "DEBIT", "UPI/DR/SWIGGY"),
				aaTxn("T2", "50000.00", "CREDIT", "NEFT SALARY"),
			)),
	}
	svc := newTestService(store, api)

	record, err := svc.SyncAccount(context.Background(), account.ID, domain.TriggerManual)
	if err != nil {
		t.Fatalf("SyncAccount: %v", err)
	}
	if record.Status != domain.SyncSuccess {
		t.Errorf("status = %s, want SUCCESS", record.Status)
	}
	if record.TxnsFetched != 2 || record.TxnsSaved != 2 || record.TxnsSkipped != 0 {
		t.Errorf("counts = %d/%d/%d, want 2/2/0",
			record.TxnsFetched, record.TxnsSaved, record.TxnsSkipped)
	}
	if len(store.txns) != 2 {
		t.Errorf("stored %d txns, want 2", len(store.txns))
	}
	for _, tx := range store.txns {
		if tx.AmountPaisa < 0 || tx.BalancePaisa < 0 {
			t.Errorf("negative money fields: %+v", tx)
		}
		if tx.Direction != domain.DirectionDebit && tx.Direction != domain.DirectionCredit {
			t.Errorf("direction unset: %+v", tx)
		}
	}
}

func TestSyncIdempotence(t *testing.T) {
	store := newMockStore()
	account := activeAccount(store, "acc-1", "consent-1", "XXXXXXXX1234")
	api := &mockAPI{
		session: &aggregator.DataSessionResponse{ID: "session-1"},
		sessionData: sessionData(aggregator.SessionStatusCompleted,
			reportedAccount("XXXXXXXX1234",
				aaTxn("T1", "250.00", "DEBIT", "UPI/DR/SWIGGY"),
				aaTxn("T2", "50000.00", "CREDIT", "NEFT SALARY"),
			)),
	}
	svc := newTestService(store, api)

	first, err := svc.SyncAccount(context.Background(), account.ID, domain.TriggerManual)
	if err != nil {
		t.Fatalf("first sync: %v", err)
	}
	second, err := svc.SyncAccount(context.Background(), account.ID, domain.TriggerManual)
	if err != nil {
		t.Fatalf("second sync: %v", err)
	}

	if second.TxnsSaved != 0 {
		t.Errorf("second run saved %d, want 0", second.TxnsSaved)
	}
	if second.TxnsSkipped != first.TxnsSaved {
		t.Errorf("second run skipped %d, want %d", second.TxnsSkipped, first.TxnsSaved)
	}
	if len(store.txns) != 2 {
		t.Errorf("stored %d txns after rerun, want 2", len(store.txns))
	}
}

func TestReconciliationOneUpdateOneCreate(t *testing.T) {
	store := newMockStore()
	account := activeAccount(store, "acc-1", "consent-1", "XXXXXXXX1234")
	api := &mockAPI{
		session: &aggregator.DataSessionResponse{ID: "session-1"},
		sessionData: sessionData(aggregator.SessionStatusCompleted,
			reportedAccount("XXXXXXXX1234"),
			reportedAccount("XXXXXXXX9876"),
		),
	}
	svc := newTestService(store, api)

	if _, err := svc.SyncAccount(context.Background(), account.ID, domain.TriggerManual); err != nil {
		t.Fatalf("SyncAccount: %v", err)
	}

	if store.accountInserts != 1 {
		t.Errorf("account inserts = %d, want 1", store.accountInserts)
	}
	if len(store.accounts) != 2 {
		t.Errorf("have %d accounts, want 2", len(store.accounts))
	}
	var provisional *domain.BankAccount
	for _, a := range store.accounts {
		if a.ID != account.ID {
			provisional = a
		}
	}
	if provisional == nil {
		t.Fatal("no provisional account created")
	}
	if provisional.ConsentID != "consent-1" {
		t.Errorf("provisional consent = %q, want consent-1", provisional.ConsentID)
	}
	if provisional.MaskedNumber != "XXXXXXXX9876" {
		t.Errorf("provisional masked = %q", provisional.MaskedNumber)
	}
	// The matched account must have been refreshed, not recreated.
	if got := store.accounts[account.ID]; got.IFSC != "HDFC0000001" || got.BalancePaisa != 1250000 {
		t.Errorf("trigger account not updated: %+v", got)
	}
}

func TestSyncFailedSession(t *testing.T) {
	store := newMockStore()
	account := activeAccount(store, "acc-1", "consent-1", "XXXXXXXX1234")
	api := &mockAPI{
		session:     &aggregator.DataSessionResponse{ID: "session-1"},
		sessionData: &aggregator.FIDataResponse{ID: "session-1", Status: aggregator.SessionStatusFailed},
	}
	svc := newTestService(store, api)

	record, err := svc.SyncAccount(context.Background(), account.ID, domain.TriggerManual)
	if err == nil {
		t.Fatal("expected error for failed session")
	}
	if record.Status != domain.SyncFailed {
		t.Errorf("status = %s, want FAILED", record.Status)
	}
	if record.ErrorCode != aggregator.SessionStatusFailed {
		t.Errorf("error code = %q, want FAILED", record.ErrorCode)
	}
	// One record per attempt, whatever the outcome.
	if len(store.history) != 1 {
		t.Errorf("history records = %d, want 1", len(store.history))
	}
	if got := store.accounts[account.ID].LastSyncError; got == "" {
		t.Error("failure not stamped on the account")
	}
}

func TestSyncErrorClearedOnSuccess(t *testing.T) {
	store := newMockStore()
	account := activeAccount(store, "acc-1", "consent-1", "XXXXXXXX1234")
	account.LastSyncError = "SESSION_FETCH_FAILED: timeout"
	api := &mockAPI{
		session: &aggregator.DataSessionResponse{ID: "session-1"},
		sessionData: sessionData(aggregator.SessionStatusCompleted,
			reportedAccount("XXXXXXXX1234", aaTxn("T1", "250.00", "DEBIT", "UPI/DR/SWIGGY"))),
	}
	svc := newTestService(store, api)

	if _, err := svc.SyncAccount(context.Background(), account.ID, domain.TriggerManual); err != nil {
		t.Fatalf("SyncAccount: %v", err)
	}
	if got := store.accounts[account.ID].LastSyncError; got != "" {
		t.Errorf("sync error not cleared: %q", got)
	}
}

func TestSyncPartialSession(t *testing.T) {
	store := newMockStore()
	account := activeAccount(store, "acc-1", "consent-1", "XXXXXXXX1234")
	api := &mockAPI{
		session: &aggregator.DataSessionResponse{ID: "session-1"},
		sessionData: sessionData(aggregator.SessionStatusPartial,
			reportedAccount("XXXXXXXX1234", aaTxn("T1", "250.00", "DEBIT", "UPI/DR/SWIGGY"))),
	}
	svc := newTestService(store, api)

	record, err := svc.SyncAccount(context.Background(), account.ID, domain.TriggerManual)
	if err != nil {
		t.Fatalf("SyncAccount: %v", err)
	}
	if record.Status != domain.SyncPartial {
		t.Errorf("status = %s, want PARTIAL", record.Status)
	}
	if record.TxnsSaved != 1 {
		t.Errorf("saved = %d, want 1", record.TxnsSaved)
	}
}

// trackingAPI counts how many FetchSessionData calls run at once.
type trackingAPI struct {
	*mockAPI
	active  int32
	maxSeen int32
}

func (a *trackingAPI) FetchSessionData(ctx context.Context, sessionID string) (*aggregator.FIDataResponse, error) {
	n := atomic.AddInt32(&a.active, 1)
	for {
		m := atomic.LoadInt32(&a.maxSeen)
		if n <= m || atomic.CompareAndSwapInt32(&a.maxSeen, m, n) {
			break
		}
	}
	time.Sleep(5 * time.Millisecond)
	atomic.AddInt32(&a.active, -1)
	return a.mockAPI.FetchSessionData(ctx, sessionID)
}

func TestConcurrentSyncsSerializedPerAccount(t *testing.T) {
	store := newMockStore()
	account := activeAccount(store, "acc-1", "consent-1", "XXXXXXXX1234")
	api := &trackingAPI{mockAPI: &mockAPI{
		session: &aggregator.DataSessionResponse{ID: "session-1"},
		sessionData: sessionData(aggregator.SessionStatusCompleted,
			reportedAccount("XXXXXXXX1234", aaTxn("T1", "250.00", "DEBIT", "UPI/DR/SWIGGY"))),
	}}
	svc := New(api, store, nil, Config{DataFetchMonths: 3}, zerolog.Nop())

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = svc.SyncAccount(context.Background(), account.ID, domain.TriggerManual)
		}()
	}
	wg.Wait()

	if got := atomic.LoadInt32(&api.maxSeen); got != 1 {
		t.Errorf("observed %d concurrent syncs on one account, want 1", got)
	}
	if len(store.history) != 4 {
		t.Errorf("history records = %d, want 4", len(store.history))
	}
}

func TestInitiateConnection(t *testing.T) {
	store := newMockStore()
	api := &mockAPI{
		consent: &aggregator.ConsentResponse{
			ID:     "consent-1",
			Status: aggregator.ConsentStatusPending,
			URL:    "https://aa.example/consent-1",
		},
	}
	svc := newTestService(store, api)

	result, err := svc.InitiateConnection(context.Background(), "profile-1", "9999999999", civil.Date{}, civil.Date{})
	if err != nil {
		t.Fatalf("InitiateConnection: %v", err)
	}
	if result.ConsentURL != "https://aa.example/consent-1" {
		t.Errorf("consent URL = %q", result.ConsentURL)
	}
	stored := store.accounts[result.Account.ID]
	if stored == nil {
		t.Fatal("account not persisted")
	}
	if stored.ConsentStatus != domain.ConsentPending || stored.Active {
		t.Errorf("new account should be pending and inactive: %+v", stored)
	}
}

func TestDisconnectDeactivatesAllConsentAccounts(t *testing.T) {
	store := newMockStore()
	activeAccount(store, "acc-1", "consent-1", "XXXXXXXX1234")
	activeAccount(store, "acc-2", "consent-1", "XXXXXXXX9876")
	api := &mockAPI{}
	svc := newTestService(store, api)

	if err := svc.Disconnect(context.Background(), "acc-1"); err != nil {
		t.Fatalf("Disconnect: %v", err)
	}
	if len(api.revoked) != 1 || api.revoked[0] != "consent-1" {
		t.Errorf("revoked = %v", api.revoked)
	}
	for id, a := range store.accounts {
		if a.ConsentStatus != domain.ConsentRevoked || a.Active {
			t.Errorf("account %s not deactivated: %+v", id, a)
		}
	}
}
