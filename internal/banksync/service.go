// Package banksync orchestrates account linking and transaction sync over
// the aggregator network: consent lifecycle, data sessions, account
// reconciliation and idempotent ingestion, with an audit record per sync
// attempt.
package banksync

import (
	"context"
	"fmt"
	"sync"
	"time"

	"cloud.google.com/go/civil"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/ametsa/bachat-core/internal/aggregator"
	"github.com/ametsa/bachat-core/internal/categorize"
	"github.com/ametsa/bachat-core/internal/domain"
)

// Config tunes the sync service.
type Config struct {
	// DataFetchMonths is how far back consents and data sessions reach.
	DataFetchMonths int
}

// Service drives the aggregator sync flows.
type Service struct {
	api         AggregatorAPI
	store       Store
	categorizer categorize.Categorizer
	cfg         Config
	log         zerolog.Logger

	// Syncs for one account must not interleave: queue workers and the
	// webhook path can otherwise race on the same account record.
	locksMu      sync.Mutex
	accountLocks map[string]*sync.Mutex

	now func() time.Time
}

// New builds the sync service. The categorizer may be nil; transactions are
// then stored uncategorized.
func New(api AggregatorAPI, store Store, categorizer categorize.Categorizer, cfg Config, log zerolog.Logger) *Service {
	if cfg.DataFetchMonths <= 0 {
		cfg.DataFetchMonths = 6
	}
	return &Service{
		api:          api,
		store:        store,
		categorizer:  categorizer,
		cfg:          cfg,
		log:          log.With().Str("component", "banksync").Logger(),
		accountLocks: make(map[string]*sync.Mutex),
		now:          time.Now,
	}
}

// lockAccount serializes sync work per account and returns the unlock.
func (s *Service) lockAccount(accountID string) func() {
	s.locksMu.Lock()
	l, ok := s.accountLocks[accountID]
	if !ok {
		l = &sync.Mutex{}
		s.accountLocks[accountID] = l
	}
	s.locksMu.Unlock()
	l.Lock()
	return l.Unlock
}

// ConnectionResult is what a new connection hands back to the caller: the
// provisional account and the URL where the holder approves the consent.
type ConnectionResult struct {
	Account    *domain.BankAccount
	ConsentURL string
}

// InitiateConnection creates a consent for the holder's mobile number and a
// provisional local account tied to it. The account stays inactive until
// the consent is approved. Zero dates default to the configured fetch
// window; callers may narrow or widen the consent's data range explicitly.
func (s *Service) InitiateConnection(ctx context.Context, profileID, mobile string, from, to civil.Date) (*ConnectionResult, error) {
	if from.IsZero() || to.IsZero() {
		from, to = s.dataRange()
	}
	consent, err := s.api.CreateConsent(ctx, mobile, from, to)
	if err != nil {
		return nil, fmt.Errorf("InitiateConnection: %w", err)
	}

	now := s.now().UTC()
	account := &domain.BankAccount{
		ID:            uuid.NewString(),
		ProfileID:     profileID,
		ConsentID:     consent.ID,
		ConsentStatus: domain.ConsentPending,
		ConsentURL:    consent.URL,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := s.store.InsertAccount(ctx, account); err != nil {
		return nil, fmt.Errorf("InitiateConnection: save account: %w", err)
	}

	s.log.Info().
		Str("account_id", account.ID).
		Str("consent_id", consent.ID).
		Msg("connection initiated")
	return &ConnectionResult{Account: account, ConsentURL: consent.URL}, nil
}

// RefreshConsentStatus pulls the consent state from the provider and
// applies it to every account under the consent.
func (s *Service) RefreshConsentStatus(ctx context.Context, accountID string) (*domain.BankAccount, error) {
	account, err := s.store.GetAccount(ctx, accountID)
	if err != nil {
		return nil, fmt.Errorf("RefreshConsentStatus: %w", err)
	}
	consent, err := s.api.ConsentStatus(ctx, account.ConsentID, true)
	if err != nil {
		return nil, fmt.Errorf("RefreshConsentStatus: %w", err)
	}
	var reported []aggregator.Account
	if consent.Detail != nil {
		reported = consent.Detail.Accounts
	}
	if err := s.applyConsentStatus(ctx, account.ConsentID, consent.Status, reported); err != nil {
		return nil, fmt.Errorf("RefreshConsentStatus: %w", err)
	}
	return s.store.GetAccount(ctx, accountID)
}

// SyncAccount runs one full sync for an account: open a data session, wait
// for fulfillment, reconcile and ingest. Every call appends exactly one
// sync history record, whatever the outcome.
func (s *Service) SyncAccount(ctx context.Context, accountID, triggerType string) (*domain.SyncHistory, error) {
	defer s.lockAccount(accountID)()

	account, err := s.store.GetAccount(ctx, accountID)
	if err != nil {
		return nil, fmt.Errorf("SyncAccount: %w", err)
	}
	if account.ConsentStatus != domain.ConsentActive {
		if account, err = s.RefreshConsentStatus(ctx, accountID); err != nil {
			return nil, fmt.Errorf("SyncAccount: %w", err)
		}
	}

	from, to := s.dataRange()
	record := &domain.SyncHistory{
		ID:            uuid.NewString(),
		BankAccountID: account.ID,
		ProfileID:     account.ProfileID,
		TriggerType:   triggerType,
		Status:        domain.SyncPending,
		DataFrom:      from,
		DataTo:        to,
		StartedAt:     s.now().UTC(),
	}
	if err := s.store.InsertSyncHistory(ctx, record); err != nil {
		return nil, fmt.Errorf("SyncAccount: record attempt: %w", err)
	}

	if account.ConsentStatus != domain.ConsentActive {
		return s.failSync(ctx, record, account, "CONSENT_NOT_ACTIVE",
			fmt.Sprintf("consent %s is %s", account.ConsentID, account.ConsentStatus))
	}

	record.MarkInProgress()
	if err := s.store.UpdateSyncHistory(ctx, record); err != nil {
		return nil, fmt.Errorf("SyncAccount: %w", err)
	}

	session, err := s.api.CreateDataSession(ctx, account.ConsentID, from, to)
	if err != nil {
		return s.failSync(ctx, record, account, "SESSION_CREATE_FAILED", err.Error())
	}
	record.SessionID = session.ID

	data, err := s.api.FetchSessionData(ctx, session.ID)
	if err != nil {
		return s.failSync(ctx, record, account, "SESSION_FETCH_FAILED", err.Error())
	}

	return s.finishSync(ctx, record, account, data)
}

// SyncFromSession ingests an already-fulfilled session, the path webhooks
// take. The dedupe gate makes it safe to run for a session the polling
// path already consumed.
func (s *Service) SyncFromSession(ctx context.Context, consentID, sessionID string) (*domain.SyncHistory, error) {
	account, err := s.triggerAccount(ctx, consentID)
	if err != nil {
		return nil, fmt.Errorf("SyncFromSession: %w", err)
	}
	defer s.lockAccount(account.ID)()

	from, to := s.dataRange()
	record := &domain.SyncHistory{
		ID:            uuid.NewString(),
		BankAccountID: account.ID,
		ProfileID:     account.ProfileID,
		SessionID:     sessionID,
		TriggerType:   domain.TriggerWebhook,
		Status:        domain.SyncPending,
		DataFrom:      from,
		DataTo:        to,
		StartedAt:     s.now().UTC(),
	}
	if err := s.store.InsertSyncHistory(ctx, record); err != nil {
		return nil, fmt.Errorf("SyncFromSession: record attempt: %w", err)
	}
	record.MarkInProgress()
	if err := s.store.UpdateSyncHistory(ctx, record); err != nil {
		return nil, fmt.Errorf("SyncFromSession: %w", err)
	}

	data, err := s.api.FetchSessionData(ctx, sessionID)
	if err != nil {
		return s.failSync(ctx, record, account, "SESSION_FETCH_FAILED", err.Error())
	}
	return s.finishSync(ctx, record, account, data)
}

// Disconnect revokes the consent and deactivates every account under it.
func (s *Service) Disconnect(ctx context.Context, accountID string) error {
	account, err := s.store.GetAccount(ctx, accountID)
	if err != nil {
		return fmt.Errorf("Disconnect: %w", err)
	}
	if err := s.api.RevokeConsent(ctx, account.ConsentID); err != nil {
		return fmt.Errorf("Disconnect: %w", err)
	}
	if err := s.applyConsentStatus(ctx, account.ConsentID, aggregator.ConsentStatusRevoked, nil); err != nil {
		return fmt.Errorf("Disconnect: %w", err)
	}
	s.log.Info().Str("account_id", accountID).Msg("consent revoked")
	return nil
}

// History lists recent sync attempts for an account.
func (s *Service) History(ctx context.Context, accountID string, limit int) ([]*domain.SyncHistory, error) {
	if limit <= 0 {
		limit = 20
	}
	return s.store.ListSyncHistory(ctx, accountID, limit)
}

// finishSync maps the terminal session status onto the history record,
// ingesting whatever data arrived. An exhausted poll leaves the session
// pending; the attempt is closed as PARTIAL so a later webhook or manual
// retry can finish the job.
func (s *Service) finishSync(ctx context.Context, record *domain.SyncHistory, account *domain.BankAccount, data *aggregator.FIDataResponse) (*domain.SyncHistory, error) {
	switch data.Status {
	case aggregator.SessionStatusFailed, aggregator.SessionStatusExpired:
		return s.failSync(ctx, record, account, data.Status, "provider closed session without data")
	}

	counts, err := s.processSessionData(ctx, data, account)
	if err != nil {
		if _, uerr := s.failSync(ctx, record, account, "PROCESSING_ERROR", err.Error()); uerr != nil {
			s.log.Error().Err(uerr).Msg("failed to record sync failure")
		}
		return record, fmt.Errorf("sync %s: %w", record.ID, err)
	}

	if data.Status == aggregator.SessionStatusCompleted {
		record.MarkSuccess(counts.Fetched, counts.Saved, counts.Skipped)
	} else {
		record.MarkPartial(counts.Fetched, counts.Saved, counts.Skipped)
	}
	if err := s.store.UpdateSyncHistory(ctx, record); err != nil {
		return nil, fmt.Errorf("finishSync: %w", err)
	}

	// Re-fetch before stamping: reconciliation may have rewritten the
	// account while this copy was in hand.
	account, err = s.store.GetAccount(ctx, account.ID)
	if err != nil {
		return nil, fmt.Errorf("finishSync: %w", err)
	}
	account.LastSyncedAt = s.now().UTC()
	account.LastSyncError = ""
	if err := s.store.UpdateAccount(ctx, account); err != nil {
		return nil, fmt.Errorf("finishSync: %w", err)
	}

	s.log.Info().
		Str("sync_id", record.ID).
		Str("status", string(record.Status)).
		Int("fetched", counts.Fetched).
		Int("saved", counts.Saved).
		Int("skipped", counts.Skipped).
		Msg("sync finished")
	return record, nil
}

func (s *Service) failSync(ctx context.Context, record *domain.SyncHistory, account *domain.BankAccount, code, message string) (*domain.SyncHistory, error) {
	record.MarkFailed(code, message)
	if err := s.store.UpdateSyncHistory(ctx, record); err != nil {
		return nil, fmt.Errorf("failSync: %w", err)
	}

	// Stamp the failure on the account so its current health is visible
	// without digging through history. Everything else stays untouched.
	account.LastSyncError = code + ": " + message
	account.UpdatedAt = s.now().UTC()
	if err := s.store.UpdateAccount(ctx, account); err != nil {
		s.log.Error().Err(err).Str("account_id", account.ID).Msg("failed to record sync error on account")
	}
	return record, fmt.Errorf("sync %s failed: %s: %s", record.ID, code, message)
}

// applyConsentStatus maps a provider consent status onto every local
// account sharing the consent. Repeated application of the same status is
// a no-op by construction. When the provider names the linked accounts in
// the notification, their identity fields are adopted too: the placeholder
// created at initiation has no mask until the provider reports one.
func (s *Service) applyConsentStatus(ctx context.Context, consentID, providerStatus string, reported []aggregator.Account) error {
	status := mapConsentStatus(providerStatus)
	accounts, err := s.store.ListAccountsByConsentID(ctx, consentID)
	if err != nil {
		return err
	}
	adoptReportedAccounts(accounts, reported)
	for _, account := range accounts {
		account.ConsentStatus = status
		account.Active = status == domain.ConsentActive
		account.UpdatedAt = s.now().UTC()
		if err := s.store.UpdateAccount(ctx, account); err != nil {
			return err
		}
	}
	return nil
}

// adoptReportedAccounts matches provider-reported accounts to local records
// by masked number, falling back to the unnamed placeholder, and copies
// fipId, mask, FI type and link reference onto the match.
func adoptReportedAccounts(accounts []*domain.BankAccount, reported []aggregator.Account) {
	if len(accounts) == 0 {
		return
	}
	anchor := accounts[0]
	for _, a := range accounts[1:] {
		if a.CreatedAt.Before(anchor.CreatedAt) {
			anchor = a
		}
	}
	for _, r := range reported {
		local := matchAccount(accounts, anchor, r.MaskedAccNumber)
		if local == nil {
			continue
		}
		if r.FipID != "" && local.BankName == "" {
			local.BankName = r.FipID
		}
		if r.MaskedAccNumber != "" && local.MaskedNumber == "" {
			local.MaskedNumber = r.MaskedAccNumber
		}
		if r.FIType != "" && local.AccountType == "" {
			local.AccountType = r.FIType
		}
		if r.LinkRefNumber != "" {
			local.LinkRefNumber = r.LinkRefNumber
		}
	}
}

// triggerAccount picks the account that anchors webhook-driven syncs for a
// consent: the earliest created one.
func (s *Service) triggerAccount(ctx context.Context, consentID string) (*domain.BankAccount, error) {
	accounts, err := s.store.ListAccountsByConsentID(ctx, consentID)
	if err != nil {
		return nil, err
	}
	if len(accounts) == 0 {
		return nil, fmt.Errorf("no account for consent %s", consentID)
	}
	trigger := accounts[0]
	for _, a := range accounts[1:] {
		if a.CreatedAt.Before(trigger.CreatedAt) {
			trigger = a
		}
	}
	return trigger, nil
}

func (s *Service) dataRange() (civil.Date, civil.Date) {
	today := civil.DateOf(s.now().UTC())
	return today.AddDays(-s.cfg.DataFetchMonths * 30), today
}

func mapConsentStatus(providerStatus string) domain.ConsentStatus {
	switch providerStatus {
	case aggregator.ConsentStatusActive:
		return domain.ConsentActive
	case aggregator.ConsentStatusPaused:
		return domain.ConsentPaused
	case aggregator.ConsentStatusRevoked:
		return domain.ConsentRevoked
	case aggregator.ConsentStatusRejected:
		return domain.ConsentRejected
	case aggregator.ConsentStatusExpired:
		return domain.ConsentExpired
	default:
		return domain.ConsentPending
	}
}
