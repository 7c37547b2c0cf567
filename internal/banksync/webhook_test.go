package banksync

import (
	"context"
	"testing"

	"github.com/ametsa/bachat-core/internal/aggregator"
	"github.com/ametsa/bachat-core/internal/domain"
)

func TestConsentNotificationActivatesAccounts(t *testing.T) {
	store := newMockStore()
	account := activeAccount(store, "acc-1", "consent-1", "XXXXXXXX1234")
	account.ConsentStatus = domain.ConsentPending
	account.Active = false
	svc := newTestService(store, &mockAPI{})

	payload := &aggregator.WebhookPayload{
		Type:      aggregator.NotificationConsentStatus,
		ConsentID: "consent-1",
		Status:    aggregator.ConsentStatusActive,
	}
	if err := svc.HandleNotification(context.Background(), payload); err != nil {
		t.Fatalf("HandleNotification: %v", err)
	}
	got := store.accounts["acc-1"]
	if got.ConsentStatus != domain.ConsentActive || !got.Active {
		t.Errorf("account not activated: %+v", got)
	}

	// Redelivery of the same notification must be a no-op.
	if err := svc.HandleNotification(context.Background(), payload); err != nil {
		t.Fatalf("redelivery: %v", err)
	}
	got = store.accounts["acc-1"]
	if got.ConsentStatus != domain.ConsentActive || !got.Active {
		t.Errorf("redelivery changed state: %+v", got)
	}
}

func TestConsentNotificationAdoptsReportedAccounts(t *testing.T) {
	store := newMockStore()
	// Placeholder created at initiation: no mask, no bank, no link ref yet.
	account := activeAccount(store, "acc-1", "consent-1", "")
	account.ConsentStatus = domain.ConsentPending
	account.Active = false
	svc := newTestService(store, &mockAPI{})

	err := svc.HandleNotification(context.Background(), &aggregator.WebhookPayload{
		Type:      aggregator.NotificationConsentStatus,
		ConsentID: "consent-1",
		Status:    aggregator.ConsentStatusActive,
		Accounts: []aggregator.Account{{
			FipID:           "HDFC-FIP",
			MaskedAccNumber: "XXXXXXXX1234",
			FIType:          "DEPOSIT",
			LinkRefNumber:   "link-ref-9",
		}},
	})
	if err != nil {
		t.Fatalf("HandleNotification: %v", err)
	}

	got := store.accounts["acc-1"]
	if got.ConsentStatus != domain.ConsentActive || !got.Active {
		t.Fatalf("account not activated: %+v", got)
	}
	if got.BankName != "HDFC-FIP" {
		t.Errorf("bank name = %q, want HDFC-FIP", got.BankName)
	}
	if got.MaskedNumber != "XXXXXXXX1234" {
		t.Errorf("masked number = %q, want XXXXXXXX1234", got.MaskedNumber)
	}
	if got.AccountType != "DEPOSIT" {
		t.Errorf("account type = %q, want DEPOSIT", got.AccountType)
	}
	if got.LinkRefNumber != "link-ref-9" {
		t.Errorf("link ref = %q, want link-ref-9", got.LinkRefNumber)
	}
}

func TestConsentNotificationUnknownConsentIgnored(t *testing.T) {
	svc := newTestService(newMockStore(), &mockAPI{})
	err := svc.HandleNotification(context.Background(), &aggregator.WebhookPayload{
		Type:      aggregator.NotificationConsentStatus,
		ConsentID: "consent-unknown",
		Status:    aggregator.ConsentStatusActive,
	})
	if err != nil {
		t.Fatalf("unknown consent should not error: %v", err)
	}
}

func TestSessionNotificationTriggersIngestion(t *testing.T) {
	store := newMockStore()
	activeAccount(store, "acc-1", "consent-1", "XXXXXXXX1234")
	api := &mockAPI{
		sessionData: sessionData(aggregator.SessionStatusCompleted,
			reportedAccount("XXXXXXXX1234", aaTxn("T1", "250.00", "DEBIT", "UPI/DR/SWIGGY"))),
	}
	svc := newTestService(store, api)

	payload := &aggregator.WebhookPayload{
		Type:      aggregator.NotificationSessionStatus,
		ConsentID: "consent-1",
		SessionID: "session-1",
		Status:    aggregator.SessionStatusCompleted,
	}
	if err := svc.HandleNotification(context.Background(), payload); err != nil {
		t.Fatalf("HandleNotification: %v", err)
	}
	if len(store.txns) != 1 {
		t.Fatalf("stored %d txns, want 1", len(store.txns))
	}

	// The webhook racing a poll that already ingested this session must
	// not duplicate rows.
	if err := svc.HandleNotification(context.Background(), payload); err != nil {
		t.Fatalf("redelivery: %v", err)
	}
	if len(store.txns) != 1 {
		t.Errorf("redelivery duplicated rows: %d txns", len(store.txns))
	}
	// Each delivery is still a recorded attempt.
	if len(store.history) != 2 {
		t.Errorf("history records = %d, want 2", len(store.history))
	}
	records := 0
	for _, h := range store.history {
		if h.TriggerType == domain.TriggerWebhook {
			records++
		}
	}
	if records != 2 {
		t.Errorf("webhook-triggered records = %d, want 2", records)
	}
}

func TestSessionNotificationFailedStatusIsRecordedOnly(t *testing.T) {
	store := newMockStore()
	activeAccount(store, "acc-1", "consent-1", "XXXXXXXX1234")
	svc := newTestService(store, &mockAPI{})

	err := svc.HandleNotification(context.Background(), &aggregator.WebhookPayload{
		Type:      aggregator.NotificationSessionStatus,
		ConsentID: "consent-1",
		SessionID: "session-1",
		Status:    aggregator.SessionStatusFailed,
	})
	if err != nil {
		t.Fatalf("failed session notification should not error: %v", err)
	}
	if len(store.txns) != 0 {
		t.Errorf("no txns expected, got %d", len(store.txns))
	}
}
