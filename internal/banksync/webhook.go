package banksync

import (
	"context"
	"fmt"

	"github.com/ametsa/bachat-core/internal/aggregator"
)

// HandleNotification processes one provider push. Notifications are
// at-least-once: the provider redelivers, and the polling path can race
// the webhook on the same session. Consent updates are naturally
// idempotent and session updates rely on the dedupe gate, so redelivery
// only costs work, never duplicate rows.
func (s *Service) HandleNotification(ctx context.Context, payload *aggregator.WebhookPayload) error {
	switch payload.Type {
	case aggregator.NotificationConsentStatus:
		return s.handleConsentNotification(ctx, payload)
	case aggregator.NotificationSessionStatus:
		return s.handleSessionNotification(ctx, payload)
	default:
		s.log.Warn().Str("type", payload.Type).Msg("ignoring unknown notification type")
		return nil
	}
}

func (s *Service) handleConsentNotification(ctx context.Context, payload *aggregator.WebhookPayload) error {
	accounts, err := s.store.ListAccountsByConsentID(ctx, payload.ConsentID)
	if err != nil {
		return fmt.Errorf("handleConsentNotification: %w", err)
	}
	if len(accounts) == 0 {
		s.log.Warn().
			Str("consent_id", payload.ConsentID).
			Msg("consent notification for unknown consent")
		return nil
	}
	if err := s.applyConsentStatus(ctx, payload.ConsentID, payload.Status, payload.Accounts); err != nil {
		return fmt.Errorf("handleConsentNotification: %w", err)
	}
	s.log.Info().
		Str("consent_id", payload.ConsentID).
		Str("status", payload.Status).
		Msg("consent status applied")
	return nil
}

func (s *Service) handleSessionNotification(ctx context.Context, payload *aggregator.WebhookPayload) error {
	switch payload.Status {
	case aggregator.SessionStatusCompleted, aggregator.SessionStatusPartial:
		if _, err := s.SyncFromSession(ctx, payload.ConsentID, payload.SessionID); err != nil {
			return fmt.Errorf("handleSessionNotification: %w", err)
		}
		return nil
	case aggregator.SessionStatusFailed, aggregator.SessionStatusExpired:
		s.log.Warn().
			Str("session_id", payload.SessionID).
			Str("status", payload.Status).
			Msg("session closed without data")
		return nil
	default:
		// PENDING and friends: nothing to ingest yet.
		return nil
	}
}
