package banksync

import (
	"context"
	"fmt"
	"time"

	"github.com/agnivade/levenshtein"
	"github.com/google/uuid"

	"github.com/ametsa/bachat-core/internal/aggregator"
	"github.com/ametsa/bachat-core/internal/domain"
)

// maskedMatchDistance tolerates small rendering differences between the
// mask we stored at link time and the mask the provider reports in session
// data (extra X, dropped separator). Anything further apart is a different
// account.
const maskedMatchDistance = 2

// SyncCounts aggregates the outcome of one session's ingestion.
type SyncCounts struct {
	Fetched int
	Saved   int
	Skipped int
}

// processSessionData reconciles every account in a fulfilled session
// payload against the local accounts sharing the trigger's consent, then
// ingests their transactions through the dedupe gate.
func (s *Service) processSessionData(ctx context.Context, data *aggregator.FIDataResponse, trigger *domain.BankAccount) (SyncCounts, error) {
	linked, err := s.store.ListAccountsByConsentID(ctx, trigger.ConsentID)
	if err != nil {
		return SyncCounts{}, fmt.Errorf("processSessionData: list linked accounts: %w", err)
	}

	var counts SyncCounts
	for _, fip := range data.FIPs {
		for _, reported := range fip.Accounts {
			local := matchAccount(linked, trigger, reported.MaskedAccNumber)
			if local == nil {
				local = s.provisionAccount(trigger, fip.FIPID, reported)
				if err := s.store.InsertAccount(ctx, local); err != nil {
					return counts, fmt.Errorf("processSessionData: provision account: %w", err)
				}
				linked = append(linked, local)
				s.log.Info().
					Str("account_id", local.ID).
					Str("masked", local.MaskedNumber).
					Msg("provisioned account reported under consent")
			} else {
				updateFromReported(local, reported)
				if err := s.store.UpdateAccount(ctx, local); err != nil {
					return counts, fmt.Errorf("processSessionData: update account: %w", err)
				}
			}

			if reported.Data == nil {
				continue
			}
			info := reported.Data.Account

			if holders := mapHolders(info.Profile, local.ID); len(holders) > 0 {
				if err := s.store.ReplaceHolders(ctx, local.ID, holders); err != nil {
					return counts, fmt.Errorf("processSessionData: replace holders: %w", err)
				}
			}

			if info.Transactions == nil {
				continue
			}
			c, err := s.ingestTransactions(ctx, info.Transactions.Transaction, local)
			counts.Fetched += c.Fetched
			counts.Saved += c.Saved
			counts.Skipped += c.Skipped
			if err != nil {
				return counts, err
			}
		}
	}
	return counts, nil
}

// ingestTransactions maps, categorizes and persists provider transactions.
// Duplicates are counted as skipped, never re-inserted.
func (s *Service) ingestTransactions(ctx context.Context, aaTxns []aggregator.Transaction, account *domain.BankAccount) (SyncCounts, error) {
	var counts SyncCounts
	for _, aaTx := range aaTxns {
		counts.Fetched++

		tx, err := mapTransaction(aaTx, account)
		if err != nil {
			s.log.Warn().Err(err).Str("txn_id", aaTx.TxnID).Msg("skipping unmappable transaction")
			counts.Skipped++
			continue
		}

		dup, err := s.isDuplicate(ctx, tx)
		if err != nil {
			return counts, fmt.Errorf("ingestTransactions: dedupe check: %w", err)
		}
		if dup {
			counts.Skipped++
			continue
		}

		if s.categorizer != nil {
			if result, err := s.categorizer.Categorize(ctx, tx); err == nil {
				tx.Category = result.Category
				tx.Subcategory = result.SubCategory
			}
		}
		if err := s.store.InsertTransaction(ctx, tx); err != nil {
			return counts, fmt.Errorf("ingestTransactions: insert: %w", err)
		}
		counts.Saved++
	}
	return counts, nil
}

// isDuplicate checks the dedupe key first; the account+txnId lookup catches
// rows ingested before the key format stabilized.
func (s *Service) isDuplicate(ctx context.Context, tx *domain.Transaction) (bool, error) {
	if exists, err := s.store.ExistsByDedupeKey(ctx, tx.DedupeKey); err != nil || exists {
		return exists, err
	}
	if tx.BankTxnID == "" {
		return false, nil
	}
	return s.store.ExistsByAccountAndBankTxnID(ctx, tx.BankAccountID, tx.BankTxnID)
}

// matchAccount resolves a provider-reported masked number to a local
// account. The ladder: exact normalized match, small-edit-distance match,
// last-four match among linked accounts, then adopting the trigger account
// when it has no mask yet or shares the last four digits. A nil return
// means the account is new under this consent.
func matchAccount(linked []*domain.BankAccount, trigger *domain.BankAccount, masked string) *domain.BankAccount {
	norm := domain.NormalizeMasked(masked)

	for _, a := range linked {
		if a.MaskedNumber != "" && domain.NormalizeMasked(a.MaskedNumber) == norm {
			return a
		}
	}
	for _, a := range linked {
		if a.MaskedNumber == "" {
			continue
		}
		if levenshtein.ComputeDistance(domain.NormalizeMasked(a.MaskedNumber), norm) <= maskedMatchDistance {
			return a
		}
	}
	lastFour := domain.LastFourDigits(masked)
	if lastFour != "" {
		for _, a := range linked {
			if a.MaskedNumber != "" && a.LastFour() == lastFour {
				return a
			}
		}
	}
	if trigger.MaskedNumber == "" {
		return trigger
	}
	if lastFour != "" && trigger.LastFour() == lastFour {
		return trigger
	}
	return nil
}

// provisionAccount creates a local record for an account the provider
// reports under a consent we track but have never matched before.
func (s *Service) provisionAccount(trigger *domain.BankAccount, fipID string, reported aggregator.Account) *domain.BankAccount {
	now := time.Now().UTC()
	acc := &domain.BankAccount{
		ID:            uuid.NewString(),
		ProfileID:     trigger.ProfileID,
		BankName:      fipID,
		MaskedNumber:  reported.MaskedAccNumber,
		LinkRefNumber: reported.LinkRefNumber,
		ConsentID:     trigger.ConsentID,
		ConsentStatus: trigger.ConsentStatus,
		Active:        true,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	updateFromReported(acc, reported)
	return acc
}

// updateFromReported copies the provider's current view of an account onto
// the local record.
func updateFromReported(local *domain.BankAccount, reported aggregator.Account) {
	if reported.MaskedAccNumber != "" && local.MaskedNumber == "" {
		local.MaskedNumber = reported.MaskedAccNumber
	}
	if reported.LinkRefNumber != "" {
		local.LinkRefNumber = reported.LinkRefNumber
	}
	if reported.Data == nil {
		return
	}
	info := reported.Data.Account
	if info.Type != "" {
		local.AccountType = info.Type
	}
	if info.Branch != "" {
		local.Branch = info.Branch
	}
	if info.IFSC != "" {
		local.IFSC = info.IFSC
	}
	if info.Currency != "" {
		local.Currency = info.Currency
	}
	if info.CurrentBalance != "" {
		if p, err := domain.ParsePaisa(info.CurrentBalance); err == nil {
			local.BalancePaisa = p
			local.BalanceAsOf = time.Now().UTC()
		}
	}
	local.UpdatedAt = time.Now().UTC()
}
