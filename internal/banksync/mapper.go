package banksync

import (
	"fmt"
	"strings"
	"time"

	"cloud.google.com/go/civil"
	"github.com/google/uuid"

	"github.com/ametsa/bachat-core/internal/aggregator"
	"github.com/ametsa/bachat-core/internal/domain"
)

// timestampLayouts covers the timestamp renderings providers actually send.
var timestampLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05.000Z",
	"2006-01-02T15:04:05",
}

// mapTransaction converts one provider transaction into the domain shape.
// The dedupe key is built from the raw provider strings, never from parsed
// values, so both delivery paths of the same session agree on it.
func mapTransaction(aaTx aggregator.Transaction, account *domain.BankAccount) (*domain.Transaction, error) {
	amountPaisa, err := domain.ParsePaisa(aaTx.Amount)
	if err != nil {
		return nil, fmt.Errorf("mapTransaction: txn %s: %w", aaTx.TxnID, err)
	}

	direction := domain.DirectionCredit
	if strings.EqualFold(aaTx.Type, "DEBIT") {
		direction = domain.DirectionDebit
	}

	var balancePaisa int64
	if aaTx.CurrentBalance != "" {
		if p, err := domain.ParsePaisa(aaTx.CurrentBalance); err == nil {
			balancePaisa = p
		}
	}

	tx := &domain.Transaction{
		ID:            uuid.NewString(),
		BankAccountID: account.ID,
		ProfileID:     account.ProfileID,
		SourceType:    domain.SourceAggregator,
		BankTxnID:     aaTx.TxnID,
		AmountPaisa:   amountPaisa,
		Direction:     direction,
		BalancePaisa:  balancePaisa,
		Currency:      "INR",
		Description:   aaTx.Narration,
		UPIRef:        aaTx.Reference,
		DedupeKey:     domain.DedupeKey(account.ID, aaTx.TxnID, aaTx.TransactionTimestamp, amountPaisa),
		RawText:       aaTx.Narration,
		CreatedAt:     time.Now().UTC(),
	}

	if ts, ok := parseTimestamp(aaTx.TransactionTimestamp); ok {
		tx.TxnTimestamp = ts
		tx.TxnDate = civil.DateOf(ts)
	}
	if aaTx.ValueDate != "" {
		if d, err := civil.ParseDate(aaTx.ValueDate); err == nil {
			tx.ValueDate = d
		}
	}

	tx.TxnType = strings.ToUpper(aaTx.Mode)
	if tx.TxnType == "" || tx.TxnType == "OTHERS" {
		tx.TxnType = domain.DetectTxnType(aaTx.Narration)
	}
	tx.Merchant = domain.ExtractMerchant(aaTx.Narration, tx.TxnType)

	if cp := aaTx.Counterparty; cp != nil {
		tx.CounterpartyName = cp.Name
		tx.CounterpartyAccount = cp.AccountNumber
		tx.CounterpartyIFSC = cp.IFSC
	}
	return tx, nil
}

// mapHolders converts a provider profile block into holder records.
func mapHolders(profile *aggregator.Profile, accountID string) []*domain.AccountHolder {
	if profile == nil {
		return nil
	}
	holders := make([]*domain.AccountHolder, 0, len(profile.Holders.Holder))
	for _, h := range profile.Holders.Holder {
		holder := &domain.AccountHolder{
			ID:            uuid.NewString(),
			BankAccountID: accountID,
			Name:          h.Name,
			Mobile:        h.Mobile,
			Email:         h.Email,
			PAN:           h.PAN,
			Address:       h.Address,
			Nominee:       h.Nominee,
			CKYCCompliant: strings.EqualFold(h.CKYCCompliance, "true"),
			CreatedAt:     time.Now().UTC(),
		}
		if h.DOB != "" {
			if d, err := civil.ParseDate(h.DOB); err == nil {
				holder.DOB = d
			}
		}
		holders = append(holders, holder)
	}
	return holders
}

func parseTimestamp(raw string) (time.Time, bool) {
	for _, layout := range timestampLayouts {
		if ts, err := time.Parse(layout, raw); err == nil {
			return ts, true
		}
	}
	return time.Time{}, false
}
