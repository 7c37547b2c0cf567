package banksync

import (
	"testing"

	"github.com/ametsa/bachat-core/internal/domain"
)

func acct(id, masked string) *domain.BankAccount {
	return &domain.BankAccount{ID: id, ConsentID: "consent-1", MaskedNumber: masked}
}

func TestMatchAccountLadder(t *testing.T) {
	tests := []struct {
		name    string
		linked  []*domain.BankAccount
		trigger *domain.BankAccount
		masked  string
		wantID  string // "" means no match
	}{
		{
			name:    "exact masked match",
			linked:  []*domain.BankAccount{acct("a", "XXXXXXXX1234"), acct("b", "XXXXXXXX9876")},
			trigger: acct("a", "XXXXXXXX1234"),
			masked:  "XXXXXXXX9876",
			wantID:  "b",
		},
		{
			name:    "exact match ignores spacing and case",
			linked:  []*domain.BankAccount{acct("a", "xxxx xxxx 1234")},
			trigger: acct("a", "xxxx xxxx 1234"),
			masked:  "XXXXXXXX1234",
			wantID:  "a",
		},
		{
			name:    "near match within edit distance",
			linked:  []*domain.BankAccount{acct("a", "XXXXXXX1234")}, // one X short
			trigger: acct("a", "XXXXXXX1234"),
			masked:  "XXXXXXXX1234",
			wantID:  "a",
		},
		{
			name:    "last four digits",
			linked:  []*domain.BankAccount{acct("a", "NNNNNN441234")},
			trigger: acct("a", "NNNNNN441234"),
			masked:  "********1234",
			wantID:  "a",
		},
		{
			name:    "trigger without mask adopts the report",
			linked:  []*domain.BankAccount{acct("t", "")},
			trigger: acct("t", ""),
			masked:  "XXXXXXXX5555",
			wantID:  "t",
		},
		{
			name:    "no match means new account",
			linked:  []*domain.BankAccount{acct("a", "XXXXXXXX1234")},
			trigger: acct("a", "XXXXXXXX1234"),
			masked:  "YYYYYYYY9876",
			wantID:  "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := matchAccount(tt.linked, tt.trigger, tt.masked)
			switch {
			case tt.wantID == "" && got != nil:
				t.Errorf("matched %q, want no match", got.ID)
			case tt.wantID != "" && got == nil:
				t.Errorf("no match, want %q", tt.wantID)
			case tt.wantID != "" && got.ID != tt.wantID:
				t.Errorf("matched %q, want %q", got.ID, tt.wantID)
			}
		})
	}
}

func TestMapTransactionDedupeKeyUsesRawStrings(t *testing.T) {
	account := &domain.BankAccount{ID: "acc-1", ProfileID: "profile-1"}
	aaTx := aaTxn("T1", "1,234.56", "DEBIT", "UPI/DR/SWIGGY")

	tx, err := mapTransaction(aaTx, account)
	if err != nil {
		t.Fatalf("mapTransaction: %v", err)
	}
	want := "acc-1_T1_2024-03-01T10:15:00.000Z_123456"
	if tx.DedupeKey != want {
		t.Errorf("dedupe key = %q, want %q", tx.DedupeKey, want)
	}
	if tx.AmountPaisa != 123456 {
		t.Errorf("amount = %d, want 123456", tx.AmountPaisa)
	}
	if tx.Direction != domain.DirectionDebit {
		t.Errorf("direction = %s, want DEBIT", tx.Direction)
	}
	if tx.TxnDate.String() != "2024-03-01" {
		t.Errorf("txn date = %s", tx.TxnDate)
	}
	if tx.SourceType != domain.SourceAggregator {
		t.Errorf("source = %s", tx.SourceType)
	}
}

func TestMapTransactionRejectsBadAmount(t *testing.T) {
	account := &domain.BankAccount{ID: "acc-1"}
	aaTx := aaTxn("T1", "not-money", "DEBIT", "UPI/DR")
	if _, err := mapTransaction(aaTx, account); err == nil {
		t.Fatal("expected error for unparseable amount")
	}
}
