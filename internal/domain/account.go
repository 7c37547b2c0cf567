package domain

import (
	"strings"
	"time"

	"cloud.google.com/go/civil"
)

// ConsentStatus tracks the aggregator consent lifecycle for an account.
type ConsentStatus string

const (
	ConsentPending  ConsentStatus = "PENDING"
	ConsentActive   ConsentStatus = "ACTIVE"
	ConsentPaused   ConsentStatus = "PAUSED"
	ConsentRevoked  ConsentStatus = "REVOKED"
	ConsentRejected ConsentStatus = "REJECTED"
	ConsentExpired  ConsentStatus = "EXPIRED"
)

// BankAccount is a linked bank account, either created explicitly when a
// connection is initiated or provisioned lazily when session data reports an
// account we have not seen before.
type BankAccount struct {
	ID        string
	ProfileID string

	BankName      string
	MaskedNumber  string
	AccountType   string
	Branch        string
	IFSC          string
	Currency      string
	LinkRefNumber string

	ConsentID     string
	ConsentStatus ConsentStatus
	ConsentURL    string

	BalancePaisa int64
	BalanceAsOf  time.Time

	Active        bool
	LastSyncedAt  time.Time
	LastSyncError string // most recent sync failure, cleared on success
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// LastFour returns the trailing digits of the masked account number, used
// for tolerant account matching when providers mask differently.
func (a *BankAccount) LastFour() string {
	digits := make([]rune, 0, len(a.MaskedNumber))
	for _, r := range a.MaskedNumber {
		if r >= '0' && r <= '9' {
			digits = append(digits, r)
		}
	}
	if len(digits) < 4 {
		return string(digits)
	}
	return string(digits[len(digits)-4:])
}

// AccountHolder is one holder attached to an account's profile block.
// Holders are replaced wholesale whenever a sync delivers fresh profile data.
type AccountHolder struct {
	ID            string
	BankAccountID string
	Name          string
	DOB           civil.Date
	Mobile        string
	Email         string
	PAN           string
	Address       string
	Nominee       string
	CKYCCompliant bool
	CreatedAt     time.Time
}

// LastFourDigits extracts the trailing digits from any masked number string.
func LastFourDigits(masked string) string {
	a := BankAccount{MaskedNumber: masked}
	return a.LastFour()
}

// NormalizeMasked lowercases a masked number and strips spaces so two
// provider renderings of the same mask compare equal.
func NormalizeMasked(masked string) string {
	return strings.ToLower(strings.ReplaceAll(masked, " ", ""))
}
