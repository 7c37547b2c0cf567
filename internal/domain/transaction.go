package domain

import (
	"fmt"
	"strings"
	"time"

	"cloud.google.com/go/civil"
)

// Direction is the side of a transaction from the account holder's view.
type Direction string

const (
	DirectionDebit  Direction = "DEBIT"
	DirectionCredit Direction = "CREDIT"
)

// SourceType records which ingestion path produced a transaction.
type SourceType string

const (
	SourcePDFStatement SourceType = "PDF_STATEMENT"
	SourceAggregator   SourceType = "ACCOUNT_AGGREGATOR"
)

// Transaction channel types, derived from the narration.
const (
	TxnTypeUPI      = "UPI"
	TxnTypeIMPS     = "IMPS"
	TxnTypeNEFT     = "NEFT"
	TxnTypeRTGS     = "RTGS"
	TxnTypePOS      = "POS"
	TxnTypeATM      = "ATM"
	TxnTypeSalary   = "SALARY"
	TxnTypeInterest = "INTEREST"
	TxnTypeCharge   = "CHARGE"
	TxnTypeRefund   = "REFUND"
	TxnTypeOther    = "OTHER"
)

// Transaction is one normalized ledger entry. Both ingestion paths (statement
// parsing and aggregator sync) produce this shape; all money fields are in
// paisa so equality checks never touch floats.
type Transaction struct {
	ID            string
	BankAccountID string
	ProfileID     string
	StatementID   string // set only for SourcePDFStatement
	SourceType    SourceType

	BankTxnID    string // provider txnId, empty for statement rows
	TxnDate      civil.Date
	ValueDate    civil.Date
	TxnTimestamp time.Time

	AmountPaisa  int64
	Direction    Direction
	BalancePaisa int64 // closing balance after this entry, 0 when unknown
	Currency     string

	TxnType     string
	Description string
	Merchant    string
	UPIRef      string

	CounterpartyName    string
	CounterpartyAccount string
	CounterpartyIFSC    string

	Category    string
	Subcategory string

	DedupeKey string
	RawText   string
	CreatedAt time.Time
}

// SignedPaisa returns the amount with debits negative and credits positive.
func (t *Transaction) SignedPaisa() int64 {
	if t.Direction == DirectionDebit {
		return -t.AmountPaisa
	}
	return t.AmountPaisa
}

// DedupeKey builds the idempotency key for a transaction. The raw field
// values are joined verbatim so a re-run over the same source data always
// reproduces the same key.
func DedupeKey(accountID, bankTxnID, timestamp string, amountPaisa int64) string {
	return strings.Join([]string{
		accountID,
		bankTxnID,
		timestamp,
		fmt.Sprintf("%d", amountPaisa),
	}, "_")
}

// DetectTxnType classifies a narration into a transaction channel type.
func DetectTxnType(narration string) string {
	n := strings.ToLower(narration)
	switch {
	// Reversals name the channel they reverse ("REV-UPI"), so they must win
	// over the channel checks.
	case strings.Contains(n, "refund"), strings.Contains(n, "reversal"), strings.Contains(n, "rev-"):
		return TxnTypeRefund
	case strings.Contains(n, "upi"):
		return TxnTypeUPI
	case strings.Contains(n, "imps"):
		return TxnTypeIMPS
	case strings.Contains(n, "neft"):
		return TxnTypeNEFT
	case strings.Contains(n, "rtgs"):
		return TxnTypeRTGS
	case strings.Contains(n, "pos "), strings.HasPrefix(n, "pos"):
		return TxnTypePOS
	case strings.Contains(n, "atm"), strings.Contains(n, "atw"), strings.Contains(n, "nwd"):
		return TxnTypeATM
	case strings.Contains(n, "salary"):
		return TxnTypeSalary
	case strings.Contains(n, "interest"), strings.Contains(n, "int.pd"):
		return TxnTypeInterest
	case strings.Contains(n, "charge"), strings.Contains(n, "chrg"), strings.Contains(n, "fee"):
		return TxnTypeCharge
	default:
		return TxnTypeOther
	}
}

// ExtractMerchant pulls a rough merchant label out of a narration: the last
// three whitespace tokens, with ATM withdrawals collapsed to a fixed label.
func ExtractMerchant(narration, txnType string) string {
	if txnType == TxnTypeATM {
		return "ATM CASH"
	}
	fields := strings.Fields(narration)
	if len(fields) == 0 {
		return ""
	}
	if len(fields) > 3 {
		fields = fields[len(fields)-3:]
	}
	return strings.Join(fields, " ")
}
