// Package aggregator implements the Account Aggregator FIU client: consent
// creation, data sessions and session-data retrieval, with retry and
// polling semantics matching the provider's delivery model.
package aggregator

import "fmt"

// Consent and session statuses as the provider reports them.
const (
	ConsentStatusPending  = "PENDING"
	ConsentStatusActive   = "ACTIVE"
	ConsentStatusPaused   = "PAUSED"
	ConsentStatusRevoked  = "REVOKED"
	ConsentStatusRejected = "REJECTED"
	ConsentStatusExpired  = "EXPIRED"

	SessionStatusPending   = "PENDING"
	SessionStatusCompleted = "COMPLETED"
	SessionStatusPartial   = "PARTIAL"
	SessionStatusFailed    = "FAILED"
	SessionStatusExpired   = "EXPIRED"
)

// Webhook notification types.
const (
	NotificationConsentStatus = "CONSENT_STATUS_UPDATE"
	NotificationSessionStatus = "SESSION_STATUS_UPDATE"
)

// APIError is a non-retryable provider rejection, carrying the status code
// so callers can map it to their own error taxonomy.
type APIError struct {
	Op         string
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("aggregator: %s: provider returned %d: %s", e.Op, e.StatusCode, e.Body)
}

// DateRange bounds a consent or data session, in the provider's millisecond
// ISO timestamp format.
type DateRange struct {
	From string `json:"from"`
	To   string `json:"to"`
}

// ConsentDuration is how long a consent stays valid.
type ConsentDuration struct {
	Unit  string `json:"unit"`
	Value string `json:"value"`
}

type ConsentRequest struct {
	VUA             string          `json:"vua"`
	ConsentDuration ConsentDuration `json:"consentDuration"`
	DataRange       DateRange       `json:"dataRange"`
	Context         []ConsentTag    `json:"context"`
}

type ConsentTag struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// ConsentResponse covers both creation and status lookups; Detail is only
// populated on expanded status reads.
type ConsentResponse struct {
	ID     string         `json:"id"`
	Status string         `json:"status"`
	URL    string         `json:"url"`
	Detail *ConsentDetail `json:"detail,omitempty"`
}

type ConsentDetail struct {
	VUA       string     `json:"vua"`
	DataRange *DateRange `json:"dataRange,omitempty"`
	Accounts  []Account  `json:"accounts,omitempty"`
}

type DataSessionRequest struct {
	ConsentID string    `json:"consentId"`
	DataRange DateRange `json:"dataRange"`
	Format    string    `json:"format"`
}

type DataSessionResponse struct {
	ID        string    `json:"id"`
	Status    string    `json:"status"`
	DataRange DateRange `json:"dataRange"`
}

// FIDataResponse is the fulfilled (or still pending) payload of a data
// session, grouped by information provider.
type FIDataResponse struct {
	ID     string    `json:"id"`
	Status string    `json:"status"`
	Format string    `json:"format"`
	FIPs   []FIPData `json:"fips"`
}

type FIPData struct {
	FIPID    string    `json:"fipID"`
	Accounts []Account `json:"accounts"`
}

// Account is one linked account as reported by the provider. Data is only
// present in fulfilled session payloads.
type Account struct {
	FipID           string          `json:"fipId,omitempty"`
	MaskedAccNumber string          `json:"maskedAccNumber"`
	LinkRefNumber   string          `json:"linkRefNumber"`
	FIType          string          `json:"FIType"`
	FIStatus        string          `json:"fiStatus,omitempty"`
	Data            *AccountPayload `json:"data,omitempty"`
}

type AccountPayload struct {
	Account AccountInfo `json:"account"`
}

type AccountInfo struct {
	Type           string             `json:"type"`
	Branch         string             `json:"branch"`
	IFSC           string             `json:"ifsc"`
	CurrentBalance string             `json:"currentBalance"`
	Currency       string             `json:"currency"`
	Profile        *Profile           `json:"profile,omitempty"`
	Summary        *AccountSummary    `json:"summary,omitempty"`
	Transactions   *TransactionsBlock `json:"transactions,omitempty"`
}

type Profile struct {
	Holders HoldersBlock `json:"holders"`
}

type HoldersBlock struct {
	Type   string   `json:"type"`
	Holder []Holder `json:"holder"`
}

type Holder struct {
	Name           string `json:"name"`
	DOB            string `json:"dob"`
	Mobile         string `json:"mobile"`
	Email          string `json:"email"`
	PAN            string `json:"pan"`
	Address        string `json:"address"`
	Nominee        string `json:"nominee"`
	CKYCCompliance string `json:"ckycCompliance"`
}

type AccountSummary struct {
	CurrentBalance string `json:"currentBalance"`
	Currency       string `json:"currency"`
	Branch         string `json:"branch"`
	IFSC           string `json:"ifscCode"`
	Type           string `json:"type"`
	Status         string `json:"status"`
}

type TransactionsBlock struct {
	StartDate   string        `json:"startDate"`
	EndDate     string        `json:"endDate"`
	Transaction []Transaction `json:"transaction"`
}

// Transaction is one provider-reported transaction. Amounts stay strings
// until the sync layer converts them to paisa.
type Transaction struct {
	TxnID                string        `json:"txnId"`
	Type                 string        `json:"type"`
	Mode                 string        `json:"mode"`
	Amount               string        `json:"amount"`
	CurrentBalance       string        `json:"currentBalance"`
	TransactionTimestamp string        `json:"transactionTimestamp"`
	ValueDate            string        `json:"valueDate"`
	Narration            string        `json:"narration"`
	Reference            string        `json:"reference"`
	Counterparty         *Counterparty `json:"counterparty,omitempty"`
}

type Counterparty struct {
	Name          string `json:"name"`
	AccountNumber string `json:"accountNumber"`
	IFSC          string `json:"ifsc"`
}

// WebhookPayload is the provider's push notification for consent and
// session status changes.
type WebhookPayload struct {
	Type      string    `json:"type"`
	ConsentID string    `json:"consentId"`
	SessionID string    `json:"dataSessionId"`
	Status    string    `json:"status"`
	Accounts  []Account `json:"accounts,omitempty"`
}
