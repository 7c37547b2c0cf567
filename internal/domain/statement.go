package domain

import "time"

// StatementStatus is the processing state of an uploaded statement.
type StatementStatus string

const (
	StatementUploaded StatementStatus = "UPLOADED"
	StatementParsing  StatementStatus = "PARSING"
	StatementParsed   StatementStatus = "PARSED"
	StatementFailed   StatementStatus = "FAILED"
)

// Statement is the record of one uploaded bank statement document.
type Statement struct {
	ID            string
	ProfileID     string
	BankAccountID string

	Filename string
	GCSPath  string
	BankCode string

	Status       StatementStatus
	TxnsParsed   int
	TxnsSaved    int
	TxnsSkipped  int
	ErrorMessage string

	UploadedAt time.Time
	ParsedAt   time.Time
}
