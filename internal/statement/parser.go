package statement

import (
	"strings"

	"github.com/ametsa/bachat-core/internal/domain"
)

// ParseResult is the outcome of parsing one statement document.
type ParseResult struct {
	BankCode     string
	Transactions []domain.Transaction
}

// SplitPages breaks extracted statement text into pages on form feeds. Text
// without form feeds is treated as a single page.
func SplitPages(text string) []string {
	pages := strings.Split(text, "\f")
	out := pages[:0]
	for _, p := range pages {
		if strings.TrimSpace(p) != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return []string{text}
	}
	return out
}

// Parse detects the issuing bank from the leading pages, picks the matching
// parser config and folds it over every page. A positive opening-balance
// hint seeds the running balance; otherwise the parser looks for an
// opening-balance line itself.
func (r *Registry) Parse(pages []string, openingHintPaisa int64) ParseResult {
	head := pages
	if len(head) > 2 {
		head = head[:2]
	}
	code := DetectBank(strings.Join(head, "\n"))
	return r.ParseAs(code, pages, openingHintPaisa)
}

// ParseAs parses with a caller-chosen bank code, skipping detection. Unknown
// codes fall back to the generic config.
func (r *Registry) ParseAs(code string, pages []string, openingHintPaisa int64) ParseResult {
	cfg := r.Get(code)

	st := FoldState{}
	if openingHintPaisa > 0 {
		st = FoldState{BalancePaisa: openingHintPaisa, Known: true}
	}

	result := ParseResult{BankCode: code}
	for _, page := range pages {
		txns, next := cfg.ParsePage(page, st)
		st = next
		result.Transactions = append(result.Transactions, txns...)
	}
	return result
}
