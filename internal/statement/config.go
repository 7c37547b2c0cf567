package statement

import (
	"regexp"
	"strings"

	"github.com/ametsa/bachat-core/internal/domain"
)

// Config describes how one bank lays its statements out. All banks share
// the same tokenizer, row grouping and inference engine; the config only
// selects which behaviors apply and which marker strings matter.
type Config struct {
	BankCode string

	// HeaderWords identify the column-header line ("Debit  Credit  Balance").
	// A page containing a line with all of these words switches row grouping
	// from date-anchored to header-anchored.
	HeaderWords []string

	// FooterMarkers truncate trailing page boilerplate; once one of these
	// appears outside a row, the rest of the page is ignored.
	FooterMarkers []string

	// NonTxnMarkers flag rows that look like ledger entries but are not
	// transactions (brought-forward balances and the like).
	NonTxnMarkers []string

	// UseBalanceDelta enables direction inference from the running balance
	// when a row carries a single amount plus a closing balance.
	UseBalanceDelta bool

	// DebitKeywords mark an ambiguous row as a debit when any of them
	// appears in the narration as a whole word.
	DebitKeywords []string

	// DefaultDirection applies when no numeric signal and no keyword
	// resolves a row. Biased toward CREDIT unless a bank's samples say
	// otherwise.
	DefaultDirection domain.Direction

	debitPattern *regexp.Regexp
}

var defaultDebitKeywords = []string{
	"atm", "atw", "nwd", "upi", "imps", "neft", "rtgs", "pos", "debit", "chq", "cheque",
}

var defaultNonTxnMarkers = []string{"balance b/f", "opening bal"}

// compile finalizes derived fields. Registry registration calls this once;
// configs are read-only afterwards.
func (c *Config) compile() {
	if len(c.DebitKeywords) == 0 {
		c.DebitKeywords = defaultDebitKeywords
	}
	if len(c.NonTxnMarkers) == 0 {
		c.NonTxnMarkers = defaultNonTxnMarkers
	}
	if c.DefaultDirection == "" {
		c.DefaultDirection = domain.DirectionCredit
	}
	escaped := make([]string, len(c.DebitKeywords))
	for i, kw := range c.DebitKeywords {
		escaped[i] = regexp.QuoteMeta(strings.ToLower(kw))
	}
	c.debitPattern = regexp.MustCompile(`\b(` + strings.Join(escaped, "|") + `)\b`)
}

// isHeaderLine reports whether a line is the column-header row.
func (c *Config) isHeaderLine(lower string) bool {
	if len(c.HeaderWords) == 0 {
		return false
	}
	for _, w := range c.HeaderWords {
		if !strings.Contains(lower, w) {
			return false
		}
	}
	return true
}

// footerIndex returns the offset of the first footer marker in the line, or
// -1. Text before the marker is still row content; a marker can share a
// line with the last transaction when extraction collapses the page.
func (c *Config) footerIndex(line string) int {
	idx := -1
	for _, m := range c.FooterMarkers {
		if i := strings.Index(line, m); i >= 0 && (idx < 0 || i < idx) {
			idx = i
		}
	}
	return idx
}
