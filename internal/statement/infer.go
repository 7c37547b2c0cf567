package statement

import (
	"regexp"
	"strings"

	"github.com/ametsa/bachat-core/internal/domain"
)

// FoldState is the running balance threaded through rows and pages. It is
// passed and returned explicitly so the inference engine has no hidden
// sequencing between rows.
type FoldState struct {
	BalancePaisa int64
	Known        bool
}

var openingBalancePatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)balance\s+as\s+on`),
	regexp.MustCompile(`(?i)opening\s+bal(?:ance)?`),
	regexp.MustCompile(`(?i)balance\s+b/f`),
}

// ExtractOpeningBalance scans a page for an opening-balance line and returns
// the last amount on it. Used to seed FoldState before the first row.
func ExtractOpeningBalance(page string) (int64, bool) {
	for _, line := range strings.Split(page, "\n") {
		for _, p := range openingBalancePatterns {
			if !p.MatchString(line) {
				continue
			}
			tokens := ScanAmounts(line)
			if len(tokens) == 0 {
				break
			}
			return tokens[len(tokens)-1].Paisa, true
		}
	}
	return 0, false
}

// ParsePage reconstructs and infers every row on a page, returning the
// transactions and the fold state to carry into the next page.
func (c *Config) ParsePage(page string, st FoldState) ([]domain.Transaction, FoldState) {
	if !st.Known {
		if bal, ok := ExtractOpeningBalance(page); ok {
			st = FoldState{BalancePaisa: bal, Known: true}
		}
	}
	rows := c.GroupRows(page)
	txns := make([]domain.Transaction, 0, len(rows))
	for _, row := range rows {
		tx, next, ok := c.inferRow(row, st)
		st = next
		if !ok {
			continue
		}
		txns = append(txns, tx)
	}
	return txns, st
}

// inferRow applies the direction inference ladder to one logical row:
// explicit debit/credit columns first, then balance delta, then the
// narration keyword heuristic.
func (c *Config) inferRow(row LogicalRow, st FoldState) (domain.Transaction, FoldState, bool) {
	tokens := ScanAmounts(row.Rest)
	if len(tokens) == 0 {
		return domain.Transaction{}, st, false
	}

	var (
		amount    int64
		balance   int64
		hasBal    bool
		direction domain.Direction
		resolved  bool
		descEnd   = tokens[0].Start
	)

	switch {
	case len(tokens) >= 3:
		debit := tokens[len(tokens)-3]
		credit := tokens[len(tokens)-2]
		balance, hasBal = tokens[len(tokens)-1].Paisa, true
		descEnd = debit.Start
		switch {
		case debit.Paisa > 0 && credit.Paisa == 0:
			amount, direction, resolved = debit.Paisa, domain.DirectionDebit, true
		case credit.Paisa > 0 && debit.Paisa == 0:
			amount, direction, resolved = credit.Paisa, domain.DirectionCredit, true
		default:
			// Both columns populated: let the narration decide, then take
			// the matching column's amount.
			direction = c.narrationDirection(row.Rest)
			if direction == domain.DirectionDebit {
				amount = debit.Paisa
			} else {
				amount = credit.Paisa
			}
			resolved = true
		}

	case len(tokens) == 2:
		amount = tokens[0].Paisa
		balance, hasBal = tokens[1].Paisa, true
		if c.UseBalanceDelta && st.Known {
			delta := balance - st.BalancePaisa
			switch {
			case delta < 0:
				amount, direction, resolved = -delta, domain.DirectionDebit, true
			case delta > 0:
				amount, direction, resolved = delta, domain.DirectionCredit, true
			}
		}

	default: // single amount, no balance column
		amount = tokens[0].Paisa
	}

	if !resolved {
		direction = c.narrationDirection(row.Rest)
	}
	if hasBal {
		st = FoldState{BalancePaisa: balance, Known: true}
	}

	desc := strings.Join(strings.Fields(row.Rest[:descEnd]), " ")
	txnType := domain.DetectTxnType(desc)

	tx := domain.Transaction{
		SourceType:   domain.SourcePDFStatement,
		TxnDate:      row.Date,
		AmountPaisa:  amount,
		Direction:    direction,
		BalancePaisa: balance,
		Currency:     "INR",
		TxnType:      txnType,
		Description:  desc,
		Merchant:     domain.ExtractMerchant(desc, txnType),
		RawText:      row.Raw,
	}
	return tx, st, true
}

// narrationDirection applies the keyword heuristic: any debit keyword as a
// whole word marks the row DEBIT, otherwise the configured default applies.
func (c *Config) narrationDirection(text string) domain.Direction {
	if c.debitPattern != nil && c.debitPattern.MatchString(strings.ToLower(text)) {
		return domain.DirectionDebit
	}
	return c.DefaultDirection
}
