package statement

import (
	"strings"

	"cloud.google.com/go/civil"
)

// LogicalRow is one reconstructed ledger entry. PDF text extraction wraps
// entries across physical lines; grouping stitches them back together.
type LogicalRow struct {
	Raw      string // full row text, physical lines joined with spaces
	Rest     string // row text with the leading date removed
	DateText string
	Date     civil.Date
	HasDate  bool
}

// GroupRows turns one page of raw text into logical rows. The grouping
// strategy is chosen per page: if the page carries an explicit
// debit/credit/balance column header, rows are accumulated until a line
// closes them with amount tokens; otherwise a leading date starts each row.
func (c *Config) GroupRows(page string) []LogicalRow {
	lines := strings.Split(page, "\n")
	for _, line := range lines {
		if c.isHeaderLine(strings.ToLower(line)) {
			return c.groupHeaderAnchored(lines)
		}
	}
	return c.groupDateAnchored(lines)
}

// groupDateAnchored starts a new row at every date-prefixed line and appends
// continuation lines to the current row. A footer marker ends the page, but
// text preceding the marker on the same line still belongs to a row.
func (c *Config) groupDateAnchored(lines []string) []LogicalRow {
	var rows []LogicalRow
	var cur *LogicalRow
	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			continue
		}
		footer := false
		if idx := c.footerIndex(trimmed); idx >= 0 {
			trimmed = strings.TrimSpace(trimmed[:idx])
			footer = true
		}
		if trimmed != "" {
			if dateText, rest, ok := SplitDatePrefix(trimmed); ok {
				rows = appendRow(rows, cur)
				row := newRow(dateText, rest)
				cur = &row
			} else if cur != nil {
				cur.Raw += " " + trimmed
				cur.Rest += " " + trimmed
			}
		}
		if footer {
			break
		}
	}
	rows = appendRow(rows, cur)
	return c.dropNonTxnRows(rows)
}

// groupHeaderAnchored waits for the column-header line, then accumulates
// lines into a row until one carries at least two amount tokens (the
// transaction amount and the closing balance), which closes the row.
func (c *Config) groupHeaderAnchored(lines []string) []LogicalRow {
	var rows []LogicalRow
	var cur *LogicalRow
	inBody := false
	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			continue
		}
		if !inBody {
			if c.isHeaderLine(strings.ToLower(trimmed)) {
				inBody = true
			}
			continue
		}
		footer := false
		if idx := c.footerIndex(trimmed); idx >= 0 {
			trimmed = strings.TrimSpace(trimmed[:idx])
			footer = true
		}
		if trimmed != "" {
			if cur == nil {
				if dateText, rest, ok := SplitDatePrefix(trimmed); ok {
					row := newRow(dateText, rest)
					cur = &row
				} else {
					row := newRow("", trimmed)
					cur = &row
				}
			} else {
				cur.Raw += " " + trimmed
				cur.Rest += " " + trimmed
			}
			if len(ScanAmounts(trimmed)) >= 2 {
				rows = appendRow(rows, cur)
				cur = nil
			}
		}
		if footer {
			break
		}
	}
	rows = appendRow(rows, cur)
	return c.dropNonTxnRows(rows)
}

func newRow(dateText, rest string) LogicalRow {
	row := LogicalRow{Rest: rest, DateText: dateText}
	if dateText != "" {
		row.Raw = dateText + " " + rest
		row.Date, row.HasDate = NormalizeDate(dateText)
	} else {
		row.Raw = rest
	}
	return row
}

func appendRow(rows []LogicalRow, cur *LogicalRow) []LogicalRow {
	if cur == nil {
		return rows
	}
	return append(rows, *cur)
}

// dropNonTxnRows filters brought-forward and opening-balance rows out.
// Their balance still matters for delta inference, so the caller can pick
// it up via ExtractOpeningBalance before parsing.
func (c *Config) dropNonTxnRows(rows []LogicalRow) []LogicalRow {
	kept := rows[:0]
	for _, row := range rows {
		if containsAny(strings.ToLower(row.Raw), c.NonTxnMarkers) {
			continue
		}
		kept = append(kept, row)
	}
	return kept
}
