// Package statement turns the text of an Indian bank statement PDF into
// normalized transactions. Layout differences between banks are expressed as
// per-bank parser configs dispatched through a registry; the tokenizer, row
// grouping and direction inference below are shared by all of them.
package statement

import (
	"regexp"
	"strings"
	"time"

	"cloud.google.com/go/civil"

	"github.com/ametsa/bachat-core/internal/domain"
)

// amountPattern matches monetary tokens as they appear in statement text:
// optional thousands commas and exactly two decimal places. Plain integers
// are never amounts; they show up in reference numbers constantly.
var amountPattern = regexp.MustCompile(`[0-9][0-9,]*\.[0-9]{2}`)

// datePrefixPattern anchors a transaction row: a leading date in either
// numeric (12-03-2024, 12/03/24) or spelled-month (5 Mar 2024) form,
// followed by the rest of the line.
var datePrefixPattern = regexp.MustCompile(`^(\d{1,2}(?:[-/]\d{1,2}[-/]\d{2,4}|\s+[A-Za-z]{3,9}\s+\d{2,4}))\s+(.+)$`)

// AmountToken is one monetary value found in a line, with its byte offset so
// callers can split the narration from the numeric columns.
type AmountToken struct {
	Text  string
	Paisa int64
	Start int
}

// ScanAmounts finds every monetary token in a line, left to right. Tokens
// that fail paisa conversion are skipped.
func ScanAmounts(line string) []AmountToken {
	matches := amountPattern.FindAllStringIndex(line, -1)
	if matches == nil {
		return nil
	}
	tokens := make([]AmountToken, 0, len(matches))
	for _, m := range matches {
		text := line[m[0]:m[1]]
		paisa, err := domain.ParsePaisa(text)
		if err != nil {
			continue
		}
		tokens = append(tokens, AmountToken{Text: text, Paisa: paisa, Start: m[0]})
	}
	return tokens
}

// SplitDatePrefix checks whether a line starts a new transaction row. It
// returns the raw date text, the remainder of the line, and whether the line
// matched at all.
func SplitDatePrefix(line string) (dateText, rest string, ok bool) {
	m := datePrefixPattern.FindStringSubmatch(strings.TrimSpace(line))
	if m == nil {
		return "", "", false
	}
	return m[1], m[2], true
}

// dateLayouts covers the formats Indian banks actually print, after
// two-digit years have been expanded to 20xx.
var dateLayouts = []string{
	"02-01-2006",
	"02/01/2006",
	"2 Jan 2006",
	"02 Jan 2006",
	"2 January 2006",
	"02 January 2006",
}

// NormalizeDate parses a raw statement date into a calendar date. A failed
// parse returns ok=false with a zero date; callers keep the row and leave
// the date unset rather than dropping data.
func NormalizeDate(raw string) (civil.Date, bool) {
	s := expandYear(strings.Join(strings.Fields(raw), " "))
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return civil.DateOf(t), true
		}
	}
	return civil.Date{}, false
}

// expandYear rewrites a trailing two-digit year as 20xx. Statement archives
// predating 2000 do not pass through this system.
func expandYear(s string) string {
	i := strings.LastIndexAny(s, "-/ ")
	if i < 0 {
		return s
	}
	y := s[i+1:]
	if len(y) != 2 {
		return s
	}
	for _, r := range y {
		if r < '0' || r > '9' {
			return s
		}
	}
	return s[:i+1] + "20" + y
}

// containsAny reports whether the lowercased line contains any marker.
func containsAny(lower string, markers []string) bool {
	for _, m := range markers {
		if strings.Contains(lower, m) {
			return true
		}
	}
	return false
}
