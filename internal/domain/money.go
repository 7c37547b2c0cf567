package domain

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// ParsePaisa converts a human-formatted amount string ("1,23,456.78") into
// integer paisa. Parsing goes through decimal arithmetic so values like
// 0.29 survive the conversion exactly.
func ParsePaisa(s string) (int64, error) {
	cleaned := strings.ReplaceAll(strings.TrimSpace(s), ",", "")
	if cleaned == "" {
		return 0, fmt.Errorf("ParsePaisa: empty amount")
	}
	d, err := decimal.NewFromString(cleaned)
	if err != nil {
		return 0, fmt.Errorf("ParsePaisa: %q: %w", s, err)
	}
	return d.Shift(2).Round(0).IntPart(), nil
}

// FormatPaisa renders paisa as a rupee string with two decimal places.
func FormatPaisa(p int64) string {
	return decimal.New(p, -2).StringFixed(2)
}
