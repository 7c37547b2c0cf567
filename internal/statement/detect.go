package statement

import "strings"

// detectMarkers are checked in order; the first hit wins. SBI is matched
// both by full name and by the bare abbreviation, which some statements use
// exclusively.
var detectMarkers = []struct {
	marker string
	code   string
}{
	{"hdfc bank", BankHDFC},
	{"icici bank", BankICICI},
	{"state bank of india", BankSBI},
	{"sbi", BankSBI},
	{"axis bank", BankAxis},
	{"kotak mahindra", BankKotak},
}

// DetectBank inspects statement text (normally the first page or two) for
// bank-identifying strings. Unknown text maps to the generic code.
func DetectBank(text string) string {
	lower := strings.ToLower(text)
	for _, d := range detectMarkers {
		if strings.Contains(lower, d.marker) {
			return d.code
		}
	}
	return BankGeneric
}
