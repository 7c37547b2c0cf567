package statement

import (
	"testing"

	"cloud.google.com/go/civil"
)

func TestScanAmounts(t *testing.T) {
	tests := []struct {
		name string
		line string
		want []int64
	}{
		{"three columns", "UPI/DR/SWIGGY 250.00 0.00 10,250.00", []int64{25000, 0, 1025000}},
		{"indian grouping", "NEFT CR 1,23,456.78", []int64{12345678}},
		{"plain integers ignored", "CHQ 004512 REF 99881", nil},
		{"one decimal place ignored", "RATE 4.5 BALANCE 900.00", []int64{90000}},
		{"empty", "", nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tokens := ScanAmounts(tt.line)
			if len(tokens) != len(tt.want) {
				t.Fatalf("got %d tokens, want %d: %+v", len(tokens), len(tt.want), tokens)
			}
			for i, w := range tt.want {
				if tokens[i].Paisa != w {
					t.Errorf("token %d = %d paisa, want %d", i, tokens[i].Paisa, w)
				}
			}
		})
	}
}

func TestScanAmountsOffsets(t *testing.T) {
	line := "POS AMAZON 1,500.00 8,500.00"
	tokens := ScanAmounts(line)
	if len(tokens) != 2 {
		t.Fatalf("got %d tokens, want 2", len(tokens))
	}
	if got := line[tokens[0].Start : tokens[0].Start+len(tokens[0].Text)]; got != "1,500.00" {
		t.Errorf("offset slice = %q, want %q", got, "1,500.00")
	}
}

func TestNormalizeDate(t *testing.T) {
	tests := []struct {
		raw    string
		want   civil.Date
		wantOK bool
	}{
		{"12-03-2024", civil.Date{Year: 2024, Month: 3, Day: 12}, true},
		{"12/03/24", civil.Date{Year: 2024, Month: 3, Day: 12}, true},
		{"5 Mar 2024", civil.Date{Year: 2024, Month: 3, Day: 5}, true},
		{"05 March 2024", civil.Date{Year: 2024, Month: 3, Day: 5}, true},
		{"5 Mar 99", civil.Date{Year: 2099, Month: 3, Day: 5}, true},
		{"31-02-2024", civil.Date{}, false},
		{"not a date", civil.Date{}, false},
	}
	for _, tt := range tests {
		got, ok := NormalizeDate(tt.raw)
		if ok != tt.wantOK {
			t.Errorf("NormalizeDate(%q) ok = %v, want %v", tt.raw, ok, tt.wantOK)
			continue
		}
		if ok && got != tt.want {
			t.Errorf("NormalizeDate(%q) = %v, want %v", tt.raw, got, tt.want)
		}
	}
}

func TestSplitDatePrefix(t *testing.T) {
	tests := []struct {
		line     string
		wantDate string
		wantOK   bool
	}{
		{"12-01-2024 UPI/payment", "12-01-2024", true},
		{"12/01/24 NEFT CR", "12/01/24", true},
		{"5 Mar 2024 ATM WDL", "5 Mar 2024", true},
		{"  payment to John 500.00", "", false},
		{"Statement of account", "", false},
	}
	for _, tt := range tests {
		date, _, ok := SplitDatePrefix(tt.line)
		if ok != tt.wantOK || date != tt.wantDate {
			t.Errorf("SplitDatePrefix(%q) = (%q, %v), want (%q, %v)",
				tt.line, date, ok, tt.wantDate, tt.wantOK)
		}
	}
}
