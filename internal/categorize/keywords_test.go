package categorize

import (
	"context"
	"testing"

	"github.com/ametsa/bachat-core/internal/domain"
)

func TestKeywordCategorizer(t *testing.T) {
	tests := []struct {
		name        string
		description string
		merchant    string
		want        string
		wantSub     string
	}{
		{"food delivery", "UPI/DR/403912/SWIGGY BANGALORE", "", CategoryFood, "FOOD_DELIVERY"},
		{"cafe", "POS STARBUCKS KORAMANGALA", "", CategoryFood, "CAFE"},
		{"salary beats transfer", "NEFT SALARY MAR 2024 ACME CORP", "", CategorySalary, ""},
		{"atm", "ATW-512967 CASH WDL", "", CategoryATM, ""},
		{"plain upi is a transfer", "UPI/P2A/445566/JOHN DOE", "", CategoryTransfer, ""},
		{"merchant field matches too", "POS 4567", "AMAZON RETAIL IN", CategoryShopping, ""},
		{"emi beats shopping", "EMI BAJAJ FIN AMAZON PURCHASE", "", CategoryEMI, ""},
		{"cab", "UPI/DR/112233/UBER INDIA", "", CategoryTransport, "CAB"},
		{"fuel", "POS HPCL PETROL PUMP", "", CategoryTransport, "FUEL"},
		{"train", "IRCTC E-TICKET 8845120", "", CategoryTransport, "PUBLIC_TRANSPORT"},
		{"electricity", "BESCOM ELECTRICITY BILL", "", CategoryUtilities, "ELECTRICITY"},
		{"mobile recharge", "UPI AIRTEL PREPAID RECHARGE", "", CategoryUtilities, "MOBILE"},
		{"unknown", "CHQ DEP 004512", "", CategoryOther, ""},
	}

	cat := NewKeywordCategorizer()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tx := &domain.Transaction{Description: tt.description, Merchant: tt.merchant}
			got, err := cat.Categorize(context.Background(), tx)
			if err != nil {
				t.Fatalf("Categorize: %v", err)
			}
			if got.Category != tt.want {
				t.Errorf("Categorize(%q) category = %q, want %q", tt.description, got.Category, tt.want)
			}
			if got.SubCategory != tt.wantSub {
				t.Errorf("Categorize(%q) subcategory = %q, want %q", tt.description, got.SubCategory, tt.wantSub)
			}
		})
	}
}

func TestCleanModelJSON(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"{\"category\": \"FOOD\"}", "{\"category\": \"FOOD\"}"},
		{"```json\n{\"category\": \"FOOD\"}\n```", "{\"category\": \"FOOD\"}"},
		{"```\n{\"category\": \"FOOD\"}\n```", "{\"category\": \"FOOD\"}"},
	}
	for _, tt := range tests {
		if got := cleanModelJSON(tt.in); got != tt.want {
			t.Errorf("cleanModelJSON(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
