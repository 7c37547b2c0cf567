// Package categorize assigns spending categories to transactions. The
// keyword engine is deterministic and covers the common Indian merchant
// vocabulary; an optional model-backed refiner handles what it misses.
package categorize

import (
	"context"
	"regexp"
	"strings"

	"github.com/ametsa/bachat-core/internal/domain"
)

// Category labels, most specific first. Rule order matters: the first
// matching rule wins, so SALARY must outrank TRANSFER and EMI must outrank
// SHOPPING.
const (
	CategoryFood          = "FOOD"
	CategoryGroceries     = "GROCERIES"
	CategoryTransport     = "TRANSPORT"
	CategoryUtilities     = "UTILITIES"
	CategoryEntertainment = "ENTERTAINMENT"
	CategoryShopping      = "SHOPPING"
	CategoryHealth        = "HEALTH"
	CategoryEducation     = "EDUCATION"
	CategoryInvestment    = "INVESTMENT"
	CategoryInsurance     = "INSURANCE"
	CategoryEMI           = "EMI"
	CategoryRent          = "RENT"
	CategorySubscription  = "SUBSCRIPTION"
	CategorySalary        = "SALARY"
	CategoryATM           = "ATM"
	CategoryTransfer      = "TRANSFER"
	CategoryOther         = "OTHER"
)

type rule struct {
	category string
	pattern  *regexp.Regexp
}

var rules = []rule{
	{CategorySalary, regexp.MustCompile(`(?i)\b(salary|sal cr|payroll)\b`)},
	{CategoryEMI, regexp.MustCompile(`(?i)\b(emi|loan|bajaj fin|hdfc ltd)\b`)},
	{CategoryRent, regexp.MustCompile(`(?i)\b(rent|nobroker|landlord)\b`)},
	{CategoryInsurance, regexp.MustCompile(`(?i)\b(lic|insurance|policybazaar|acko|hdfc ergo)\b`)},
	{CategoryInvestment, regexp.MustCompile(`(?i)\b(zerodha|groww|upstox|mutual fund|sip|nps|ppf|kuvera)\b`)},
	{CategorySubscription, regexp.MustCompile(`(?i)\b(netflix|spotify|hotstar|prime video|subscription|youtube premium)\b`)},
	{CategoryFood, regexp.MustCompile(`(?i)\b(swiggy|zomato|dominos|mcdonald|kfc|eatfit|restaurant|cafe|starbucks)\b`)},
	{CategoryGroceries, regexp.MustCompile(`(?i)\b(bigbasket|blinkit|zepto|grofers|dmart|reliance fresh|grocery|kirana)\b`)},
	{CategoryTransport, regexp.MustCompile(`(?i)\b(uber|ola|rapido|irctc|redbus|metro|fastag|petrol|fuel|hpcl|iocl|bpcl)\b`)},
	{CategoryUtilities, regexp.MustCompile(`(?i)\b(electricity|bescom|msedcl|airtel|jio|vodafone|bsnl|broadband|gas|tata power|water bill)\b`)},
	{CategoryEntertainment, regexp.MustCompile(`(?i)\b(bookmyshow|pvr|inox|cinema|dream11|mpl)\b`)},
	{CategoryHealth, regexp.MustCompile(`(?i)\b(pharmacy|apollo|medplus|netmeds|pharmeasy|hospital|clinic|diagnostic)\b`)},
	{CategoryEducation, regexp.MustCompile(`(?i)\b(school|college|university|udemy|coursera|byjus|tuition)\b`)},
	{CategoryShopping, regexp.MustCompile(`(?i)\b(amazon|flipkart|myntra|ajio|nykaa|croma|decathlon|lifestyle)\b`)},
	{CategoryATM, regexp.MustCompile(`(?i)\b(atm|atw|nwd|cash wdl)\b`)},
	{CategoryTransfer, regexp.MustCompile(`(?i)\b(upi|imps|neft|rtgs|transfer)\b`)},
}

// Result is one categorization outcome. SubCategory is empty for
// categories without a finer split.
type Result struct {
	Category    string
	SubCategory string
}

// Categorizer assigns a category to one transaction.
type Categorizer interface {
	Categorize(ctx context.Context, tx *domain.Transaction) (Result, error)
}

// KeywordCategorizer is the deterministic first-match rule engine.
type KeywordCategorizer struct{}

func NewKeywordCategorizer() *KeywordCategorizer {
	return &KeywordCategorizer{}
}

// Categorize matches narration then merchant against the rule table; rows
// nothing matches land in OTHER.
func (k *KeywordCategorizer) Categorize(_ context.Context, tx *domain.Transaction) (Result, error) {
	for _, r := range rules {
		if r.pattern.MatchString(tx.Description) || r.pattern.MatchString(tx.Merchant) {
			return Result{Category: r.category, SubCategory: subCategory(searchText(tx), r.category)}, nil
		}
	}
	return Result{Category: CategoryOther}, nil
}

func searchText(tx *domain.Transaction) string {
	return strings.ToLower(strings.Join([]string{tx.Description, tx.Merchant, tx.CounterpartyName}, " "))
}

// subCategory refines a few categories where the split is useful for
// spending breakdowns. Everything else stays at the category level.
func subCategory(lower, category string) string {
	has := func(words ...string) bool {
		for _, w := range words {
			if strings.Contains(lower, w) {
				return true
			}
		}
		return false
	}
	switch category {
	case CategoryFood:
		if has("swiggy", "zomato") {
			return "FOOD_DELIVERY"
		}
		if has("cafe", "starbucks") {
			return "CAFE"
		}
		return "RESTAURANT"
	case CategoryTransport:
		if has("uber", "ola") {
			return "CAB"
		}
		if has("petrol", "fuel") {
			return "FUEL"
		}
		if has("metro", "railway", "irctc") {
			return "PUBLIC_TRANSPORT"
		}
		return "OTHER_TRANSPORT"
	case CategoryUtilities:
		if has("electricity", "power", "bescom", "msedcl") {
			return "ELECTRICITY"
		}
		if has("gas") {
			return "GAS"
		}
		if has("water") {
			return "WATER"
		}
		if has("internet", "broadband") {
			return "INTERNET"
		}
		if has("mobile", "recharge", "airtel", "jio", "vodafone", "bsnl") {
			return "MOBILE"
		}
		return "OTHER_UTILITY"
	}
	return ""
}
