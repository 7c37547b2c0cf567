package categorize

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"google.golang.org/genai"

	"github.com/ametsa/bachat-core/internal/domain"
)

// DefaultModelName is the Gemini model used for categorization fallback.
const DefaultModelName = "gemini-2.0-flash"

// GeminiCategorizer asks a model to categorize rows the keyword engine
// could not place. It always runs the keyword engine first; the model only
// sees OTHER rows, which keeps the call volume and the nondeterminism small.
type GeminiCategorizer struct {
	keywords *KeywordCategorizer
	client   *genai.Client
	model    string
}

// NewGeminiCategorizer builds the client once; the categorizer is reused
// across every transaction of a sync or parse run.
func NewGeminiCategorizer(ctx context.Context, model string) (*GeminiCategorizer, error) {
	if model == "" {
		model = DefaultModelName
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		HTTPOptions: genai.HTTPOptions{APIVersion: "v1"},
	})
	if err != nil {
		return nil, fmt.Errorf("NewGeminiCategorizer: create genai client: %w", err)
	}
	return &GeminiCategorizer{keywords: NewKeywordCategorizer(), client: client, model: model}, nil
}

func (g *GeminiCategorizer) Categorize(ctx context.Context, tx *domain.Transaction) (Result, error) {
	result, err := g.keywords.Categorize(ctx, tx)
	if err != nil || result.Category != CategoryOther {
		return result, err
	}

	prompt := "You are a transaction categorizer for Indian bank transactions.\n\n" +
		"Pick exactly one category for the transaction below from this list:\n" +
		strings.Join(allCategories(), ", ") + "\n\n" +
		"Transaction narration: " + tx.Description + "\n" +
		"Merchant: " + tx.Merchant + "\n\n" +
		"Return STRICT JSON only, no code fences: {\"category\": \"...\"}"

	contents := []*genai.Content{
		{
			Role:  "user",
			Parts: []*genai.Part{{Text: prompt}},
		},
	}

	resp, err := g.client.Models.GenerateContent(ctx, g.model, contents, nil)
	if err != nil {
		return Result{}, fmt.Errorf("GeminiCategorizer: generate content: %w", err)
	}
	raw := resp.Text()
	if raw == "" {
		return Result{Category: CategoryOther}, nil
	}

	var out struct {
		Category string `json:"category"`
	}
	if err := json.Unmarshal([]byte(cleanModelJSON(raw)), &out); err != nil {
		return Result{Category: CategoryOther}, nil
	}
	if !validCategory(out.Category) {
		return Result{Category: CategoryOther}, nil
	}
	return Result{Category: out.Category, SubCategory: subCategory(searchText(tx), out.Category)}, nil
}

func allCategories() []string {
	cats := make([]string, 0, len(rules)+1)
	for _, r := range rules {
		cats = append(cats, r.category)
	}
	return append(cats, CategoryOther)
}

func validCategory(c string) bool {
	for _, known := range allCategories() {
		if c == known {
			return true
		}
	}
	return false
}

// cleanModelJSON strips Markdown fences the model sometimes adds despite
// instructions.
func cleanModelJSON(raw string) string {
	s := strings.TrimSpace(raw)
	if strings.HasPrefix(s, "```") {
		if idx := strings.Index(s, "\n"); idx != -1 {
			s = s[idx+1:]
		} else {
			return s
		}
		s = strings.TrimSpace(s)
	}
	if idx := strings.LastIndex(s, "```"); idx != -1 {
		s = s[:idx]
	}
	return strings.TrimSpace(s)
}
