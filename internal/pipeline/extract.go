package pipeline

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"google.golang.org/genai"
)

// DefaultExtractModel is the Gemini model used for PDF text extraction.
const DefaultExtractModel = "gemini-2.5-flash"

const extractPrompt = "You are a bank statement transcriber.\n\n" +
	"Task:\n" +
	"- Transcribe ALL text in the attached PDF bank statement as plain text.\n" +
	"- Preserve the original line structure: one statement line per output line.\n" +
	"- Keep column values on the same line as their row, separated by spaces.\n" +
	"- Separate pages with a single form feed character (\\f).\n" +
	"- Do NOT summarize, reorder, annotate, or omit anything.\n" +
	"- Output raw text only. No Markdown, no code fences, no commentary.\n"

// PlainTextExtractor passes already-extracted text documents through
// unchanged. Used when the upload is a .txt dump rather than a PDF.
type PlainTextExtractor struct{}

func (PlainTextExtractor) Extract(_ context.Context, data []byte) (string, error) {
	if !utf8.Valid(data) {
		return "", fmt.Errorf("PlainTextExtractor: document is not valid UTF-8 text")
	}
	return string(data), nil
}

// GeminiTextExtractor transcribes PDF documents to plain text with Gemini.
type GeminiTextExtractor struct {
	client *genai.Client
	model  string
}

// NewGeminiTextExtractor builds the client once; the extractor is shared
// across every statement the worker processes.
func NewGeminiTextExtractor(ctx context.Context, model string) (*GeminiTextExtractor, error) {
	if model == "" {
		model = DefaultExtractModel
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		HTTPOptions: genai.HTTPOptions{APIVersion: "v1"},
	})
	if err != nil {
		return nil, fmt.Errorf("NewGeminiTextExtractor: create genai client: %w", err)
	}
	return &GeminiTextExtractor{client: client, model: model}, nil
}

func (g *GeminiTextExtractor) Extract(ctx context.Context, data []byte) (string, error) {
	// Text uploads skip the model round trip.
	if utf8.Valid(data) && !strings.HasPrefix(string(data[:min(4, len(data))]), "%PDF") {
		return string(data), nil
	}

	contents := []*genai.Content{
		{
			Role: "user",
			Parts: []*genai.Part{
				{Text: extractPrompt},
				{
					InlineData: &genai.Blob{
						MIMEType: "application/pdf",
						Data:     data,
					},
				},
			},
		},
	}

	resp, err := g.client.Models.GenerateContent(ctx, g.model, contents, nil)
	if err != nil {
		return "", fmt.Errorf("GeminiTextExtractor: generate content: %w", err)
	}
	text := strings.TrimSpace(resp.Text())
	if text == "" {
		return "", fmt.Errorf("GeminiTextExtractor: empty response from model")
	}
	return text, nil
}
