// Package extraction provides Term Extraction Service backends.
//
// Gemini sends contract text to a Gemini model and returns the raw reply.
// The reply is untrusted; terms.ParseExtraction decides what, if anything,
// in it is usable.
package extraction

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"google.golang.org/genai"

	"github.com/warp/cashflow-engine/generic"
	"github.com/warp/cashflow-engine/terms"
)

const DefaultModel = "gemini-2.0-flash"

// maxDocumentChars bounds the contract text sent per request.
const maxDocumentChars = 200_000

const systemPrompt = `You read construction contracts and report their commercial payment terms.
Reply with a single JSON object and nothing else, using exactly these keys:
  "payment_period":    days the payer has to pay a certified claim (integer)
  "honor_cert_period": days the administrator has to certify a claim (integer)
  "retention_percent": percentage withheld from each payment (number, 0-100)
  "retention_limit":   cap on cumulative retention as a percentage of contract value (number, 0-100)
Omit a key if the contract does not state it. Do not guess.`

// generator is the slice of the genai client Gemini calls.
type generator interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// Gemini implements terms.Extractor.
type Gemini struct {
	models generator
	model  string
}

var _ terms.Extractor = (*Gemini)(nil)

// NewGemini builds an extractor for the Gemini API. An empty apiKey yields
// generic.ErrExtractorUnavailable so callers can run without extraction.
func NewGemini(ctx context.Context, apiKey, model string) (*Gemini, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("gemini: no API key: %w", generic.ErrExtractorUnavailable)
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("gemini: create client: %w", err)
	}
	return newGemini(client.Models, model), nil
}

func newGemini(models generator, model string) *Gemini {
	if model == "" {
		model = DefaultModel
	}
	return &Gemini{models: models, model: model}
}

func (g *Gemini) Model() string { return g.model }

// ExtractTerms asks the model for the four commercial terms and returns its
// reply text unparsed.
func (g *Gemini) ExtractTerms(ctx context.Context, document string) (string, error) {
	document = strings.TrimSpace(document)
	if document == "" {
		return "", fmt.Errorf("gemini: empty document")
	}
	document = truncate(document, maxDocumentChars)

	config := &genai.GenerateContentConfig{
		Temperature:      genai.Ptr(float32(0.1)),
		ResponseMIMEType: "application/json",
		SystemInstruction: &genai.Content{
			Parts: []*genai.Part{{Text: systemPrompt}},
		},
	}
	prompt := "Contract text:\n\n" + document

	result, err := g.models.GenerateContent(ctx, g.model, genai.Text(prompt), config)
	if err != nil {
		return "", fmt.Errorf("gemini generation failed: %w", err)
	}
	if result == nil {
		return "", fmt.Errorf("gemini: empty response")
	}
	return result.Text(), nil
}

// truncate cuts s to at most n bytes without splitting a UTF-8 sequence.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}
