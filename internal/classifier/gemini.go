package classifier

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"

	"hearthledger/internal/logging"
)

// Gemini implements Classifier against the Google Gemini API.
type Gemini struct {
	client  *genai.Client
	model   string
	timeout time.Duration
	logger  logging.Logger
}

// NewGemini creates a Gemini-backed classifier.
func NewGemini(ctx context.Context, apiKey, model string, timeout time.Duration, logger logging.Logger) (*Gemini, error) {
	if logger == nil {
		logger = logging.NewNopLogger()
	}

	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}

	return &Gemini{
		client:  client,
		model:   model,
		timeout: timeout,
		logger:  logger,
	}, nil
}

// Close releases the underlying API client.
func (g *Gemini) Close() error {
	return g.client.Close()
}

// responseEntry is one element of the JSON array the model is asked to
// produce.
type responseEntry struct {
	ID         int64  `json:"id"`
	CategoryID int64  `json:"category_id"`
	IsTransfer bool   `json:"is_transfer"`
	CleanName  string `json:"clean_name"`
}

// Suggest sends one batch to Gemini and parses the JSON response. The
// call is bounded by the configured timeout; the caller treats any error
// as a soft failure.
func (g *Gemini) Suggest(ctx context.Context, req BatchRequest) (map[int64]Suggestion, error) {
	if len(req.Items) == 0 {
		return map[int64]Suggestion{}, nil
	}

	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	prompt, err := g.buildPrompt(req)
	if err != nil {
		return nil, fmt.Errorf("build prompt: %w", err)
	}

	model := g.client.GenerativeModel(g.model)
	resp, err := model.GenerateContent(ctx, genai.Text(prompt))
	if err != nil {
		return nil, fmt.Errorf("gemini request: %w", err)
	}

	text := extractText(resp)
	if text == "" {
		return nil, fmt.Errorf("gemini response contained no text")
	}

	entries, err := parseEntries(text)
	if err != nil {
		return nil, fmt.Errorf("parse gemini response: %w", err)
	}

	suggestions := make(map[int64]Suggestion, len(entries))
	for _, entry := range entries {
		if entry.ID == 0 {
			continue
		}
		suggestions[entry.ID] = Suggestion{
			CategoryID: entry.CategoryID,
			IsTransfer: entry.IsTransfer,
			CleanName:  strings.TrimSpace(entry.CleanName),
		}
	}

	g.logger.WithFields(
		logging.Field{Key: "requested", Value: len(req.Items)},
		logging.Field{Key: "answered", Value: len(suggestions)},
	).Debug("Gemini batch classified")
	return suggestions, nil
}

func (g *Gemini) buildPrompt(req BatchRequest) (string, error) {
	type promptPayload struct {
		Categories   map[int64]string `json:"categories"`
		Accounts     []AccountInfo    `json:"accounts"`
		Transactions []BatchItem      `json:"transactions"`
	}

	payload, err := json.Marshal(promptPayload{
		Categories:   req.Categories,
		Accounts:     req.Accounts,
		Transactions: req.Items,
	})
	if err != nil {
		return "", err
	}

	var b strings.Builder
	b.WriteString("You are a personal finance assistant. For each transaction below, pick the best\n")
	b.WriteString("category id from the provided catalog, decide whether it is an internal transfer\n")
	b.WriteString("between the listed household accounts, and suggest a short clean merchant name.\n\n")
	b.WriteString("Respond with ONLY a JSON array, one object per transaction:\n")
	b.WriteString(`[{"id": <transaction id>, "category_id": <category id or 0>, "is_transfer": <bool>, "clean_name": "<name or empty>"}]`)
	b.WriteString("\n\nInput:\n")
	b.Write(payload)
	return b.String(), nil
}

// extractText concatenates the text parts of the first candidate.
func extractText(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return ""
	}
	var b strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if text, ok := part.(genai.Text); ok {
			b.WriteString(string(text))
		}
	}
	return b.String()
}

// parseEntries decodes the model output, tolerating markdown code fences
// around the JSON array.
func parseEntries(text string) ([]responseEntry, error) {
	cleaned := strings.TrimSpace(text)
	cleaned = strings.TrimPrefix(cleaned, "```json")
	cleaned = strings.TrimPrefix(cleaned, "```")
	cleaned = strings.TrimSuffix(cleaned, "```")
	cleaned = strings.TrimSpace(cleaned)

	var entries []responseEntry
	if err := json.Unmarshal([]byte(cleaned), &entries); err != nil {
		return nil, err
	}
	return entries, nil
}
