package categorizer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"fjacquet/statement-import/internal/logging"
	"fjacquet/statement-import/internal/models"

	"github.com/google/generative-ai-go/genai"
	"golang.org/x/time/rate"
	"google.golang.org/api/option"
)

// DefaultGeminiModel is used when no model is configured.
const DefaultGeminiModel = "gemini-2.0-flash"

// ErrMissingAPIKey is returned when the Gemini service is built without a key.
var ErrMissingAPIKey = errors.New("GEMINI_API_KEY environment variable not set")

// GeminiConfig configures the Gemini classification service.
type GeminiConfig struct {
	APIKey            string
	Model             string
	RequestsPerMinute int
}

// GeminiService implements ClassificationService with the Google Gemini API.
type GeminiService struct {
	client  *genai.Client
	model   *genai.GenerativeModel
	limiter *rate.Limiter
	logger  logging.Logger
}

// NewGeminiService creates the Gemini client.
func NewGeminiService(ctx context.Context, cfg GeminiConfig, logger logging.Logger) (*GeminiService, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, ErrMissingAPIKey
	}
	if cfg.Model == "" {
		cfg.Model = DefaultGeminiModel
	}

	client, err := genai.NewClient(ctx, option.WithAPIKey(cfg.APIKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	return &GeminiService{
		client:  client,
		model:   client.GenerativeModel(cfg.Model),
		limiter: newLimiter(cfg.RequestsPerMinute),
		logger:  logging.OrDefault(logger).WithField(logging.FieldComponent, "gemini"),
	}, nil
}

// newLimiter spaces requests evenly; zero or less disables limiting.
func newLimiter(requestsPerMinute int) *rate.Limiter {
	if requestsPerMinute <= 0 {
		return rate.NewLimiter(rate.Inf, 1)
	}
	return rate.NewLimiter(rate.Every(time.Minute/time.Duration(requestsPerMinute)), 1)
}

// Close releases the underlying client.
func (s *GeminiService) Close() error {
	return s.client.Close()
}

// ClassifyBatch sends one prompt for the whole batch.
func (s *GeminiService) ClassifyBatch(ctx context.Context, requests []ServiceRequest) ([]ServiceResult, error) {
	if len(requests) == 0 {
		return nil, nil
	}
	if err := s.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter: %w", err)
	}

	prompt, err := buildPrompt(requests)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	resp, err := s.model.GenerateContent(ctx, genai.Text(prompt))
	if err != nil {
		return nil, fmt.Errorf("gemini API error: %w", err)
	}
	s.logger.Debug("Gemini batch answered",
		logging.Field{Key: logging.FieldCount, Value: len(requests)},
		logging.Field{Key: logging.FieldDuration, Value: time.Since(start).Milliseconds()})

	text, err := responseText(resp)
	if err != nil {
		return nil, err
	}
	return parseResponse(text)
}

type promptItem struct {
	Row        int      `json:"row"`
	Merchant   string   `json:"merchant"`
	Amount     string   `json:"amount"`
	Date       string   `json:"date"`
	Kind       string   `json:"kind"`
	Categories []string `json:"categories"`
}

const promptHeader = `You classify bank statement transactions into categories.
For every item below pick exactly one name from its "categories" list, or an
empty string when none fits. Answer with a JSON array only, one object per
item: {"row": <row>, "category": "<name>", "confidence": <0..1>}.

Items:
`

func buildPrompt(requests []ServiceRequest) (string, error) {
	items := make([]promptItem, 0, len(requests))
	for _, r := range requests {
		items = append(items, promptItem{
			Row:        r.RowNumber,
			Merchant:   r.Merchant,
			Amount:     r.Amount.StringFixed(2),
			Date:       r.Date.Format(models.ISODateLayout),
			Kind:       string(r.Kind),
			Categories: r.Categories,
		})
	}
	data, err := json.MarshalIndent(items, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to encode prompt: %w", err)
	}
	return promptHeader + string(data), nil
}

func responseText(resp *genai.GenerateContentResponse) (string, error) {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil ||
		len(resp.Candidates[0].Content.Parts) == 0 {
		return "", fmt.Errorf("no response from Gemini API")
	}
	var b strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if text, ok := part.(genai.Text); ok {
			b.WriteString(string(text))
		}
	}
	if b.Len() == 0 {
		return "", fmt.Errorf("gemini response has no text part")
	}
	return b.String(), nil
}

type responseItem struct {
	Row        int     `json:"row"`
	Category   string  `json:"category"`
	Confidence float64 `json:"confidence"`
}

// parseResponse decodes the model's JSON answer, tolerating a markdown code
// fence and a {"results": [...]} wrapper.
func parseResponse(text string) ([]ServiceResult, error) {
	text = stripCodeFence(text)

	var items []responseItem
	if err := json.Unmarshal([]byte(text), &items); err != nil {
		var wrapped struct {
			Results []responseItem `json:"results"`
		}
		if werr := json.Unmarshal([]byte(text), &wrapped); werr != nil || wrapped.Results == nil {
			return nil, fmt.Errorf("failed to decode Gemini response: %w", err)
		}
		items = wrapped.Results
	}

	results := make([]ServiceResult, 0, len(items))
	for _, item := range items {
		results = append(results, ServiceResult{
			RowNumber:  item.Row,
			Category:   strings.TrimSpace(item.Category),
			Confidence: item.Confidence,
		})
	}
	return results, nil
}

func stripCodeFence(text string) string {
	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, "```") {
		return text
	}
	text = strings.TrimPrefix(text, "```")
	// Drop the language tag line.
	if i := strings.IndexByte(text, '\n'); i >= 0 {
		text = text[i+1:]
	}
	text = strings.TrimSuffix(strings.TrimSpace(text), "```")
	return strings.TrimSpace(text)
}
