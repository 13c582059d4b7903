package analyzer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/m2ix4i/korrektor/internal/logging"
	"github.com/m2ix4i/korrektor/pkg/annotate"
)

// Options configures the OpenAI-compatible client.
type Options struct {
	BaseURL        string
	Model          string
	APIKey         string
	APIKeyEnv      string
	TimeoutSeconds int
	Temperature    float64
	MaxSuggestions int
}

func (o *Options) defaults() {
	if o.BaseURL == "" {
		o.BaseURL = "https://api.openai.com/v1"
	}
	if o.Model == "" {
		o.Model = "gpt-4.1-mini"
	}
	if o.APIKeyEnv == "" {
		o.APIKeyEnv = "OPENAI_API_KEY"
	}
	if o.TimeoutSeconds <= 0 {
		o.TimeoutSeconds = 60
	}
	if o.MaxSuggestions <= 0 {
		o.MaxSuggestions = 25
	}
}

// Client talks to an OpenAI-compatible chat-completions endpoint and parses
// the reply into validated suggestions.
type Client struct {
	hc     *http.Client
	url    string
	apiKey string
	model  string
	temp   float64
	limit  int
}

const systemPrompt = `You are an academic proofreading assistant. ` +
	`Review the user's document text and respond with a JSON array of suggestions. ` +
	`Each element must be an object with keys "original_text" (a literal snippet copied ` +
	`verbatim from the document, at least one sentence fragment long), "suggested_text", ` +
	`"reason", "category" (one of "grammar", "style", "clarity", "academic") and ` +
	`"confidence" (a number between 0 and 1). Respond with the JSON array only.`

// NewClient builds a client from options.
func NewClient(opts Options) (*Client, error) {
	opts.defaults()

	key := opts.APIKey
	if key == "" {
		key = os.Getenv(opts.APIKeyEnv)
	}
	if key == "" {
		return nil, fmt.Errorf("analyzer: missing API key (set %s)", opts.APIKeyEnv)
	}

	return &Client{
		hc:     &http.Client{Timeout: time.Duration(opts.TimeoutSeconds) * time.Second},
		url:    strings.TrimRight(opts.BaseURL, "/") + "/chat/completions",
		apiKey: key,
		model:  opts.Model,
		temp:   opts.Temperature,
		limit:  opts.MaxSuggestions,
	}, nil
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

// Analyze sends the document text for review and returns the validated
// suggestions, capped at the configured maximum. Invalid entries in the
// model reply are dropped with a warning rather than failing the call.
func (c *Client) Analyze(ctx context.Context, text string) ([]annotate.Suggestion, error) {
	body, err := json.Marshal(chatRequest{
		Model: c.model,
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: text},
		},
		Temperature: c.temp,
	})
	if err != nil {
		return nil, fmt.Errorf("analyzer: encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("analyzer: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.hc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("analyzer: request failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 16<<20))
	if err != nil {
		return nil, fmt.Errorf("analyzer: read response: %w", err)
	}

	var cr chatResponse
	if err := json.Unmarshal(raw, &cr); err != nil {
		return nil, fmt.Errorf("analyzer: decode response (status %d): %w", resp.StatusCode, err)
	}
	if cr.Error != nil {
		return nil, fmt.Errorf("analyzer: provider error (status %d): %s", resp.StatusCode, cr.Error.Message)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("analyzer: unexpected status %d", resp.StatusCode)
	}
	if len(cr.Choices) == 0 {
		return nil, fmt.Errorf("analyzer: empty reply")
	}

	return parseSuggestions(cr.Choices[0].Message.Content, c.limit)
}

// parseSuggestions extracts the first JSON array from the model reply and
// unmarshals it. Models occasionally wrap the array in prose or code fences.
func parseSuggestions(content string, limit int) ([]annotate.Suggestion, error) {
	start := strings.Index(content, "[")
	end := strings.LastIndex(content, "]")
	if start < 0 || end <= start {
		return nil, fmt.Errorf("analyzer: no JSON array in reply")
	}

	var parsed []annotate.Suggestion
	if err := json.Unmarshal([]byte(content[start:end+1]), &parsed); err != nil {
		return nil, fmt.Errorf("analyzer: decode suggestions: %w", err)
	}

	log := logging.Named("analyzer")
	suggestions := make([]annotate.Suggestion, 0, len(parsed))
	for _, s := range parsed {
		if err := s.Validate(); err != nil {
			log.Warn().Err(err).Str("original_text", s.OriginalText).Msg("dropping invalid suggestion")
			continue
		}
		suggestions = append(suggestions, s)
		if len(suggestions) == limit {
			break
		}
	}
	return suggestions, nil
}
