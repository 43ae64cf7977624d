package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// CompletionClient talks to a legacy text-completions endpoint. It is the
// fallback tier when the chat provider is unreachable: the prompt is a single
// flattened string with no chat roles.
type CompletionClient struct {
	HTTPClient *http.Client
	BaseURL    string
	APIKey     string
	Model      string
}

type completionsRequest struct {
	Model       string  `json:"model"`
	Prompt      string  `json:"prompt"`
	MaxTokens   int     `json:"max_tokens,omitempty"`
	Temperature float64 `json:"temperature,omitempty"`
}

type completionChoice struct {
	Index        int    `json:"index"`
	FinishReason string `json:"finish_reason"`
	Text         string `json:"text"`
}

type completionsResponse struct {
	ID      string             `json:"id"`
	Model   string             `json:"model"`
	Choices []completionChoice `json:"choices"`
}

func NewCompletionClient(baseURL, apiKey, model string) *CompletionClient {
	return &CompletionClient{
		HTTPClient: &http.Client{Timeout: 15 * time.Second},
		BaseURL:    strings.TrimRight(baseURL, "/"),
		APIKey:     apiKey,
		Model:      model,
	}
}

// Complete sends the prompt and returns the completion text.
func (c *CompletionClient) Complete(ctx context.Context, prompt string) (string, error) {
	if c.APIKey == "" || c.BaseURL == "" {
		return "", fmt.Errorf("completion provider not configured")
	}
	endpoint := c.BaseURL + "/completions"

	reqBody, _ := json.Marshal(completionsRequest{
		Model:       c.Model,
		Prompt:      prompt,
		MaxTokens:   120,
		Temperature: 0.7,
	})
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(reqBody))
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", "Bearer "+c.APIKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		b, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("completions error: status=%d body=%s", resp.StatusCode, string(b))
	}
	var cr completionsResponse
	if err := json.NewDecoder(resp.Body).Decode(&cr); err != nil {
		return "", err
	}
	if len(cr.Choices) == 0 {
		return "", fmt.Errorf("completions: empty choices")
	}
	return strings.TrimSpace(cr.Choices[0].Text), nil
}
