package assistant

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// defaultBaseURL is the hosted model endpoint. The API key stays server-side;
// the browser never sees it.
const defaultBaseURL = "https://generativelanguage.googleapis.com/v1beta/models/gemini-2.5-flash:generateContent"

// Client calls the hosted generative-language API
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	stubMode   bool
}

// NewClient creates an assistant client. An empty baseURL selects the hosted
// Gemini endpoint; stubMode returns canned replies without any network call
// (local development without an API key).
func NewClient(baseURL, apiKey string, stubMode bool) *Client {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	return &Client{
		baseURL:    baseURL,
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		stubMode:   stubMode,
	}
}

// Complete sends the visitor's message with the café system prompt and
// returns the generated reply text.
func (c *Client) Complete(ctx context.Context, message, systemPrompt string) (string, error) {
	if message == "" {
		return "", fmt.Errorf("message is required")
	}

	if c.stubMode {
		return "Thanks for visiting Purrfect Brew! I'm running in stub mode right now, " +
			"but our cats say hello. Ask me about the menu once the real assistant is configured.", nil
	}

	reqBody := generateRequest{
		Contents: []content{
			{Parts: []part{{Text: systemPrompt + "\n\nUser: " + message}}},
		},
		GenerationConfig: generationConfig{
			MaxOutputTokens: 1000,
			Temperature:     0.7,
		},
		SafetySettings: []safetySetting{
			{Category: "HARM_CATEGORY_HARASSMENT", Threshold: "BLOCK_MEDIUM_AND_ABOVE"},
			{Category: "HARM_CATEGORY_HATE_SPEECH", Threshold: "BLOCK_MEDIUM_AND_ABOVE"},
		},
	}

	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", c.baseURL, bytes.NewBuffer(jsonData))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-goog-api-key", c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("model API returned status %d: %s", resp.StatusCode, string(body))
	}

	var result generateResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("failed to decode response: %w", err)
	}

	if len(result.Candidates) == 0 || len(result.Candidates[0].Content.Parts) == 0 ||
		result.Candidates[0].Content.Parts[0].Text == "" {
		return "", fmt.Errorf("no response generated")
	}

	return result.Candidates[0].Content.Parts[0].Text, nil
}
