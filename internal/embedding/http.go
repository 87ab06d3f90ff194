package embedding

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

// HTTPEmbedder posts text to a JSON embedding endpoint and returns the
// decoded body untouched, leaving shape handling to Normalize.
type HTTPEmbedder struct {
	url    string
	model  string
	key    string
	client *http.Client
}

type httpEmbedRequest struct {
	Model  string `json:"model,omitempty"`
	Input  string `json:"input"`
	Prompt string `json:"prompt"`
}

func NewHTTPEmbedder(url, model, key string, timeout time.Duration) *HTTPEmbedder {
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &HTTPEmbedder{
		url:    url,
		model:  model,
		key:    strings.TrimPrefix(key, "Bearer "),
		client: &http.Client{Timeout: timeout},
	}
}

func (e *HTTPEmbedder) Embed(ctx context.Context, text string) (any, error) {
	body, err := json.Marshal(httpEmbedRequest{Model: e.model, Input: text, Prompt: text})
	if err != nil {
		return nil, fmt.Errorf("marshaling request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if e.key != "" {
		req.Header.Set("Authorization", "Bearer "+e.key)
	}

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("calling embedding endpoint: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("embedding endpoint returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}

	var raw any
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return nil, fmt.Errorf("decoding response: %w", err)
	}
	return raw, nil
}
