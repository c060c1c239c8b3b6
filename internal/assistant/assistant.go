// Package assistant is a thin proxy to an OpenAI-compatible chat API. It
// answers room questions against the room's recent conversation context.
// Without an API key the assistant is simply unavailable; nothing else in
// the server depends on it.
package assistant

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/GZancewicz/web-conference/internal/registry"
)

const systemPrompt = "You are a helpful assistant inside a video conference room. " +
	"Answer briefly. The conversation so far is provided as context."

type Client struct {
	apiKey  string
	baseURL string
	model   string
	http    *http.Client
}

func New(apiKey, baseURL, model string) *Client {
	return &Client{
		apiKey:  apiKey,
		baseURL: baseURL,
		model:   model,
		http:    &http.Client{Timeout: 30 * time.Second},
	}
}

// Available reports whether the assistant can serve requests. Queried once
// at session start by clients.
func (c *Client) Available() bool {
	return c != nil && c.apiKey != ""
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

// Reply answers text using the room's conversation context.
func (c *Client) Reply(ctx context.Context, history []registry.ChatRecord, text string) (string, error) {
	if !c.Available() {
		return "", fmt.Errorf("assistant not configured")
	}

	messages := []chatMessage{{Role: "system", Content: systemPrompt}}
	for _, rec := range history {
		messages = append(messages, chatMessage{
			Role:    "user",
			Content: fmt.Sprintf("%s: %s", rec.DisplayName, rec.Text),
		})
	}
	messages = append(messages, chatMessage{Role: "user", Content: text})

	body, err := json.Marshal(chatRequest{Model: c.model, Messages: messages})
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("assistant request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("assistant request: status %d", resp.StatusCode)
	}

	var parsed chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", fmt.Errorf("assistant response: %w", err)
	}
	if len(parsed.Choices) == 0 {
		return "", fmt.Errorf("assistant response: no choices")
	}
	return parsed.Choices[0].Message.Content, nil
}
