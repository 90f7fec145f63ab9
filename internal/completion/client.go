package completion

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/spec-kit/support-bot/internal/domain"
)

const (
	DefaultURL         = "https://router.huggingface.co/v1/chat/completions"
	DefaultModel       = "meta-llama/Llama-3.2-3B-Instruct:fastest"
	DefaultMaxTokens   = 400
	DefaultTemperature = 0.7
	DefaultTimeout     = 30 * time.Second

	historyWindow = 10
)

// ErrMissingCredential is returned without any network call when no API key is configured.
var ErrMissingCredential = errors.New("completion: api key not configured")

// ErrEmptyResponse is returned when the provider answers without usable message content.
var ErrEmptyResponse = errors.New("completion: response has no content")

// StatusError reports a non-200 provider response.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("completion: unexpected status %d: %s", e.StatusCode, e.Body)
}

// Options configure a Client.
type Options struct {
	APIKey    string
	URL       string
	Model     string
	MaxTokens int
	// Temperature falls back to DefaultTemperature when nil; zero is a valid setting.
	Temperature *float64
	Timeout     time.Duration
}

// Client calls an OpenAI compatible chat completions endpoint.
// A request is attempted once; failures are reported, never retried.
type Client struct {
	apiKey      string
	url         string
	model       string
	maxTokens   int
	temperature float64
	httpClient  *http.Client
}

// NewClient creates a client, applying defaults for unset options.
func NewClient(opts Options) *Client {
	if opts.URL == "" {
		opts.URL = DefaultURL
	}
	if opts.Model == "" {
		opts.Model = DefaultModel
	}
	if opts.MaxTokens <= 0 {
		opts.MaxTokens = DefaultMaxTokens
	}
	temperature := DefaultTemperature
	if opts.Temperature != nil {
		temperature = *opts.Temperature
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	return &Client{
		apiKey:      strings.TrimSpace(opts.APIKey),
		url:         opts.URL,
		model:       opts.Model,
		maxTokens:   opts.MaxTokens,
		temperature: temperature,
		httpClient:  &http.Client{Timeout: opts.Timeout},
	}
}

// Model returns the configured model identifier.
func (c *Client) Model() string {
	return c.model
}

// Complete sends the system prompt, the last ten history turns and the new message,
// returning the first choice's content.
func (c *Client) Complete(ctx context.Context, systemPrompt string, history []domain.ConversationMessage, newMessage string) (string, error) {
	if c.apiKey == "" {
		return "", ErrMissingCredential
	}

	body, err := json.Marshal(c.buildRequest(systemPrompt, history, newMessage))
	if err != nil {
		return "", fmt.Errorf("marshaling request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("executing request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return "", &StatusError{StatusCode: resp.StatusCode, Body: string(respBody)}
	}

	var parsed chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", fmt.Errorf("decoding response: %w", err)
	}
	if len(parsed.Choices) == 0 || parsed.Choices[0].Message == nil {
		return "", ErrEmptyResponse
	}
	content := strings.TrimSpace(parsed.Choices[0].Message.Content)
	if content == "" {
		return "", ErrEmptyResponse
	}
	return content, nil
}

func (c *Client) buildRequest(systemPrompt string, history []domain.ConversationMessage, newMessage string) chatRequest {
	if len(history) > historyWindow {
		history = history[len(history)-historyWindow:]
	}

	messages := make([]chatMessage, 0, len(history)+2)
	messages = append(messages, chatMessage{Role: "system", Content: systemPrompt})
	for _, msg := range history {
		messages = append(messages, chatMessage{Role: string(msg.Role), Content: msg.Content})
	}
	if newMessage != "" {
		messages = append(messages, chatMessage{Role: string(domain.RoleUser), Content: newMessage})
	}

	return chatRequest{
		Model:       c.model,
		Messages:    messages,
		MaxTokens:   c.maxTokens,
		Temperature: c.temperature,
	}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	MaxTokens   int           `json:"max_tokens"`
	Temperature float64       `json:"temperature"`
}

type chatResponse struct {
	Choices []struct {
		Message *chatMessage `json:"message"`
	} `json:"choices"`
}
