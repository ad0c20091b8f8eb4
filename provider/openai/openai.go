package openai_provider

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/mohammad-safakhou/tradescope/internal/httpclient"
)

const defaultBaseURL = "https://api.openai.com/v1"

// ErrEmptyResponse is returned when the completion has no content.
var ErrEmptyResponse = errors.New("empty completion")

type Format string

const (
	FormatText Format = "text"
	FormatJSON Format = "json_object"
)

// Request describes one system+user completion.
type Request struct {
	System      string
	User        string
	Model       string
	Temperature float64
	MaxTokens   int
	Format      Format
}

// Message represents a message in a conversation
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type responseFormat struct {
	Type string `json:"type"`
}

// request represents a request to the chat completions API
type request struct {
	Model          string          `json:"model"`
	Messages       []Message       `json:"messages"`
	Temperature    float64         `json:"temperature"`
	MaxTokens      int             `json:"max_tokens,omitempty"`
	ResponseFormat *responseFormat `json:"response_format,omitempty"`
}

// response represents a response from the chat completions API
type response struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
}

// client implements provider.Provider against an OpenAI compatible endpoint
type client struct {
	apiKey  string
	baseURL string
	http    *httpclient.Client
}

// NewOpenAIClient creates a new OpenAI client
func NewOpenAIClient(apiKey, baseURL string, hc *httpclient.Client) *client {
	baseURL = strings.TrimRight(baseURL, "/")
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	return &client{apiKey: apiKey, baseURL: baseURL, http: hc}
}

func (c *client) Complete(ctx context.Context, r Request) (string, error) {
	body := request{
		Model:       r.Model,
		Temperature: r.Temperature,
		MaxTokens:   r.MaxTokens,
	}
	if r.System != "" {
		body.Messages = append(body.Messages, Message{Role: "system", Content: r.System})
	}
	body.Messages = append(body.Messages, Message{Role: "user", Content: r.User})
	if r.Format == FormatJSON {
		body.ResponseFormat = &responseFormat{Type: string(FormatJSON)}
	}

	headers := map[string]string{"Authorization": "Bearer " + c.apiKey}
	var out response
	if err := c.http.DoJSON(ctx, http.MethodPost, c.baseURL+"/chat/completions", headers, body, &out); err != nil {
		return "", fmt.Errorf("chat completion (%s): %w", r.Model, err)
	}
	if len(out.Choices) == 0 {
		return "", ErrEmptyResponse
	}
	content := strings.TrimSpace(out.Choices[0].Message.Content)
	if content == "" {
		return "", ErrEmptyResponse
	}
	return content, nil
}
