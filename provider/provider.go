package provider

import (
	"context"
	"errors"
	"time"

	"github.com/mohammad-safakhou/tradescope/internal/httpclient"
	openai_provider "github.com/mohammad-safakhou/tradescope/provider/openai"
)

// Client represents different LLM providers
type Client string

const (
	OpenAI    Client = "openai"
	Anthropic Client = "anthropic"
	Gemini    Client = "gemini"
)

// Format selects between free text and a JSON object response.
type Format = openai_provider.Format

const (
	FormatText = openai_provider.FormatText
	FormatJSON = openai_provider.FormatJSON
)

// Request is a single-turn completion request.
type Request = openai_provider.Request

// ErrEmptyResponse is returned when the model produced no content.
var ErrEmptyResponse = openai_provider.ErrEmptyResponse

// Provider is the interface that all LLM implementations must satisfy
type Provider interface {
	Complete(ctx context.Context, req Request) (string, error)
}

// Options configures a provider instance.
type Options struct {
	APIKey  string
	BaseURL string
	Timeout time.Duration
	Retries int
}

// NewProvider creates a new LLM client based on the provided configuration
func NewProvider(client Client, opts Options) (Provider, error) {
	switch client {
	case OpenAI:
		if opts.APIKey == "" {
			return nil, errors.New("openai api key not set")
		}
		hc := httpclient.New(opts.Timeout, opts.Retries, time.Second)
		return openai_provider.NewOpenAIClient(opts.APIKey, opts.BaseURL, hc), nil
	case Anthropic:
		return nil, errors.New("anthropic client not implemented yet")
	case Gemini:
		return nil, errors.New("gemini client not implemented yet")
	default:
		return nil, errors.New("unsupported LLM provider")
	}
}
