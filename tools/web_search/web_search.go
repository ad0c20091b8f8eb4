package web_search

import (
	"context"
	"errors"
	"time"

	"golang.org/x/time/rate"

	"github.com/mohammad-safakhou/tradescope/internal/httpclient"
	"github.com/mohammad-safakhou/tradescope/tools/web_search/brave"
	"github.com/mohammad-safakhou/tradescope/tools/web_search/gnews"
	"github.com/mohammad-safakhou/tradescope/tools/web_search/models"
	"github.com/mohammad-safakhou/tradescope/tools/web_search/newsapi"
	"github.com/mohammad-safakhou/tradescope/tools/web_search/serper"
)

// WebSearcher returns up to limit results for a free-text query.
type WebSearcher interface {
	Search(ctx context.Context, query string, limit int) ([]models.Result, error)
}

type Provider string

const (
	GNewsProvider   Provider = "gnews"
	NewsAPIProvider Provider = "newsapi"
	SerperProvider  Provider = "serper"
	BraveProvider   Provider = "brave"
)

var (
	ErrUnsupportedProvider = errors.New("unsupported search provider")
	ErrMissingAPIKey       = errors.New("search provider api key not set")
)

// Options carries the per-backend settings NewWebSearcher needs.
type Options struct {
	APIKey   string
	Endpoint string
	Language string
	Region   string
	Timeout  time.Duration
	// RequestsPerSecond paces outbound calls; zero disables pacing.
	RequestsPerSecond float64
}

func NewWebSearcher(provider Provider, opts Options) (WebSearcher, error) {
	if opts.APIKey == "" {
		return nil, ErrMissingAPIKey
	}
	// retries are handled by the caller's backoff policy
	client := httpclient.New(opts.Timeout, 0, 0)

	var s WebSearcher
	switch provider {
	case GNewsProvider:
		s = gnews.Search{ApiKey: opts.APIKey, Endpoint: opts.Endpoint, Language: opts.Language, Country: opts.Region, Period: 7 * 24 * time.Hour, Client: client}
	case NewsAPIProvider:
		s = newsapi.Search{ApiKey: opts.APIKey, Endpoint: opts.Endpoint, Language: opts.Language, Client: client}
	case SerperProvider:
		s = serper.Search{ApiKey: opts.APIKey, Endpoint: opts.Endpoint, Region: opts.Region, Client: client}
	case BraveProvider:
		s = brave.Search{ApiKey: opts.APIKey, Endpoint: opts.Endpoint, Region: opts.Region, Client: client}
	default:
		return nil, ErrUnsupportedProvider
	}
	if opts.RequestsPerSecond > 0 {
		s = Paced(s, opts.RequestsPerSecond)
	}
	return s, nil
}

type paced struct {
	next    WebSearcher
	limiter *rate.Limiter
}

// Paced wraps s so that calls never exceed rps per second.
func Paced(s WebSearcher, rps float64) WebSearcher {
	return &paced{next: s, limiter: rate.NewLimiter(rate.Limit(rps), 1)}
}

func (p *paced) Search(ctx context.Context, query string, limit int) ([]models.Result, error) {
	if err := p.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	return p.next.Search(ctx, query, limit)
}
