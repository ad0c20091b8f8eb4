package gnews

import (
	"context"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/mohammad-safakhou/tradescope/internal/httpclient"
	"github.com/mohammad-safakhou/tradescope/tools/web_search/models"
)

const defaultEndpoint = "https://gnews.io/api/v4/search"

// Search queries the GNews v4 search endpoint.
type Search struct {
	ApiKey   string
	Endpoint string
	Language string
	Country  string
	// Period limits results to articles newer than now-Period; zero disables it.
	Period time.Duration
	Client *httpclient.Client
}

type article struct {
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Content     string    `json:"content"`
	URL         string    `json:"url"`
	PublishedAt time.Time `json:"publishedAt"`
	Source      struct {
		Name string `json:"name"`
		URL  string `json:"url"`
	} `json:"source"`
}

func (s Search) Search(ctx context.Context, q string, k int) ([]models.Result, error) {
	endpoint := s.Endpoint
	if endpoint == "" {
		endpoint = defaultEndpoint
	}
	params := url.Values{}
	params.Set("q", q)
	params.Set("max", strconv.Itoa(k))
	params.Set("apikey", s.ApiKey)
	if s.Language != "" {
		params.Set("lang", s.Language)
	}
	if s.Country != "" {
		params.Set("country", s.Country)
	}
	if s.Period > 0 {
		params.Set("from", time.Now().Add(-s.Period).UTC().Format(time.RFC3339))
	}

	var raw struct {
		TotalArticles int       `json:"totalArticles"`
		Articles      []article `json:"articles"`
	}
	if err := s.Client.DoJSON(ctx, http.MethodGet, endpoint+"?"+params.Encode(), nil, nil, &raw); err != nil {
		return nil, err
	}

	out := make([]models.Result, 0, len(raw.Articles))
	for i, a := range raw.Articles {
		if i >= k {
			break
		}
		body := a.Description
		if body == "" {
			body = a.Content
		}
		source := a.Source.Name
		if source == "" {
			source = models.HostOf(a.URL)
		}
		out = append(out, models.Result{Title: a.Title, Body: body, Source: source, URL: a.URL, Published: a.PublishedAt})
	}
	return out, nil
}
