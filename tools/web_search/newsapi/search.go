package newsapi

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/mohammad-safakhou/tradescope/internal/httpclient"
	"github.com/mohammad-safakhou/tradescope/tools/web_search/models"
)

const defaultEndpoint = "https://newsapi.org/v2/everything"

type Article struct {
	Source struct {
		Name string `json:"name"`
	} `json:"source"`
	Author      string    `json:"author"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Content     string    `json:"content"`
	URL         string    `json:"url"`
	PublishedAt time.Time `json:"publishedAt"`
}

type response struct {
	Status       string    `json:"status"`
	Code         string    `json:"code"`
	Message      string    `json:"message"`
	TotalResults int       `json:"totalResults"`
	Articles     []Article `json:"articles"`
}

// Search queries newsapi.org's /v2/everything endpoint.
type Search struct {
	ApiKey   string
	Endpoint string
	Language string
	Client   *httpclient.Client
}

func (n Search) Search(ctx context.Context, q string, k int) ([]models.Result, error) {
	params := url.Values{}
	params.Add("q", q)
	params.Add("pageSize", strconv.Itoa(k))
	params.Add("sortBy", "publishedAt")
	if n.Language != "" {
		params.Add("language", n.Language)
	}
	headers := map[string]string{"X-Api-Key": n.ApiKey}
	endpoint := n.Endpoint
	if endpoint == "" {
		endpoint = defaultEndpoint
	}

	var result response
	if err := n.Client.DoJSON(ctx, http.MethodGet, fmt.Sprintf("%s?%s", endpoint, params.Encode()), headers, nil, &result); err != nil {
		return nil, fmt.Errorf("newsapi: %w", err)
	}
	if result.Status != "" && result.Status != "ok" {
		return nil, fmt.Errorf("newsapi error %s: %s", result.Code, result.Message)
	}

	out := make([]models.Result, 0, len(result.Articles))
	for i, a := range result.Articles {
		if i >= k {
			break
		}
		body := a.Description
		if body == "" {
			body = a.Content
		}
		out = append(out, models.Result{
			Title:     a.Title,
			Body:      body,
			Source:    a.Source.Name,
			URL:       a.URL,
			Published: a.PublishedAt,
		})
	}
	return out, nil
}
