package serper

import (
	"context"
	"net/http"

	"github.com/mohammad-safakhou/tradescope/internal/httpclient"
	"github.com/mohammad-safakhou/tradescope/tools/web_search/models"
)

const defaultEndpoint = "https://google.serper.dev/search"

type Search struct {
	ApiKey   string
	Endpoint string
	Region   string
	Client   *httpclient.Client
}

func (s Search) Search(ctx context.Context, q string, k int) ([]models.Result, error) {
	// https://serper.dev/ docs
	endpoint := s.Endpoint
	if endpoint == "" {
		endpoint = defaultEndpoint
	}
	payload := map[string]any{"q": q, "num": k}
	if s.Region != "" {
		payload["gl"] = s.Region
	}

	var raw struct {
		Organic []struct {
			Title   string `json:"title"`
			Link    string `json:"link"`
			Snippet string `json:"snippet"`
			Date    string `json:"date"`
		} `json:"organic"`
	}
	headers := map[string]string{"X-API-KEY": s.ApiKey}
	if err := s.Client.DoJSON(ctx, http.MethodPost, endpoint, headers, payload, &raw); err != nil {
		return nil, err
	}

	out := make([]models.Result, 0, len(raw.Organic))
	for i, it := range raw.Organic {
		if i >= k {
			break
		}
		out = append(out, models.Result{
			Title: it.Title, Body: it.Snippet, URL: it.Link, Source: models.HostOf(it.Link),
		})
	}
	return out, nil
}
