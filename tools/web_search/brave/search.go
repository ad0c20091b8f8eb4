package brave

import (
	"context"
	"net/http"
	"net/url"
	"strconv"

	"github.com/mohammad-safakhou/tradescope/internal/httpclient"
	"github.com/mohammad-safakhou/tradescope/tools/web_search/models"
)

const defaultEndpoint = "https://api.search.brave.com/res/v1/web/search"

type Search struct {
	ApiKey   string
	Endpoint string
	Region   string
	Client   *httpclient.Client
}

func (s Search) Search(ctx context.Context, q string, k int) ([]models.Result, error) {
	// https://api.search.brave.com/app/documentation/web-search
	endpoint := s.Endpoint
	if endpoint == "" {
		endpoint = defaultEndpoint
	}
	params := url.Values{}
	params.Set("q", q)
	params.Set("count", strconv.Itoa(k))
	if s.Region != "" {
		params.Set("country", s.Region)
	}
	headers := map[string]string{"X-Subscription-Token": s.ApiKey}

	var raw struct {
		Web struct {
			Results []struct {
				Title   string `json:"title"`
				URL     string `json:"url"`
				Snippet string `json:"description"`
				Profile struct {
					Name string `json:"name"`
				} `json:"profile"`
			} `json:"results"`
		} `json:"web"`
	}
	if err := s.Client.DoJSON(ctx, http.MethodGet, endpoint+"?"+params.Encode(), headers, nil, &raw); err != nil {
		return nil, err
	}

	out := make([]models.Result, 0, len(raw.Web.Results))
	for i, r := range raw.Web.Results {
		if i >= k {
			break
		}
		source := r.Profile.Name
		if source == "" {
			source = models.HostOf(r.URL)
		}
		out = append(out, models.Result{Title: r.Title, URL: r.URL, Body: r.Snippet, Source: source})
	}
	return out, nil
}
