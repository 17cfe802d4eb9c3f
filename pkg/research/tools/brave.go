package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

const braveURL = "https://api.search.brave.com/res/v1/web/search"

type Brave struct {
	APIKey  string
	BaseURL string
	Timeout time.Duration
	Client  Doer
}

func NewBrave(apiKey string, timeout time.Duration) *Brave {
	return &Brave{APIKey: apiKey, BaseURL: braveURL, Timeout: timeout, Client: http.DefaultClient}
}

func (b *Brave) Search(ctx context.Context, query string, f Filters) ([]SearchResult, error) {
	if b.APIKey == "" {
		return nil, fmt.Errorf("brave: missing API key")
	}
	if b.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, b.Timeout)
		defer cancel()
	}

	params := url.Values{}
	params.Set("q", query)
	if f.Limit > 0 {
		params.Set("count", strconv.Itoa(f.Limit))
	}
	if f.Country != "" {
		params.Set("country", f.Country)
	}
	if f.Language != "" {
		params.Set("search_lang", f.Language)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, b.BaseURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("brave: build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Subscription-Token", b.APIKey)

	resp, err := b.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("brave: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("brave: status %d: %s", resp.StatusCode, truncate(string(raw), 300))
	}

	var parsed struct {
		Web struct {
			Results []struct {
				Title       string `json:"title"`
				URL         string `json:"url"`
				Description string `json:"description"`
			} `json:"results"`
		} `json:"web"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("brave: decode response: %w", err)
	}

	results := make([]SearchResult, 0, len(parsed.Web.Results))
	for _, r := range parsed.Web.Results {
		if r.URL == "" {
			continue
		}
		results = append(results, SearchResult{Title: r.Title, Link: r.URL, Snippet: r.Description})
	}
	return results, nil
}
