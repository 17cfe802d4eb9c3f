package tools

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

const serperURL = "https://google.serper.dev/search"

// Serper queries Google through serper.dev.
type Serper struct {
	APIKey  string
	BaseURL string
	Timeout time.Duration
	Client  Doer
}

func NewSerper(apiKey string, timeout time.Duration) *Serper {
	return &Serper{APIKey: apiKey, BaseURL: serperURL, Timeout: timeout, Client: http.DefaultClient}
}

type serperResponse struct {
	Organic []struct {
		Title   string `json:"title"`
		Link    string `json:"link"`
		Snippet string `json:"snippet"`
	} `json:"organic"`
}

func (s *Serper) Search(ctx context.Context, query string, f Filters) ([]SearchResult, error) {
	if s.APIKey == "" {
		return nil, fmt.Errorf("serper: missing API key")
	}
	if s.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.Timeout)
		defer cancel()
	}

	payload := map[string]any{"q": query}
	if f.Country != "" {
		payload["gl"] = f.Country
	}
	if f.Language != "" {
		payload["hl"] = f.Language
	}
	if f.DateRange != "" {
		payload["tbs"] = f.DateRange
	}
	if f.Limit > 0 {
		payload["num"] = f.Limit
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("serper: encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.BaseURL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("serper: build request: %w", err)
	}
	req.Header.Set("X-API-KEY", s.APIKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("serper: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("serper: status %d: %s", resp.StatusCode, truncate(string(raw), 300))
	}

	var parsed serperResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("serper: decode response: %w", err)
	}

	results := make([]SearchResult, 0, len(parsed.Organic))
	for _, o := range parsed.Organic {
		if o.Link == "" {
			continue
		}
		results = append(results, SearchResult{Title: o.Title, Link: o.Link, Snippet: o.Snippet})
	}
	return results, nil
}
