package tools

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/mikeboe/osint-helper/pkg/cache"
)

const maxBodyBytes = 5 << 20

var (
	// ErrSkipped means a backend does not handle this kind of URL.
	ErrSkipped   = errors.New("not applicable")
	ErrEmptyBody = errors.New("empty body")
)

// Scraper returns the raw markup (or text) of a page.
type Scraper interface {
	Fetch(ctx context.Context, url string) (string, error)
}

type NamedScraper struct {
	Name string
	Scraper
}

// ChainScraper tries backends in a fixed priority order and returns the first
// non-empty body.
type ChainScraper struct {
	Backends []NamedScraper
	Logger   *slog.Logger
}

func (c *ChainScraper) Fetch(ctx context.Context, target string) (string, error) {
	logger := c.Logger
	if logger == nil {
		logger = slog.Default()
	}

	var errs []error
	for _, b := range c.Backends {
		body, err := b.Fetch(ctx, target)
		if err == nil && strings.TrimSpace(body) == "" {
			err = ErrEmptyBody
		}
		if err == nil {
			logger.Debug("Fetched page", "backend", b.Name, "url", target, "bytes", len(body))
			return body, nil
		}
		if errors.Is(err, ErrSkipped) {
			continue
		}
		logger.Warn("Scrape backend failed", "backend", b.Name, "url", target, "error", err)
		errs = append(errs, fmt.Errorf("%s: %w", b.Name, err))
		if ctx.Err() != nil {
			break
		}
	}
	if len(errs) == 0 {
		return "", fmt.Errorf("no scrape backend accepted %s", target)
	}
	return "", errors.Join(errs...)
}

// DirectScraper is the unauthenticated last resort.
type DirectScraper struct {
	UserAgent string
	Timeout   time.Duration
	Client    Doer
}

func NewDirectScraper(userAgent string, timeout time.Duration) *DirectScraper {
	return &DirectScraper{UserAgent: userAgent, Timeout: timeout, Client: http.DefaultClient}
}

func (d *DirectScraper) Fetch(ctx context.Context, target string) (string, error) {
	if d.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.Timeout)
		defer cancel()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return "", err
	}
	if d.UserAgent != "" {
		req.Header.Set("User-Agent", d.UserAgent)
	}
	return readBody(d.Client, req)
}

// ScrapingBee renders pages through app.scrapingbee.com.
type ScrapingBee struct {
	APIKey  string
	BaseURL string
	Timeout time.Duration
	Client  Doer
}

func NewScrapingBee(apiKey string, timeout time.Duration) *ScrapingBee {
	return &ScrapingBee{APIKey: apiKey, BaseURL: "https://app.scrapingbee.com/api/v1/", Timeout: timeout, Client: http.DefaultClient}
}

func (s *ScrapingBee) Fetch(ctx context.Context, target string) (string, error) {
	if s.APIKey == "" {
		return "", ErrSkipped
	}
	if s.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.Timeout)
		defer cancel()
	}
	params := url.Values{}
	params.Set("api_key", s.APIKey)
	params.Set("url", target)
	params.Set("render_js", "true")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.BaseURL+"?"+params.Encode(), nil)
	if err != nil {
		return "", err
	}
	return readBody(s.Client, req)
}

func readBody(client Doer, req *http.Request) (string, error) {
	resp, err := client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return "", fmt.Errorf("read body: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", fmt.Errorf("status %d: %s", resp.StatusCode, truncate(string(body), 200))
	}
	return string(body), nil
}

// CachedScraper memoizes bodies by URL. Cache failures only cost a refetch.
type CachedScraper struct {
	Next   Scraper
	Cache  cache.Cache
	Logger *slog.Logger
}

func (c *CachedScraper) Fetch(ctx context.Context, target string) (string, error) {
	logger := c.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if body, ok, err := c.Cache.Get(ctx, target); err != nil {
		logger.Warn("Page cache read failed", "url", target, "error", err)
	} else if ok {
		return body, nil
	}

	body, err := c.Next.Fetch(ctx, target)
	if err != nil {
		return "", err
	}
	if err := c.Cache.Set(ctx, target, body); err != nil {
		logger.Warn("Page cache write failed", "url", target, "error", err)
	}
	return body, nil
}
