package tools

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"
)

// DefaultProfileSites are profile URL templates; {username} is substituted.
var DefaultProfileSites = []string{
	"https://github.com/{username}",
	"https://gitlab.com/{username}",
	"https://www.reddit.com/user/{username}",
	"https://x.com/{username}",
	"https://www.instagram.com/{username}/",
	"https://medium.com/@{username}",
	"https://keybase.io/{username}",
	"https://news.ycombinator.com/user?id={username}",
}

// UsernameHit is the outcome for one site.
type UsernameHit struct {
	URL    string `json:"url"`
	Status string `json:"status"` // "found", "not found" or "error: ..."
}

// UsernameChecker looks for a username on a list of sites concurrently.
type UsernameChecker struct {
	UserAgent   string
	Timeout     time.Duration
	Concurrency int
	Client      Doer
	Logger      *slog.Logger
}

func NewUsernameChecker(userAgent string, timeout time.Duration, concurrency int) *UsernameChecker {
	return &UsernameChecker{UserAgent: userAgent, Timeout: timeout, Concurrency: concurrency, Client: http.DefaultClient}
}

// Check requests every site and reports whether the page mentions the
// username. Results keep the order of sites.
func (u *UsernameChecker) Check(ctx context.Context, username string, sites []string) []UsernameHit {
	if len(sites) == 0 {
		sites = DefaultProfileSites
	}
	logger := u.Logger
	if logger == nil {
		logger = slog.Default()
	}

	hits := make([]UsernameHit, len(sites))
	g, gctx := errgroup.WithContext(ctx)
	if u.Concurrency > 0 {
		g.SetLimit(u.Concurrency)
	}
	for i, site := range sites {
		target := strings.ReplaceAll(site, "{username}", username)
		g.Go(func() error {
			hits[i] = UsernameHit{URL: target, Status: u.checkOne(gctx, target, username)}
			return nil
		})
	}
	_ = g.Wait()

	logger.Info("Username search finished", "username", username, "sites", len(sites))
	return hits
}

func (u *UsernameChecker) checkOne(ctx context.Context, target, username string) string {
	if u.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, u.Timeout)
		defer cancel()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return fmt.Sprintf("error: %v", err)
	}
	if u.UserAgent != "" {
		req.Header.Set("User-Agent", u.UserAgent)
	}
	resp, err := u.Client.Do(req)
	if err != nil {
		return fmt.Sprintf("error: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return "not found"
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return fmt.Sprintf("error: %v", err)
	}
	if strings.Contains(strings.ToLower(string(body)), strings.ToLower(username)) {
		return "found"
	}
	return "not found"
}
