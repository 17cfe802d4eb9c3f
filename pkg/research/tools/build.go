package tools

import (
	"log/slog"

	"github.com/mikeboe/osint-helper/pkg/cache"
	"github.com/mikeboe/osint-helper/pkg/config"
)

// NewSearcher assembles the configured search backends in order.
func NewSearcher(cfg config.SearchConfig, logger *slog.Logger) *MultiSearch {
	if logger == nil {
		logger = slog.Default()
	}
	m := &MultiSearch{Logger: logger}
	for _, name := range cfg.Backends {
		switch name {
		case "serper":
			m.Backends = append(m.Backends, NamedSearcher{Name: name, Searcher: NewSerper(cfg.SerperKey, cfg.Timeout)})
		case "brave":
			m.Backends = append(m.Backends, NamedSearcher{Name: name, Searcher: NewBrave(cfg.BraveKey, cfg.Timeout)})
		case "arxiv":
			m.Backends = append(m.Backends, NamedSearcher{Name: name, Searcher: NewArxiv(cfg.Timeout)})
		default:
			logger.Warn("Ignoring unknown search backend", "backend", name)
		}
	}
	return m
}

// NewScraper assembles the scrape chain. The direct fetch is always last.
// A nil cache disables memoization.
func NewScraper(cfg config.ScrapeConfig, c cache.Cache, logger *slog.Logger) Scraper {
	if logger == nil {
		logger = slog.Default()
	}
	chain := &ChainScraper{Logger: logger}
	for _, name := range cfg.Chain {
		switch name {
		case "scrapingbee":
			chain.Backends = append(chain.Backends, NamedScraper{Name: name, Scraper: NewScrapingBee(cfg.ScrapingBeeKey, cfg.Timeout)})
		case "ocr":
			chain.Backends = append(chain.Backends, NamedScraper{Name: name, Scraper: NewOCRScraper(cfg.MistralKey, cfg.Timeout)})
		case "chrome":
			chain.Backends = append(chain.Backends, NamedScraper{Name: name, Scraper: &ChromeScraper{UserAgent: cfg.UserAgent, Timeout: cfg.ChromeTimeout}})
		case "direct":
		default:
			logger.Warn("Ignoring unknown scrape backend", "backend", name)
		}
	}
	chain.Backends = append(chain.Backends, NamedScraper{Name: "direct", Scraper: NewDirectScraper(cfg.UserAgent, cfg.Timeout)})

	if c == nil {
		return chain
	}
	return &CachedScraper{Next: chain, Cache: c, Logger: logger}
}
