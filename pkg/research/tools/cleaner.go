package tools

import (
	"net/url"
	"strings"

	"github.com/go-shiori/go-readability"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// Cleaner turns raw page markup into plain text.
type Cleaner interface {
	Clean(raw, pageURL string) string
}

// NewCleaner returns the cleaner for a mode name: "readability" or "text" (default).
func NewCleaner(mode string) Cleaner {
	if mode == "readability" {
		return ReadabilityCleaner{}
	}
	return TextCleaner{}
}

// TextCleaner keeps every text node except those inside script, style,
// noscript and template elements, one node per line.
type TextCleaner struct{}

func (TextCleaner) Clean(raw, _ string) string {
	doc, err := html.Parse(strings.NewReader(raw))
	if err != nil {
		return strings.TrimSpace(raw)
	}

	var lines []string
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			switch n.DataAtom {
			case atom.Script, atom.Style, atom.Noscript, atom.Template:
				return
			}
		}
		if n.Type == html.TextNode {
			if t := strings.TrimSpace(n.Data); t != "" {
				lines = append(lines, t)
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)
	return strings.Join(lines, "\n")
}

// ReadabilityCleaner extracts the main article text and falls back to
// TextCleaner when extraction fails or finds nothing.
type ReadabilityCleaner struct{}

func (ReadabilityCleaner) Clean(raw, pageURL string) string {
	u, err := url.Parse(pageURL)
	if err != nil {
		u = &url.URL{}
	}
	article, err := readability.FromReader(strings.NewReader(raw), u)
	if err == nil {
		if text := strings.TrimSpace(article.TextContent); text != "" {
			return text
		}
	}
	return TextCleaner{}.Clean(raw, pageURL)
}
