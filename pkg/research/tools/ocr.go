package tools

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
)

type PdfScrapeResponsePage struct {
	Index    int    `json:"index"`
	Markdown string `json:"markdown"`
}

type OcrResponse struct {
	Pages []PdfScrapeResponsePage `json:"pages"`
}

// OCRScraper extracts PDF documents as text using the Mistral OCR API.
// Other URLs are skipped.
type OCRScraper struct {
	APIKey  string
	BaseURL string
	Timeout time.Duration
	Client  Doer
}

func NewOCRScraper(apiKey string, timeout time.Duration) *OCRScraper {
	return &OCRScraper{APIKey: apiKey, BaseURL: "https://api.mistral.ai/v1/ocr", Timeout: timeout, Client: http.DefaultClient}
}

func isPDF(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	return strings.HasSuffix(strings.ToLower(u.Path), ".pdf")
}

func (o *OCRScraper) Fetch(ctx context.Context, target string) (string, error) {
	if o.APIKey == "" || !isPDF(target) {
		return "", ErrSkipped
	}
	if o.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, o.Timeout)
		defer cancel()
	}
	target = strings.Replace(target, "http://", "https://", 1)

	reqBody, err := json.Marshal(map[string]any{
		"model": "mistral-ocr-latest",
		"document": map[string]string{
			"type":         "document_url",
			"document_url": target,
		},
	})
	if err != nil {
		return "", fmt.Errorf("failed to marshal request body: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, o.BaseURL, bytes.NewReader(reqBody))
	if err != nil {
		return "", fmt.Errorf("failed to create HTTP request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+o.APIKey)

	body, err := readBody(o.Client, req)
	if err != nil {
		return "", err
	}

	var ocr OcrResponse
	if err := json.Unmarshal([]byte(body), &ocr); err != nil {
		return "", fmt.Errorf("failed to unmarshal OCR response: %w", err)
	}

	var sb strings.Builder
	for _, page := range ocr.Pages {
		sb.WriteString(page.Markdown)
		sb.WriteString("\n\n")
	}
	return sb.String(), nil
}
