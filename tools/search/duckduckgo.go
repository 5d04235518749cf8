package search

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/go-resty/resty/v2"
)

// DefaultDuckDuckGoBaseURL is the HTML-only DuckDuckGo endpoint.
const DefaultDuckDuckGoBaseURL = "https://html.duckduckgo.com"

const browserUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0 Safari/537.36"

// DuckDuckGo scrapes the HTML results page. It needs no credentials.
type DuckDuckGo struct {
	client *resty.Client
}

// NewDuckDuckGo creates a DuckDuckGo backend.
func NewDuckDuckGo(optFns ...func(o *Options)) *DuckDuckGo {
	opts := Options{
		BaseURL:   DefaultDuckDuckGoBaseURL,
		Timeout:   30 * time.Second,
		UserAgent: browserUserAgent,
	}
	for _, fn := range optFns {
		fn(&opts)
	}

	return &DuckDuckGo{client: newClient(opts)}
}

// Name implements Backend.
func (d *DuckDuckGo) Name() string { return "duckduckgo" }

// Search implements Backend.
func (d *DuckDuckGo) Search(ctx context.Context, query string, limit int) ([]Result, error) {
	resp, err := d.client.R().
		SetContext(ctx).
		SetFormData(map[string]string{"q": query}).
		Post("/html/")
	if err != nil {
		return nil, fmt.Errorf("failed to fetch results: %w", err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("HTTP error %d when fetching results", resp.StatusCode())
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(resp.Body()))
	if err != nil {
		return nil, fmt.Errorf("failed to parse HTML: %w", err)
	}

	return parseDuckDuckGo(doc, limit), nil
}

func parseDuckDuckGo(doc *goquery.Document, limit int) []Result {
	var results []Result
	doc.Find(".result").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		if s.HasClass("result--ad") {
			return true
		}
		anchor := s.Find("a.result__a").First()
		title := strings.TrimSpace(anchor.Text())
		href, ok := anchor.Attr("href")
		if title == "" || !ok {
			return true
		}

		results = append(results, Result{
			Title:   title,
			Link:    resolveRedirect(href),
			Snippet: strings.TrimSpace(s.Find(".result__snippet").First().Text()),
		})
		return limit <= 0 || len(results) < limit
	})
	return results
}

// resolveRedirect unwraps DuckDuckGo's //duckduckgo.com/l/?uddg=<target> links.
func resolveRedirect(href string) string {
	u, err := url.Parse(href)
	if err != nil {
		return href
	}
	if target := u.Query().Get("uddg"); target != "" {
		return target
	}
	if u.Scheme == "" && strings.HasPrefix(href, "//") {
		return "https:" + href
	}
	return href
}
