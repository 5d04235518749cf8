package search

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/go-resty/resty/v2"
)

// DefaultGoogleBaseURL is the Custom Search JSON API endpoint.
const DefaultGoogleBaseURL = "https://www.googleapis.com"

// Google queries the Custom Search JSON API (requires an API key and a
// programmable search engine id).
type Google struct {
	client *resty.Client
	apiKey string
	cseID  string
}

type googleResponse struct {
	Items []struct {
		Title   string `json:"title"`
		Link    string `json:"link"`
		Snippet string `json:"snippet"`
	} `json:"items"`
	Error *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// NewGoogle creates a Google backend.
func NewGoogle(apiKey, cseID string, optFns ...func(o *Options)) *Google {
	opts := Options{BaseURL: DefaultGoogleBaseURL, Timeout: 30 * time.Second}
	for _, fn := range optFns {
		fn(&opts)
	}

	return &Google{client: newClient(opts), apiKey: apiKey, cseID: cseID}
}

// Name implements Backend.
func (g *Google) Name() string { return "google" }

// Search implements Backend.
func (g *Google) Search(ctx context.Context, query string, limit int) ([]Result, error) {
	if g.apiKey == "" || g.cseID == "" {
		return nil, fmt.Errorf("google search requires GOOGLE_API_KEY and GOOGLE_CSE_ID")
	}
	// at most 10 results per page
	if limit <= 0 || limit > 10 {
		limit = 10
	}

	var out googleResponse
	resp, err := g.client.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"key": g.apiKey,
			"cx":  g.cseID,
			"q":   query,
			"num": strconv.Itoa(limit),
		}).
		SetResult(&out).
		SetError(&out).
		Get("/customsearch/v1")
	if err != nil {
		return nil, fmt.Errorf("failed to call custom search: %w", err)
	}
	if resp.IsError() {
		if out.Error != nil {
			return nil, fmt.Errorf("custom search HTTP %d: %s", resp.StatusCode(), out.Error.Message)
		}
		return nil, fmt.Errorf("custom search HTTP %d", resp.StatusCode())
	}

	results := make([]Result, 0, len(out.Items))
	for _, item := range out.Items {
		results = append(results, Result{Title: item.Title, Link: item.Link, Snippet: item.Snippet})
	}
	return results, nil
}
