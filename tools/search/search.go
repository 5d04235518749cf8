// Package search provides the google_search tool backed by either the Google
// Custom Search JSON API or the key-less DuckDuckGo HTML endpoint.
package search

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/hupe1980/chatloop/core"
	"github.com/hupe1980/chatloop/tool"
)

// ToolName is the name the model uses to call the search tool.
const ToolName = "google_search"

// Result is a single search hit.
type Result struct {
	Title   string `json:"title"`
	Link    string `json:"link"`
	Snippet string `json:"snippet,omitempty"`
}

// Backend runs a web search.
type Backend interface {
	Name() string
	Search(ctx context.Context, query string, limit int) ([]Result, error)
}

// Options configures the HTTP client of a backend.
type Options struct {
	BaseURL   string
	Timeout   time.Duration
	UserAgent string
}

func newClient(opts Options) *resty.Client {
	client := resty.New()
	client.SetBaseURL(opts.BaseURL)
	client.SetTimeout(opts.Timeout)
	if opts.UserAgent != "" {
		client.SetHeader("User-Agent", opts.UserAgent)
	}
	return client
}

// ToolOptions configures the search tool.
type ToolOptions struct {
	// MaxResults caps the number of results returned to the model.
	MaxResults int
}

// Tool exposes a Backend as the google_search tool.
type Tool struct {
	backend Backend
	opts    ToolOptions
	schema  map[string]any
}

// maxResultsCap is the largest page the Custom Search API returns.
const maxResultsCap = 10

// NewTool creates the search tool. MaxResults is both the default and the
// largest max_results a caller may ask for.
func NewTool(backend Backend, optFns ...func(o *ToolOptions)) *Tool {
	opts := ToolOptions{MaxResults: 5}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.MaxResults <= 0 {
		opts.MaxResults = 5
	}
	opts.MaxResults = min(opts.MaxResults, maxResultsCap)

	return &Tool{
		backend: backend,
		opts:    opts,
		schema: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"query": map[string]any{
					"type":        "string",
					"minLength":   1,
					"description": "The search query",
				},
				"max_results": map[string]any{
					"type":        "integer",
					"minimum":     1,
					"maximum":     opts.MaxResults,
					"description": fmt.Sprintf("Maximum number of results (default and upper bound %d)", opts.MaxResults),
				},
			},
			"required":             []string{"query"},
			"additionalProperties": false,
		},
	}
}

// Name implements tool.Tool.
func (t *Tool) Name() string { return ToolName }

// Description implements tool.Tool.
func (t *Tool) Description() string {
	return "Search Google for recent results. Returns a JSON list of {title, link, snippet}."
}

// Parameters implements tool.Tool.
func (t *Tool) Parameters() map[string]any { return t.schema }

// Call implements tool.Tool.
func (t *Tool) Call(tc *core.ToolContext, args map[string]any) (any, error) {
	query, _ := args["query"].(string)
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, tool.NewToolError(ToolName, "query must not be empty", tool.CodeInvalidArguments)
	}

	limit := t.opts.MaxResults
	if n := intArg(args["max_results"]); n > 0 && n < limit {
		limit = n
	}

	tc.LogDebug("search.query", "backend", t.backend.Name(), "query", query, "limit", limit)

	results, err := t.backend.Search(tc.Context(), query, limit)
	if err != nil {
		return nil, fmt.Errorf("%s search: %w", t.backend.Name(), err)
	}
	if len(results) > limit {
		results = results[:limit]
	}
	if results == nil {
		results = []Result{}
	}

	tc.SetState("search.last_query", query)

	return results, nil
}

func intArg(v any) int {
	switch n := v.(type) {
	case float64:
		return int(n)
	case int:
		return n
	case int64:
		return int(n)
	default:
		return 0
	}
}
