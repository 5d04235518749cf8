// Package railway provides Indian Railways tools backed by the IRCTC API on
// RapidAPI: searching trains between two stations and checking seat
// availability on one of them.
package railway

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
)

const (
	// DefaultBaseURL is the RapidAPI IRCTC endpoint.
	DefaultBaseURL = "https://irctc1.p.rapidapi.com"
	// DefaultHost is sent as x-rapidapi-host.
	DefaultHost = "irctc1.p.rapidapi.com"

	// DefaultQuota is the general booking quota.
	DefaultQuota = "GN"
	// DefaultClass is sleeper class.
	DefaultClass = "SL"
)

// Options configures a Client.
type Options struct {
	BaseURL string
	Host    string
	Timeout time.Duration
}

// Client calls the IRCTC RapidAPI endpoints.
type Client struct {
	client *resty.Client
}

// NewClient creates a client authenticated with a RapidAPI key.
func NewClient(apiKey string, optFns ...func(o *Options)) *Client {
	opts := Options{BaseURL: DefaultBaseURL, Host: DefaultHost, Timeout: 30 * time.Second}
	for _, fn := range optFns {
		fn(&opts)
	}

	client := resty.New()
	client.SetBaseURL(opts.BaseURL)
	client.SetTimeout(opts.Timeout)
	client.SetHeader("x-rapidapi-key", apiKey)
	client.SetHeader("x-rapidapi-host", opts.Host)

	return &Client{client: client}
}

// SeatQuery selects a train, segment, date, quota and class.
type SeatQuery struct {
	TrainNumber string
	From        string
	To          string
	Date        string
	Quota       string
	Class       string
}

// TrainsBetweenStations lists trains running between two station codes on date (YYYY-MM-DD).
func (c *Client) TrainsBetweenStations(ctx context.Context, from, to, date string) (json.RawMessage, error) {
	return c.get(ctx, "/api/v3/trainBetweenStations", map[string]string{
		"fromStationCode": from,
		"toStationCode":   to,
		"dateOfJourney":   date,
	})
}

// SeatAvailability checks availability for q. Quota and Class default to GN and SL.
func (c *Client) SeatAvailability(ctx context.Context, q SeatQuery) (json.RawMessage, error) {
	if q.Quota == "" {
		q.Quota = DefaultQuota
	}
	if q.Class == "" {
		q.Class = DefaultClass
	}

	return c.get(ctx, "/api/v1/checkSeatAvailability", map[string]string{
		"fromStationCode": q.From,
		"toStationCode":   q.To,
		"trainNo":         q.TrainNumber,
		"date":            q.Date,
		"quota":           q.Quota,
		"classType":       q.Class,
	})
}

func (c *Client) get(ctx context.Context, path string, params map[string]string) (json.RawMessage, error) {
	resp, err := c.client.R().
		SetContext(ctx).
		SetQueryParams(params).
		SetHeader("Accept", "application/json").
		Get(path)
	if err != nil {
		return nil, fmt.Errorf("failed to call %s: %w", path, err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("HTTP error %d from %s: %s", resp.StatusCode(), path, truncate(resp.String(), 200))
	}

	body := resp.Body()
	if !json.Valid(body) {
		return nil, fmt.Errorf("invalid JSON from %s", path)
	}
	return json.RawMessage(body), nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
