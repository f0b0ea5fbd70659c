// Package yahoo relays Yahoo Finance chart, quote and search payloads.
package yahoo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/aristath/zulu7/internal/clients/upstream"
	"github.com/aristath/zulu7/internal/metrics"
	"github.com/rs/zerolog"
)

// Default endpoints. Search lives on the query2 host.
const (
	DefaultQueryURL  = "https://query1.finance.yahoo.com"
	DefaultSearchURL = "https://query2.finance.yahoo.com"
)

// Chart request defaults used by the ticker widgets.
const (
	chartRange    = "1d"
	chartInterval = "5m"
	maxBodyBytes  = 10 << 20
)

// ErrInvalidJSON is returned when Yahoo answers with a non-JSON body.
var ErrInvalidJSON = errors.New("Yahoo Finance returned invalid JSON")

// Client is a Yahoo Finance API client
type Client struct {
	client    *http.Client
	queryURL  string
	searchURL string
	log       zerolog.Logger
}

// NewClient creates a new Yahoo Finance client on the shared transport
func NewClient(transport http.RoundTripper, log zerolog.Logger) *Client {
	return &Client{
		client:    upstream.NewClient(transport, 15*time.Second),
		queryURL:  DefaultQueryURL,
		searchURL: DefaultSearchURL,
		log:       log.With().Str("client", "yahoo").Logger(),
	}
}

// SetBaseURLs points the client at alternative hosts. Used by tests.
func (c *Client) SetBaseURLs(queryURL, searchURL string) {
	c.queryURL = queryURL
	c.searchURL = searchURL
}

// Chart fetches the intraday chart payload for symbol.
func (c *Client) Chart(ctx context.Context, symbol string) ([]byte, error) {
	params := url.Values{}
	params.Set("range", chartRange)
	params.Set("interval", chartInterval)

	reqURL := fmt.Sprintf("%s/v8/finance/chart/%s?%s", c.queryURL, url.PathEscape(symbol), params.Encode())
	return c.get(ctx, "yahoo_chart", reqURL)
}

// Quote fetches the quote payload for symbol.
func (c *Client) Quote(ctx context.Context, symbol string) ([]byte, error) {
	params := url.Values{}
	params.Set("symbols", symbol)

	return c.get(ctx, "yahoo_quote", c.queryURL+"/v7/finance/quote?"+params.Encode())
}

// Search fetches ticker suggestions for a free-text query.
func (c *Client) Search(ctx context.Context, query string) ([]byte, error) {
	params := url.Values{}
	params.Set("q", query)
	params.Set("quotesCount", "10")
	params.Set("newsCount", "0")

	return c.get(ctx, "yahoo_search", c.searchURL+"/v1/finance/search?"+params.Encode())
}

func (c *Client) get(ctx context.Context, target, reqURL string) ([]byte, error) {
	start := time.Now()
	body, err := c.fetch(ctx, reqURL)
	metrics.ObserveUpstream(target, time.Since(start).Seconds(), err)
	if err != nil {
		c.log.Warn().Err(err).Str("url", reqURL).Msg("Yahoo Finance request failed")
	}
	return body, err
}

func (c *Client) fetch(ctx context.Context, reqURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	// Set headers to mimic browser
	req.Header.Set("User-Agent", upstream.UserAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch from Yahoo Finance: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("Yahoo Finance API returned status %d", resp.StatusCode)
	}

	if !json.Valid(body) {
		return nil, ErrInvalidJSON
	}

	return body, nil
}
