// Package feeds relays RSS documents and scrapes page titles for the link widgets.
package feeds

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/aristath/zulu7/internal/clients/upstream"
	"github.com/aristath/zulu7/internal/metrics"
	"github.com/rs/zerolog"
)

const (
	fetchTimeout = 15 * time.Second
	maxFeedBytes = 10 << 20
)

// RSSClient fetches feed documents verbatim
type RSSClient struct {
	client *http.Client
	log    zerolog.Logger
}

// NewRSSClient creates a new RSS client on the shared transport
func NewRSSClient(transport http.RoundTripper, log zerolog.Logger) *RSSClient {
	return &RSSClient{
		client: upstream.NewClient(transport, fetchTimeout),
		log:    log.With().Str("client", "rss").Logger(),
	}
}

// Fetch returns the raw feed body. Non-2xx answers are errors.
func (c *RSSClient) Fetch(ctx context.Context, feedURL string) ([]byte, error) {
	start := time.Now()
	body, err := c.fetch(ctx, feedURL)
	metrics.ObserveUpstream("rss", time.Since(start).Seconds(), err)
	if err != nil {
		c.log.Warn().Err(err).Str("url", feedURL).Msg("RSS fetch failed")
	}
	return body, err
}

func (c *RSSClient) fetch(ctx context.Context, feedURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, feedURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", upstream.UserAgent)
	req.Header.Set("Accept", "application/rss+xml, application/atom+xml, application/xml, text/xml;q=0.9, */*;q=0.8")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch feed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("feed returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxFeedBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to read feed: %w", err)
	}
	return body, nil
}

// ParseHTTPURL accepts absolute http(s) URLs only.
func ParseHTTPURL(raw string) (*url.URL, error) {
	if raw == "" {
		return nil, fmt.Errorf("url is required")
	}
	u, err := url.Parse(raw)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, fmt.Errorf("invalid url: %s", raw)
	}
	return u, nil
}
