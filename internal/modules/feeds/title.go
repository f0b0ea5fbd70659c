package feeds

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/aristath/zulu7/internal/cache"
	"github.com/aristath/zulu7/internal/clients/upstream"
	"github.com/aristath/zulu7/internal/metrics"
	"github.com/rs/zerolog"
)

const (
	titleTimeout  = 10 * time.Second
	maxTitleBytes = 2 << 20
)

// TitleScraper extracts page titles, caching successful lookups by URL.
type TitleScraper struct {
	client *http.Client
	titles *cache.TTL[string]
	log    zerolog.Logger
}

// NewTitleScraper creates a scraper backed by the title cache
func NewTitleScraper(transport http.RoundTripper, titles *cache.TTL[string], log zerolog.Logger) *TitleScraper {
	return &TitleScraper{
		client: upstream.NewClient(transport, titleTimeout),
		titles: titles,
		log:    log.With().Str("client", "title_scraper").Logger(),
	}
}

// Title returns the page title of pageURL, or "" when it cannot be determined.
// Empty results are not cached.
func (s *TitleScraper) Title(ctx context.Context, pageURL string) string {
	if title, ok := s.titles.Get(pageURL); ok {
		return title
	}

	start := time.Now()
	title, err := s.scrape(ctx, pageURL)
	metrics.ObserveUpstream("page_title", time.Since(start).Seconds(), err)
	if err != nil {
		s.log.Debug().Err(err).Str("url", pageURL).Msg("Title scrape failed")
		return ""
	}

	if title != "" {
		s.titles.Set(pageURL, title)
	}
	return title
}

func (s *TitleScraper) scrape(ctx context.Context, pageURL string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", upstream.UserAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml")

	resp, err := s.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to fetch page: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("page returned status %d", resp.StatusCode)
	}

	return ExtractTitle(io.LimitReader(resp.Body, maxTitleBytes))
}

// ExtractTitle returns the document <title>, falling back to og:title.
func ExtractTitle(r io.Reader) (string, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return "", fmt.Errorf("failed to parse html: %w", err)
	}

	title := strings.TrimSpace(doc.Find("title").First().Text())
	if title == "" {
		og, _ := doc.Find(`meta[property="og:title"]`).First().Attr("content")
		title = strings.TrimSpace(og)
	}
	return strings.Join(strings.Fields(title), " "), nil
}
