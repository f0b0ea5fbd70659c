// Package market serves Yahoo Finance passthrough endpoints for the ticker widgets.
package market

import (
	"context"
	"strings"

	"github.com/aristath/zulu7/internal/cache"
	"github.com/rs/zerolog"
)

// Fetcher is the upstream market-data source.
type Fetcher interface {
	Chart(ctx context.Context, symbol string) ([]byte, error)
	Quote(ctx context.Context, symbol string) ([]byte, error)
	Search(ctx context.Context, query string) ([]byte, error)
}

// Service adds the chart cache in front of the fetcher.
type Service struct {
	fetcher Fetcher
	charts  *cache.TTL[[]byte]
	log     zerolog.Logger
}

// NewService creates a market service. charts caches chart payloads per symbol.
func NewService(fetcher Fetcher, charts *cache.TTL[[]byte], log zerolog.Logger) *Service {
	return &Service{
		fetcher: fetcher,
		charts:  charts,
		log:     log.With().Str("service", "market").Logger(),
	}
}

// ChartData returns the chart payload for symbol and whether it came from cache.
// Failed fetches are not cached.
func (s *Service) ChartData(ctx context.Context, symbol string) ([]byte, bool, error) {
	key := strings.ToUpper(symbol)
	if body, ok := s.charts.Get(key); ok {
		return body, true, nil
	}

	body, err := s.fetcher.Chart(ctx, symbol)
	if err != nil {
		return nil, false, err
	}

	s.charts.Set(key, body)
	return body, false, nil
}

// Quote relays the quote payload for symbol.
func (s *Service) Quote(ctx context.Context, symbol string) ([]byte, error) {
	return s.fetcher.Quote(ctx, symbol)
}

// Search relays ticker suggestions for query.
func (s *Service) Search(ctx context.Context, query string) ([]byte, error) {
	return s.fetcher.Search(ctx, query)
}
