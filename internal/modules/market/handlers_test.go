package market

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/aristath/zulu7/internal/cache"
	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubFetcher struct {
	mu         sync.Mutex
	chartCalls int
	err        error
}

func (s *stubFetcher) Chart(ctx context.Context, symbol string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.chartCalls++
	if s.err != nil {
		return nil, s.err
	}
	return []byte(`{"chart":{"symbol":"` + symbol + `"}}`), nil
}

func (s *stubFetcher) Quote(ctx context.Context, symbol string) ([]byte, error) {
	return []byte(`{"quoteResponse":{}}`), s.err
}

func (s *stubFetcher) Search(ctx context.Context, query string) ([]byte, error) {
	return []byte(`{"quotes":[]}`), s.err
}

func (s *stubFetcher) calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.chartCalls
}

type clock struct{ now time.Time }

func (c *clock) Now() time.Time { return c.now }

func setupRouter(fetcher Fetcher, charts *cache.TTL[[]byte]) *chi.Mux {
	svc := NewService(fetcher, charts, zerolog.Nop())
	h := NewHandler(svc, zerolog.Nop())
	r := chi.NewRouter()
	r.Route("/api", h.RegisterRoutes)
	return r
}

func get(r http.Handler, target string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))
	return rec
}

func TestMarketData_CacheWindow(t *testing.T) {
	fetcher := &stubFetcher{}
	c := &clock{now: time.Date(2026, 1, 5, 9, 30, 0, 0, time.UTC)}
	charts := cache.New[[]byte]("market_data", cache.TTLMarketData)
	charts.SetClock(c.Now)
	r := setupRouter(fetcher, charts)

	rec := get(r, "/api/market-data?symbol=AAPL")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "MISS", rec.Header().Get("X-Cache"))
	assert.Equal(t, 1, fetcher.calls())

	c.now = c.now.Add(59 * time.Second)
	rec = get(r, "/api/market-data?symbol=AAPL")
	assert.Equal(t, "HIT", rec.Header().Get("X-Cache"))
	assert.JSONEq(t, `{"chart":{"symbol":"AAPL"}}`, rec.Body.String())
	assert.Equal(t, 1, fetcher.calls())

	c.now = c.now.Add(2 * time.Second)
	rec = get(r, "/api/market-data?symbol=AAPL")
	assert.Equal(t, "MISS", rec.Header().Get("X-Cache"))
	assert.Equal(t, 2, fetcher.calls())
}

func TestMarketData_MissingSymbol(t *testing.T) {
	r := setupRouter(&stubFetcher{}, cache.New[[]byte]("market_data", time.Minute))

	rec := get(r, "/api/market-data")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.JSONEq(t, `{"error":"symbol is required"}`, rec.Body.String())
}

func TestMarketData_UpstreamFailureNotCached(t *testing.T) {
	fetcher := &stubFetcher{err: errors.New("Yahoo Finance API returned status 500")}
	r := setupRouter(fetcher, cache.New[[]byte]("market_data", time.Minute))

	rec := get(r, "/api/market-data?symbol=MSFT")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, rec.Body.String(), "status 500")

	fetcher.err = nil
	rec = get(r, "/api/market-data?symbol=MSFT")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 2, fetcher.calls())
}

func TestQuoteAndSearch_Relay(t *testing.T) {
	r := setupRouter(&stubFetcher{}, cache.New[[]byte]("market_data", time.Minute))

	rec := get(r, "/api/finance-quote?symbol=AAPL")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.JSONEq(t, `{"quoteResponse":{}}`, rec.Body.String())

	rec = get(r, "/api/finance-search?symbol=apple")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"quotes":[]}`, rec.Body.String())

	rec = get(r, "/api/finance-search")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
