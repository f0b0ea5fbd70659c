package market

import (
	"net/http"
	"strings"

	"github.com/aristath/zulu7/internal/respond"
	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
)

// Handler provides HTTP handlers for market endpoints
type Handler struct {
	service *Service
	log     zerolog.Logger
}

// NewHandler creates a new market handler
func NewHandler(service *Service, log zerolog.Logger) *Handler {
	return &Handler{
		service: service,
		log:     log.With().Str("handler", "market").Logger(),
	}
}

// RegisterRoutes registers all market routes
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/market-data", h.HandleMarketData)
	r.Get("/finance-quote", h.HandleQuote)
	r.Get("/finance-search", h.HandleSearch)
}

// HandleMarketData handles GET /api/market-data?symbol=
func (h *Handler) HandleMarketData(w http.ResponseWriter, r *http.Request) {
	symbol, ok := symbolParam(w, r)
	if !ok {
		return
	}

	body, cached, err := h.service.ChartData(r.Context(), symbol)
	if err != nil {
		respond.UpstreamError(w, h.log, "yahoo_chart", err)
		return
	}

	if cached {
		w.Header().Set("X-Cache", "HIT")
	} else {
		w.Header().Set("X-Cache", "MISS")
	}
	writeRaw(w, body)
}

// HandleQuote handles GET /api/finance-quote?symbol=
func (h *Handler) HandleQuote(w http.ResponseWriter, r *http.Request) {
	symbol, ok := symbolParam(w, r)
	if !ok {
		return
	}

	body, err := h.service.Quote(r.Context(), symbol)
	if err != nil {
		respond.UpstreamError(w, h.log, "yahoo_quote", err)
		return
	}
	writeRaw(w, body)
}

// HandleSearch handles GET /api/finance-search?symbol=
func (h *Handler) HandleSearch(w http.ResponseWriter, r *http.Request) {
	query, ok := symbolParam(w, r)
	if !ok {
		return
	}

	body, err := h.service.Search(r.Context(), query)
	if err != nil {
		respond.UpstreamError(w, h.log, "yahoo_search", err)
		return
	}
	writeRaw(w, body)
}

func symbolParam(w http.ResponseWriter, r *http.Request) (string, bool) {
	symbol := strings.TrimSpace(r.URL.Query().Get("symbol"))
	if symbol == "" {
		respond.Error(w, http.StatusBadRequest, "symbol is required")
		return "", false
	}
	return symbol, true
}

func writeRaw(w http.ResponseWriter, body []byte) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(body)
}
