package feeds

import (
	"context"
	"net/http"

	"github.com/aristath/zulu7/internal/respond"
	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
)

// FeedFetcher fetches raw feed documents
type FeedFetcher interface {
	Fetch(ctx context.Context, feedURL string) ([]byte, error)
}

// TitleFetcher resolves page titles
type TitleFetcher interface {
	Title(ctx context.Context, pageURL string) string
}

// TitleResponse is the body of GET /api/fetch-title
type TitleResponse struct {
	Title string `json:"title"`
}

// Handler provides HTTP handlers for feed endpoints
type Handler struct {
	feeds  FeedFetcher
	titles TitleFetcher
	log    zerolog.Logger
}

// NewHandler creates a new feeds handler
func NewHandler(feeds FeedFetcher, titles TitleFetcher, log zerolog.Logger) *Handler {
	return &Handler{
		feeds:  feeds,
		titles: titles,
		log:    log.With().Str("handler", "feeds").Logger(),
	}
}

// RegisterRoutes registers all feed routes
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/rss", h.HandleRSS)
	r.Get("/fetch-title", h.HandleFetchTitle)
}

// HandleRSS handles GET /api/rss?url=
func (h *Handler) HandleRSS(w http.ResponseWriter, r *http.Request) {
	feedURL, err := ParseHTTPURL(r.URL.Query().Get("url"))
	if err != nil {
		respond.Error(w, http.StatusBadRequest, err.Error())
		return
	}

	body, err := h.feeds.Fetch(r.Context(), feedURL.String())
	if err != nil {
		respond.UpstreamError(w, h.log, "rss", err)
		return
	}

	w.Header().Set("Content-Type", "text/xml")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(body)
}

// HandleFetchTitle handles GET /api/fetch-title?url=
func (h *Handler) HandleFetchTitle(w http.ResponseWriter, r *http.Request) {
	raw := r.URL.Query().Get("url")
	if raw == "" {
		respond.Error(w, http.StatusBadRequest, "url is required")
		return
	}

	pageURL, err := ParseHTTPURL(raw)
	if err != nil {
		respond.JSON(w, http.StatusOK, TitleResponse{})
		return
	}

	respond.JSON(w, http.StatusOK, TitleResponse{Title: h.titles.Title(r.Context(), pageURL.String())})
}
