package media

import (
	"net/http"
	"net/url"

	"github.com/aristath/zulu7/internal/respond"
	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
)

// ListingResponse is the body of GET /api/media-folder
type ListingResponse struct {
	Files []File `json:"files"`
}

// Handler provides the media listing endpoint
type Handler struct {
	service *Service
	log     zerolog.Logger
}

// NewHandler creates a new media handler
func NewHandler(service *Service, log zerolog.Logger) *Handler {
	return &Handler{
		service: service,
		log:     log.With().Str("handler", "media").Logger(),
	}
}

// RegisterRoutes registers the media routes
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/media-folder", h.HandleMediaFolder)
}

// HandleMediaFolder handles GET /api/media-folder?url=
func (h *Handler) HandleMediaFolder(w http.ResponseWriter, r *http.Request) {
	raw := r.URL.Query().Get("url")
	if raw == "" {
		respond.Error(w, http.StatusBadRequest, "url is required")
		return
	}

	sourceURL, err := url.Parse(raw)
	if err != nil || (sourceURL.Scheme != "http" && sourceURL.Scheme != "https") || sourceURL.Host == "" {
		respond.JSON(w, http.StatusOK, ListingResponse{Files: []File{}})
		return
	}

	files, err := h.service.List(r.Context(), sourceURL)
	if err != nil {
		respond.UpstreamError(w, h.log, "media_listing", err)
		return
	}
	respond.JSON(w, http.StatusOK, ListingResponse{Files: files})
}
