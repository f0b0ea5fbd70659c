package publish

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/aristath/zulu7/internal/respond"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/httprate"
	"github.com/rs/zerolog"
)

// MaxBodyBytes caps the size of a published config.
const MaxBodyBytes = 5 << 20

// PublishResponse is the body of POST /api/publish
type PublishResponse struct {
	Success bool   `json:"success"`
	Key     string `json:"key"`
	URL     string `json:"url"`
}

// Handler provides HTTP handlers for published configs
type Handler struct {
	store     *Store
	rateLimit int
	log       zerolog.Logger
}

// NewHandler creates a new publish handler. rateLimit is the number of publishes
// allowed per client IP per minute.
func NewHandler(store *Store, rateLimit int, log zerolog.Logger) *Handler {
	return &Handler{
		store:     store,
		rateLimit: rateLimit,
		log:       log.With().Str("handler", "publish").Logger(),
	}
}

// RegisterRoutes registers the publish routes
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.With(httprate.LimitByIP(h.rateLimit, time.Minute)).Post("/publish", h.HandlePublish)
	r.Get("/config", h.HandleGetConfig)
}

// HandlePublish handles POST /api/publish
func (h *Handler) HandlePublish(w http.ResponseWriter, r *http.Request) {
	var doc map[string]json.RawMessage
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, MaxBodyBytes)).Decode(&doc); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			respond.Error(w, http.StatusRequestEntityTooLarge, "config is too large")
			return
		}
		respond.Error(w, http.StatusBadRequest, ErrNotObject.Error())
		return
	}

	key, err := h.store.Publish(r.Context(), doc)
	if errors.Is(err, ErrNotObject) {
		respond.Error(w, http.StatusBadRequest, err.Error())
		return
	}
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to publish config")
		respond.Error(w, http.StatusInternalServerError, err.Error())
		return
	}

	respond.JSON(w, http.StatusOK, PublishResponse{
		Success: true,
		Key:     key,
		URL:     shareURL(r, key),
	})
}

// HandleGetConfig handles GET /api/config?id=
func (h *Handler) HandleGetConfig(w http.ResponseWriter, r *http.Request) {
	body, err := h.store.Load(r.Context(), r.URL.Query().Get("id"))
	switch {
	case errors.Is(err, ErrInvalidID):
		respond.Error(w, http.StatusBadRequest, err.Error())
		return
	case errors.Is(err, ErrNotFound):
		respond.Error(w, http.StatusNotFound, "Config not found")
		return
	case err != nil:
		h.log.Error().Err(err).Msg("Failed to load config")
		respond.Error(w, http.StatusInternalServerError, err.Error())
		return
	}

	respond.NoStore(w)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(body)
}

func shareURL(r *http.Request, key string) string {
	scheme := "http"
	if r.TLS != nil || r.Header.Get("X-Forwarded-Proto") == "https" {
		scheme = "https"
	}
	return scheme + "://" + r.Host + "/?config=" + key
}
