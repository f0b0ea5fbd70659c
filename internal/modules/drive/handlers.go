package drive

import (
	"errors"
	"io"
	"net/http"

	"github.com/aristath/zulu7/internal/respond"
	"github.com/aristath/zulu7/internal/validation"
	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
)

// Upstream headers that would block in-page playback, plus hop-by-hop headers.
var skippedHeaders = map[string]bool{
	"Content-Security-Policy":   true,
	"X-Frame-Options":           true,
	"Strict-Transport-Security": true,
	"Connection":                true,
	"Keep-Alive":                true,
	"Transfer-Encoding":         true,
}

// Handler streams Drive files to the media widgets
type Handler struct {
	downloader *Downloader
	log        zerolog.Logger
}

// NewHandler creates a new video proxy handler
func NewHandler(downloader *Downloader, log zerolog.Logger) *Handler {
	return &Handler{
		downloader: downloader,
		log:        log.With().Str("handler", "video_proxy").Logger(),
	}
}

// RegisterRoutes registers the video proxy route
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/video-proxy", h.HandleVideoProxy)
}

// HandleVideoProxy handles GET /api/video-proxy?id=
func (h *Handler) HandleVideoProxy(w http.ResponseWriter, r *http.Request) {
	id := r.URL.Query().Get("id")
	if err := validation.Var("id", id, "required,driveid"); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	tw := respond.Track(w)

	resp, err := h.downloader.Open(r.Context(), id, r.Header.Get("Range"))
	if err != nil {
		var limitErr *RedirectLimitError
		switch {
		case errors.As(err, &limitErr):
			h.log.Warn().Str("id", id).Int("limit", limitErr.Limit).Msg("Drive redirect limit exceeded")
		case errors.Is(err, ErrHTMLInterstitial):
			h.log.Warn().Str("id", id).Msg("Drive returned an interstitial page")
		default:
			h.log.Error().Err(err).Str("id", id).Msg("Drive download failed")
		}
		if !tw.Written() {
			http.Error(tw, err.Error(), http.StatusInternalServerError)
		}
		return
	}
	defer resp.Body.Close()

	for name, values := range resp.Header {
		if skippedHeaders[http.CanonicalHeaderKey(name)] {
			continue
		}
		for _, v := range values {
			tw.Header().Add(name, v)
		}
	}
	tw.Header().Set("Access-Control-Allow-Origin", "*")
	tw.WriteHeader(resp.StatusCode)

	if _, err := io.Copy(tw, resp.Body); err != nil {
		h.log.Debug().Err(err).Str("id", id).Msg("Video stream interrupted")
	}
}
