package healthcheck

import (
	"net/http"
	"strconv"

	"github.com/aristath/zulu7/internal/respond"
	"github.com/aristath/zulu7/internal/validation"
	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
)

// Response is the body of GET /api/health-check.
type Response struct {
	Status Status `json:"status"`
}

// Handler provides the health-check endpoint
type Handler struct {
	prober *Prober
	log    zerolog.Logger
}

// NewHandler creates a new health-check handler
func NewHandler(prober *Prober, log zerolog.Logger) *Handler {
	return &Handler{
		prober: prober,
		log:    log.With().Str("handler", "health_check").Logger(),
	}
}

// RegisterRoutes registers the health-check route
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/health-check", h.HandleCheck)
}

// HandleCheck handles GET /api/health-check?type=&url=&port=
func (h *Handler) HandleCheck(w http.ResponseWriter, r *http.Request) {
	respond.NoStore(w)

	q := r.URL.Query()
	req := Request{Type: q.Get("type"), URL: q.Get("url")}
	if raw := q.Get("port"); raw != "" {
		port, err := strconv.Atoi(raw)
		if err != nil {
			respond.Error(w, http.StatusBadRequest, "port must be a number")
			return
		}
		req.Port = port
	}

	if err := validation.Struct(&req); err != nil {
		respond.Error(w, http.StatusBadRequest, err.Error())
		return
	}

	status := StatusDown
	target, err := ParseTarget(req)
	if err != nil {
		h.log.Debug().Err(err).Str("url", req.URL).Msg("Unresolvable health-check target")
	} else {
		status = h.prober.Check(r.Context(), target)
	}

	respond.JSON(w, http.StatusOK, Response{Status: status})
}
