package server

import (
	"net/http"
	"runtime"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/load"

	"github.com/aristath/zulu7/internal/respond"
)

// SystemLoadResponse is the body of GET /api/system-load
type SystemLoadResponse struct {
	Load1  float64 `json:"load1"`
	Load5  float64 `json:"load5"`
	Load15 float64 `json:"load15"`
	Cores  int     `json:"cores"`
}

// SystemHandlers reports host metrics for the system widget
type SystemHandlers struct {
	log     zerolog.Logger
	loadAvg func() (*load.AvgStat, error)
	cores   func() (int, error)
}

// NewSystemHandlers creates a new system handlers instance
func NewSystemHandlers(log zerolog.Logger) *SystemHandlers {
	return &SystemHandlers{
		log:     log.With().Str("handler", "system").Logger(),
		loadAvg: load.Avg,
		cores: func() (int, error) {
			return cpu.Counts(true)
		},
	}
}

// RegisterRoutes registers the system routes
func (h *SystemHandlers) RegisterRoutes(r chi.Router) {
	r.Get("/system-load", h.HandleSystemLoad)
}

// HandleSystemLoad handles GET /api/system-load
func (h *SystemHandlers) HandleSystemLoad(w http.ResponseWriter, r *http.Request) {
	avg, err := h.loadAvg()
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to read load average")
		respond.Error(w, http.StatusInternalServerError, err.Error())
		return
	}

	cores, err := h.cores()
	if err != nil || cores <= 0 {
		cores = runtime.NumCPU()
	}

	respond.JSON(w, http.StatusOK, SystemLoadResponse{
		Load1:  avg.Load1,
		Load5:  avg.Load5,
		Load15: avg.Load15,
		Cores:  cores,
	})
}
