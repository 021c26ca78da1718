package handler

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/dukerupert/rota/internal/sweep"
)

type SweepHandler struct {
	sweeper *sweep.Sweeper
	now     clock
	logger  *slog.Logger
}

func NewSweepHandler(s *sweep.Sweeper, loc *time.Location, logger *slog.Logger) *SweepHandler {
	return &SweepHandler{sweeper: s, now: newClock(loc), logger: logger.With("component", "sweep")}
}

// Run handles GET|POST /api/cron/reminders
func (h *SweepHandler) Run(w http.ResponseWriter, r *http.Request) {
	rep, err := h.sweeper.Run(r.Context(), h.now(), sweep.TriggerHTTP)
	if err != nil {
		writeError(w, h.logger, err, "sweep failed")
		return
	}
	writeJSON(w, http.StatusOK, rep)
}

// Health handles GET /health
func Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
