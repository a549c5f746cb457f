package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/isdelr/quill-be/internal/models"
	"github.com/rs/zerolog/log"
)

// StatsProvider exposes the most recent stats snapshot.
type StatsProvider interface {
	Latest() (models.Stats, bool)
}

// Pinger is satisfied by the database handle.
type Pinger interface {
	PingContext(ctx context.Context) error
}

// SystemHandler serves health and stats endpoints.
type SystemHandler struct {
	db    Pinger
	stats StatsProvider
}

// NewSystemHandler creates a new SystemHandler.
func NewSystemHandler(db Pinger, stats StatsProvider) *SystemHandler {
	return &SystemHandler{db: db, stats: stats}
}

// Health reports whether the database is reachable.
func (h *SystemHandler) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if err := h.db.PingContext(ctx); err != nil {
		log.Error().Err(err).Msg("Health check failed")
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Stats returns the latest snapshot collected by the stat updater.
func (h *SystemHandler) Stats(w http.ResponseWriter, r *http.Request) {
	snapshot, ok := h.stats.Latest()
	if !ok {
		writeError(w, http.StatusServiceUnavailable, "Stats not collected yet")
		return
	}
	writeJSON(w, http.StatusOK, snapshot)
}
