package api

import (
	"encoding/json"
	"net/http"

	"go.uber.org/zap"

	"github.com/oakhollow/barnwatch/internal/monitor"
	"github.com/oakhollow/barnwatch/internal/timeline"
)

type Handlers struct {
	mon *monitor.Monitor
	log *zap.Logger
}

func NewHandlers(mon *monitor.Monitor, log *zap.Logger) *Handlers {
	return &Handlers{mon: mon, log: log}
}

func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, h.log, map[string]string{"status": "ok"})
}

type statusResponse struct {
	SessionID string           `json:"session_id"`
	Source    string           `json:"source"`
	Alerts    int              `json:"alerts"`
	Summary   timeline.Summary `json:"summary"`
}

// Status reports the running session's aggregate counters.
func (h *Handlers) Status(w http.ResponseWriter, r *http.Request) {
	tl := h.mon.Timeline()
	writeJSON(w, h.log, statusResponse{
		SessionID: tl.SessionID(),
		Source:    tl.Source(),
		Alerts:    h.mon.Alerts(),
		Summary:   tl.Summary(),
	})
}

// Timeline returns the records accumulated so far.
func (h *Handlers) Timeline(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, h.log, h.mon.Timeline().Records())
}

func writeJSON(w http.ResponseWriter, log *zap.Logger, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Warn("failed to write response", zap.Error(err))
	}
}
