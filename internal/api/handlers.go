package api

import (
	"encoding/json"
	"net/http"
	"os"
	"time"

	"crosslight/internal/pipeline"
	"crosslight/internal/sources"
	"crosslight/pkg/logger"
)

// Handlers serves the published artifact and pipeline status. The artifact
// endpoint reads the on-disk latest copy so a restart never loses the last
// published document.
type Handlers struct {
	pipeline *pipeline.Pipeline
	sink     pipeline.Publisher
	registry *sources.Registry
	started  time.Time
	version  string
	logger   *logger.Logger
}

func NewHandlers(p *pipeline.Pipeline, sink pipeline.Publisher, registry *sources.Registry, version string, log *logger.Logger) *Handlers {
	return &Handlers{
		pipeline: p,
		sink:     sink,
		registry: registry,
		started:  time.Now(),
		version:  version,
		logger:   log.WithComponent("api"),
	}
}

// Health responds to liveness probes.
func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"version": h.version,
		"uptime":  time.Since(h.started).String(),
	})
}

// Artifact serves the most recently published artifact document verbatim.
func (h *Handlers) Artifact(w http.ResponseWriter, r *http.Request) {
	raw, err := h.sink.Latest()
	if err != nil {
		if os.IsNotExist(err) {
			h.writeError(w, http.StatusNotFound, "no artifact published yet")
			return
		}
		h.logger.Error().Err(err).Msg("failed to read artifact")
		h.writeError(w, http.StatusInternalServerError, "failed to read artifact")
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write(raw)
}

// Status reports the last completed cycle and the registered sources.
func (h *Handlers) Status(w http.ResponseWriter, r *http.Request) {
	type sourceStatus struct {
		Slug    string `json:"slug"`
		Name    string `json:"name"`
		Enabled bool   `json:"enabled"`
	}
	var srcs []sourceStatus
	for _, conn := range h.registry.All() {
		srcs = append(srcs, sourceStatus{
			Slug:    conn.Slug(),
			Name:    conn.Name(),
			Enabled: conn.IsEnabled(),
		})
	}

	h.writeJSON(w, http.StatusOK, map[string]any{
		"last_run": h.pipeline.LastRun(),
		"sources":  srcs,
	})
}

// Run triggers a pipeline cycle. Returns 409 when one is in progress.
func (h *Handlers) Run(w http.ResponseWriter, r *http.Request) {
	stats, err := h.pipeline.RunOnce(r.Context())
	if err != nil {
		h.writeError(w, http.StatusConflict, err.Error())
		return
	}
	h.writeJSON(w, http.StatusOK, stats)
}

func (h *Handlers) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.logger.Error().Err(err).Msg("failed to encode response")
	}
}

func (h *Handlers) writeError(w http.ResponseWriter, status int, msg string) {
	h.writeJSON(w, status, map[string]string{"error": msg})
}
