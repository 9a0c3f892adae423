// Package controlplane serves the internal-only operability endpoints —
// health and Prometheus metrics — kept off the public front door.
package controlplane

import (
	"encoding/json"
	"net/http"

	"github.com/pulsar-sentinel/core/internal/engine"
)

// Mux is the internal-only HTTP handler exposing /internal/healthz and
// /internal/metrics.
type Mux struct {
	eng *engine.Engine
	mux *http.ServeMux
}

// New builds the internal control-plane mux for the given engine.
func New(eng *engine.Engine) *Mux {
	m := &Mux{eng: eng, mux: http.NewServeMux()}
	m.routes()
	return m
}

func (m *Mux) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	m.mux.ServeHTTP(w, r)
}

func (m *Mux) routes() {
	m.mux.HandleFunc("GET /internal/healthz", m.handleHealthz)
	m.mux.Handle("GET /internal/metrics", m.eng.Metrics.Handler())
}

// handleHealthz reports liveness and a coarse view of each subsystem's
// readiness. It does not touch the anchor sink, since network calls have no
// place in a liveness probe.
func (m *Mux) handleHealthz(w http.ResponseWriter, r *http.Request) {
	status := "ok"
	checks := map[string]string{
		"storage": "ok",
	}
	if err := m.eng.DB.Ping(); err != nil {
		checks["storage"] = err.Error()
		status = "degraded"
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"status": status,
		"checks": checks,
	})
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
