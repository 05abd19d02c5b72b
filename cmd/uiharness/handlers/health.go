package handlers

import (
	"context"
	"net/http"
	"time"
)

// Pinger checks that the run history database answers.
type Pinger interface {
	PingContext(ctx context.Context) error
}

// HealthResponse represents the health check response.
type HealthResponse struct {
	Status  string `json:"status"`
	History string `json:"history"`
	Error   string `json:"error,omitempty"`
}

// HealthHandler reports whether the report server can read run history.
// An unreachable database answers 503.
func HealthHandler(db Pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		if err := db.PingContext(ctx); err != nil {
			respondJSON(w, http.StatusServiceUnavailable, HealthResponse{
				Status:  "degraded",
				History: "unreachable",
				Error:   err.Error(),
			})
			return
		}
		respondJSON(w, http.StatusOK, HealthResponse{Status: "healthy", History: "ok"})
	}
}
