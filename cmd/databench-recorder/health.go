package main

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/rickgao/databench-client/internal/connection"
	"github.com/rickgao/databench-client/internal/recorder"
)

type pinger interface {
	Ping(ctx context.Context) error
}

type sessionState interface {
	State() connection.State
	AnalysisID() string
}

type statsSource interface {
	Stats() recorder.Stats
}

// createHealthHandler creates the HTTP handler for health checks.
func createHealthHandler(db pinger, conn sessionState, rec statsSource) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		health := struct {
			Status     string         `json:"status"`
			Components map[string]any `json:"components"`
		}{
			Status:     "healthy",
			Components: make(map[string]any),
		}

		// Check database
		if err := db.Ping(ctx); err != nil {
			health.Status = "unhealthy"
			health.Components["postgres"] = map[string]string{
				"status": "disconnected",
				"error":  err.Error(),
			}
		} else {
			health.Components["postgres"] = "connected"
		}

		// Check backend connection
		state := conn.State()
		health.Components["backend"] = map[string]string{
			"state":       state.String(),
			"analysis_id": conn.AnalysisID(),
		}
		switch state {
		case connection.StateOpen:
		case connection.StateFailed:
			health.Status = "unhealthy"
		default:
			if health.Status == "healthy" {
				health.Status = "degraded"
			}
		}

		stats := rec.Stats()
		health.Components["recorder"] = map[string]int64{
			"recorded":  stats.Recorded,
			"inserts":   stats.Inserts,
			"conflicts": stats.Conflicts,
			"errors":    stats.Errors,
			"pending":   int64(stats.Queue.Len),
			"evicted":   stats.Queue.Evicted,
		}

		// Set response
		w.Header().Set("Content-Type", "application/json")
		if health.Status == "unhealthy" {
			w.WriteHeader(http.StatusServiceUnavailable)
		}
		json.NewEncoder(w).Encode(health)
	})

	return mux
}
