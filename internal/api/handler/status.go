// Package handler implements the status API endpoints.
package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/kiranshivaraju/cachewatch/internal/api/response"
	"github.com/kiranshivaraju/cachewatch/internal/monitor"
)

const pingTimeout = 5 * time.Second

// Pinger is implemented by the fingerprint store and the failure source.
type Pinger interface {
	Ping(ctx context.Context) error
}

// LastRunProvider is implemented by *monitor.Scheduler.
type LastRunProvider interface {
	Last() (monitor.LastRun, bool)
}

// NewHealthHandler returns an http.HandlerFunc for GET /api/v1/health.
func NewHealthHandler(store, source Pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), pingTimeout)
		defer cancel()

		checks := map[string]string{
			"store":  "ok",
			"source": "ok",
		}
		if err := store.Ping(ctx); err != nil {
			checks["store"] = "degraded"
		}
		if err := source.Ping(ctx); err != nil {
			checks["source"] = "degraded"
		}

		if checks["store"] != "ok" || checks["source"] != "ok" {
			response.Error(w, http.StatusServiceUnavailable, "DEGRADED",
				"One or more dependencies degraded", checks)
			return
		}

		response.JSON(w, map[string]any{
			"status":   "ok",
			"services": checks,
		})
	}
}

// NewLastRunHandler returns an http.HandlerFunc for GET /api/v1/runs/last.
// A failed run is still reported with 200; its error and failed step are in
// the body.
func NewLastRunHandler(p LastRunProvider) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		last, ok := p.Last()
		if !ok {
			response.Error(w, http.StatusNotFound, "NO_RUNS", "No run has finished yet", nil)
			return
		}
		response.JSON(w, last)
	}
}
