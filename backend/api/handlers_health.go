package api

import (
	"net/http"
	"runtime"
	"time"
)

// HealthHandler returns the health status of the API.
func (h *Handler) HealthHandler(w http.ResponseWriter, r *http.Request) {
	checks := make(map[string]string)

	if h.broker != nil {
		checks["execution"] = "active"
	} else {
		checks["execution"] = "disabled"
	}
	if h.gate != nil {
		if h.gate.IsOpen(time.Now()) {
			checks["market"] = "open"
		} else {
			checks["market"] = "closed"
		}
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":    "ok",
		"timestamp": time.Now(),
		"checks":    checks,
	})
}

// RuntimeMetricsHandler returns basic Go runtime statistics. Distinct
// from the Prometheus exposition at /metrics (backend/metrics.Handler) —
// this is a lightweight human-facing complement, not a scrape target.
func (h *Handler) RuntimeMetricsHandler(w http.ResponseWriter, r *http.Request) {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"goroutines": runtime.NumGoroutine(),
		"memory": map[string]uint64{
			"alloc":       m.Alloc,
			"total_alloc": m.TotalAlloc,
			"sys":         m.Sys,
			"num_gc":      uint64(m.NumGC),
		},
		"uptime_seconds": time.Since(h.startTime).Seconds(),
		"timestamp":      time.Now(),
	})
}
