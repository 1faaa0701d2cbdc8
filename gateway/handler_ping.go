package gateway

import (
	"net/http"
	"time"
)

// handlePing answers an unauthenticated liveness probe.
func (d *Daemon) handlePing(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"message":   "pong",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}
