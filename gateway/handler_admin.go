package gateway

import (
	"context"
	"net/http"
	"time"

	"github.com/NVIDIA/storegate/auth"
)

// handleAdmin answers POST /admin/check by round-tripping a write/read
// through the KV store and listing the blob store, surfacing either
// backend's failure as a 503.
func (d *Daemon) handleAdmin(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	result := map[string]string{"kv": "ok", "blob": "ok"}
	healthy := true

	if err := d.kv.Set(ctx, "__HEALTH", "check", time.Now().UTC().Format(time.RFC3339)); err != nil {
		result["kv"] = err.Error()
		healthy = false
	} else if _, found, err := d.kv.Get(ctx, "__HEALTH", "check"); err != nil || !found {
		result["kv"] = "round-trip read failed"
		healthy = false
	}

	if _, err := d.blobSvc.List(ctx, "__health"); err != nil {
		result["blob"] = err.Error()
		healthy = false
	}

	principalCount, err := d.registry.Count(ctx)
	if err != nil {
		result["principals"] = err.Error()
		healthy = false
	}

	status := http.StatusOK
	body := map[string]interface{}{"healthy": healthy, "detail": result, "principalCount": principalCount}
	if !healthy {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, body)
}

// handleAdminCompact answers POST /admin/compact by reconciling blob
// metadata and bytes that have drifted apart, returning the orphans it
// found and cleaned up.
func (d *Daemon) handleAdminCompact(w http.ResponseWriter, r *http.Request) {
	ident, err := d.classify(r, false, false)
	if err != nil {
		writeError(w, err)
		return
	}
	if _, err := auth.RequirePrincipal(ident); err != nil {
		writeError(w, err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 30*time.Second)
	defer cancel()

	report, err := d.blobSvc.Compact(ctx)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}
