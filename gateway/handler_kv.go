package gateway

import (
	"net/http"
	"strings"

	"github.com/NVIDIA/storegate/auth"
	"github.com/NVIDIA/storegate/cmn"
	"github.com/NVIDIA/storegate/kv"
)

func (d *Daemon) handleKV(w http.ResponseWriter, r *http.Request) {
	op := strings.TrimPrefix(r.URL.Path, cmn.RouteKV)
	ctx := r.Context()

	ident, err := d.classify(r, false, false)
	if err != nil {
		writeError(w, err)
		return
	}
	if _, err := auth.RequirePrincipal(ident); err != nil {
		writeError(w, err)
		return
	}

	switch op {
	case "get":
		var body struct{ Namespace, Key string }
		if err := decodeJSON(r, &body); err != nil {
			writeError(w, err)
			return
		}
		value, found, err := d.kv.Get(ctx, body.Namespace, body.Key)
		if err != nil {
			writeError(w, err)
			return
		}
		if !found {
			writeError(w, cmn.Errorf(cmn.NotFound, "key %s:%s not found", body.Namespace, body.Key))
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"key": body.Key, "value": value})

	case "set":
		var body struct{ Namespace, Key, Value string }
		if err := decodeJSON(r, &body); err != nil {
			writeError(w, err)
			return
		}
		if err := d.kv.Set(ctx, body.Namespace, body.Key, body.Value); err != nil {
			writeError(w, err)
			return
		}
		writeNoContent(w)

	case "delete":
		var body struct{ Namespace, Key string }
		if err := decodeJSON(r, &body); err != nil {
			writeError(w, err)
			return
		}
		if err := d.kv.Delete(ctx, body.Namespace, body.Key); err != nil {
			writeError(w, err)
			return
		}
		writeNoContent(w)

	case "keys":
		var body struct{ Namespace string }
		if err := decodeJSON(r, &body); err != nil {
			writeError(w, err)
			return
		}
		keys, err := d.kv.ListKeys(ctx, body.Namespace)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, keys)

	case "namespaces":
		namespaces, err := d.kv.ListNamespaces(ctx)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, namespaces)

	case "bulk/get":
		var body struct {
			Namespace string   `json:"namespace"`
			Keys      []string `json:"keys"`
		}
		if err := decodeJSON(r, &body); err != nil {
			writeError(w, err)
			return
		}
		entries, err := d.kv.BulkGet(ctx, body.Namespace, body.Keys)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]interface{}{"entries": entries})

	case "bulk/set":
		var body struct {
			Namespace string `json:"namespace"`
			Entries   []struct {
				Key   string `json:"key"`
				Value string `json:"value"`
			} `json:"entries"`
		}
		if err := decodeJSON(r, &body); err != nil {
			writeError(w, err)
			return
		}
		entries := make([]kv.Entry, len(body.Entries))
		for i, e := range body.Entries {
			entries[i] = kv.Entry{Key: e.Key, Value: e.Value}
		}
		count, err := d.kv.BulkSet(ctx, body.Namespace, entries)
		if err != nil {
			writeJSON(w, http.StatusOK, map[string]interface{}{"success": false, "count": count})
			return
		}
		writeJSON(w, http.StatusOK, map[string]interface{}{"success": true, "count": count})

	case "dump":
		dump, err := d.kv.Dump(ctx)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, dump)

	default:
		writeError(w, cmn.Errorf(cmn.NotFound, "unknown kv route %q", op))
	}
}
