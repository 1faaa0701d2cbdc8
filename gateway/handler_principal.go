package gateway

import (
	"net/http"
	"strings"

	"github.com/NVIDIA/storegate/auth"
	"github.com/NVIDIA/storegate/authn"
	"github.com/NVIDIA/storegate/cmn"
)

func (d *Daemon) handlePrincipal(w http.ResponseWriter, r *http.Request) {
	op := strings.TrimPrefix(r.URL.Path, cmn.RoutePrincipal)
	ctx := r.Context()

	ident, err := d.classify(r, r.URL.Path == authn.RouteCreatePrincipal, false)
	if err != nil {
		writeError(w, err)
		return
	}

	switch op {
	case "create":
		if _, err := auth.RequirePrincipal(ident); err != nil {
			writeError(w, err)
			return
		}
		var body struct {
			DisplayName string `json:"display_name"`
		}
		if err := decodeJSON(r, &body); err != nil {
			writeError(w, err)
			return
		}
		p, err := d.registry.Create(ctx, body.DisplayName)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, p)

	case "list":
		if _, err := auth.RequirePrincipal(ident); err != nil {
			writeError(w, err)
			return
		}
		list, err := d.registry.List(ctx)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, list)

	case "delete":
		if _, err := auth.RequirePrincipal(ident); err != nil {
			writeError(w, err)
			return
		}
		var body struct {
			SecretHash string `json:"secret_hash"`
		}
		if err := decodeJSON(r, &body); err != nil {
			writeError(w, err)
			return
		}
		if err := d.registry.Delete(ctx, body.SecretHash); err != nil {
			writeError(w, err)
			return
		}
		writeNoContent(w)

	default:
		writeError(w, cmn.Errorf(cmn.NotFound, "unknown principal route %q", op))
	}
}

// namespaceOf derives the caller's namespace from its principal secret
// hash, used to scope channel and blob ownership.
func namespaceOf(p *authn.Principal) string {
	if p == nil {
		return ""
	}
	return p.SecretHash
}
