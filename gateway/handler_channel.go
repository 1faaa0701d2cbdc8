package gateway

import (
	"bufio"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/NVIDIA/storegate/auth"
	"github.com/NVIDIA/storegate/captoken"
	"github.com/NVIDIA/storegate/cmn"
)

func (d *Daemon) handleChannel(w http.ResponseWriter, r *http.Request) {
	op := strings.TrimPrefix(r.URL.Path, cmn.RouteChannel)
	ctx := r.Context()

	ident, err := d.classify(r, false, false)
	if err != nil {
		writeError(w, err)
		return
	}

	switch op {
	case "create":
		principal, err := auth.RequirePrincipal(ident)
		if err != nil {
			writeError(w, err)
			return
		}
		var body struct{ Name string }
		if err := decodeJSON(r, &body); err != nil {
			writeError(w, err)
			return
		}
		info, err := d.channel.Create(ctx, namespaceOf(principal), body.Name)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, info)

	case "list":
		principal, err := auth.RequirePrincipal(ident)
		if err != nil {
			writeError(w, err)
			return
		}
		list, err := d.channel.List(ctx, namespaceOf(principal))
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, list)

	case "delete":
		principal, err := auth.RequirePrincipal(ident)
		if err != nil {
			writeError(w, err)
			return
		}
		var body struct{ ChannelID string }
		if err := decodeJSON(r, &body); err != nil {
			writeError(w, err)
			return
		}
		if err := d.channel.Delete(ctx, namespaceOf(principal), body.ChannelID); err != nil {
			writeError(w, err)
			return
		}
		writeNoContent(w)

	case "token/create":
		principal, err := auth.RequirePrincipal(ident)
		if err != nil {
			writeError(w, err)
			return
		}
		var body struct {
			ChannelID   string   `json:"channel_id"`
			Permissions []string `json:"permissions"`
			AuthorID    string   `json:"author_id"`
			ExpiresIn   int64    `json:"expires_in"`
		}
		if err := decodeJSON(r, &body); err != nil {
			writeError(w, err)
			return
		}
		if err := d.channel.VerifyOwner(ctx, namespaceOf(principal), body.ChannelID); err != nil {
			writeError(w, err)
			return
		}
		perms := parsePermissions(body.Permissions)
		ttl := d.conf.TokenDefaultTTL
		if body.ExpiresIn > 0 {
			ttl = time.Duration(body.ExpiresIn) * time.Second
			if ttl > d.conf.TokenMaxTTL {
				ttl = d.conf.TokenMaxTTL
			}
		}
		token, err := d.channel.IssueToken(ctx, body.ChannelID, perms, body.AuthorID, ttl)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"token": token})

	case "append":
		claims, err := d.requireChannelToken(r)
		if err != nil {
			writeError(w, err)
			return
		}
		var body struct{ ChannelID, Content string }
		if err := decodeJSON(r, &body); err != nil {
			writeError(w, err)
			return
		}
		ev, err := d.channel.Append(ctx, body.ChannelID, claims, body.Content)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, ev)

	case "read":
		claims, err := d.requireChannelToken(r)
		if err != nil {
			writeError(w, err)
			return
		}
		var body struct {
			ChannelID      string `json:"channel_id"`
			AfterSeq       int64  `json:"after_seq"`
			Limit          int    `json:"limit"`
			IncludeDeleted bool   `json:"include_deleted"`
		}
		if err := decodeJSON(r, &body); err != nil {
			writeError(w, err)
			return
		}
		events, hasMore, err := d.channel.Read(ctx, body.ChannelID, claims, body.AfterSeq, body.Limit, body.IncludeDeleted)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]interface{}{"events": events, "hasMore": hasMore})

	case "delete-event":
		claims, err := d.requireChannelToken(r)
		if err != nil {
			writeError(w, err)
			return
		}
		var body struct {
			ChannelID string `json:"channel_id"`
			TargetSeq int64  `json:"target_seq"`
		}
		if err := decodeJSON(r, &body); err != nil {
			writeError(w, err)
			return
		}
		ev, err := d.channel.DeleteEvent(ctx, body.ChannelID, claims, body.TargetSeq)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, ev)

	default:
		writeError(w, cmn.Errorf(cmn.NotFound, "unknown channel route %q", op))
	}
}

// requireChannelToken reads X-Channel-Token (or its legacy alias
// X-Log-Token) and verifies it against the target channel's secret.
func (d *Daemon) requireChannelToken(r *http.Request) (*captoken.Claims, error) {
	token := r.Header.Get(cmn.HeaderChannelToken)
	if token == "" {
		token = r.Header.Get(cmn.HeaderLogToken)
	}
	if token == "" {
		return nil, cmn.Errorf(cmn.AuthMalformed, "missing channel token")
	}
	return d.channel.VerifyToken(r.Context(), token)
}

func parsePermissions(names []string) captoken.Permissions {
	var perms captoken.Permissions
	table := map[string]captoken.Permissions{
		"read":         captoken.Read,
		"append":       captoken.Append,
		"read_deleted": captoken.ReadDeleted,
		"delete_own":   captoken.DeleteOwn,
		"delete_any":   captoken.DeleteAny,
		"create":       captoken.Create,
		"share":        captoken.Share,
		"delegate":     captoken.Delegate,
	}
	for _, name := range names {
		if p, ok := table[name]; ok {
			perms |= p
		}
	}
	return perms
}

// handleChannelSubscribe serves GET /channel/subscribe?token=...&channelId=...&afterSeq=...
// as server-sent events, polling once per second and streaming until
// the client disconnects.
func (d *Daemon) handleChannelSubscribe(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	channelID := r.URL.Query().Get("channelId")
	afterSeq, _ := strconv.ParseInt(r.URL.Query().Get("afterSeq"), 10, 64)

	if token == "" || channelID == "" {
		writeError(w, cmn.Errorf(cmn.BadRequest, "missing token or channelId"))
		return
	}
	claims, err := d.channel.VerifyToken(r.Context(), token)
	if err != nil {
		writeError(w, err)
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, cmn.Errorf(cmn.AdapterFatal, "streaming not supported by this response writer"))
		return
	}

	events, err := d.channel.Subscribe(r.Context(), channelID, claims, afterSeq, time.Second)
	if err != nil {
		writeError(w, err)
		return
	}

	w.Header().Set(cmn.HeaderContentType, "text/event-stream")
	w.Header().Set(cmn.HeaderCacheControl, "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	bw := bufio.NewWriter(w)
	fmt.Fprintf(bw, "event: connected\ndata: {}\n\n")
	bw.Flush()
	flusher.Flush()

	for ev := range events {
		raw, err := json.Marshal(ev)
		if err != nil {
			return
		}
		fmt.Fprintf(bw, "id: %d\ndata: %s\n\n", ev.Seq, raw)
		bw.Flush()
		flusher.Flush()
	}
}
