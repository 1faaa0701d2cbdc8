// Package gateway wires the service layer (authn, kv, blob, channel)
// to HTTP: routing by fixed path prefix, the auth pipeline, request
// logging, and CORS, matching the gateway design's preference for an
// explicit prefix table over a generic word-list muxer.
/*
 * Copyright (c) 2024, NVIDIA CORPORATION. All rights reserved.
 */
package gateway

import (
	"net/http"
	"strings"

	"github.com/NVIDIA/storegate/3rdparty/glog"
	"github.com/NVIDIA/storegate/cmn"
)

// route pairs a fixed path prefix with the handler that owns
// everything under it.
type route struct {
	prefix  string
	handler http.HandlerFunc
}

// Router dispatches through an http.ServeMux: a pattern ending in "/"
// matches that subtree (longest pattern wins), any other pattern
// matches its exact path only.
type Router struct {
	routes []route
	mux    *http.ServeMux
}

func NewRouter() *Router {
	return &Router{mux: http.NewServeMux()}
}

// Handle registers handler for prefix: every path under it when prefix
// ends in "/", otherwise that exact path only.
func (rt *Router) Handle(prefix string, handler http.HandlerFunc) {
	rt.routes = append(rt.routes, route{prefix: prefix, handler: handler})
	rt.mux.HandleFunc(prefix, handler)
}

func (rt *Router) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	rt.mux.ServeHTTP(w, r)
}

// WithMiddleware wraps h with logging and CORS, in that order from the
// outside in (logging sees the real status, CORS runs before the
// handler so preflight never reaches it).
func WithMiddleware(h http.Handler, corsOrigin string) http.Handler {
	return logMiddleware(corsMiddleware(h, corsOrigin))
}

func logMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(sw, r)
		if glog.V(3) {
			glog.Infof("gateway: %s %s -> %d", r.Method, r.URL.Path, sw.status)
		}
	})
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}

func corsMiddleware(next http.Handler, origin string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", origin)
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", strings.Join([]string{
			cmn.HeaderAuthorization, cmn.HeaderChannelToken, cmn.HeaderLogToken, cmn.HeaderContentType,
		}, ", "))
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}
