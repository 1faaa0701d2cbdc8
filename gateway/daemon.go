package gateway

import (
	"context"
	"net/http"
	"time"

	"github.com/NVIDIA/storegate/3rdparty/glog"
	"github.com/NVIDIA/storegate/adapter"
	adapteredge "github.com/NVIDIA/storegate/adapter/edge"
	adapterlocal "github.com/NVIDIA/storegate/adapter/local"
	"github.com/NVIDIA/storegate/auth"
	"github.com/NVIDIA/storegate/authn"
	"github.com/NVIDIA/storegate/blob"
	"github.com/NVIDIA/storegate/channel"
	"github.com/NVIDIA/storegate/cmn"
	"github.com/NVIDIA/storegate/cmn/debug"
	"github.com/NVIDIA/storegate/crypto"
	"github.com/NVIDIA/storegate/kv"
	"github.com/NVIDIA/storegate/metrics"
	"github.com/NVIDIA/storegate/presign"
)

// Daemon owns the gateway's wired-up service layer and HTTP router for
// the lifetime of one process.
type Daemon struct {
	conf *cmn.Config

	registry  *authn.Registry
	bootstrap *authn.Bootstrapper
	pipeline  *auth.Pipeline

	kv      *kv.Service
	blobSvc *blob.Service
	channel *channel.Service

	metrics *metrics.Metrics

	router *Router
}

// NewDaemon constructs the adapter bundle for conf.AdapterMode and
// wires every service on top of it.
func NewDaemon(ctx context.Context, conf *cmn.Config) (*Daemon, error) {
	adapters, err := newAdapters(ctx, conf)
	if err != nil {
		return nil, err
	}

	signingSecret, err := cmn.EnsureSigningSecret(conf.MetadataDir, crypto.NewSecretHex)
	if err != nil {
		return nil, err
	}
	if conf.SigningSecret != "" {
		signingSecret = conf.SigningSecret
	}
	presignSecret, err := crypto.DeriveSecret(signingSecret, "presign")
	if err != nil {
		return nil, err
	}
	signer := presign.NewSigner(presignSecret)

	registry := authn.NewRegistry(adapters.KV)
	bootstrap := authn.NewBootstrapper(registry, conf.BootstrapAPIKey)
	pipeline := auth.NewPipeline(registry, bootstrap)

	d := &Daemon{
		conf:      conf,
		registry:  registry,
		bootstrap: bootstrap,
		pipeline:  pipeline,
		kv:        kv.NewService(adapters.KV),
		blobSvc:   blob.NewService(adapters.KV, adapters.Blob, signer, conf.PresignExpiresIn, conf.PublicPresignTTL, conf.PublicDomain),
		channel:   channel.NewService(adapters.Channel, adapters.KV),
		metrics:   metrics.New(),
	}
	d.router = d.buildRouter()
	return d, nil
}

func newAdapters(ctx context.Context, conf *cmn.Config) (*adapter.Adapters, error) {
	switch conf.AdapterMode {
	case cmn.AdapterEdge:
		return adapteredge.NewAdapters(ctx, conf.Edge)
	default:
		return adapterlocal.NewAdapters(conf.Local)
	}
}

func (d *Daemon) buildRouter() *Router {
	rt := NewRouter()
	rt.Handle(cmn.RoutePrincipal, d.withMetrics(cmn.RoutePrincipal, d.handlePrincipal))
	rt.Handle(cmn.RouteKV, d.withMetrics(cmn.RouteKV, d.handleKV))
	rt.Handle("/blob/f/", d.withMetrics("/blob/f/", d.handleBlobPublicDownload))
	rt.Handle("/blob/download/", d.withMetrics("/blob/download/", d.handleBlobAuthenticatedDownload))
	rt.Handle("/blob/presigned-put", d.withMetrics("/blob/presigned-put", d.handleBlobPresignedPut))
	rt.Handle(cmn.RouteBlob, d.withMetrics(cmn.RouteBlob, d.handleBlob))
	rt.Handle("/channel/subscribe", d.withMetrics("/channel/subscribe", d.handleChannelSubscribe))
	rt.Handle(cmn.RouteChannel, d.withMetrics(cmn.RouteChannel, d.handleChannel))
	rt.Handle(cmn.RoutePing, d.withMetrics(cmn.RoutePing, d.handlePing))
	rt.Handle(cmn.RouteAdmin, d.withMetrics(cmn.RouteAdmin, d.handleAdmin))
	rt.Handle("/admin/compact", d.withMetrics("/admin/compact", d.handleAdminCompact))
	rt.Handle("/metrics", d.metrics.Handler().ServeHTTP)
	if d.conf.EnablePprof {
		for path, h := range debug.Handlers() {
			rt.Handle(path, h)
		}
	}
	return rt
}

// withMetrics records request count and latency for route before
// delegating to handler.
func (d *Daemon) withMetrics(route string, handler http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		handler(sw, r)
		d.metrics.Observe(route, sw.status, time.Since(start))
	}
}

// classify runs the auth pipeline for the current request.
func (d *Daemon) classify(r *http.Request, isBootstrapRoute, isPresignedRoute bool) (*auth.Identity, error) {
	return d.pipeline.Classify(r.Context(), r, isBootstrapRoute, isPresignedRoute)
}

// ListenAndServe starts the HTTP server and blocks until ctx is
// cancelled or the server fails.
func (d *Daemon) ListenAndServe(ctx context.Context) error {
	server := &http.Server{
		Addr:    d.conf.ListenAddr,
		Handler: WithMiddleware(d.router, d.conf.CORSOrigin),
	}

	errCh := make(chan error, 1)
	go func() {
		glog.Infof("gateway: listening on %s", d.conf.ListenAddr)
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err == http.ErrServerClosed {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	}
}
