// Package metrics exposes the gateway's Prometheus counters and
// histograms on /metrics. Rate limiting itself is out of scope; this
// package only observes, giving operators the request-volume and
// latency signal the rest of the ambient stack assumes is always
// present.
/*
 * Copyright (c) 2024, NVIDIA CORPORATION. All rights reserved.
 */
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the process's Prometheus collectors.
type Metrics struct {
	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	registry        *prometheus.Registry
}

// New registers a fresh set of collectors on a private registry, so
// multiple Daemons in the same test process never collide on the
// default global registry.
func New() *Metrics {
	registry := prometheus.NewRegistry()
	m := &Metrics{
		requestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "storegate_requests_total",
			Help: "Total HTTP requests processed, by route and status code.",
		}, []string{"route", "status"}),
		requestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "storegate_request_duration_seconds",
			Help:    "Request handling latency in seconds, by route.",
			Buckets: prometheus.DefBuckets,
		}, []string{"route"}),
		registry: registry,
	}
	registry.MustRegister(m.requestsTotal, m.requestDuration)
	return m
}

// Handler returns the /metrics exposition handler.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Observe records one request's outcome against route.
func (m *Metrics) Observe(route string, status int, elapsed time.Duration) {
	m.requestsTotal.WithLabelValues(route, strconv.Itoa(status)).Inc()
	m.requestDuration.WithLabelValues(route).Observe(elapsed.Seconds())
}
