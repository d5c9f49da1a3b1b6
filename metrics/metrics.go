// Package metrics exposes the node's Prometheus counters and an optional
// /metrics HTTP handler (spec §6: "Metrics hook: optional counters —
// packets received, dropped-structural, mac-failed, replayed, forwarded,
// delivered, cover-emitted, rate-limited, banned.").
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry groups every counter the node exports. It has no methods of
// its own; the dispatcher skips counting when its *Registry is nil, so
// callers that don't want metrics can skip construction entirely.
type Registry struct {
	Received          prometheus.Counter
	DroppedStructural prometheus.Counter
	MacFailed         prometheus.Counter
	Replayed          prometheus.Counter
	Forwarded         prometheus.Counter
	Delivered         prometheus.Counter
	CoverEmitted      prometheus.Counter
	RateLimited       prometheus.Counter
	Banned            prometheus.Counter
}

// New constructs a Registry with every counter registered on reg. Pass
// prometheus.NewRegistry() for an isolated registry (tests) or nil to use
// the default global one.
func New(reg *prometheus.Registry) *Registry {
	r := &Registry{
		Received: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "mixnode_packets_received_total",
			Help: "Total packets received on the wire.",
		}),
		DroppedStructural: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "mixnode_packets_dropped_structural_total",
			Help: "Packets dropped for a wrong length, an invalid ephemeral key or an unrecognized routing tag.",
		}),
		MacFailed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "mixnode_packets_mac_failed_total",
			Help: "Packets dropped for failing MAC verification.",
		}),
		Replayed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "mixnode_packets_replayed_total",
			Help: "Packets dropped as replays of an already-seen tag.",
		}),
		Forwarded: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "mixnode_packets_forwarded_total",
			Help: "Packets successfully processed and forwarded to a next hop.",
		}),
		Delivered: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "mixnode_packets_delivered_total",
			Help: "Packets whose terminal payload was handed to the delivery sink.",
		}),
		CoverEmitted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "mixnode_cover_packets_emitted_total",
			Help: "Cover packets emitted by this node.",
		}),
		RateLimited: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "mixnode_packets_rate_limited_total",
			Help: "Packets rejected by the rate limiter.",
		}),
		Banned: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "mixnode_sources_banned_total",
			Help: "Packets rejected because their source IP is banned.",
		}),
	}

	registerer := prometheus.Registerer(prometheus.DefaultRegisterer)
	if reg != nil {
		registerer = reg
	}

	registerer.MustRegister(
		r.Received, r.DroppedStructural, r.MacFailed, r.Replayed,
		r.Forwarded, r.Delivered, r.CoverEmitted, r.RateLimited, r.Banned,
	)

	return r
}

// Handler returns the standard promhttp handler for gatherer, suitable
// for mounting at /metrics.
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// ListenAndServe starts a dedicated metrics server on addr, serving
// /metrics from gatherer. It runs until the process exits or the
// listener errors.
func ListenAndServe(addr string, gatherer prometheus.Gatherer) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", Handler(gatherer))

	server := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	return server.ListenAndServe()
}
