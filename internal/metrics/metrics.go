// Package metrics exposes Prometheus metrics for searches, lookups, and the HTTP API.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/codeGROOVE-dev/dossier/pkg/httpcache"
)

var (
	lookupsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "dossier",
			Name:      "lookups_total",
			Help:      "Total identifier lookups by kind and outcome",
		},
		[]string{"kind", "status"},
	)

	lookupDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "dossier",
			Name:      "lookup_duration_seconds",
			Help:      "Identifier lookup duration in seconds",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		},
		[]string{"kind"},
	)

	searchesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "dossier",
			Name:      "searches_total",
			Help:      "Total smart searches completed",
		},
	)

	searchDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "dossier",
			Name:      "search_duration_seconds",
			Help:      "Smart search duration in seconds",
			Buckets:   []float64{0.5, 1, 2.5, 5, 10, 30, 60, 120},
		},
	)

	searchCandidates = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "dossier",
			Name:      "search_candidates",
			Help:      "Candidates produced per smart search",
			Buckets:   []float64{0, 1, 2, 5, 10, 20, 50},
		},
	)

	cacheHits = prometheus.NewCounterFunc(
		prometheus.CounterOpts{
			Namespace: "dossier",
			Name:      "http_cache_hits_total",
			Help:      "Outbound HTTP responses served from cache",
		},
		func() float64 { return float64(httpcache.CacheStats().Hits) },
	)

	cacheMisses = prometheus.NewCounterFunc(
		prometheus.CounterOpts{
			Namespace: "dossier",
			Name:      "http_cache_misses_total",
			Help:      "Outbound HTTP responses fetched from the network",
		},
		func() float64 { return float64(httpcache.CacheStats().Misses) },
	)
)

func init() {
	prometheus.MustRegister(lookupsTotal, lookupDuration, searchesTotal, searchDuration, searchCandidates, cacheHits, cacheMisses)
}

// Collector records smart search events. The zero value is ready to use.
type Collector struct{}

// LookupDone records one identifier lookup.
func (Collector) LookupDone(kind string, err error, d time.Duration) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	lookupsTotal.WithLabelValues(kind, status).Inc()
	lookupDuration.WithLabelValues(kind).Observe(d.Seconds())
}

// SearchDone records one completed search.
func (Collector) SearchDone(candidates int, d time.Duration) {
	searchesTotal.Inc()
	searchDuration.Observe(d.Seconds())
	searchCandidates.Observe(float64(candidates))
}
