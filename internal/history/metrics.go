package history

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// buildDuration tracks how long one history build takes per entity kind
	buildDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "wellhistory_build_duration_seconds",
		Help:    "History build duration in seconds",
		Buckets: prometheus.ExponentialBuckets(0.001, 2, 12),
	}, []string{"kind"})

	// buildTotal counts history builds by kind and result
	buildTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "wellhistory_builds_total",
		Help: "Total history builds by kind and result",
	}, []string{"kind", "result"})

	// entriesEmitted counts history entries returned per kind
	entriesEmitted = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "wellhistory_entries_emitted_total",
		Help: "Total history entries emitted by kind",
	}, []string{"kind"})

	// normalizeFallbacks counts values the normalizer could not resolve
	normalizeFallbacks = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "wellhistory_normalize_fallbacks_total",
		Help: "Total normalizer fallbacks by reason",
	}, []string{"reason"})
)

const (
	fallbackUnresolvedReference = "unresolved_reference"
	fallbackMalformedGeometry   = "malformed_geometry"
)
