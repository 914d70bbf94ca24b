package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	once sync.Once

	stageLatency = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "search_stage_latency_ms",
		Help:    "Latency of pipeline stages in milliseconds",
		Buckets: []float64{10, 25, 50, 100, 250, 500, 1000, 2500, 5000, 10000, 30000, 60000},
	}, []string{"stage"})

	cacheHits = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "search_cache_hits_total",
		Help: "Cache hits per layer (redis/sql) and kind (raw/format)",
	}, []string{"layer", "kind"})

	cacheMisses = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "search_cache_misses_total",
		Help: "Cache misses per kind (raw/format)",
	}, []string{"kind"})

	collectionErrors = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "search_collection_errors_total",
		Help: "Per-collection retrieval failures that were skipped",
	}, []string{"collection"})

	collectionResults = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "search_collection_results",
		Help:    "Number of results returned per collection query",
		Buckets: []float64{0, 1, 2, 5, 10, 20, 50},
	}, []string{"collection"})

	fusionOutcome = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "search_fusion_outcome_total",
		Help: "Specialist fusion outcomes (fused/useless/error/skipped)",
	}, []string{"outcome"})

	responseFormat = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "search_response_format_total",
		Help: "Responses served per format",
	}, []string{"format"})
)

func ensureRegistered() {
	once.Do(func() {
		prometheus.MustRegister(stageLatency, cacheHits, cacheMisses, collectionErrors, collectionResults, fusionOutcome, responseFormat)
	})
}

// ObserveStage records the latency of one pipeline stage.
func ObserveStage(stage string, start time.Time) {
	ensureRegistered()
	stageLatency.WithLabelValues(stage).Observe(float64(time.Since(start).Milliseconds()))
}

// IncCacheHit records a hit on a cache layer for raw or format entries.
func IncCacheHit(layer, kind string) {
	ensureRegistered()
	cacheHits.WithLabelValues(layer, kind).Inc()
}

// IncCacheMiss records a full miss across both layers.
func IncCacheMiss(kind string) {
	ensureRegistered()
	cacheMisses.WithLabelValues(kind).Inc()
}

// IncCollectionError records a skipped collection failure.
func IncCollectionError(collection string) {
	ensureRegistered()
	collectionErrors.WithLabelValues(collection).Inc()
}

// ObserveCollectionResults records how many hits a collection returned.
func ObserveCollectionResults(collection string, n int) {
	ensureRegistered()
	collectionResults.WithLabelValues(collection).Observe(float64(n))
}

// IncFusionOutcome records how a specialist fusion attempt ended.
func IncFusionOutcome(outcome string) {
	ensureRegistered()
	fusionOutcome.WithLabelValues(outcome).Inc()
}

// IncResponseFormat records the format of a served response.
func IncResponseFormat(format string) {
	ensureRegistered()
	responseFormat.WithLabelValues(format).Inc()
}

// Collectors exposes all collectors for external registration with a custom registry.
func Collectors() []prometheus.Collector {
	return []prometheus.Collector{
		stageLatency, cacheHits, cacheMisses, collectionErrors, collectionResults, fusionOutcome, responseFormat,
	}
}
