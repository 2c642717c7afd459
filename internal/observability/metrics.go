package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	RecommendationsTotal = promauto.NewCounter(prometheus.CounterOpts{Namespace: "meetpoint", Name: "recommendations_total", Help: "Total recommendation requests served"})
	RecommendationLatency = promauto.NewHistogram(prometheus.HistogramOpts{Namespace: "meetpoint", Name: "recommendation_latency_seconds", Help: "End-to-end recommendation latency"})

	CandidatesRetained = promauto.NewCounter(prometheus.CounterOpts{Namespace: "meetpoint", Name: "candidates_retained_total", Help: "Candidates that passed the quality gate"})
	CandidatesDropped  = promauto.NewCounter(prometheus.CounterOpts{Namespace: "meetpoint", Name: "candidates_dropped_total", Help: "Candidates dropped for incomplete travel costs"})

	ProviderErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{Namespace: "meetpoint", Name: "provider_errors_total", Help: "External provider call failures"},
		[]string{"endpoint"},
	)
	TravelCacheHits   = promauto.NewCounter(prometheus.CounterOpts{Namespace: "meetpoint", Name: "travel_cache_hits_total", Help: "Travel cost cache hits"})
	TravelCacheMisses = promauto.NewCounter(prometheus.CounterOpts{Namespace: "meetpoint", Name: "travel_cache_misses_total", Help: "Travel cost cache misses"})

	VotesCast      = promauto.NewCounter(prometheus.CounterOpts{Namespace: "meetpoint", Name: "votes_cast_total", Help: "Votes recorded"})
	VotesRetracted = promauto.NewCounter(prometheus.CounterOpts{Namespace: "meetpoint", Name: "votes_retracted_total", Help: "Votes retracted"})
	RoomsFinalized = promauto.NewCounter(prometheus.CounterOpts{Namespace: "meetpoint", Name: "rooms_finalized_total", Help: "Rooms transitioned to completed"})

	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{Namespace: "meetpoint", Name: "http_requests_total", Help: "Total HTTP requests handled"},
		[]string{"method", "path", "status"},
	)
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "meetpoint",
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency distribution",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)
)
