package server

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	queriesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "falkordb",
		Subsystem: "server",
		Name:      "queries_total",
		Help:      "Queries executed, by command and outcome.",
	}, []string{"command", "status"})

	queryDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "falkordb",
		Subsystem: "server",
		Name:      "query_duration_seconds",
		Help:      "Wall-clock query execution time.",
		Buckets:   prometheus.ExponentialBuckets(0.0001, 4, 10),
	}, []string{"command"})

	planCacheHits = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "falkordb",
		Subsystem: "server",
		Name:      "plan_cache_hits_total",
		Help:      "Execution-plan cache hits.",
	})

	planCacheMisses = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "falkordb",
		Subsystem: "server",
		Name:      "plan_cache_misses_total",
		Help:      "Execution-plan cache misses.",
	})
)
