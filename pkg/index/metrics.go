package index

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	populatedEntities = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "falkordb",
		Subsystem: "index",
		Name:      "populated_entities_total",
		Help:      "Entities indexed by the background populator.",
	}, []string{"graph", "entity_type"})

	populationBatches = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "falkordb",
		Subsystem: "index",
		Name:      "population_batches_total",
		Help:      "Read-locked batches executed by the background populator.",
	}, []string{"graph", "entity_type"})
)
