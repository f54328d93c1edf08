package results

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	computeTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "riskindex",
			Name:      "computations_total",
			Help:      "Result computations by outcome.",
		},
		[]string{"outcome"},
	)
	computeDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "riskindex",
			Name:      "computation_duration_seconds",
			Help:      "Time spent fetching inputs and running the aggregation engine.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"outcome"},
	)
	computedCountries = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "riskindex",
		Name:      "last_computation_countries",
		Help:      "Countries with a global index in the last computation.",
	})
	computedCategories = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "riskindex",
		Name:      "last_computation_categories",
		Help:      "Categories with indicators in the last computation.",
	})
	snapshotsPublished = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "riskindex",
		Name:      "snapshots_published_total",
		Help:      "Ranking snapshots published to the event bus.",
	})
)
