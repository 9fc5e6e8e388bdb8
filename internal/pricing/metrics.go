package pricing

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	calculationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pricing_calculations_total",
		Help: "Price calculations by result source",
	}, []string{"source"})

	calculationDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "pricing_calculation_duration_seconds",
		Help:    "Time to resolve a configuration and compute a price",
		Buckets: prometheus.ExponentialBuckets(0.0005, 2, 12), // 0.5ms to ~1s
	})

	fallbackTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "pricing_fallback_total",
		Help: "Calculations served from the built-in fallback rate table",
	})

	distanceResolutionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pricing_distance_resolutions_total",
		Help: "Distance resolutions by source",
	}, []string{"source"})

	computationGapsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "pricing_computation_gaps_total",
		Help: "Calculations refused because no distance band covered the distance",
	})
)

func recordCalculation(result *PriceResult, seconds float64) {
	calculationDuration.Observe(seconds)
	calculationsTotal.WithLabelValues(string(result.Source)).Inc()
	if result.Fallback {
		fallbackTotal.Inc()
	}
	if result.DistanceSource != "" {
		distanceResolutionsTotal.WithLabelValues(string(result.DistanceSource)).Inc()
	}
}
