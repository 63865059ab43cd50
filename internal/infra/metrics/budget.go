package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() { register(costToday, modelDisabled, thresholdTrips) }

var (
	costToday = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "budget_cost_today_usd",
			Help: "Accumulated backend spend for the current UTC day.",
		},
	)

	modelDisabled = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "budget_model_disabled",
			Help: "1 when a model is disabled by the breaker or an operator.",
		},
		[]string{"model"},
	)

	thresholdTrips = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "budget_threshold_trips_total",
			Help: "Times each budget tier was the highest tier reached by an event.",
		},
		[]string{"tier"}, // "warn" | "crit" | "emergency"
	)
)

func SetCostToday(usd float64) { costToday.Set(usd) }

func SetModelDisabled(model string, disabled bool) {
	v := 0.0
	if disabled {
		v = 1.0
	}
	modelDisabled.WithLabelValues(norm(model)).Set(v)
}

func IncThresholdTrip(tier string) {
	thresholdTrips.WithLabelValues(norm(tier)).Inc()
}
