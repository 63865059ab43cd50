package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() {
	register(queueDepth, batchSize, tasksTotal, tasksDropped)
}

var (
	queueDepth = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "pipeline_queue_depth",
			Help: "Current pending items per component queue.",
		},
		[]string{"component"}, // "dispatcher" | "gateway"
	)

	batchSize = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "dispatcher_batch_size",
			Help:    "Number of tasks collected per dispatcher batch.",
			Buckets: []float64{1, 2, 4, 8, 16, 32, 64},
		},
	)

	tasksTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pipeline_tasks_total",
			Help: "Completed tasks/requests per component and outcome.",
		},
		[]string{"component", "status"}, // status="ok"|"failed"
	)

	tasksDropped = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pipeline_tasks_dropped_total",
			Help: "Submissions dropped because a queue stayed full past the bounded wait.",
		},
		[]string{"component"},
	)
)

func SetQueueDepth(component string, n int) {
	queueDepth.WithLabelValues(norm(component)).Set(float64(n))
}

func ObserveBatchSize(n int) { batchSize.Observe(float64(n)) }

func IncTask(component, status string) {
	tasksTotal.WithLabelValues(norm(component), norm(status)).Inc()
}

func IncDropped(component string) {
	tasksDropped.WithLabelValues(norm(component)).Inc()
}
