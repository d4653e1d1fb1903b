package manager

import "github.com/prometheus/client_golang/prometheus"

var (
	inferDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "modelzoo",
			Subsystem: "infer",
			Name:      "duration_seconds",
			Help:      "Model inference latency in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"model"},
	)

	loadsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "modelzoo",
		Subsystem: "manager",
		Name:      "loads_total",
		Help:      "Model instances loaded",
	})

	evictionsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "modelzoo",
		Subsystem: "manager",
		Name:      "evictions_total",
		Help:      "Model instances evicted to fit the memory budget",
	})
)

func init() {
	prometheus.MustRegister(inferDuration, loadsTotal, evictionsTotal)
}
