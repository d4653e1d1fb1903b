package fetch

import "github.com/prometheus/client_golang/prometheus"

var (
	fetchBytesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "modelzoo",
			Subsystem: "fetch",
			Name:      "bytes_total",
			Help:      "Total artifact bytes downloaded",
		},
	)

	fetchFilesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "modelzoo",
			Subsystem: "fetch",
			Name:      "files_total",
			Help:      "Artifacts processed by result (cached, downloaded, size_mismatch, checksum_mismatch, error)",
		},
		[]string{"result"},
	)
)

func init() {
	prometheus.MustRegister(fetchBytesTotal, fetchFilesTotal)
}
