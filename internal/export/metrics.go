package export

import "github.com/prometheus/client_golang/prometheus"

var (
	// exportsTotal counts finished exports by outcome (ok, failed).
	exportsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "receipt_exports_total",
			Help: "Total number of receipt PDF exports by outcome.",
		},
		[]string{"outcome"},
	)

	// exportsDropped counts requests rejected because an export was running.
	exportsDropped = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "receipt_exports_dropped_total",
			Help: "Receipt exports dropped because another export was in progress.",
		},
	)

	// exportPages observes the page count of successful exports.
	exportPages = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "receipt_export_pages",
			Help:    "Number of pages per exported receipt.",
			Buckets: []float64{1, 2, 3, 5, 10},
		},
	)
)

func init() {
	prometheus.MustRegister(exportsTotal, exportsDropped, exportPages)
}
