package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	VisitsRecorded = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "signin",
		Name:      "visits_recorded_total",
		Help:      "Visit events appended to the ledger",
	}, []string{"direction"})

	SignInRejected = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "signin",
		Name:      "rejected_total",
		Help:      "Sign-in/out attempts rejected by site policy",
	}, []string{"direction", "reason"})

	OnSite = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "signin",
		Name:      "on_site",
		Help:      "Workers currently on site",
	})

	PersistErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "signin",
		Name:      "persist_errors_total",
		Help:      "Failed state blob reads or writes",
	}, []string{"key", "op"})

	HistoryPruned = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "signin",
		Name:      "history_pruned_total",
		Help:      "Superseded state blob revisions deleted",
	})

	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "signin",
		Name:      "http_request_duration_seconds",
		Help:      "HTTP request duration",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method", "path", "status"})
)
