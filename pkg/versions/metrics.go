package versions

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	versionsCreatedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "record_versions_created_total",
		Help: "Total number of versions created",
	}, []string{"table"})

	versionsRestoredTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "record_versions_restored_total",
		Help: "Total number of versions restored",
	}, []string{"table"})

	versionsPurgedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "record_versions_purged_total",
		Help: "Total number of versions deleted by the retention sweep",
	})

	auditRowsDroppedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "record_versions_audit_rows_dropped_total",
		Help: "Audit listing rows dropped before display",
	}, []string{"reason"})

	operationDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "record_versions_operation_duration_seconds",
		Help:    "Duration of version store operations",
		Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1},
	}, []string{"operation"})
)
