package maintenance

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	jobFailuresTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "record_versions_job_failures_total",
		Help: "Maintenance job runs that returned an error",
	}, []string{"job"})

	jobPanicsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "record_versions_job_panics_total",
		Help: "Maintenance job runs that panicked",
	}, []string{"job"})
)
