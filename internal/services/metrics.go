package services

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	appErr "github.com/accession-studio/engine/pkg/errors"
)

// Metrics holds the accessioning counters. A nil registry yields working but
// unregistered collectors, which is what tests use.
type Metrics struct {
	created           prometheus.Counter
	resolved          prometheus.Counter
	raceRecoveries    prometheus.Counter
	generationFailure prometheus.Counter
	operations        *prometheus.CounterVec
	batchDuration     prometheus.Histogram
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		created: factory.NewCounter(prometheus.CounterOpts{
			Name: "accession_created_total",
			Help: "accessions created by get-or-create",
		}),
		resolved: factory.NewCounter(prometheus.CounterOpts{
			Name: "accession_resolved_total",
			Help: "submitted objects resolved to an existing accession by hash",
		}),
		raceRecoveries: factory.NewCounter(prometheus.CounterOpts{
			Name: "accession_race_recoveries_total",
			Help: "inserts rejected by storage and re-resolved",
		}),
		generationFailure: factory.NewCounter(prometheus.CounterOpts{
			Name: "accession_generation_failures_total",
			Help: "batches failed because no accession could be generated",
		}),
		operations: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "accession_operations_total",
			Help: "lineage operations by kind and outcome",
		}, []string{"operation", "outcome"}),
		batchDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "accession_batch_duration_seconds",
			Help:    "get-or-create batch latency",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 15),
		}),
	}
}

func (m *Metrics) observeOperation(op string, err error) {
	outcome := "ok"
	if err != nil {
		outcome = string(appErr.CodeOf(err))
	}
	m.operations.WithLabelValues(op, outcome).Inc()
}
