// Package syncmetrics exposes Prometheus counters/gauges for push and pull
// activity, grounded on the teacher's internal/metrics custom-collector
// registration (client_golang CounterVec/GaugeVec keyed by collection).
package syncmetrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/cachesync/cachesync/internal/synccore"
)

// Recorder records push/pull outcomes as Prometheus series.
type Recorder struct {
	pushSuccess *prometheus.CounterVec
	pushError   *prometheus.CounterVec
	pullEntities *prometheus.CounterVec
	ledgerSize  *prometheus.GaugeVec
}

// NewRecorder builds a Recorder and registers its collectors with reg. Pass
// prometheus.DefaultRegisterer to expose on the process-wide /metrics
// endpoint.
func NewRecorder(reg prometheus.Registerer) (*Recorder, error) {
	r := &Recorder{
		pushSuccess: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "cachesync",
			Subsystem: "push",
			Name:      "reconciled_total",
			Help:      "Ledger entries successfully reconciled by a push, by collection.",
		}, []string{"collection"}),
		pushError: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "cachesync",
			Subsystem: "push",
			Name:      "errors_total",
			Help:      "Ledger entries that failed to reconcile during a push, by collection.",
		}, []string{"collection"}),
		pullEntities: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "cachesync",
			Subsystem: "pull",
			Name:      "entities_total",
			Help:      "Entities fetched by a pull's network phase, by collection.",
		}, []string{"collection"}),
		ledgerSize: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "cachesync",
			Subsystem: "ledger",
			Name:      "pending_entries",
			Help:      "Pending ledger entries remaining after the last push, by collection.",
		}, []string{"collection"}),
	}

	for _, c := range []prometheus.Collector{r.pushSuccess, r.pushError, r.pullEntities, r.ledgerSize} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// ObservePush records a completed PushResult.
func (r *Recorder) ObservePush(result *synccore.PushResult) {
	if result == nil {
		return
	}
	r.pushSuccess.WithLabelValues(result.Collection).Add(float64(len(result.Success)))
	r.pushError.WithLabelValues(result.Collection).Add(float64(len(result.Error)))
}

// ObservePull records the entity count a pull's network phase fetched.
func (r *Recorder) ObservePull(collection string, entityCount int) {
	r.pullEntities.WithLabelValues(collection).Add(float64(entityCount))
}

// ObserveLedgerSize records the ledger size remaining after a push.
func (r *Recorder) ObserveLedgerSize(collection string, size int) {
	r.ledgerSize.WithLabelValues(collection).Set(float64(size))
}
