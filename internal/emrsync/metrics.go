package emrsync

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the sync counters. A nil *Metrics records nothing.
type Metrics struct {
	runs                  *prometheus.CounterVec
	admissions            *prometheus.CounterVec
	normalizationDefaults *prometheus.CounterVec
	batchAttempts         *prometheus.CounterVec
	lockAcquisitions      *prometheus.CounterVec
}

// NewMetrics creates the counters and registers them with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "emr_sync_runs_total",
			Help: "EMR sync runs by outcome.",
		}, []string{"outcome"}),
		admissions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "emr_sync_admissions_total",
			Help: "Admission bundles processed by status.",
		}, []string{"status"}),
		normalizationDefaults: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "emr_sync_normalization_defaults_total",
			Help: "Unrecognized external codes mapped to a default value, by field.",
		}, []string{"field"}),
		batchAttempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "emr_sync_batch_attempts_total",
			Help: "Batch import attempts by outcome.",
		}, []string{"outcome"}),
		lockAcquisitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "emr_sync_lock_acquisitions_total",
			Help: "Import lock acquisition attempts by result.",
		}, []string{"result"}),
	}
	if reg != nil {
		reg.MustRegister(m.runs, m.admissions, m.normalizationDefaults, m.batchAttempts, m.lockAcquisitions)
	}
	return m
}

func (m *Metrics) run(outcome string) {
	if m != nil {
		m.runs.WithLabelValues(outcome).Inc()
	}
}

func (m *Metrics) admission(status string) {
	if m != nil {
		m.admissions.WithLabelValues(status).Inc()
	}
}

func (m *Metrics) normalizationDefault(field string, n int) {
	if m != nil {
		m.normalizationDefaults.WithLabelValues(field).Add(float64(n))
	}
}

func (m *Metrics) batchAttempt(outcome string) {
	if m != nil {
		m.batchAttempts.WithLabelValues(outcome).Inc()
	}
}

func (m *Metrics) lockAcquisition(result string) {
	if m != nil {
		m.lockAcquisitions.WithLabelValues(result).Inc()
	}
}
