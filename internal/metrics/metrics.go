package metrics

import (
	"io"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"
)

// Backup outcomes.
const (
	OutcomeStored     = "stored"
	OutcomeReplaced   = "replaced"
	OutcomeSkipped    = "skipped"
	OutcomeCopyFailed = "copy_failed"
	OutcomeExhausted  = "exhausted"
	OutcomeIOError    = "io_error"
	OutcomeError      = "error"
)

// Restore outcomes.
const (
	RestoreDone     = "done"
	RestoreDeclined = "declined"
	RestoreFailed   = "failed"
)

// Metrics holds the collectors for one process. Each instance owns its
// registry so tests can create isolated sets. All methods are safe on a nil
// receiver, which records nothing.
type Metrics struct {
	Registry *prometheus.Registry

	BackupTotal     *prometheus.CounterVec
	BackupSkipped   *prometheus.CounterVec
	BackupDuration  *prometheus.HistogramVec
	EvictionsTotal  prometheus.Counter
	RestoreTotal    *prometheus.CounterVec
	RestoreFailures *prometheus.CounterVec
	RestoreDuration prometheus.Histogram
	AutoEnabled     prometheus.Gauge
	WorkerInFlight  prometheus.Gauge
	StoredRecords   prometheus.Gauge
	StoredChats     prometheus.Gauge
}

// New creates and registers a full set of collectors.
func New() *Metrics {
	m := &Metrics{
		Registry: prometheus.NewRegistry(),
		BackupTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "chatbackup_backup_total",
			Help: "Backup attempts that reached the store, by outcome.",
		}, []string{"outcome"}),
		BackupSkipped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "chatbackup_backup_skipped_total",
			Help: "Backup attempts skipped before snapshotting, by reason.",
		}, []string{"reason"}),
		BackupDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "chatbackup_backup_duration_seconds",
			Help:    "Time spent copying and storing a snapshot.",
			Buckets: prometheus.DefBuckets,
		}, []string{"backend"}),
		EvictionsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "chatbackup_evictions_total",
			Help: "Records evicted to stay within capacity.",
		}),
		RestoreTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "chatbackup_restore_total",
			Help: "Restore attempts, by outcome.",
		}, []string{"outcome"}),
		RestoreFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "chatbackup_restore_step_failures_total",
			Help: "Restore failures, by the step that failed.",
		}, []string{"step"}),
		RestoreDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "chatbackup_restore_duration_seconds",
			Help:    "Time from confirmation to completion of a restore.",
			Buckets: prometheus.DefBuckets,
		}),
		AutoEnabled: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "chatbackup_auto_backup_enabled",
			Help: "1 when automatic backups are enabled.",
		}),
		WorkerInFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "chatbackup_worker_in_flight",
			Help: "Backup requests currently running on the worker pool.",
		}),
		StoredRecords: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "chatbackup_stored_records",
			Help: "Records currently held in the store.",
		}),
		StoredChats: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "chatbackup_stored_chats",
			Help: "Conversations with at least one stored record.",
		}),
	}

	m.Registry.MustRegister(
		m.BackupTotal, m.BackupSkipped, m.BackupDuration, m.EvictionsTotal,
		m.RestoreTotal, m.RestoreFailures, m.RestoreDuration,
		m.AutoEnabled, m.WorkerInFlight, m.StoredRecords, m.StoredChats,
	)
	return m
}

// ObserveBackup records a backup attempt that reached the backend.
func (m *Metrics) ObserveBackup(backend, outcome string, evicted int, d time.Duration) {
	if m == nil {
		return
	}
	m.BackupTotal.WithLabelValues(outcome).Inc()
	m.BackupDuration.WithLabelValues(backend).Observe(d.Seconds())
	if evicted > 0 {
		m.EvictionsTotal.Add(float64(evicted))
	}
}

// ObserveSkip records a backup attempt that stopped at a precondition.
func (m *Metrics) ObserveSkip(reason string) {
	if m == nil {
		return
	}
	m.BackupSkipped.WithLabelValues(reason).Inc()
}

// ObserveRestore records a finished restore. step is the failed step for
// RestoreFailed and ignored otherwise.
func (m *Metrics) ObserveRestore(outcome, step string, d time.Duration) {
	if m == nil {
		return
	}
	m.RestoreTotal.WithLabelValues(outcome).Inc()
	if outcome == RestoreFailed && step != "" {
		m.RestoreFailures.WithLabelValues(step).Inc()
	}
	if outcome != RestoreDeclined {
		m.RestoreDuration.Observe(d.Seconds())
	}
}

// SetAutoEnabled reports whether automatic backups are on.
func (m *Metrics) SetAutoEnabled(on bool) {
	if m == nil {
		return
	}
	if on {
		m.AutoEnabled.Set(1)
	} else {
		m.AutoEnabled.Set(0)
	}
}

// WorkerStarted and WorkerDone bracket one worker request.
func (m *Metrics) WorkerStarted() {
	if m != nil {
		m.WorkerInFlight.Inc()
	}
}

// WorkerDone marks a worker request as finished.
func (m *Metrics) WorkerDone() {
	if m != nil {
		m.WorkerInFlight.Dec()
	}
}

// SetStored reports the store's current size.
func (m *Metrics) SetStored(records, chats int) {
	if m == nil {
		return
	}
	m.StoredRecords.Set(float64(records))
	m.StoredChats.Set(float64(chats))
}

// WritePrometheus writes every collector in the Prometheus text format.
func (m *Metrics) WritePrometheus(w io.Writer) error {
	if m == nil {
		return nil
	}
	families, err := m.Registry.Gather()
	if err != nil {
		return errors.Wrap(err, "gathering metrics")
	}
	enc := expfmt.NewEncoder(w, expfmt.NewFormat(expfmt.TypeTextPlain))
	for _, mf := range families {
		if err := enc.Encode(mf); err != nil {
			return errors.Wrap(err, "encoding metrics")
		}
	}
	return nil
}
