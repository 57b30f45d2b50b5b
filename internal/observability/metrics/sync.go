package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/kirillkom/catalog-image-sync/internal/core/domain"
)

// SyncMetrics records run and reconciliation measurements.
type SyncMetrics struct {
	service string

	runsTotal        *prometheus.CounterVec
	runDuration      *prometheus.HistogramVec
	runsInFlight     prometheus.Gauge
	branchRows       *prometheus.CounterVec
	branchFailures   *prometheus.CounterVec
	dirsRecorded     prometheus.Counter
	eventsDropped    *prometheus.CounterVec
	lastSuccessStamp prometheus.Gauge
}

func NewSyncMetrics(registry prometheus.Registerer, service string) *SyncMetrics {
	constLabels := prometheus.Labels{"service": service}

	runsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "run",
			Name:      "total",
			Help:      "Completed sync runs by trigger source and status.",
		},
		[]string{"service", "source", "status"},
	)
	runDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "run",
			Name:      "duration_seconds",
			Help:      "Sync run duration in seconds by status.",
			Buckets:   []float64{1, 5, 15, 30, 60, 120, 300, 600, 1200, 1800},
		},
		[]string{"service", "status"},
	)
	runsInFlight := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace:   namespace,
			Subsystem:   "run",
			Name:        "in_flight",
			Help:        "1 while a sync run is executing.",
			ConstLabels: constLabels,
		},
	)
	branchRows := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "reconcile",
			Name:      "rows_total",
			Help:      "Rows upserted by branch.",
		},
		[]string{"service", "branch"},
	)
	branchFailures := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "reconcile",
			Name:      "branch_failures_total",
			Help:      "Failed branch upserts.",
		},
		[]string{"service", "branch"},
	)
	dirsRecorded := prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace:   namespace,
			Subsystem:   "dir_state",
			Name:        "recorded_total",
			Help:        "Directory state markers written.",
			ConstLabels: constLabels,
		},
	)
	eventsDropped := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "events",
			Name:      "dropped_total",
			Help:      "Events dropped for slow subscribers by topic.",
		},
		[]string{"service", "topic"},
	)
	lastSuccess := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace:   namespace,
			Subsystem:   "run",
			Name:        "last_success_timestamp_seconds",
			Help:        "Unix time of the last successful run.",
			ConstLabels: constLabels,
		},
	)

	registry.MustRegister(runsTotal, runDuration, runsInFlight, branchRows, branchFailures, dirsRecorded, eventsDropped, lastSuccess)

	return &SyncMetrics{
		service:          service,
		runsTotal:        runsTotal,
		runDuration:      runDuration,
		runsInFlight:     runsInFlight,
		branchRows:       branchRows,
		branchFailures:   branchFailures,
		dirsRecorded:     dirsRecorded,
		eventsDropped:    eventsDropped,
		lastSuccessStamp: lastSuccess,
	}
}

func (m *SyncMetrics) RunStarted(string) {
	m.runsInFlight.Inc()
}

func (m *SyncMetrics) RunFinished(source string, duration time.Duration, err error) {
	m.runsInFlight.Dec()

	status := "success"
	if err != nil {
		status = "error"
	} else {
		m.lastSuccessStamp.SetToCurrentTime()
	}
	if source == "" {
		source = "unknown"
	}
	m.runsTotal.WithLabelValues(m.service, source, status).Inc()
	m.runDuration.WithLabelValues(m.service, status).Observe(duration.Seconds())
}

func (m *SyncMetrics) BranchUpserted(branch domain.Branch, rows int) {
	if rows <= 0 {
		return
	}
	m.branchRows.WithLabelValues(m.service, string(branch)).Add(float64(rows))
}

func (m *SyncMetrics) BranchFailed(branch domain.Branch) {
	m.branchFailures.WithLabelValues(m.service, string(branch)).Inc()
}

func (m *SyncMetrics) DirectoriesRecorded(count int) {
	if count <= 0 {
		return
	}
	m.dirsRecorded.Add(float64(count))
}

func (m *SyncMetrics) EventDropped(topic string) {
	m.eventsDropped.WithLabelValues(m.service, topic).Inc()
}
