package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "metstat"

// Metrics holds the Prometheus counters for one batch run. They live on a
// private registry so a run can be dumped to a node-exporter textfile.
type Metrics struct {
	Registry *prometheus.Registry

	FilesRead    prometheus.Counter
	FilesSkipped *prometheus.CounterVec // labels: reason={missing,empty}
	RecordsRead  prometheus.Counter

	Summaries   *prometheus.CounterVec // labels: operation={summary,diff,vertavg,series}
	DiffDropped *prometheus.CounterVec // labels: reason={no_match,ambiguous}
	EmptyInputs prometheus.Counter
	JobFailures prometheus.Counter
	LastRunTime prometheus.Gauge
}

// NewMetrics creates all counters and registers them on a fresh registry.
func NewMetrics() *Metrics {
	m := &Metrics{
		Registry: prometheus.NewRegistry(),
		FilesRead: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "files_read_total",
			Help:      "Verification files read with at least one row.",
		}),
		FilesSkipped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "files_skipped_total",
			Help:      "Verification files skipped by reason.",
		}, []string{"reason"}),
		RecordsRead: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "records_read_total",
			Help:      "Verification records read from all files.",
		}),
		Summaries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "summaries_total",
			Help:      "Aggregated summaries computed by operation.",
		}, []string{"operation"}),
		DiffDropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "diff_rows_dropped_total",
			Help:      "Rows without a unique control match, by reason.",
		}, []string{"reason"}),
		EmptyInputs: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "empty_inputs_total",
			Help:      "Aggregations refused because the filtered table was empty.",
		}),
		JobFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "batch_job_failures_total",
			Help:      "Batch plan jobs that failed and were skipped.",
		}),
		LastRunTime: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_run_timestamp_seconds",
			Help:      "Unix time the run finished.",
		}),
	}
	m.Registry.MustRegister(
		m.FilesRead,
		m.FilesSkipped,
		m.RecordsRead,
		m.Summaries,
		m.DiffDropped,
		m.EmptyInputs,
		m.JobFailures,
		m.LastRunTime,
	)
	return m
}

// ObserveRead records the outcome of a multi-file read.
func (m *Metrics) ObserveRead(read, missing, empty, records int) {
	m.FilesRead.Add(float64(read))
	m.FilesSkipped.WithLabelValues("missing").Add(float64(missing))
	m.FilesSkipped.WithLabelValues("empty").Add(float64(empty))
	m.RecordsRead.Add(float64(records))
}

// ObserveDropped records diff rows dropped for reason.
func (m *Metrics) ObserveDropped(reason string, n int) {
	if n > 0 {
		m.DiffDropped.WithLabelValues(reason).Add(float64(n))
	}
}

// WriteTextfile writes every metric in the text exposition format, replacing
// path atomically.
func (m *Metrics) WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, m.Registry)
}
