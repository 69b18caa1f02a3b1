package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector holds every metric the service exports. All recording methods
// are safe on a nil *Collector so services can run without metrics.
type Collector struct {
	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec
	InFlightGauge   prometheus.Gauge

	IngestRowsTotal     *prometheus.CounterVec
	IngestBatchDuration prometheus.Histogram
	ImputedValuesTotal  *prometheus.CounterVec

	AnnotationsTotal    *prometheus.CounterVec
	ImageBytesStored    prometheus.Counter
	PatientsDeleted     prometheus.Counter
	ReportsDeleted      prometheus.Counter
	FieldUpdatesApplied prometheus.Counter

	reg prometheus.Registerer
}

// NewCollector registers the service metrics on reg under namespace.
func NewCollector(namespace string, reg prometheus.Registerer) *Collector {
	f := promauto.With(reg)
	return &Collector{
		reg: reg,

		RequestsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests by method, path, and status code.",
		}, []string{"method", "path", "status"}),

		RequestDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request latency distribution.",
			Buckets:   []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0},
		}, []string{"method", "path", "status"}),

		InFlightGauge: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "in_flight_requests",
			Help:      "Current number of in-flight HTTP requests.",
		}),

		IngestRowsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ingest",
			Name:      "rows_total",
			Help:      "Ingested rows by outcome (inserted, failed).",
		}, []string{"outcome"}),

		IngestBatchDuration: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "ingest",
			Name:      "batch_duration_seconds",
			Help:      "Wall time of one InsertBatch call.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 15, 60},
		}),

		ImputedValuesTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ingest",
			Name:      "imputed_values_total",
			Help:      "Missing cells filled with the batch median or mode, by column.",
		}, []string{"column"}),

		AnnotationsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "reports",
			Name:      "annotations_total",
			Help:      "Latest-report annotation writes by column and outcome.",
		}, []string{"column", "outcome"}),

		ImageBytesStored: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "media",
			Name:      "image_bytes_stored_total",
			Help:      "Total image payload bytes written.",
		}),

		PatientsDeleted: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "patients",
			Name:      "deleted_total",
			Help:      "Patients removed by cascading delete.",
		}),

		ReportsDeleted: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "patients",
			Name:      "reports_deleted_total",
			Help:      "Reports removed by cascading patient delete.",
		}),

		FieldUpdatesApplied: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "patients",
			Name:      "field_update_rows_total",
			Help:      "Rows touched by patient field updates.",
		}),
	}
}

// NewRegistry returns a registry preloaded with the Go runtime and process
// collectors.
func NewRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg
}

// TrackOpenConnections exports fn as the db open-connections gauge.
func (c *Collector) TrackOpenConnections(namespace string, fn func() float64) {
	if c == nil {
		return
	}
	promauto.With(c.reg).NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "db",
		Name:      "open_connections",
		Help:      "Current number of open database connections.",
	}, fn)
}

func (c *Collector) RowInserted() {
	if c == nil {
		return
	}
	c.IngestRowsTotal.WithLabelValues("inserted").Inc()
}

func (c *Collector) RowFailed() {
	if c == nil {
		return
	}
	c.IngestRowsTotal.WithLabelValues("failed").Inc()
}

func (c *Collector) ObserveBatch(seconds float64) {
	if c == nil {
		return
	}
	c.IngestBatchDuration.Observe(seconds)
}

func (c *Collector) Imputed(column string, n int) {
	if c == nil || n == 0 {
		return
	}
	c.ImputedValuesTotal.WithLabelValues(column).Add(float64(n))
}

func (c *Collector) Annotation(column, outcome string) {
	if c == nil {
		return
	}
	c.AnnotationsTotal.WithLabelValues(column, outcome).Inc()
}

func (c *Collector) ImageStored(size int) {
	if c == nil {
		return
	}
	c.ImageBytesStored.Add(float64(size))
}

func (c *Collector) PatientDeleted(reports int64) {
	if c == nil {
		return
	}
	c.PatientsDeleted.Inc()
	c.ReportsDeleted.Add(float64(reports))
}

func (c *Collector) FieldsUpdated(rows int64) {
	if c == nil {
		return
	}
	c.FieldUpdatesApplied.Add(float64(rows))
}

// Handler serves the registry in the Prometheus exposition format.
func Handler(reg *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg})
}
