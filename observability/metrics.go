package observability

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "tableapi"

// Outcome labels
const (
	OutcomeOK    = "ok"
	OutcomeError = "error"
)

// Metrics collects Prometheus metrics for table operations and outbound
// HTTP calls. A nil *Metrics is valid and records nothing.
type Metrics struct {
	operationDuration *prometheus.HistogramVec
	batchItems        *prometheus.CounterVec
	violations        *prometheus.CounterVec
	requestDuration   *prometheus.HistogramVec
	retryAttempts     *prometheus.CounterVec
}

// NewMetrics registers the collectors on registry, or on the default
// registerer when registry is nil.
func NewMetrics(registry prometheus.Registerer) *Metrics {
	if registry == nil {
		registry = prometheus.DefaultRegisterer
	}

	factory := promauto.With(registry)

	return &Metrics{
		operationDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "table_operation_duration_seconds",
				Help:      "Duration of table list and write operations",
				Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 2, 5},
			},
			[]string{"table", "operation", "outcome"},
		),
		batchItems: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "table_batch_items_total",
				Help:      "Items processed by batch writes",
			},
			[]string{"table", "operation", "outcome"},
		),
		violations: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "table_consistency_violations_total",
				Help:      "Rows returned by storage that broke a read invariant",
			},
			[]string{"table"},
		),
		requestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_client_request_duration_seconds",
				Help:      "HTTP client request duration in seconds",
				Buckets:   []float64{0.005, 0.01, 0.05, 0.1, 0.5, 1, 2, 5, 10},
			},
			[]string{"method", "status_code", "host"},
		),
		retryAttempts: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_client_retries_total",
				Help:      "Total number of retry attempts",
			},
			[]string{"method", "host", "reason"},
		),
	}
}

func Outcome(err error) string {
	if err != nil {
		return OutcomeError
	}
	return OutcomeOK
}

func (m *Metrics) ObserveOperation(table, operation string, err error, duration time.Duration) {
	if m == nil {
		return
	}
	m.operationDuration.WithLabelValues(table, operation, Outcome(err)).Observe(duration.Seconds())
}

func (m *Metrics) CountItems(table, operation, outcome string, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.batchItems.WithLabelValues(table, operation, outcome).Add(float64(n))
}

func (m *Metrics) IncrementViolations(table string) {
	if m == nil {
		return
	}
	m.violations.WithLabelValues(table).Inc()
}

// RecordRequestDuration records an outbound request. statusCode is 0 when
// no response was received.
func (m *Metrics) RecordRequestDuration(method, host string, statusCode int, duration time.Duration) {
	if m == nil {
		return
	}
	m.requestDuration.WithLabelValues(method, strconv.Itoa(statusCode), host).Observe(duration.Seconds())
}

// IncrementRetryAttempts counts a retry. reason is one of "network_error",
// "5xx" or "429".
func (m *Metrics) IncrementRetryAttempts(method, host, reason string) {
	if m == nil {
		return
	}
	m.retryAttempts.WithLabelValues(method, host, reason).Inc()
}

// RetryReason converts a retried status code into a retry reason label
func RetryReason(statusCode int) string {
	switch {
	case statusCode == 0:
		return "network_error"
	case statusCode == 429:
		return "429"
	case statusCode >= 500:
		return "5xx"
	}
	return "unknown"
}
