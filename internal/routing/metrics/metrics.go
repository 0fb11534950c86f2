package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Operation statuses
const (
	StatusSuccess = "success"
	StatusFailure = "failure"
)

// Metrics represents the metrics for route batches and forwarding changes.
// Each instance owns its registry so a run can be dumped to a textfile.
type Metrics struct {
	registry *prometheus.Registry

	routeOperations   *prometheus.CounterVec
	failuresByType    *prometheus.CounterVec
	operationDuration *prometheus.HistogramVec
	batchTargets      *prometheus.GaugeVec
	forwardingChanges *prometheus.CounterVec
	lastBatch         prometheus.Gauge

	mutex         sync.RWMutex
	totalOps      int64
	successfulOps int64
	failedOps     int64
	averageOpTime time.Duration
}

// NewMetrics creates a new metrics instance
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		routeOperations: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "routefwd_route_operations_total",
			Help: "Total number of route table operations by action and status",
		}, []string{"action", "status"}),
		failuresByType: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "routefwd_route_failures_total",
			Help: "Total number of failed batch items by error type",
		}, []string{"action", "error_type"}),
		operationDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "routefwd_route_operation_duration_seconds",
			Help:    "Duration of individual route table calls",
			Buckets: prometheus.ExponentialBuckets(0.0001, 4, 8),
		}, []string{"action"}),
		batchTargets: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "routefwd_batch_targets",
			Help: "Number of targets in the last batch by source kind",
		}, []string{"kind"}),
		forwardingChanges: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "routefwd_forwarding_changes_total",
			Help: "Total number of forwarding flag writes by scope",
		}, []string{"scope", "enabled"}),
		lastBatch: factory.NewGauge(prometheus.GaugeOpts{
			Name: "routefwd_last_batch_timestamp_seconds",
			Help: "Unix time the last batch finished",
		}),
	}
}

// RecordOperation records one route table call
func (m *Metrics) RecordOperation(action string, duration time.Duration, success bool) {
	status := StatusSuccess
	if !success {
		status = StatusFailure
	}
	m.routeOperations.WithLabelValues(action, status).Inc()
	m.operationDuration.WithLabelValues(action).Observe(duration.Seconds())

	m.mutex.Lock()
	defer m.mutex.Unlock()

	m.totalOps++
	if success {
		m.successfulOps++
	} else {
		m.failedOps++
	}

	if m.averageOpTime == 0 {
		m.averageOpTime = duration
	} else {
		m.averageOpTime = (m.averageOpTime + duration) / 2
	}
}

// RecordFailure counts a failed item that never reached the route table
func (m *Metrics) RecordFailure(action, errorType string) {
	m.failuresByType.WithLabelValues(action, errorType).Inc()
}

// RecordBatch stores the target counts of a finished batch
func (m *Metrics) RecordBatch(targetsByKind map[string]int) {
	for kind, n := range targetsByKind {
		m.batchTargets.WithLabelValues(kind).Set(float64(n))
	}
	m.lastBatch.SetToCurrentTime()
}

// RecordForwardingChange counts a write of the host or interface flag
func (m *Metrics) RecordForwardingChange(scope string, enabled bool) {
	value := "false"
	if enabled {
		value = "true"
	}
	m.forwardingChanges.WithLabelValues(scope, value).Inc()
}

// GetStats returns total, successful and failed operation counts and the running average duration
func (m *Metrics) GetStats() (int64, int64, int64, time.Duration) {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	return m.totalOps, m.successfulOps, m.failedOps, m.averageOpTime
}

// Registry exposes the underlying registry for gathering
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// WriteTextfile dumps the registry in the node_exporter textfile format
func (m *Metrics) WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, m.registry)
}
