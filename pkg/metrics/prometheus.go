// Package metrics provides Prometheus metrics for the triage webhook service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Manager owns all Prometheus metrics for the service.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	registry         prometheus.Registerer

	// Delivery lifecycle
	deliveriesReceived  prometheus.Counter
	deliveriesIgnored   prometheus.Counter
	deliveriesDuplicate prometheus.Counter
	authFailures        *prometheus.CounterVec
	routingRejections   prometheus.Counter

	// Dispatch
	dispatches           *prometheus.CounterVec
	dispatchFailures     prometheus.Counter
	dispatchLatency      prometheus.Histogram
	notificationFailures prometheus.Counter

	// Priority assignment
	prioritiesAssigned *prometheus.CounterVec

	// Agent usage
	agentTokens *prometheus.CounterVec

	// Journal
	journalErrors prometheus.Counter

	// HTTP surface
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
}

// Global metrics manager instance.
var globalManager *Manager //nolint:gochecknoglobals // singleton metrics manager

// Custom registry to avoid the default Go collectors.
var customRegistry = prometheus.NewRegistry() //nolint:gochecknoglobals // singleton registry

func init() { //nolint:gochecknoinits // global metrics setup
	globalManager = NewManager(WithRegistry(customRegistry))
}

// NewManager creates a metrics manager with default configuration.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "triage",
		subsystem:        "pipeline",
		histogramBuckets: prometheus.DefBuckets,
		registry:         prometheus.DefaultRegisterer,
	}

	for _, opt := range opts {
		opt(m)
	}

	m.initializeMetrics()
	return m
}

func (m *Manager) initializeMetrics() {
	factory := promauto.With(m.registry)

	m.deliveriesReceived = factory.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "deliveries_received_total",
		Help:      "Webhook deliveries received.",
	})
	m.deliveriesIgnored = factory.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "deliveries_ignored_total",
		Help:      "Deliveries classified as not actionable.",
	})
	m.deliveriesDuplicate = factory.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "deliveries_duplicate_total",
		Help:      "Deliveries whose delivery id was already seen.",
	})
	m.authFailures = factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "auth_failures_total",
		Help:      "Authentication failures by failing check.",
	}, []string{"check"})
	m.routingRejections = factory.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "routing_rejections_total",
		Help:      "Items whose label matched no handling category.",
	})

	m.dispatches = factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "dispatches_total",
		Help:      "Agent dispatches by handling category.",
	}, []string{"category"})
	m.dispatchFailures = factory.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "dispatch_failures_total",
		Help:      "Agent dispatches that returned an error.",
	})
	m.dispatchLatency = factory.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "dispatch_duration_seconds",
		Help:      "Wall time of the external dispatch call.",
		Buckets:   m.histogramBuckets,
	})
	m.notificationFailures = factory.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "notification_failures_total",
		Help:      "Best-effort failure notifications that themselves failed.",
	})

	m.prioritiesAssigned = factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "priorities_assigned_total",
		Help:      "Priorities assigned by category and level.",
	}, []string{"category", "priority"})

	m.agentTokens = factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "agent_tokens_total",
		Help:      "Model tokens consumed by agent runs.",
	}, []string{"direction"})

	m.journalErrors = factory.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "journal_errors_total",
		Help:      "Delivery journal writes that failed.",
	})

	m.httpRequests = factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: "http",
		Name:      "requests_total",
		Help:      "HTTP requests by endpoint, method and status.",
	}, []string{"endpoint", "method", "status"})
	m.httpRequestDuration = factory.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: "http",
		Name:      "request_duration_seconds",
		Help:      "HTTP request latency.",
		Buckets:   m.histogramBuckets,
	}, []string{"endpoint", "method", "status"})
}

// GetRegistry returns the registry backing the global manager, for serving
// on the health endpoint.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}

// Package-level helpers recording against the global manager.

func RecordDeliveryReceived()  { globalManager.deliveriesReceived.Inc() }
func RecordDeliveryIgnored()   { globalManager.deliveriesIgnored.Inc() }
func RecordDeliveryDuplicate() { globalManager.deliveriesDuplicate.Inc() }

// RecordAuthFailure records an authentication failure for a named check
// (ip, signature, timestamp).
func RecordAuthFailure(check string) {
	globalManager.authFailures.WithLabelValues(check).Inc()
}

func RecordRoutingRejection() { globalManager.routingRejections.Inc() }

func RecordDispatch(category string) {
	globalManager.dispatches.WithLabelValues(category).Inc()
}

func RecordDispatchFailure() { globalManager.dispatchFailures.Inc() }

func RecordDispatchDuration(seconds float64) {
	globalManager.dispatchLatency.Observe(seconds)
}

func RecordNotificationFailure() { globalManager.notificationFailures.Inc() }

func RecordPriorityAssigned(category, priority string) {
	globalManager.prioritiesAssigned.WithLabelValues(category, priority).Inc()
}

func RecordAgentTokens(direction string, n int64) {
	if n > 0 {
		globalManager.agentTokens.WithLabelValues(direction).Add(float64(n))
	}
}

func RecordJournalError() { globalManager.journalErrors.Inc() }

func RecordHTTPRequest(endpoint, method, status string) {
	globalManager.httpRequests.WithLabelValues(endpoint, method, status).Inc()
}

func RecordHTTPRequestDuration(endpoint, method, status string, seconds float64) {
	globalManager.httpRequestDuration.WithLabelValues(endpoint, method, status).Observe(seconds)
}
