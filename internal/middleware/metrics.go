package middleware

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Message metrics
	messagesReceived = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "telegram_bot_messages_received_total",
		Help: "Total number of messages received",
	}, []string{"kind"})

	messagesProcessed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "telegram_bot_messages_processed_total",
		Help: "Total number of messages processed",
	}, []string{"status"})

	// Command metrics
	commandsExecuted = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "telegram_bot_commands_executed_total",
		Help: "Total number of menu commands executed",
	}, []string{"command"})

	// AI metrics
	aiRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "telegram_bot_ai_request_duration_seconds",
		Help:    "Duration of AI requests",
		Buckets: prometheus.DefBuckets,
	}, []string{"kind", "status"})

	aiRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "telegram_bot_ai_requests_total",
		Help: "Total number of AI requests",
	}, []string{"kind", "status"})

	// Cache metrics
	cacheHits = promauto.NewCounter(prometheus.CounterOpts{
		Name: "telegram_bot_cache_hits_total",
		Help: "Total number of media cache hits",
	})

	cacheMisses = promauto.NewCounter(prometheus.CounterOpts{
		Name: "telegram_bot_cache_misses_total",
		Help: "Total number of media cache misses",
	})

	rateLimitExceeded = promauto.NewCounter(prometheus.CounterOpts{
		Name: "telegram_bot_rate_limit_exceeded_total",
		Help: "Total number of rate limit exceeded events",
	})

	// Storage metrics
	storageOperations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "telegram_bot_storage_operations_total",
		Help: "Total number of storage operations",
	}, []string{"operation", "status"})

	storageOperationDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "telegram_bot_storage_operation_duration_seconds",
		Help:    "Duration of storage operations",
		Buckets: prometheus.DefBuckets,
	}, []string{"operation"})

	webhookRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "telegram_bot_webhook_requests_total",
		Help: "Total number of webhook requests by outcome",
	}, []string{"outcome"})
)

// Metrics provides methods to record metrics
type Metrics struct{}

// NewMetrics creates a new metrics instance
func NewMetrics() *Metrics {
	return &Metrics{}
}

// RecordMessageReceived records a received message (text, voice, other)
func (m *Metrics) RecordMessageReceived(kind string) {
	messagesReceived.WithLabelValues(kind).Inc()
}

// RecordMessageProcessed records a processed message
func (m *Metrics) RecordMessageProcessed(status string) {
	messagesProcessed.WithLabelValues(status).Inc()
}

// RecordCommandExecuted records an executed menu command
func (m *Metrics) RecordCommandExecuted(command string) {
	commandsExecuted.WithLabelValues(command).Inc()
}

// RecordAIRequest records a completion, generation or transcription call
func (m *Metrics) RecordAIRequest(kind, status string, duration time.Duration) {
	aiRequestDuration.WithLabelValues(kind, status).Observe(duration.Seconds())
	aiRequestsTotal.WithLabelValues(kind, status).Inc()
}

func (m *Metrics) RecordCacheHit() {
	cacheHits.Inc()
}

func (m *Metrics) RecordCacheMiss() {
	cacheMisses.Inc()
}

func (m *Metrics) RecordRateLimitExceeded() {
	rateLimitExceeded.Inc()
}

// RecordStorageOperation records a storage operation
func (m *Metrics) RecordStorageOperation(operation, status string, duration time.Duration) {
	storageOperations.WithLabelValues(operation, status).Inc()
	storageOperationDuration.WithLabelValues(operation).Observe(duration.Seconds())
}

// RecordWebhookRequest records how a webhook call was handled
func (m *Metrics) RecordWebhookRequest(outcome string) {
	webhookRequests.WithLabelValues(outcome).Inc()
}

// StatusLabel maps an error onto the status label used by the counters
func StatusLabel(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
}

// RegisterRoutes mounts the health endpoint and, when path is set, the
// metrics endpoint on a router
func RegisterRoutes(router *mux.Router, path string) {
	if path != "" {
		router.Handle(path, promhttp.Handler()).Methods(http.MethodGet)
	}
	router.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	}).Methods(http.MethodGet)
}

// StartMetricsServer starts the metrics HTTP server
func StartMetricsServer(port int, path string) error {
	router := mux.NewRouter()
	RegisterRoutes(router, path)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", port),
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	return server.ListenAndServe()
}
