package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTP metrics
	HttpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"service", "method", "path", "status"},
	)

	HttpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"service", "method", "path", "status"},
	)

	HttpRequestsInFlight = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "http_requests_in_flight",
			Help: "Current number of HTTP requests being processed",
		},
		[]string{"service"},
	)

	WebSocketConnectionsGauge = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "websocket_connections_total",
			Help: "Current number of active WebSocket connections",
		},
		[]string{"service"},
	)

	DatabaseQueriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "database_queries_total",
			Help: "Total number of database queries",
		},
		[]string{"operation", "status"},
	)

	DatabaseQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "database_query_duration_seconds",
			Help:    "Database query duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation"},
	)

	RabbitMQMessagesPublished = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rabbitmq_messages_published_total",
			Help: "Total number of messages published to RabbitMQ",
		},
		[]string{"exchange", "status"},
	)

	RabbitMQMessagesConsumed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rabbitmq_messages_consumed_total",
			Help: "Total number of messages consumed from RabbitMQ",
		},
		[]string{"queue", "status"},
	)

	// Business metrics
	RankingsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "dispatch_rankings_total",
			Help: "Total number of ranking requests served",
		},
	)

	RankingCandidates = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "dispatch_ranking_candidates",
			Help:    "Number of eligible candidates per ranking",
			Buckets: []float64{0, 1, 2, 5, 10, 20, 50, 100},
		},
	)

	DistanceLookupFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "dispatch_distance_lookup_failures_total",
			Help: "Distance lookups that failed or timed out",
		},
	)

	PenaltiesApplied = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "penalties_applied_total",
			Help: "Total number of penalty events recorded",
		},
		[]string{"trigger", "applied_by"},
	)

	DriversBlocked = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "drivers_blocked_total",
			Help: "Driver block transitions by registry sync status",
		},
		[]string{"status"},
	)

	TripEarningsApplied = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "trip_earnings_applied_total",
			Help: "Trip earnings applied to daily limit state",
		},
		[]string{"status"},
	)

	OptimisticConflicts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "optimistic_conflicts_total",
			Help: "Version conflicts hit during optimistic updates",
		},
		[]string{"entity"},
	)

	SettlementsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "settlements_total",
			Help: "Monthly settlements computed",
		},
		[]string{"status"},
	)
)

func status(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
}

// RecordHTTPMetrics records HTTP request metrics
func RecordHTTPMetrics(service, method, path string, statusCode int, duration time.Duration) {
	code := strconv.Itoa(statusCode)
	HttpRequestsTotal.WithLabelValues(service, method, path, code).Inc()
	HttpRequestDuration.WithLabelValues(service, method, path, code).Observe(duration.Seconds())
}

// RecordDatabaseQuery records database query metrics
func RecordDatabaseQuery(operation string, err error, duration time.Duration) {
	DatabaseQueriesTotal.WithLabelValues(operation, status(err)).Inc()
	DatabaseQueryDuration.WithLabelValues(operation).Observe(duration.Seconds())
}

// RecordRabbitMQPublish records RabbitMQ publish metrics
func RecordRabbitMQPublish(exchange string, err error) {
	RabbitMQMessagesPublished.WithLabelValues(exchange, status(err)).Inc()
}

// RecordRabbitMQConsume records RabbitMQ consume metrics
func RecordRabbitMQConsume(queue string, err error) {
	RabbitMQMessagesConsumed.WithLabelValues(queue, status(err)).Inc()
}

func RecordRanking(eligible int) {
	RankingsTotal.Inc()
	RankingCandidates.Observe(float64(eligible))
}

func RecordPenalty(trigger, appliedBy string) {
	PenaltiesApplied.WithLabelValues(trigger, appliedBy).Inc()
}

func RecordBlock(err error) {
	DriversBlocked.WithLabelValues(status(err)).Inc()
}

func RecordTripEarning(err error) {
	TripEarningsApplied.WithLabelValues(status(err)).Inc()
}

func RecordConflict(entity string) {
	OptimisticConflicts.WithLabelValues(entity).Inc()
}

func RecordSettlement(err error) {
	SettlementsTotal.WithLabelValues(status(err)).Inc()
}
