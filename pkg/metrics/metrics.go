package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// LoginAttempts tracks every authentication attempt by outcome
	// (success, failed, cancelled, locked_out)
	LoginAttempts = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "dbadmin_login_attempts_total",
		Help: "Total number of login attempts by outcome",
	}, []string{"outcome"})

	// ApprovalOutcomes counts resolved out-of-band approval requests
	ApprovalOutcomes = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "dbadmin_approval_outcomes_total",
		Help: "Total number of out-of-band approval requests by outcome",
	}, []string{"outcome"})

	// CrudOperations tracks data operations by table, operation, and result
	CrudOperations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "dbadmin_crud_operations_total",
		Help: "Total number of CRUD operations executed against the store",
	}, []string{"operation", "table", "status"})

	// CrudDuration measures store round-trip time per operation
	CrudDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "dbadmin_crud_duration_seconds",
		Help:    "Duration of CRUD operations in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"operation"})

	// AuditEvents tracks audit dispatch results per channel (broker, file)
	AuditEvents = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "dbadmin_audit_events_total",
		Help: "Total number of audit events dispatched per channel and status",
	}, []string{"channel", "status"})

	// AuditQueueDropped counts events discarded because the dispatch queue
	// was full. A growing value means the broker is down or too slow
	AuditQueueDropped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "dbadmin_audit_queue_dropped_total",
		Help: "Total number of audit events dropped due to a full queue",
	})

	// BrokerHealth provides a binary 0/1 signal for the messaging link
	BrokerHealth = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "dbadmin_broker_healthy",
		Help: "Current health of the messaging transport (1 healthy, 0 down)",
	})
)
