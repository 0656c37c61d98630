package metrics

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/prometheus/client_golang/prometheus"
	"gorm.io/gorm"
)

const (
	TxReasonDeadlineExceeded     = "deadline_exceeded"
	TxReasonDBLockTimeout        = "db_lock_timeout"
	TxReasonSerializationFailure = "serialization_failure"
	TxReasonUniqueViolation      = "unique_violation"
	TxReasonNotFound             = "not_found"
	TxReasonUnknown              = "unknown"
)

const (
	StageIngest = "ingest"
	StageRetry  = "retry"
)

// ReconcileMetrics captures reconciliation health signals scraped from /metrics.
type ReconcileMetrics struct {
	processDuration *prometheus.HistogramVec
	txErrors        *prometheus.CounterVec
	userLockWait    prometheus.Observer
	unresolved      prometheus.Gauge
}

var (
	reconcileMetricsOnce sync.Once
	reconcileMetrics     *ReconcileMetrics
)

// Reconcile returns the singleton reconciliation metrics registry.
func Reconcile() *ReconcileMetrics {
	return ReconcileWithConfig(Config{})
}

// ReconcileWithConfig returns the singleton registry using config labels.
func ReconcileWithConfig(cfg Config) *ReconcileMetrics {
	reconcileMetricsOnce.Do(func() {
		reconcileMetrics = newReconcileMetrics(prometheus.DefaultRegisterer, cfg)
	})
	return reconcileMetrics
}

// ResetReconcileMetricsForTest resets the singleton for tests.
func ResetReconcileMetricsForTest() {
	reconcileMetricsOnce = sync.Once{}
	reconcileMetrics = nil
}

func newReconcileMetrics(registerer prometheus.Registerer, cfg Config) *ReconcileMetrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}

	serviceName := strings.TrimSpace(cfg.ServiceName)
	if serviceName == "" {
		serviceName = "inkwell"
	}
	environment := strings.TrimSpace(cfg.Environment)
	if environment == "" {
		environment = "unknown"
	}
	constLabels := prometheus.Labels{
		"service": serviceName,
		"env":     environment,
	}

	processDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:        "inkwell_webhook_process_duration_seconds",
		Help:        "Webhook reconciliation latency by stage and outcome.",
		Buckets:     []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		ConstLabels: constLabels,
	}, []string{"stage", "outcome"})
	txErrors := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name:        "inkwell_webhook_tx_errors_total",
		Help:        "Reconciliation transaction failures by low-cardinality reason.",
		ConstLabels: constLabels,
	}, []string{"stage", "reason"})
	userLockWait := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:        "inkwell_user_row_lock_wait_seconds",
		Help:        "Time spent acquiring the user row lock inside reconciliation.",
		Buckets:     []float64{0.0005, 0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		ConstLabels: constLabels,
	})
	unresolved := prometheus.NewGauge(prometheus.GaugeOpts{
		Name:        "inkwell_webhook_unresolved_events",
		Help:        "Ledger rows that are unprocessed or carry an error.",
		ConstLabels: constLabels,
	})

	registerer.MustRegister(processDuration, txErrors, userLockWait, unresolved)

	return &ReconcileMetrics{
		processDuration: processDuration,
		txErrors:        txErrors,
		userLockWait:    userLockWait,
		unresolved:      unresolved,
	}
}

func (m *ReconcileMetrics) ObserveProcess(stage, outcome string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.processDuration.WithLabelValues(stage, outcome).Observe(elapsed.Seconds())
}

func (m *ReconcileMetrics) RecordTxError(stage string, err error) {
	if m == nil || err == nil {
		return
	}
	m.txErrors.WithLabelValues(stage, ClassifyTxReason(err)).Inc()
}

func (m *ReconcileMetrics) ObserveUserLockWait(elapsed time.Duration) {
	if m == nil {
		return
	}
	m.userLockWait.Observe(elapsed.Seconds())
}

func (m *ReconcileMetrics) SetUnresolved(count int64) {
	if m == nil {
		return
	}
	m.unresolved.Set(float64(count))
}

// ClassifyTxReason maps a transaction error onto a bounded reason label.
func ClassifyTxReason(err error) string {
	if err == nil {
		return TxReasonUnknown
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return TxReasonDeadlineExceeded
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return TxReasonUniqueViolation
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return TxReasonNotFound
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "55P03":
			return TxReasonDBLockTimeout
		case "40001":
			return TxReasonSerializationFailure
		case "23505":
			return TxReasonUniqueViolation
		}
	}
	return TxReasonUnknown
}
