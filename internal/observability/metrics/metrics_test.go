package metrics

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric/noop"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	"gorm.io/gorm"
)

func TestFilterAttributesDropsForbiddenLabels(t *testing.T) {
	attrs := FilterAttributes(
		attribute.String("source", "razorpay"),
		attribute.String("user_id", "456"),
		attribute.String("provider_event_id", "evt_1"),
		attribute.String("outcome", "applied"),
	)
	require.Len(t, attrs, 2)
	assert.Equal(t, attribute.Key("source"), attrs[0].Key)
	assert.Equal(t, attribute.Key("outcome"), attrs[1].Key)
}

func TestNilMetricsAreSafe(t *testing.T) {
	var m *Metrics
	m.RecordWebhookEvent(context.Background(), "razorpay", "subscription.activated", "applied", 128)
	m.RecordStatusTransition(context.Background(), "PRO")

	var r *ReconcileMetrics
	r.ObserveProcess(StageIngest, "applied", time.Millisecond)
	r.SetUnresolved(3)
}

func TestNewWithNoopProvider(t *testing.T) {
	m, err := New(Config{}, noop.NewMeterProvider())
	require.NoError(t, err)
	m.RecordWebhookEvent(context.Background(), "razorpay", "subscription.cancelled", "applied", 128)
	m.RecordWebhookRetry(context.Background(), "ok")
}

func TestRecordWebhookEventObservesPayloadSize(t *testing.T) {
	ctx := context.Background()
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = provider.Shutdown(context.Background()) })

	m, err := New(Config{ServiceName: "inkwell-test"}, provider)
	require.NoError(t, err)

	m.RecordWebhookEvent(ctx, "razorpay", "subscription.activated", "applied", 512)
	m.RecordWebhookEvent(ctx, "razorpay", "subscription.activated", "applied", 2048)
	m.RecordWebhookEvent(ctx, "razorpay", "subscription.cancelled", "duplicate", 300)

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(ctx, &rm))

	payload, ok := collected(rm, "inkwell_webhook_payload_bytes").(metricdata.Histogram[int64])
	require.True(t, ok)
	require.Len(t, payload.DataPoints, 2, "one series per source and outcome")
	sums := map[string]int64{}
	for _, dp := range payload.DataPoints {
		outcome, _ := dp.Attributes.Value("outcome")
		_, hasEventType := dp.Attributes.Value("event_type")
		assert.False(t, hasEventType)
		sums[outcome.AsString()] = dp.Sum
	}
	assert.Equal(t, map[string]int64{"applied": 2560, "duplicate": 300}, sums)

	events, ok := collected(rm, "inkwell_webhook_events_total").(metricdata.Sum[int64])
	require.True(t, ok)
	var total int64
	for _, dp := range events.DataPoints {
		total += dp.Value
	}
	assert.Equal(t, int64(3), total)
}

func collected(rm metricdata.ResourceMetrics, name string) metricdata.Aggregation {
	for _, scope := range rm.ScopeMetrics {
		for _, m := range scope.Metrics {
			if m.Name == name {
				return m.Data
			}
		}
	}
	return nil
}

func TestClassifyTxReason(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want string
	}{
		{name: "deadline", err: fmt.Errorf("tx: %w", context.DeadlineExceeded), want: TxReasonDeadlineExceeded},
		{name: "lock timeout", err: &pgconn.PgError{Code: "55P03"}, want: TxReasonDBLockTimeout},
		{name: "serialization", err: &pgconn.PgError{Code: "40001"}, want: TxReasonSerializationFailure},
		{name: "unique pg", err: &pgconn.PgError{Code: "23505"}, want: TxReasonUniqueViolation},
		{name: "unique gorm", err: gorm.ErrDuplicatedKey, want: TxReasonUniqueViolation},
		{name: "not found", err: gorm.ErrRecordNotFound, want: TxReasonNotFound},
		{name: "unknown", err: errors.New("boom"), want: TxReasonUnknown},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, ClassifyTxReason(tc.err))
		})
	}
}

func TestReconcileMetricsRecordsTxErrors(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := newReconcileMetrics(reg, Config{ServiceName: "test", Environment: "test"})

	m.RecordTxError(StageRetry, &pgconn.PgError{Code: "55P03"})
	m.RecordTxError(StageRetry, nil)
	m.SetUnresolved(4)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.txErrors.WithLabelValues(StageRetry, TxReasonDBLockTimeout)))
	assert.Equal(t, 4.0, testutil.ToFloat64(m.unresolved))
}

func TestHTTPMiddlewareCountsRequests(t *testing.T) {
	gin.SetMode(gin.TestMode)
	reg := prometheus.NewRegistry()
	m, err := newHTTPMetrics(reg, Config{})
	require.NoError(t, err)

	r := gin.New()
	r.Use(GinMiddleware(m))
	r.GET("/health", func(c *gin.Context) { c.Status(http.StatusOK) })

	for i := 0; i < 2; i++ {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	}

	assert.Equal(t, 2.0, testutil.ToFloat64(m.requests.WithLabelValues(http.MethodGet, "/health", "200")))
}
