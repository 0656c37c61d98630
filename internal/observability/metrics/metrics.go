package metrics

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Config configures the metrics provider.
type Config struct {
	Enabled          bool
	ExporterEndpoint string
	ExporterProtocol string
	ServiceName      string
	Environment      string
}

// Metrics exposes application-level instruments.
type Metrics struct {
	webhookEvents     metric.Int64Counter
	webhookPayload    metric.Int64Histogram
	statusTransitions metric.Int64Counter
	webhookRetries    metric.Int64Counter
	paymentVerify     metric.Int64Counter
	rateLimitDenied   metric.Int64Counter
}

// Provider bodies are small JSON documents; the top bucket sits at the
// default request size limit.
var payloadBuckets = []float64{256, 1024, 4096, 16384, 65536, 262144, 1048576}

// NewProvider configures and registers the meter provider.
func NewProvider(lc fx.Lifecycle, cfg Config, log *zap.Logger) (metric.MeterProvider, error) {
	if !cfg.Enabled {
		provider := noop.NewMeterProvider()
		otel.SetMeterProvider(provider)
		return provider, nil
	}

	exporter, err := newExporter(cfg.ExporterProtocol, cfg.ExporterEndpoint)
	if err != nil {
		return nil, err
	}

	reader := sdkmetric.NewPeriodicReader(exporter, sdkmetric.WithInterval(10*time.Second))
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	otel.SetMeterProvider(provider)

	if lc != nil {
		lc.Append(fx.Hook{
			OnStop: func(ctx context.Context) error {
				if log != nil {
					log.Info("shutting down meter provider")
				}
				return provider.Shutdown(ctx)
			},
		})
	}

	if log != nil {
		log.Info("metrics initialized",
			zap.String("endpoint", cfg.ExporterEndpoint),
			zap.String("protocol", cfg.ExporterProtocol),
		)
	}

	return provider, nil
}

// New configures the domain metrics instruments.
func New(cfg Config, provider metric.MeterProvider) (*Metrics, error) {
	name := strings.TrimSpace(cfg.ServiceName)
	if name == "" {
		name = "inkwell"
	}
	meter := provider.Meter(name)

	var errs []error
	counter := func(name, description string) metric.Int64Counter {
		c, err := meter.Int64Counter(name, metric.WithDescription(description))
		errs = append(errs, err)
		return c
	}

	m := &Metrics{
		webhookEvents:     counter("inkwell_webhook_events_total", "Webhook deliveries by source, event type and outcome."),
		statusTransitions: counter("inkwell_subscription_transitions_total", "Subscription status writes by target status."),
		webhookRetries:    counter("inkwell_webhook_retries_total", "Operator retries by outcome."),
		paymentVerify:     counter("inkwell_payment_verifications_total", "Client payment confirmations by outcome."),
		rateLimitDenied:   counter("inkwell_rate_limit_denied_total", "Requests refused by a rate limiter."),
	}

	payload, err := meter.Int64Histogram("inkwell_webhook_payload_bytes",
		metric.WithDescription("Raw webhook body size by source and outcome."),
		metric.WithUnit("By"),
		metric.WithExplicitBucketBoundaries(payloadBuckets...),
	)
	errs = append(errs, err)
	m.webhookPayload = payload

	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	return m, nil
}

// RecordWebhookEvent counts one ingestion attempt by its outcome and
// observes the size of its raw body. The size histogram is labelled by
// source and outcome only.
func (m *Metrics) RecordWebhookEvent(ctx context.Context, source, eventType, outcome string, payloadBytes int) {
	if m == nil {
		return
	}
	sourceAttr := attribute.String("source", strings.TrimSpace(source))
	outcomeAttr := attribute.String("outcome", strings.TrimSpace(outcome))
	m.webhookEvents.Add(ctx, 1, metric.WithAttributes(FilterAttributes(
		sourceAttr,
		attribute.String("event_type", strings.TrimSpace(eventType)),
		outcomeAttr,
	)...))
	m.webhookPayload.Record(ctx, int64(max(payloadBytes, 0)), metric.WithAttributes(FilterAttributes(sourceAttr, outcomeAttr)...))
}

// RecordStatusTransition counts subscription status writes by target.
func (m *Metrics) RecordStatusTransition(ctx context.Context, status string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(attribute.String("status", strings.TrimSpace(status)))
	m.statusTransitions.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// RecordWebhookRetry counts operator retries by result.
func (m *Metrics) RecordWebhookRetry(ctx context.Context, outcome string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(attribute.String("outcome", strings.TrimSpace(outcome)))
	m.webhookRetries.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// RecordPaymentVerification counts client-side payment confirmations.
func (m *Metrics) RecordPaymentVerification(ctx context.Context, outcome string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(attribute.String("outcome", strings.TrimSpace(outcome)))
	m.paymentVerify.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// RecordRateLimitDenied increments rate limit deny counts.
func (m *Metrics) RecordRateLimitDenied(ctx context.Context, endpoint, reason string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(
		attribute.String("endpoint", strings.TrimSpace(endpoint)),
		attribute.String("reason", strings.TrimSpace(reason)),
	)
	m.rateLimitDenied.Add(ctx, 1, metric.WithAttributes(attrs...))
}

func newExporter(protocol, endpoint string) (sdkmetric.Exporter, error) {
	protocol = strings.ToLower(strings.TrimSpace(protocol))
	switch protocol {
	case "http", "http/protobuf":
		opts := []otlpmetrichttp.Option{}
		if endpoint != "" {
			opts = append(opts, otlpmetrichttp.WithEndpoint(endpoint))
		}
		return otlpmetrichttp.New(context.Background(), opts...)
	case "grpc", "grpc/protobuf", "":
		opts := []otlpmetricgrpc.Option{otlpmetricgrpc.WithInsecure()}
		if endpoint != "" {
			opts = append(opts, otlpmetricgrpc.WithEndpoint(endpoint))
		}
		return otlpmetricgrpc.New(context.Background(), opts...)
	default:
		return nil, fmt.Errorf("unsupported OTLP protocol %q", protocol)
	}
}

var allowedLabelKeys = map[attribute.Key]struct{}{
	"source":      {},
	"event_type":  {},
	"outcome":     {},
	"status":      {},
	"endpoint":    {},
	"status_code": {},
	"reason":      {},
}

// FilterAttributes strips disallowed labels to keep metrics low-cardinality.
func FilterAttributes(attrs ...attribute.KeyValue) []attribute.KeyValue {
	filtered := make([]attribute.KeyValue, 0, len(attrs))
	for _, attr := range attrs {
		if _, ok := allowedLabelKeys[attr.Key]; !ok {
			continue
		}
		filtered = append(filtered, attr)
	}
	return filtered
}
