// Package metrics records HTTP and business metrics through OpenTelemetry.
package metrics

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.37.0"

	"storefront/internal/domain"
)

const meterName = "storefront"

// Options configure the exporter. An empty Endpoint disables export.
type Options struct {
	Endpoint    string
	Insecure    bool
	ServiceName string
	Interval    time.Duration
}

// AppMetrics holds the instruments. A nil *AppMetrics is valid and records nothing.
type AppMetrics struct {
	httpRequests  metric.Int64Counter
	httpDuration  metric.Float64Histogram
	ordersCreated metric.Int64Counter
	revenueCents  metric.Int64Counter
	stockFailures metric.Int64Counter
	chatMessages  metric.Int64Counter
	chatsClaimed  metric.Int64Counter
}

// Init builds AppMetrics and the provider shutdown hook.
func Init(ctx context.Context, opts Options) (*AppMetrics, func(context.Context) error, error) {
	if opts.Endpoint == "" {
		m, err := NewWithMeter(noop.NewMeterProvider().Meter(meterName))
		return m, func(context.Context) error { return nil }, err
	}

	res, err := resource.New(ctx,
		resource.WithFromEnv(),
		resource.WithAttributes(semconv.ServiceName(opts.ServiceName)),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("metrics resource: %w", err)
	}

	exporterOpts := []otlpmetrichttp.Option{
		otlpmetrichttp.WithEndpoint(opts.Endpoint),
		otlpmetrichttp.WithURLPath("/v1/metrics"),
	}
	if opts.Insecure {
		exporterOpts = append(exporterOpts, otlpmetrichttp.WithInsecure())
	}
	exporter, err := otlpmetrichttp.New(ctx, exporterOpts...)
	if err != nil {
		return nil, nil, fmt.Errorf("otlp exporter: %w", err)
	}

	interval := opts.Interval
	if interval <= 0 {
		interval = 10 * time.Second
	}
	provider := sdkmetric.NewMeterProvider(
		sdkmetric.WithResource(res),
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exporter, sdkmetric.WithInterval(interval))),
	)
	otel.SetMeterProvider(provider)

	m, err := NewWithMeter(provider.Meter(meterName))
	if err != nil {
		_ = provider.Shutdown(ctx)
		return nil, nil, err
	}
	return m, provider.Shutdown, nil
}

// NewWithMeter creates the instruments on meter.
func NewWithMeter(meter metric.Meter) (*AppMetrics, error) {
	var (
		m   AppMetrics
		err error
	)
	if m.httpRequests, err = meter.Int64Counter("http_requests_total",
		metric.WithDescription("HTTP requests served")); err != nil {
		return nil, err
	}
	if m.httpDuration, err = meter.Float64Histogram("http_request_duration_seconds",
		metric.WithDescription("HTTP request latency"), metric.WithUnit("s")); err != nil {
		return nil, err
	}
	if m.ordersCreated, err = meter.Int64Counter("orders_created_total"); err != nil {
		return nil, err
	}
	if m.revenueCents, err = meter.Int64Counter("revenue_cents_total", metric.WithUnit("{cent}")); err != nil {
		return nil, err
	}
	if m.stockFailures, err = meter.Int64Counter("stock_decrement_failures_total",
		metric.WithDescription("Best-effort stock decrements that failed after an order was placed")); err != nil {
		return nil, err
	}
	if m.chatMessages, err = meter.Int64Counter("chat_messages_total"); err != nil {
		return nil, err
	}
	if m.chatsClaimed, err = meter.Int64Counter("chats_claimed_total"); err != nil {
		return nil, err
	}
	return &m, nil
}

func (m *AppMetrics) RecordHTTP(ctx context.Context, method, route string, status int, elapsed time.Duration) {
	if m == nil {
		return
	}
	attrs := metric.WithAttributes(
		attribute.String("http.method", method),
		attribute.String("http.route", route),
		attribute.Int("http.status_code", status),
	)
	m.httpRequests.Add(ctx, 1, attrs)
	m.httpDuration.Record(ctx, elapsed.Seconds(), attrs)
}

func (m *AppMetrics) RecordOrder(ctx context.Context, totalCents int64) {
	if m == nil {
		return
	}
	m.ordersCreated.Add(ctx, 1)
	m.revenueCents.Add(ctx, totalCents)
}

func (m *AppMetrics) RecordStockDecrementFailure(ctx context.Context) {
	if m == nil {
		return
	}
	m.stockFailures.Add(ctx, 1)
}

func (m *AppMetrics) RecordChatMessage(ctx context.Context, sender domain.SenderType) {
	if m == nil {
		return
	}
	m.chatMessages.Add(ctx, 1, metric.WithAttributes(attribute.String("sender_type", string(sender))))
}

func (m *AppMetrics) RecordChatClaimed(ctx context.Context) {
	if m == nil {
		return
	}
	m.chatsClaimed.Add(ctx, 1)
}
