package metrics

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/SigNoz/marketplace-storefront/pkg/config"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.37.0"
)

// AppMetrics holds all application metrics
type AppMetrics struct {
	// Local API metrics
	HTTPRequestsTotal   metric.Int64Counter
	HTTPRequestsErrors  metric.Int64Counter
	HTTPRequestDuration metric.Float64Histogram

	// Marketplace backend client metrics
	APIRequestsTotal   metric.Int64Counter
	APIRequestsErrors  metric.Int64Counter
	APIRequestDuration metric.Float64Histogram

	// Local store metrics
	StoreOpsTotal   metric.Int64Counter
	StoreOpDuration metric.Float64Histogram

	// Business metrics
	CartItemsCount   metric.Int64Gauge
	CartValue        metric.Float64Gauge
	OrdersPlaced     metric.Int64Counter
	OrderTransitions metric.Int64Counter
	ProductsViewed   metric.Int64Counter
	SessionsActive   metric.Int64Gauge

	// Service name for adding to all metrics
	serviceName string
}

// InitMetrics initializes the OpenTelemetry meter provider with an OTLP HTTP exporter
func InitMetrics(ctx context.Context, cfg *config.Config) (*AppMetrics, *sdkmetric.MeterProvider, error) {
	// Environment attributes first, explicit attributes take precedence
	envRes, err := resource.New(ctx, resource.WithFromEnv())
	if err != nil {
		envRes = resource.Empty()
	}

	explicitRes, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceName(cfg.OTELServiceName),
			semconv.ServiceVersion(cfg.OTELServiceVersion),
			attribute.String("deployment.environment", cfg.OTELDeploymentEnvironment),
		),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create explicit resource: %w", err)
	}

	res, err := resource.Merge(envRes, explicitRes)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to merge resources: %w", err)
	}

	// WithEndpoint expects host:port without a scheme
	exporterOpts := []otlpmetrichttp.Option{
		otlpmetrichttp.WithEndpoint(cfg.OTELExporterOTLPEndpoint),
		otlpmetrichttp.WithURLPath("/v1/metrics"),
	}
	if cfg.OTELExporterOTLPHeaders != "" {
		exporterOpts = append(exporterOpts, otlpmetrichttp.WithHeaders(parseHeaders(cfg.OTELExporterOTLPHeaders)))
	}
	if cfg.OTELExporterOTLPInsecure {
		exporterOpts = append(exporterOpts, otlpmetrichttp.WithInsecure())
	}

	exporter, err := otlpmetrichttp.New(ctx, exporterOpts...)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create OTLP exporter: %w", err)
	}

	reader := sdkmetric.NewPeriodicReader(exporter,
		sdkmetric.WithInterval(10*time.Second),
	)

	meterProvider := sdkmetric.NewMeterProvider(
		sdkmetric.WithResource(res),
		sdkmetric.WithReader(reader),
	)
	otel.SetMeterProvider(meterProvider)

	slog.Info("metrics exporter configured",
		slog.String("endpoint", cfg.OTELExporterOTLPEndpoint),
		slog.Bool("insecure", cfg.OTELExporterOTLPInsecure),
		slog.Duration("interval", 10*time.Second),
	)

	m, err := NewAppMetrics(meterProvider.Meter(cfg.OTELServiceName), cfg.OTELServiceName)
	if err != nil {
		return nil, nil, err
	}
	return m, meterProvider, nil
}

// NewAppMetrics creates every instrument on the given meter
func NewAppMetrics(meter metric.Meter, serviceName string) (*AppMetrics, error) {
	// SigNoz default histogram buckets in milliseconds, expanded to 60s
	buckets := []float64{2, 4, 6, 8, 10, 50, 100, 200, 400, 800, 1000, 1400, 2000, 5000, 10000, 15000, 20000, 30000, 45000, 60000}

	m := &AppMetrics{serviceName: serviceName}
	var err error

	if m.HTTPRequestsTotal, err = meter.Int64Counter(
		"http.server.request.count",
		metric.WithDescription("Total number of local API requests"),
		metric.WithUnit("1"),
	); err != nil {
		return nil, fmt.Errorf("failed to create http requests counter: %w", err)
	}

	if m.HTTPRequestsErrors, err = meter.Int64Counter(
		"http.server.request.error.count",
		metric.WithDescription("Total number of local API error responses"),
		metric.WithUnit("1"),
	); err != nil {
		return nil, fmt.Errorf("failed to create http errors counter: %w", err)
	}

	if m.HTTPRequestDuration, err = meter.Float64Histogram(
		"http.server.request.duration",
		metric.WithDescription("Local API request duration in milliseconds"),
		metric.WithUnit("ms"),
		metric.WithExplicitBucketBoundaries(buckets...),
	); err != nil {
		return nil, fmt.Errorf("failed to create http duration histogram: %w", err)
	}

	if m.APIRequestsTotal, err = meter.Int64Counter(
		"marketplace.client.request.count",
		metric.WithDescription("Total number of requests sent to the marketplace backend"),
		metric.WithUnit("1"),
	); err != nil {
		return nil, fmt.Errorf("failed to create api requests counter: %w", err)
	}

	if m.APIRequestsErrors, err = meter.Int64Counter(
		"marketplace.client.request.error.count",
		metric.WithDescription("Total number of failed marketplace backend requests"),
		metric.WithUnit("1"),
	); err != nil {
		return nil, fmt.Errorf("failed to create api errors counter: %w", err)
	}

	if m.APIRequestDuration, err = meter.Float64Histogram(
		"marketplace.client.request.duration",
		metric.WithDescription("Marketplace backend request duration in milliseconds"),
		metric.WithUnit("ms"),
		metric.WithExplicitBucketBoundaries(buckets...),
	); err != nil {
		return nil, fmt.Errorf("failed to create api duration histogram: %w", err)
	}

	if m.StoreOpsTotal, err = meter.Int64Counter(
		"localstore.operations.count",
		metric.WithDescription("Total number of local store operations"),
		metric.WithUnit("1"),
	); err != nil {
		return nil, fmt.Errorf("failed to create store ops counter: %w", err)
	}

	if m.StoreOpDuration, err = meter.Float64Histogram(
		"localstore.operations.duration",
		metric.WithDescription("Local store operation duration in milliseconds"),
		metric.WithUnit("ms"),
		metric.WithExplicitBucketBoundaries(buckets...),
	); err != nil {
		return nil, fmt.Errorf("failed to create store duration histogram: %w", err)
	}

	if m.CartItemsCount, err = meter.Int64Gauge(
		"cart_items_count",
		metric.WithDescription("Current number of units in the device cart"),
		metric.WithUnit("1"),
	); err != nil {
		return nil, fmt.Errorf("failed to create cart items gauge: %w", err)
	}

	if m.CartValue, err = meter.Float64Gauge(
		"cart_value",
		metric.WithDescription("Current total value of the device cart"),
		metric.WithUnit("1"),
	); err != nil {
		return nil, fmt.Errorf("failed to create cart value gauge: %w", err)
	}

	if m.OrdersPlaced, err = meter.Int64Counter(
		"orders_placed_total",
		metric.WithDescription("Total number of checkout submissions"),
		metric.WithUnit("1"),
	); err != nil {
		return nil, fmt.Errorf("failed to create orders counter: %w", err)
	}

	if m.OrderTransitions, err = meter.Int64Counter(
		"order_transitions_total",
		metric.WithDescription("Total number of admin order status transitions requested"),
		metric.WithUnit("1"),
	); err != nil {
		return nil, fmt.Errorf("failed to create order transitions counter: %w", err)
	}

	if m.ProductsViewed, err = meter.Int64Counter(
		"products_viewed_total",
		metric.WithDescription("Total number of product detail fetches"),
		metric.WithUnit("1"),
	); err != nil {
		return nil, fmt.Errorf("failed to create products viewed counter: %w", err)
	}

	if m.SessionsActive, err = meter.Int64Gauge(
		"sessions_active",
		metric.WithDescription("1 while a user is signed in on this device"),
		metric.WithUnit("1"),
	); err != nil {
		return nil, fmt.Errorf("failed to create sessions gauge: %w", err)
	}

	return m, nil
}

// WithServiceName adds service.name to attributes
func (m *AppMetrics) WithServiceName(attrs []attribute.KeyValue) []attribute.KeyValue {
	return append(attrs, attribute.String("service.name", m.serviceName))
}

// RecordAPIRequest records one marketplace backend round trip
func (m *AppMetrics) RecordAPIRequest(ctx context.Context, method, path string, statusCode int, start time.Time, success bool) {
	duration := time.Since(start).Milliseconds()

	attrs := m.WithServiceName([]attribute.KeyValue{
		attribute.String("http.method", method),
		attribute.String("http.route", path),
		attribute.Int("http.status_code", statusCode),
	})

	m.APIRequestsTotal.Add(ctx, 1, metric.WithAttributes(attrs...))
	if !success {
		m.APIRequestsErrors.Add(ctx, 1, metric.WithAttributes(attrs...))
	}
	m.APIRequestDuration.Record(ctx, float64(duration), metric.WithAttributes(attrs...))
}

// RecordStoreOp records a local store operation
func (m *AppMetrics) RecordStoreOp(ctx context.Context, operation, backend string, start time.Time, success bool) {
	duration := time.Since(start).Milliseconds()

	status := "success"
	if !success {
		status = "error"
	}

	attrs := m.WithServiceName([]attribute.KeyValue{
		attribute.String("store.operation", operation),
		attribute.String("store.backend", backend),
		attribute.String("status", status),
	})

	m.StoreOpsTotal.Add(ctx, 1, metric.WithAttributes(attrs...))
	m.StoreOpDuration.Record(ctx, float64(duration), metric.WithAttributes(attrs...))
}

// RecordCart records the size and value of the cart after a mutation
func (m *AppMetrics) RecordCart(ctx context.Context, items int, value float64) {
	attrs := metric.WithAttributes(m.WithServiceName([]attribute.KeyValue{})...)
	m.CartItemsCount.Record(ctx, int64(items), attrs)
	m.CartValue.Record(ctx, value, attrs)
}

// RecordTransition records an admin order transition attempt
func (m *AppMetrics) RecordTransition(ctx context.Context, action string, success bool) {
	m.OrderTransitions.Add(ctx, 1, metric.WithAttributes(m.WithServiceName([]attribute.KeyValue{
		attribute.String("order.action", action),
		attribute.String("outcome", outcome(success)),
	})...))
}

// RecordCheckout records a checkout submission
func (m *AppMetrics) RecordCheckout(ctx context.Context, prepaymentPercentage int, success bool) {
	m.OrdersPlaced.Add(ctx, 1, metric.WithAttributes(m.WithServiceName([]attribute.KeyValue{
		attribute.Int("prepayment_percentage", prepaymentPercentage),
		attribute.String("outcome", outcome(success)),
	})...))
}

// RecordSession records whether a user is signed in
func (m *AppMetrics) RecordSession(ctx context.Context, authenticated, admin bool) {
	var v int64
	if authenticated {
		v = 1
	}
	m.SessionsActive.Record(ctx, v, metric.WithAttributes(m.WithServiceName([]attribute.KeyValue{
		attribute.Bool("user.admin", admin),
	})...))
}

func outcome(success bool) string {
	if success {
		return "success"
	}
	return "error"
}

// parseHeaders parses header string in format "key1=value1,key2=value2"
// and returns a map of headers
func parseHeaders(headerStr string) map[string]string {
	headers := make(map[string]string)
	if headerStr == "" {
		return headers
	}

	pairs := strings.Split(headerStr, ",")
	for _, pair := range pairs {
		parts := strings.SplitN(strings.TrimSpace(pair), "=", 2)
		if len(parts) == 2 {
			headers[strings.TrimSpace(parts[0])] = strings.TrimSpace(parts[1])
		}
	}
	return headers
}
