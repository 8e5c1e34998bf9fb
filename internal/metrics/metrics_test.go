package metrics

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

func newTestMetrics(t *testing.T) (*AppMetrics, *sdkmetric.ManualReader) {
	t.Helper()
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = provider.Shutdown(context.Background()) })

	m, err := NewAppMetrics(provider.Meter("test"), "storefront-test")
	require.NoError(t, err)
	return m, reader
}

func collect(t *testing.T, reader *sdkmetric.ManualReader) map[string]metricdata.Metrics {
	t.Helper()
	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))

	out := make(map[string]metricdata.Metrics)
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			out[m.Name] = m
		}
	}
	return out
}

func TestRecordAPIRequestCountsErrors(t *testing.T) {
	m, reader := newTestMetrics(t)
	ctx := context.Background()

	m.RecordAPIRequest(ctx, "GET", "/api/products", 200, time.Now(), true)
	m.RecordAPIRequest(ctx, "PATCH", "/api/orders/1/status", 409, time.Now(), false)

	got := collect(t, reader)

	total, ok := got["marketplace.client.request.count"].Data.(metricdata.Sum[int64])
	require.True(t, ok)
	var sum int64
	for _, dp := range total.DataPoints {
		sum += dp.Value
	}
	assert.Equal(t, int64(2), sum)

	errs, ok := got["marketplace.client.request.error.count"].Data.(metricdata.Sum[int64])
	require.True(t, ok)
	require.Len(t, errs.DataPoints, 1)
	assert.Equal(t, int64(1), errs.DataPoints[0].Value)
}

func TestRecordCartGauges(t *testing.T) {
	m, reader := newTestMetrics(t)

	m.RecordCart(context.Background(), 3, 130)

	got := collect(t, reader)
	items, ok := got["cart_items_count"].Data.(metricdata.Gauge[int64])
	require.True(t, ok)
	require.Len(t, items.DataPoints, 1)
	assert.Equal(t, int64(3), items.DataPoints[0].Value)

	value, ok := got["cart_value"].Data.(metricdata.Gauge[float64])
	require.True(t, ok)
	assert.Equal(t, 130.0, value.DataPoints[0].Value)
}

func TestParseHeaders(t *testing.T) {
	assert.Equal(t, map[string]string{"a": "1", "b": "x=y"}, parseHeaders(" a=1 , b=x=y,broken"))
	assert.Empty(t, parseHeaders(""))
}

func TestNewNoop(t *testing.T) {
	m := NewNoop("test")
	assert.NotPanics(t, func() {
		m.RecordTransition(context.Background(), "confirm", true)
		m.RecordCheckout(context.Background(), 50, false)
		m.RecordSession(context.Background(), true, false)
		m.RecordStoreOp(context.Background(), "get", "memory", time.Now(), true)
	})
}
