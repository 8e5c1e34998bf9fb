package metrics

import "go.opentelemetry.io/otel/metric/noop"

// NewNoop returns metrics that record nothing. Used when export is disabled and in tests.
func NewNoop(serviceName string) *AppMetrics {
	m, err := NewAppMetrics(noop.NewMeterProvider().Meter(serviceName), serviceName)
	if err != nil {
		// the noop meter never fails to create instruments
		panic(err)
	}
	return m
}
