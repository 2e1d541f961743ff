package observability

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	otelprom "go.opentelemetry.io/otel/exporters/prometheus"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"

	"admission/internal/limiter"
)

// setupMeterWithRegistry wires the global meter provider to a private
// Prometheus registry so each test can inspect exactly what it recorded.
func setupMeterWithRegistry(t *testing.T) *prometheus.Registry {
	t.Helper()

	registry := prometheus.NewRegistry()
	exporter, err := otelprom.New(otelprom.WithRegisterer(registry))
	require.NoError(t, err)

	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(exporter))
	previous := otel.GetMeterProvider()
	otel.SetMeterProvider(provider)
	t.Cleanup(func() { otel.SetMeterProvider(previous) })

	return registry
}

func newInnerLimiter(t *testing.T, perMinute, perHour int) limiter.Limiter {
	t.Helper()
	l, err := limiter.NewWindowedLimiter(perMinute, perHour, 0)
	require.NoError(t, err)
	t.Cleanup(l.Close)
	return l
}

// findFamily returns the metric family with the given name, or nil.
func findFamily(families []*dto.MetricFamily, name string) *dto.MetricFamily {
	for _, mf := range families {
		if mf.GetName() == name {
			return mf
		}
	}
	return nil
}

// outcomeCount sums counter samples carrying the given outcome label value.
func outcomeCount(mf *dto.MetricFamily, outcome string) float64 {
	var total float64
	for _, m := range mf.GetMetric() {
		for _, label := range m.GetLabel() {
			if label.GetName() == "outcome" && label.GetValue() == outcome {
				total += m.GetCounter().GetValue()
			}
		}
	}
	return total
}

func TestInstrumentedLimiter_RecordsDecisions(t *testing.T) {
	registry := setupMeterWithRegistry(t)
	inner := newInnerLimiter(t, 2, 100)

	instrumented, err := NewInstrumentedLimiter(inner, "pro")
	require.NoError(t, err)

	at := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	for range 3 {
		_, _, err := instrumented.Allow("client-1", at)
		require.NoError(t, err)
	}

	families, err := registry.Gather()
	require.NoError(t, err)

	decisions := findFamily(families, "admission_decisions_total")
	require.NotNil(t, decisions, "decision counter not exported")
	assert.Equal(t, float64(2), outcomeCount(decisions, "admitted"))
	assert.Equal(t, float64(1), outcomeCount(decisions, "denied"))

	duration := findFamily(families, "admission_decision_duration_seconds")
	require.NotNil(t, duration, "duration histogram not exported")
	require.NotEmpty(t, duration.GetMetric())
	assert.Equal(t, uint64(3), duration.GetMetric()[0].GetHistogram().GetSampleCount())
}

func TestInstrumentedLimiter_RecordsErrors(t *testing.T) {
	registry := setupMeterWithRegistry(t)
	inner := newInnerLimiter(t, 2, 100)

	instrumented, err := NewInstrumentedLimiter(inner, "pro")
	require.NoError(t, err)

	_, _, err = instrumented.Allow("client-1", time.Time{})
	require.ErrorIs(t, err, limiter.ErrInvalidTimestamp)

	families, err := registry.Gather()
	require.NoError(t, err)

	errCounter := findFamily(families, "admission_decision_errors_total")
	require.NotNil(t, errCounter, "error counter not exported")
	require.NotEmpty(t, errCounter.GetMetric())
	assert.Equal(t, float64(1), errCounter.GetMetric()[0].GetCounter().GetValue())
}

func TestInstrumentedLimiter_DelegatesWindow(t *testing.T) {
	_ = setupMeterWithRegistry(t)
	inner := newInnerLimiter(t, 10, 100)

	instrumented, err := NewInstrumentedLimiter(inner, "pro")
	require.NoError(t, err)

	at := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	_, _, err = instrumented.Allow("client-1", at)
	require.NoError(t, err)

	window, ok := instrumented.Window("client-1")
	require.True(t, ok)
	assert.Equal(t, 1, window.HourCount)

	_, ok = instrumented.Window("client-2")
	assert.False(t, ok)
}

func TestInstrumentedLimiter_ImplementsInterface(t *testing.T) {
	_ = setupMeterWithRegistry(t)
	inner := newInnerLimiter(t, 1, 1)

	instrumented, err := NewInstrumentedLimiter(inner, "default")
	require.NoError(t, err)

	var _ limiter.Limiter = instrumented
	instrumented.Close()
}
