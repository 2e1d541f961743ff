package observability

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"admission/internal/limiter"
)

// InstrumentedLimiter wraps a limiter.Limiter with OpenTelemetry tracing and
// metrics. Each decision produces a span plus a latency sample, and the
// admitted/denied counters feed the gateway's primary dashboards.
type InstrumentedLimiter struct {
	inner     limiter.Limiter
	tier      string
	tracer    trace.Tracer
	duration  metric.Float64Histogram
	decisions metric.Int64Counter
	errors    metric.Int64Counter
}

// NewInstrumentedLimiter wraps inner, tagging every span and metric sample
// with the tier the limiter enforces.
func NewInstrumentedLimiter(inner limiter.Limiter, tier string) (*InstrumentedLimiter, error) {
	tracer := otel.Tracer("admission/limiter")
	meter := otel.Meter("admission/limiter")

	duration, err := meter.Float64Histogram(
		"admission.decision.duration",
		metric.WithDescription("Duration of admission decisions in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	decisions, err := meter.Int64Counter(
		"admission.decisions",
		metric.WithDescription("Admission decisions partitioned by outcome"),
		metric.WithUnit("{decision}"),
	)
	if err != nil {
		return nil, err
	}

	errCounter, err := meter.Int64Counter(
		"admission.decision.errors",
		metric.WithDescription("Number of admission decision errors"),
		metric.WithUnit("{error}"),
	)
	if err != nil {
		return nil, err
	}

	return &InstrumentedLimiter{
		inner:     inner,
		tier:      tier,
		tracer:    tracer,
		duration:  duration,
		decisions: decisions,
		errors:    errCounter,
	}, nil
}

// Allow delegates to the wrapped limiter and records the decision.
func (l *InstrumentedLimiter) Allow(identity string, at time.Time) (bool, limiter.Info, error) {
	ctx, span := l.tracer.Start(context.Background(), "limiter.Allow",
		trace.WithAttributes(
			attribute.String("admission.tier", l.tier),
			attribute.String("admission.identity", identity),
		),
	)
	start := time.Now()

	allowed, info, err := l.inner.Allow(identity, at)

	tierAttr := attribute.String("tier", l.tier)
	l.duration.Record(ctx, time.Since(start).Seconds(), metric.WithAttributes(tierAttr))

	switch {
	case err != nil:
		l.errors.Add(ctx, 1, metric.WithAttributes(tierAttr))
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	case allowed:
		l.decisions.Add(ctx, 1, metric.WithAttributes(tierAttr, attribute.String("outcome", "admitted")))
		span.SetAttributes(attribute.Bool("admission.allowed", true))
		span.SetStatus(codes.Ok, "")
	default:
		l.decisions.Add(ctx, 1, metric.WithAttributes(tierAttr, attribute.String("outcome", "denied")))
		span.SetAttributes(attribute.Bool("admission.allowed", false))
		span.SetStatus(codes.Ok, "")
	}
	span.End()

	return allowed, info, err
}

// Window delegates to the wrapped limiter. Snapshots are cheap reads and are
// not traced.
func (l *InstrumentedLimiter) Window(identity string) (limiter.Window, bool) {
	return l.inner.Window(identity)
}

// Close stops the wrapped limiter.
func (l *InstrumentedLimiter) Close() {
	l.inner.Close()
}
