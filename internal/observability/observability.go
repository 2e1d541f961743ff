// Package observability wires the admission gateway into OpenTelemetry.
// Decision metrics flow through a Prometheus reader served on a dedicated
// scrape port; traces go to stdout or an OTLP collector depending on
// configuration. It also provides the instrumented limiter wrapper that
// records a span and decision metrics around every admission check.
package observability

import (
	"context"
	"errors"
	"fmt"
	"os"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"

	"admission/internal/models"
	"admission/internal/version"
)

// Provider bundles the gateway's tracer and meter providers so main can shut
// them down together. Either half is nil when its config section is disabled.
type Provider struct {
	tracerProvider *sdktrace.TracerProvider
	meterProvider  *sdkmetric.MeterProvider
	promExporter   *prometheus.Exporter
}

// PrometheusExporter returns the exporter backing the scrape endpoint, or nil
// when metrics are disabled.
func (p *Provider) PrometheusExporter() *prometheus.Exporter {
	return p.promExporter
}

// Shutdown flushes and stops whichever providers were started.
func (p *Provider) Shutdown(ctx context.Context) error {
	var errs []error
	if p.tracerProvider != nil {
		errs = append(errs, p.tracerProvider.Shutdown(ctx))
	}
	if p.meterProvider != nil {
		errs = append(errs, p.meterProvider.Shutdown(ctx))
	}
	return errors.Join(errs...)
}

// Setup builds the OpenTelemetry providers for this gateway instance and
// installs them as the process-wide defaults. Metrics and tracing are
// independent; either can run without the other.
func Setup(metrics models.MetricsConfig, obs models.ObservabilityConfig, ver version.Info) (*Provider, error) {
	res, err := gatewayResource(obs.ServiceName, ver)
	if err != nil {
		return nil, fmt.Errorf("failed to describe gateway resource: %w", err)
	}

	p := &Provider{}

	if metrics.Enabled {
		exporter, err := prometheus.New()
		if err != nil {
			return nil, fmt.Errorf("failed to create prometheus exporter: %w", err)
		}
		p.promExporter = exporter
		p.meterProvider = sdkmetric.NewMeterProvider(
			sdkmetric.WithResource(res),
			sdkmetric.WithReader(exporter),
		)
		otel.SetMeterProvider(p.meterProvider)
	}

	if obs.Tracing.Enabled {
		exporter, err := newSpanExporter(obs.Tracing)
		if err != nil {
			return nil, err
		}
		p.tracerProvider = sdktrace.NewTracerProvider(
			sdktrace.WithResource(res),
			sdktrace.WithBatcher(exporter),
			sdktrace.WithSampler(samplerFor(obs.Tracing.SampleRate)),
		)
		otel.SetTracerProvider(p.tracerProvider)
	}

	return p, nil
}

// gatewayResource identifies this gateway instance on every span and metric,
// so replicas of a scraped fleet can be told apart.
func gatewayResource(serviceName string, ver version.Info) (*resource.Resource, error) {
	return resource.New(context.Background(),
		resource.WithAttributes(
			semconv.ServiceName(serviceName),
			semconv.ServiceVersion(ver.Version),
			semconv.ServiceInstanceID(ver.InstanceID),
			semconv.HostName(ver.Hostname),
			attribute.String("git.commit", ver.GitCommit),
			semconv.DeploymentEnvironment(deploymentEnvironment()),
		),
	)
}

func newSpanExporter(cfg models.TracingConfig) (sdktrace.SpanExporter, error) {
	switch cfg.Exporter {
	case "stdout":
		return stdouttrace.New(stdouttrace.WithPrettyPrint())
	case "otlp":
		return otlptracegrpc.New(context.Background(),
			otlptracegrpc.WithEndpoint(cfg.OTLPEndpoint),
			otlptracegrpc.WithInsecure(),
		)
	default:
		return nil, fmt.Errorf("unsupported trace exporter: %s", cfg.Exporter)
	}
}

// samplerFor clamps the configured rate into a sampler: everything at or
// above 1, nothing at or below 0, a trace-ID ratio in between.
func samplerFor(rate float64) sdktrace.Sampler {
	switch {
	case rate >= 1.0:
		return sdktrace.AlwaysSample()
	case rate <= 0:
		return sdktrace.NeverSample()
	default:
		return sdktrace.TraceIDRatioBased(rate)
	}
}

func deploymentEnvironment() string {
	for _, key := range []string{"ENVIRONMENT", "DEPLOYMENT_ENV"} {
		if env := os.Getenv(key); env != "" {
			return env
		}
	}
	return "development"
}
