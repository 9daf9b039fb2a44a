// Package otel configures the process-wide OpenTelemetry tracer provider.
package otel

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	"go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"

	"refman/internal/logger"
)

// ShutdownFunc flushes pending spans.
type ShutdownFunc func(context.Context) error

func noopShutdown(context.Context) error { return nil }

// Init installs an OTLP-exporting tracer provider configured by the standard
// OTEL_* environment variables. With OTEL_SDK_DISABLED=true, or when the
// exporter cannot be built, only propagation is set up and spans are dropped.
func Init(ctx context.Context) (ShutdownFunc, error) {
	l := logger.WithComponent("otel")
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(propagation.TraceContext{}, propagation.Baggage{}))

	if os.Getenv("OTEL_SDK_DISABLED") == "true" {
		l.Info("tracing_configured", slog.Bool("tracing_enabled", false))
		return noopShutdown, nil
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceNameKey.String(getEnv("OTEL_SERVICE_NAME", "refman")),
		),
		resource.WithFromEnv(),
		resource.WithProcess(),
		resource.WithTelemetrySDK(),
		resource.WithHost(),
	)
	switch {
	case errors.Is(err, resource.ErrPartialResource):
		l.Warn("partial otel resource", slog.Any("err", err))
	case err != nil:
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}

	protocol := getEnv("OTEL_EXPORTER_OTLP_PROTOCOL", "grpc")
	exporter, err := newExporter(ctx, protocol)
	if err != nil {
		l.Error("tracing_init_failed", slog.Any("err", err))
		return noopShutdown, nil
	}

	samplerName, samplerArg := samplerFromEnv()
	tp := trace.NewTracerProvider(
		trace.WithBatcher(exporter),
		trace.WithResource(res),
		trace.WithSampler(getSampler(samplerName, samplerArg)),
	)
	otel.SetTracerProvider(tp)

	endpoint := os.Getenv("OTEL_EXPORTER_OTLP_TRACES_ENDPOINT")
	if endpoint == "" {
		endpoint = os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT")
	}
	l.Info("tracing_configured",
		slog.Bool("tracing_enabled", true),
		slog.String("otlp_protocol", protocol),
		slog.String("otlp_endpoint", endpoint),
		slog.String("sampler", samplerName),
		slog.String("sampler_arg", samplerArg),
	)
	return tp.Shutdown, nil
}

func newExporter(ctx context.Context, protocol string) (*otlptrace.Exporter, error) {
	switch protocol {
	case "grpc":
		return otlptracegrpc.New(ctx)
	case "http/protobuf":
		return otlptracehttp.New(ctx)
	default:
		return nil, fmt.Errorf("unsupported OTLP protocol: %s", protocol)
	}
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok && value != "" {
		return value
	}
	return fallback
}

func samplerFromEnv() (string, string) {
	return getEnv("OTEL_TRACES_SAMPLER", "parentbased_traceidratio"), getEnv("OTEL_TRACES_SAMPLER_ARG", "1.0")
}

func parseRatio(arg string) float64 {
	ratio, err := strconv.ParseFloat(arg, 64)
	if err != nil || ratio < 0 || ratio > 1 {
		return 1.0
	}
	return ratio
}

func getSampler(name, arg string) trace.Sampler {
	switch name {
	case "always_on":
		return trace.AlwaysSample()
	case "always_off":
		return trace.NeverSample()
	case "traceidratio":
		return trace.TraceIDRatioBased(parseRatio(arg))
	case "parentbased_always_on":
		return trace.ParentBased(trace.AlwaysSample())
	case "parentbased_always_off":
		return trace.ParentBased(trace.NeverSample())
	case "parentbased_traceidratio":
		return trace.ParentBased(trace.TraceIDRatioBased(parseRatio(arg)))
	default:
		return trace.ParentBased(trace.AlwaysSample())
	}
}
