// Package tracing bootstraps the OpenTelemetry tracer provider the core
// treats as an optional, pluggable collaborator: every component must
// behave identically whether a real exporter is attached or tracing is
// a no-op. Grounded in original_source/runpod/otel.py and rp_tracer.py:
// OTLP export when OTEL_EXPORTER_OTLP_ENDPOINT is set, stdout export in
// local/dev, otherwise a no-op provider.
package tracing

import (
	"context"
	"os"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"
	"go.opentelemetry.io/otel/trace"

	"github.com/runpod-worker/serverless-worker/internal/logging"
)

const serviceName = "serverless-worker"

// Start configures the global tracer provider and returns a shutdown
// func the caller must invoke on exit. collector is typically
// os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"); an empty collector with a
// "local" deployment environment falls back to a stdout exporter, and
// an empty collector otherwise disables tracing entirely.
func Start(ctx context.Context, collector string, log *logging.Logger) (shutdown func(context.Context) error) {
	env := deploymentEnv()

	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceName(serviceName),
			semconv.DeploymentEnvironment(env),
		),
	)
	if err != nil {
		res = resource.Default()
	}

	switch {
	case collector != "":
		exp, err := otlptracehttp.New(ctx, otlptracehttp.WithEndpoint(collector))
		if err != nil {
			log.Error("failed to build OTLP exporter, tracing disabled: " + err.Error())
			otel.SetTracerProvider(trace.NewNoopTracerProvider())
			return func(context.Context) error { return nil }
		}
		tp := sdktrace.NewTracerProvider(
			sdktrace.WithBatcher(exp),
			sdktrace.WithResource(res),
		)
		otel.SetTracerProvider(tp)
		log.Info("OpenTelemetry exporting via OTLP to " + collector)
		return tp.Shutdown

	case env == "local":
		exp, err := stdouttrace.New(stdouttrace.WithPrettyPrint())
		if err != nil {
			otel.SetTracerProvider(trace.NewNoopTracerProvider())
			return func(context.Context) error { return nil }
		}
		tp := sdktrace.NewTracerProvider(
			sdktrace.WithBatcher(exp),
			sdktrace.WithResource(res),
		)
		otel.SetTracerProvider(tp)
		log.Info("OpenTelemetry printing spans to console")
		return tp.Shutdown

	default:
		otel.SetTracerProvider(trace.NewNoopTracerProvider())
		return func(context.Context) error { return nil }
	}
}

// Tracer returns the package-scoped tracer used by every core
// component. Safe to call before Start; resolves to a no-op tracer
// until the global provider is configured.
func Tracer(name string) trace.Tracer {
	return otel.Tracer(name)
}

// StartSpan is the minimal span-start API the core's components call
// around an operation; it closes over the context.Context threading the
// rest of the spec assumes.
func StartSpan(ctx context.Context, tracerName, spanName string) (context.Context, trace.Span) {
	return Tracer(tracerName).Start(ctx, spanName)
}

func deploymentEnv() string {
	pingURL := os.Getenv("RUNPOD_WEBHOOK_PING")
	switch {
	case strings.Contains(pingURL, "runpod.dev"):
		return "dev"
	case strings.Contains(pingURL, "runpod.ai"):
		return "prod"
	default:
		return "local"
	}
}
