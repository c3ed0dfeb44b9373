// Package otel configures OpenTelemetry tracing for portside binaries.
package otel

import (
	"context"
	"os"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
)

// InstrumentationName prefixes tracer names used by portside packages.
const InstrumentationName = "github.com/onemarinex/portside"

// Setup initialises OpenTelemetry tracing for the given service.
//
// Tracing is opt-in: when PORTSIDE_OTEL_ENDPOINT is empty or
// PORTSIDE_OTEL_ENABLED is "false", Setup returns a no-op shutdown function
// and no global provider is registered. PORTSIDE_DEPLOYMENT_ENV, when set, is
// attached to every span resource.
func Setup(ctx context.Context, serviceName string) (shutdown func(context.Context) error, err error) {
	noop := func(context.Context) error { return nil }

	if strings.EqualFold(os.Getenv("PORTSIDE_OTEL_ENABLED"), "false") {
		return noop, nil
	}

	endpoint := os.Getenv("PORTSIDE_OTEL_ENDPOINT")
	if endpoint == "" {
		return noop, nil
	}

	exporter, err := otlptracehttp.New(ctx,
		otlptracehttp.WithEndpointURL(endpoint),
	)
	if err != nil {
		return noop, err
	}

	attrs := []resource.Option{
		resource.WithAttributes(semconv.ServiceName(serviceName)),
	}
	if deployment := strings.TrimSpace(os.Getenv("PORTSIDE_DEPLOYMENT_ENV")); deployment != "" {
		attrs = append(attrs, resource.WithAttributes(semconv.DeploymentEnvironment(deployment)))
	}
	res, err := resource.New(ctx, attrs...)
	if err != nil {
		return noop, err
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
	)

	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.TraceContext{})

	return tp.Shutdown, nil
}

// Tracer returns a tracer scoped to a portside package, e.g. "procurement/quoting".
func Tracer(component string) trace.Tracer {
	return otel.Tracer(InstrumentationName + "/" + strings.Trim(component, "/"))
}

// Finish records err on span, when set, and ends the span.
func Finish(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}
