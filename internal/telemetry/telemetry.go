// Package telemetry wires optional OpenTelemetry export for MedTrack.
//
// When a collector endpoint is configured, [Setup] installs global trace,
// metric and log providers that export over one shared OTLP gRPC connection.
// Without configuration nothing is installed: the global providers stay
// no-ops and the sync orchestrator, insight client and HTTP server record
// into them at no cost.
package telemetry

import (
	"context"
	"errors"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlplog/otlploggrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/log/global"
	sdklog "go.opentelemetry.io/otel/sdk/log"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/njoerd114/medtrack/internal/config"
)

// DefaultServiceName is the service.name resource attribute used when the
// configuration does not override it.
const DefaultServiceName = "medtrack"

// Config holds the exporter settings for one process.
type Config struct {
	// OTLPEndpoint is the gRPC host:port of the collector.
	OTLPEndpoint string
	Insecure     bool
	ServiceName  string
	// ServiceVersion is recorded as service.version, typically the build
	// version of the binary.
	ServiceVersion string
	// Headers is sent as gRPC metadata on every export request.
	Headers map[string]string
	// Role distinguishes the client from the backend ("client", "server")
	// through the service.namespace attribute.
	Role string
}

// FromConfig converts the YAML telemetry block. It reports false when the
// block is absent, meaning telemetry is disabled.
func FromConfig(tc *config.TelemetryConfig, version, role string) (Config, bool) {
	if tc == nil || tc.OTLPEndpoint == "" {
		return Config{}, false
	}
	return Config{
		OTLPEndpoint:   tc.OTLPEndpoint,
		Insecure:       tc.Insecure,
		ServiceName:    tc.ServiceName,
		ServiceVersion: version,
		Headers:        tc.Headers,
		Role:           role,
	}, true
}

// ShutdownFunc flushes and closes all providers. Call it with a fresh
// context: the main context is usually cancelled by then.
type ShutdownFunc func(context.Context) error

// Setup installs the global providers. The returned ShutdownFunc is never
// nil, so callers can defer it before checking the error.
func Setup(ctx context.Context, cfg Config) (ShutdownFunc, error) {
	res, err := newResource(cfg)
	if err != nil {
		return noopShutdown, fmt.Errorf("building OTel resource: %w", err)
	}

	conn, err := dial(cfg)
	if err != nil {
		return noopShutdown, fmt.Errorf("dialling OTLP collector at %q: %w", cfg.OTLPEndpoint, err)
	}

	// closers run in reverse order on shutdown or on a failed setup.
	closers := []func(context.Context) error{
		func(context.Context) error {
			if err := conn.Close(); err != nil {
				return fmt.Errorf("OTLP gRPC connection close: %w", err)
			}
			return nil
		},
	}
	shutdown := func(ctx context.Context) error {
		var errs []error
		for i := len(closers) - 1; i >= 0; i-- {
			errs = append(errs, closers[i](ctx))
		}
		return errors.Join(errs...)
	}

	traceExp, err := otlptracegrpc.New(ctx,
		otlptracegrpc.WithGRPCConn(conn),
		otlptracegrpc.WithHeaders(cfg.Headers),
	)
	if err != nil {
		_ = shutdown(ctx)
		return noopShutdown, fmt.Errorf("creating OTLP trace exporter: %w", err)
	}
	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(traceExp),
		sdktrace.WithResource(res),
	)
	otel.SetTracerProvider(tp)
	closers = append(closers, wrapShutdown("trace provider", tp.Shutdown))

	metricExp, err := otlpmetricgrpc.New(ctx,
		otlpmetricgrpc.WithGRPCConn(conn),
		otlpmetricgrpc.WithHeaders(cfg.Headers),
	)
	if err != nil {
		_ = shutdown(ctx)
		return noopShutdown, fmt.Errorf("creating OTLP metric exporter: %w", err)
	}
	mp := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(metricExp)),
		sdkmetric.WithResource(res),
	)
	otel.SetMeterProvider(mp)
	closers = append(closers, wrapShutdown("metric provider", mp.Shutdown))

	logExp, err := otlploggrpc.New(ctx,
		otlploggrpc.WithGRPCConn(conn),
		otlploggrpc.WithHeaders(cfg.Headers),
	)
	if err != nil {
		_ = shutdown(ctx)
		return noopShutdown, fmt.Errorf("creating OTLP log exporter: %w", err)
	}
	lp := sdklog.NewLoggerProvider(
		sdklog.WithProcessor(sdklog.NewBatchProcessor(logExp)),
		sdklog.WithResource(res),
	)
	global.SetLoggerProvider(lp)
	closers = append(closers, wrapShutdown("log provider", lp.Shutdown))

	return shutdown, nil
}

func newResource(cfg Config) (*resource.Resource, error) {
	name := cfg.ServiceName
	if name == "" {
		name = DefaultServiceName
	}
	attrs := []attribute.KeyValue{semconv.ServiceName(name)}
	if cfg.ServiceVersion != "" {
		attrs = append(attrs, semconv.ServiceVersion(cfg.ServiceVersion))
	}
	if cfg.Role != "" {
		attrs = append(attrs, semconv.ServiceNamespace("medtrack."+cfg.Role))
	}
	// Schemaless avoids a schema URL clash between resource.Default() and
	// the semconv version imported here.
	return resource.Merge(resource.Default(), resource.NewSchemaless(attrs...))
}

func dial(cfg Config) (*grpc.ClientConn, error) {
	var creds credentials.TransportCredentials
	if cfg.Insecure {
		creds = insecure.NewCredentials()
	} else {
		creds = credentials.NewTLS(nil) // system root CAs
	}
	return grpc.NewClient(cfg.OTLPEndpoint, grpc.WithTransportCredentials(creds))
}

func wrapShutdown(what string, fn func(context.Context) error) func(context.Context) error {
	return func(ctx context.Context) error {
		if err := fn(ctx); err != nil {
			return fmt.Errorf("%s shutdown: %w", what, err)
		}
		return nil
	}
}

func noopShutdown(context.Context) error { return nil }
