package tracing

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/jaeger"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/exporters/zipkin"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

// Config configures OpenTelemetry tracing
type Config struct {
	// Exporter selects the span exporter: "stdout", "jaeger" or "zipkin"
	Exporter string

	// Endpoint is the collector endpoint for jaeger/zipkin
	Endpoint string

	// ServiceName tags every span. Default: "taskwell".
	ServiceName string

	// SampleRatio in [0,1]. Default: 1 (sample everything).
	SampleRatio float64
}

// Init installs a global tracer provider per cfg and returns a shutdown
// function that flushes and stops it
func Init(ctx context.Context, cfg Config) (func(context.Context) error, error) {
	exporter, err := newExporter(cfg)
	if err != nil {
		return nil, err
	}

	serviceName := cfg.ServiceName
	if serviceName == "" {
		serviceName = "taskwell"
	}
	ratio := cfg.SampleRatio
	if ratio <= 0 || ratio > 1 {
		ratio = 1
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.TraceIDRatioBased(ratio))),
		sdktrace.WithResource(resource.NewSchemaless(
			attribute.String("service.name", serviceName),
		)),
	)
	otel.SetTracerProvider(tp)

	return tp.Shutdown, nil
}

func newExporter(cfg Config) (sdktrace.SpanExporter, error) {
	switch cfg.Exporter {
	case "", "stdout":
		return stdouttrace.New(stdouttrace.WithPrettyPrint())
	case "jaeger":
		if cfg.Endpoint == "" {
			return nil, fmt.Errorf("jaeger exporter requires an endpoint")
		}
		return jaeger.New(jaeger.WithCollectorEndpoint(jaeger.WithEndpoint(cfg.Endpoint)))
	case "zipkin":
		if cfg.Endpoint == "" {
			return nil, fmt.Errorf("zipkin exporter requires an endpoint")
		}
		return zipkin.New(cfg.Endpoint)
	default:
		return nil, fmt.Errorf("unknown trace exporter: %s", cfg.Exporter)
	}
}
