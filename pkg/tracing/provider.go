package tracing

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"

	"github.com/Ramsey-B/bloom/pkg/tracing/exporters"
)

// ProviderConfig holds tracer provider settings.
type ProviderConfig struct {
	ServiceName string
	Environment string
	// OTLPEndpoint is the collector address. Empty means spans are dropped.
	OTLPEndpoint string
	OTLPProtocol string
	OTLPInsecure bool
}

// InitProvider configures the global tracer provider and the package tracer.
// The returned function flushes and shuts the provider down.
func InitProvider(ctx context.Context, cfg ProviderConfig) (func(context.Context) error, error) {
	res, err := resource.New(
		ctx,
		resource.WithAttributes(
			semconv.ServiceNameKey.String(cfg.ServiceName),
			semconv.DeploymentEnvironmentKey.String(cfg.Environment),
		),
	)
	if err != nil {
		return nil, err
	}

	var exporter sdktrace.SpanExporter
	if cfg.OTLPEndpoint != "" {
		otlpCfg := exporters.DefaultOTLPConfig()
		otlpCfg.Endpoint = cfg.OTLPEndpoint
		otlpCfg.Insecure = cfg.OTLPInsecure
		if cfg.OTLPProtocol != "" {
			otlpCfg.Protocol = cfg.OTLPProtocol
		}
		exporter, err = exporters.NewOTLPExporter(ctx, otlpCfg)
		if err != nil {
			return nil, err
		}
	} else {
		exporter = &exporters.ConsoleExporter{}
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
	)

	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	SetTracer(tp.Tracer(cfg.ServiceName))

	return tp.Shutdown, nil
}
