package telemetry

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
	"go.opentelemetry.io/otel/trace"

	"github.com/attacklens/attacklens/internal/config"
)

// Telemetry records viewer-level metrics: artifact loads and index builds.
type Telemetry interface {
	RecordLoad(app string, shape string, duration float64, success bool)
	RecordResolution(app string, matched bool)
	Close() error
}

type telemetry struct {
	tracer         trace.Tracer
	meter          metric.Meter
	tracerProvider *sdktrace.TracerProvider

	loadCounter       metric.Int64Counter
	loadDuration      metric.Float64Histogram
	resolutionCounter metric.Int64Counter
}

func New(ctx context.Context, cfg config.TelemetryConfig) (Telemetry, error) {
	if !cfg.Enabled {
		return &noopTelemetry{}, nil
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceName(cfg.ServiceName),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}

	var exporter sdktrace.SpanExporter

	switch cfg.ExporterType {
	case "otlp":
		client := otlptracehttp.NewClient(
			otlptracehttp.WithEndpoint(cfg.Endpoint),
			otlptracehttp.WithInsecure(),
		)
		exp, err := otlptrace.New(ctx, client)
		if err != nil {
			return nil, fmt.Errorf("failed to create OTLP exporter: %w", err)
		}
		exporter = exp
	default:
		return nil, fmt.Errorf("unsupported exporter type: %s", cfg.ExporterType)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithSampler(sdktrace.TraceIDRatioBased(cfg.SampleRate)),
		sdktrace.WithResource(res),
		sdktrace.WithBatcher(exporter),
	)

	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	tracer := tp.Tracer(cfg.ServiceName)
	meter := otel.Meter(cfg.ServiceName)

	loadCounter, err := meter.Int64Counter("attacklens.loads.total",
		metric.WithDescription("Total number of artifact loads"),
		metric.WithUnit("1"),
	)
	if err != nil {
		return nil, err
	}

	loadDuration, err := meter.Float64Histogram("attacklens.load.duration",
		metric.WithDescription("Artifact load duration in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	resolutionCounter, err := meter.Int64Counter("attacklens.resolutions.total",
		metric.WithDescription("Technique resolution attempts"),
		metric.WithUnit("1"),
	)
	if err != nil {
		return nil, err
	}

	return &telemetry{
		tracer:            tracer,
		meter:             meter,
		tracerProvider:    tp,
		loadCounter:       loadCounter,
		loadDuration:      loadDuration,
		resolutionCounter: resolutionCounter,
	}, nil
}

func (t *telemetry) RecordLoad(app string, shape string, duration float64, success bool) {
	ctx := context.Background()

	attrs := []attribute.KeyValue{
		attribute.String("artifact.application", app),
		attribute.String("artifact.shape", shape),
		attribute.Bool("artifact.success", success),
	}

	t.loadCounter.Add(ctx, 1, metric.WithAttributes(attrs...))
	t.loadDuration.Record(ctx, duration, metric.WithAttributes(attrs...))
}

func (t *telemetry) RecordResolution(app string, matched bool) {
	ctx := context.Background()

	attrs := []attribute.KeyValue{
		attribute.String("artifact.application", app),
		attribute.Bool("resolution.matched", matched),
	}

	t.resolutionCounter.Add(ctx, 1, metric.WithAttributes(attrs...))
}

func (t *telemetry) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return t.tracerProvider.Shutdown(ctx)
}

type noopTelemetry struct{}

func (n *noopTelemetry) RecordLoad(app string, shape string, duration float64, success bool) {}
func (n *noopTelemetry) RecordResolution(app string, matched bool)                           {}
func (n *noopTelemetry) Close() error                                                        { return nil }
