// Package telemetry wires the daemon's tracing and metrics: Jaeger spans
// around store operations and a Prometheus metric reader. Both halves are
// optional and controlled by config.
package telemetry

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/jaeger"
	"go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/shokuba/honne/pkg/config"
	"github.com/shokuba/honne/pkg/logging"
)

var tracer trace.Tracer

// Init sets up the configured exporters and returns a shutdown function
// that flushes them. With telemetry disabled it is a no-op.
func Init(cfg *config.TelemetryConfig) (func(), error) {
	if !cfg.Enabled {
		logging.GetLogger().Info("Telemetry disabled")
		return func() {}, nil
	}

	res, err := resource.New(context.Background(),
		resource.WithAttributes(
			semconv.ServiceName(cfg.ServiceName),
			semconv.ServiceVersion("0.1.0"),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to describe service resource: %w", err)
	}

	var closers []func(context.Context) error

	if cfg.JaegerURL != "" {
		tp, err := newTracerProvider(cfg, res)
		if err != nil {
			return nil, err
		}
		otel.SetTracerProvider(tp)
		closers = append(closers, tp.Shutdown)
	}

	if cfg.PrometheusEnabled {
		mp, err := newMeterProvider(cfg, res)
		if err != nil {
			return nil, err
		}
		otel.SetMeterProvider(mp)
		closers = append(closers, mp.Shutdown)
	}

	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))
	tracer = otel.Tracer(cfg.ServiceName)

	shutdown := func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		for _, fn := range closers {
			if err := fn(ctx); err != nil {
				logging.GetLogger().Error("Error shutting down telemetry", zap.Error(err))
			}
		}
	}
	return shutdown, nil
}

func newTracerProvider(cfg *config.TelemetryConfig, res *resource.Resource) (*sdktrace.TracerProvider, error) {
	exporter, err := jaeger.New(jaeger.WithCollectorEndpoint(jaeger.WithEndpoint(cfg.JaegerURL)))
	if err != nil {
		return nil, fmt.Errorf("failed to create Jaeger exporter: %w", err)
	}
	logging.GetLogger().Info("Jaeger exporter initialized", zap.String("url", cfg.JaegerURL))
	return sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
	), nil
}

func newMeterProvider(cfg *config.TelemetryConfig, res *resource.Resource) (*metric.MeterProvider, error) {
	exporter, err := prometheus.New()
	if err != nil {
		return nil, fmt.Errorf("failed to create Prometheus exporter: %w", err)
	}
	logging.GetLogger().Info("Prometheus exporter initialized", zap.Int("port", cfg.PrometheusPort))
	return metric.NewMeterProvider(
		metric.WithReader(exporter),
		metric.WithResource(res),
	), nil
}

// Tracer returns the span tracer, a no-op one before Init.
func Tracer() trace.Tracer {
	if tracer == nil {
		return trace.NewNoopTracerProvider().Tracer("honne")
	}
	return tracer
}

// StartSpan starts a span on the daemon tracer.
func StartSpan(ctx context.Context, name string, opts ...trace.SpanStartOption) (context.Context, trace.Span) {
	return Tracer().Start(ctx, name, opts...)
}
