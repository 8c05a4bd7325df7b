// Package telemetry wires the OTLP trace, metric and log pipelines and the
// invoicing instruments recorded on them.
package telemetry

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlplog/otlploggrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/log/global"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/propagation"
	sdklog "go.opentelemetry.io/otel/sdk/log"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.37.0"
	"go.uber.org/zap"
)

// ServiceVersion is reported on every exported resource
const ServiceVersion = "1.0.0"

const defaultMetricsInterval = time.Minute

// Options selects the exported signals and the collector they go to
type Options struct {
	ServiceName     string
	Endpoint        string
	Insecure        bool
	Traces          bool
	Metrics         bool
	Logs            bool
	SamplingRatio   float64
	MetricsInterval time.Duration
}

func (o Options) any() bool {
	return o.Traces || o.Metrics || o.Logs
}

// Pipelines owns the SDK providers of the exported signals. A nil provider
// leaves the global no-op in place for that signal.
type Pipelines struct {
	opts    Options
	traces  *sdktrace.TracerProvider
	metrics *sdkmetric.MeterProvider
	logs    *sdklog.LoggerProvider
	log     *zap.Logger
}

// Start builds a provider for every enabled signal and installs it globally.
// Providers already started are shut down when a later one fails.
func Start(ctx context.Context, opts Options, log *zap.Logger) (*Pipelines, error) {
	p := &Pipelines{opts: opts, log: log.Named("telemetry")}
	if !opts.any() {
		p.log.Info("Telemetry export disabled")
		return p, nil
	}

	res, err := newResource(opts.ServiceName)
	if err != nil {
		return nil, err
	}

	if opts.Traces {
		if p.traces, err = startTraces(ctx, opts, res); err != nil {
			return nil, p.abort(err)
		}
		otel.SetTracerProvider(p.traces)
		otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
			propagation.TraceContext{},
			propagation.Baggage{},
		))
	}
	if opts.Metrics {
		if p.metrics, err = startMetrics(ctx, opts, res); err != nil {
			return nil, p.abort(err)
		}
		otel.SetMeterProvider(p.metrics)
	}
	if opts.Logs {
		if p.logs, err = startLogs(ctx, opts, res); err != nil {
			return nil, p.abort(err)
		}
		global.SetLoggerProvider(p.logs)
	}

	p.log.Info("Telemetry export started",
		zap.String("endpoint", opts.Endpoint),
		zap.String("service_name", opts.ServiceName),
		zap.Bool("traces", opts.Traces),
		zap.Bool("metrics", opts.Metrics),
		zap.Bool("logs", opts.Logs),
		zap.Float64("sampling_ratio", opts.SamplingRatio),
	)
	return p, nil
}

func (p *Pipelines) abort(cause error) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return errors.Join(cause, p.Shutdown(ctx))
}

func startTraces(ctx context.Context, opts Options, res *resource.Resource) (*sdktrace.TracerProvider, error) {
	clientOpts := []otlptracegrpc.Option{otlptracegrpc.WithEndpoint(opts.Endpoint)}
	if opts.Insecure {
		clientOpts = append(clientOpts, otlptracegrpc.WithInsecure())
	}
	exporter, err := otlptracegrpc.New(ctx, clientOpts...)
	if err != nil {
		return nil, fmt.Errorf("create trace exporter: %w", err)
	}
	return sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(newSampler(opts.SamplingRatio)),
	), nil
}

func startMetrics(ctx context.Context, opts Options, res *resource.Resource) (*sdkmetric.MeterProvider, error) {
	clientOpts := []otlpmetricgrpc.Option{otlpmetricgrpc.WithEndpoint(opts.Endpoint)}
	if opts.Insecure {
		clientOpts = append(clientOpts, otlpmetricgrpc.WithInsecure())
	}
	exporter, err := otlpmetricgrpc.New(ctx, clientOpts...)
	if err != nil {
		return nil, fmt.Errorf("create metric exporter: %w", err)
	}

	interval := opts.MetricsInterval
	if interval <= 0 {
		interval = defaultMetricsInterval
	}
	return sdkmetric.NewMeterProvider(
		sdkmetric.WithResource(res),
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exporter, sdkmetric.WithInterval(interval))),
	), nil
}

func startLogs(ctx context.Context, opts Options, res *resource.Resource) (*sdklog.LoggerProvider, error) {
	clientOpts := []otlploggrpc.Option{otlploggrpc.WithEndpoint(opts.Endpoint)}
	if opts.Insecure {
		clientOpts = append(clientOpts, otlploggrpc.WithInsecure())
	}
	exporter, err := otlploggrpc.New(ctx, clientOpts...)
	if err != nil {
		return nil, fmt.Errorf("create log exporter: %w", err)
	}
	return sdklog.NewLoggerProvider(
		sdklog.WithResource(res),
		sdklog.WithProcessor(sdklog.NewBatchProcessor(exporter)),
	), nil
}

// newSampler follows the parent decision and samples root spans by ratio
func newSampler(ratio float64) sdktrace.Sampler {
	root := sdktrace.TraceIDRatioBased(ratio)
	if ratio >= 1 {
		root = sdktrace.AlwaysSample()
	} else if ratio <= 0 {
		root = sdktrace.NeverSample()
	}
	return sdktrace.ParentBased(root)
}

func newResource(serviceName string) (*resource.Resource, error) {
	res, err := resource.Merge(resource.Default(), resource.NewWithAttributes(
		semconv.SchemaURL,
		semconv.ServiceName(serviceName),
		semconv.ServiceVersion(ServiceVersion),
	))
	if err != nil {
		return nil, fmt.Errorf("build telemetry resource: %w", err)
	}
	return res, nil
}

// Meter returns a meter on the exporting provider, or on the global one when
// metrics are off.
func (p *Pipelines) Meter(name string, opts ...metric.MeterOption) metric.Meter {
	if p == nil || p.metrics == nil {
		return otel.GetMeterProvider().Meter(name, opts...)
	}
	return p.metrics.Meter(name, opts...)
}

// MetricsEnabled reports whether metrics leave the process
func (p *Pipelines) MetricsEnabled() bool { return p != nil && p.metrics != nil }

// TracesEnabled reports whether spans leave the process
func (p *Pipelines) TracesEnabled() bool { return p != nil && p.traces != nil }

// LogsEnabled reports whether log records leave the process
func (p *Pipelines) LogsEnabled() bool { return p != nil && p.logs != nil }

// Flush exports everything buffered so far without stopping the providers
func (p *Pipelines) Flush(ctx context.Context) error {
	var errs []error
	if p.traces != nil {
		errs = append(errs, p.traces.ForceFlush(ctx))
	}
	if p.metrics != nil {
		errs = append(errs, p.metrics.ForceFlush(ctx))
	}
	if p.logs != nil {
		errs = append(errs, p.logs.ForceFlush(ctx))
	}
	return errors.Join(errs...)
}

// Shutdown flushes and stops every started provider. Logs stop last.
func (p *Pipelines) Shutdown(ctx context.Context) error {
	var errs []error
	if p.traces != nil {
		if err := p.traces.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("traces: %w", err))
		}
	}
	if p.metrics != nil {
		if err := p.metrics.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("metrics: %w", err))
		}
	}
	if p.logs != nil {
		if err := p.logs.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("logs: %w", err))
		}
	}
	if err := errors.Join(errs...); err != nil {
		p.log.Error("Telemetry shutdown incomplete", zap.Error(err))
		return err
	}
	if p.opts.any() {
		p.log.Info("Telemetry export stopped")
	}
	return nil
}
