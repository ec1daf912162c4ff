// Package otel wires the OpenTelemetry log pipeline used by the tracing
// log level. Flight metrics go through InfluxDB instead.
package otel

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"go.opentelemetry.io/otel/exporters/otlp/otlplog/otlploghttp"
	"go.opentelemetry.io/otel/exporters/stdout/stdoutlog"
	sdklog "go.opentelemetry.io/otel/sdk/log"
	"go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
)

// Config selects the sinks for the log pipeline.
type Config struct {
	Enabled      bool
	ServiceName  string
	BatchTimeout time.Duration
	LogWriter    io.Writer // trace file handle, required when enabled
	Endpoint     string    // OTLP collector, optional
	Insecure     bool      // plain HTTP to the collector
}

// Provider owns the sdk log pipeline. A disabled provider is inert: every
// method is a no-op and Logs returns nil.
type Provider struct {
	logs   *sdklog.LoggerProvider
	config Config
}

// New builds the log pipeline from cfg. At least one sink, the trace file
// or an OTLP endpoint, must be configured when OTel is enabled.
func New(cfg Config) (*Provider, error) {
	p := &Provider{config: cfg}
	if !cfg.Enabled {
		return p, nil
	}

	ctx := context.Background()

	var opts []sdklog.LoggerProviderOption
	if cfg.LogWriter != nil {
		fileProc, err := fileProcessor(cfg)
		if err != nil {
			return nil, err
		}
		opts = append(opts, sdklog.WithProcessor(fileProc))
	}
	if cfg.Endpoint != "" {
		otlpProc, err := collectorProcessor(ctx, cfg)
		if err != nil {
			return nil, err
		}
		opts = append(opts, sdklog.WithProcessor(otlpProc))
	}
	if len(opts) == 0 {
		return nil, errors.New("OTel enabled but no log writer or endpoint configured")
	}

	res, err := resource.New(ctx, resource.WithAttributes(
		semconv.ServiceName(cfg.ServiceName),
	))
	if err != nil {
		return nil, fmt.Errorf("otel resource: %w", err)
	}

	p.logs = sdklog.NewLoggerProvider(append(opts, sdklog.WithResource(res))...)
	return p, nil
}

// fileProcessor batches pretty-printed records into the local trace file.
func fileProcessor(cfg Config) (sdklog.Processor, error) {
	exp, err := stdoutlog.New(
		stdoutlog.WithWriter(cfg.LogWriter),
		stdoutlog.WithPrettyPrint(),
	)
	if err != nil {
		return nil, fmt.Errorf("trace file exporter: %w", err)
	}
	return sdklog.NewBatchProcessor(exp, sdklog.WithExportTimeout(cfg.BatchTimeout)), nil
}

// collectorProcessor batches records out to the OTLP collector over HTTP.
func collectorProcessor(ctx context.Context, cfg Config) (sdklog.Processor, error) {
	otlpOpts := []otlploghttp.Option{otlploghttp.WithEndpoint(cfg.Endpoint)}
	if cfg.Insecure {
		otlpOpts = append(otlpOpts, otlploghttp.WithInsecure())
	}

	exp, err := otlploghttp.New(ctx, otlpOpts...)
	if err != nil {
		return nil, fmt.Errorf("otlp exporter: %w", err)
	}
	return sdklog.NewBatchProcessor(exp, sdklog.WithExportTimeout(cfg.BatchTimeout)), nil
}

// Logs exposes the logger provider for the otelslog bridge; nil when OTel
// is disabled.
func (p *Provider) Logs() *sdklog.LoggerProvider {
	return p.logs
}

// ForceFlush exports buffered records. Called when a session ends so the
// trace file is complete on disk.
func (p *Provider) ForceFlush(ctx context.Context) error {
	if p.logs == nil {
		return nil
	}
	if err := p.logs.ForceFlush(ctx); err != nil {
		return fmt.Errorf("log flush failed: %w", err)
	}
	return nil
}

// Shutdown stops the pipeline on application exit.
func (p *Provider) Shutdown(ctx context.Context) error {
	if p.logs == nil {
		return nil
	}
	if err := p.logs.Shutdown(ctx); err != nil {
		return fmt.Errorf("log shutdown failed: %w", err)
	}
	return nil
}
