package infrastructure

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	promclient "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/push"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.28.0"
	"go.opentelemetry.io/otel/trace"

	"github.com/mplosser/data-call-report/internal/config"
)

const (
	// ServiceVersion is stamped onto telemetry resources.
	ServiceVersion = "1.2.0"
	// MeterName names the tracer and meter instrumentation scope.
	MeterName = "callreport"
)

// Telemetry holds the OpenTelemetry providers for one pipeline run.
// When telemetry is disabled the struct is still usable: the tracer and
// meter come from the global no-op providers and Shutdown does nothing.
type Telemetry struct {
	TracerProvider *sdktrace.TracerProvider
	MeterProvider  *sdkmetric.MeterProvider
	Tracer         trace.Tracer
	Meter          metric.Meter
	Registry       *promclient.Registry
	Metrics        *PipelineMetrics

	pushURL string
	jobName string
	logger  *slog.Logger
}

// InitializeTelemetry sets up tracing and metrics for a pipeline run
// according to the telemetry configuration. Metrics are collected into a
// private Prometheus registry and pushed to the configured Pushgateway
// when Shutdown is called at the end of the run.
func InitializeTelemetry(cfg config.TelemetryConfig, logger *slog.Logger) (*Telemetry, error) {
	ctx := context.Background()

	t := &Telemetry{
		Tracer:  otel.Tracer(MeterName),
		Meter:   otel.Meter(MeterName),
		pushURL: cfg.PushgatewayURL,
		jobName: cfg.JobName,
		logger:  logger,
	}

	if !cfg.Enabled {
		metrics, err := CreatePipelineMetrics(t.Meter)
		if err != nil {
			return nil, fmt.Errorf("failed to create pipeline metrics: %w", err)
		}
		t.Metrics = metrics
		return t, nil
	}

	logger.InfoContext(ctx, "initializing telemetry",
		slog.String("service", cfg.ServiceName),
		slog.Bool("trace_stdout", cfg.TraceStdout),
		slog.String("pushgateway", cfg.PushgatewayURL))

	res := resource.NewWithAttributes(
		semconv.SchemaURL,
		semconv.ServiceName(cfg.ServiceName),
		semconv.ServiceVersion(ServiceVersion),
		attribute.String("service.instance.id", generateInstanceID()),
	)

	if cfg.TraceStdout {
		exporter, err := stdouttrace.New(stdouttrace.WithPrettyPrint())
		if err != nil {
			return nil, fmt.Errorf("failed to create trace exporter: %w", err)
		}
		tp := sdktrace.NewTracerProvider(
			sdktrace.WithBatcher(exporter),
			sdktrace.WithResource(res),
		)
		t.TracerProvider = tp
		t.Tracer = tp.Tracer(MeterName, trace.WithInstrumentationVersion(ServiceVersion))
		otel.SetTracerProvider(tp)
	}

	registry := promclient.NewRegistry()
	exporter, err := prometheus.New(prometheus.WithRegisterer(registry))
	if err != nil {
		return nil, fmt.Errorf("failed to create prometheus exporter: %w", err)
	}
	mp := sdkmetric.NewMeterProvider(
		sdkmetric.WithResource(res),
		sdkmetric.WithReader(exporter),
	)
	t.Registry = registry
	t.MeterProvider = mp
	t.Meter = mp.Meter(MeterName, metric.WithInstrumentationVersion(ServiceVersion))
	otel.SetMeterProvider(mp)

	metrics, err := CreatePipelineMetrics(t.Meter)
	if err != nil {
		return nil, fmt.Errorf("failed to create pipeline metrics: %w", err)
	}
	t.Metrics = metrics

	return t, nil
}

// Shutdown pushes collected metrics to the Pushgateway, if configured,
// and shuts down the providers.
func (t *Telemetry) Shutdown(ctx context.Context) error {
	var errs []error

	if t.Registry != nil && t.pushURL != "" {
		hostname, _ := os.Hostname()
		pusher := push.New(t.pushURL, t.jobName).
			Gatherer(t.Registry).
			Grouping("instance", hostname)
		if err := pusher.Push(); err != nil {
			errs = append(errs, fmt.Errorf("pushgateway push: %w", err))
		} else if t.logger != nil {
			t.logger.InfoContext(ctx, "metrics pushed",
				slog.String("pushgateway", t.pushURL),
				slog.String("job", t.jobName))
		}
	}

	if t.TracerProvider != nil {
		if err := t.TracerProvider.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("tracer provider shutdown: %w", err))
		}
	}

	if t.MeterProvider != nil {
		if err := t.MeterProvider.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("meter provider shutdown: %w", err))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("telemetry shutdown errors: %v", errs)
	}
	return nil
}

// PipelineMetrics holds the pipeline's application metrics.
type PipelineMetrics struct {
	FilesProcessed    metric.Int64Counter
	FileDuration      metric.Float64Histogram
	RowsWritten       metric.Int64Counter
	PartitionsWritten metric.Int64Counter
	DownloadRequests  metric.Int64Counter
	DownloadBytes     metric.Int64Counter
	PipelineErrors    metric.Int64Counter
}

// CreatePipelineMetrics creates the pipeline's metric instruments.
func CreatePipelineMetrics(meter metric.Meter) (*PipelineMetrics, error) {
	filesProcessed, err := meter.Int64Counter(
		"callreport_files_processed_total",
		metric.WithDescription("Raw files processed, by source and status"),
	)
	if err != nil {
		return nil, err
	}

	fileDuration, err := meter.Float64Histogram(
		"callreport_file_duration_seconds",
		metric.WithDescription("Per-file processing duration in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	rowsWritten, err := meter.Int64Counter(
		"callreport_rows_written_total",
		metric.WithDescription("Rows written to the parquet corpus, by entity category"),
	)
	if err != nil {
		return nil, err
	}

	partitionsWritten, err := meter.Int64Counter(
		"callreport_partitions_written_total",
		metric.WithDescription("Parquet partitions written, by entity category"),
	)
	if err != nil {
		return nil, err
	}

	downloadRequests, err := meter.Int64Counter(
		"callreport_download_requests_total",
		metric.WithDescription("Download requests issued, by status"),
	)
	if err != nil {
		return nil, err
	}

	downloadBytes, err := meter.Int64Counter(
		"callreport_download_bytes_total",
		metric.WithDescription("Bytes downloaded"),
		metric.WithUnit("By"),
	)
	if err != nil {
		return nil, err
	}

	pipelineErrors, err := meter.Int64Counter(
		"callreport_errors_total",
		metric.WithDescription("Pipeline errors, by error type"),
	)
	if err != nil {
		return nil, err
	}

	return &PipelineMetrics{
		FilesProcessed:    filesProcessed,
		FileDuration:      fileDuration,
		RowsWritten:       rowsWritten,
		PartitionsWritten: partitionsWritten,
		DownloadRequests:  downloadRequests,
		DownloadBytes:     downloadBytes,
		PipelineErrors:    pipelineErrors,
	}, nil
}

// RecordFileProcessed records the outcome of one raw file.
func RecordFileProcessed(ctx context.Context, m *PipelineMetrics, source, status string, duration time.Duration) {
	if m == nil {
		return
	}

	attrs := []attribute.KeyValue{
		attribute.String("source", source),
		attribute.String("status", status),
	}
	m.FilesProcessed.Add(ctx, 1, metric.WithAttributes(attrs...))
	m.FileDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(attribute.String("source", source)))
}

// RecordPartitionWritten records a partition write with its row count.
func RecordPartitionWritten(ctx context.Context, m *PipelineMetrics, category string, rows int64) {
	if m == nil {
		return
	}

	attrs := metric.WithAttributes(attribute.String("category", category))
	m.PartitionsWritten.Add(ctx, 1, attrs)
	m.RowsWritten.Add(ctx, rows, attrs)
}

// RecordPipelineError counts an error by taxonomy type.
func RecordPipelineError(ctx context.Context, m *PipelineMetrics, errType string) {
	if m == nil {
		return
	}
	m.PipelineErrors.Add(ctx, 1, metric.WithAttributes(attribute.String("type", errType)))
}

// RecordDownload counts one download outcome and its payload size.
func RecordDownload(ctx context.Context, m *PipelineMetrics, status string, bytes int64) {
	if m == nil {
		return
	}
	m.DownloadRequests.Add(ctx, 1, metric.WithAttributes(attribute.String("status", status)))
	if bytes > 0 {
		m.DownloadBytes.Add(ctx, bytes)
	}
}

// generateInstanceID generates a unique instance identifier
func generateInstanceID() string {
	hostname, _ := os.Hostname()
	return fmt.Sprintf("%s-%d", hostname, time.Now().Unix())
}
