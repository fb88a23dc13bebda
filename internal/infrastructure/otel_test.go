package infrastructure

import (
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mplosser/data-call-report/internal/config"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(&strings.Builder{}, nil))
}

func TestInitializeTelemetry_Disabled(t *testing.T) {
	tel, err := InitializeTelemetry(config.TelemetryConfig{Enabled: false}, discardLogger())
	require.NoError(t, err)

	assert.Nil(t, tel.TracerProvider)
	assert.Nil(t, tel.MeterProvider)
	assert.Nil(t, tel.Registry)
	require.NotNil(t, tel.Metrics)

	// Recording through no-op instruments must not panic.
	ctx := context.Background()
	RecordFileProcessed(ctx, tel.Metrics, "chicago", "ok", time.Second)
	RecordPartitionWritten(ctx, tel.Metrics, "FFIEC_031_041", 1200)
	RecordDownload(ctx, tel.Metrics, "fetched", 2048)
	RecordPipelineError(ctx, tel.Metrics, "parse")

	assert.NoError(t, tel.Shutdown(ctx))
}

func TestInitializeTelemetry_Enabled(t *testing.T) {
	tel, err := InitializeTelemetry(config.TelemetryConfig{
		Enabled:     true,
		ServiceName: "callreport-test",
		JobName:     "callreport_test",
	}, discardLogger())
	require.NoError(t, err)
	require.NotNil(t, tel.Registry)
	require.NotNil(t, tel.MeterProvider)

	ctx := context.Background()
	RecordFileProcessed(ctx, tel.Metrics, "ffiec", "ok", 2*time.Second)
	RecordPartitionWritten(ctx, tel.Metrics, "FFIEC_031_041", 10)

	families, err := tel.Registry.Gather()
	require.NoError(t, err)
	require.NotEmpty(t, families)

	names := make(map[string]bool, len(families))
	for _, f := range families {
		names[f.GetName()] = true
	}
	assert.True(t, names["callreport_files_processed_total"], "gathered families: %v", names)
	assert.True(t, names["callreport_partitions_written_total"], "gathered families: %v", names)

	assert.NoError(t, tel.Shutdown(ctx))
}

func TestTelemetry_PushesOnShutdown(t *testing.T) {
	var method, path string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		method = r.Method
		path = r.URL.Path
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	tel, err := InitializeTelemetry(config.TelemetryConfig{
		Enabled:        true,
		ServiceName:    "callreport-test",
		JobName:        "callreport_test",
		PushgatewayURL: srv.URL,
	}, discardLogger())
	require.NoError(t, err)

	RecordPipelineError(context.Background(), tel.Metrics, "setup")
	require.NoError(t, tel.Shutdown(context.Background()))

	assert.Equal(t, http.MethodPut, method)
	assert.True(t, strings.HasPrefix(path, "/metrics/job/callreport_test"), path)
}

func TestTelemetry_PushFailureReported(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "no", http.StatusInternalServerError)
	}))
	defer srv.Close()

	tel, err := InitializeTelemetry(config.TelemetryConfig{
		Enabled:        true,
		ServiceName:    "callreport-test",
		JobName:        "callreport_test",
		PushgatewayURL: srv.URL,
	}, discardLogger())
	require.NoError(t, err)

	err = tel.Shutdown(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "pushgateway")
}

func TestRecordHelpers_NilMetrics(t *testing.T) {
	ctx := context.Background()
	RecordFileProcessed(ctx, nil, "chicago", "ok", time.Second)
	RecordPartitionWritten(ctx, nil, "X", 1)
	RecordDownload(ctx, nil, "fetched", 1)
	RecordPipelineError(ctx, nil, "parse")
}
