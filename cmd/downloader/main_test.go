package main

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mplosser/data-call-report/internal/config"
	"github.com/mplosser/data-call-report/internal/download"
	"github.com/mplosser/data-call-report/internal/pipeline"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testClient() *download.Client {
	return download.NewClient(config.Default().Download, testLogger())
}

func TestParseSource(t *testing.T) {
	tests := []struct {
		input      string
		chicago    bool
		dictionary bool
		wantErr    bool
	}{
		{input: "chicago", chicago: true},
		{input: "dictionary", dictionary: true},
		{input: "all", chicago: true, dictionary: true},
		{input: "ALL", chicago: true, dictionary: true},
		{input: "ffiec", wantErr: true},
		{input: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			chicago, dictionary, err := parseSource(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.chicago, chicago)
			assert.Equal(t, tt.dictionary, dictionary)
		})
	}
}

func TestChicagoJobs_OnePerQuarter(t *testing.T) {
	ch, err := download.NewChicago(download.ChicagoConfig{
		BaseURL:   "http://example.invalid/",
		OutDir:    t.TempDir(),
		StartYear: 1985,
		EndYear:   1985,
	}, testClient(), testLogger())
	require.NoError(t, err)

	jobs := chicagoJobs(ch, nil)
	require.Len(t, jobs, 4)
	assert.Equal(t, "chicago/1985Q1", jobs[0].ID)
	assert.Equal(t, "chicago/1985Q4", jobs[3].ID)
}

func TestChicagoJobs_SkipsQuartersAlreadyOnDisk(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "call8503.zip"), []byte("archive"), 0o644))

	ch, err := download.NewChicago(download.ChicagoConfig{
		BaseURL:   "http://example.invalid/",
		OutDir:    dir,
		StartYear: 1985,
		EndYear:   1985,
	}, testClient(), testLogger())
	require.NoError(t, err)

	jobs := chicagoJobs(ch, nil)
	require.Len(t, jobs, 4)

	status, summary, err := jobs[0].Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, pipeline.StatusSkipped, status)
	assert.Equal(t, "already downloaded", summary)
}

func TestDictionaryJob_SkipsCurrentArtifacts(t *testing.T) {
	dir := t.TempDir()
	zipPath := filepath.Join(dir, "MDRM.zip")
	csvPath := filepath.Join(dir, "MDRM.csv")
	require.NoError(t, os.WriteFile(zipPath, []byte("archive"), 0o644))
	require.NoError(t, os.WriteFile(csvPath, []byte("csv"), 0o644))
	old := time.Now().Add(-time.Hour)
	require.NoError(t, os.Chtimes(zipPath, old, old))

	m := download.NewMDRM(download.MDRMConfig{
		URL:    "http://example.invalid/mdrm.zip",
		OutDir: dir,
	}, testClient(), testLogger())

	job := dictionaryJob(m, nil)
	assert.Equal(t, "dictionary/mdrm", job.ID)

	status, summary, err := job.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, pipeline.StatusSkipped, status)
	assert.Equal(t, "dictionary current", summary)
}
