// Command processor normalizes raw filings into the canonical parquet
// corpus. It builds the variable dictionary from the MDRM export,
// splits Chicago Fed quarterly transport files into one partition per
// entity category, and merges FFIEC CDR bulk files into the commercial
// bank series. Quarters whose partitions already exist are skipped
// unless -force is given.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/mplosser/data-call-report/internal/app"
	"github.com/mplosser/data-call-report/internal/dictionary"
	apperrors "github.com/mplosser/data-call-report/internal/errors"
	"github.com/mplosser/data-call-report/internal/infrastructure"
	"github.com/mplosser/data-call-report/internal/pipeline"
	"github.com/mplosser/data-call-report/internal/sources"
	"github.com/mplosser/data-call-report/internal/store"
)

func main() {
	source := flag.String("source", "all", "what to process: dictionary, chicago, ffiec, or all")
	startDate := flag.String("start-date", "", "only periods ending on or after this date (YYYY-MM-DD)")
	endDate := flag.String("end-date", "", "only periods ending on or before this date (YYYY-MM-DD)")
	force := flag.Bool("force", false, "reprocess quarters whose output partitions already exist")
	workers := flag.Int("workers", 0, "parallel workers (0 uses the configured count)")
	flag.Parse()

	sel, err := parseSource(*source)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		flag.Usage()
		os.Exit(1)
	}
	start, err := parseDate(*startDate)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	end, err := parseDate(*endDate)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	a, err := app.New("processor")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	ctx, cancel := a.Context()
	defer cancel()
	defer a.Shutdown(context.Background())

	if sel.dictionary {
		if _, statErr := os.Stat(a.Config.MDRMCSVPath()); statErr == nil {
			if err := buildDictionary(a); err != nil {
				a.Logger.Error("dictionary build failed", slog.String("error", err.Error()))
				os.Exit(1)
			}
		} else if sel.chicago || sel.ffiec {
			a.Logger.Warn("MDRM export not found, skipping dictionary build",
				slog.String("path", a.Config.MDRMCSVPath()))
		} else {
			a.Logger.Error("MDRM export not found, run the downloader with -source dictionary first",
				slog.String("path", a.Config.MDRMCSVPath()))
			os.Exit(1)
		}
	}
	if !sel.chicago && !sel.ffiec {
		return
	}

	st := store.New(a.Config.OutputDir())
	dict := loadDictionary(ctx, a)

	var jobs []pipeline.Job
	var jobSources []string
	var discoverErrs []error

	if sel.chicago {
		ch := sources.NewChicago(sources.ChicagoConfig{
			RawDir:    a.Config.ChicagoRawDir(),
			StartDate: start,
			EndDate:   end,
			Force:     *force,
		}, st, dict, a.Logger)
		files, err := ch.Discover(ctx)
		if err != nil {
			discoverErrs = append(discoverErrs, fmt.Errorf("chicago: %w", err))
		}
		for _, f := range files {
			jobs = append(jobs, processJob("chicago", f, a.Telemetry.Metrics, ch.ProcessFile))
			jobSources = append(jobSources, "chicago")
		}
	}
	if sel.ffiec {
		fc := sources.NewFFIEC(sources.FFIECConfig{
			RawDir: a.Config.FFIECRawDir(),
			Force:  *force,
		}, st, dict, a.Logger)
		files, err := fc.Discover()
		if err != nil {
			discoverErrs = append(discoverErrs, fmt.Errorf("ffiec: %w", err))
		}
		for _, f := range files {
			jobs = append(jobs, processJob("ffiec", f, a.Telemetry.Metrics, fc.ProcessFile))
			jobSources = append(jobSources, "ffiec")
		}
	}

	if len(jobs) == 0 {
		for _, derr := range discoverErrs {
			a.Logger.Error("discovery failed", slog.String("error", derr.Error()))
		}
		a.Logger.Error("nothing to process")
		os.Exit(1)
	}
	// With several sources selected, one empty raw directory should not
	// stop the other from processing.
	for _, derr := range discoverErrs {
		a.Logger.Warn("skipping source", slog.String("error", derr.Error()))
	}

	poolWidth := *workers
	if poolWidth <= 0 {
		poolWidth = a.Config.Pipeline.Workers
	}
	runner := pipeline.NewRunner(poolWidth, a.Logger)
	results, stats := runner.Run(ctx, jobs)
	for i, res := range results {
		infrastructure.RecordFileProcessed(ctx, a.Telemetry.Metrics, jobSources[i], statusLabel(res), res.Duration)
		if res.Err != nil {
			infrastructure.RecordPipelineError(ctx, a.Telemetry.Metrics, string(apperrors.GetErrorType(res.Err)))
		}
	}
	fmt.Println(stats.String())
}

// sourceSelection captures which processing stages -source enables.
type sourceSelection struct {
	dictionary bool
	chicago    bool
	ffiec      bool
}

func parseSource(s string) (sourceSelection, error) {
	switch strings.ToLower(s) {
	case "dictionary":
		return sourceSelection{dictionary: true}, nil
	case "chicago":
		return sourceSelection{chicago: true}, nil
	case "ffiec":
		return sourceSelection{ffiec: true}, nil
	case "all":
		return sourceSelection{dictionary: true, chicago: true, ffiec: true}, nil
	default:
		return sourceSelection{}, fmt.Errorf("unknown source %q (want dictionary, chicago, ffiec, or all)", s)
	}
}

// parseDate parses a YYYY-MM-DD flag value. Empty leaves the bound
// open.
func parseDate(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q (want YYYY-MM-DD)", s)
	}
	return t, nil
}

// buildDictionary parses the raw MDRM export and writes the CSV and
// parquet dictionary artifacts.
func buildDictionary(a *app.App) error {
	descriptors, err := dictionary.ParseMDRMFile(a.Config.MDRMCSVPath())
	if err != nil {
		return err
	}
	if err := dictionary.SaveArtifacts(a.Config.DictionaryCSVPath(), a.Config.DictionaryParquetPath(), descriptors); err != nil {
		return err
	}
	a.Logger.Info("dictionary built",
		slog.Int("variables", len(descriptors)),
		slog.String("path", a.Config.DictionaryParquetPath()))
	return nil
}

// loadDictionary loads the dictionary artifacts. A missing or broken
// dictionary degrades to processing without descriptions or form
// provenance filtering.
func loadDictionary(ctx context.Context, a *app.App) *dictionary.Dictionary {
	dict, err := dictionary.LoadPreferred(ctx, a.Config.DictionaryParquetPath(), a.Config.DictionaryCSVPath())
	if err != nil {
		a.Logger.Warn("processing without variable descriptions", slog.String("error", err.Error()))
		return nil
	}
	a.Logger.Info("dictionary loaded", slog.Int("variables", dict.Len()))
	return dict
}

// processJob wraps one raw file into a pipeline job.
func processJob(source string, f sources.File, metrics *infrastructure.PipelineMetrics, process func(context.Context, sources.File) (*sources.QuarterResult, error)) pipeline.Job {
	return pipeline.Job{
		ID: source + "/" + filepath.Base(f.Path),
		Run: func(ctx context.Context) (pipeline.Status, string, error) {
			res, err := process(ctx, f)
			if err != nil {
				return pipeline.StatusErrored, "", err
			}
			if res.Skipped {
				return pipeline.StatusSkipped, res.Summary(), nil
			}
			for category, rows := range res.Rows {
				infrastructure.RecordPartitionWritten(ctx, metrics, string(category), int64(rows))
			}
			return pipeline.StatusProcessed, res.Summary(), nil
		},
	}
}

// statusLabel names a result for metrics, keeping unrecognized inputs
// apart from real failures the way run statistics do.
func statusLabel(res pipeline.Result) string {
	if apperrors.IsUnrecognized(res.Err) {
		return "unrecognized"
	}
	return string(res.Status)
}
