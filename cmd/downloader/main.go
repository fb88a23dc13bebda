// Command downloader fetches the raw inputs of the call report
// pipeline: the Chicago Fed quarterly archives and the Federal Reserve
// MDRM data dictionary. Files already on disk are skipped, so the
// command can resume an interrupted run.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/mplosser/data-call-report/internal/app"
	"github.com/mplosser/data-call-report/internal/download"
	"github.com/mplosser/data-call-report/internal/infrastructure"
	"github.com/mplosser/data-call-report/internal/pipeline"
)

func main() {
	source := flag.String("source", "all", "what to fetch: chicago, dictionary, or all")
	startYear := flag.Int("start-year", 1985, "first year of quarterly archives to fetch")
	endYear := flag.Int("end-year", 2021, "last year of quarterly archives to fetch")
	flag.Parse()

	chicago, dict, err := parseSource(*source)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		flag.Usage()
		os.Exit(1)
	}

	a, err := app.New("downloader")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	ctx, cancel := a.Context()
	defer cancel()
	defer a.Shutdown(context.Background())

	client := download.NewClient(a.Config.Download, a.Logger)

	var jobs []pipeline.Job
	if chicago {
		ch, err := download.NewChicago(download.ChicagoConfig{
			BaseURL:   a.Config.Download.ChicagoBaseURL,
			OutDir:    a.Config.ChicagoRawDir(),
			StartYear: *startYear,
			EndYear:   *endYear,
		}, client, a.Logger)
		if err != nil {
			a.Logger.Error("downloader setup failed", slog.String("error", err.Error()))
			os.Exit(1)
		}
		jobs = append(jobs, chicagoJobs(ch, a.Telemetry.Metrics)...)
	}
	if dict {
		m := download.NewMDRM(download.MDRMConfig{
			URL:    a.Config.Download.MDRMURL,
			OutDir: a.Config.DictionaryDir(),
		}, client, a.Logger)
		jobs = append(jobs, dictionaryJob(m, a.Telemetry.Metrics))
	}
	if len(jobs) == 0 {
		a.Logger.Error("no quarters to fetch in the requested year range",
			slog.Int("start_year", *startYear),
			slog.Int("end_year", *endYear))
		os.Exit(1)
	}

	runner := pipeline.NewRunner(a.Config.Pipeline.Workers, a.Logger)
	_, stats := runner.Run(ctx, jobs)
	fmt.Println(stats.String())
}

// parseSource maps the -source flag to the fetchers it enables.
func parseSource(s string) (chicago, dictionary bool, err error) {
	switch strings.ToLower(s) {
	case "chicago":
		return true, false, nil
	case "dictionary":
		return false, true, nil
	case "all":
		return true, true, nil
	default:
		return false, false, fmt.Errorf("unknown source %q (want chicago, dictionary, or all)", s)
	}
}

// chicagoJobs builds one fetch job per quarter in the fetcher's range.
func chicagoJobs(ch *download.Chicago, metrics *infrastructure.PipelineMetrics) []pipeline.Job {
	quarters := ch.Quarters()
	jobs := make([]pipeline.Job, 0, len(quarters))
	for _, p := range quarters {
		jobs = append(jobs, pipeline.Job{
			ID: "chicago/" + p.String(),
			Run: func(ctx context.Context) (pipeline.Status, string, error) {
				res, err := ch.FetchQuarter(ctx, p)
				if err != nil {
					infrastructure.RecordDownload(ctx, metrics, "errored", 0)
					return pipeline.StatusErrored, "", err
				}
				if res.Skipped {
					return pipeline.StatusSkipped, res.Summary(), nil
				}
				infrastructure.RecordDownload(ctx, metrics, "fetched", res.SizeBytes)
				return pipeline.StatusProcessed, res.Summary(), nil
			},
		})
	}
	return jobs
}

// dictionaryJob fetches the MDRM archive and extracts the dictionary
// CSV consumed by the processor's dictionary build.
func dictionaryJob(m *download.MDRM, metrics *infrastructure.PipelineMetrics) pipeline.Job {
	return pipeline.Job{
		ID: "dictionary/mdrm",
		Run: func(ctx context.Context) (pipeline.Status, string, error) {
			res, err := m.Fetch(ctx)
			if err != nil {
				infrastructure.RecordDownload(ctx, metrics, "errored", 0)
				return pipeline.StatusErrored, "", err
			}
			if res.ZipSkipped && res.CSVSkipped {
				return pipeline.StatusSkipped, res.Summary(), nil
			}
			if !res.ZipSkipped {
				infrastructure.RecordDownload(ctx, metrics, "fetched", res.SizeBytes)
			}
			return pipeline.StatusProcessed, res.Summary(), nil
		},
	}
}
