// Command cleanup reclaims disk space from pipeline data: extracted
// transport files, raw downloads, or the processed corpus. With
// -dry-run it only reports what would be deleted.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"

	"github.com/mplosser/data-call-report/internal/app"
	"github.com/mplosser/data-call-report/internal/files"
)

func main() {
	extracted := flag.Bool("extracted", false, "delete extracted transport files, keeping the downloaded archives")
	raw := flag.Bool("raw", false, "delete downloaded archives, manifests and extraction trees")
	processed := flag.Bool("processed", false, "delete the processed parquet corpus")
	all := flag.Bool("all", false, "delete raw and processed data")
	dryRun := flag.Bool("dry-run", false, "report what would be deleted without deleting anything")
	flag.Parse()

	targets := targetsFromFlags(*extracted, *raw, *processed, *all, *dryRun)
	if !targets.Any() {
		fmt.Fprintln(os.Stderr, "Error: select at least one cleanup target: -extracted, -raw, -processed, or -all")
		flag.Usage()
		os.Exit(1)
	}

	a, err := app.New("cleanup")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	defer a.Shutdown(context.Background())

	cleaner := files.NewCleaner(a.Config.RawDir(), a.Config.OutputDir(), a.Logger)
	report, err := cleaner.Run(targets)
	if err != nil {
		a.Logger.Error("cleanup failed", slog.String("error", err.Error()))
		os.Exit(1)
	}
	report.Render(os.Stdout)
}

// targetsFromFlags maps the command line to cleanup targets. -all
// selects raw and processed, which together subsume extracted.
func targetsFromFlags(extracted, raw, processed, all, dryRun bool) files.Targets {
	return files.Targets{
		Extracted: extracted,
		Raw:       raw || all,
		Processed: processed || all,
		DryRun:    dryRun,
	}
}
