// Command summarizer reports on the processed corpus: filers and
// variables per quarter and category, coverage gaps, and totals. The
// per-quarter rows can additionally be exported as CSV or as an Excel
// workbook.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/mplosser/data-call-report/internal/app"
	"github.com/mplosser/data-call-report/internal/exporter"
	"github.com/mplosser/data-call-report/internal/store"
	"github.com/mplosser/data-call-report/internal/summary"
)

func main() {
	startDate := flag.String("start-date", "", "only periods ending on or after this date (YYYY-MM-DD)")
	endDate := flag.String("end-date", "", "only periods ending on or before this date (YYYY-MM-DD)")
	checkNull := flag.Bool("check-null-columns", false, "count all-missing columns (loads full data, much slower)")
	workers := flag.Int("workers", 0, "parallel workers (0 uses the configured count)")
	csvPath := flag.String("csv", "", "write the per-quarter rows to this CSV file")
	xlsxPath := flag.String("xlsx", "", "write the summary workbook to this Excel file")
	flag.Parse()

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

	a, err := app.New("summarizer")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	ctx, cancel := a.Context()
	defer cancel()
	defer a.Shutdown(context.Background())

	poolWidth := *workers
	if poolWidth <= 0 {
		poolWidth = a.Config.Pipeline.Workers
	}

	s := summary.New(store.New(a.Config.OutputDir()), a.Logger)
	report, err := s.Summarize(ctx, summary.Options{
		Start:            start,
		End:              end,
		CheckNullColumns: *checkNull,
		Workers:          poolWidth,
	})
	if err != nil {
		a.Logger.Error("summary failed", slog.String("error", err.Error()))
		os.Exit(1)
	}
	report.Render(os.Stdout)

	w := exporter.NewWriter(a.Logger)
	if *csvPath != "" {
		if err := w.WriteCSV(*csvPath, report); err != nil {
			a.Logger.Error("CSV export failed", slog.String("error", err.Error()))
			os.Exit(1)
		}
	}
	if *xlsxPath != "" {
		if err := w.WriteWorkbook(*xlsxPath, report); err != nil {
			a.Logger.Error("workbook export failed", slog.String("error", err.Error()))
			os.Exit(1)
		}
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
