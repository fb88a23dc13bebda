// Package summary reports on the canonical parquet corpus: per-quarter
// filer and variable counts by entity category, coverage gaps, and an
// optional all-null column check.
package summary

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"runtime"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/mplosser/data-call-report/internal/entity"
	apperrors "github.com/mplosser/data-call-report/internal/errors"
	"github.com/mplosser/data-call-report/internal/period"
	"github.com/mplosser/data-call-report/internal/store"
	"github.com/mplosser/data-call-report/internal/table"
)

// metadataColumns are the canonical key columns, excluded from variable
// counts.
var metadataColumns = map[string]bool{
	"REPORTING_PERIOD": true,
	"RSSD_ID":          true,
}

// Options control a corpus summary run.
type Options struct {
	// Start and End bound the reporting period date; zero means open.
	Start time.Time
	End   time.Time
	// CheckNullColumns additionally loads every column to count the
	// all-missing ones. Much slower than the metadata-only scan.
	CheckNullColumns bool
	// Workers bounds the parallel scan; non-positive means NumCPU.
	Workers int
}

// FileSummary describes one partition of the corpus.
type FileSummary struct {
	Category         string
	Period           period.Period
	Date             time.Time
	Filers           int
	Variables        int
	NonNullVariables int
	NullColumns      int
	SizeBytes        int64
	File             string
}

// SizeMB returns the artifact size in megabytes.
func (f FileSummary) SizeMB() float64 {
	return float64(f.SizeBytes) / (1 << 20)
}

// Report is the outcome of one summary run. Files is sorted by category
// then period; Gaps maps a category to the quarters missing inside its
// coverage.
type Report struct {
	Root        string
	Scanned     int
	Files       []FileSummary
	Gaps        map[string][]period.Period
	NullChecked bool
}

// Summarizer scans the corpus and builds reports.
type Summarizer struct {
	store  *store.Store
	logger *slog.Logger
}

// New creates a summarizer over the given corpus.
func New(st *store.Store, logger *slog.Logger) *Summarizer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Summarizer{
		store:  st,
		logger: logger.With(slog.String("component", "summary")),
	}
}

// Summarize scans every partition and builds the report. Partitions
// that cannot be read are logged and left out; an empty corpus is a
// setup error.
func (s *Summarizer) Summarize(ctx context.Context, opts Options) (*Report, error) {
	parts, err := s.store.Scan()
	if err != nil {
		return nil, err
	}
	parts = knownCategories(parts)
	if len(parts) == 0 {
		return nil, apperrors.NewSetup(fmt.Sprintf("no partitions found in %s", s.store.Root()), nil)
	}

	workers := opts.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}

	s.logger.Info("summarizing corpus",
		slog.String("root", s.store.Root()),
		slog.Int("partitions", len(parts)),
		slog.Int("workers", workers),
		slog.Bool("check_null_columns", opts.CheckNullColumns))

	summaries := make([]*FileSummary, len(parts))
	var g errgroup.Group
	g.SetLimit(workers)
	for i, part := range parts {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			fs, err := s.summarizeFile(ctx, part, opts.CheckNullColumns)
			if err != nil {
				s.logger.Error("failed to summarize partition",
					slog.String("path", part.Path),
					slog.String("error", err.Error()))
				return nil
			}
			summaries[i] = fs
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	report := &Report{
		Root:        s.store.Root(),
		Scanned:     len(parts),
		NullChecked: opts.CheckNullColumns,
	}
	for _, fs := range summaries {
		if fs == nil {
			continue
		}
		if !fs.Date.IsZero() {
			if !opts.Start.IsZero() && fs.Date.Before(opts.Start) {
				continue
			}
			if !opts.End.IsZero() && fs.Date.After(opts.End) {
				continue
			}
		}
		report.Files = append(report.Files, *fs)
	}
	sort.Slice(report.Files, func(i, j int) bool {
		if report.Files[i].Category != report.Files[j].Category {
			return report.Files[i].Category < report.Files[j].Category
		}
		return report.Files[i].Period.Before(report.Files[j].Period)
	})
	report.Gaps = detectGaps(report.Files)

	s.logger.Info("corpus summarized",
		slog.Int("files", len(report.Files)),
		slog.Int("categories_with_gaps", len(report.Gaps)))
	return report, nil
}

// summarizeFile reads one partition. The scan stays metadata-only plus
// two key columns unless the null check asks for everything.
func (s *Summarizer) summarizeFile(ctx context.Context, part store.Partition, checkNull bool) (*FileSummary, error) {
	md, err := store.ReadMetadata(part.Path)
	if err != nil {
		return nil, err
	}

	fs := &FileSummary{
		Category:  part.Category,
		Period:    part.Period,
		SizeBytes: md.SizeBytes,
		File:      filepath.Base(part.Path),
	}
	for _, col := range md.Columns {
		if !metadataColumns[col.Name] {
			fs.Variables++
		}
	}
	fs.NonNullVariables = fs.Variables

	keys, err := store.ReadColumns(ctx, part.Path, []string{"REPORTING_PERIOD", "RSSD_ID"})
	if err != nil {
		return nil, err
	}
	if dates, ok := keys.Column("REPORTING_PERIOD"); ok && len(dates) > 0 && !dates[0].IsMissing() {
		fs.Date = dates[0].Date()
	}
	if ids, ok := keys.Column("RSSD_ID"); ok {
		fs.Filers = distinctCount(ids)
	}

	if checkNull {
		full, err := store.ReadParquet(ctx, part.Path)
		if err != nil {
			return nil, err
		}
		for _, name := range full.Columns() {
			if metadataColumns[name] {
				continue
			}
			values, _ := full.Column(name)
			if allMissing(values) {
				fs.NullColumns++
			}
		}
		fs.NonNullVariables = fs.Variables - fs.NullColumns
	}
	return fs, nil
}

// knownCategories keeps the partitions belonging to an entity category,
// dropping anything else living under the corpus root.
func knownCategories(parts []store.Partition) []store.Partition {
	known := make(map[string]bool)
	for _, category := range entity.Categories() {
		known[string(category)] = true
	}
	var kept []store.Partition
	for _, part := range parts {
		if known[part.Category] {
			kept = append(kept, part)
		}
	}
	return kept
}

// detectGaps finds the quarters missing inside each category's
// coverage. The end of a series is never a gap; each hole records the
// first expected quarter after the pair that straddles it.
func detectGaps(files []FileSummary) map[string][]period.Period {
	byCategory := make(map[string][]period.Period)
	for _, f := range files {
		byCategory[f.Category] = append(byCategory[f.Category], f.Period)
	}

	gaps := make(map[string][]period.Period)
	for category, periods := range byCategory {
		if len(periods) < 2 {
			continue
		}
		sort.Slice(periods, func(i, j int) bool { return periods[i].Before(periods[j]) })
		var missing []period.Period
		for i := 0; i < len(periods)-1; i++ {
			expected := periods[i].Next()
			if periods[i+1] != expected {
				missing = append(missing, expected)
			}
		}
		if len(missing) > 0 {
			gaps[category] = missing
		}
	}
	return gaps
}

// distinctCount counts distinct non-missing values.
func distinctCount(values []table.Value) int {
	seen := make(map[table.Value]struct{}, len(values))
	for _, v := range values {
		if v.IsMissing() {
			continue
		}
		seen[v] = struct{}{}
	}
	return len(seen)
}

func allMissing(values []table.Value) bool {
	for _, v := range values {
		if !v.IsMissing() {
			return false
		}
	}
	return true
}
