package files

import (
	"log/slog"
	"os"
	"path/filepath"

	"github.com/mplosser/data-call-report/internal/download"
	"github.com/mplosser/data-call-report/internal/entity"
	apperrors "github.com/mplosser/data-call-report/internal/errors"
)

// Targets selects what a cleanup run removes.
type Targets struct {
	// Extracted removes transport files under the extraction
	// directories while keeping the archives they came from.
	Extracted bool

	// Raw removes the downloaded archives, their checksum manifests
	// and the extraction directories.
	Raw bool

	// Processed removes the partitioned parquet corpus.
	Processed bool

	// DryRun reports what would be removed without deleting anything.
	DryRun bool
}

// Any reports whether at least one deletion target is selected.
func (t Targets) Any() bool {
	return t.Extracted || t.Raw || t.Processed
}

// Cleaner removes pipeline data files.
type Cleaner struct {
	rawDir       string
	processedDir string
	logger       *slog.Logger
}

// NewCleaner returns a cleaner over the raw download area and the
// processed corpus root. A nil logger falls back to slog.Default.
func NewCleaner(rawDir, processedDir string, logger *slog.Logger) *Cleaner {
	if logger == nil {
		logger = slog.Default()
	}
	return &Cleaner{
		rawDir:       rawDir,
		processedDir: processedDir,
		logger:       logger.With(slog.String("component", "cleanup")),
	}
}

// Run executes the selected targets and reports what was removed.
// Selecting no target is a setup error. Raw cleanup subsumes the
// extracted target, so when both are selected only raw runs. Files
// that cannot be deleted are logged and left out of the counts.
func (c *Cleaner) Run(targets Targets) (*Report, error) {
	if !targets.Any() {
		return nil, apperrors.NewSetup("no cleanup target selected", nil)
	}
	if targets.Raw && targets.Extracted {
		c.logger.Info("raw cleanup includes extracted files, skipping extracted target")
		targets.Extracted = false
	}

	report := &Report{DryRun: targets.DryRun}
	if targets.Extracted {
		report.Targets = append(report.Targets, c.cleanExtracted(targets.DryRun))
	}
	if targets.Raw {
		report.Targets = append(report.Targets, c.cleanRaw(targets.DryRun))
	}
	if targets.Processed {
		report.Targets = append(report.Targets, c.cleanProcessed(targets.DryRun))
	}

	for _, t := range report.Targets {
		c.logger.Info("cleanup target finished",
			slog.String("target", t.Name),
			slog.Int("files", t.Files),
			slog.Int64("bytes", t.Bytes),
			slog.Bool("dry_run", targets.DryRun))
	}
	return report, nil
}

// cleanExtracted removes the transport files inside each extraction
// directory and drops directories this leaves empty.
func (c *Cleaner) cleanExtracted(dryRun bool) TargetReport {
	report := TargetReport{Name: "extracted"}
	for _, dir := range extractionDirs(c.rawDir) {
		for _, f := range listBySuffix(dir, ".xpt") {
			c.remove(&report, f, dryRun)
		}
		if !dryRun {
			removeIfEmpty(dir)
		}
	}
	return report
}

// cleanRaw removes the downloaded archives with their checksum
// manifests and deletes the extraction trees wholesale. Bulk files
// that were placed by hand rather than downloaded are left alone.
func (c *Cleaner) cleanRaw(dryRun bool) TargetReport {
	report := TargetReport{Name: "raw"}
	for _, dir := range archiveDirs(c.rawDir) {
		for _, f := range listBySuffix(dir, ".zip") {
			c.remove(&report, f, dryRun)
		}
		if f, ok := statFile(filepath.Join(dir, download.ManifestName)); ok {
			c.remove(&report, f, dryRun)
		}
	}

	for _, dir := range extractionDirs(c.rawDir) {
		count, size := treeSize(dir)
		if !dryRun {
			if err := os.RemoveAll(dir); err != nil {
				c.logger.Warn("could not delete directory",
					slog.String("path", dir),
					slog.String("error", err.Error()))
				continue
			}
		}
		report.Files += count
		report.Bytes += size
		report.Removed = append(report.Removed, FileInfo{Path: dir + string(os.PathSeparator), Size: size})
	}
	return report
}

// cleanProcessed removes every parquet partition under the corpus root
// and drops category directories this leaves empty.
func (c *Cleaner) cleanProcessed(dryRun bool) TargetReport {
	report := TargetReport{Name: "processed"}
	for _, f := range findBySuffix(c.processedDir, ".parquet") {
		c.remove(&report, f, dryRun)
	}
	if !dryRun {
		for _, category := range entity.Categories() {
			removeIfEmpty(filepath.Join(c.processedDir, string(category)))
		}
	}
	return report
}

// remove deletes one file and accounts for it. Dry runs only account.
func (c *Cleaner) remove(report *TargetReport, f FileInfo, dryRun bool) {
	if !dryRun {
		if err := os.Remove(f.Path); err != nil {
			c.logger.Warn("could not delete file",
				slog.String("path", f.Path),
				slog.String("error", err.Error()))
			return
		}
	}
	report.Files++
	report.Bytes += f.Size
	report.Removed = append(report.Removed, f)
}

// removeIfEmpty removes dir when nothing is left inside it.
func removeIfEmpty(dir string) {
	entries, err := os.ReadDir(dir)
	if err != nil || len(entries) > 0 {
		return
	}
	os.Remove(dir)
}
