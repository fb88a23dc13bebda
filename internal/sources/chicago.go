package sources

import (
	"archive/zip"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/mplosser/data-call-report/internal/dictionary"
	"github.com/mplosser/data-call-report/internal/entity"
	apperrors "github.com/mplosser/data-call-report/internal/errors"
	"github.com/mplosser/data-call-report/internal/period"
	"github.com/mplosser/data-call-report/internal/store"
	"github.com/mplosser/data-call-report/internal/table"
	"github.com/mplosser/data-call-report/internal/xport"
)

// commercialCutoff is the last quarter the Chicago Fed corpus carries a
// usable commercial bank series. Later quarters hold only a reduced
// structure extract, so FFIEC_031_041 output past this point comes from
// the FFIEC CDR bulk files instead.
var commercialCutoff = period.New(2010, 4)

// ChicagoConfig configures the Chicago Fed reader.
type ChicagoConfig struct {
	// RawDir holds the downloaded quarterly archives or already
	// extracted transport files.
	RawDir string

	// StartDate and EndDate bound discovery on the reporting period
	// date. Zero values leave the corresponding side open.
	StartDate time.Time
	EndDate   time.Time

	// Force reprocesses quarters whose output partitions already exist.
	Force bool
}

// Chicago reads Chicago Fed quarterly call report archives: one SAS
// transport file per quarter covering all entity categories, split by
// the RSSD9331 classifier and written as one partition per category.
type Chicago struct {
	cfg          ChicagoConfig
	store        *store.Store
	descriptions map[string]string
	reader       *xport.Reader
	logger       *slog.Logger
}

// NewChicago returns a reader writing to st. Variable descriptions from
// dict are attached to written partitions; a nil dict means none.
func NewChicago(cfg ChicagoConfig, st *store.Store, dict *dictionary.Dictionary, logger *slog.Logger) *Chicago {
	if dict == nil {
		dict = dictionary.Empty()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Chicago{
		cfg:          cfg,
		store:        st,
		descriptions: dict.Descriptions(),
		reader:       xport.NewReader(),
		logger:       logger.With(slog.String("component", "chicago")),
	}
}

// Discover extracts any quarterly ZIP archives in the raw directory and
// lists the transport files whose filename yields a reporting period
// inside the configured date bounds, sorted by period. Files with no
// recognizable period are ignored. Finding nothing to process is a
// setup error.
func (c *Chicago) Discover(ctx context.Context) ([]File, error) {
	if err := c.extractArchives(ctx); err != nil {
		return nil, err
	}

	patterns := []string{
		filepath.Join(c.cfg.RawDir, "*.xpt"),
		filepath.Join(c.cfg.RawDir, "extracted", "*.xpt"),
	}
	var paths []string
	for _, pattern := range patterns {
		matches, err := filepath.Glob(pattern)
		if err != nil {
			return nil, apperrors.NewSetup("list transport files", err)
		}
		paths = append(paths, matches...)
	}
	if len(paths) == 0 {
		return nil, apperrors.NewSetup(fmt.Sprintf("no transport files found in %s", c.cfg.RawDir), nil)
	}

	var files []File
	for _, path := range paths {
		p, ok := period.FromChicagoFilename(filepath.Base(path))
		if !ok {
			continue
		}
		if !p.InBounds(c.cfg.StartDate, c.cfg.EndDate) {
			continue
		}
		files = append(files, File{Path: path, Period: p})
	}
	if len(files) == 0 {
		return nil, apperrors.NewSetup("no transport files in the requested date range", nil)
	}

	sort.Slice(files, func(i, j int) bool {
		if files[i].Period != files[j].Period {
			return files[i].Period.Before(files[j].Period)
		}
		return files[i].Path < files[j].Path
	})
	return files, nil
}

// ProcessFile reads one quarterly transport file, splits it by entity
// category and writes the category partitions. A quarter whose output
// partitions all exist is skipped unless Force is set. A file without
// the classifier column produces no output but is not an error.
func (c *Chicago) ProcessFile(ctx context.Context, f File) (*QuarterResult, error) {
	res := &QuarterResult{Period: f.Period, Rows: make(map[entity.Category]int)}

	if !c.cfg.Force && c.allPartitionsExist(f.Period) {
		res.Skipped = true
		return res, nil
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	tbl, err := c.reader.ReadFile(f.Path)
	if err != nil {
		return nil, apperrors.NewParse("chicago", f.Path, err)
	}

	tbl.SetConst("REPORTING_PERIOD", table.Date(f.Period.EndDate()))
	if err := resolveIdentifier(tbl); err != nil {
		return nil, apperrors.NewParse("chicago", f.Path, err)
	}
	if err := tbl.UppercaseColumns(); err != nil {
		return nil, apperrors.NewParse("chicago", f.Path, err)
	}

	classified, ok := entity.Classify(tbl)
	if !ok {
		c.logger.Warn("no classifier column, nothing to categorize",
			slog.String("file", filepath.Base(f.Path)),
			slog.String("period", f.Period.String()))
		return res, nil
	}
	res.Unmatched = classified.Unmatched

	for _, category := range entity.Categories() {
		if category == entity.CategoryFFIEC031041 && f.Period.After(commercialCutoff) {
			continue
		}
		part, ok := classified.Tables[category]
		if !ok {
			continue
		}
		part.ReorderFront("REPORTING_PERIOD", "RSSD_ID")
		if err := c.store.WritePartition(string(category), f.Period, part, c.descriptions); err != nil {
			return nil, err
		}
		res.Rows[category] = part.NumRows()
	}
	return res, nil
}

// allPartitionsExist reports whether every category partition the
// quarter can produce is already present.
func (c *Chicago) allPartitionsExist(p period.Period) bool {
	for _, category := range entity.Categories() {
		if category == entity.CategoryFFIEC031041 && p.After(commercialCutoff) {
			continue
		}
		if !c.store.PartitionExists(string(category), p) {
			return false
		}
	}
	return true
}

// resolveIdentifier fills the RSSD_ID column from the best available
// source: RSSD9001 and IDRSSD take precedence over an existing RSSD_ID
// column, then any other RSSD-named column except the reporting date
// fields. A table with no identifier source is left unchanged.
func resolveIdentifier(tbl *table.Table) error {
	for _, name := range []string{"RSSD9001", "IDRSSD"} {
		if values, ok := tbl.Column(name); ok {
			return tbl.SetColumn("RSSD_ID", append([]table.Value(nil), values...))
		}
	}
	if tbl.HasColumn("RSSD_ID") {
		return nil
	}
	for _, name := range tbl.Columns() {
		upper := strings.ToUpper(name)
		if upper == "RSSD9999" || upper == "RSSDDATE" {
			continue
		}
		if strings.Contains(upper, "RSSD") {
			values, _ := tbl.Column(name)
			return tbl.SetColumn("RSSD_ID", append([]table.Value(nil), values...))
		}
	}
	return nil
}

// extractArchives extracts the first transport member of each quarterly
// ZIP archive into <raw>/extracted/, skipping members already present.
// Extraction failures are logged and do not stop discovery.
func (c *Chicago) extractArchives(ctx context.Context) error {
	archives, err := filepath.Glob(filepath.Join(c.cfg.RawDir, "*.zip"))
	if err != nil {
		return apperrors.NewSetup("list quarterly archives", err)
	}
	if len(archives) == 0 {
		return nil
	}

	extractedDir := filepath.Join(c.cfg.RawDir, "extracted")
	if err := os.MkdirAll(extractedDir, 0o755); err != nil {
		return apperrors.NewSetup("create extraction directory", err)
	}
	c.logger.Info("extracting quarterly archives",
		slog.Int("count", len(archives)),
		slog.String("dir", extractedDir))

	for _, archive := range archives {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := extractFirstTransport(archive, extractedDir); err != nil {
			c.logger.Warn("failed to extract archive",
				slog.String("archive", filepath.Base(archive)),
				slog.String("error", err.Error()))
		}
	}
	return nil
}

// extractFirstTransport copies the first .xpt member of the archive
// into destDir, flattening any member path. Already extracted members
// are left alone.
func extractFirstTransport(archivePath, destDir string) error {
	zr, err := zip.OpenReader(archivePath)
	if err != nil {
		return err
	}
	defer zr.Close()

	for _, member := range zr.File {
		if !strings.HasSuffix(strings.ToLower(member.Name), ".xpt") {
			continue
		}
		dest := filepath.Join(destDir, filepath.Base(member.Name))
		if _, err := os.Stat(dest); err == nil {
			return nil
		}
		return copyMember(member, dest)
	}
	return fmt.Errorf("no transport member in %s", filepath.Base(archivePath))
}

// copyMember extracts one archive member via a temp file and rename so
// an interrupted extraction never leaves a partial transport file.
func copyMember(member *zip.File, dest string) error {
	src, err := member.Open()
	if err != nil {
		return err
	}
	defer src.Close()

	tmp, err := os.CreateTemp(filepath.Dir(dest), "."+filepath.Base(dest)+".tmp-")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if _, err := io.Copy(tmp, src); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), dest)
}
