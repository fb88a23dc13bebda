package download

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	apperrors "github.com/mplosser/data-call-report/internal/errors"
	"github.com/mplosser/data-call-report/internal/period"
)

// The Chicago Fed corpus runs from 1976Q1 through 2021Q2, when the
// structure data series stopped updating.
var (
	chicagoFirst = period.New(1976, 1)
	chicagoLast  = period.New(2021, 2)
)

// ChicagoConfig configures the quarterly archive fetcher.
type ChicagoConfig struct {
	// BaseURL is the Chicago Fed media directory holding the archives.
	BaseURL string

	// OutDir receives the archives and the checksum manifest.
	OutDir string

	// StartYear and EndYear bound the quarters to fetch, inclusive.
	// The range is clamped to the quarters the corpus actually carries.
	StartYear int
	EndYear   int
}

// Chicago fetches the quarterly call report archives. One remote file
// exists per quarter, named call[YY][MM]-zip.zip with MM the
// quarter-end month; archives are saved under the shorter
// call[YY][MM].zip. Quarters already on disk are skipped unless the
// manifest shows the file was truncated.
type Chicago struct {
	cfg      ChicagoConfig
	client   *Client
	manifest *Manifest
	logger   *slog.Logger
}

// NewChicago returns a fetcher writing into cfg.OutDir, creating the
// directory if needed and loading any manifest from a previous run.
func NewChicago(cfg ChicagoConfig, client *Client, logger *slog.Logger) (*Chicago, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if err := os.MkdirAll(cfg.OutDir, 0o755); err != nil {
		return nil, apperrors.NewSetup("create download directory", err)
	}
	manifest, err := LoadManifest(filepath.Join(cfg.OutDir, ManifestName))
	if err != nil {
		return nil, apperrors.NewSetup("load download manifest", err)
	}
	return &Chicago{
		cfg:      cfg,
		client:   client,
		manifest: manifest,
		logger:   logger.With(slog.String("component", "download")),
	}, nil
}

// Quarters lists the quarters to fetch in order, clamped to the
// published range. Empty when the requested years fall entirely
// outside it.
func (c *Chicago) Quarters() []period.Period {
	start := period.New(c.cfg.StartYear, 1)
	if start.Before(chicagoFirst) {
		start = chicagoFirst
	}
	end := period.New(c.cfg.EndYear, 4)
	if end.After(chicagoLast) {
		end = chicagoLast
	}
	return period.Range(start, end)
}

// FetchResult reports what fetching one quarter produced.
type FetchResult struct {
	Period    period.Period
	File      string
	Skipped   bool
	SizeBytes int64
}

// Summary returns a one-line description for logs and the run report.
func (r *FetchResult) Summary() string {
	if r.Skipped {
		return "already downloaded"
	}
	return fmt.Sprintf("%s (%.1f MB)", r.File, float64(r.SizeBytes)/(1<<20))
}

// FetchQuarter downloads the archive for one quarter. An archive on
// disk whose size matches its manifest entry is skipped; a mismatch
// means the previous transfer was cut short, and the quarter is
// fetched again. Quarters the server does not carry surface as
// download errors for the caller to collect.
func (c *Chicago) FetchQuarter(ctx context.Context, p period.Period) (*FetchResult, error) {
	base := quarterFileBase(p)
	name := base + ".zip"
	dest := filepath.Join(c.cfg.OutDir, name)

	if fi, err := os.Stat(dest); err == nil {
		entry, ok := c.manifest.Entry(name)
		if !ok || entry.SizeBytes == fi.Size() {
			return &FetchResult{Period: p, File: name, Skipped: true, SizeBytes: fi.Size()}, nil
		}
		c.logger.Warn("archive size differs from manifest, downloading again",
			slog.String("file", name),
			slog.Int64("size_bytes", fi.Size()),
			slog.Int64("manifest_bytes", entry.SizeBytes))
	}

	url := c.cfg.BaseURL + base + "-zip.zip"
	size, sum, err := c.client.Fetch(ctx, url, dest)
	if err != nil {
		return nil, apperrors.NewDownload(url, err)
	}

	if err := c.manifest.Record(name, ManifestEntry{
		URL:          url,
		SizeBytes:    size,
		Checksum:     sum,
		DownloadedAt: time.Now().UTC(),
	}); err != nil {
		c.logger.Warn("failed to update download manifest",
			slog.String("file", name),
			slog.String("error", err.Error()))
	}
	return &FetchResult{Period: p, File: name, SizeBytes: size}, nil
}

// quarterFileBase returns the remote file stem for a quarter, two-digit
// year then quarter-end month: call8503 for 1985Q1.
func quarterFileBase(p period.Period) string {
	return fmt.Sprintf("call%02d%02d", p.Year%100, p.Quarter*3)
}
