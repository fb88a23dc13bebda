package download

import (
	"archive/zip"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	apperrors "github.com/mplosser/data-call-report/internal/errors"
)

// Fixed artifact names inside the dictionary directory.
const (
	mdrmZipName = "MDRM.zip"
	mdrmCSVName = "MDRM.csv"
)

// MDRMConfig configures the data dictionary fetcher.
type MDRMConfig struct {
	// URL is the Federal Reserve MDRM archive endpoint.
	URL string

	// OutDir receives MDRM.zip and the extracted MDRM.csv.
	OutDir string
}

// MDRM fetches the Micro Data Reference Manual archive and extracts
// the dictionary CSV consumed by the dictionary build.
type MDRM struct {
	cfg    MDRMConfig
	client *Client
	logger *slog.Logger
}

// NewMDRM returns a dictionary fetcher.
func NewMDRM(cfg MDRMConfig, client *Client, logger *slog.Logger) *MDRM {
	if logger == nil {
		logger = slog.Default()
	}
	return &MDRM{cfg: cfg, client: client, logger: logger.With(slog.String("component", "download"))}
}

// MDRMResult reports which artifacts the fetch refreshed and which
// were already current.
type MDRMResult struct {
	ZipPath    string
	CSVPath    string
	ZipSkipped bool
	CSVSkipped bool
	SizeBytes  int64
}

// Summary returns a one-line description for logs and the run report.
func (r *MDRMResult) Summary() string {
	if r.ZipSkipped && r.CSVSkipped {
		return "dictionary current"
	}
	return fmt.Sprintf("%s (%.1f MB)", filepath.Base(r.CSVPath), float64(r.SizeBytes)/(1<<20))
}

// Fetch downloads the MDRM archive unless it is already on disk, then
// extracts its first CSV member as MDRM.csv. The CSV is extracted
// again whenever the archive is newer than the extracted copy.
func (m *MDRM) Fetch(ctx context.Context) (*MDRMResult, error) {
	if err := os.MkdirAll(m.cfg.OutDir, 0o755); err != nil {
		return nil, apperrors.NewSetup("create dictionary directory", err)
	}
	res := &MDRMResult{
		ZipPath: filepath.Join(m.cfg.OutDir, mdrmZipName),
		CSVPath: filepath.Join(m.cfg.OutDir, mdrmCSVName),
	}

	if _, err := os.Stat(res.ZipPath); err == nil {
		res.ZipSkipped = true
		m.logger.Info("using existing dictionary archive", slog.String("path", res.ZipPath))
	} else {
		m.logger.Info("downloading dictionary archive", slog.String("url", m.cfg.URL))
		if _, _, err := m.client.Fetch(ctx, m.cfg.URL, res.ZipPath); err != nil {
			return nil, apperrors.NewDownload(m.cfg.URL, err)
		}
	}

	if extractedCurrent(res.CSVPath, res.ZipPath) {
		res.CSVSkipped = true
	} else if err := extractFirstCSV(res.ZipPath, res.CSVPath); err != nil {
		return nil, apperrors.NewParse("mdrm", res.ZipPath, err)
	}

	fi, err := os.Stat(res.CSVPath)
	if err != nil {
		return nil, apperrors.NewParse("mdrm", res.CSVPath, err)
	}
	res.SizeBytes = fi.Size()
	return res, nil
}

// extractedCurrent reports whether the extracted CSV exists and is at
// least as new as the archive.
func extractedCurrent(csvPath, zipPath string) bool {
	csvInfo, err := os.Stat(csvPath)
	if err != nil {
		return false
	}
	zipInfo, err := os.Stat(zipPath)
	if err != nil {
		return false
	}
	return !zipInfo.ModTime().After(csvInfo.ModTime())
}

// extractFirstCSV copies the first CSV member of the archive to dest
// via a temp file and rename. The member may sit in a subdirectory.
func extractFirstCSV(archivePath, dest string) error {
	zr, err := zip.OpenReader(archivePath)
	if err != nil {
		return err
	}
	defer zr.Close()

	for _, member := range zr.File {
		if !strings.HasSuffix(strings.ToLower(member.Name), ".csv") {
			continue
		}
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
	return fmt.Errorf("no CSV member in %s", filepath.Base(archivePath))
}
