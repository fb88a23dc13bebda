package exporter

import (
	"encoding/csv"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"

	"github.com/mplosser/data-call-report/internal/summary"
)

// csvHeader is the column layout of the summary CSV.
var csvHeader = []string{
	"Category", "Quarter", "Date", "Filers", "Variables",
	"NonNullVariables", "NullColumns", "SizeMB", "File",
}

// Writer exports summary reports to CSV and XLSX files.
type Writer struct {
	logger *slog.Logger
}

// NewWriter creates a report writer.
func NewWriter(logger *slog.Logger) *Writer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Writer{logger: logger.With(slog.String("component", "exporter"))}
}

// WriteCSV writes one row per summarized partition. The file starts
// with a UTF-8 BOM so Excel opens it cleanly.
func (w *Writer) WriteCSV(path string, report *summary.Report) error {
	w.logger.Info("writing summary CSV",
		slog.String("path", path),
		slog.Int("rows", len(report.Files)))

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create directory: %w", err)
	}
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create csv file: %w", err)
	}
	defer file.Close()

	if _, err := file.Write([]byte{0xEF, 0xBB, 0xBF}); err != nil {
		return fmt.Errorf("write BOM: %w", err)
	}

	writer := csv.NewWriter(file)
	if err := writer.Write(csvHeader); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	for _, f := range report.Files {
		if err := writer.Write(csvRow(f)); err != nil {
			return fmt.Errorf("write row %s/%s: %w", f.Category, f.Period, err)
		}
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		return fmt.Errorf("flush csv: %w", err)
	}
	return nil
}

func csvRow(f summary.FileSummary) []string {
	date := ""
	if !f.Date.IsZero() {
		date = f.Date.Format("2006-01-02")
	}
	return []string{
		f.Category,
		f.Period.String(),
		date,
		strconv.Itoa(f.Filers),
		strconv.Itoa(f.Variables),
		strconv.Itoa(f.NonNullVariables),
		strconv.Itoa(f.NullColumns),
		fmt.Sprintf("%.1f", f.SizeMB()),
		f.File,
	}
}
