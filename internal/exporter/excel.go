package exporter

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/xuri/excelize/v2"

	"github.com/mplosser/data-call-report/internal/entity"
	"github.com/mplosser/data-call-report/internal/summary"
)

// summarySheet is the totals sheet every workbook starts with.
const summarySheet = "Summary"

// WriteWorkbook writes the report as an XLSX workbook: a Summary sheet
// with per-category totals and one sheet per category holding the
// per-quarter rows.
func (w *Writer) WriteWorkbook(path string, report *summary.Report) error {
	w.logger.Info("writing summary workbook",
		slog.String("path", path),
		slog.Int("rows", len(report.Files)))

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create directory: %w", err)
	}

	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", summarySheet); err != nil {
		return fmt.Errorf("rename summary sheet: %w", err)
	}
	headerStyle, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return fmt.Errorf("create header style: %w", err)
	}

	if err := writeSummarySheet(f, report, headerStyle); err != nil {
		return err
	}
	for _, category := range entity.Categories() {
		if err := writeCategorySheet(f, report, string(category), headerStyle); err != nil {
			return err
		}
	}

	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("save workbook: %w", err)
	}
	return nil
}

func writeSummarySheet(f *excelize.File, report *summary.Report, headerStyle int) error {
	header := []any{"Category", "Quarters", "Filers (avg)", "Variables (avg)", "Size (MB)"}
	if err := setRow(f, summarySheet, 1, header); err != nil {
		return err
	}
	if err := f.SetCellStyle(summarySheet, "A1", "E1", headerStyle); err != nil {
		return fmt.Errorf("style summary header: %w", err)
	}

	row := 2
	var totalMB float64
	for _, category := range entity.Categories() {
		var quarters, filers, vars int
		var sizeMB float64
		for _, file := range report.Files {
			if file.Category != string(category) {
				continue
			}
			quarters++
			filers += file.Filers
			vars += file.Variables
			sizeMB += file.SizeMB()
		}
		totalMB += sizeMB
		if quarters == 0 {
			continue
		}
		values := []any{
			string(category),
			quarters,
			float64(filers) / float64(quarters),
			float64(vars) / float64(quarters),
			sizeMB,
		}
		if err := setRow(f, summarySheet, row, values); err != nil {
			return err
		}
		row++
	}

	total := []any{"Total", len(report.Files), "", "", totalMB}
	return setRow(f, summarySheet, row, total)
}

func writeCategorySheet(f *excelize.File, report *summary.Report, category string, headerStyle int) error {
	var files []summary.FileSummary
	for _, file := range report.Files {
		if file.Category == category {
			files = append(files, file)
		}
	}
	if len(files) == 0 {
		return nil
	}

	if _, err := f.NewSheet(category); err != nil {
		return fmt.Errorf("create sheet %s: %w", category, err)
	}
	header := []any{"Quarter", "Date", "Filers", "Variables", "NonNullVariables", "NullColumns", "SizeMB", "File"}
	if err := setRow(f, category, 1, header); err != nil {
		return err
	}
	if err := f.SetCellStyle(category, "A1", "H1", headerStyle); err != nil {
		return fmt.Errorf("style %s header: %w", category, err)
	}

	for i, file := range files {
		date := ""
		if !file.Date.IsZero() {
			date = file.Date.Format("2006-01-02")
		}
		values := []any{
			file.Period.String(),
			date,
			file.Filers,
			file.Variables,
			file.NonNullVariables,
			file.NullColumns,
			file.SizeMB(),
			file.File,
		}
		if err := setRow(f, category, i+2, values); err != nil {
			return err
		}
	}
	return nil
}

// setRow writes values left to right starting at column A of a row.
func setRow(f *excelize.File, sheet string, row int, values []any) error {
	for i, v := range values {
		cell, err := excelize.CoordinatesToCellName(i+1, row)
		if err != nil {
			return fmt.Errorf("cell name: %w", err)
		}
		if err := f.SetCellValue(sheet, cell, v); err != nil {
			return fmt.Errorf("set %s!%s: %w", sheet, cell, err)
		}
	}
	return nil
}
