// Package exporter writes corpus summary reports to files.
//
// Two formats are supported:
//
// CSV: one row per (category, quarter) with filer and variable counts,
// prefixed with a UTF-8 BOM for Excel compatibility.
//
// XLSX: a workbook with a per-category totals sheet plus one sheet per
// entity category holding the per-quarter rows.
package exporter
