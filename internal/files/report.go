package files

import (
	"fmt"
	"io"
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// TargetReport describes what one cleanup target removed, or would
// have removed in a dry run.
type TargetReport struct {
	Name  string
	Files int
	Bytes int64

	// Removed lists what was accounted: individual files, or whole
	// directory trees marked by a trailing separator.
	Removed []FileInfo
}

// SizeMB returns the target's size in megabytes.
func (t *TargetReport) SizeMB() float64 {
	return float64(t.Bytes) / (1 << 20)
}

// Report sums the per-target results of one cleanup run.
type Report struct {
	DryRun  bool
	Targets []TargetReport
}

// TotalFiles returns the file count across all targets.
func (r *Report) TotalFiles() int {
	var n int
	for _, t := range r.Targets {
		n += t.Files
	}
	return n
}

// TotalBytes returns the byte count across all targets.
func (r *Report) TotalBytes() int64 {
	var n int64
	for _, t := range r.Targets {
		n += t.Bytes
	}
	return n
}

// listedFiles caps the dry-run listing per target.
const listedFiles = 10

// Render writes the human readable cleanup report.
func (r *Report) Render(w io.Writer) {
	p := message.NewPrinter(language.English)
	rule := strings.Repeat("=", 80)

	fmt.Fprintln(w, rule)
	fmt.Fprintln(w, "CALL REPORT DATA CLEANUP")
	fmt.Fprintln(w, rule)
	if r.DryRun {
		fmt.Fprintln(w, "[DRY RUN] No files will be deleted")
	}

	for _, t := range r.Targets {
		fmt.Fprintf(w, "\n%s: %d files, %s MB\n", t.Name, t.Files, p.Sprintf("%.1f", t.SizeMB()))
		if !r.DryRun {
			continue
		}
		for i, f := range t.Removed {
			if i == listedFiles {
				fmt.Fprintf(w, "  ... and %d more\n", len(t.Removed)-listedFiles)
				break
			}
			fmt.Fprintf(w, "  - %s (%.1f MB)\n", f.Path, float64(f.Size)/(1<<20))
		}
	}

	totalMB := float64(r.TotalBytes()) / (1 << 20)
	fmt.Fprintln(w)
	fmt.Fprintln(w, rule)
	fmt.Fprintln(w, "CLEANUP SUMMARY")
	fmt.Fprintln(w, rule)
	if r.DryRun {
		fmt.Fprintf(w, "Would delete: %d files (%s MB)\n", r.TotalFiles(), p.Sprintf("%.1f", totalMB))
		fmt.Fprintln(w, "Run without -dry-run to actually delete files")
	} else {
		fmt.Fprintf(w, "Deleted: %d files\n", r.TotalFiles())
		fmt.Fprintf(w, "Freed: %s MB (%s GB)\n", p.Sprintf("%.1f", totalMB), p.Sprintf("%.2f", totalMB/1024))
	}
	fmt.Fprintln(w, rule)
}
