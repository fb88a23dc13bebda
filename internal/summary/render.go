package summary

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/mplosser/data-call-report/internal/entity"
	"github.com/mplosser/data-call-report/internal/period"
)

// categoryLongNames label the statistics block.
var categoryLongNames = map[string]string{
	string(entity.CategoryFFIEC031041): "FFIEC 031/041 (Commercial Banks)",
	string(entity.CategoryFFIEC002):    "FFIEC 002 (Foreign Bank Branches)",
	string(entity.CategoryFRB2886b):    "FR 2886b (Edge/Agreement Corps)",
}

// Render writes the console report: header block, quarterly pivot by
// entity type, summary statistics, and gap warnings.
func (r *Report) Render(w io.Writer) {
	p := message.NewPrinter(language.English)

	rule := strings.Repeat("=", 80)
	fmt.Fprintln(w, rule)
	fmt.Fprintln(w, "CALL REPORT DATA SUMMARY")
	fmt.Fprintln(w, rule)
	fmt.Fprintf(w, "Corpus: %s\n", r.Root)
	fmt.Fprintf(w, "Files: %d scanned, %d summarized\n", r.Scanned, len(r.Files))
	counts := make(map[string]int)
	for _, f := range r.Files {
		counts[f.Category]++
	}
	for _, category := range entity.Categories() {
		if n := counts[string(category)]; n > 0 {
			fmt.Fprintf(w, "  %s: %d files\n", category, n)
		}
	}
	if r.NullChecked {
		fmt.Fprintln(w, "Null column check: on")
	}
	fmt.Fprintln(w, rule)

	if len(r.Files) == 0 {
		fmt.Fprintln(w, "No data matched the filters")
		return
	}

	r.renderPivot(w, p)
	r.renderStats(w, p)
	r.renderGaps(w)
}

func (r *Report) renderPivot(w io.Writer, p *message.Printer) {
	type pivotRow struct {
		date   time.Time
		filers map[string]int
		vars   map[string]int
	}
	rows := make(map[period.Period]*pivotRow)
	var quarters []period.Period
	for _, f := range r.Files {
		row, ok := rows[f.Period]
		if !ok {
			row = &pivotRow{filers: make(map[string]int), vars: make(map[string]int)}
			rows[f.Period] = row
			quarters = append(quarters, f.Period)
		}
		if row.date.IsZero() {
			row.date = f.Date
		}
		row.filers[f.Category] = f.Filers
		row.vars[f.Category] = f.Variables
	}
	sort.Slice(quarters, func(i, j int) bool { return quarters[i].Before(quarters[j]) })

	rule := strings.Repeat("=", 100)
	fmt.Fprintln(w)
	fmt.Fprintln(w, rule)
	fmt.Fprintln(w, "QUARTERLY BREAKDOWN BY ENTITY TYPE")
	fmt.Fprintln(w, rule)
	fmt.Fprintf(w, "%-8s %-12s %8s %8s %8s | %7s %7s %7s\n",
		"Quarter", "Date", "031/041", "002", "2886b", "031/041", "002", "2886b")
	fmt.Fprintf(w, "%-8s %-12s %8s %8s %8s | %7s %7s %7s\n",
		"", "", "Filers", "Filers", "Filers", "Vars", "Vars", "Vars")
	fmt.Fprintln(w, strings.Repeat("-", 8)+" "+strings.Repeat("-", 12)+" "+
		strings.Repeat("-", 8)+" "+strings.Repeat("-", 8)+" "+strings.Repeat("-", 8)+" | "+
		strings.Repeat("-", 7)+" "+strings.Repeat("-", 7)+" "+strings.Repeat("-", 7))

	for _, q := range quarters {
		row := rows[q]
		date := "Unknown"
		if !row.date.IsZero() {
			date = row.date.Format("2006-01-02")
		}
		fmt.Fprintf(w, "%-8s %-12s %8s %8s %8s | %7s %7s %7s\n",
			q, date,
			pivotCell(p, row.filers, entity.CategoryFFIEC031041),
			pivotCell(p, row.filers, entity.CategoryFFIEC002),
			pivotCell(p, row.filers, entity.CategoryFRB2886b),
			pivotCell(p, row.vars, entity.CategoryFFIEC031041),
			pivotCell(p, row.vars, entity.CategoryFFIEC002),
			pivotCell(p, row.vars, entity.CategoryFRB2886b))
	}
}

// pivotCell formats one count, or "-" when the category has no file for
// the quarter.
func pivotCell(p *message.Printer, counts map[string]int, category entity.Category) string {
	n, ok := counts[string(category)]
	if !ok {
		return "-"
	}
	return p.Sprintf("%d", n)
}

func (r *Report) renderStats(w io.Writer, p *message.Printer) {
	rule := strings.Repeat("=", 80)
	fmt.Fprintln(w)
	fmt.Fprintln(w, rule)
	fmt.Fprintln(w, "SUMMARY STATISTICS")
	fmt.Fprintln(w, rule)
	fmt.Fprintf(w, "Total files: %d\n", len(r.Files))

	var minDate, maxDate time.Time
	var totalMB float64
	for _, f := range r.Files {
		totalMB += f.SizeMB()
		if f.Date.IsZero() {
			continue
		}
		if minDate.IsZero() || f.Date.Before(minDate) {
			minDate = f.Date
		}
		if maxDate.IsZero() || f.Date.After(maxDate) {
			maxDate = f.Date
		}
	}
	if !minDate.IsZero() {
		fmt.Fprintf(w, "Date range: %s to %s\n",
			minDate.Format("2006-01-02"), maxDate.Format("2006-01-02"))
	}

	fmt.Fprintln(w)
	fmt.Fprintln(w, "Entity Type Breakdown:")
	for _, category := range entity.Categories() {
		var quarters, filers, vars int
		var sizeMB float64
		for _, f := range r.Files {
			if f.Category != string(category) {
				continue
			}
			quarters++
			filers += f.Filers
			vars += f.Variables
			sizeMB += f.SizeMB()
		}
		if quarters == 0 {
			continue
		}
		fmt.Fprintf(w, "  %-40s %3d quarters, avg %6.0f filers, avg %5.0f vars, %6.1f MB\n",
			categoryLongNames[string(category)], quarters,
			float64(filers)/float64(quarters),
			float64(vars)/float64(quarters),
			sizeMB)
	}

	fmt.Fprintln(w)
	fmt.Fprintf(w, "Total size: %s MB\n", p.Sprintf("%.1f", totalMB))
	fmt.Fprintln(w, rule)
}

func (r *Report) renderGaps(w io.Writer) {
	if len(r.Gaps) == 0 {
		return
	}
	fmt.Fprintln(w)
	for _, category := range entity.Categories() {
		missing := r.Gaps[string(category)]
		if len(missing) == 0 {
			continue
		}
		shown := missing
		if len(shown) > 10 {
			shown = shown[:10]
		}
		labels := make([]string, len(shown))
		for i, q := range shown {
			labels[i] = q.String()
		}
		fmt.Fprintf(w, "[WARN] %s: Missing quarters: %s\n", category, strings.Join(labels, ", "))
		if len(missing) > 10 {
			fmt.Fprintf(w, "       ... and %d more\n", len(missing)-10)
		}
	}
}
