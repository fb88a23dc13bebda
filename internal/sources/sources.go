// Package sources turns raw regulatory filings into canonical corpus
// partitions. Two readers cover the two upstream shapes: Chicago Fed
// quarterly archives of SAS transport files, split by entity category,
// and FFIEC CDR bulk files of tab-delimited schedules, merged and
// reconciled into the commercial bank series.
package sources

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"

	"github.com/mplosser/data-call-report/internal/entity"
	"github.com/mplosser/data-call-report/internal/period"
)

// File is one discovered raw input with its inferred reporting period.
// A zero Period marks a file whose name carried no recognizable period.
type File struct {
	Path   string
	Period period.Period
}

// QuarterResult reports what processing one raw file produced.
type QuarterResult struct {
	Period  period.Period
	Skipped bool

	// Rows counts the rows written per entity category. Empty when the
	// file was skipped or carried nothing to categorize.
	Rows map[entity.Category]int

	// Unmatched counts rows excluded because their classifier code maps
	// to no category.
	Unmatched int

	// DroppedColumns counts columns removed by dictionary reconciliation.
	DroppedColumns int
}

// Summary returns a one-line description for logs and the run report.
func (r *QuarterResult) Summary() string {
	if r.Skipped {
		return "already processed"
	}
	var parts []string
	for _, category := range entity.Categories() {
		if n, ok := r.Rows[category]; ok {
			parts = append(parts, fmt.Sprintf("%s %d rows", category, n))
		}
	}
	if len(parts) == 0 {
		return "no categorized rows"
	}
	if r.Unmatched > 0 {
		parts = append(parts, fmt.Sprintf("%d unmatched", r.Unmatched))
	}
	if r.DroppedColumns > 0 {
		parts = append(parts, fmt.Sprintf("%d columns dropped", r.DroppedColumns))
	}
	return strings.Join(parts, ", ")
}

// decodeText decodes raw file bytes as UTF-8 when valid and falls back
// to Latin-1, which accepts any byte sequence. A leading byte order
// mark is stripped.
func decodeText(data []byte) (string, error) {
	if utf8.Valid(data) {
		return strings.TrimPrefix(string(data), "\uFEFF"), nil
	}
	out, err := charmap.ISO8859_1.NewDecoder().Bytes(data)
	if err != nil {
		return "", fmt.Errorf("decode text: %w", err)
	}
	return strings.TrimPrefix(string(out), "\uFEFF"), nil
}
