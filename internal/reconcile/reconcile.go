// Package reconcile merges the member tables of one filing archive and
// applies the column retention policy that keeps bulk FFIEC output on
// the Call Report forms.
package reconcile

import (
	"fmt"

	"github.com/mplosser/data-call-report/internal/dictionary"
	"github.com/mplosser/data-call-report/internal/table"
)

// MetadataColumns always survive column retention regardless of the
// dictionary.
var MetadataColumns = map[string]bool{
	"REPORTING_PERIOD": true,
	"RSSD_ID":          true,
	"RSSD9001":         true,
	"IDRSSD":           true,
}

// TargetForms are the Call Report form names a variable must appear on
// to be kept by form membership.
var TargetForms = map[string]bool{
	"FFIEC 031": true,
	"FFIEC 041": true,
	"FFIEC 032": true,
	"FFIEC 033": true,
	"FFIEC 034": true,
	"FFIEC 051": true,
}

// MergeMembers folds the member tables of one archive into a single
// table with successive outer joins on the key column. Member order is
// the archive listing order, so the first member to contribute a column
// name wins on collisions.
func MergeMembers(members []*table.Table, key string) (*table.Table, error) {
	if len(members) == 0 {
		return nil, fmt.Errorf("no member tables to merge")
	}
	merged := members[0]
	for i, member := range members[1:] {
		var err error
		merged, err = table.OuterJoin(merged, member, key)
		if err != nil {
			return nil, fmt.Errorf("merge member %d: %w", i+1, err)
		}
	}
	return merged, nil
}

// FilterColumns drops the columns that are neither on a target form nor
// carrying any data. Metadata columns are always kept. It returns the
// filtered table and the number of columns dropped.
func FilterColumns(tbl *table.Table, dict *dictionary.Dictionary) (*table.Table, int, error) {
	var kept []string
	for _, name := range tbl.Columns() {
		if MetadataColumns[name] {
			kept = append(kept, name)
			continue
		}
		if dict.OnForm(name, TargetForms) || hasData(tbl, name) {
			kept = append(kept, name)
		}
	}
	dropped := tbl.NumCols() - len(kept)
	if dropped == 0 {
		return tbl, 0, nil
	}
	filtered, err := tbl.Select(kept)
	if err != nil {
		return nil, 0, fmt.Errorf("filter columns: %w", err)
	}
	return filtered, dropped, nil
}

func hasData(tbl *table.Table, name string) bool {
	values, _ := tbl.Column(name)
	for _, v := range values {
		if !v.IsMissing() {
			return true
		}
	}
	return false
}
