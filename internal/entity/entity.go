// Package entity classifies filer rows into entity categories by their
// RSSD9331 type code. Each category becomes its own partition tree in
// the canonical output.
package entity

import (
	"strconv"

	"github.com/mplosser/data-call-report/internal/table"
)

// Category identifies one entity type partition of the corpus.
type Category string

const (
	// CategoryFFIEC031041 holds commercial banks filing FFIEC 031/041.
	CategoryFFIEC031041 Category = "FFIEC_031_041"
	// CategoryFFIEC002 holds U.S. branches and agencies of foreign banks.
	CategoryFFIEC002 Category = "FFIEC_002"
	// CategoryFRB2886b holds Edge and agreement corporations.
	CategoryFRB2886b Category = "FRB_2886b"
)

// ClassifierColumn is the column carrying the entity type code.
const ClassifierColumn = "RSSD9331"

// categoryCodes maps each category to its RSSD9331 type codes.
var categoryCodes = map[Category][]int64{
	CategoryFFIEC031041: {1},
	CategoryFFIEC002:    {10, 11},
	CategoryFRB2886b:    {13, 17},
}

// Categories returns every category in a fixed order.
func Categories() []Category {
	return []Category{CategoryFFIEC031041, CategoryFFIEC002, CategoryFRB2886b}
}

// ForCode returns the category an RSSD9331 code belongs to.
func ForCode(code int64) (Category, bool) {
	for _, category := range Categories() {
		for _, c := range categoryCodes[category] {
			if c == code {
				return category, true
			}
		}
	}
	return "", false
}

// Classification is the result of splitting one table by entity type.
type Classification struct {
	// Tables holds the non-empty per-category row subsets.
	Tables map[Category]*table.Table
	// Unmatched counts rows whose code maps to no category, including
	// rows with a missing or non-integral code.
	Unmatched int
}

// Classify splits tbl into per-category tables by RSSD9331 code. The
// second return is false when the classifier column is absent, in which
// case there is nothing to classify and the caller decides what to do
// with the table as a whole.
func Classify(tbl *table.Table) (Classification, bool) {
	codes, ok := tbl.Column(ClassifierColumn)
	if !ok {
		return Classification{}, false
	}

	rowCategory := make([]Category, len(codes))
	result := Classification{Tables: make(map[Category]*table.Table)}
	counts := make(map[Category]int)
	for i, v := range codes {
		code, ok := codeValue(v)
		if !ok {
			result.Unmatched++
			continue
		}
		category, ok := ForCode(code)
		if !ok {
			result.Unmatched++
			continue
		}
		rowCategory[i] = category
		counts[category]++
	}

	for _, category := range Categories() {
		if counts[category] == 0 {
			continue
		}
		result.Tables[category] = tbl.FilterRows(func(row int) bool {
			return rowCategory[row] == category
		})
	}
	return result, true
}

// codeValue extracts an integral type code from a cell. Float codes are
// accepted only when they are whole numbers, since the raw sources
// surface numerics as doubles.
func codeValue(v table.Value) (int64, bool) {
	switch v.Kind() {
	case table.KindInt:
		return v.Int(), true
	case table.KindFloat:
		f := v.Float()
		i := int64(f)
		return i, float64(i) == f
	case table.KindText:
		f, err := strconv.ParseFloat(v.Text(), 64)
		if err != nil {
			return 0, false
		}
		i := int64(f)
		return i, float64(i) == f
	default:
		return 0, false
	}
}
