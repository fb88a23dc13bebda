package dictionary

import (
	"encoding/csv"
	"fmt"
	"html"
	"os"
	"regexp"
	"sort"
	"strings"
	"time"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"
)

// callReportPrefixes are the MDRM mnemonics that belong to the Call
// Report series. Everything else in MDRM.csv is dropped.
var callReportPrefixes = map[string]bool{
	"RCON": true, "RCFD": true, "RIAD": true, "RCFA": true,
	"RCFN": true, "RCFW": true, "RCOA": true, "RCOW": true,
}

var (
	htmlTagPattern    = regexp.MustCompile(`<[^>]+>`)
	whitespacePattern = regexp.MustCompile(`\s+`)
)

// endDateLayouts covers the date spellings seen in MDRM end date
// columns across vintages.
var endDateLayouts = []string{
	"1/2/2006",
	"2006-01-02",
	"2-Jan-2006",
	"20060102",
}

// ParseMDRMFile reads the raw MDRM.csv export from the Federal Reserve
// and returns Call Report descriptors, deduplicated and sorted by code.
func ParseMDRMFile(path string) ([]VariableDescriptor, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read MDRM csv: %w", err)
	}
	descs, err := ParseMDRM(data)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return descs, nil
}

// ParseMDRM parses the raw MDRM.csv bytes. The first line is the PUBLIC
// banner the Fed prepends to the export and is always skipped.
func ParseMDRM(data []byte) ([]VariableDescriptor, error) {
	text, err := decodeCSV(data)
	if err != nil {
		return nil, err
	}
	body := skipBannerLine(text)

	r := csv.NewReader(strings.NewReader(body))
	r.FieldsPerRecord = -1
	r.LazyQuotes = true
	records, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read csv records: %w", err)
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("no header row after banner")
	}

	cols, err := identifyColumns(records[0])
	if err != nil {
		return nil, err
	}

	type candidate struct {
		desc       VariableDescriptor
		endDate    time.Time
		hasEndDate bool
	}
	best := make(map[string]candidate)
	var codes []string

	for _, rec := range records[1:] {
		mnemonic := strings.TrimSpace(field(rec, cols.mnemonic))
		if !callReportPrefixes[mnemonic] {
			continue
		}
		code := strings.ToUpper(mnemonic + strings.TrimSpace(field(rec, cols.itemCode)))
		description := cleanDescription(field(rec, cols.description))
		if description == "" {
			continue
		}
		cand := candidate{
			desc: VariableDescriptor{
				Code:        code,
				Description: description,
				Forms:       canonicalizeForms(field(rec, cols.forms)),
			},
		}
		cand.endDate, cand.hasEndDate = parseEndDate(field(rec, cols.endDate))

		prev, seen := best[code]
		if !seen {
			best[code] = cand
			codes = append(codes, code)
			continue
		}
		if newerDefinition(cand.endDate, cand.hasEndDate, prev.endDate, prev.hasEndDate) {
			best[code] = cand
		}
	}

	descriptors := make([]VariableDescriptor, 0, len(codes))
	for _, code := range codes {
		descriptors = append(descriptors, best[code].desc)
	}
	sort.Slice(descriptors, func(i, j int) bool { return descriptors[i].Code < descriptors[j].Code })
	return descriptors, nil
}

// newerDefinition reports whether the new row should replace the kept
// one. A missing end date marks the current definition and always wins;
// otherwise the later end date wins and ties keep the earlier row.
func newerDefinition(end time.Time, hasEnd bool, prevEnd time.Time, prevHasEnd bool) bool {
	if !prevHasEnd {
		return false
	}
	if !hasEnd {
		return true
	}
	return end.After(prevEnd)
}

// mdrmColumns holds the column indexes located in the header row. An
// index of -1 means the column is absent.
type mdrmColumns struct {
	mnemonic    int
	itemCode    int
	description int
	endDate     int
	forms       int
}

// identifyColumns locates the needed columns by case-insensitive
// substring, falling back to exact names. The mnemonic and description
// columns are required.
func identifyColumns(header []string) (mdrmColumns, error) {
	cols := mdrmColumns{mnemonic: -1, itemCode: -1, description: -1, endDate: -1, forms: -1}
	for i, name := range header {
		lower := strings.ToLower(strings.TrimSpace(name))
		switch {
		case cols.mnemonic == -1 && strings.Contains(lower, "mnemonic"):
			cols.mnemonic = i
		case cols.itemCode == -1 && strings.Contains(lower, "item") && strings.Contains(lower, "code"):
			cols.itemCode = i
		case cols.description == -1 && strings.Contains(lower, "item") && strings.Contains(lower, "name"):
			cols.description = i
		case cols.endDate == -1 && strings.Contains(lower, "end") && strings.Contains(lower, "date"):
			cols.endDate = i
		case cols.forms == -1 && strings.Contains(lower, "reporting") && strings.Contains(lower, "form"):
			cols.forms = i
		}
	}
	if cols.mnemonic == -1 {
		cols.mnemonic = findExact(header, "Mnemonic", "Variable", "MDRM", "Code")
	}
	if cols.itemCode == -1 {
		cols.itemCode = findExact(header, "Item Code", "ItemCode", "Code")
	}
	if cols.description == -1 {
		cols.description = findExact(header, "Item Name", "ItemName", "Description", "Item_Name")
	}
	if cols.mnemonic == -1 {
		return cols, fmt.Errorf("no mnemonic column in header %v", header)
	}
	if cols.description == -1 {
		return cols, fmt.Errorf("no item name column in header %v", header)
	}
	return cols, nil
}

func findExact(header []string, candidates ...string) int {
	for _, want := range candidates {
		for i, name := range header {
			if strings.TrimSpace(name) == want {
				return i
			}
		}
	}
	return -1
}

func field(rec []string, idx int) string {
	if idx < 0 || idx >= len(rec) {
		return ""
	}
	return rec[idx]
}

// cleanDescription unescapes HTML entities, strips markup tags, and
// collapses runs of whitespace.
func cleanDescription(s string) string {
	s = html.UnescapeString(s)
	s = htmlTagPattern.ReplaceAllString(s, "")
	s = whitespacePattern.ReplaceAllString(s, " ")
	return strings.TrimSpace(s)
}

// canonicalizeForms splits a raw reporting forms cell into trimmed form
// names. Both comma and semicolon separators appear in MDRM exports.
func canonicalizeForms(raw string) []string {
	parts := strings.FieldsFunc(raw, func(r rune) bool { return r == ',' || r == ';' })
	var forms []string
	for _, part := range parts {
		if part = strings.TrimSpace(part); part != "" {
			forms = append(forms, part)
		}
	}
	return forms
}

func parseEndDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range endDateLayouts {
		if ts, err := time.Parse(layout, s); err == nil {
			return ts, true
		}
	}
	return time.Time{}, false
}

// skipBannerLine drops the first line of the export.
func skipBannerLine(text string) string {
	if i := strings.IndexByte(text, '\n'); i >= 0 {
		return text[i+1:]
	}
	return ""
}

// decodeCSV decodes the raw bytes as UTF-8 when valid, otherwise as
// Latin-1. Latin-1 maps every byte, so decoding cannot fail.
func decodeCSV(data []byte) (string, error) {
	if utf8.Valid(data) {
		return string(data), nil
	}
	out, err := charmap.ISO8859_1.NewDecoder().Bytes(data)
	if err != nil {
		return "", fmt.Errorf("decode latin-1: %w", err)
	}
	return string(out), nil
}
