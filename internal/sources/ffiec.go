package sources

import (
	"archive/zip"
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/mplosser/data-call-report/internal/dictionary"
	"github.com/mplosser/data-call-report/internal/entity"
	apperrors "github.com/mplosser/data-call-report/internal/errors"
	"github.com/mplosser/data-call-report/internal/period"
	"github.com/mplosser/data-call-report/internal/reconcile"
	"github.com/mplosser/data-call-report/internal/store"
	"github.com/mplosser/data-call-report/internal/table"
)

// FFIECConfig configures the FFIEC CDR bulk file reader.
type FFIECConfig struct {
	// RawDir holds the downloaded bulk files: tab-delimited text files
	// or ZIP archives with one member per schedule.
	RawDir string

	// Force reprocesses quarters whose output partition already exists.
	Force bool
}

// FFIEC reads FFIEC CDR bulk downloads. Each file carries one quarter
// of FFIEC 031/041 commercial bank data, written as a single partition
// in the FFIEC_031_041 series after dictionary reconciliation.
type FFIEC struct {
	cfg          FFIECConfig
	store        *store.Store
	dict         *dictionary.Dictionary
	descriptions map[string]string
	logger       *slog.Logger
}

// NewFFIEC returns a reader writing to st. dict drives both column
// reconciliation and the descriptions attached to written partitions;
// nil degrades to keeping only columns with data.
func NewFFIEC(cfg FFIECConfig, st *store.Store, dict *dictionary.Dictionary, logger *slog.Logger) *FFIEC {
	if dict == nil {
		dict = dictionary.Empty()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &FFIEC{
		cfg:          cfg,
		store:        st,
		dict:         dict,
		descriptions: dict.Descriptions(),
		logger:       logger.With(slog.String("component", "ffiec")),
	}
}

// Discover lists the bulk files in the raw directory sorted by name.
// Files whose name yields no reporting period are still listed, with a
// zero period, so processing can report them. An empty directory is a
// setup error.
func (fc *FFIEC) Discover() ([]File, error) {
	var paths []string
	for _, pattern := range []string{"*.txt", "*.csv", "*.zip"} {
		matches, err := filepath.Glob(filepath.Join(fc.cfg.RawDir, pattern))
		if err != nil {
			return nil, apperrors.NewSetup("list bulk files", err)
		}
		paths = append(paths, matches...)
	}
	if len(paths) == 0 {
		return nil, apperrors.NewSetup(fmt.Sprintf("no bulk files found in %s", fc.cfg.RawDir), nil)
	}
	sort.Strings(paths)

	files := make([]File, 0, len(paths))
	for _, path := range paths {
		p, _ := period.FromFFIECFilename(filepath.Base(path))
		files = append(files, File{Path: path, Period: p})
	}
	return files, nil
}

// ProcessFile parses one bulk file into the commercial bank partition
// for its quarter. A quarter whose partition already exists is skipped
// unless Force is set.
func (fc *FFIEC) ProcessFile(ctx context.Context, f File) (*QuarterResult, error) {
	if f.Period.IsZero() {
		return nil, apperrors.NewUnrecognized("ffiec", f.Path, "no reporting period in filename")
	}
	res := &QuarterResult{Period: f.Period, Rows: make(map[entity.Category]int)}

	if !fc.cfg.Force && fc.store.PartitionExists(string(entity.CategoryFFIEC031041), f.Period) {
		res.Skipped = true
		return res, nil
	}

	tbl, err := fc.parseBulkFile(ctx, f.Path)
	if err != nil {
		return nil, err
	}

	tbl.SetConst("REPORTING_PERIOD", table.Date(f.Period.EndDate()))
	if err := tbl.UppercaseColumns(); err != nil {
		return nil, apperrors.NewParse("ffiec", f.Path, err)
	}
	tbl, err = tbl.Select(standardOrder(tbl.Columns()))
	if err != nil {
		return nil, apperrors.NewParse("ffiec", f.Path, err)
	}

	filtered, dropped, err := reconcile.FilterColumns(tbl, fc.dict)
	if err != nil {
		return nil, apperrors.NewParse("ffiec", f.Path, err)
	}
	res.DroppedColumns = dropped

	if err := fc.store.WritePartition(string(entity.CategoryFFIEC031041), f.Period, filtered, fc.descriptions); err != nil {
		return nil, err
	}
	res.Rows[entity.CategoryFFIEC031041] = filtered.NumRows()
	return res, nil
}

// standardOrder places RSSD_ID and REPORTING_PERIOD first and sorts the
// variable codes after them.
func standardOrder(names []string) []string {
	front := []string{"RSSD_ID", "REPORTING_PERIOD"}
	isFront := map[string]bool{"RSSD_ID": true, "REPORTING_PERIOD": true}

	ordered := make([]string, 0, len(names))
	for _, name := range front {
		for _, n := range names {
			if n == name {
				ordered = append(ordered, name)
				break
			}
		}
	}
	var rest []string
	for _, n := range names {
		if !isFront[n] {
			rest = append(rest, n)
		}
	}
	sort.Strings(rest)
	return append(ordered, rest...)
}

// parseBulkFile reads a bulk download: either a single tab-delimited
// text file or a ZIP archive whose members are merged on RSSD_ID.
func (fc *FFIEC) parseBulkFile(ctx context.Context, path string) (*table.Table, error) {
	if strings.EqualFold(filepath.Ext(path), ".zip") {
		return fc.parseArchive(ctx, path)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, apperrors.NewParse("ffiec", path, err)
	}
	text, err := decodeText(data)
	if err != nil {
		return nil, apperrors.NewParse("ffiec", path, err)
	}
	tbl, err := fc.parseMember(text, filepath.Base(path))
	if err != nil {
		return nil, apperrors.NewParse("ffiec", path, err)
	}
	if tbl == nil || tbl.NumRows() == 0 {
		return nil, apperrors.NewUnrecognized("ffiec", path, "no usable data in file")
	}
	return tbl, nil
}

// parseArchive parses each schedule member of a bulk archive in list
// order and outer-joins them on RSSD_ID, first member winning colliding
// column names. Unusable members are logged and skipped; an archive
// with no usable member is unrecognized input.
func (fc *FFIEC) parseArchive(ctx context.Context, path string) (*table.Table, error) {
	zr, err := zip.OpenReader(path)
	if err != nil {
		return nil, apperrors.NewParse("ffiec", path, err)
	}
	defer zr.Close()

	var members []*table.Table
	for _, member := range zr.File {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if !strings.HasSuffix(member.Name, ".txt") && !strings.HasSuffix(member.Name, ".csv") {
			continue
		}

		data, err := readZipMember(member)
		if err != nil {
			return nil, apperrors.NewParse("ffiec", path, err)
		}
		text, err := decodeText(data)
		if err != nil {
			return nil, apperrors.NewParse("ffiec", path, err)
		}

		tbl, err := fc.parseMember(text, member.Name)
		if err != nil {
			fc.logger.Warn("skipping archive member",
				slog.String("archive", filepath.Base(path)),
				slog.String("member", member.Name),
				slog.String("error", err.Error()))
			continue
		}
		if tbl == nil || tbl.NumRows() == 0 {
			continue
		}
		members = append(members, tbl)
	}

	if len(members) == 0 {
		return nil, apperrors.NewUnrecognized("ffiec", path, "no usable members in archive")
	}
	merged, err := reconcile.MergeMembers(members, "RSSD_ID")
	if err != nil {
		return nil, apperrors.NewParse("ffiec", path, err)
	}
	return merged, nil
}

func readZipMember(member *zip.File) ([]byte, error) {
	rc, err := member.Open()
	if err != nil {
		return nil, fmt.Errorf("open member %s: %w", member.Name, err)
	}
	defer rc.Close()
	return io.ReadAll(rc)
}

// parseMember parses one tab-delimited schedule. The identifier column
// is the first whose uppercase name contains RSSD, renamed to RSSD_ID;
// rows whose identifier does not parse as a number are dropped, and the
// remaining columns are numeric where every surviving cell parses as a
// number. A member without an identifier column or without usable rows
// returns a nil table.
func (fc *FFIEC) parseMember(text, name string) (*table.Table, error) {
	rd := csv.NewReader(strings.NewReader(text))
	rd.Comma = '\t'
	rd.LazyQuotes = true
	rd.FieldsPerRecord = -1
	records, err := rd.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", name, err)
	}
	if len(records) < 2 {
		return nil, nil
	}
	header := records[0]
	rows := records[1:]

	idCol := -1
	for i, h := range header {
		if strings.Contains(strings.ToUpper(h), "RSSD") {
			idCol = i
			break
		}
	}
	if idCol < 0 {
		fc.logger.Warn("no identifier column in member", slog.String("member", name))
		return nil, nil
	}

	var keep []int
	var ids []table.Value
	for i, row := range rows {
		var cell string
		if idCol < len(row) {
			cell = row[idCol]
		}
		id, ok := parseNumericCell(cell)
		if !ok {
			continue
		}
		keep = append(keep, i)
		ids = append(ids, table.Int(int64(id)))
	}
	if len(keep) == 0 {
		return nil, nil
	}

	tbl := table.New()
	if err := tbl.AddColumn("RSSD_ID", ids); err != nil {
		return nil, fmt.Errorf("member %s: %w", name, err)
	}
	for col, colName := range header {
		if col == idCol {
			continue
		}
		values := make([]table.Value, len(keep))
		for j, rowIdx := range keep {
			row := rows[rowIdx]
			var cell string
			if col < len(row) {
				cell = row[col]
			}
			values[j] = cellValue(cell)
		}
		if err := tbl.AddColumn(colName, coerceNumeric(values)); err != nil {
			return nil, fmt.Errorf("member %s: %w", name, err)
		}
	}
	return tbl, nil
}

// coerceNumeric converts a text column to numbers when every present
// cell parses as one. Columns with any unparseable cell stay text. An
// all-integral column with no missing cells becomes integer, anything
// else float.
func coerceNumeric(values []table.Value) []table.Value {
	floats := make([]float64, len(values))
	integral := true
	hasMissing := false
	for i, v := range values {
		if v.IsMissing() {
			hasMissing = true
			continue
		}
		f, err := strconv.ParseFloat(strings.TrimSpace(v.Text()), 64)
		if err != nil {
			return values
		}
		floats[i] = f
		if f != math.Trunc(f) {
			integral = false
		}
	}

	out := make([]table.Value, len(values))
	for i, v := range values {
		switch {
		case v.IsMissing():
			out[i] = table.Missing()
		case integral && !hasMissing:
			out[i] = table.Int(int64(floats[i]))
		default:
			out[i] = table.Float(floats[i])
		}
	}
	return out
}

// missing sentinels the upstream files use for empty cells.
func isMissingCell(cell string) bool {
	switch strings.ToLower(strings.TrimSpace(cell)) {
	case "", "na", "n/a", "nan", "null":
		return true
	}
	return false
}

func cellValue(cell string) table.Value {
	if isMissingCell(cell) {
		return table.Missing()
	}
	return table.Text(cell)
}

// parseNumericCell parses an identifier cell, rejecting missing
// sentinels and non-numeric text.
func parseNumericCell(cell string) (float64, bool) {
	s := strings.TrimSpace(cell)
	if isMissingCell(s) {
		return 0, false
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) {
		return 0, false
	}
	return f, true
}
