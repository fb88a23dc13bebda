package sources

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mplosser/data-call-report/internal/dictionary"
	"github.com/mplosser/data-call-report/internal/entity"
	apperrors "github.com/mplosser/data-call-report/internal/errors"
	"github.com/mplosser/data-call-report/internal/period"
	"github.com/mplosser/data-call-report/internal/store"
	"github.com/mplosser/data-call-report/internal/table"
)

func TestFFIEC_ProcessFile_TextFile(t *testing.T) {
	rawDir := t.TempDir()
	outDir := t.TempDir()
	content := "IDRSSD\tRCFD2170\tTEXTCOL\tRCON0010\n" +
		"37\t100.5\talpha\t5\n" +
		"480228\t\tbeta\t7\n" +
		"notanid\t1\tgamma\t9\n"
	path := filepath.Join(rawDir, "FFIEC_20200331.txt")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	st := store.New(outDir)
	src := NewFFIEC(FFIECConfig{RawDir: rawDir}, st, nil, testLogger())

	files, err := src.Discover()
	require.NoError(t, err)
	require.Len(t, files, 1)
	assert.Equal(t, period.New(2020, 1), files[0].Period)

	res, err := src.ProcessFile(context.Background(), files[0])
	require.NoError(t, err)
	assert.False(t, res.Skipped)
	assert.Equal(t, 2, res.Rows[entity.CategoryFFIEC031041])
	assert.Equal(t, 0, res.DroppedColumns)

	tbl, err := store.ReadParquet(context.Background(), st.PartitionPath(string(entity.CategoryFFIEC031041), files[0].Period))
	require.NoError(t, err)
	assert.Equal(t, []string{"RSSD_ID", "REPORTING_PERIOD", "RCFD2170", "RCON0010", "TEXTCOL"}, tbl.Columns())

	ids, _ := tbl.Column("RSSD_ID")
	assert.Equal(t, []table.Value{table.Int(37), table.Int(480228)}, ids)

	periods, _ := tbl.Column("REPORTING_PERIOD")
	assert.Equal(t, table.Date(time.Date(2020, 3, 31, 0, 0, 0, 0, time.UTC)), periods[0])

	assets, _ := tbl.Column("RCFD2170")
	assert.Equal(t, []table.Value{table.Float(100.5), table.Missing()}, assets)

	counts, _ := tbl.Column("RCON0010")
	assert.Equal(t, []table.Value{table.Int(5), table.Int(7)}, counts)

	texts, _ := tbl.Column("TEXTCOL")
	assert.Equal(t, []table.Value{table.Text("alpha"), table.Text("beta")}, texts)
}

func TestFFIEC_ProcessFile_ArchiveMergesMembers(t *testing.T) {
	rawDir := t.TempDir()
	outDir := t.TempDir()
	path := filepath.Join(rawDir, "FFIEC CDR Call Bulk All Schedules 06302019.zip")
	writeZip(t, path, [][2]string{
		{"FFIEC CDR Call Schedule RC 06302019.txt",
			"IDRSSD\tRCON2170\tSHARED\n37\t1000\tfirst\n99\t2000\tsecond\n"},
		{"FFIEC CDR Call Schedule RI 06302019.txt",
			"IDRSSD\tRIAD4340\tSHARED\n37\t15\tother\n555\t25\tmore\n"},
		{"Readme.pdf", "not a schedule"},
		{"broken schedule.txt", "FOO\tBAR\n1\t2\n"},
	})

	st := store.New(outDir)
	src := NewFFIEC(FFIECConfig{RawDir: rawDir}, st, nil, testLogger())

	res, err := src.ProcessFile(context.Background(), File{Path: path, Period: period.New(2019, 2)})
	require.NoError(t, err)
	assert.Equal(t, 3, res.Rows[entity.CategoryFFIEC031041])

	tbl, err := store.ReadParquet(context.Background(), st.PartitionPath(string(entity.CategoryFFIEC031041), period.New(2019, 2)))
	require.NoError(t, err)
	assert.Equal(t, []string{"RSSD_ID", "REPORTING_PERIOD", "RCON2170", "RIAD4340", "SHARED"}, tbl.Columns())

	ids, _ := tbl.Column("RSSD_ID")
	assert.Equal(t, []table.Value{table.Int(37), table.Int(99), table.Int(555)}, ids)

	assets, _ := tbl.Column("RCON2170")
	assert.Equal(t, []table.Value{table.Int(1000), table.Int(2000), table.Missing()}, assets)

	income, _ := tbl.Column("RIAD4340")
	assert.Equal(t, []table.Value{table.Int(15), table.Missing(), table.Int(25)}, income)

	// The first member's SHARED column wins the name collision.
	shared, _ := tbl.Column("SHARED")
	assert.Equal(t, []table.Value{table.Text("first"), table.Text("second"), table.Missing()}, shared)
}

func TestFFIEC_ProcessFile_SkipAndForce(t *testing.T) {
	rawDir := t.TempDir()
	outDir := t.TempDir()
	path := filepath.Join(rawDir, "FFIEC_20240630.txt")
	require.NoError(t, os.WriteFile(path, []byte("IDRSSD\tRCON2170\n37\t5\n"), 0o644))

	st := store.New(outDir)
	p := period.New(2024, 2)
	target := st.PartitionPath(string(entity.CategoryFFIEC031041), p)
	require.NoError(t, os.MkdirAll(filepath.Dir(target), 0o755))
	require.NoError(t, os.WriteFile(target, []byte("existing"), 0o644))

	src := NewFFIEC(FFIECConfig{RawDir: rawDir}, st, nil, testLogger())
	res, err := src.ProcessFile(context.Background(), File{Path: path, Period: p})
	require.NoError(t, err)
	assert.True(t, res.Skipped)

	forced := NewFFIEC(FFIECConfig{RawDir: rawDir, Force: true}, st, nil, testLogger())
	res, err = forced.ProcessFile(context.Background(), File{Path: path, Period: p})
	require.NoError(t, err)
	assert.False(t, res.Skipped)
	assert.Equal(t, 1, res.Rows[entity.CategoryFFIEC031041])
}

func TestFFIEC_ProcessFile_UnrecognizedFilename(t *testing.T) {
	rawDir := t.TempDir()
	path := filepath.Join(rawDir, "mystery.txt")
	require.NoError(t, os.WriteFile(path, []byte("IDRSSD\tRCON2170\n37\t5\n"), 0o644))

	st := store.New(t.TempDir())
	src := NewFFIEC(FFIECConfig{RawDir: rawDir}, st, nil, testLogger())
	_, err := src.ProcessFile(context.Background(), File{Path: path})
	require.Error(t, err)
	assert.True(t, apperrors.IsUnrecognized(err))

	parts, err := st.Scan()
	require.NoError(t, err)
	assert.Empty(t, parts)
}

func TestFFIEC_ProcessFile_ArchiveWithoutUsableMembers(t *testing.T) {
	rawDir := t.TempDir()
	path := filepath.Join(rawDir, "FFIEC CDR Call Bulk All Schedules 03312011.zip")
	writeZip(t, path, [][2]string{
		{"notes.pdf", "nothing here"},
		{"no identifier.txt", "FOO\tBAR\n1\t2\n"},
	})

	src := NewFFIEC(FFIECConfig{RawDir: rawDir}, store.New(t.TempDir()), nil, testLogger())
	_, err := src.ProcessFile(context.Background(), File{Path: path, Period: period.New(2011, 1)})
	require.Error(t, err)
	assert.True(t, apperrors.IsUnrecognized(err))
}

func TestFFIEC_ProcessFile_DictionaryRetention(t *testing.T) {
	rawDir := t.TempDir()
	outDir := t.TempDir()
	content := "IDRSSD\tRCFD0000\tRCFD1111\tRCFD2222\n37\t\t\t8\n"
	path := filepath.Join(rawDir, "FFIEC_20211231.txt")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	dict := dictionary.New([]dictionary.VariableDescriptor{
		{Code: "RCFD0000", Description: "Off form item", Forms: []string{"FFIEC 002"}},
		{Code: "RCFD1111", Description: "On form item", Forms: []string{"FFIEC 031"}},
	})
	st := store.New(outDir)
	src := NewFFIEC(FFIECConfig{RawDir: rawDir}, st, dict, testLogger())

	res, err := src.ProcessFile(context.Background(), File{Path: path, Period: period.New(2021, 4)})
	require.NoError(t, err)
	assert.Equal(t, 1, res.DroppedColumns)

	meta, err := store.ReadMetadata(st.PartitionPath(string(entity.CategoryFFIEC031041), period.New(2021, 4)))
	require.NoError(t, err)
	assert.Equal(t, []string{"RSSD_ID", "REPORTING_PERIOD", "RCFD1111", "RCFD2222"}, meta.ColumnNames())
	assert.False(t, meta.HasColumn("RCFD0000"))
}

func TestFFIEC_Discover(t *testing.T) {
	rawDir := t.TempDir()
	for _, name := range []string{"FFIEC_20201231.txt", "call_20200331.csv", "mystery.txt", "junk.dat"} {
		require.NoError(t, os.WriteFile(filepath.Join(rawDir, name), []byte("x"), 0o644))
	}
	writeZip(t, filepath.Join(rawDir, "bulk_06302019.zip"), [][2]string{{"a.txt", "x"}})

	src := NewFFIEC(FFIECConfig{RawDir: rawDir}, store.New(t.TempDir()), nil, testLogger())
	files, err := src.Discover()
	require.NoError(t, err)

	require.Len(t, files, 4)
	assert.Equal(t, "FFIEC_20201231.txt", filepath.Base(files[0].Path))
	assert.Equal(t, period.New(2020, 4), files[0].Period)
	assert.Equal(t, "bulk_06302019.zip", filepath.Base(files[1].Path))
	assert.Equal(t, period.New(2019, 2), files[1].Period)
	assert.Equal(t, "call_20200331.csv", filepath.Base(files[2].Path))
	assert.Equal(t, period.New(2020, 1), files[2].Period)
	assert.Equal(t, "mystery.txt", filepath.Base(files[3].Path))
	assert.True(t, files[3].Period.IsZero())
}

func TestFFIEC_Discover_EmptyDirIsSetupError(t *testing.T) {
	src := NewFFIEC(FFIECConfig{RawDir: t.TempDir()}, store.New(t.TempDir()), nil, testLogger())
	_, err := src.Discover()
	require.Error(t, err)
	assert.True(t, apperrors.IsSetup(err))
}

func TestCoerceNumeric(t *testing.T) {
	ints := coerceNumeric([]table.Value{table.Text("5"), table.Text("7")})
	assert.Equal(t, []table.Value{table.Int(5), table.Int(7)}, ints)

	withMissing := coerceNumeric([]table.Value{table.Text("5"), table.Missing()})
	assert.Equal(t, []table.Value{table.Float(5), table.Missing()}, withMissing)

	floats := coerceNumeric([]table.Value{table.Text("1.5"), table.Text("2")})
	assert.Equal(t, []table.Value{table.Float(1.5), table.Float(2)}, floats)

	padded := coerceNumeric([]table.Value{table.Text(" 5 ")})
	assert.Equal(t, []table.Value{table.Int(5)}, padded)

	text := []table.Value{table.Text("5"), table.Text("five")}
	assert.Equal(t, text, coerceNumeric(text))
}

func TestMissingCellSentinels(t *testing.T) {
	for _, cell := range []string{"", "  ", "NA", "na", "n/a", "NaN", "null"} {
		assert.True(t, isMissingCell(cell), "cell %q", cell)
	}
	for _, cell := range []string{"0", "x", "0.0", "none"} {
		assert.False(t, isMissingCell(cell), "cell %q", cell)
	}
}

func TestParseNumericCell(t *testing.T) {
	got, ok := parseNumericCell("37")
	require.True(t, ok)
	assert.Equal(t, 37.0, got)

	got, ok = parseNumericCell(" 480228.0 ")
	require.True(t, ok)
	assert.Equal(t, 480228.0, got)

	_, ok = parseNumericCell("abc")
	assert.False(t, ok)
	_, ok = parseNumericCell("")
	assert.False(t, ok)
	_, ok = parseNumericCell("nan")
	assert.False(t, ok)
}

func TestStandardOrder(t *testing.T) {
	got := standardOrder([]string{"ZZZ", "REPORTING_PERIOD", "AAA", "RSSD_ID", "MMM"})
	assert.Equal(t, []string{"RSSD_ID", "REPORTING_PERIOD", "AAA", "MMM", "ZZZ"}, got)

	// Metadata columns appear only when present.
	got = standardOrder([]string{"B", "A"})
	assert.Equal(t, []string{"A", "B"}, got)
}
