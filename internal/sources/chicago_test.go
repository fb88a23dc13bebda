package sources

import (
	"bytes"
	"context"
	"encoding/binary"
	"fmt"
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

// Transport file fixtures. Every field is eight bytes wide: numerics
// as IBM 360 doubles, character data blank padded.

type xptVar struct {
	name    string
	numeric bool
}

func pad80(s string) []byte {
	b := []byte(s)
	for len(b) == 0 || len(b)%80 != 0 {
		b = append(b, ' ')
	}
	return b
}

func padBlock(b []byte) []byte {
	if rem := len(b) % 80; rem != 0 {
		b = append(b, bytes.Repeat([]byte{' '}, 80-rem)...)
	}
	return b
}

func ibmField(f float64) []byte {
	b := make([]byte, 8)
	if f == 0 {
		return b
	}
	var sign byte
	if f < 0 {
		sign = 0x80
		f = -f
	}
	exp := 0
	for f >= 1 {
		f /= 16
		exp++
	}
	for f < 1.0/16 {
		f *= 16
		exp--
	}
	frac := uint64(f * (1 << 56))
	b[0] = sign | byte(exp+64)
	for i := 7; i >= 1; i-- {
		b[i] = byte(frac)
		frac >>= 8
	}
	return b
}

// writeTransport builds a single-member XPORT file at path. Row cells
// are float64, string, or nil for a missing value.
func writeTransport(t *testing.T, path string, vars []xptVar, rows [][]any) {
	t.Helper()

	var out []byte
	out = append(out, pad80("HEADER RECORD*******LIBRARY HEADER RECORD!!!!!!!000000000000000000000000000000")...)
	out = append(out, pad80("SAS     SAS     SASLIB  9.4     LIN X64")...)
	out = append(out, pad80("01JAN20:00:00:00")...)
	out = append(out, pad80("HEADER RECORD*******MEMBER  HEADER RECORD!!!!!!!000000000000000001600000000140")...)
	out = append(out, pad80("HEADER RECORD*******DSCRPTR HEADER RECORD!!!!!!!000000000000000000000000000000")...)
	out = append(out, pad80("SAS     CALLDATA SASDATA 9.4     LIN X64")...)
	out = append(out, pad80("01JAN20:00:00:00")...)
	out = append(out, pad80(fmt.Sprintf("HEADER RECORD*******NAMESTR HEADER RECORD!!!!!!!000000%04d00000000000000000000", len(vars)))...)

	var block []byte
	for i, v := range vars {
		ns := make([]byte, 140)
		typ := uint16(2)
		if v.numeric {
			typ = 1
		}
		binary.BigEndian.PutUint16(ns[0:2], typ)
		binary.BigEndian.PutUint16(ns[4:6], 8)
		binary.BigEndian.PutUint16(ns[6:8], uint16(i+1))
		copy(ns[8:16], fmt.Sprintf("%-8s", v.name))
		binary.BigEndian.PutUint32(ns[84:88], uint32(i*8))
		block = append(block, ns...)
	}
	out = append(out, padBlock(block)...)
	out = append(out, pad80("HEADER RECORD*******OBS     HEADER RECORD!!!!!!!000000000000000000000000000000")...)

	var obs []byte
	for _, row := range rows {
		require.Len(t, row, len(vars))
		for i, cell := range row {
			switch c := cell.(type) {
			case float64:
				require.True(t, vars[i].numeric, "numeric cell in character variable %s", vars[i].name)
				obs = append(obs, ibmField(c)...)
			case string:
				field := bytes.Repeat([]byte{' '}, 8)
				copy(field, c)
				obs = append(obs, field...)
			case nil:
				field := make([]byte, 8)
				if vars[i].numeric {
					field[0] = '.'
				} else {
					field = bytes.Repeat([]byte{' '}, 8)
				}
				obs = append(obs, field...)
			default:
				t.Fatalf("unsupported cell type %T", cell)
			}
		}
	}
	out = append(out, padBlock(obs)...)

	require.NoError(t, os.WriteFile(path, out, 0o644))
}

func callReportVars() []xptVar {
	return []xptVar{
		{name: "RSSD9001", numeric: true},
		{name: "RSSD9331", numeric: true},
		{name: "RCFD2170", numeric: true},
		{name: "NAME", numeric: false},
	}
}

func TestChicago_ProcessFile_SplitsByCategory(t *testing.T) {
	rawDir := t.TempDir()
	outDir := t.TempDir()
	writeTransport(t, filepath.Join(rawDir, "call0312.xpt"), callReportVars(), [][]any{
		{1000.0, 1.0, 5000.5, "ALPHA"},
		{2000.0, 10.0, 250.0, "BRAVO"},
		{3000.0, 13.0, 125.0, "CHARLIE"},
		{4000.0, 99.0, 1.0, "DELTA"},
		{5000.0, 11.0, 2.0, "ECHO"},
	})

	st := store.New(outDir)
	src := NewChicago(ChicagoConfig{RawDir: rawDir}, st, nil, testLogger())

	files, err := src.Discover(context.Background())
	require.NoError(t, err)
	require.Len(t, files, 1)
	assert.Equal(t, period.New(2003, 4), files[0].Period)

	res, err := src.ProcessFile(context.Background(), files[0])
	require.NoError(t, err)
	assert.False(t, res.Skipped)
	assert.Equal(t, 1, res.Unmatched)
	assert.Equal(t, map[entity.Category]int{
		entity.CategoryFFIEC031041: 1,
		entity.CategoryFFIEC002:    2,
		entity.CategoryFRB2886b:    1,
	}, res.Rows)

	for _, category := range entity.Categories() {
		assert.True(t, st.PartitionExists(string(category), files[0].Period), "partition for %s", category)
	}

	tbl, err := store.ReadParquet(context.Background(), st.PartitionPath(string(entity.CategoryFFIEC002), files[0].Period))
	require.NoError(t, err)
	assert.Equal(t, []string{"REPORTING_PERIOD", "RSSD_ID", "RSSD9001", "RSSD9331", "RCFD2170", "NAME"}, tbl.Columns())

	ids, _ := tbl.Column("RSSD_ID")
	assert.Equal(t, []table.Value{table.Float(2000), table.Float(5000)}, ids)
	periods, _ := tbl.Column("REPORTING_PERIOD")
	assert.Equal(t, table.Date(time.Date(2003, 12, 31, 0, 0, 0, 0, time.UTC)), periods[0])
	names, _ := tbl.Column("NAME")
	assert.Equal(t, []table.Value{table.Text("BRAVO"), table.Text("ECHO")}, names)
}

func TestChicago_ProcessFile_AttachesDescriptions(t *testing.T) {
	rawDir := t.TempDir()
	outDir := t.TempDir()
	writeTransport(t, filepath.Join(rawDir, "call9506.xpt"), callReportVars(), [][]any{
		{1000.0, 1.0, 77.0, "ALPHA"},
	})

	dict := dictionary.New([]dictionary.VariableDescriptor{
		{Code: "RCFD2170", Description: "Total assets"},
	})
	st := store.New(outDir)
	src := NewChicago(ChicagoConfig{RawDir: rawDir}, st, dict, testLogger())

	_, err := src.ProcessFile(context.Background(), File{
		Path:   filepath.Join(rawDir, "call9506.xpt"),
		Period: period.New(1995, 2),
	})
	require.NoError(t, err)

	meta, err := store.ReadMetadata(st.PartitionPath(string(entity.CategoryFFIEC031041), period.New(1995, 2)))
	require.NoError(t, err)
	described := map[string]string{}
	for _, col := range meta.Columns {
		if col.Description != "" {
			described[col.Name] = col.Description
		}
	}
	assert.Equal(t, map[string]string{"RCFD2170": "Total assets"}, described)
}

func TestChicago_ProcessFile_SkipsWhenAllPartitionsExist(t *testing.T) {
	rawDir := t.TempDir()
	outDir := t.TempDir()
	path := filepath.Join(rawDir, "call0312.xpt")
	writeTransport(t, path, callReportVars(), [][]any{
		{1000.0, 1.0, 5000.5, "ALPHA"},
		{2000.0, 10.0, 250.0, "BRAVO"},
		{3000.0, 13.0, 125.0, "CHARLIE"},
	})

	st := store.New(outDir)
	p := period.New(2003, 4)
	for _, category := range entity.Categories() {
		target := st.PartitionPath(string(category), p)
		require.NoError(t, os.MkdirAll(filepath.Dir(target), 0o755))
		require.NoError(t, os.WriteFile(target, []byte("existing"), 0o644))
	}

	src := NewChicago(ChicagoConfig{RawDir: rawDir}, st, nil, testLogger())
	res, err := src.ProcessFile(context.Background(), File{Path: path, Period: p})
	require.NoError(t, err)
	assert.True(t, res.Skipped)

	forced := NewChicago(ChicagoConfig{RawDir: rawDir, Force: true}, st, nil, testLogger())
	res, err = forced.ProcessFile(context.Background(), File{Path: path, Period: p})
	require.NoError(t, err)
	assert.False(t, res.Skipped)
	assert.Equal(t, 1, res.Rows[entity.CategoryFFIEC002])
}

func TestChicago_ProcessFile_PostCutoffDropsCommercialSeries(t *testing.T) {
	rawDir := t.TempDir()
	outDir := t.TempDir()
	path := filepath.Join(rawDir, "call1103.xpt")
	writeTransport(t, path, callReportVars(), [][]any{
		{1000.0, 1.0, 5000.5, "ALPHA"},
		{2000.0, 10.0, 250.0, "BRAVO"},
	})

	st := store.New(outDir)
	src := NewChicago(ChicagoConfig{RawDir: rawDir}, st, nil, testLogger())
	res, err := src.ProcessFile(context.Background(), File{Path: path, Period: period.New(2011, 1)})
	require.NoError(t, err)

	assert.Equal(t, map[entity.Category]int{entity.CategoryFFIEC002: 1}, res.Rows)
	assert.False(t, st.PartitionExists(string(entity.CategoryFFIEC031041), period.New(2011, 1)))
	assert.True(t, st.PartitionExists(string(entity.CategoryFFIEC002), period.New(2011, 1)))
}

func TestChicago_ProcessFile_NoClassifierColumn(t *testing.T) {
	rawDir := t.TempDir()
	outDir := t.TempDir()
	path := filepath.Join(rawDir, "call8806.xpt")
	vars := []xptVar{
		{name: "RSSD9001", numeric: true},
		{name: "RCFD2170", numeric: true},
	}
	writeTransport(t, path, vars, [][]any{{1000.0, 5.0}})

	st := store.New(outDir)
	src := NewChicago(ChicagoConfig{RawDir: rawDir}, st, nil, testLogger())
	res, err := src.ProcessFile(context.Background(), File{Path: path, Period: period.New(1988, 2)})
	require.NoError(t, err)

	assert.False(t, res.Skipped)
	assert.Empty(t, res.Rows)
	parts, err := st.Scan()
	require.NoError(t, err)
	assert.Empty(t, parts)
}

func TestChicago_ProcessFile_IdentifierPriority(t *testing.T) {
	readBack := func(t *testing.T, vars []xptVar, row []any) *table.Table {
		t.Helper()
		rawDir := t.TempDir()
		outDir := t.TempDir()
		path := filepath.Join(rawDir, "call9903.xpt")
		writeTransport(t, path, vars, [][]any{row})

		st := store.New(outDir)
		src := NewChicago(ChicagoConfig{RawDir: rawDir}, st, nil, testLogger())
		_, err := src.ProcessFile(context.Background(), File{Path: path, Period: period.New(1999, 1)})
		require.NoError(t, err)

		tbl, err := store.ReadParquet(context.Background(), st.PartitionPath(string(entity.CategoryFFIEC002), period.New(1999, 1)))
		require.NoError(t, err)
		return tbl
	}

	t.Run("idrssd fallback", func(t *testing.T) {
		tbl := readBack(t, []xptVar{
			{name: "IDRSSD", numeric: true},
			{name: "RSSD9331", numeric: true},
		}, []any{7777.0, 10.0})
		ids, ok := tbl.Column("RSSD_ID")
		require.True(t, ok)
		assert.Equal(t, []table.Value{table.Float(7777)}, ids)
	})

	t.Run("rssd9001 overwrites existing column", func(t *testing.T) {
		tbl := readBack(t, []xptVar{
			{name: "RSSD_ID", numeric: true},
			{name: "RSSD9001", numeric: true},
			{name: "RSSD9331", numeric: true},
		}, []any{1.0, 4242.0, 10.0})
		ids, ok := tbl.Column("RSSD_ID")
		require.True(t, ok)
		assert.Equal(t, []table.Value{table.Float(4242)}, ids)
	})

	t.Run("scan skips reporting date fields", func(t *testing.T) {
		tbl := readBack(t, []xptVar{
			{name: "RSSD9999", numeric: true},
			{name: "RSSD9050", numeric: true},
			{name: "RSSD9331", numeric: true},
		}, []any{20200331.0, 555.0, 11.0})
		ids, ok := tbl.Column("RSSD_ID")
		require.True(t, ok)
		assert.Equal(t, []table.Value{table.Float(555)}, ids)
	})
}

func TestChicago_Discover(t *testing.T) {
	t.Run("extracts archives and sorts by period", func(t *testing.T) {
		rawDir := t.TempDir()
		writeZip(t, filepath.Join(rawDir, "call7703-zip.zip"), [][2]string{
			{"call7703.xpt", "raw transport bytes"},
		})
		require.NoError(t, os.WriteFile(filepath.Join(rawDir, "call0006.xpt"), []byte("x"), 0o644))
		require.NoError(t, os.WriteFile(filepath.Join(rawDir, "readme.xpt"), []byte("x"), 0o644))
		require.NoError(t, os.WriteFile(filepath.Join(rawDir, "notes.txt"), []byte("x"), 0o644))

		src := NewChicago(ChicagoConfig{RawDir: rawDir}, store.New(t.TempDir()), nil, testLogger())
		files, err := src.Discover(context.Background())
		require.NoError(t, err)

		require.Len(t, files, 2)
		assert.Equal(t, period.New(1977, 1), files[0].Period)
		assert.Equal(t, period.New(2000, 2), files[1].Period)
		assert.FileExists(t, filepath.Join(rawDir, "extracted", "call7703.xpt"))

		// A second pass finds the same files without re-extracting.
		again, err := src.Discover(context.Background())
		require.NoError(t, err)
		assert.Equal(t, files, again)
	})

	t.Run("date bounds", func(t *testing.T) {
		rawDir := t.TempDir()
		require.NoError(t, os.WriteFile(filepath.Join(rawDir, "call9912.xpt"), []byte("x"), 0o644))
		require.NoError(t, os.WriteFile(filepath.Join(rawDir, "call0006.xpt"), []byte("x"), 0o644))

		src := NewChicago(ChicagoConfig{
			RawDir:    rawDir,
			StartDate: time.Date(2000, 1, 1, 0, 0, 0, 0, time.UTC),
		}, store.New(t.TempDir()), nil, testLogger())
		files, err := src.Discover(context.Background())
		require.NoError(t, err)
		require.Len(t, files, 1)
		assert.Equal(t, period.New(2000, 2), files[0].Period)
	})

	t.Run("empty directory is a setup error", func(t *testing.T) {
		src := NewChicago(ChicagoConfig{RawDir: t.TempDir()}, store.New(t.TempDir()), nil, testLogger())
		_, err := src.Discover(context.Background())
		require.Error(t, err)
		assert.True(t, apperrors.IsSetup(err))
	})

	t.Run("nothing in range is a setup error", func(t *testing.T) {
		rawDir := t.TempDir()
		require.NoError(t, os.WriteFile(filepath.Join(rawDir, "call0006.xpt"), []byte("x"), 0o644))

		src := NewChicago(ChicagoConfig{
			RawDir:  rawDir,
			EndDate: time.Date(1980, 1, 1, 0, 0, 0, 0, time.UTC),
		}, store.New(t.TempDir()), nil, testLogger())
		_, err := src.Discover(context.Background())
		require.Error(t, err)
		assert.True(t, apperrors.IsSetup(err))
	})
}

func TestChicago_ProcessFile_UnreadableTransport(t *testing.T) {
	rawDir := t.TempDir()
	path := filepath.Join(rawDir, "call8003.xpt")
	require.NoError(t, os.WriteFile(path, []byte("definitely not a transport file"), 0o644))

	src := NewChicago(ChicagoConfig{RawDir: rawDir}, store.New(t.TempDir()), nil, testLogger())
	_, err := src.ProcessFile(context.Background(), File{Path: path, Period: period.New(1980, 1)})
	require.Error(t, err)
	assert.Equal(t, apperrors.ErrorTypeParse, apperrors.GetErrorType(err))
}
