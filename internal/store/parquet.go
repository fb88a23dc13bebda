package store

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/apache/arrow-go/v18/parquet"
	"github.com/apache/arrow-go/v18/parquet/compress"
	"github.com/apache/arrow-go/v18/parquet/file"
	"github.com/apache/arrow-go/v18/parquet/pqarrow"

	"github.com/mplosser/data-call-report/internal/table"
)

// descriptionKey is the field metadata key carrying the MDRM variable
// description.
const descriptionKey = "description"

// Metadata summarizes a parquet file without reading its data pages.
type Metadata struct {
	Path      string
	Rows      int64
	SizeBytes int64
	Columns   []ColumnMeta
}

// ColumnMeta is one column of a parquet schema with its description
// metadata, empty when none was attached.
type ColumnMeta struct {
	Name        string
	Description string
}

// ColumnNames returns the schema column names in order.
func (m *Metadata) ColumnNames() []string {
	names := make([]string, len(m.Columns))
	for i, col := range m.Columns {
		names[i] = col.Name
	}
	return names
}

// HasColumn reports whether the schema contains a column.
func (m *Metadata) HasColumn(name string) bool {
	for _, col := range m.Columns {
		if col.Name == name {
			return true
		}
	}
	return false
}

// WriteParquet writes tbl to path with snappy compression, storing the
// arrow schema so field metadata survives a round trip. The write goes
// through a temp file in the same directory followed by a rename.
func WriteParquet(path string, tbl *table.Table, descriptions map[string]string) error {
	rec, schema, err := buildRecord(tbl, descriptions)
	if err != nil {
		return err
	}
	defer rec.Release()

	arrowTbl := array.NewTableFromRecords(schema, []arrow.Record{rec})
	defer arrowTbl.Release()

	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".tmp-")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	cleanup := func() {
		tmp.Close()
		os.Remove(tmpPath)
	}

	chunkSize := arrowTbl.NumRows()
	if chunkSize == 0 {
		chunkSize = 1
	}
	props := parquet.NewWriterProperties(parquet.WithCompression(compress.Codecs.Snappy))
	arrowProps := pqarrow.NewArrowWriterProperties(pqarrow.WithStoreSchema())
	if err := pqarrow.WriteTable(arrowTbl, tmp, chunkSize, props, arrowProps); err != nil {
		cleanup()
		return fmt.Errorf("write parquet: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("rename into place: %w", err)
	}
	return nil
}

// ReadParquet reads a whole parquet file back into a table.
func ReadParquet(ctx context.Context, path string) (*table.Table, error) {
	pf, reader, err := openReader(path)
	if err != nil {
		return nil, err
	}
	defer pf.Close()

	arrowTbl, err := reader.ReadTable(ctx)
	if err != nil {
		return nil, fmt.Errorf("read parquet %s: %w", path, err)
	}
	defer arrowTbl.Release()
	return fromArrowTable(arrowTbl)
}

// ReadColumns reads only the named columns. Every requested column must
// exist in the file.
func ReadColumns(ctx context.Context, path string, names []string) (*table.Table, error) {
	pf, reader, err := openReader(path)
	if err != nil {
		return nil, err
	}
	defer pf.Close()

	schema, err := reader.Schema()
	if err != nil {
		return nil, fmt.Errorf("read schema %s: %w", path, err)
	}
	indices := make([]int, 0, len(names))
	for _, name := range names {
		fields := schema.FieldIndices(name)
		if len(fields) == 0 {
			return nil, fmt.Errorf("parquet %s has no column %q", path, name)
		}
		indices = append(indices, fields[0])
	}
	rowGroups := make([]int, pf.NumRowGroups())
	for i := range rowGroups {
		rowGroups[i] = i
	}

	arrowTbl, err := reader.ReadRowGroups(ctx, indices, rowGroups)
	if err != nil {
		return nil, fmt.Errorf("read columns %s: %w", path, err)
	}
	defer arrowTbl.Release()
	return fromArrowTable(arrowTbl)
}

// ReadMetadata reads row count, file size, and the schema with column
// descriptions. Data pages are not touched.
func ReadMetadata(path string) (*Metadata, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("stat parquet %s: %w", path, err)
	}
	pf, reader, err := openReader(path)
	if err != nil {
		return nil, err
	}
	defer pf.Close()

	schema, err := reader.Schema()
	if err != nil {
		return nil, fmt.Errorf("read schema %s: %w", path, err)
	}
	md := &Metadata{
		Path:      path,
		Rows:      pf.NumRows(),
		SizeBytes: info.Size(),
		Columns:   make([]ColumnMeta, 0, schema.NumFields()),
	}
	for _, field := range schema.Fields() {
		col := ColumnMeta{Name: field.Name}
		if idx := field.Metadata.FindKey(descriptionKey); idx >= 0 {
			col.Description = field.Metadata.Values()[idx]
		}
		md.Columns = append(md.Columns, col)
	}
	return md, nil
}

func openReader(path string) (*file.Reader, *pqarrow.FileReader, error) {
	pf, err := file.OpenParquetFile(path, false)
	if err != nil {
		return nil, nil, fmt.Errorf("open parquet %s: %w", path, err)
	}
	reader, err := pqarrow.NewFileReader(pf, pqarrow.ArrowReadProperties{BatchSize: 64 * 1024}, memory.DefaultAllocator)
	if err != nil {
		pf.Close()
		return nil, nil, fmt.Errorf("open parquet reader %s: %w", path, err)
	}
	return pf, reader, nil
}

// buildRecord converts a table into a single arrow record plus the
// schema describing it.
func buildRecord(tbl *table.Table, descriptions map[string]string) (arrow.Record, *arrow.Schema, error) {
	names := tbl.Columns()
	fields := make([]arrow.Field, 0, len(names))
	for _, name := range names {
		values, _ := tbl.Column(name)
		dtype, err := columnType(values)
		if err != nil {
			return nil, nil, fmt.Errorf("column %s: %w", name, err)
		}
		field := arrow.Field{Name: name, Type: dtype, Nullable: true}
		if desc := descriptions[name]; desc != "" {
			field.Metadata = arrow.NewMetadata([]string{descriptionKey}, []string{desc})
		}
		fields = append(fields, field)
	}
	schema := arrow.NewSchema(fields, nil)

	bldr := array.NewRecordBuilder(memory.DefaultAllocator, schema)
	defer bldr.Release()
	for i, name := range names {
		values, _ := tbl.Column(name)
		if err := appendColumn(bldr.Field(i), values); err != nil {
			return nil, nil, fmt.Errorf("column %s: %w", name, err)
		}
	}
	return bldr.NewRecord(), schema, nil
}

// columnType picks the arrow type for a column from the value kinds it
// holds. Integer columns promote to float when floats are present, and
// all-missing columns default to float, mirroring how the raw sources
// surface numeric data.
func columnType(values []table.Value) (arrow.DataType, error) {
	var hasFloat, hasInt, hasText, hasDate bool
	for _, v := range values {
		switch v.Kind() {
		case table.KindFloat:
			hasFloat = true
		case table.KindInt:
			hasInt = true
		case table.KindText:
			hasText = true
		case table.KindDate:
			hasDate = true
		}
	}
	if hasText && (hasFloat || hasInt || hasDate) {
		return nil, fmt.Errorf("mixed text and non-text values")
	}
	if hasDate && (hasFloat || hasInt) {
		return nil, fmt.Errorf("mixed date and numeric values")
	}
	switch {
	case hasText:
		return arrow.BinaryTypes.String, nil
	case hasDate:
		return arrow.FixedWidthTypes.Date32, nil
	case hasInt && !hasFloat:
		return arrow.PrimitiveTypes.Int64, nil
	default:
		return arrow.PrimitiveTypes.Float64, nil
	}
}

func appendColumn(bldr array.Builder, values []table.Value) error {
	switch b := bldr.(type) {
	case *array.Float64Builder:
		for _, v := range values {
			if v.IsMissing() {
				b.AppendNull()
			} else {
				b.Append(v.Float())
			}
		}
	case *array.Int64Builder:
		for _, v := range values {
			if v.IsMissing() {
				b.AppendNull()
			} else {
				b.Append(v.Int())
			}
		}
	case *array.StringBuilder:
		for _, v := range values {
			if v.IsMissing() {
				b.AppendNull()
			} else {
				b.Append(v.Text())
			}
		}
	case *array.Date32Builder:
		for _, v := range values {
			if v.IsMissing() {
				b.AppendNull()
			} else {
				b.Append(arrow.Date32FromTime(v.Date()))
			}
		}
	default:
		return fmt.Errorf("unsupported builder %T", bldr)
	}
	return nil
}

// fromArrowTable converts an arrow table into the pipeline's table
// model. Only the types the writer emits plus common parquet variants
// are supported.
func fromArrowTable(arrowTbl arrow.Table) (*table.Table, error) {
	out := table.New()
	schema := arrowTbl.Schema()
	for i := 0; i < int(arrowTbl.NumCols()); i++ {
		name := schema.Field(i).Name
		values := make([]table.Value, 0, int(arrowTbl.NumRows()))
		for _, chunk := range arrowTbl.Column(i).Data().Chunks() {
			converted, err := fromArrowArray(chunk)
			if err != nil {
				return nil, fmt.Errorf("column %s: %w", name, err)
			}
			values = append(values, converted...)
		}
		if err := out.AddColumn(name, values); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func fromArrowArray(arr arrow.Array) ([]table.Value, error) {
	values := make([]table.Value, arr.Len())
	switch a := arr.(type) {
	case *array.Float64:
		for i := range values {
			if !a.IsNull(i) {
				values[i] = table.Float(a.Value(i))
			}
		}
	case *array.Float32:
		for i := range values {
			if !a.IsNull(i) {
				values[i] = table.Float(float64(a.Value(i)))
			}
		}
	case *array.Int64:
		for i := range values {
			if !a.IsNull(i) {
				values[i] = table.Int(a.Value(i))
			}
		}
	case *array.Int32:
		for i := range values {
			if !a.IsNull(i) {
				values[i] = table.Int(int64(a.Value(i)))
			}
		}
	case *array.String:
		for i := range values {
			if !a.IsNull(i) {
				values[i] = table.Text(a.Value(i))
			}
		}
	case *array.LargeString:
		for i := range values {
			if !a.IsNull(i) {
				values[i] = table.Text(a.Value(i))
			}
		}
	case *array.Date32:
		for i := range values {
			if !a.IsNull(i) {
				values[i] = table.Date(a.Value(i).ToTime())
			}
		}
	case *array.Date64:
		for i := range values {
			if !a.IsNull(i) {
				values[i] = table.Date(a.Value(i).ToTime())
			}
		}
	case *array.Timestamp:
		unit := a.DataType().(*arrow.TimestampType).Unit
		for i := range values {
			if !a.IsNull(i) {
				values[i] = table.Date(a.Value(i).ToTime(unit))
			}
		}
	default:
		return nil, fmt.Errorf("unsupported arrow type %s", arr.DataType())
	}
	return values, nil
}
