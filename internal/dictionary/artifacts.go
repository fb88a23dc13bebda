package dictionary

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"strings"

	"github.com/mplosser/data-call-report/internal/store"
	"github.com/mplosser/data-call-report/internal/table"
)

// Artifact column names shared by the CSV and parquet outputs.
const (
	artifactVariable = "Variable"
	artifactDesc     = "Description"
	artifactForms    = "ReportingForms"
)

// SaveArtifacts writes the parsed dictionary as both a human-readable
// CSV and a parquet file. Forms are serialized comma-joined.
func SaveArtifacts(csvPath, parquetPath string, descriptors []VariableDescriptor) error {
	if err := saveCSV(csvPath, descriptors); err != nil {
		return err
	}
	tbl, err := artifactTable(descriptors)
	if err != nil {
		return err
	}
	if err := store.WriteParquet(parquetPath, tbl, nil); err != nil {
		return fmt.Errorf("write dictionary parquet: %w", err)
	}
	return nil
}

func saveCSV(path string, descriptors []VariableDescriptor) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create dictionary csv: %w", err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write([]string{artifactVariable, artifactDesc, artifactForms}); err != nil {
		return fmt.Errorf("write dictionary csv header: %w", err)
	}
	for _, desc := range descriptors {
		row := []string{desc.Code, desc.Description, strings.Join(desc.Forms, ",")}
		if err := w.Write(row); err != nil {
			return fmt.Errorf("write dictionary csv row: %w", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("flush dictionary csv: %w", err)
	}
	return f.Close()
}

func artifactTable(descriptors []VariableDescriptor) (*table.Table, error) {
	codes := make([]table.Value, len(descriptors))
	descs := make([]table.Value, len(descriptors))
	forms := make([]table.Value, len(descriptors))
	for i, desc := range descriptors {
		codes[i] = table.Text(desc.Code)
		descs[i] = table.Text(desc.Description)
		forms[i] = table.Text(strings.Join(desc.Forms, ","))
	}
	tbl := table.New()
	if err := tbl.AddColumn(artifactVariable, codes); err != nil {
		return nil, err
	}
	if err := tbl.AddColumn(artifactDesc, descs); err != nil {
		return nil, err
	}
	if err := tbl.AddColumn(artifactForms, forms); err != nil {
		return nil, err
	}
	return tbl, nil
}

// LoadPreferred loads the dictionary from the parquet artifact when it
// exists, otherwise from the CSV artifact. Callers typically fall back
// to Empty on error so processing can continue without descriptions.
func LoadPreferred(ctx context.Context, parquetPath, csvPath string) (*Dictionary, error) {
	if _, err := os.Stat(parquetPath); err == nil {
		return Load(ctx, parquetPath)
	}
	if _, err := os.Stat(csvPath); err == nil {
		return LoadCSV(csvPath)
	}
	return nil, fmt.Errorf("no dictionary artifact at %s or %s", parquetPath, csvPath)
}

// Load reads the parquet artifact.
func Load(ctx context.Context, path string) (*Dictionary, error) {
	tbl, err := store.ReadParquet(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("read dictionary parquet: %w", err)
	}
	descriptors, err := descriptorsFromTable(tbl)
	if err != nil {
		return nil, fmt.Errorf("dictionary parquet %s: %w", path, err)
	}
	return New(descriptors), nil
}

// LoadCSV reads the CSV artifact.
func LoadCSV(path string) (*Dictionary, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read dictionary csv: %w", err)
	}
	r := csv.NewReader(strings.NewReader(string(data)))
	r.FieldsPerRecord = -1
	records, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("parse dictionary csv: %w", err)
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("dictionary csv %s is empty", path)
	}

	varIdx := findExact(records[0], artifactVariable)
	descIdx := findExact(records[0], artifactDesc)
	formsIdx := findExact(records[0], artifactForms)
	if varIdx == -1 || descIdx == -1 {
		return nil, fmt.Errorf("dictionary csv %s missing %s or %s column", path, artifactVariable, artifactDesc)
	}

	var descriptors []VariableDescriptor
	for _, rec := range records[1:] {
		code := strings.TrimSpace(field(rec, varIdx))
		if code == "" {
			continue
		}
		descriptors = append(descriptors, VariableDescriptor{
			Code:        code,
			Description: field(rec, descIdx),
			Forms:       canonicalizeForms(field(rec, formsIdx)),
		})
	}
	return New(descriptors), nil
}

func descriptorsFromTable(tbl *table.Table) ([]VariableDescriptor, error) {
	codes, okCodes := tbl.Column(artifactVariable)
	descs, okDescs := tbl.Column(artifactDesc)
	if !okCodes || !okDescs {
		return nil, fmt.Errorf("missing %s or %s column", artifactVariable, artifactDesc)
	}
	forms, _ := tbl.Column(artifactForms)

	descriptors := make([]VariableDescriptor, 0, len(codes))
	for i, code := range codes {
		if code.IsMissing() || code.Text() == "" {
			continue
		}
		desc := VariableDescriptor{Code: code.Text(), Description: descs[i].Text()}
		if forms != nil {
			desc.Forms = canonicalizeForms(forms[i].Text())
		}
		descriptors = append(descriptors, desc)
	}
	return descriptors, nil
}
