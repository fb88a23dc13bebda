// Package store manages the canonical parquet corpus. Output is laid
// out as one file per entity category and reporting period:
//
//	<root>/<category>/<YYYYQN>.parquet
//
// Partition writes are atomic: data goes to a temp file in the target
// directory and is renamed into place, so readers never observe a
// partial artifact. Existing partitions are the idempotence marker;
// callers check PartitionExists before reprocessing.
package store

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	apperrors "github.com/mplosser/data-call-report/internal/errors"
	"github.com/mplosser/data-call-report/internal/period"
	"github.com/mplosser/data-call-report/internal/table"
)

// partitionPattern matches canonical partition file names.
var partitionPattern = regexp.MustCompile(`^\d{4}Q[1-4]\.parquet$`)

// Store is a partitioned parquet corpus rooted at a directory.
type Store struct {
	root string
}

// Partition identifies one canonical artifact in the corpus.
type Partition struct {
	Category string
	Period   period.Period
	Path     string
}

// New returns a store rooted at dir. The directory does not need to
// exist yet; it is created on first write.
func New(root string) *Store {
	return &Store{root: root}
}

// Root returns the corpus root directory.
func (s *Store) Root() string { return s.root }

// PartitionPath returns the canonical location for a category and
// period, whether or not the file exists.
func (s *Store) PartitionPath(category string, p period.Period) string {
	return filepath.Join(s.root, category, p.String()+".parquet")
}

// PartitionExists reports whether the canonical artifact is present.
func (s *Store) PartitionExists(category string, p period.Period) bool {
	info, err := os.Stat(s.PartitionPath(category, p))
	return err == nil && !info.IsDir()
}

// Categories lists the category directories under the root in sorted
// order. A missing root reads as an empty corpus.
func (s *Store) Categories() ([]string, error) {
	entries, err := os.ReadDir(s.root)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read corpus root %s: %w", s.root, err)
	}
	var categories []string
	for _, entry := range entries {
		if entry.IsDir() {
			categories = append(categories, entry.Name())
		}
	}
	sort.Strings(categories)
	return categories, nil
}

// Partitions lists the partitions of one category sorted by period.
// Files that do not match the canonical naming are ignored.
func (s *Store) Partitions(category string) ([]Partition, error) {
	dir := filepath.Join(s.root, category)
	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read category %s: %w", dir, err)
	}
	var parts []Partition
	for _, entry := range entries {
		if entry.IsDir() || !partitionPattern.MatchString(entry.Name()) {
			continue
		}
		p, err := period.Parse(strings.TrimSuffix(entry.Name(), ".parquet"))
		if err != nil {
			continue
		}
		parts = append(parts, Partition{
			Category: category,
			Period:   p,
			Path:     filepath.Join(dir, entry.Name()),
		})
	}
	sort.Slice(parts, func(i, j int) bool { return parts[i].Period.Before(parts[j].Period) })
	return parts, nil
}

// Scan lists every partition in the corpus, sorted by category then
// period.
func (s *Store) Scan() ([]Partition, error) {
	categories, err := s.Categories()
	if err != nil {
		return nil, err
	}
	var all []Partition
	for _, category := range categories {
		parts, err := s.Partitions(category)
		if err != nil {
			return nil, err
		}
		all = append(all, parts...)
	}
	return all, nil
}

// WritePartition writes tbl as the canonical artifact for a category
// and period, attaching per-column descriptions as field metadata.
func (s *Store) WritePartition(category string, p period.Period, tbl *table.Table, descriptions map[string]string) error {
	path := s.PartitionPath(category, p)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return apperrors.NewWrite(path, err)
	}
	if err := WriteParquet(path, tbl, descriptions); err != nil {
		return apperrors.NewWrite(path, err)
	}
	return nil
}
