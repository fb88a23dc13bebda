package files

import (
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// FileInfo describes one file selected for removal.
type FileInfo struct {
	Path string
	Size int64
}

// listBySuffix returns the regular files directly inside dir whose
// name carries the extension, compared case-insensitively. A missing
// directory yields nothing.
func listBySuffix(dir, ext string) []FileInfo {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil
	}
	var files []FileInfo
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(strings.ToLower(entry.Name()), ext) {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		files = append(files, FileInfo{Path: filepath.Join(dir, entry.Name()), Size: info.Size()})
	}
	return files
}

// findBySuffix walks root recursively and returns the files whose name
// carries the extension, compared case-insensitively.
func findBySuffix(root, ext string) []FileInfo {
	var files []FileInfo
	filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return nil
		}
		if !strings.HasSuffix(strings.ToLower(d.Name()), ext) {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return nil
		}
		files = append(files, FileInfo{Path: path, Size: info.Size()})
		return nil
	})
	return files
}

// statFile returns the FileInfo for path when it exists as a regular
// file.
func statFile(path string) (FileInfo, bool) {
	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		return FileInfo{}, false
	}
	return FileInfo{Path: path, Size: info.Size()}, true
}

// treeSize returns the file count and total byte size of a directory
// tree.
func treeSize(root string) (int, int64) {
	var count int
	var size int64
	filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return nil
		}
		count++
		size += info.Size()
		return nil
	})
	return count, size
}

// extractionDirs lists the extraction directories beneath the raw
// root: <raw>/extracted plus <raw>/<source>/extracted.
func extractionDirs(rawDir string) []string {
	candidates := []string{filepath.Join(rawDir, "extracted")}
	if matches, err := filepath.Glob(filepath.Join(rawDir, "*", "extracted")); err == nil {
		candidates = append(candidates, matches...)
	}
	var dirs []string
	for _, dir := range candidates {
		if info, err := os.Stat(dir); err == nil && info.IsDir() {
			dirs = append(dirs, dir)
		}
	}
	return dirs
}

// archiveDirs lists the directories that may hold downloaded archives:
// the raw root and its immediate subdirectories.
func archiveDirs(rawDir string) []string {
	dirs := []string{rawDir}
	entries, err := os.ReadDir(rawDir)
	if err != nil {
		return dirs
	}
	for _, entry := range entries {
		if entry.IsDir() && entry.Name() != "extracted" {
			dirs = append(dirs, filepath.Join(rawDir, entry.Name()))
		}
	}
	return dirs
}
