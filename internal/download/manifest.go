package download

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// ManifestName is the checksum manifest kept next to the archives.
const ManifestName = "manifest.json"

// ManifestEntry records one completed download.
type ManifestEntry struct {
	URL          string    `json:"url"`
	SizeBytes    int64     `json:"size_bytes"`
	Checksum     string    `json:"blake2b256"`
	DownloadedAt time.Time `json:"downloaded_at"`
}

// Manifest tracks what was downloaded and how large it was. Comparing a
// recorded size against the file on disk catches transfers cut short by
// a crash or a lost connection, which a bare existence check would
// accept forever. Safe for concurrent use.
type Manifest struct {
	mu      sync.Mutex
	path    string
	entries map[string]ManifestEntry
}

// LoadManifest reads the manifest at path. A missing file yields an
// empty manifest.
func LoadManifest(path string) (*Manifest, error) {
	m := &Manifest{path: path, entries: make(map[string]ManifestEntry)}
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return m, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read manifest %s: %w", path, err)
	}
	if err := json.Unmarshal(data, &m.entries); err != nil {
		return nil, fmt.Errorf("parse manifest %s: %w", path, err)
	}
	return m, nil
}

// Entry returns the recorded entry for a file name.
func (m *Manifest) Entry(name string) (ManifestEntry, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[name]
	return e, ok
}

// Len returns the number of recorded entries.
func (m *Manifest) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}

// Record stores the entry under the file name and persists the
// manifest, replacing any previous entry for the same file.
func (m *Manifest) Record(name string, e ManifestEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[name] = e
	return m.save()
}

// save writes the manifest atomically. Callers hold the lock.
func (m *Manifest) save() error {
	data, err := json.MarshalIndent(m.entries, "", "  ")
	if err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(m.path), "."+filepath.Base(m.path)+".tmp-")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), m.path)
}
