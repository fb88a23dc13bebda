package download

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestManifest_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), ManifestName)

	m, err := LoadManifest(path)
	require.NoError(t, err)
	assert.Equal(t, 0, m.Len())

	first := ManifestEntry{
		URL:          "https://example.com/call8503-zip.zip",
		SizeBytes:    1024,
		Checksum:     "0a1b2c",
		DownloadedAt: time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC),
	}
	require.NoError(t, m.Record("call8503.zip", first))
	require.NoError(t, m.Record("call8506.zip", ManifestEntry{SizeBytes: 2048}))

	reloaded, err := LoadManifest(path)
	require.NoError(t, err)
	assert.Equal(t, 2, reloaded.Len())

	entry, ok := reloaded.Entry("call8503.zip")
	require.True(t, ok)
	assert.Equal(t, first.URL, entry.URL)
	assert.Equal(t, first.SizeBytes, entry.SizeBytes)
	assert.Equal(t, first.Checksum, entry.Checksum)
	assert.True(t, entry.DownloadedAt.Equal(first.DownloadedAt))

	_, ok = reloaded.Entry("call8509.zip")
	assert.False(t, ok)
}

func TestManifest_RecordReplacesEntry(t *testing.T) {
	path := filepath.Join(t.TempDir(), ManifestName)
	m, err := LoadManifest(path)
	require.NoError(t, err)

	require.NoError(t, m.Record("call9012.zip", ManifestEntry{SizeBytes: 10}))
	require.NoError(t, m.Record("call9012.zip", ManifestEntry{SizeBytes: 20}))

	assert.Equal(t, 1, m.Len())
	entry, ok := m.Entry("call9012.zip")
	require.True(t, ok)
	assert.Equal(t, int64(20), entry.SizeBytes)
}

func TestLoadManifest_CorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), ManifestName)
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o644))

	_, err := LoadManifest(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parse manifest")
}
