package download

import (
	"archive/zip"
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/mplosser/data-call-report/internal/errors"
)

// zipMember is one named file inside a built test archive.
type zipMember struct {
	name string
	body string
}

func buildZip(t *testing.T, members []zipMember) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for _, m := range members {
		w, err := zw.Create(m.name)
		require.NoError(t, err)
		_, err = w.Write([]byte(m.body))
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

func TestMDRM_Fetch_DownloadsAndExtracts(t *testing.T) {
	csvBody := "PUBLIC\nMnemonic,Item Code,Item Name\nRCON,2170,TOTAL ASSETS\n"
	archive := buildZip(t, []zipMember{
		{name: "readme.txt", body: "about the manual"},
		{name: "mdrm/MDRM_CSV.csv", body: csvBody},
	})
	var requests atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
		w.Write(archive)
	}))
	defer server.Close()

	dir := t.TempDir()
	m := NewMDRM(MDRMConfig{URL: server.URL + "/MDRM.zip", OutDir: dir}, testClient(0), testLogger())

	res, err := m.Fetch(context.Background())
	require.NoError(t, err)
	assert.False(t, res.ZipSkipped)
	assert.False(t, res.CSVSkipped)
	assert.FileExists(t, filepath.Join(dir, "MDRM.zip"))

	data, err := os.ReadFile(filepath.Join(dir, "MDRM.csv"))
	require.NoError(t, err)
	assert.Equal(t, csvBody, string(data))
	assert.Equal(t, int64(len(csvBody)), res.SizeBytes)
	assert.Equal(t, int32(1), requests.Load())
}

func TestMDRM_Fetch_SkipsWhenCurrent(t *testing.T) {
	archive := buildZip(t, []zipMember{{name: "MDRM.csv", body: "Mnemonic\nRCON\n"}})
	var requests atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
		w.Write(archive)
	}))
	defer server.Close()

	dir := t.TempDir()
	m := NewMDRM(MDRMConfig{URL: server.URL + "/MDRM.zip", OutDir: dir}, testClient(0), testLogger())

	_, err := m.Fetch(context.Background())
	require.NoError(t, err)

	res, err := m.Fetch(context.Background())
	require.NoError(t, err)
	assert.True(t, res.ZipSkipped)
	assert.True(t, res.CSVSkipped)
	assert.Equal(t, "dictionary current", res.Summary())
	assert.Equal(t, int32(1), requests.Load())
}

func TestMDRM_Fetch_ReextractsWhenArchiveNewer(t *testing.T) {
	archive := buildZip(t, []zipMember{{name: "MDRM.csv", body: "Mnemonic\nRIAD\n"}})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(archive)
	}))
	defer server.Close()

	dir := t.TempDir()
	m := NewMDRM(MDRMConfig{URL: server.URL + "/MDRM.zip", OutDir: dir}, testClient(0), testLogger())

	_, err := m.Fetch(context.Background())
	require.NoError(t, err)

	// Age the extracted CSV so the archive looks newer.
	past := time.Now().Add(-time.Hour)
	require.NoError(t, os.Chtimes(filepath.Join(dir, "MDRM.csv"), past, past))

	res, err := m.Fetch(context.Background())
	require.NoError(t, err)
	assert.True(t, res.ZipSkipped)
	assert.False(t, res.CSVSkipped)
}

func TestMDRM_Fetch_NoCSVMemberIsParseError(t *testing.T) {
	archive := buildZip(t, []zipMember{{name: "readme.txt", body: "no data here"}})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(archive)
	}))
	defer server.Close()

	dir := t.TempDir()
	m := NewMDRM(MDRMConfig{URL: server.URL + "/MDRM.zip", OutDir: dir}, testClient(0), testLogger())

	_, err := m.Fetch(context.Background())
	require.Error(t, err)
	assert.Equal(t, apperrors.ErrorTypeParse, apperrors.GetErrorType(err))
	assert.NoFileExists(t, filepath.Join(dir, "MDRM.csv"))
}
