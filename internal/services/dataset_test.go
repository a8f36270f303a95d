package services

import (
	"archive/zip"
	"compress/gzip"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeZip(t *testing.T, path string, entries map[string]string) {
	t.Helper()
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()

	zw := zip.NewWriter(f)
	for name, content := range entries {
		w, err := zw.Create(name)
		require.NoError(t, err)
		_, err = io.WriteString(w, content)
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
}

func readAll(t *testing.T, rc io.ReadCloser) string {
	t.Helper()
	defer func() { require.NoError(t, rc.Close()) }()
	b, err := io.ReadAll(rc)
	require.NoError(t, err)
	return string(b)
}

func TestOpenInputPlain(t *testing.T) {
	path := filepath.Join(t.TempDir(), "statpop.csv")
	require.NoError(t, os.WriteFile(path, []byte(sampleCSV), 0o644))

	rc, err := OpenInput(path)
	require.NoError(t, err)
	assert.Equal(t, sampleCSV, readAll(t, rc))
}

func TestOpenInputZip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ag-b-00.03-vz2018statpop.zip")
	writeZip(t, path, map[string]string{
		"README.txt":                   "not the table",
		"STATPOP2018/STATPOP2018G.csv": sampleCSV,
	})

	rc, err := OpenInput(path)
	require.NoError(t, err)
	assert.Equal(t, sampleCSV, readAll(t, rc))
}

func TestOpenInputZipWithoutTable(t *testing.T) {
	path := filepath.Join(t.TempDir(), "other.zip")
	writeZip(t, path, map[string]string{"STATPOP2018N.csv": sampleCSV})

	_, err := OpenInput(path)
	assert.ErrorIs(t, err, ErrNoStatisticsFile)
}

func TestOpenInputMissing(t *testing.T) {
	_, err := OpenInput(filepath.Join(t.TempDir(), "nope.csv"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestCreateOutputGzipRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "chpopstat-20190827.csv.gz")
	wc, err := CreateOutput(path)
	require.NoError(t, err)
	_, err = io.WriteString(wc, sampleLevel16)
	require.NoError(t, err)
	require.NoError(t, wc.Commit())
	require.NoError(t, wc.Close())

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	gz, err := gzip.NewReader(f)
	require.NoError(t, err)
	assert.Equal(t, "chpopstat-20190827.csv", gz.Name)
	assert.Equal(t, sampleLevel16, readAll(t, gz))

	rc, err := OpenInput(path)
	require.NoError(t, err)
	assert.Equal(t, sampleLevel16, readAll(t, rc))
}

func TestCreateOutputPlain(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.csv")
	wc, err := CreateOutput(path)
	require.NoError(t, err)
	_, err = io.WriteString(wc, sampleLevel16)
	require.NoError(t, err)
	require.NoError(t, wc.Commit())
	require.NoError(t, wc.Close())

	b, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, sampleLevel16, string(b))
}

func TestCreateOutputDiscardedOnClose(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "out.csv.gz")
	require.NoError(t, os.WriteFile(path, []byte("previous"), 0o644))

	wc, err := CreateOutput(path)
	require.NoError(t, err)
	_, err = io.WriteString(wc, "S2CellId,Tot")
	require.NoError(t, err)
	require.NoError(t, wc.Close())

	b, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "previous", string(b))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestCreateOutputNothingBeforeCommit(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.csv")
	wc, err := CreateOutput(path)
	require.NoError(t, err)
	defer wc.Close()

	_, err = io.WriteString(wc, sampleLevel16)
	require.NoError(t, err)
	_, err = os.Stat(path)
	assert.ErrorIs(t, err, os.ErrNotExist)

	require.NoError(t, wc.Commit())
	assert.Error(t, wc.Commit())
	_, err = os.Stat(path)
	assert.NoError(t, err)
}
