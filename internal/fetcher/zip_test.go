package fetcher

import (
	"archive/zip"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeArchive(t *testing.T, entries map[string]string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "archive.zip")
	out, err := os.Create(path)
	require.NoError(t, err)

	w := zip.NewWriter(out)
	for name, content := range entries {
		f, err := w.Create(name)
		require.NoError(t, err)
		_, err = f.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())
	require.NoError(t, out.Close())
	return path
}

func TestExtractZIP_ShapefileSidecars(t *testing.T) {
	zipPath := writeArchive(t, map[string]string{
		"cb_2023_us_county_500k.shp": "geometry",
		"cb_2023_us_county_500k.shx": "index",
		"cb_2023_us_county_500k.dbf": "attributes",
		"cb_2023_us_county_500k.prj": "NAD83",
	})
	destDir := t.TempDir()

	paths, err := ExtractZIP(zipPath, destDir)
	require.NoError(t, err)
	assert.Len(t, paths, 4)

	data, err := os.ReadFile(filepath.Join(destDir, "cb_2023_us_county_500k.dbf"))
	require.NoError(t, err)
	assert.Equal(t, "attributes", string(data))
}

func TestExtractZIP_NestedDirectories(t *testing.T) {
	zipPath := writeArchive(t, map[string]string{
		"shp/inner/file.shp": "nested",
	})
	destDir := t.TempDir()

	paths, err := ExtractZIP(zipPath, destDir)
	require.NoError(t, err)
	require.Len(t, paths, 1)
	assert.Equal(t, filepath.Join(destDir, "shp", "inner", "file.shp"), paths[0])
}

func TestExtractZIP_RejectsZipSlip(t *testing.T) {
	zipPath := writeArchive(t, map[string]string{
		"../escape.txt": "outside",
	})
	destDir := t.TempDir()

	_, err := ExtractZIP(zipPath, destDir)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "escapes destination")
}

func TestExtractZIP_EmptyArchive(t *testing.T) {
	zipPath := writeArchive(t, nil)

	paths, err := ExtractZIP(zipPath, t.TempDir())
	require.NoError(t, err)
	assert.Empty(t, paths)
}

func TestExtractZIP_NotAnArchive(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bogus.zip")
	require.NoError(t, os.WriteFile(path, []byte("not a zip"), 0o644))

	_, err := ExtractZIP(path, t.TempDir())
	require.Error(t, err)
}
