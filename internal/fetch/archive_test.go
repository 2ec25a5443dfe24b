package fetch_test

import (
	"archive/zip"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mediagrab/grab-api/internal/fetch"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestBundleZip(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	first := writeFile(t, dir, "Track One.mp4", "aaaa")
	second := writeFile(t, dir, "Track Two.mp4", "bbbb")

	zipName, err := fetch.BundleZip(dir, "Road Trip: Best Of", []string{first, second})
	require.NoError(t, err)
	assert.Equal(t, "Road Trip_ Best Of.zip", zipName)

	reader, err := zip.OpenReader(filepath.Join(dir, zipName))
	require.NoError(t, err)
	defer func() { _ = reader.Close() }()

	names := make([]string, 0, len(reader.File))
	for _, f := range reader.File {
		names = append(names, f.Name)
	}
	assert.ElementsMatch(t, []string{"Track One.mp4", "Track Two.mp4"}, names)
}

func TestBundleZipUntitledPlaylist(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	file := writeFile(t, dir, "only.mp4", "data")

	zipName, err := fetch.BundleZip(dir, "", []string{file})
	require.NoError(t, err)
	assert.Equal(t, "playlist.zip", zipName)
	assert.FileExists(t, filepath.Join(dir, zipName))
}

func TestBundleZipSkipsMissingFiles(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	present := writeFile(t, dir, "kept.mp4", "data")
	missing := filepath.Join(dir, "vanished.mp4")

	zipName, err := fetch.BundleZip(dir, "partial", []string{present, missing})
	require.NoError(t, err)

	reader, err := zip.OpenReader(filepath.Join(dir, zipName))
	require.NoError(t, err)
	defer func() { _ = reader.Close() }()

	require.Len(t, reader.File, 1)
	assert.Equal(t, "kept.mp4", reader.File[0].Name)
}
