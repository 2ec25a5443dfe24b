package fetch

import (
	"archive/zip"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// BundleZip bundles the given files into a single zip archive named after
// the (sanitized) title, created in dir. Untitled playlists fall back to
// "playlist". Files that no longer exist are skipped, matching how
// partially-failed playlist downloads are delivered.
// Returns the archive's base filename.
func BundleZip(dir, title string, files []string) (string, error) {
	if strings.TrimSpace(title) == "" {
		title = "playlist"
	}

	zipName := SanitizeFilename(title) + ".zip"
	zipPath := filepath.Join(dir, zipName)

	out, err := os.Create(zipPath)
	if err != nil {
		return "", fmt.Errorf("failed to create archive: %w", err)
	}
	defer func() { _ = out.Close() }()

	zw := zip.NewWriter(out)

	for _, file := range files {
		if err := addFile(zw, file); err != nil {
			_ = zw.Close()
			return "", err
		}
	}

	if err := zw.Close(); err != nil {
		return "", fmt.Errorf("failed to finalize archive: %w", err)
	}

	return zipName, nil
}

func addFile(zw *zip.Writer, path string) error {
	in, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to open %q for archiving: %w", filepath.Base(path), err)
	}
	defer func() { _ = in.Close() }()

	w, err := zw.Create(filepath.Base(path))
	if err != nil {
		return fmt.Errorf("failed to add %q to archive: %w", filepath.Base(path), err)
	}

	if _, err := io.Copy(w, in); err != nil {
		return fmt.Errorf("failed to write %q to archive: %w", filepath.Base(path), err)
	}

	return nil
}
