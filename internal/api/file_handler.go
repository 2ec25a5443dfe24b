package api

import (
	"errors"
	"io/fs"
	"log/slog"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/mediagrab/grab-api/internal/api/shared"
)

// FileHandler serves finished download files from the download directory.
type FileHandler struct {
	dir    string
	logger *slog.Logger
}

// NewFileHandler creates a FileHandler rooted at dir.
func NewFileHandler(dir string, logger *slog.Logger) *FileHandler {
	return &FileHandler{
		dir:    dir,
		logger: logger.With("component", "file_handler"),
	}
}

// Serve handles GET /downloads/{filename}, sending the file as an attachment.
// Requests that try to escape the download directory get a 400.
func (h *FileHandler) Serve(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "filename")

	// Reject anything that is not a bare file name. filepath.Base strips
	// directory components, so a mismatch means a traversal attempt.
	if name == "" || name != filepath.Base(name) || name == "." || name == ".." {
		shared.RespondWithError(w, r, http.StatusBadRequest, "invalid filename")
		return
	}

	path := filepath.Join(h.dir, name)

	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			shared.RespondWithError(w, r, http.StatusNotFound, "file not found")
			return
		}
		shared.RespondWithErrorAndLog(r.Context(), w, r, http.StatusInternalServerError, "failed to read file", err)
		return
	}
	if info.IsDir() {
		shared.RespondWithError(w, r, http.StatusNotFound, "file not found")
		return
	}

	contentType := contentTypeFor(name)

	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", "attachment; filename="+strconv.Quote(name))

	http.ServeFile(w, r, path)
}

// contentTypeFor resolves the MIME type for a finished file. The download
// engine only produces a handful of formats, so they are mapped explicitly
// rather than relying on the host's mime tables.
func contentTypeFor(name string) string {
	switch filepath.Ext(name) {
	case ".mp4":
		return "video/mp4"
	case ".mp3":
		return "audio/mpeg"
	case ".zip":
		return "application/zip"
	case ".webm":
		return "video/webm"
	case ".m4a":
		return "audio/mp4"
	}

	if t := mime.TypeByExtension(filepath.Ext(name)); t != "" {
		return t
	}
	return "application/octet-stream"
}
