package fetch

import (
	"context"

	"github.com/mediagrab/grab-api/internal/domain"
)

// Request describes one download to perform.
type Request struct {
	URL     string
	Quality domain.Quality
	Kind    domain.Kind
}

// Progress is a snapshot of download progress for the file currently being
// transferred. Byte counters and rates are zero when the engine does not
// know them.
type Progress struct {
	DownloadedBytes int64
	TotalBytes      int64
	SpeedBPS        float64
	ETASeconds      int64

	// FilePercent is the completion percentage of the current file.
	FilePercent float64

	// PlaylistIndex and PlaylistCount are 1-based position information when
	// the request resolves to a playlist, zero otherwise.
	PlaylistIndex int
	PlaylistCount int

	// FileDone is set when the current file finished transferring and is
	// being postprocessed (merged, converted, moved).
	FileDone bool
}

// OverallPercent returns the job-level completion percentage. For playlists
// it spreads each entry's file percentage across the playlist position, so
// finishing the third of four entries reports 75. The result is clamped to
// [0, 100].
func (p Progress) OverallPercent() float64 {
	percent := p.FilePercent

	if p.PlaylistIndex > 0 && p.PlaylistCount > 0 {
		count := p.PlaylistCount
		if count < 1 {
			count = 1
		}
		percent = (float64(p.PlaylistIndex-1) + p.FilePercent/100.0) / float64(count) * 100.0
	}

	if percent < 0 {
		return 0
	}
	if percent > 100 {
		return 100
	}
	return percent
}

// ProgressFunc receives progress snapshots while a fetch runs. It is called
// from the goroutine performing the fetch; implementations must be fast or
// hand off to their own machinery.
type ProgressFunc func(Progress)

// Result describes what a completed fetch produced.
type Result struct {
	// Title of the video, or of the playlist when Playlist is set.
	Title string

	// Files are the absolute paths of the produced media files.
	Files []string

	// Playlist reports whether the request resolved to a playlist download.
	Playlist bool
}

// Fetcher downloads media for a request, reporting progress along the way.
// Implementations must honor context cancellation promptly; a cancelled
// context is how cooperative job cancellation reaches the engine.
type Fetcher interface {
	Fetch(ctx context.Context, req Request, onProgress ProgressFunc) (*Result, error)
}
