package fetch

import "github.com/mediagrab/grab-api/internal/domain"

// FormatFor maps a requested quality to a yt-dlp format selector and
// reports whether the download is audio-only. Non-existing formats
// gracefully fall back as the engine resolves the closest match.
func FormatFor(quality domain.Quality) (format string, audioOnly bool) {
	switch domain.NormalizeQuality(quality) {
	case domain.QualityAudio:
		return "bestaudio/best", true
	case domain.Quality1080p:
		return "bestvideo[height<=1080][ext=mp4]+bestaudio[ext=m4a]/" +
			"best[height<=1080][ext=mp4]/best[height<=1080]", false
	case domain.Quality720p:
		return "bestvideo[height<=720][ext=mp4]+bestaudio[ext=m4a]/" +
			"best[height<=720][ext=mp4]/best[height<=720]", false
	case domain.Quality480p:
		return "bestvideo[height<=480][ext=mp4]+bestaudio[ext=m4a]/" +
			"best[height<=480][ext=mp4]/best[height<=480]", false
	default:
		return "bestvideo[ext=mp4]+bestaudio[ext=m4a]/best[ext=mp4]/best", false
	}
}
