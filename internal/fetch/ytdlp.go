package fetch

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/mediagrab/grab-api/internal/domain"
)

// Line prefixes used to multiplex progress and file reports over the
// engine's stdout.
const (
	progressLinePrefix = "GRABP "
	fileLinePrefix     = "GRABF "
)

// progressTemplate makes yt-dlp emit one parseable line per progress tick.
// Fields are space-separated; absent values render as "NA".
const progressTemplate = "download:" + progressLinePrefix +
	"%(progress.downloaded_bytes)s %(progress.total_bytes)s " +
	"%(progress.total_bytes_estimate)s %(progress.speed)s %(progress.eta)s " +
	"%(info.playlist_index)s %(info.playlist_count)s %(progress._percent_str)s"

// YtdlpFetcher implements Fetcher by executing the yt-dlp binary. Each fetch
// runs two invocations: a metadata probe to learn the title and playlist
// shape, then the download itself with line-based progress reporting.
type YtdlpFetcher struct {
	binPath string
	dir     string
	logger  *slog.Logger
}

// NewYtdlpFetcher creates a fetcher that runs binPath and writes finished
// files into dir. If logger is nil, the default logger is used.
func NewYtdlpFetcher(binPath, dir string, logger *slog.Logger) *YtdlpFetcher {
	if logger == nil {
		logger = slog.Default()
	}

	return &YtdlpFetcher{
		binPath: binPath,
		dir:     dir,
		logger:  logger.With(slog.String("component", "ytdlp_fetcher")),
	}
}

// Ensure YtdlpFetcher implements Fetcher
var _ Fetcher = (*YtdlpFetcher)(nil)

// mediaInfo is the subset of the probe output the fetcher needs.
type mediaInfo struct {
	Type    string            `json:"_type"`
	Title   string            `json:"title"`
	Entries []json.RawMessage `json:"entries"`
}

func (i *mediaInfo) isPlaylist() bool {
	return i.Type == "playlist"
}

// Fetch downloads the requested media, reporting progress through
// onProgress. It returns the produced files; bundling playlist files into
// an archive is the caller's concern.
func (f *YtdlpFetcher) Fetch(ctx context.Context, req Request, onProgress ProgressFunc) (*Result, error) {
	info, err := f.probe(ctx, req)
	if err != nil {
		return nil, err
	}

	playlist := info.isPlaylist() && req.Kind != domain.KindSingle

	files, err := f.download(ctx, req, onProgress)
	if err != nil {
		return nil, err
	}

	if len(files) == 0 {
		return nil, fmt.Errorf("engine produced no files for %s", redactURL(req.URL))
	}

	return &Result{
		Title:    info.Title,
		Files:    files,
		Playlist: playlist,
	}, nil
}

// probe resolves metadata without downloading anything.
func (f *YtdlpFetcher) probe(ctx context.Context, req Request) (*mediaInfo, error) {
	args := []string{"--dump-single-json", "--flat-playlist", "--no-warnings"}
	if req.Kind == domain.KindSingle {
		args = append(args, "--no-playlist")
	}
	args = append(args, req.URL)

	cmd := exec.CommandContext(ctx, f.binPath, args...)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("metadata probe failed: %w: %s", err, lastLine(&stderr))
	}

	var info mediaInfo
	if err := json.Unmarshal(stdout.Bytes(), &info); err != nil {
		return nil, fmt.Errorf("failed to parse probe output: %w", err)
	}

	return &info, nil
}

// download runs the engine and streams its stdout, translating progress
// lines into callbacks and collecting finished file paths.
func (f *YtdlpFetcher) download(ctx context.Context, req Request, onProgress ProgressFunc) ([]string, error) {
	cmd := exec.CommandContext(ctx, f.binPath, f.downloadArgs(req)...)

	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("failed to open engine stdout: %w", err)
	}

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("failed to start download engine: %w", err)
	}

	var (
		files []string
		last  Progress
	)

	scanner := bufio.NewScanner(stdout)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		switch {
		case strings.HasPrefix(line, progressLinePrefix):
			progress, ok := parseProgressLine(line)
			if !ok {
				f.logger.Debug("skipping malformed progress line", "line", line)
				continue
			}
			last = progress
			if onProgress != nil {
				onProgress(progress)
			}

		case strings.HasPrefix(line, fileLinePrefix):
			files = append(files, strings.TrimSpace(strings.TrimPrefix(line, fileLinePrefix)))
			if onProgress != nil {
				// The file is through transferring and being postprocessed.
				done := last
				done.FileDone = true
				done.FilePercent = 100
				onProgress(done)
			}
		}
	}

	waitErr := cmd.Wait()
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read engine output: %w", err)
	}
	if waitErr != nil {
		return nil, fmt.Errorf("download failed: %w: %s", waitErr, lastLine(&stderr))
	}

	return files, nil
}

func (f *YtdlpFetcher) downloadArgs(req Request) []string {
	format, audioOnly := FormatFor(req.Quality)

	args := []string{
		"--newline",
		"--no-colors",
		"--no-warnings",
		"--progress",
		"--progress-template", progressTemplate,
		"--print", "after_move:" + fileLinePrefix + "%(filepath)s",
		"--output", filepath.Join(f.dir, "%(title)s.%(ext)s"),
		"--format", format,
	}

	if audioOnly {
		args = append(args, "--extract-audio", "--audio-format", "mp3", "--audio-quality", "192K")
	} else {
		args = append(args, "--merge-output-format", "mp4")
	}

	switch req.Kind {
	case domain.KindSingle:
		args = append(args, "--no-playlist")
	case domain.KindPlaylist:
		args = append(args, "--yes-playlist")
	}

	return append(args, req.URL)
}

// parseProgressLine decodes one progressTemplate line. Returns false when
// the line does not carry the expected fields.
func parseProgressLine(line string) (Progress, bool) {
	fields := strings.Fields(strings.TrimPrefix(line, progressLinePrefix))
	if len(fields) < 7 {
		return Progress{}, false
	}

	downloaded := parseIntField(fields[0])
	total := parseIntField(fields[1])
	if total == 0 {
		total = parseIntField(fields[2]) // fall back to the estimate
	}

	progress := Progress{
		DownloadedBytes: downloaded,
		TotalBytes:      total,
		SpeedBPS:        parseFloatField(fields[3]),
		ETASeconds:      parseIntField(fields[4]),
		PlaylistIndex:   int(parseIntField(fields[5])),
		PlaylistCount:   int(parseIntField(fields[6])),
	}

	if total > 0 {
		progress.FilePercent = float64(downloaded) / float64(total) * 100.0
	} else if len(fields) >= 8 {
		// No byte totals; trust the engine's textual percentage.
		progress.FilePercent = parsePercentField(fields[len(fields)-1])
	}

	return progress, true
}

// parseIntField parses a numeric field, treating NA/null/empty as zero.
// The engine renders some counters as floats; those are truncated.
func parseIntField(s string) int64 {
	if isAbsent(s) {
		return 0
	}
	if v, err := strconv.ParseInt(s, 10, 64); err == nil {
		return v
	}
	if v, err := strconv.ParseFloat(s, 64); err == nil {
		return int64(v)
	}
	return 0
}

func parseFloatField(s string) float64 {
	if isAbsent(s) {
		return 0
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return v
}

func parsePercentField(s string) float64 {
	return parseFloatField(strings.TrimSuffix(strings.TrimSpace(s), "%"))
}

func isAbsent(s string) bool {
	return s == "" || s == "NA" || s == "null" || s == "None"
}

// lastLine returns the final non-empty line of buf, used to surface the
// engine's error summary without dumping its whole stderr.
func lastLine(buf *bytes.Buffer) string {
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	for i := len(lines) - 1; i >= 0; i-- {
		if line := strings.TrimSpace(lines[i]); line != "" {
			return line
		}
	}
	return ""
}

// redactURL strips the query string from a URL destined for an error
// message; signed media URLs carry tokens there.
func redactURL(u string) string {
	if i := strings.IndexByte(u, '?'); i >= 0 {
		return u[:i]
	}
	return u
}
