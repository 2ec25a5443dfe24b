package fetch

import (
	"regexp"
	"strings"
)

var (
	unsafeCharsRegex = regexp.MustCompile(`[\\/:*?"<>|]+`)
	whitespaceRegex  = regexp.MustCompile(`\s+`)
)

// SanitizeFilename returns a filesystem-safe filename. Characters that are
// unsafe on common filesystems are replaced with underscores and runs of
// whitespace are collapsed. An empty or fully-stripped name falls back to
// "download".
func SanitizeFilename(name string) string {
	if name == "" {
		return "download"
	}

	name = unsafeCharsRegex.ReplaceAllString(name, "_")
	name = whitespaceRegex.ReplaceAllString(name, " ")
	name = strings.TrimSpace(name)

	if name == "" {
		return "download"
	}
	return name
}
