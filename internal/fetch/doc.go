// Package fetch contains the download engine abstraction and its yt-dlp
// backed implementation, plus the helpers shared by every engine: quality
// to format mapping, filename sanitization, playlist archive bundling, and
// progress arithmetic.
package fetch
