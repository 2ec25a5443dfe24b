// Package redact provides utilities for redacting sensitive information from
// strings before they are logged or returned in error responses. Download
// errors routinely embed media URLs with access tokens, connection strings,
// and local filesystem paths; none of that belongs in logs or API payloads.
package redact

import "regexp"

// Constants for redaction placeholders
const (
	RedactedCredentialPlaceholder = "[REDACTED_CREDENTIAL]"
	RedactedPathPlaceholder       = "[REDACTED_PATH]"
	RedactedQueryPlaceholder      = "[REDACTED_QUERY]"
)

// Precompiled regex patterns
var (
	// Database connection strings with inline credentials
	dbConnRegex = regexp.MustCompile(`(?i)(postgres|postgresql|mysql|mongodb)://[^@\s]+@`)

	// Credentials and tokens in key=value or key: value form
	passwordRegex = regexp.MustCompile(`(?i)(password|passwd|pwd|secret|token|api[_-]?key)([=:\s]['"]?|['"]?[=:])[^'"&\s]{3,}`)

	// URL query strings, which frequently carry signatures and tokens
	queryStringRegex = regexp.MustCompile(`\?[\w%.+-]+=[^"'\s]+`)

	// Local filesystem paths
	unixPathRegex = regexp.MustCompile(`(/[\w.-]+){2,}`)

	patternPlaceholders = []struct {
		pattern     *regexp.Regexp
		placeholder string
	}{
		{dbConnRegex, RedactedCredentialPlaceholder + "@"},
		{passwordRegex, RedactedCredentialPlaceholder},
		{queryStringRegex, RedactedQueryPlaceholder},
		{unixPathRegex, RedactedPathPlaceholder},
	}
)

// String returns s with all recognized sensitive fragments replaced by
// placeholders.
func String(s string) string {
	for _, p := range patternPlaceholders {
		s = p.pattern.ReplaceAllString(s, p.placeholder)
	}
	return s
}

// Error returns the redacted message of err, or the empty string for nil.
func Error(err error) string {
	if err == nil {
		return ""
	}
	return String(err.Error())
}
