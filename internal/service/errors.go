package service

import "errors"

// Common service-level errors
var (
	// ErrInvalidRequest indicates the caller supplied an unusable download
	// request, such as an empty URL.
	ErrInvalidRequest = errors.New("invalid download request")
)
