package domain

import "errors"

// Common validation errors for DownloadJob
var (
	ErrEmptyJobID         = errors.New("job ID cannot be empty")
	ErrEmptyJobURL        = errors.New("job URL cannot be empty")
	ErrInvalidJobStatus   = errors.New("invalid job status")
	ErrInvalidJobProgress = errors.New("job progress must be between 0 and 100")
	ErrInvalidTransition  = errors.New("invalid job status transition")
)
