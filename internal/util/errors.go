package util

import "errors"

// Sentinel errors for common failure modes
var (
	// ErrImageRead indicates a photo's pixel buffer is missing, corrupt or undecodable
	ErrImageRead = errors.New("image unreadable")

	// ErrNotFound indicates a required resource (e.g. a cached session) was not found
	ErrNotFound = errors.New("not found")

	// ErrInvalidConfig indicates invalid analysis configuration
	ErrInvalidConfig = errors.New("invalid configuration")

	// ErrCancelled indicates an analysis run was cancelled before a session was published
	ErrCancelled = errors.New("analysis cancelled")
)
