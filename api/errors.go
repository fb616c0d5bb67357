package api

import "github.com/pkg/errors"

var (
	// ErrUnauthorized is returned when a call still fails authorization
	// after the one permitted refresh-and-replay cycle.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrPermissionDenied is returned on HTTP 403.
	ErrPermissionDenied = errors.New("permission denied")
	// ErrRateLimited is returned on HTTP 429.
	ErrRateLimited = errors.New("rate limited by server")
	// ErrNotFound is returned on HTTP 404.
	ErrNotFound = errors.New("not found")
	// ErrConflict is returned on HTTP 409.
	ErrConflict = errors.New("conflict")
	// ErrNetwork is returned on a transport-level failure with no response,
	// including the request timeout.
	ErrNetwork = errors.New("network error")
)
