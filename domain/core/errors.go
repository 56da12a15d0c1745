package core

import (
	"errors"
)

// Domain errors - centralized error definitions
var (
	// Fetch errors
	ErrInvalidRange      = errors.New("invalid year range")
	ErrRemoteFetch       = errors.New("remote fetch failed")
	ErrMalformedResponse = errors.New("malformed API response")
	ErrUnknownIndicator  = errors.New("unknown indicator")
	ErrSuperseded        = errors.New("dispatch superseded by a newer request")
	ErrInsufficientData  = errors.New("insufficient data for analysis")
	ErrCacheMiss         = errors.New("cache miss")
)

// Error checking helpers
func IsFetchError(err error) bool {
	return errors.Is(err, ErrInvalidRange) ||
		errors.Is(err, ErrRemoteFetch) ||
		errors.Is(err, ErrMalformedResponse)
}

func IsSuperseded(err error) bool {
	return errors.Is(err, ErrSuperseded)
}
