package population

import (
	"errors"
	"fmt"

	"popdash/domain/core"
)

// ErrorKind tags the failure class of a fetch.
type ErrorKind string

const (
	KindInvalidRange      ErrorKind = "invalid_range"
	KindRemoteFetch       ErrorKind = "remote_fetch"
	KindMalformedResponse ErrorKind = "malformed_response"
)

// FetchError carries enough context for a view to explain what failed.
// StartYear == EndYear for single-year lookups; StatusCode is 0 when the
// request never produced an HTTP response.
type FetchError struct {
	Kind       ErrorKind
	Indicator  Indicator
	StartYear  int
	EndYear    int
	StatusCode int
	Err        error
}

func (e *FetchError) Error() string {
	var msg string
	switch e.Kind {
	case KindInvalidRange:
		msg = fmt.Sprintf("invalid year range %d:%d for %s", e.StartYear, e.EndYear, e.Indicator)
	case KindRemoteFetch:
		if e.StatusCode > 0 {
			msg = fmt.Sprintf("failed to fetch %s for %d:%d: API returned status %d", e.Indicator, e.StartYear, e.EndYear, e.StatusCode)
		} else {
			msg = fmt.Sprintf("failed to fetch %s for %d:%d", e.Indicator, e.StartYear, e.EndYear)
		}
	case KindMalformedResponse:
		msg = fmt.Sprintf("malformed response for %s %d:%d", e.Indicator, e.StartYear, e.EndYear)
	default:
		msg = "fetch failed"
	}
	if e.Err != nil {
		return msg + ": " + e.Err.Error()
	}
	return msg
}

func (e *FetchError) Unwrap() error { return e.Err }

// Is matches the core sentinel for the error's kind.
func (e *FetchError) Is(target error) bool {
	switch e.Kind {
	case KindInvalidRange:
		return target == core.ErrInvalidRange
	case KindRemoteFetch:
		return target == core.ErrRemoteFetch
	case KindMalformedResponse:
		return target == core.ErrMalformedResponse
	}
	return false
}

// NewInvalidRangeError reports a range outside [MinYear, ...] or inverted.
func NewInvalidRangeError(code Indicator, start, end int, reason string) *FetchError {
	return &FetchError{Kind: KindInvalidRange, Indicator: code, StartYear: start, EndYear: end, Err: errors.New(reason)}
}

// NewRemoteFetchError reports a non-success or failed transport exchange.
func NewRemoteFetchError(code Indicator, start, end, status int, cause error) *FetchError {
	return &FetchError{Kind: KindRemoteFetch, Indicator: code, StartYear: start, EndYear: end, StatusCode: status, Err: cause}
}

// NewMalformedResponseError reports an envelope that is not [meta, records].
func NewMalformedResponseError(code Indicator, start, end int, cause error) *FetchError {
	return &FetchError{Kind: KindMalformedResponse, Indicator: code, StartYear: start, EndYear: end, Err: cause}
}

// ValidateRange checks the fetch preconditions.
func ValidateRange(code Indicator, start, end int) error {
	if start < MinYear {
		return NewInvalidRangeError(code, start, end, fmt.Sprintf("start year must be >= %d", MinYear))
	}
	if start > end {
		return NewInvalidRangeError(code, start, end, "start year must not be after end year")
	}
	return nil
}

// ErrorView is the serializable form of a failure.
type ErrorView struct {
	Kind       ErrorKind `json:"kind"`
	Message    string    `json:"message"`
	Indicator  Indicator `json:"indicator,omitempty"`
	StartYear  int       `json:"startYear,omitempty"`
	EndYear    int       `json:"endYear,omitempty"`
	StatusCode int       `json:"status,omitempty"`
}

// ViewOf converts any error into an ErrorView. Errors that are not
// FetchErrors are reported as remote fetch failures.
func ViewOf(err error) *ErrorView {
	if err == nil {
		return nil
	}
	var fe *FetchError
	if errors.As(err, &fe) {
		return &ErrorView{
			Kind:       fe.Kind,
			Message:    fe.Error(),
			Indicator:  fe.Indicator,
			StartYear:  fe.StartYear,
			EndYear:    fe.EndYear,
			StatusCode: fe.StatusCode,
		}
	}
	return &ErrorView{Kind: KindRemoteFetch, Message: err.Error()}
}
