package workflow

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrModalClosed         = errors.New("report form is not open")
	ErrSubmitInProgress    = errors.New("a submission is already in progress")
	ErrSelectionSuperseded = errors.New("location request superseded")
)

// Errors a Locator may wrap to describe why no position is available.
var (
	ErrPermissionDenied    = errors.New("location permission denied")
	ErrPositionUnavailable = errors.New("position unavailable")
	ErrLocationTimeout     = errors.New("location request timed out")
	ErrLocationUnsupported = errors.New("geolocation is not supported")
)

// ValidationError blocks a submission before anything is sent.
type ValidationError struct {
	Missing []string
	Invalid []string
}

func (e *ValidationError) Error() string {
	var parts []string
	if len(e.Missing) > 0 {
		parts = append(parts, "missing required fields: "+strings.Join(e.Missing, ", "))
	}
	if len(e.Invalid) > 0 {
		parts = append(parts, "invalid fields: "+strings.Join(e.Invalid, ", "))
	}
	return strings.Join(parts, "; ")
}

// LocationUnavailableError reports a failed device location request. The user can still
// pick the location on the map.
type LocationUnavailableError struct {
	Err error
}

func (e *LocationUnavailableError) Error() string {
	return fmt.Sprintf("location unavailable: %v", e.Err)
}

func (e *LocationUnavailableError) Unwrap() error { return e.Err }

// NetworkError means the request never reached the service or no response came back.
// The draft is kept so the user can retry.
type NetworkError struct {
	Err error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("network error: %v", e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }

// SubmissionRejectedError carries the service's own failure message, shown verbatim.
type SubmissionRejectedError struct {
	StatusCode int
	Reason     string
}

func (e *SubmissionRejectedError) Error() string {
	return e.Reason
}
