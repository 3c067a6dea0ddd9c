package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidRequest is returned when request parameters are invalid
	ErrInvalidRequest = errors.New("invalid request parameters")

	// ErrCacheMiss is returned when data is not found in cache
	ErrCacheMiss = errors.New("cache miss")

	// ErrUpstreamFailure is returned when a catalog or store-locator request fails
	ErrUpstreamFailure = errors.New("upstream request failed")

	// ErrListNotFound is returned when a shopping list id is unknown
	ErrListNotFound = errors.New("shopping list not found")

	// ErrItemNotFound is returned when a shopping list item id is unknown
	ErrItemNotFound = errors.New("shopping list item not found")
)

// Reason codes attached to rankings that are empty or low confidence.
const (
	ReasonNoCandidates      = "no matching candidates"
	ReasonCoverageThreshold = "coverage below threshold"
)

// UpstreamError carries the status code of a failed upstream response.
// StatusCode is 0 when the request never got a response.
type UpstreamError struct {
	StatusCode int
	Detail     string
}

func (e *UpstreamError) Error() string {
	if e.StatusCode == 0 {
		return fmt.Sprintf("%v: %s", ErrUpstreamFailure, e.Detail)
	}
	if e.Detail == "" {
		return fmt.Sprintf("%v: status %d", ErrUpstreamFailure, e.StatusCode)
	}
	return fmt.Sprintf("%v: status %d: %s", ErrUpstreamFailure, e.StatusCode, e.Detail)
}

// Unwrap lets errors.Is match ErrUpstreamFailure.
func (e *UpstreamError) Unwrap() error {
	return ErrUpstreamFailure
}
