// Package services defines the business logic of the engagement-safety
// layer: notification creation and caching, admin lookups, and the gated
// write actions (comments, reports). This file centralizes service-level
// error values so they can be consistently returned by service methods and
// checked by callers with errors.Is.
package services

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrCatchNotFound indicates the referenced catch does not exist.
	ErrCatchNotFound = errors.New("catch not found")

	// ErrCommentNotFound indicates the referenced comment does not exist.
	ErrCommentNotFound = errors.New("comment not found")

	// ErrEmptyBody is returned when a comment body is empty or whitespace.
	ErrEmptyBody = errors.New("comment body is empty")

	// ErrEmptyReason is returned when a report carries no reason.
	ErrEmptyReason = errors.New("report reason is empty")

	// ErrInvalidTarget is returned when a report names an unknown target
	// type or a target that does not exist.
	ErrInvalidTarget = errors.New("invalid report target")

	// ErrClearFailed wraps a failed notification clear. Unlike the other
	// notification operations this one must reach the user: silently
	// swallowing it would let them believe their data was deleted.
	ErrClearFailed = errors.New("could not clear notifications")

	// ErrRateLimited is the sentinel matched by errors.Is against a
	// RateLimitedError.
	ErrRateLimited = errors.New("rate limited")
)

// RateLimitedError reports a rejected gated action together with the time
// until the sliding window frees a slot, for Retry-After style hints.
type RateLimitedError struct {
	Action  string
	ResetIn time.Duration
}

// Error implements the error interface.
func (e *RateLimitedError) Error() string {
	return fmt.Sprintf("%s: rate limited, resets in %s", e.Action, e.ResetIn)
}

// Is makes errors.Is(err, ErrRateLimited) match.
func (e *RateLimitedError) Is(target error) bool { return target == ErrRateLimited }
