package ai

import "errors"

var (
	// ErrUnavailable means the provider is not configured or not reachable.
	ErrUnavailable = errors.New("ai provider unavailable")
	// ErrRateLimited means the provider rejected the call due to quota.
	ErrRateLimited = errors.New("ai provider rate limited")
)
