package session

import "errors"

var (
	// ErrInvalidRequest marks bad caller input (unknown method, malformed
	// phone number). Surfaced as a 4xx, never retried.
	ErrInvalidRequest = errors.New("invalid request")

	// ErrSessionNotFound marks an operation against an unknown or already
	// removed session id.
	ErrSessionNotFound = errors.New("session not found")
)
