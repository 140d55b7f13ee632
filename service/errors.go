// Package service holds the domain logic behind the HTTP surface: session
// lifecycle, photo intake and moderation, kiosk presence.
package service

import "errors"

// Typed outcomes returned by the services. Handlers map these to HTTP
// status codes, anything else is a 500 with a generic body.
var (
	// Unknown, inactive and expired sessions are deliberately the same
	// error so a prober can't tell a dead code from one that never existed.
	ErrSessionNotFound = errors.New("session not found")

	ErrSessionNotJoinable = errors.New("session not joinable")
	ErrPhotoNotFound      = errors.New("photo not found")
	ErrForbidden          = errors.New("forbidden")

	// The photo already reached a terminal status. Returned to the loser of
	// a moderation race instead of silently ignoring the second decision.
	ErrAlreadyDecided = errors.New("photo already decided")

	// Non-fatal: intake logs this and persists the original binary.
	ErrTranscodeFailed = errors.New("transcode failed")

	ErrSubscriptionInactive = errors.New("subscription inactive")
	ErrCodeSpaceExhausted   = errors.New("could not find a free session code")
)
