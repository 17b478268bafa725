package auth

import (
	"errors"
)

// ErrNoSession is returned when an operation needs a stored session and none
// exists.
var ErrNoSession = errors.New("no session, sign in first")

// ErrSignInInFlight is returned when a second interactive sign-in is started
// while one is already pending. Two concurrent attempts would race on the
// session file, so the orchestrator rejects the second outright.
var ErrSignInInFlight = errors.New("a sign-in attempt is already in progress")

// ConfigError indicates missing or invalid client configuration, detected
// before any network traffic.
type ConfigError struct {
	Reason string
}

func (e *ConfigError) Error() string {
	return "config error: " + e.Reason
}

// ExpiredSessionError indicates the stored session is stale and cannot be
// refreshed. The caller must run a full interactive sign-in.
type ExpiredSessionError struct {
	Reason string
}

func (e *ExpiredSessionError) Error() string {
	return "session expired: " + e.Reason
}
