package auth

import "errors"

var (
	// ErrUnauthenticated covers a missing, invalid, expired or malformed credential.
	// Callers must not tell these apart.
	ErrUnauthenticated = errors.New("unauthenticated")

	// ErrUnauthorized is returned when a valid identity fails a permission check
	ErrUnauthorized = errors.New("unauthorized")

	// ErrExchangeRejected is returned when the session store refuses a session exchange
	ErrExchangeRejected = errors.New("session exchange rejected")

	// ErrRemoteUnavailable is returned when the session store could not be reached or timed out
	ErrRemoteUnavailable = errors.New("session store unavailable")
)
