package domain

import "errors"

var (
	ErrNotFound      = errors.New("not found")
	ErrLockHeld      = errors.New("lock already held")
	ErrSigningFailed = errors.New("signing failed")
	ErrInvalidBundle = errors.New("invalid bundle")

	// Cycle-local failures. The execution loop logs these and backs off; none
	// of them terminates the process.
	ErrOracleUnavailable = errors.New("price oracle unavailable")
	ErrNoRouteFound      = errors.New("no route found")
	ErrSubmit            = errors.New("bundle submission failed")
	ErrUnknownOutcome    = errors.New("bundle outcome unknown")

	// ErrFatalConfig is the only error allowed to stop the process.
	ErrFatalConfig = errors.New("fatal configuration error")
)
