package services

import "errors"

// Sentinel errors forming the external failure taxonomy. Handlers translate
// these to HTTP responses; anything else is an internal error and surfaces as
// a generic 500.
var (
	// ErrInvalidCredentials covers every login failure shape: unknown email,
	// wrong password, deactivated account. One error, no enumeration signal.
	ErrInvalidCredentials = errors.New("invalid credentials")

	// ErrTokenInvalid covers missing, expired and revoked tokens alike.
	// Callers must not be able to tell which case occurred.
	ErrTokenInvalid = errors.New("invalid token")

	// ErrInsufficientRole means authenticated but unauthorized.
	ErrInsufficientRole = errors.New("insufficient role")

	// ErrStoreUnavailable marks an ambiguous infrastructure failure: the
	// lookup neither succeeded nor definitively failed. Never conflated with
	// ErrTokenInvalid — the two are logged and rate-limited differently.
	ErrStoreUnavailable = errors.New("auth store unavailable")

	// ErrTokenCollision marks a token-hash uniqueness conflict on insert.
	// Vanishingly unlikely with 256-bit tokens; treated as a generation fault
	// and retried once with a fresh token, never stored.
	ErrTokenCollision = errors.New("token hash collision")

	// ErrEmailTaken is returned by registration for an already-used email.
	ErrEmailTaken = errors.New("email already registered")

	// ErrUserNotFound is returned by user management lookups.
	ErrUserNotFound = errors.New("user not found")

	// ErrWeakPassword is returned when a new password fails the strength check.
	ErrWeakPassword = errors.New("password does not meet strength requirements")
)
