// Package errs contains sentinel errors used across layers for stable error mapping.
package errs

import "errors"

// Account and credential failures.
var (
	// ErrDuplicateUsername indicates the username is already registered.
	ErrDuplicateUsername = errors.New("username already exists")

	// ErrDuplicateEmail indicates the email is already registered.
	ErrDuplicateEmail = errors.New("email already exists")

	// ErrInvalidCredentials indicates an unknown account or a wrong password.
	// Both cases share one error so callers cannot enumerate usernames.
	ErrInvalidCredentials = errors.New("invalid username or password")

	// ErrAccountDisabled indicates the account exists but may not sign in.
	ErrAccountDisabled = errors.New("account disabled")

	// ErrRateLimited indicates temporary login lock due to rate limiting.
	ErrRateLimited = errors.New("too many login attempts")
)

// Token failures.
var (
	ErrTokenMalformed        = errors.New("token malformed")
	ErrTokenExpired          = errors.New("token expired")
	ErrTokenSignatureInvalid = errors.New("token signature invalid")
)

// Resource and access failures.
var (
	// ErrNotFound indicates the requested entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrUnauthenticated indicates the operation needs a principal and none was attached.
	ErrUnauthenticated = errors.New("unauthenticated")

	// ErrForbidden indicates the principal may not act on the resource.
	ErrForbidden = errors.New("not permitted")

	// ErrVersionConflict indicates optimistic concurrency failure.
	ErrVersionConflict = errors.New("version conflict")

	// ErrValidation indicates malformed or incomplete input.
	ErrValidation = errors.New("validation failed")
)

// IsTokenError reports whether err is one of the token verification failures.
func IsTokenError(err error) bool {
	return errors.Is(err, ErrTokenMalformed) ||
		errors.Is(err, ErrTokenExpired) ||
		errors.Is(err, ErrTokenSignatureInvalid)
}

// TokenErrorKind returns a short label for a token failure, used as a log field.
func TokenErrorKind(err error) string {
	switch {
	case errors.Is(err, ErrTokenExpired):
		return "expired"
	case errors.Is(err, ErrTokenSignatureInvalid):
		return "signature"
	case errors.Is(err, ErrTokenMalformed):
		return "malformed"
	default:
		return "unknown"
	}
}
