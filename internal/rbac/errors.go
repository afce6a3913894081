package rbac

import "errors"

var (
	// ErrUnauthorized means the principal resolved but lacks the role or
	// ownership the operation requires. A denial is never downgraded to an
	// empty result and never retried.
	ErrUnauthorized = errors.New("rbac: access denied")

	// ErrUnauthenticated means no principal resolved at all. Distinct from
	// ErrUnauthorized so the boundary can answer 401 instead of 403.
	ErrUnauthenticated = errors.New("rbac: authentication required")

	ErrInvalidInput = errors.New("rbac: invalid input")
)
