package identity

import (
	"errors"
	"fmt"
)

// AuthError indicates a failure in the OAuth flow or validation
// plumbing: a transport error, a malformed response, or a provider
// rejection. It is returned by every Client operation except Validate,
// which degrades to false instead.
type AuthError struct {
	// Op is the operation that failed (e.g. "exchange", "refresh").
	Op string

	// Err is the underlying cause, if any.
	Err error
}

func (e *AuthError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("auth error (%s): %v", e.Op, e.Err)
	}
	return fmt.Sprintf("auth error (%s)", e.Op)
}

func (e *AuthError) Unwrap() error {
	return e.Err
}

// IsAuthError reports whether err (or any error in its chain) is an AuthError.
func IsAuthError(err error) bool {
	var authErr *AuthError
	return errors.As(err, &authErr)
}
