package auth

import "errors"

var (
	// ErrUnauthenticated is returned when no valid session exists
	ErrUnauthenticated = errors.New("no valid session")
	// ErrMissingCredentials is returned when the document or password is blank
	ErrMissingCredentials = errors.New("document and password are required")
	// ErrInvalidIdentity is returned when the backend's login response
	// doesn't describe a usable identity
	ErrInvalidIdentity = errors.New("backend returned an invalid identity")
	// ErrSignInRejected matches every SignInError
	ErrSignInRejected = errors.New("sign-in rejected")
)

// SignInError is returned when the backend login exchange fails.
// It unwraps to the underlying apierr.APIError, apierr.GenericError
// or ErrInvalidIdentity
type SignInError struct {
	Err error
}

// NewSignInError constructs a new SignInError
func NewSignInError(err error) *SignInError {
	return &SignInError{
		Err: err,
	}
}

func (e *SignInError) Error() string {
	return "sign-in rejected: " + e.Err.Error()
}

// Unwrap returns the underlying failure
func (e *SignInError) Unwrap() error {
	return e.Err
}

// Is makes errors.Is(err, ErrSignInRejected) hold
func (e *SignInError) Is(target error) bool {
	return target == ErrSignInRejected
}
