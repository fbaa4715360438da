package service

import (
	"errors"
	"fmt"

	"lendtrack/internal/auth"
)

var (
	// ErrValidation: a required field is missing or malformed.
	ErrValidation = errors.New("validation failed")
	// ErrUsernameTaken is the conflict error for a duplicate username.
	ErrUsernameTaken = errors.New("username already taken")
	// ErrInvalidCredentials covers unknown user, wrong password and inactive account alike.
	ErrInvalidCredentials = auth.ErrInvalidCredentials
	// ErrFederation: the third-party identity could not be verified.
	ErrFederation = errors.New("federated identity verification failed")
	ErrNotFound   = errors.New("not found")
	ErrForbidden  = errors.New("forbidden")
)

// errAccountInactive rejects a deactivated account. Callers that only check
// ErrInvalidCredentials cannot tell it apart from a wrong password.
var errAccountInactive = fmt.Errorf("%w: %w", ErrInvalidCredentials, auth.ErrAccountInactive)
