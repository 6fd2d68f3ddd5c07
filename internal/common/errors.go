// Package common defines shared constants and sentinel errors used across
// the nosuite server and admin CLI. Callers should use errors.Is to match
// these values.
package common

import "errors"

var (
	// Service lifecycle.
	ErrServiceNotReady = errors.New("service not started")
	ErrAlreadyStarted  = errors.New("service already started")

	// Auth errors. Every token sub-check collapses into ErrInvalidToken.
	ErrInvalidToken = errors.New("invalid token")
	ErrForbidden    = errors.New("forbidden")
	ErrRefuse       = errors.New("refuse")
	ErrUserExists   = errors.New("user already exists")
	ErrBadPassword  = errors.New("invalid password")

	// Storage errors.
	ErrNotFound       = errors.New("not found")
	ErrDecryptFailure = errors.New("decrypt failure")

	// Generic request / internal failures.
	ErrBadRequest = errors.New("bad request")
	ErrInternal   = errors.New("internal error")
)

// PublicMessage is the text shown to clients for err. Unknown errors never
// leak their details.
func PublicMessage(err error) string {
	switch {
	case errors.Is(err, ErrServiceNotReady):
		return "Service not started"
	case errors.Is(err, ErrAlreadyStarted):
		return "already started"
	case errors.Is(err, ErrInvalidToken):
		return "Invalid token"
	case errors.Is(err, ErrForbidden):
		return "Forbidden"
	case errors.Is(err, ErrNotFound):
		return "Not found"
	case errors.Is(err, ErrRefuse):
		return "refuse"
	case errors.Is(err, ErrUserExists):
		return "User already exists"
	case errors.Is(err, ErrBadPassword):
		return "Invalid password"
	case errors.Is(err, ErrDecryptFailure):
		return "Decrypt failure"
	case errors.Is(err, ErrBadRequest):
		return "Bad request"
	default:
		return "Internal error"
	}
}
