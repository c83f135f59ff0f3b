package domain

import "errors"

// Credential and grant errors
var (
	ErrInvalidCredentials   = errors.New("invalid credentials")
	ErrInvalidGrant         = errors.New("invalid grant")
	ErrUnsupportedGrantType = errors.New("unsupported grant type")
	ErrMissingCredentials   = errors.New("missing credentials")
	ErrClientUnauthorized   = errors.New("client unauthorized")
)

// Token decode errors. Handlers collapse all of these to a single
// "invalid or expired token" response.
var (
	ErrMalformedToken    = errors.New("malformed token")
	ErrMissingClaim      = errors.New("missing jti claim")
	ErrTokenNotFound     = errors.New("token not found")
	ErrSignatureMismatch = errors.New("token signature mismatch")
	ErrTokenExpired      = errors.New("token expired")
)

// Persistence errors
var (
	ErrIssuanceFailed   = errors.New("token cannot be created")
	ErrUserNotFound     = errors.New("user not found")
	ErrUsernameExists   = errors.New("username already exists")
	ErrEmailExists      = errors.New("email already exists")
	ErrSavingNotAllowed = errors.New("saving not allowed")
)
