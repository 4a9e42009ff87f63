package domain

import "errors"

var (
	// Common domain errors
	ErrNotFound           = errors.New("entity not found")
	ErrAlreadyExists      = errors.New("entity already exists")
	ErrInvalidArgument    = errors.New("invalid argument")
	ErrOperationFailed    = errors.New("operation failed")
	ErrReadDatabaseRow    = errors.New("failed to read database row")
	ErrInvalidExecContext = errors.New("invalid execution context")

	// Billing / reconciliation errors
	ErrIntegrityViolation  = errors.New("refusing to clear a known external customer id")
	ErrInvalidSignature    = errors.New("invalid billing event signature")
	ErrProviderUnavailable = errors.New("billing provider unavailable")
	ErrMissingConfig       = errors.New("required configuration is missing")
	ErrUnauthorized        = errors.New("unauthorized")
	ErrRateLimited         = errors.New("rate limited")
	ErrLockHeld            = errors.New("lock held by another instance")
)
