package domain

import "errors"

var (
	// Common domain errors
	ErrNotFound           = errors.New("entity not found")
	ErrAlreadyExists      = errors.New("entity already exists")
	ErrInvalidArgument    = errors.New("invalid argument")
	ErrInvalidExecContext = errors.New("invalid execution context")

	// Configuration and flow errors
	ErrCredentialMissing = errors.New("smm credential is not configured")
	ErrInvalidChannel    = errors.New("invalid channel identifier")
	ErrInvalidQuantity   = errors.New("quantity must be a positive number")
	ErrInvalidURL        = errors.New("url must start with http:// or https://")
	ErrInvalidAPIKey     = errors.New("api key is too short")
	ErrInvalidServiceID  = errors.New("service id must be numeric")
	ErrUnknownAction     = errors.New("unknown button action")
)
