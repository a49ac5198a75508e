// Package common defines shared constants and sentinel errors used across
// the storage and service layers of rexsync. Callers should use errors.Is to
// match these values.
package common

import "errors"

var (
	// Repository-level errors.
	ErrorNotFound = errors.New("not found")
	ErrDuplicate  = errors.New("record already exists")

	// Service-level errors.
	ErrorInternal = errors.New("internal error")

	// Configuration errors.
	ErrInvalidConfig = errors.New("invalid configuration")
)
