// Package validation provides common validation utilities for configuration
// parameters across the pacegate library.
//
// Every helper returns a *errors.ValidationError, so callers can test for
// errors.ErrInvalidArgument regardless of which check failed.
package validation
