// Package store defines the persistence interfaces for the case-management
// service, together with the sentinel errors shared by all backends.
//
// Every interface except OrganizationStore operates on tenant-scoped data:
// implementations must honour the organization carried in the request
// context (see the tenant package) and return nothing when it is absent.
package store

import "errors"

// Sentinel errors for common error conditions
var (
	ErrOrganizationNotFound      = errors.New("organization not found")
	ErrOrganizationAlreadyExists = errors.New("organization already exists")
	ErrUserNotFound              = errors.New("user not found")
	ErrUserAlreadyExists         = errors.New("user already exists")
	ErrSessionNotFound           = errors.New("session not found")
	ErrSessionExpired            = errors.New("session expired")
	ErrCaseNotFound              = errors.New("case not found")
	ErrCaseAlreadyExists         = errors.New("case already exists")
	ErrFileNotFound              = errors.New("file not found")
)
