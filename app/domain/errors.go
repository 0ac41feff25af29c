package domain

import "errors"

// Session and identity errors
var (
	// ErrNoSession means the identity provider confirmed that no session
	// exists. It is the only provider error that may trigger logout logic;
	// every other provider failure is treated as transient.
	ErrNoSession = errors.New("no session")

	ErrSessionExpired      = errors.New("session expired")
	ErrSessionInactive     = errors.New("session inactive")
	ErrMissingIdentity     = errors.New("session has no identity")
	ErrIdentityUnavailable = errors.New("identity provider unavailable")
	ErrRefreshFailed       = errors.New("session refresh failed")
	ErrSignInFailed        = errors.New("sign-in could not be initiated")
)

// Storage errors
var (
	ErrKeyNotFound = errors.New("key not found")
)

// Lifecycle errors
var (
	ErrManagerClosed = errors.New("session manager closed")
)
