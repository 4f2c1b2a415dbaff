package domain

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound       = errors.New("resource not found")
	ErrHostnameTaken  = errors.New("hostname already registered")
	ErrTenantNotFound = errors.New("tenant not found")
	ErrInternalError  = errors.New("internal server error")

	// ErrValidationTimeout marks a DNS/TLS probe that exceeded its bound.
	// Consumers treat it as invalid, never as unknown.
	ErrValidationTimeout = errors.New("validation probe timed out")
)

// ValidationError is a pre-flight rejection: bad hostname, plan limit
// exceeded, unknown tenant. No remote call has been made when it is returned.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed: %s: %s", e.Field, e.Reason)
}

// CredentialError means the provider rejected or cannot serve our token.
type CredentialError struct {
	Provider string
	Err      error
}

func (e *CredentialError) Error() string {
	return fmt.Sprintf("%s credentials rejected: %v", e.Provider, e.Err)
}

func (e *CredentialError) Unwrap() error { return e.Err }

// RemoteProvisioningError wraps a failed call to the DNS provider or the
// reverse proxy. Step names which remote operation failed.
type RemoteProvisioningError struct {
	System string
	Step   string
	Err    error
}

func (e *RemoteProvisioningError) Error() string {
	return fmt.Sprintf("%s provisioning failed at %s: %v", e.System, e.Step, e.Err)
}

func (e *RemoteProvisioningError) Unwrap() error { return e.Err }

// ConfigValidationError means a rendered proxy config failed the full-set
// syntax check. It must never be followed by a reload.
type ConfigValidationError struct {
	Output string
	Err    error
}

func (e *ConfigValidationError) Error() string {
	return fmt.Sprintf("proxy config validation failed: %v", e.Err)
}

func (e *ConfigValidationError) Unwrap() error { return e.Err }

// PersistenceError wraps a database write that failed after remote
// provisioning already succeeded, which obligates compensation.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persistence failed during %s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }
