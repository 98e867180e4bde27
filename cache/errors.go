package cache

import "github.com/arkade-dev/go-cache-aside/internal/cacheinfra"

// ErrEntryNotFound is returned by Backend.Get when no entry exists under
// the requested key.
var ErrEntryNotFound = cacheinfra.ErrEntryNotFound

// KeyDerivationError reports a suffix value that cannot be turned into a
// stable cache key. This is a programmer error (an unserializable query
// descriptor), not a transient fault, so callers should not retry.
type KeyDerivationError struct {
	Namespace string
	Message   string
}

// Error implements the error interface.
func (e *KeyDerivationError) Error() string {
	return "cache: cannot derive key in namespace " + e.Namespace + ": " + e.Message
}

// DecodeError reports a present cache entry whose value could not be read
// back as the expected type. The entry is treated as corrupt; falling
// through to the underlying store would mask the inconsistency.
type DecodeError struct {
	Key     string
	Message string
	Cause   error
}

// Error implements the error interface.
func (e *DecodeError) Error() string {
	msg := "cache: unreadable entry " + e.Key + ": " + e.Message
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

// Unwrap exposes the underlying decode failure, if any.
func (e *DecodeError) Unwrap() error { return e.Cause }
