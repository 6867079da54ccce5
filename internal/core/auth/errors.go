package auth

import "errors"

// Authentication failures. Missing, malformed and unknown keys are all
// UNAUTHENTICATED so a response never confirms that a key exists; a revoked
// key is PERMISSION_DENIED.
var (
	ErrMissingKey       = errors.New("API key required in x-api-key metadata")
	ErrInvalidKeyFormat = errors.New("invalid API key format")
	ErrUnknownSecret    = errors.New("API key was not issued under a known secret")
	ErrInvalidKey       = errors.New("invalid API key")
	ErrKeyRevoked       = errors.New("API key has been revoked")
	ErrKeyStore         = errors.New("API key store unavailable")
)
