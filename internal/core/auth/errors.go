package auth

import "errors"

// Authentication errors map onto gRPC codes in UnaryInterceptor.
// UNAUTHENTICATED for missing/invalid keys (does not confirm the key exists).
// PERMISSION_DENIED for revoked keys (the key exists but is blocked).
// UNAVAILABLE when the api_keys table cannot be read or written.
var (
	ErrMissingKey       = errors.New("API key required in x-api-key metadata")
	ErrInvalidKeyFormat = errors.New("invalid API key format")
	ErrUnknownKey       = errors.New("unknown secret ID")
	ErrInvalidKey       = errors.New("invalid API key")
	ErrKeyRevoked       = errors.New("API key has been revoked")
	ErrDatabase         = errors.New("database error")
)
