package types

import "errors"

// Sentinel errors for common error conditions.
var (
	// ErrNotFound is returned when a requested record is not found.
	ErrNotFound = errors.New("not found")

	// ErrInvalidConfig is returned when configuration is invalid.
	ErrInvalidConfig = errors.New("invalid configuration")

	// ErrProviderNotAvailable is returned when a provider is not available.
	ErrProviderNotAvailable = errors.New("provider not available")

	// ErrBackendUnavailable is returned by every operation when no
	// key-value backend is configured.
	ErrBackendUnavailable = errors.New("backend unavailable")

	// ErrBackend wraps failures raised by a backend call.
	ErrBackend = errors.New("backend error")

	// ErrMalformedRecord is returned when stored fields cannot be decoded.
	ErrMalformedRecord = errors.New("malformed record")

	// ErrInvalidVector is returned for empty, non-finite or zero-magnitude vectors.
	ErrInvalidVector = errors.New("invalid vector")

	// ErrDimensionMismatch is returned when a vector has the wrong length.
	ErrDimensionMismatch = errors.New("dimension mismatch")

	// ErrInvalidID is returned when a record ID is empty.
	ErrInvalidID = errors.New("invalid id")

	// ErrEmbeddingFailed is returned when embedding generation fails.
	ErrEmbeddingFailed = errors.New("embedding failed")

	// ErrCancelled is returned when an operation is cancelled.
	ErrCancelled = errors.New("operation cancelled")
)
