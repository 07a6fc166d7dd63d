package domain

import "errors"

// Common domain errors used across the application.
var (
	// ErrConfig is returned when the run's input cannot be trusted: a malformed
	// source descriptor, a duplicate source name, or a whitelist/PSL snapshot
	// that fails to load. It is fatal before any processing begins.
	ErrConfig = errors.New("invalid configuration")

	// ErrSourceFetch is returned when a source could not be retrieved.
	// The source is excluded from the run; the run continues.
	ErrSourceFetch = errors.New("source fetch failed")

	// ErrSourceParse is returned when source content matches no known format.
	// The source is excluded from the run; the run continues.
	ErrSourceParse = errors.New("source parse failed")

	// ErrInvalidHostname is returned when a candidate hostname is malformed.
	ErrInvalidHostname = errors.New("invalid hostname")

	// ErrPublicSuffix is returned when a hostname is itself a public suffix.
	// Blocking an entire suffix is not allowed.
	ErrPublicSuffix = errors.New("hostname is a public suffix")

	// ErrUnknownSource is returned when a record or input names a source that
	// is not part of the run's descriptor snapshot.
	ErrUnknownSource = errors.New("unknown source")

	// ErrInvalidCategory is returned when a category tag cannot be parsed.
	ErrInvalidCategory = errors.New("invalid category")
)

// IsValidationError reports whether err is a per-record validation failure.
// Such errors drop a single record and are never fatal.
func IsValidationError(err error) bool {
	return errors.Is(err, ErrInvalidHostname) || errors.Is(err, ErrPublicSuffix)
}
