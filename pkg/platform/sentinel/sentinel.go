package sentinel

import "errors"

// Sentinel errors for infrastructure facts. Stores and clients return
// these (optionally wrapped) so services can translate them into domain
// errors with the right code.
//
// These represent factual states about resources, not validation
// failures:
// - ErrNotFound: entity does not exist in the store
// - ErrConflict: write collided with an existing entity
// - ErrCacheMiss: result cache has no entry for the key
// - ErrUnavailable: backing service temporarily unreachable
//
// For validation errors (bad input, missing fields), use
// pkg/domain-errors directly.
var (
	ErrNotFound    = errors.New("not found")
	ErrConflict    = errors.New("conflict")
	ErrCacheMiss   = errors.New("cache miss")
	ErrUnavailable = errors.New("unavailable")
)
