package sentinel

import "errors"

// Sentinel errors for infrastructure facts. Stores and infrastructure layers
// return these (optionally wrapped) so services can translate them into domain
// errors.
//
// These represent factual states about resources, not validation failures:
// - ErrNotFound: contact/audit entry does not exist in store
// - ErrConflict: write lost a race or hit a uniqueness constraint
// - ErrDuplicate: (source_system, external_id) already recorded
// - ErrInvalidState: entity in wrong state for requested operation
// - ErrUnavailable: backing store or lock service temporarily unavailable
//
// For validation errors (bad input, missing fields), use pkg/domain-errors.
var (
	ErrNotFound     = errors.New("not found")
	ErrConflict     = errors.New("conflict")
	ErrDuplicate    = errors.New("duplicate")
	ErrInvalidState = errors.New("invalid state")
	ErrUnavailable  = errors.New("unavailable")
)
