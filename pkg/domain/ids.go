package domain

import (
	"github.com/google/uuid"

	dErrors "coalesce/pkg/domain-errors"
)

// Typed IDs keep contact and batch identifiers from being mixed up in call
// signatures. Construct via the Parse functions at trust boundaries; direct
// casting bypasses validation.

// ContactID identifies a canonical contact record.
type ContactID uuid.UUID

// BatchID identifies a single import batch run.
type BatchID uuid.UUID

// NewContactID returns a fresh random contact ID.
func NewContactID() ContactID {
	return ContactID(uuid.New())
}

// NewBatchID returns a fresh random batch ID.
func NewBatchID() BatchID {
	return BatchID(uuid.New())
}

// ParseContactID validates external input as a contact ID.
//
// Errors: CodeInvalidInput when the value is empty, malformed, or the nil UUID.
func ParseContactID(s string) (ContactID, error) {
	u, err := parseUUID(s)
	if err != nil {
		return ContactID{}, err
	}
	return ContactID(u), nil
}

// ParseBatchID validates external input as a batch ID.
func ParseBatchID(s string) (BatchID, error) {
	u, err := parseUUID(s)
	if err != nil {
		return BatchID{}, err
	}
	return BatchID(u), nil
}

func parseUUID(s string) (uuid.UUID, error) {
	if s == "" {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, "id cannot be empty")
	}
	u, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, dErrors.Wrap(dErrors.CodeInvalidInput, "malformed id", err)
	}
	if u == uuid.Nil {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, "nil id")
	}
	return u, nil
}

func (c ContactID) String() string { return uuid.UUID(c).String() }
func (c ContactID) IsNil() bool    { return uuid.UUID(c) == uuid.Nil }

func (b BatchID) String() string { return uuid.UUID(b).String() }
func (b BatchID) IsNil() bool    { return uuid.UUID(b) == uuid.Nil }
