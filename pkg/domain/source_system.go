package domain

import dErrors "coalesce/pkg/domain-errors"

// SourceSystem identifies the external platform a piece of data originated
// from. It is an immutable provenance tag on a contact once set.
//
// Usage: construct via ParseSourceSystem at adapter boundaries; the engine
// never branches on a specific source internally, only on relative priority.
type SourceSystem string

// Known platforms feeding the database. The set is an allowlist so a typo in
// a source adapter cannot mint a new provenance tag.
const (
	SourceMembership SourceSystem = "membership"
	SourcePayments   SourceSystem = "payments"
	SourceTicketing  SourceSystem = "ticketing"
	SourceLegacyCRM  SourceSystem = "legacy_crm"
	SourceAccounting SourceSystem = "accounting"
	SourceStaff      SourceSystem = "staff"
)

// validSourceSystems is the single source of truth for valid platforms.
var validSourceSystems = map[SourceSystem]bool{
	SourceMembership: true,
	SourcePayments:   true,
	SourceTicketing:  true,
	SourceLegacyCRM:  true,
	SourceAccounting: true,
	SourceStaff:      true,
}

// ParseSourceSystem constructs a SourceSystem from external input.
//
// Errors: CodeInvalidInput when the value is empty or unsupported.
func ParseSourceSystem(s string) (SourceSystem, error) {
	if s == "" {
		return "", dErrors.New(dErrors.CodeInvalidInput, "source system cannot be empty")
	}
	src := SourceSystem(s)
	if !src.IsValid() {
		return "", dErrors.New(dErrors.CodeInvalidInput, "unknown source system: "+s)
	}
	return src, nil
}

// IsValid checks whether the source is one of the supported platforms.
func (s SourceSystem) IsValid() bool {
	return validSourceSystems[s]
}

// String returns the string representation of the source.
func (s SourceSystem) String() string {
	return string(s)
}
