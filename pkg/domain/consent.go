package domain

import dErrors "coalesce/pkg/domain-errors"

// ConsentMethod records how a subscription opt-in was captured. A withdrawal
// is only honored from the channel that recorded the consent, so the method
// and channel must be individually provable later.
type ConsentMethod string

const (
	ConsentMethodSingleOptIn ConsentMethod = "single_opt_in"
	ConsentMethodDoubleOptIn ConsentMethod = "double_opt_in"
	ConsentMethodImported    ConsentMethod = "imported"
	ConsentMethodStaffEntry  ConsentMethod = "staff_entry"
)

var validConsentMethods = map[ConsentMethod]bool{
	ConsentMethodSingleOptIn: true,
	ConsentMethodDoubleOptIn: true,
	ConsentMethodImported:    true,
	ConsentMethodStaffEntry:  true,
}

// ParseConsentMethod constructs a ConsentMethod from external input.
//
// Errors: CodeInvalidInput when the value is empty or unsupported.
func ParseConsentMethod(s string) (ConsentMethod, error) {
	if s == "" {
		return "", dErrors.New(dErrors.CodeInvalidInput, "consent method cannot be empty")
	}
	m := ConsentMethod(s)
	if !validConsentMethods[m] {
		return "", dErrors.New(dErrors.CodeInvalidInput, "invalid consent method: "+s)
	}
	return m, nil
}

// IsValid checks if the method is one of the supported enum values.
func (m ConsentMethod) IsValid() bool {
	return validConsentMethods[m]
}

// String returns the string representation of the method.
func (m ConsentMethod) String() string {
	return string(m)
}
