package score

import "coalesce/internal/contact/models"

// Address completeness weights. A full structured, USPS-validated address
// scores 100; a postal-code-only record scores low but nonzero because it is
// still usable for geo bucketing.
const (
	weightStreet     = 35
	weightCity       = 20
	weightState      = 10
	weightPostalCode = 20
	weightValidated  = 15
)

// AddressCompleteness scores the weighted presence of address components on
// a 0-100 scale.
func AddressCompleteness(a models.PostalAddress) int {
	score := 0
	if a.Street != "" {
		score += weightStreet
	}
	if a.City != "" {
		score += weightCity
	}
	if a.State != "" {
		score += weightState
	}
	if a.PostalCode != "" {
		score += weightPostalCode
	}
	// Validation only counts on top of a structured address; a validated
	// flag with no components would be adapter noise.
	if a.USPSValidated && score > 0 {
		score += weightValidated
	}
	return score
}

// RecordAddressCompleteness scores the address components of an incoming
// record before it has been shaped into a PostalAddress.
func RecordAddressCompleteness(r *models.IncomingRecord) int {
	return AddressCompleteness(models.PostalAddress{
		Street:        r.Street,
		City:          r.City,
		State:         r.State,
		PostalCode:    r.PostalCode,
		USPSValidated: r.USPSValidated,
	})
}
