package models

import (
	"encoding/json"
	"time"

	id "coalesce/pkg/domain"
	dErrors "coalesce/pkg/domain-errors"
)

// IncomingRecord is the normalized shape every source adapter produces. Any
// field the source does not provide is left zero-valued and treated as
// absent; adapters never emit an empty string to mean "known to be blank",
// so the engine does not have to tell the two apart.
type IncomingRecord struct {
	Source     id.SourceSystem `json:"source"`
	ExternalID string          `json:"external_id"`

	Email     string `json:"email,omitempty"`
	Phone     string `json:"phone,omitempty"`
	FirstName string `json:"first_name,omitempty"`
	LastName  string `json:"last_name,omitempty"`

	Street        string `json:"street,omitempty"`
	City          string `json:"city,omitempty"`
	State         string `json:"state,omitempty"`
	PostalCode    string `json:"postal_code,omitempty"`
	USPSValidated bool   `json:"usps_validated,omitempty"`

	// Monetary contribution of this record, in cents. Always added to the
	// running total during merge, never substituted for it.
	AmountCents      int64 `json:"amount_cents,omitempty"`
	TransactionCount int   `json:"transaction_count,omitempty"`

	// Subscription is nil when the source carries no consent signal at all.
	Subscription  *SubscriptionStatus `json:"subscription,omitempty"`
	ConsentMethod id.ConsentMethod    `json:"consent_method,omitempty"`

	ObservedAt time.Time       `json:"observed_at,omitempty"`
	Raw        json.RawMessage `json:"raw,omitempty"`
}

// Validate enforces the adapter contract before a record enters the engine.
//
// Errors: CodeInvalidInput for contract violations, CodeMissingIdentity when
// the record has no usable matching field at all. The latter is routed to
// manual create-or-skip by the pipeline, never silently dropped.
func (r *IncomingRecord) Validate() error {
	if !r.Source.IsValid() {
		return dErrors.New(dErrors.CodeInvalidInput, "record has no valid source system")
	}
	if r.ExternalID == "" {
		return dErrors.New(dErrors.CodeInvalidInput, "record has no external id")
	}
	if !r.HasIdentityField() {
		return dErrors.New(dErrors.CodeMissingIdentity, "record carries no email, phone, or name")
	}
	if r.Subscription != nil && !r.ConsentMethod.IsValid() {
		return dErrors.New(dErrors.CodeInvalidInput, "subscription signal without consent method")
	}
	return nil
}

// HasIdentityField reports whether the record carries anything the matcher
// can use.
func (r *IncomingRecord) HasIdentityField() bool {
	return r.Email != "" || r.Phone != "" || r.FullName() != ""
}

// FullName joins whichever name parts the source provided.
func (r *IncomingRecord) FullName() string {
	switch {
	case r.FirstName != "" && r.LastName != "":
		return r.FirstName + " " + r.LastName
	case r.FirstName != "":
		return r.FirstName
	default:
		return r.LastName
	}
}

// HasPostalAddress reports whether any structured address component is set.
func (r *IncomingRecord) HasPostalAddress() bool {
	return r.Street != "" || r.City != "" || r.State != "" || r.PostalCode != ""
}
