package httptransport

import (
	"encoding/json"
	"time"

	"coalesce/internal/contact/models"
	"coalesce/pkg/platform/audit"
)

// contactResponse is the wire shape of a contact. Kept separate from the
// domain model so persistence changes never leak into the API.
type contactResponse struct {
	ID          string `json:"id"`
	FirstName   string `json:"first_name,omitempty"`
	LastName    string `json:"last_name,omitempty"`
	DisplayName string `json:"display_name,omitempty"`

	Emails    []emailResponse   `json:"emails,omitempty"`
	Phones    []phoneResponse   `json:"phones,omitempty"`
	Addresses []addressResponse `json:"addresses,omitempty"`

	SourceSystem string               `json:"source_system"`
	Sources      []sourceRefResponse  `json:"sources,omitempty"`
	LockLevel    string               `json:"lock_level"`
	Subscription subscriptionResponse `json:"subscription"`

	TotalValueCents  int64 `json:"total_value_cents"`
	TransactionCount int   `json:"transaction_count"`
	QualityScore     int   `json:"quality_score"`
	AddressQuality   int   `json:"address_quality"`
	StaffEdits       int   `json:"staff_edits"`

	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
	DeletedAt *time.Time `json:"deleted_at,omitempty"`
}

type emailResponse struct {
	Address string    `json:"address"`
	Primary bool      `json:"primary"`
	Source  string    `json:"source"`
	AddedAt time.Time `json:"added_at"`
}

type phoneResponse struct {
	Number  string    `json:"number"`
	Primary bool      `json:"primary"`
	Source  string    `json:"source"`
	AddedAt time.Time `json:"added_at"`
}

type addressResponse struct {
	Street        string    `json:"street"`
	City          string    `json:"city,omitempty"`
	State         string    `json:"state,omitempty"`
	PostalCode    string    `json:"postal_code,omitempty"`
	Primary       bool      `json:"primary"`
	USPSValidated bool      `json:"usps_validated"`
	Source        string    `json:"source"`
	AddedAt       time.Time `json:"added_at"`
}

type sourceRefResponse struct {
	Source     string    `json:"source"`
	ExternalID string    `json:"external_id"`
	FirstSeen  time.Time `json:"first_seen"`
}

type subscriptionResponse struct {
	Status        string     `json:"status"`
	Channel       string     `json:"channel,omitempty"`
	Method        string     `json:"method,omitempty"`
	EffectiveDate *time.Time `json:"effective_date,omitempty"`
	Protected     bool       `json:"protected"`
}

func fromContact(c *models.Contact) contactResponse {
	resp := contactResponse{
		ID:               c.ID.String(),
		FirstName:        c.FirstName,
		LastName:         c.LastName,
		DisplayName:      c.DisplayName,
		SourceSystem:     c.SourceSystem.String(),
		LockLevel:        string(c.LockLevel),
		TotalValueCents:  c.TotalValueCents,
		TransactionCount: c.TransactionCount,
		QualityScore:     c.QualityScore,
		AddressQuality:   c.AddressQuality,
		StaffEdits:       c.StaffEdits,
		CreatedAt:        c.CreatedAt,
		UpdatedAt:        c.UpdatedAt,
		DeletedAt:        c.DeletedAt,
	}

	for _, e := range c.Emails {
		resp.Emails = append(resp.Emails, emailResponse{
			Address: e.Address, Primary: e.Primary, Source: e.Source.String(), AddedAt: e.AddedAt,
		})
	}
	for _, p := range c.Phones {
		resp.Phones = append(resp.Phones, phoneResponse{
			Number: p.Number, Primary: p.Primary, Source: p.Source.String(), AddedAt: p.AddedAt,
		})
	}
	for _, a := range c.Addresses {
		resp.Addresses = append(resp.Addresses, addressResponse{
			Street: a.Street, City: a.City, State: a.State, PostalCode: a.PostalCode,
			Primary: a.Primary, USPSValidated: a.USPSValidated,
			Source: a.Source.String(), AddedAt: a.AddedAt,
		})
	}
	for _, s := range c.Sources {
		resp.Sources = append(resp.Sources, sourceRefResponse{
			Source: s.Source.String(), ExternalID: s.ExternalID, FirstSeen: s.FirstSeen,
		})
	}

	resp.Subscription = subscriptionResponse{
		Status:    string(c.Subscription.Status),
		Channel:   c.Subscription.Channel.String(),
		Method:    c.Subscription.Method.String(),
		Protected: c.SubscriptionProtected,
	}
	if !c.Subscription.EffectiveDate.IsZero() {
		d := c.Subscription.EffectiveDate
		resp.Subscription.EffectiveDate = &d
	}
	return resp
}

// auditEntryResponse is the wire shape of one audit entry.
type auditEntryResponse struct {
	ID        string          `json:"id"`
	BatchID   string          `json:"batch_id,omitempty"`
	ContactID string          `json:"contact_id,omitempty"`
	Decision  string          `json:"decision"`
	Actor     string          `json:"actor"`
	Timestamp time.Time       `json:"timestamp"`
	Before    json.RawMessage `json:"before,omitempty"`
	After     json.RawMessage `json:"after,omitempty"`
	Fields    []string        `json:"fields,omitempty"`
	Reason    string          `json:"reason,omitempty"`
}

func fromAuditEntries(entries []audit.Entry) []auditEntryResponse {
	out := make([]auditEntryResponse, 0, len(entries))
	for _, e := range entries {
		resp := auditEntryResponse{
			ID:        e.ID,
			Decision:  string(e.Decision),
			Actor:     e.Actor,
			Timestamp: e.Timestamp,
			Before:    e.Before,
			After:     e.After,
			Fields:    e.Fields,
			Reason:    e.Reason,
		}
		if !e.BatchID.IsNil() {
			resp.BatchID = e.BatchID.String()
		}
		if !e.ContactID.IsNil() {
			resp.ContactID = e.ContactID.String()
		}
		out = append(out, resp)
	}
	return out
}
