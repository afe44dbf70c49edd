// Package service holds the staff-facing contact operations: reads, direct
// edits, lock overrides, and tombstoning. Staff edits do not pass the lock
// guard; the first one permanently raises the contact to FULL_LOCK.
package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"coalesce/internal/contact/models"
	"coalesce/internal/contact/store"
	"coalesce/internal/guard"
	"coalesce/internal/identity"
	"coalesce/internal/platform/lock"
	id "coalesce/pkg/domain"
	dErrors "coalesce/pkg/domain-errors"
	"coalesce/pkg/platform/audit"
	"coalesce/pkg/platform/sentinel"
)

// Service persists staff decisions about contacts.
type Service struct {
	contacts store.ContactStore
	txr      store.Transactor
	index    *identity.Index
	locker   lock.ContactLocker
	auditLog audit.Store
	logger   *slog.Logger
	now      func() time.Time
}

func NewService(
	contacts store.ContactStore,
	txr store.Transactor,
	index *identity.Index,
	locker lock.ContactLocker,
	auditLog audit.Store,
	logger *slog.Logger,
) *Service {
	return &Service{
		contacts: contacts,
		txr:      txr,
		index:    index,
		locker:   locker,
		auditLog: auditLog,
		logger:   logger,
		now:      time.Now,
	}
}

// Get loads one contact, tombstoned or not; the caller decides how to render
// a tombstone.
//
// Errors: CodeNotFound, CodeInternal.
func (s *Service) Get(ctx context.Context, contactID id.ContactID) (*models.Contact, error) {
	contact, err := s.contacts.FindByID(ctx, contactID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "contact not found")
		}
		return nil, dErrors.Wrap(dErrors.CodeInternal, "load contact", err)
	}
	return contact, nil
}

// LookupByEmail resolves contacts through the identity index by normalized
// email. Tombstoned contacts never appear because the index drops them.
//
// Errors: CodeInvalidInput for a blank email, CodeInternal.
func (s *Service) LookupByEmail(ctx context.Context, email string) ([]*models.Contact, error) {
	normalized := identity.NormalizeEmail(email)
	if normalized == "" {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "email is required")
	}

	ids := s.index.Lookup(identity.Fragment{Kind: identity.FragmentEmail, Value: normalized})
	contacts := make([]*models.Contact, 0, len(ids))
	for _, contactID := range ids {
		contact, err := s.contacts.FindByID(ctx, contactID)
		if err != nil {
			if errors.Is(err, sentinel.ErrNotFound) {
				continue
			}
			return nil, dErrors.Wrap(dErrors.CodeInternal, "load contact", err)
		}
		contacts = append(contacts, contact)
	}
	return contacts, nil
}

// History returns the full audit trail for a contact, oldest first.
func (s *Service) History(ctx context.Context, contactID id.ContactID) ([]audit.Entry, error) {
	if _, err := s.Get(ctx, contactID); err != nil {
		return nil, err
	}
	entries, err := s.auditLog.ListByContact(ctx, contactID)
	if err != nil {
		return nil, dErrors.Wrap(dErrors.CodeInternal, "load audit trail", err)
	}
	return entries, nil
}

// EditRequest carries a staff edit. Nil pointers mean "leave alone"; set
// pointers overwrite, including to empty.
type EditRequest struct {
	FirstName   *string `json:"first_name,omitempty"`
	LastName    *string `json:"last_name,omitempty"`
	DisplayName *string `json:"display_name,omitempty"`

	// AddEmail and AddPhone append a staff-entered value and make it primary.
	AddEmail *string `json:"add_email,omitempty"`
	AddPhone *string `json:"add_phone,omitempty"`

	Address *AddressEdit `json:"address,omitempty"`
}

// AddressEdit replaces the primary postal address.
type AddressEdit struct {
	Street     string `json:"street"`
	City       string `json:"city"`
	State      string `json:"state"`
	PostalCode string `json:"postal_code"`
}

func (r *EditRequest) empty() bool {
	return r.FirstName == nil && r.LastName == nil && r.DisplayName == nil &&
		r.AddEmail == nil && r.AddPhone == nil && r.Address == nil
}

// Edit applies a direct staff edit under the contact's exclusive lock. The
// edit is audited as staff-edited with the staff username as actor, and the
// contact is raised to FULL_LOCK so no later import can undo the correction.
//
// Errors: CodeInvalidInput for an empty edit, CodeNotFound,
// CodeInvariantViolation if the edit would strip the last identity field,
// CodeInternal.
func (s *Service) Edit(ctx context.Context, contactID id.ContactID, req EditRequest, staffUser string) (*models.Contact, error) {
	if req.empty() {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "edit request changes nothing")
	}

	release, err := s.locker.Acquire(ctx, contactID)
	if err != nil {
		return nil, dErrors.Wrap(dErrors.CodeInternal, "acquire contact lock", err)
	}
	defer release()

	contact, err := s.Get(ctx, contactID)
	if err != nil {
		return nil, err
	}
	if contact.IsTombstoned() {
		return nil, dErrors.New(dErrors.CodeConflict, "contact is tombstoned")
	}

	now := s.now()
	next := contact.Clone()
	var fields []string

	if req.FirstName != nil {
		next.FirstName = *req.FirstName
		fields = append(fields, string(models.FieldName))
	}
	if req.LastName != nil {
		next.LastName = *req.LastName
		fields = append(fields, string(models.FieldName))
	}
	if req.DisplayName != nil {
		next.DisplayName = *req.DisplayName
		fields = append(fields, string(models.FieldName))
	}
	if req.AddEmail != nil && *req.AddEmail != "" {
		for i := range next.Emails {
			next.Emails[i].Primary = false
		}
		next.Emails = append(next.Emails, models.EmailAddress{
			Address: *req.AddEmail,
			Primary: true,
			Source:  id.SourceStaff,
			AddedAt: now,
		})
		fields = append(fields, "email")
	}
	if req.AddPhone != nil && *req.AddPhone != "" {
		for i := range next.Phones {
			next.Phones[i].Primary = false
		}
		next.Phones = append(next.Phones, models.PhoneNumber{
			Number:  *req.AddPhone,
			Primary: true,
			Source:  id.SourceStaff,
			AddedAt: now,
		})
		fields = append(fields, "phone")
	}
	if req.Address != nil {
		for i := range next.Addresses {
			next.Addresses[i].Primary = false
		}
		next.Addresses = append(next.Addresses, models.PostalAddress{
			Street:     req.Address.Street,
			City:       req.Address.City,
			State:      req.Address.State,
			PostalCode: req.Address.PostalCode,
			Primary:    true,
			Source:     id.SourceStaff,
			AddedAt:    now,
		})
		fields = append(fields, string(models.FieldAddress))
	}

	if !next.HasIdentity() {
		return nil, dErrors.New(dErrors.CodeInvariantViolation,
			"edit would leave the contact with no identity field")
	}

	next.StaffEdits++
	next.LockLevel = guard.RecomputeLockLevel(next)
	next.UpdatedAt = now

	err = s.txr.RunInTx(ctx, func(ctx context.Context) error {
		if err := s.contacts.Update(ctx, next); err != nil {
			return err
		}
		return s.auditLog.Append(ctx, audit.Entry{
			ContactID: contactID,
			Decision:  audit.DecisionStaffEdited,
			Actor:     audit.StaffActor(staffUser),
			Timestamp: now,
			Before:    audit.Snapshot(contact),
			After:     audit.Snapshot(next),
			Fields:    dedupe(fields),
		})
	})
	if err != nil {
		return nil, dErrors.Wrap(dErrors.CodeInternal, "persist staff edit", err)
	}

	s.index.Remove(contact.ID)
	s.index.Add(next)
	return next, nil
}

// OverrideLock sets the lock tier directly, including demotion from
// FULL_LOCK. This is the only demotion path and it is always audited.
func (s *Service) OverrideLock(ctx context.Context, contactID id.ContactID, level models.LockLevel, reason, staffUser string) (*models.Contact, error) {
	switch level {
	case models.LockUnlocked, models.LockPartial, models.LockFull:
	default:
		return nil, dErrors.New(dErrors.CodeInvalidInput, "unknown lock level")
	}
	if reason == "" {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "lock override requires a reason")
	}

	release, err := s.locker.Acquire(ctx, contactID)
	if err != nil {
		return nil, dErrors.Wrap(dErrors.CodeInternal, "acquire contact lock", err)
	}
	defer release()

	contact, err := s.Get(ctx, contactID)
	if err != nil {
		return nil, err
	}

	now := s.now()
	before := contact.LockLevel
	next := contact.Clone()
	guard.StaffOverrideLockLevel(next, level)
	next.UpdatedAt = now

	err = s.txr.RunInTx(ctx, func(ctx context.Context) error {
		if err := s.contacts.Update(ctx, next); err != nil {
			return err
		}
		return s.auditLog.Append(ctx, audit.Entry{
			ContactID: contactID,
			Decision:  audit.DecisionStaffEdited,
			Actor:     audit.StaffActor(staffUser),
			Timestamp: now,
			Before:    audit.Snapshot(before),
			After:     audit.Snapshot(level),
			Fields:    []string{"lock_level"},
			Reason:    reason,
		})
	})
	if err != nil {
		return nil, dErrors.Wrap(dErrors.CodeInternal, "persist lock override", err)
	}
	return next, nil
}

// Tombstone soft-deletes a contact. The row, its source history, and its
// audit trail stay; the contact just stops matching and merging.
func (s *Service) Tombstone(ctx context.Context, contactID id.ContactID, reason, staffUser string) error {
	release, err := s.locker.Acquire(ctx, contactID)
	if err != nil {
		return dErrors.Wrap(dErrors.CodeInternal, "acquire contact lock", err)
	}
	defer release()

	contact, err := s.Get(ctx, contactID)
	if err != nil {
		return err
	}
	if contact.IsTombstoned() {
		return nil
	}

	now := s.now()
	err = s.txr.RunInTx(ctx, func(ctx context.Context) error {
		if err := s.contacts.SoftDelete(ctx, contactID, now); err != nil {
			return err
		}
		return s.auditLog.Append(ctx, audit.Entry{
			ContactID: contactID,
			Decision:  audit.DecisionTombstoned,
			Actor:     audit.StaffActor(staffUser),
			Timestamp: now,
			Before:    audit.Snapshot(contact),
			Fields:    []string{},
			Reason:    reason,
		})
	})
	if err != nil {
		return dErrors.Wrap(dErrors.CodeInternal, "persist tombstone", err)
	}

	s.index.Remove(contactID)
	return nil
}

func dedupe(in []string) []string {
	seen := make(map[string]struct{}, len(in))
	out := in[:0]
	for _, v := range in {
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}
