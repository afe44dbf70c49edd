// Package service holds the consent service: the only two entry points
// permitted to change a contact's subscription status from outside the merge
// pipeline. Every consent state change is audited with source, method, and
// effective date so consent and its withdrawal are individually provable.
package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"coalesce/internal/contact/models"
	"coalesce/internal/guard"
	id "coalesce/pkg/domain"
	dErrors "coalesce/pkg/domain-errors"
	"coalesce/pkg/platform/audit"
	"coalesce/pkg/platform/sentinel"
)

// ContactStore is the slice of the contact store the consent service needs.
type ContactStore interface {
	FindByID(ctx context.Context, contactID id.ContactID) (*models.Contact, error)
	Update(ctx context.Context, contact *models.Contact) error
}

// Service persists consent decisions. It keeps orchestration out of handlers
// and domain logic thin.
type Service struct {
	contacts ContactStore
	auditLog audit.Store
	logger   *slog.Logger
}

func NewService(contacts ContactStore, auditLog audit.Store, logger *slog.Logger) *Service {
	return &Service{contacts: contacts, auditLog: auditLog, logger: logger}
}

// RecordConsent records an opt-in for the contact from the given channel.
// Sets the subscription shield, so no later import from another channel can
// silently revert it.
//
// Errors: CodeNotFound for unknown contacts, CodeInvalidInput for bad
// method/channel, CodeInternal on storage failure.
func (s *Service) RecordConsent(ctx context.Context, contactID id.ContactID, channel id.SourceSystem, method id.ConsentMethod, date time.Time, actor string) error {
	if !channel.IsValid() {
		return dErrors.New(dErrors.CodeInvalidInput, "invalid consent channel")
	}
	if !method.IsValid() {
		return dErrors.New(dErrors.CodeInvalidInput, "invalid consent method")
	}

	contact, err := s.contacts.FindByID(ctx, contactID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return dErrors.New(dErrors.CodeNotFound, "contact not found")
		}
		return dErrors.Wrap(dErrors.CodeInternal, "load contact", err)
	}

	before := contact.Subscription
	contact.Subscription = models.Consent{
		Status:        models.SubscriptionSubscribed,
		Channel:       channel,
		Method:        method,
		EffectiveDate: date,
	}
	contact.SubscriptionProtected = true
	contact.UpdatedAt = date

	if err := s.commit(ctx, contact, before, actor); err != nil {
		return err
	}
	return nil
}

// RecordWithdrawal revokes consent. The withdrawal is only honored when it
// arrives through the same channel that recorded the consent; anything else
// is a channel mismatch, which is the legal requirement, not a convenience.
//
// Errors: CodeConsentChannel on mismatch, CodeNotFound, CodeInternal.
func (s *Service) RecordWithdrawal(ctx context.Context, contactID id.ContactID, channel id.SourceSystem, date time.Time, actor string) error {
	contact, err := s.contacts.FindByID(ctx, contactID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return dErrors.New(dErrors.CodeNotFound, "contact not found")
		}
		return dErrors.Wrap(dErrors.CodeInternal, "load contact", err)
	}

	if !guard.ConsentWriteAllowed(contact, models.SubscriptionUnsubscribed, channel) {
		return dErrors.New(dErrors.CodeConsentChannel,
			"withdrawal channel does not match the channel that recorded consent")
	}

	before := contact.Subscription
	contact.Subscription = models.Consent{
		Status:        models.SubscriptionUnsubscribed,
		Channel:       channel,
		Method:        before.Method,
		EffectiveDate: date,
	}
	contact.UpdatedAt = date

	return s.commit(ctx, contact, before, actor)
}

func (s *Service) commit(ctx context.Context, contact *models.Contact, before models.Consent, actor string) error {
	if err := s.contacts.Update(ctx, contact); err != nil {
		return dErrors.Wrap(dErrors.CodeInternal, "persist consent change", err)
	}
	entry := audit.Entry{
		ContactID: contact.ID,
		Decision:  audit.DecisionConsentChanged,
		Actor:     actor,
		Timestamp: contact.UpdatedAt,
		Before:    audit.Snapshot(before),
		After:     audit.Snapshot(contact.Subscription),
		Fields:    []string{string(models.FieldSubscription)},
		Reason:    "consent " + string(contact.Subscription.Status) + " via " + contact.Subscription.Channel.String(),
	}
	if err := s.auditLog.Append(ctx, entry); err != nil {
		// A consent change that cannot be proven later is worse than a
		// failed request. Surface it; the caller retries.
		s.logger.ErrorContext(ctx, "consent audit append failed",
			"contact_id", contact.ID.String(),
			"error", err.Error(),
		)
		return dErrors.Wrap(dErrors.CodeInternal, "audit consent change", err)
	}
	return nil
}
