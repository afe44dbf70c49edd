package service

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"coalesce/internal/contact/models"
	"coalesce/internal/contact/store"
	"coalesce/internal/identity"
	"coalesce/internal/platform/lock"
	id "coalesce/pkg/domain"
	dErrors "coalesce/pkg/domain-errors"
	"coalesce/pkg/platform/audit"
	auditmemory "coalesce/pkg/platform/audit/store/memory"
)

type ContactServiceSuite struct {
	suite.Suite
	ctx      context.Context
	store    *store.InMemory
	index    *identity.Index
	auditLog *auditmemory.InMemoryStore
	svc      *Service
}

func TestContactServiceSuite(t *testing.T) {
	suite.Run(t, new(ContactServiceSuite))
}

func (s *ContactServiceSuite) SetupTest() {
	s.ctx = context.Background()
	s.store = store.NewInMemory()
	s.index = identity.NewIndex()
	s.auditLog = auditmemory.NewInMemoryStore()
	s.svc = NewService(s.store, store.NoopTx{}, s.index, lock.NewMemory(), s.auditLog, slog.Default())
}

func (s *ContactServiceSuite) seedContact() *models.Contact {
	now := time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC)
	c := &models.Contact{
		ID:           id.NewContactID(),
		FirstName:    "Sarah",
		LastName:     "Chen",
		SourceSystem: id.SourceMembership,
		LockLevel:    models.LockUnlocked,
		Emails: []models.EmailAddress{
			{Address: "sarah.chen@example.org", Primary: true, Source: id.SourceMembership, AddedAt: now},
		},
		Sources: []models.SourceRef{
			{Source: id.SourceMembership, ExternalID: "m-100", FirstSeen: now},
		},
		Subscription: models.Consent{Status: models.SubscriptionUnknown},
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	s.Require().NoError(s.store.Create(s.ctx, c))
	s.index.Add(c)
	return c
}

func str(v string) *string { return &v }

func (s *ContactServiceSuite) TestGetUnknownContact() {
	_, err := s.svc.Get(s.ctx, id.NewContactID())
	s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
}

func (s *ContactServiceSuite) TestEditRaisesFullLock() {
	c := s.seedContact()

	next, err := s.svc.Edit(s.ctx, c.ID, EditRequest{FirstName: str("Sara")}, "mwilson")
	s.Require().NoError(err)

	s.Equal("Sara", next.FirstName)
	s.Equal(models.LockFull, next.LockLevel, "first staff edit permanently locks the contact")
	s.Equal(1, next.StaffEdits)

	entries, err := s.auditLog.ListByContact(s.ctx, c.ID)
	s.Require().NoError(err)
	s.Require().Len(entries, 1)
	s.Equal(audit.DecisionStaffEdited, entries[0].Decision)
	s.Equal("staff:mwilson", entries[0].Actor)
	s.Contains(entries[0].Fields, string(models.FieldName))
}

func (s *ContactServiceSuite) TestEmptyEditRejected() {
	c := s.seedContact()

	_, err := s.svc.Edit(s.ctx, c.ID, EditRequest{}, "mwilson")
	s.True(dErrors.HasCode(err, dErrors.CodeInvalidInput))
}

func (s *ContactServiceSuite) TestEditCannotStripLastIdentityField() {
	c := s.seedContact()
	c.Emails = nil
	s.Require().NoError(s.store.Update(s.ctx, c))

	_, err := s.svc.Edit(s.ctx, c.ID, EditRequest{FirstName: str(""), LastName: str("")}, "mwilson")
	s.True(dErrors.HasCode(err, dErrors.CodeInvariantViolation))

	after, err := s.store.FindByID(s.ctx, c.ID)
	s.Require().NoError(err)
	s.Equal("Sarah", after.FirstName, "rejected edit leaves the contact untouched")
}

func (s *ContactServiceSuite) TestStaffAddedEmailBecomesPrimary() {
	c := s.seedContact()

	next, err := s.svc.Edit(s.ctx, c.ID, EditRequest{AddEmail: str("schen@corrected.org")}, "mwilson")
	s.Require().NoError(err)

	s.Equal("schen@corrected.org", next.PrimaryEmail())
	s.Require().Len(next.Emails, 2, "the displaced address is retained")
	s.Equal(id.SourceStaff, next.Emails[1].Source)

	// The index must resolve the new address to this contact.
	hits := s.index.Lookup(identity.Fragment{Kind: identity.FragmentEmail, Value: "schen@corrected.org"})
	s.Require().Len(hits, 1)
	s.Equal(c.ID, hits[0])
}

func (s *ContactServiceSuite) TestEditTombstonedContactRejected() {
	c := s.seedContact()
	s.Require().NoError(s.store.SoftDelete(s.ctx, c.ID, time.Now()))

	_, err := s.svc.Edit(s.ctx, c.ID, EditRequest{FirstName: str("Sara")}, "mwilson")
	s.True(dErrors.HasCode(err, dErrors.CodeConflict))
}

func (s *ContactServiceSuite) TestOverrideLockDemotes() {
	c := s.seedContact()
	c.LockLevel = models.LockFull
	s.Require().NoError(s.store.Update(s.ctx, c))

	next, err := s.svc.OverrideLock(s.ctx, c.ID, models.LockPartial, "verified merge was correct", "mwilson")
	s.Require().NoError(err)
	s.Equal(models.LockPartial, next.LockLevel)

	entries, err := s.auditLog.ListByContact(s.ctx, c.ID)
	s.Require().NoError(err)
	s.Require().Len(entries, 1)
	s.Equal([]string{"lock_level"}, entries[0].Fields)
	s.Equal("verified merge was correct", entries[0].Reason)
}

func (s *ContactServiceSuite) TestOverrideLockRequiresReason() {
	c := s.seedContact()

	_, err := s.svc.OverrideLock(s.ctx, c.ID, models.LockUnlocked, "", "mwilson")
	s.True(dErrors.HasCode(err, dErrors.CodeInvalidInput))

	_, err = s.svc.OverrideLock(s.ctx, c.ID, models.LockLevel("SHRUG"), "because", "mwilson")
	s.True(dErrors.HasCode(err, dErrors.CodeInvalidInput))
}

func (s *ContactServiceSuite) TestTombstoneIsIdempotent() {
	c := s.seedContact()

	s.Require().NoError(s.svc.Tombstone(s.ctx, c.ID, "duplicate of another record", "mwilson"))
	s.Require().NoError(s.svc.Tombstone(s.ctx, c.ID, "duplicate of another record", "mwilson"))

	after, err := s.store.FindByID(s.ctx, c.ID)
	s.Require().NoError(err)
	s.True(after.IsTombstoned())

	entries, err := s.auditLog.ListByContact(s.ctx, c.ID)
	s.Require().NoError(err)
	s.Len(entries, 1, "repeat tombstone writes no second entry")
	s.Equal(audit.DecisionTombstoned, entries[0].Decision)

	s.Empty(s.index.Lookup(identity.Fragment{Kind: identity.FragmentEmail, Value: "sarah.chen@example.org"}),
		"tombstoned contact stops matching")
}

func (s *ContactServiceSuite) TestHistoryReturnsTrail() {
	c := s.seedContact()
	_, err := s.svc.Edit(s.ctx, c.ID, EditRequest{FirstName: str("Sara")}, "mwilson")
	s.Require().NoError(err)

	entries, err := s.svc.History(s.ctx, c.ID)
	s.Require().NoError(err)
	s.Len(entries, 1)

	_, err = s.svc.History(s.ctx, id.NewContactID())
	s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
}
