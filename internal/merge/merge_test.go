package merge

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"coalesce/internal/contact/models"
	id "coalesce/pkg/domain"
)

var now = time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC)

func baseContact() *models.Contact {
	return &models.Contact{
		ID:           id.NewContactID(),
		FirstName:    "Sarah",
		LastName:     "Chen",
		SourceSystem: id.SourceMembership,
		LockLevel:    models.LockUnlocked,
		Emails: []models.EmailAddress{
			{Address: "sarah.chen@example.org", Primary: true, Source: id.SourceMembership, AddedAt: now.Add(-time.Hour)},
		},
		Sources: []models.SourceRef{
			{Source: id.SourceMembership, ExternalID: "m-100", FirstSeen: now.Add(-time.Hour)},
		},
		Subscription: models.Consent{Status: models.SubscriptionUnknown},
		CreatedAt:    now.Add(-time.Hour),
		UpdatedAt:    now.Add(-time.Hour),
	}
}

func sub(s models.SubscriptionStatus) *models.SubscriptionStatus { return &s }

func TestApplyDoesNotMutateInput(t *testing.T) {
	e := New(nil)
	contact := baseContact()
	record := &models.IncomingRecord{
		Source:     id.SourcePayments,
		ExternalID: "p-1",
		Phone:      "5551234567",
	}

	out := e.Apply(contact, record, now)

	require.True(t, out.Changed)
	assert.Empty(t, contact.Phones, "input contact must stay untouched")
	assert.Len(t, out.Contact.Phones, 1)
}

func TestApplyFillsEmptyFields(t *testing.T) {
	e := New(nil)
	contact := baseContact()
	record := &models.IncomingRecord{
		Source:     id.SourcePayments,
		ExternalID: "p-1",
		Phone:      "(555) 123-4567",
		Street:     "12 Harbor Way",
		City:       "Gloucester",
		State:      "MA",
		PostalCode: "01930",
	}

	out := e.Apply(contact, record, now)

	require.True(t, out.Changed)
	assert.Empty(t, out.BlockedFields)
	require.Len(t, out.Contact.Phones, 1)
	assert.True(t, out.Contact.Phones[0].Primary)
	require.Len(t, out.Contact.Addresses, 1)
	assert.Equal(t, "12 Harbor Way", out.Contact.Addresses[0].Street)
	assert.True(t, out.Contact.HasSourceRecord(id.SourcePayments, "p-1"))
}

func TestApplyNameIsFillIfEmptyOnly(t *testing.T) {
	e := New(nil)

	t.Run("fills a blank name", func(t *testing.T) {
		contact := baseContact()
		contact.FirstName, contact.LastName = "", ""
		record := &models.IncomingRecord{
			Source: id.SourceTicketing, ExternalID: "t-1",
			FirstName: "Sarah", LastName: "Chen",
		}
		out := e.Apply(contact, record, now)
		assert.Equal(t, "Sarah", out.Contact.FirstName)
		assert.Contains(t, out.ChangedFields, string(models.FieldName))
	})

	t.Run("agreeing partial name attempts no overwrite", func(t *testing.T) {
		contact := baseContact()
		record := &models.IncomingRecord{
			Source: id.SourceAccounting, ExternalID: "a-1",
			LastName: "Chen", // matches stored, first name absent
		}
		out := e.Apply(contact, record, now)
		assert.NotContains(t, out.BlockedFields, string(models.FieldName))
		assert.Equal(t, "Sarah", out.Contact.FirstName)
	})

	t.Run("never replaces a differing name even when unlocked", func(t *testing.T) {
		contact := baseContact()
		record := &models.IncomingRecord{
			Source: id.SourceTicketing, ExternalID: "t-2",
			FirstName: "Sara", LastName: "Chen",
			Email: "sarah.chen@example.org",
		}
		out := e.Apply(contact, record, now)
		assert.Equal(t, "Sarah", out.Contact.FirstName)
		assert.Contains(t, out.BlockedFields, string(models.FieldName))
	})
}

func TestApplyMultiValueAppendAndPriority(t *testing.T) {
	e := New(nil)

	t.Run("new email appends without displacing primary on lower priority", func(t *testing.T) {
		contact := baseContact()
		record := &models.IncomingRecord{
			Source: id.SourceTicketing, ExternalID: "t-1",
			Email: "schen@other.org",
		}
		out := e.Apply(contact, record, now)
		require.Len(t, out.Contact.Emails, 2)
		assert.Equal(t, "sarah.chen@example.org", out.Contact.PrimaryEmail())
	})

	t.Run("higher priority source takes primary, loser retained", func(t *testing.T) {
		contact := baseContact()
		contact.Emails[0].Source = id.SourceTicketing
		record := &models.IncomingRecord{
			Source: id.SourceMembership, ExternalID: "m-200",
			Email: "schen@members.org",
		}
		out := e.Apply(contact, record, now)
		require.Len(t, out.Contact.Emails, 2)
		assert.Equal(t, "schen@members.org", out.Contact.PrimaryEmail())
		assert.Equal(t, "sarah.chen@example.org", out.Contact.Emails[0].Address)
	})

	t.Run("duplicate email is a no-op", func(t *testing.T) {
		contact := baseContact()
		record := &models.IncomingRecord{
			Source: id.SourceMembership, ExternalID: "m-100",
			Email: "SARAH.CHEN@example.org",
		}
		out := e.Apply(contact, record, now)
		assert.False(t, out.Changed)
		assert.Len(t, out.Contact.Emails, 1)
	})
}

func TestApplyFragmentAddressNeverDisplacesPrimary(t *testing.T) {
	e := New(nil)
	contact := baseContact()
	contact.Addresses = []models.PostalAddress{{
		Street: "12 Harbor Way", City: "Gloucester", State: "MA", PostalCode: "01930",
		USPSValidated: true, Primary: true,
		Source: id.SourceTicketing, AddedAt: now.Add(-time.Hour),
	}}

	// Postal-code-only fragment from the highest-priority import source.
	record := &models.IncomingRecord{
		Source: id.SourceMembership, ExternalID: "m-200",
		PostalCode: "01931",
	}

	out := e.Apply(contact, record, now)

	require.Len(t, out.Contact.Addresses, 2)
	primary, ok := out.Contact.PrimaryAddress()
	require.True(t, ok)
	assert.Equal(t, "12 Harbor Way", primary.Street, "fragment stays secondary despite source priority")
}

func TestApplyPartialLockFreezesPresentFillsEmpty(t *testing.T) {
	e := New(nil)
	contact := baseContact()
	contact.LockLevel = models.LockPartial
	contact.Sources = append(contact.Sources,
		models.SourceRef{Source: id.SourcePayments, ExternalID: "p-0", FirstSeen: now.Add(-time.Hour)})

	record := &models.IncomingRecord{
		Source: id.SourceTicketing, ExternalID: "t-9",
		FirstName: "Sara", LastName: "Chen", // differs: frozen
		Phone:        "5559876543",    // empty slot: fills
		Subscription: sub(models.SubscriptionSubscribed),
		ConsentMethod: id.ConsentMethodSingleOptIn,
	}

	out := e.Apply(contact, record, now)

	require.True(t, out.Changed)
	assert.Equal(t, "Sarah", out.Contact.FirstName)
	assert.Contains(t, out.BlockedFields, string(models.FieldName))
	require.Len(t, out.Contact.Phones, 1)
	assert.Equal(t, models.SubscriptionSubscribed, out.Contact.Subscription.Status)
	assert.True(t, out.Contact.SubscriptionProtected)
}

func TestApplyFullLockBlocksEverything(t *testing.T) {
	e := New(nil)
	contact := baseContact()
	contact.LockLevel = models.LockFull

	record := &models.IncomingRecord{
		Source: id.SourceTicketing, ExternalID: "t-1",
		Phone:            "5559876543",
		AmountCents:      2500,
		TransactionCount: 1,
		Subscription:     sub(models.SubscriptionSubscribed),
		ConsentMethod:    id.ConsentMethodSingleOptIn,
	}

	out := e.Apply(contact, record, now)

	assert.False(t, out.Changed)
	assert.ElementsMatch(t, out.BlockedFields,
		[]string{"phone", string(models.FieldSubscription), "aggregates", "source_ref"})
	assert.Zero(t, out.Contact.TotalValueCents)
}

func TestApplyAggregatesAreAdditive(t *testing.T) {
	e := New(nil)
	contact := baseContact()
	contact.TotalValueCents = 10_000
	contact.TransactionCount = 4
	contact.LockLevel = models.LockPartial

	record := &models.IncomingRecord{
		Source: id.SourcePayments, ExternalID: "p-7",
		AmountCents: 2_500, TransactionCount: 1,
	}

	out := e.Apply(contact, record, now)

	require.True(t, out.Changed)
	assert.Equal(t, int64(12_500), out.Contact.TotalValueCents)
	assert.Equal(t, 5, out.Contact.TransactionCount)
}

func TestApplyConsentShield(t *testing.T) {
	e := New(nil)
	contact := baseContact()
	contact.SubscriptionProtected = true
	contact.Subscription = models.Consent{
		Status:  models.SubscriptionSubscribed,
		Channel: id.SourceMembership,
		Method:  id.ConsentMethodDoubleOptIn,
	}

	t.Run("unrelated source cannot unsubscribe", func(t *testing.T) {
		record := &models.IncomingRecord{
			Source: id.SourceTicketing, ExternalID: "t-1",
			Subscription:  sub(models.SubscriptionUnsubscribed),
			ConsentMethod: id.ConsentMethodImported,
		}
		out := e.Apply(contact, record, now)
		assert.Equal(t, models.SubscriptionSubscribed, out.Contact.Subscription.Status)
		assert.Contains(t, out.BlockedFields, string(models.FieldSubscription))
	})

	t.Run("consent channel can unsubscribe", func(t *testing.T) {
		record := &models.IncomingRecord{
			Source: id.SourceMembership, ExternalID: "m-300",
			Subscription:  sub(models.SubscriptionUnsubscribed),
			ConsentMethod: id.ConsentMethodImported,
		}
		out := e.Apply(contact, record, now)
		assert.Equal(t, models.SubscriptionUnsubscribed, out.Contact.Subscription.Status)
	})
}

func TestApplyRecomputesLockAndQuality(t *testing.T) {
	e := New(nil)
	contact := baseContact()

	record := &models.IncomingRecord{
		Source: id.SourcePayments, ExternalID: "p-1",
		Phone: "5551234567",
	}

	out := e.Apply(contact, record, now)

	// Second distinct source promotes the tier as part of the same merge.
	assert.Equal(t, models.LockPartial, out.Contact.LockLevel)
	assert.Greater(t, out.Contact.QualityScore, contact.QualityScore)
	assert.Equal(t, now, out.Contact.UpdatedAt)
}

func TestApplyIdempotentRerunChangesNothing(t *testing.T) {
	e := New(nil)
	contact := baseContact()
	record := &models.IncomingRecord{
		Source: id.SourcePayments, ExternalID: "p-1",
		Email:       "sarah.chen@example.org",
		Phone:       "5551234567",
		AmountCents: 2_500, TransactionCount: 1,
	}

	first := e.Apply(contact, record, now)
	require.True(t, first.Changed)
	require.Equal(t, int64(2_500), first.Contact.TotalValueCents)

	second := e.Apply(first.Contact, record, now.Add(time.Minute))
	assert.False(t, second.Changed)
	assert.Empty(t, second.BlockedFields)
	assert.Equal(t, int64(2_500), second.Contact.TotalValueCents, "re-seen sighting must not double-count")
}
