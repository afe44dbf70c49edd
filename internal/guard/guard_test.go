package guard

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"coalesce/internal/contact/models"
	id "coalesce/pkg/domain"
)

func contactAt(level models.LockLevel) *models.Contact {
	return &models.Contact{
		ID:        id.NewContactID(),
		LockLevel: level,
	}
}

func TestAuthorize(t *testing.T) {
	tests := []struct {
		name     string
		level    models.LockLevel
		category models.FieldCategory
		want     Permission
	}{
		{"unlocked name is fully writable", models.LockUnlocked, models.FieldName, Full},
		{"unlocked subscription is fully writable", models.LockUnlocked, models.FieldSubscription, Full},
		{"source system never writable even unlocked", models.LockUnlocked, models.FieldSourceSystem, None},

		{"partial lock freezes present names but allows fill", models.LockPartial, models.FieldName, FillOnly},
		{"partial lock allows subscription changes", models.LockPartial, models.FieldSubscription, Full},
		{"partial lock enrichment is fill-only", models.LockPartial, models.FieldEnrichment, FillOnly},
		{"partial lock source system stays closed", models.LockPartial, models.FieldSourceSystem, None},

		{"full lock permits nothing", models.LockFull, models.FieldName, None},
		{"full lock blocks even subscription", models.LockFull, models.FieldSubscription, None},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Authorize(contactAt(tt.level), tt.category))
		})
	}

	t.Run("corrupted lock level reads as most restrictive", func(t *testing.T) {
		c := contactAt(models.LockLevel("GARBAGE"))
		assert.Equal(t, None, Authorize(c, models.FieldName))
	})
}

func TestPermissionAllows(t *testing.T) {
	assert.False(t, None.Allows(false))
	assert.False(t, None.Allows(true))
	assert.True(t, FillOnly.Allows(false))
	assert.False(t, FillOnly.Allows(true))
	assert.True(t, Full.Allows(false))
	assert.True(t, Full.Allows(true))
}

func TestConsentWriteAllowed(t *testing.T) {
	shielded := contactAt(models.LockUnlocked)
	shielded.SubscriptionProtected = true
	shielded.Subscription = models.Consent{
		Status:        models.SubscriptionSubscribed,
		Channel:       id.SourceMembership,
		Method:        id.ConsentMethodDoubleOptIn,
		EffectiveDate: time.Now(),
	}

	t.Run("subscribing is always allowed", func(t *testing.T) {
		assert.True(t, ConsentWriteAllowed(shielded, models.SubscriptionSubscribed, id.SourceTicketing))
	})

	t.Run("unsubscribe from a different channel is rejected", func(t *testing.T) {
		assert.False(t, ConsentWriteAllowed(shielded, models.SubscriptionUnsubscribed, id.SourceTicketing))
	})

	t.Run("unsubscribe from the consent channel is honored", func(t *testing.T) {
		assert.True(t, ConsentWriteAllowed(shielded, models.SubscriptionUnsubscribed, id.SourceMembership))
	})

	t.Run("unshielded contact can be unsubscribed from anywhere", func(t *testing.T) {
		open := contactAt(models.LockUnlocked)
		assert.True(t, ConsentWriteAllowed(open, models.SubscriptionUnsubscribed, id.SourceTicketing))
	})
}

func TestRecomputeLockLevel(t *testing.T) {
	ref := func(source id.SourceSystem, ext string) models.SourceRef {
		return models.SourceRef{Source: source, ExternalID: ext, FirstSeen: time.Now()}
	}

	t.Run("single source stays unlocked", func(t *testing.T) {
		c := contactAt(models.LockUnlocked)
		c.Sources = []models.SourceRef{ref(id.SourceMembership, "m-1")}
		assert.Equal(t, models.LockUnlocked, RecomputeLockLevel(c))
	})

	t.Run("two distinct sources promote to partial", func(t *testing.T) {
		c := contactAt(models.LockUnlocked)
		c.Sources = []models.SourceRef{ref(id.SourceMembership, "m-1"), ref(id.SourcePayments, "p-1")}
		assert.Equal(t, models.LockPartial, RecomputeLockLevel(c))
	})

	t.Run("same source twice does not promote", func(t *testing.T) {
		c := contactAt(models.LockUnlocked)
		c.Sources = []models.SourceRef{ref(id.SourceMembership, "m-1"), ref(id.SourceMembership, "m-2")}
		assert.Equal(t, models.LockUnlocked, RecomputeLockLevel(c))
	})

	t.Run("three distinct sources promote to full", func(t *testing.T) {
		c := contactAt(models.LockPartial)
		c.Sources = []models.SourceRef{
			ref(id.SourceMembership, "m-1"),
			ref(id.SourcePayments, "p-1"),
			ref(id.SourceTicketing, "t-1"),
		}
		assert.Equal(t, models.LockFull, RecomputeLockLevel(c))
	})

	t.Run("any staff edit promotes to full", func(t *testing.T) {
		c := contactAt(models.LockUnlocked)
		c.StaffEdits = 1
		assert.Equal(t, models.LockFull, RecomputeLockLevel(c))
	})

	t.Run("never demotes", func(t *testing.T) {
		c := contactAt(models.LockFull)
		c.Sources = []models.SourceRef{ref(id.SourceMembership, "m-1")}
		assert.Equal(t, models.LockFull, RecomputeLockLevel(c))
	})

	t.Run("staff override is the only demotion path", func(t *testing.T) {
		c := contactAt(models.LockFull)
		StaffOverrideLockLevel(c, models.LockUnlocked)
		assert.Equal(t, models.LockUnlocked, c.LockLevel)
	})
}
