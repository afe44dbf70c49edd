package identity

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"coalesce/internal/contact/models"
	id "coalesce/pkg/domain"
)

func indexedContact(email, phone, first, last string) *models.Contact {
	c := &models.Contact{
		ID:        id.NewContactID(),
		FirstName: first,
		LastName:  last,
		CreatedAt: time.Now(),
	}
	if email != "" {
		c.Emails = []models.EmailAddress{{Address: email, Primary: true, Source: id.SourceMembership}}
	}
	if phone != "" {
		c.Phones = []models.PhoneNumber{{Number: phone, Primary: true, Source: id.SourceMembership}}
	}
	return c
}

func TestIndexLookup(t *testing.T) {
	ix := NewIndex()
	c := indexedContact("Pat@Example.com", "(555) 123-4567", "Pat", "O'Brien")
	ix.Add(c)

	t.Run("email lookup is case-insensitive", func(t *testing.T) {
		ids := ix.Lookup(Fragment{Kind: FragmentEmail, Value: "PAT@example.COM"})
		require.Len(t, ids, 1)
		assert.Equal(t, c.ID, ids[0])
	})

	t.Run("phone lookup ignores formatting", func(t *testing.T) {
		ids := ix.Lookup(Fragment{Kind: FragmentPhone, Value: "555-123-4567"})
		require.Len(t, ids, 1)
		assert.Equal(t, c.ID, ids[0])
	})

	t.Run("phone with country code falls back to suffix bucket", func(t *testing.T) {
		ids := ix.Lookup(Fragment{Kind: FragmentPhone, Value: "+1 555 123 4567"})
		require.Len(t, ids, 1)
		assert.Equal(t, c.ID, ids[0])
	})

	t.Run("name lookup uses normalized form", func(t *testing.T) {
		ids := ix.Lookup(Fragment{Kind: FragmentName, Value: "pat obrien"})
		require.Len(t, ids, 1)
		assert.Equal(t, c.ID, ids[0])
	})

	t.Run("miss returns nothing", func(t *testing.T) {
		assert.Empty(t, ix.Lookup(Fragment{Kind: FragmentEmail, Value: "other@example.com"}))
	})
}

func TestIndexAddIsIdempotent(t *testing.T) {
	ix := NewIndex()
	c := indexedContact("pat@example.com", "", "Pat", "OBrien")
	ix.Add(c)
	ix.Add(c)

	ids := ix.Lookup(Fragment{Kind: FragmentEmail, Value: "pat@example.com"})
	assert.Len(t, ids, 1)
}

func TestIndexSkipsTombstoned(t *testing.T) {
	ix := NewIndex()
	c := indexedContact("gone@example.com", "", "Gone", "Person")
	now := time.Now()
	c.DeletedAt = &now
	ix.Add(c)

	assert.Empty(t, ix.Lookup(Fragment{Kind: FragmentEmail, Value: "gone@example.com"}))
}

func TestIndexRemove(t *testing.T) {
	ix := NewIndex()
	a := indexedContact("a@example.com", "5551234567", "Alex", "Stone")
	b := indexedContact("b@example.com", "5551234567", "Blair", "Stone")
	ix.Add(a)
	ix.Add(b)

	ix.Remove(a.ID)

	assert.Empty(t, ix.Lookup(Fragment{Kind: FragmentEmail, Value: "a@example.com"}))
	ids := ix.Lookup(Fragment{Kind: FragmentPhone, Value: "5551234567"})
	require.Len(t, ids, 1)
	assert.Equal(t, b.ID, ids[0])
}

type staticLister struct {
	contacts []*models.Contact
}

func (l staticLister) ListActive(context.Context) ([]*models.Contact, error) {
	return l.contacts, nil
}

func TestIndexRebuild(t *testing.T) {
	ix := NewIndex()
	stale := indexedContact("stale@example.com", "", "Stale", "Entry")
	ix.Add(stale)

	fresh := indexedContact("fresh@example.com", "", "Fresh", "Entry")
	require.NoError(t, ix.Rebuild(context.Background(), staticLister{contacts: []*models.Contact{fresh}}))

	assert.Empty(t, ix.Lookup(Fragment{Kind: FragmentEmail, Value: "stale@example.com"}))
	assert.Len(t, ix.Lookup(Fragment{Kind: FragmentEmail, Value: "fresh@example.com"}), 1)
}
