package domain

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "coalesce/pkg/domain-errors"
)

// TestParseContactID_Invariants validates the parsing invariant:
// "IDs must be valid, non-empty, non-nil UUIDs".
func TestParseContactID_Invariants(t *testing.T) {
	t.Run("rejects empty string", func(t *testing.T) {
		_, err := ParseContactID("")
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})

	t.Run("rejects invalid format", func(t *testing.T) {
		_, err := ParseContactID("not-a-uuid")
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})

	t.Run("rejects nil UUID", func(t *testing.T) {
		_, err := ParseContactID(uuid.Nil.String())
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})

	t.Run("accepts valid UUID", func(t *testing.T) {
		valid := uuid.New()
		id, err := ParseContactID(valid.String())
		require.NoError(t, err)
		assert.Equal(t, valid.String(), id.String())
		assert.False(t, id.IsNil())
	})
}

func TestParseBatchID_RoundTrip(t *testing.T) {
	valid := uuid.New()
	id, err := ParseBatchID(valid.String())
	require.NoError(t, err)
	assert.Equal(t, valid.String(), id.String())

	_, err = ParseBatchID("")
	assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
}

func TestParseSourceSystem(t *testing.T) {
	t.Run("accepts known platforms", func(t *testing.T) {
		for _, s := range []string{"membership", "payments", "ticketing", "legacy_crm", "accounting", "staff"} {
			src, err := ParseSourceSystem(s)
			require.NoError(t, err)
			assert.True(t, src.IsValid())
		}
	})

	t.Run("rejects unknown platform", func(t *testing.T) {
		_, err := ParseSourceSystem("mailchimp")
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})

	t.Run("rejects empty", func(t *testing.T) {
		_, err := ParseSourceSystem("")
		require.Error(t, err)
	})
}
