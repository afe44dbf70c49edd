package score

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"coalesce/internal/contact/models"
)

func TestAddressCompleteness(t *testing.T) {
	t.Run("full validated address scores 100", func(t *testing.T) {
		assert.Equal(t, 100, AddressCompleteness(models.PostalAddress{
			Street:        "12 Harbor Way",
			City:          "Gloucester",
			State:         "MA",
			PostalCode:    "01930",
			USPSValidated: true,
		}))
	})

	t.Run("postal code only is usable but low", func(t *testing.T) {
		assert.Equal(t, 20, AddressCompleteness(models.PostalAddress{PostalCode: "01930"}))
	})

	t.Run("validation flag alone scores zero", func(t *testing.T) {
		assert.Equal(t, 0, AddressCompleteness(models.PostalAddress{USPSValidated: true}))
	})

	t.Run("street and city without validation", func(t *testing.T) {
		assert.Equal(t, 55, AddressCompleteness(models.PostalAddress{
			Street: "12 Harbor Way",
			City:   "Gloucester",
		}))
	})
}

func TestRecordAddressCompleteness(t *testing.T) {
	record := &models.IncomingRecord{
		Street:     "12 Harbor Way",
		City:       "Gloucester",
		State:      "MA",
		PostalCode: "01930",
	}
	assert.Equal(t, 85, RecordAddressCompleteness(record))
}
