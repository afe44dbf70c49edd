package identity

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeEmail(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"lowercases", "Pat.OBrien@Example.COM", "pat.obrien@example.com"},
		{"trims whitespace", "  pat@example.com \t", "pat@example.com"},
		{"empty stays empty", "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, NormalizeEmail(tt.input))
		})
	}
}

func TestNormalizePhone(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"strips formatting", "  (555) 123-4567", "5551234567"},
		{"keeps digits only", "+1 555.123.4567 ext 9", "155512345679"},
		{"letters dropped entirely", "CALL-NOW", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, NormalizePhone(tt.input))
		})
	}
}

func TestPhoneSuffix(t *testing.T) {
	t.Run("last seven digits", func(t *testing.T) {
		assert.Equal(t, "1234567", PhoneSuffix("5551234567"))
		assert.Equal(t, "1234567", PhoneSuffix("15551234567"))
	})

	t.Run("too short means no suffix key", func(t *testing.T) {
		assert.Equal(t, "", PhoneSuffix("123456"))
		assert.Equal(t, "", PhoneSuffix(""))
	})
}

func TestNormalizeName(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"braced annotation stripped", "Corin Blanchard {C}", "corin blanchard"},
		{"parenthetical stripped", "Pat O'Brien (volunteer)", "pat obrien"},
		{"punctuation dropped", "O'Brien, Pat", "obrien pat"},
		{"whitespace collapsed", "  Jamie   Q.   Lee ", "jamie q lee"},
		{"bracketed note stripped", "Lee [dup?]", "lee"},
		{"nothing left", "(unknown)", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, NormalizeName(tt.input))
		})
	}
}
