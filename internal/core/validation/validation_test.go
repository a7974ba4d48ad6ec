package validation

import (
	"errors"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rl1809/crm/internal/config"
	"github.com/rl1809/crm/internal/core/domain"
)

func newValidator(t *testing.T) *Validator {
	t.Helper()
	v, err := New(config.Default().Validation)
	require.NoError(t, err)
	return v
}

func TestValidatePhone(t *testing.T) {
	v := newValidator(t)

	tests := []struct {
		phone string
		ok    bool
	}{
		{"", true},
		{"+1234567890", true},
		{"+123456789012345", true},
		{"123-456-7890", true},
		{"+123456789", false},
		{"+1234567890123456", false},
		{"1234567890", false},
		{"123-4567-890", false},
		{"(123) 456-7890", false},
		{"+1234567890 ", false},
		{"abc-def-ghij", false},
		{"123-456-7890\n", false},
	}

	for _, tt := range tests {
		ok, msg := v.ValidatePhone(tt.phone)
		assert.Equal(t, tt.ok, ok, "phone %q", tt.phone)
		if !tt.ok {
			assert.Equal(t, "Phone must be in format +1234567890 or 123-456-7890", msg)
		}
	}
}

func TestCheckPhone_ErrorKind(t *testing.T) {
	v := newValidator(t)

	err := v.CheckPhone("555")
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrInvalidPhoneFormat))
	assert.Contains(t, err.Error(), "+1234567890")
	assert.Contains(t, err.Error(), "123-456-7890")
}

func TestCheckPrice(t *testing.T) {
	v := newValidator(t)

	for _, s := range []string{"0", "-1", "-0.01", "0.001", "100000000", "9.999"} {
		err := v.CheckPrice(decimal.RequireFromString(s))
		assert.ErrorIs(t, err, domain.ErrInvalidPrice, "price %s", s)
	}
	for _, s := range []string{"0.01", "10", "10.50", "99999999.99", "10.500"} {
		assert.NoError(t, v.CheckPrice(decimal.RequireFromString(s)), "price %s", s)
	}

	err := v.CheckPrice(decimal.Zero)
	assert.Equal(t, "Price must be positive", err.Error())
}

func TestNormalizeStock(t *testing.T) {
	v := newValidator(t)

	n, err := v.NormalizeStock(nil)
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	five := 5
	n, err = v.NormalizeStock(&five)
	require.NoError(t, err)
	assert.Equal(t, 5, n)

	neg := -1
	_, err = v.NormalizeStock(&neg)
	assert.ErrorIs(t, err, domain.ErrInvalidStock)
	assert.Equal(t, "Stock cannot be negative", err.Error())
}

func TestCheckNameAndEmail(t *testing.T) {
	v := newValidator(t)

	assert.NoError(t, v.CheckName("Alice"))
	assert.ErrorIs(t, v.CheckName(""), domain.ErrInvalidName)
	assert.ErrorIs(t, v.CheckName(strings.Repeat("a", 256)), domain.ErrInvalidName)

	assert.NoError(t, v.CheckEmail("alice@example.com"))
	assert.ErrorIs(t, v.CheckEmail("not-an-email"), domain.ErrInvalidEmail)
	assert.ErrorIs(t, v.CheckEmail(""), domain.ErrInvalidEmail)
}

func TestNew_InvalidPattern(t *testing.T) {
	cfg := config.Default().Validation
	cfg.PhonePatterns = []string{"("}

	_, err := New(cfg)
	assert.Error(t, err)
}
