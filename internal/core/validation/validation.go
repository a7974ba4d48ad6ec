// Package validation holds the stateless field and business rules applied
// before any write. Rules are built once from config; nothing here touches
// the store.
package validation

import (
	"fmt"
	"regexp"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/rl1809/crm/internal/config"
	"github.com/rl1809/crm/internal/core/domain"
)

const (
	msgPricePositive = "Price must be positive"
	msgStockNegative = "Stock cannot be negative"
)

type Validator struct {
	phonePatterns []*regexp.Regexp
	phoneMessage  string
	nameMax       int
	emailMax      int
	places        int32
	priceLimit    decimal.Decimal
	lowStock      int
	restockAmount int
	fields        *validator.Validate
}

func New(cfg config.Validation) (*Validator, error) {
	patterns := make([]*regexp.Regexp, 0, len(cfg.PhonePatterns))
	for _, p := range cfg.PhonePatterns {
		re, err := regexp.Compile(p)
		if err != nil {
			return nil, fmt.Errorf("compile phone pattern %q: %w", p, err)
		}
		patterns = append(patterns, re)
	}

	return &Validator{
		phonePatterns: patterns,
		phoneMessage:  cfg.PhoneFormatMessage,
		nameMax:       cfg.NameMaxLength,
		emailMax:      cfg.EmailMaxLength,
		places:        int32(cfg.PriceDecimalPlaces),
		priceLimit:    decimal.New(1, int32(cfg.PriceMaxDigits-cfg.PriceDecimalPlaces)),
		lowStock:      cfg.LowStockThreshold,
		restockAmount: cfg.RestockAmount,
		fields:        validator.New(validator.WithRequiredStructEnabled()),
	}, nil
}

// ValidatePhone accepts an empty phone or one matching any configured pattern.
func (v *Validator) ValidatePhone(phone string) (bool, string) {
	if phone == "" {
		return true, ""
	}
	for _, re := range v.phonePatterns {
		if re.MatchString(phone) {
			return true, ""
		}
	}
	return false, v.phoneMessage
}

func (v *Validator) CheckPhone(phone string) error {
	if ok, msg := v.ValidatePhone(phone); !ok {
		return domain.NewError(domain.ErrInvalidPhoneFormat, "%s", msg)
	}
	return nil
}

// CheckEmail validates the email syntax. It does not check uniqueness.
func (v *Validator) CheckEmail(email string) error {
	if err := v.fields.Var(email, fmt.Sprintf("required,email,max=%d", v.emailMax)); err != nil {
		return domain.NewError(domain.ErrInvalidEmail, "Enter a valid email address: '%s'", email)
	}
	return nil
}

// CheckName validates a free-text customer or product name.
func (v *Validator) CheckName(name string) error {
	if err := v.fields.Var(name, fmt.Sprintf("required,max=%d", v.nameMax)); err != nil {
		if name == "" {
			return domain.NewError(domain.ErrInvalidName, "Name is required")
		}
		return domain.NewError(domain.ErrInvalidName, "Name must be at most %d characters", v.nameMax)
	}
	return nil
}

func (v *Validator) CheckPrice(price decimal.Decimal) error {
	if !price.IsPositive() {
		return domain.NewError(domain.ErrInvalidPrice, msgPricePositive)
	}
	if !price.Equal(price.Round(v.places)) {
		return domain.NewError(domain.ErrInvalidPrice, "Price must have at most %d decimal places", v.places)
	}
	if price.GreaterThanOrEqual(v.priceLimit) {
		return domain.NewError(domain.ErrInvalidPrice, "Price must be less than %s", v.priceLimit)
	}
	return nil
}

// NormalizeStock defaults a missing stock to zero.
func (v *Validator) NormalizeStock(stock *int) (int, error) {
	if stock == nil {
		return 0, nil
	}
	if *stock < 0 {
		return 0, domain.NewError(domain.ErrInvalidStock, msgStockNegative)
	}
	return *stock, nil
}

func (v *Validator) LowStockThreshold() int { return v.lowStock }

func (v *Validator) RestockAmount() int { return v.restockAmount }
