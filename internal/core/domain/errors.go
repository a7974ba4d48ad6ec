package domain

import (
	"errors"
	"fmt"
)

var (
	ErrDuplicateEmail        = errors.New("duplicate email")
	ErrInvalidEmail          = errors.New("invalid email")
	ErrInvalidName           = errors.New("invalid name")
	ErrInvalidPhoneFormat    = errors.New("invalid phone format")
	ErrInvalidPrice          = errors.New("invalid price")
	ErrInvalidStock          = errors.New("invalid stock")
	ErrCustomerNotFound      = errors.New("customer not found")
	ErrNoProductsSelected    = errors.New("no products selected")
	ErrProductNotFound       = errors.New("product not found")
	ErrConstraintViolation   = errors.New("constraint violation")
	ErrUnexpectedPersistence = errors.New("unexpected persistence error")
)

// Error is a rule violation reported to callers. Message is user facing;
// Kind is one of the sentinels above and is what errors.Is matches.
type Error struct {
	Kind    error
	Message string
}

func (e *Error) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return e.Kind.Error()
}

func (e *Error) Unwrap() error { return e.Kind }

func NewError(kind error, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// ConstraintError is returned by stores when a write breaks a uniqueness or
// reference constraint, e.g. Entity "customer", Field "email".
type ConstraintError struct {
	Entity string
	Field  string
	Err    error
}

func (e *ConstraintError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s.%s: %v", e.Entity, e.Field, e.Err)
	}
	return fmt.Sprintf("%s on %s.%s", ErrConstraintViolation, e.Entity, e.Field)
}

func (e *ConstraintError) Is(target error) bool { return target == ErrConstraintViolation }

func (e *ConstraintError) Unwrap() error { return e.Err }

// IsConstraint reports whether err is a constraint violation on entity.field.
func IsConstraint(err error, entity, field string) bool {
	var ce *ConstraintError
	if !errors.As(err, &ce) {
		return false
	}
	return ce.Entity == entity && ce.Field == field
}

// Kind returns the sentinel behind err, or ErrUnexpectedPersistence when err
// carries none of the known kinds.
func Kind(err error) error {
	for _, k := range kinds {
		if errors.Is(err, k) {
			return k
		}
	}
	return ErrUnexpectedPersistence
}

var kinds = []error{
	ErrDuplicateEmail,
	ErrInvalidEmail,
	ErrInvalidName,
	ErrInvalidPhoneFormat,
	ErrInvalidPrice,
	ErrInvalidStock,
	ErrCustomerNotFound,
	ErrNoProductsSelected,
	ErrProductNotFound,
	ErrConstraintViolation,
	ErrUnexpectedPersistence,
}

// KindName gives the wire name of an error kind.
func KindName(err error) string {
	switch Kind(err) {
	case ErrDuplicateEmail:
		return "DuplicateEmail"
	case ErrInvalidEmail:
		return "InvalidEmail"
	case ErrInvalidName:
		return "InvalidName"
	case ErrInvalidPhoneFormat:
		return "InvalidPhoneFormat"
	case ErrInvalidPrice:
		return "InvalidPrice"
	case ErrInvalidStock:
		return "InvalidStock"
	case ErrCustomerNotFound:
		return "CustomerNotFound"
	case ErrNoProductsSelected:
		return "NoProductsSelected"
	case ErrProductNotFound:
		return "ProductNotFound"
	case ErrConstraintViolation:
		return "ConstraintViolation"
	default:
		return "UnexpectedPersistenceError"
	}
}
