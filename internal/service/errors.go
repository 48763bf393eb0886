package service

import (
	"errors"
	"fmt"

	"go-stock-ledger/internal/model"
	"go-stock-ledger/pkg/validator"

	"gorm.io/gorm"
)

// Error kinds. Every *Error unwraps to exactly one of these, so callers can
// branch with errors.Is.
var (
	ErrNotFound            = errors.New("not found")
	ErrValidation          = errors.New("validation failed")
	ErrInsufficientStock   = errors.New("insufficient stock")
	ErrAlreadyProcessed    = errors.New("already processed")
	ErrForbiddenTransition = errors.New("forbidden transition")
	ErrIncompleteCheck     = errors.New("incomplete check")
	ErrInvalidStatus       = errors.New("invalid status")
)

// Refinements that sit on top of a kind.
var (
	ErrProductNotFound = errors.New("product not found")
	ErrProductInactive = errors.New("product inactive")
	ErrInvalidQuantity = errors.New("invalid quantity")
	ErrDuplicateSKU    = errors.New("SKU already exists")
)

// Error is a typed failure carrying enough context to render a message.
type Error struct {
	Kind    error
	Detail  error
	Entity  string
	ID      string
	Field   string
	Message string
}

func (e *Error) Error() string {
	return e.Message
}

func (e *Error) Unwrap() []error {
	if e.Detail != nil {
		return []error{e.Kind, e.Detail}
	}
	return []error{e.Kind}
}

// KindOf returns the kind sentinel of err, or nil for untyped errors.
func KindOf(err error) error {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return nil
}

func notFound(entity string, id fmt.Stringer) *Error {
	e := &Error{
		Kind:    ErrNotFound,
		Entity:  entity,
		ID:      id.String(),
		Message: fmt.Sprintf("%s %s not found", entity, id),
	}
	if entity == "product" {
		e.Detail = ErrProductNotFound
	}
	return e
}

func validationError(field, format string, args ...interface{}) *Error {
	return &Error{Kind: ErrValidation, Field: field, Message: fmt.Sprintf(format, args...)}
}

// validateRequest runs struct validation and reports the first failure.
func validateRequest(req interface{}) error {
	errs := validator.ValidateStruct(req)
	if len(errs) == 0 {
		return nil
	}
	first := errs[0]
	return validationError(first.FailedField, "Validation failed: Field '%s' failed on tag '%s'", first.FailedField, first.Tag)
}

func invalidQuantity(field string, value interface{}) *Error {
	return &Error{
		Kind:    ErrValidation,
		Detail:  ErrInvalidQuantity,
		Field:   field,
		Message: fmt.Sprintf("%s must be a non-negative whole number, got %v", field, value),
	}
}

func productInactive(p *model.Product) *Error {
	return &Error{
		Kind:    ErrValidation,
		Detail:  ErrProductInactive,
		Entity:  "product",
		ID:      p.ID.String(),
		Message: fmt.Sprintf("product %s (%s) is not active", p.SKU, p.ID),
	}
}

func insufficientStock(p *model.Product, requested int) *Error {
	return &Error{
		Kind:    ErrInsufficientStock,
		Entity:  "product",
		ID:      p.ID.String(),
		Field:   "quantity",
		Message: fmt.Sprintf("insufficient stock for %s: requested %d, available %d", p.SKU, requested, p.Quantity),
	}
}

func alreadyProcessed(entity string, id fmt.Stringer, status interface{}) *Error {
	return &Error{
		Kind:    ErrAlreadyProcessed,
		Entity:  entity,
		ID:      id.String(),
		Field:   "status",
		Message: fmt.Sprintf("%s %s is already %v", entity, id, status),
	}
}

// numberTaken turns a unique-index collision on a document number into a
// conflict. The number was allocated by a concurrent unit of work that
// committed first; nothing is retried.
func numberTaken(entity, field string, err error) error {
	if !errors.Is(err, gorm.ErrDuplicatedKey) {
		return err
	}
	return &Error{
		Kind:    ErrAlreadyProcessed,
		Entity:  entity,
		Field:   field,
		Message: fmt.Sprintf("%s number was taken by a concurrent request, please resubmit", entity),
	}
}

func forbidden(entity string, id fmt.Stringer, format string, args ...interface{}) *Error {
	return &Error{
		Kind:    ErrForbiddenTransition,
		Entity:  entity,
		ID:      id.String(),
		Message: fmt.Sprintf(format, args...),
	}
}

func invalidStatus(field string, value interface{}) *Error {
	return &Error{
		Kind:    ErrInvalidStatus,
		Field:   field,
		Message: fmt.Sprintf("unrecognized %s %q", field, value),
	}
}
