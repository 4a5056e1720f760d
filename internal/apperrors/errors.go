package apperrors

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// ErrNotFound indicates that a requested resource could not be found or is soft-deleted.
var ErrNotFound = errors.New("resource not found")

// ErrValidation indicates that input data failed validation checks.
var ErrValidation = errors.New("validation error")

// ErrBalanceExceeded indicates a payment larger than the outstanding balance.
var ErrBalanceExceeded = errors.New("payment exceeds outstanding balance")

// ErrAlreadyInvoiced indicates that a live invoice already references the repair request.
var ErrAlreadyInvoiced = errors.New("repair request already invoiced")

// ErrDuplicateItem indicates a second line item for the same service or inventory item.
var ErrDuplicateItem = errors.New("invoice already contains an item for this reference")

// ErrConflict indicates that the resource is in a state that forbids the operation.
var ErrConflict = errors.New("conflicting resource state")

// ErrCascadeSideEffect marks a failed secondary effect of a full payment.
var ErrCascadeSideEffect = errors.New("settlement side effect failed")

// NotFound wraps ErrNotFound with the entity name and identifier.
func NotFound(entity string, id any) error {
	return fmt.Errorf("%s %v: %w", entity, id, ErrNotFound)
}

// Validation wraps ErrValidation with a human readable reason.
func Validation(format string, args ...any) error {
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), ErrValidation)
}

// Conflict wraps ErrConflict with a human readable reason.
func Conflict(format string, args ...any) error {
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), ErrConflict)
}

// BalanceExceededError reports the remaining amount the caller may still pay.
type BalanceExceededError struct {
	Requested decimal.Decimal
	Remaining decimal.Decimal
}

func (e *BalanceExceededError) Error() string {
	return fmt.Sprintf("payment of %s exceeds outstanding balance, at most %s can be paid",
		e.Requested.StringFixed(2), e.Remaining.StringFixed(2))
}

func (e *BalanceExceededError) Is(target error) bool {
	return target == ErrBalanceExceeded
}

// SideEffectError describes a cascade step that degraded without failing the payment.
type SideEffectError struct {
	// Effect names the step, e.g. "stock_decrement" or "repair_transition".
	Effect string
	// Reference identifies the row the step was acting on.
	Reference string
	Err       error
}

func (e *SideEffectError) Error() string {
	return fmt.Sprintf("%s (%s): %v", e.Effect, e.Reference, e.Err)
}

func (e *SideEffectError) Unwrap() error {
	return e.Err
}

func (e *SideEffectError) Is(target error) bool {
	return target == ErrCascadeSideEffect
}
