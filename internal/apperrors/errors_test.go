package apperrors_test

import (
	"errors"
	"fmt"
	"testing"

	"go-repair-billing/internal/apperrors"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestBalanceExceededError_MatchesSentinel(t *testing.T) {
	err := fmt.Errorf("record payment: %w", &apperrors.BalanceExceededError{
		Requested: decimal.NewFromInt(250),
		Remaining: decimal.NewFromInt(200),
	})

	assert.ErrorIs(t, err, apperrors.ErrBalanceExceeded)
	assert.NotErrorIs(t, err, apperrors.ErrValidation)

	var exceeded *apperrors.BalanceExceededError
	if assert.True(t, errors.As(err, &exceeded)) {
		assert.Equal(t, "200.00", exceeded.Remaining.StringFixed(2))
	}
	assert.Contains(t, err.Error(), "at most 200.00")
}

func TestSideEffectError_UnwrapsCause(t *testing.T) {
	cause := errors.New("insufficient stock")
	err := &apperrors.SideEffectError{Effect: "stock_decrement", Reference: "item-1", Err: cause}

	assert.ErrorIs(t, err, apperrors.ErrCascadeSideEffect)
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, "stock_decrement (item-1): insufficient stock", err.Error())
}

func TestWrappers(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		target error
	}{
		{"not found", apperrors.NotFound("invoice", 42), apperrors.ErrNotFound},
		{"validation", apperrors.Validation("amount must be positive"), apperrors.ErrValidation},
		{"conflict", apperrors.Conflict("invoice is %s", "paid"), apperrors.ErrConflict},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.ErrorIs(t, tt.err, tt.target)
		})
	}
	assert.Equal(t, "invoice 42: resource not found", apperrors.NotFound("invoice", 42).Error())
}
