package domain

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound        = errors.New("not found")
	ErrValidation      = errors.New("validation failed")
	ErrDuplicate       = errors.New("already exists")
	ErrOrderLocked     = errors.New("cannot edit delivered or cancelled orders")
	ErrInactiveProduct = errors.New("cannot reorder inactive product")
	ErrPaymentLocked   = errors.New("payment on delivered or cancelled orders can only be refunded once completed")
	ErrOrderSizeLimit  = errors.New("ORDER_SIZE_LIMIT_EXCEEDED")
)

// Invalid wraps ErrValidation with a caller-facing message.
func Invalid(format string, args ...any) error {
	return &ValidationError{Message: fmt.Sprintf(format, args...)}
}

type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

func (e *ValidationError) Unwrap() error { return ErrValidation }

type DuplicateError struct {
	Field string
}

func (e *DuplicateError) Error() string {
	return fmt.Sprintf("a product with this %s already exists in your business", e.Field)
}

func (e *DuplicateError) Unwrap() error { return ErrDuplicate }

type OrderSizeError struct {
	ProductID         int64
	ProductName       string
	RequestedQuantity int
	MaxOrderQuantity  int
}

func (e *OrderSizeError) Error() string {
	return fmt.Sprintf(
		"order quantity (%d) exceeds the maximum order limit for %q. Maximum allowed: %d",
		e.RequestedQuantity, e.ProductName, e.MaxOrderQuantity,
	)
}

func (e *OrderSizeError) Unwrap() error { return ErrOrderSizeLimit }
