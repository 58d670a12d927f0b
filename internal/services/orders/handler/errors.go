package handler

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidAddress      = errors.New("invalid address")
	ErrProductNotFound     = errors.New("product not found")
	ErrInvalidStatus       = errors.New("invalid status")
	ErrOrderNotFound       = errors.New("order not found")
	ErrOrderNotCancellable = errors.New("cannot cancel shipped or delivered orders")
)

// InsufficientStockError reports the offending product together with what was
// available versus requested, so the caller can surface it verbatim.
type InsufficientStockError struct {
	ProductID uint
	Available int
	Requested int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for product %d. Available: %d, Requested: %d",
		e.ProductID, e.Available, e.Requested)
}
