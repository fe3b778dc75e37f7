package domain

import (
	"errors"
	"fmt"
)

// Sentinel errors, matched with errors.Is
var (
	// ErrStockNotFound is returned when a product has no stock record.
	ErrStockNotFound = errors.New("product stock not found")

	// ErrConflict is returned by the storage layer when the conditional
	// stock update matched zero rows: another writer changed the quantity
	// between read and write.
	ErrConflict = errors.New("stock changed concurrently")
)

// StockNotFoundError carries the product that could not be resolved
type StockNotFoundError struct {
	ProductID string
}

func (e *StockNotFoundError) Error() string {
	return fmt.Sprintf("product %q: %v", e.ProductID, ErrStockNotFound)
}

func (e *StockNotFoundError) Unwrap() error { return ErrStockNotFound }

// InvalidOperationTypeError names the operation string that failed to parse
type InvalidOperationTypeError struct {
	Value string
}

func (e *InvalidOperationTypeError) Error() string {
	return fmt.Sprintf("invalid operation type %q: must be one of sale, return, restock, adjustment", e.Value)
}

// InvalidQuantityError names the quantity rule the request violated
type InvalidQuantityError struct {
	Operation OperationType
	Quantity  int
	Reason    string
}

func (e *InvalidQuantityError) Error() string {
	return fmt.Sprintf("invalid quantity %d for %s: %s", e.Quantity, e.Operation, e.Reason)
}

// InsufficientStockError is returned when a sale exceeds available stock.
// It carries both amounts so callers can render "only N left" messages.
type InsufficientStockError struct {
	ProductID string
	Requested int
	Available int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for product %q: requested %d, available %d",
		e.ProductID, e.Requested, e.Available)
}

// ConflictError is returned when the optimistic concurrency check lost the
// race on every attempt. Callers should treat it as transient and may
// resubmit the originating workflow step.
type ConflictError struct {
	ProductID string
	Attempts  int
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("stock change for product %q conflicted %d times, giving up",
		e.ProductID, e.Attempts)
}

func (e *ConflictError) Unwrap() error { return ErrConflict }
