package domain

import (
	"context"
	"strings"
	"time"

	"gorm.io/gorm"
)

// OperationType is the closed set of stock-changing operations
type OperationType string

const (
	OpSale       OperationType = "sale"
	OpReturn     OperationType = "return"
	OpRestock    OperationType = "restock"
	OpAdjustment OperationType = "adjustment"
)

// ParseOperationType canonicalizes a raw operation string: trim, lowercase,
// exact match against the closed set. Every operation passes through this
// single step; there is no fuzzy matching and no per-type shortcut.
func ParseOperationType(raw string) (OperationType, error) {
	switch op := OperationType(strings.ToLower(strings.TrimSpace(raw))); op {
	case OpSale, OpReturn, OpRestock, OpAdjustment:
		return op, nil
	default:
		return "", &InvalidOperationTypeError{Value: raw}
	}
}

// DefaultLowStockThreshold is applied when a stock record is created
// without an explicit threshold.
const DefaultLowStockThreshold = 10

// ProductStock is the authoritative quantity on hand for a product.
// Its quantity is mutated exclusively through LedgerRepository.Commit.
type ProductStock struct {
	ProductID         string         `json:"product_id" gorm:"primaryKey;size:64"`
	OwnerID           string         `json:"owner_id" gorm:"size:64;index;not null"`
	Quantity          int            `json:"quantity" gorm:"not null;default:0"`
	LowStockThreshold int            `json:"low_stock_threshold" gorm:"not null;default:10"`
	CreatedAt         time.Time      `json:"created_at"`
	UpdatedAt         time.Time      `json:"updated_at"`
	DeletedAt         gorm.DeletedAt `json:"-" gorm:"index"`
}

// TableName specifies the table name
func (ProductStock) TableName() string {
	return "product_stocks"
}

// LowStock reports whether the current quantity is at or below the
// alerting threshold. The threshold is advisory only, never a hard floor.
func (s *ProductStock) LowStock() bool {
	return s.Quantity <= s.LowStockThreshold
}

// LedgerEntry is the immutable audit record of one applied stock change.
// Entries are never updated or deleted; the repository exposes no API to
// do so.
type LedgerEntry struct {
	ID          string        `json:"id" gorm:"primaryKey;size:36"`
	ProductID   string        `json:"product_id" gorm:"size:64;index;not null"`
	Operation   OperationType `json:"operation" gorm:"size:16;not null"`
	Quantity    int           `json:"quantity" gorm:"not null"`
	Delta       int           `json:"delta" gorm:"not null"`
	StockBefore int           `json:"stock_before" gorm:"not null"`
	StockAfter  int           `json:"stock_after" gorm:"not null"`
	OrderID     *string       `json:"order_id,omitempty" gorm:"size:64;index"`
	PerformedBy *string       `json:"performed_by,omitempty" gorm:"size:64"`
	Reason      string        `json:"reason,omitempty" gorm:"size:255"`
	CreatedAt   time.Time     `json:"created_at"`
}

// TableName specifies the table name
func (LedgerEntry) TableName() string {
	return "ledger_entries"
}

// Transition computes the stock level after applying an operation to the
// current quantity, enforcing the per-operation preconditions:
//
//	sale:       quantity > 0 and quantity <= current; stock decreases
//	return:     quantity > 0; stock increases
//	restock:    quantity > 0; stock increases
//	adjustment: quantity >= 0; stock is overridden, not added
func Transition(productID string, op OperationType, quantity, current int) (int, error) {
	switch op {
	case OpSale:
		if quantity <= 0 {
			return 0, &InvalidQuantityError{Operation: op, Quantity: quantity, Reason: "must be positive"}
		}
		if quantity > current {
			return 0, &InsufficientStockError{ProductID: productID, Requested: quantity, Available: current}
		}
		return current - quantity, nil
	case OpReturn, OpRestock:
		if quantity <= 0 {
			return 0, &InvalidQuantityError{Operation: op, Quantity: quantity, Reason: "must be positive"}
		}
		return current + quantity, nil
	case OpAdjustment:
		if quantity < 0 {
			return 0, &InvalidQuantityError{Operation: op, Quantity: quantity, Reason: "adjusted stock cannot be negative"}
		}
		return quantity, nil
	default:
		return 0, &InvalidOperationTypeError{Value: string(op)}
	}
}

// ChangeResult is the before/after snapshot returned to callers of a
// successful stock change.
type ChangeResult struct {
	EntryID     string        `json:"entry_id"`
	ProductID   string        `json:"product_id"`
	Operation   OperationType `json:"operation"`
	Quantity    int           `json:"quantity"`
	Delta       int           `json:"delta"`
	StockBefore int           `json:"stock_before"`
	StockAfter  int           `json:"stock_after"`
	LowStock    bool          `json:"low_stock"`
}

// LedgerFilter narrows an audit history query. A zero filter returns all
// entries (administrative view); sellers pass their OwnerID so they only
// see entries for products they own.
type LedgerFilter struct {
	ProductID string
	OwnerID   string
	Limit     int
	Offset    int
}

// StockRepository defines the contract for product stock data access
type StockRepository interface {
	Create(ctx context.Context, stock *ProductStock) error
	FindByProductID(ctx context.Context, productID string) (*ProductStock, error)
	FindAll(ctx context.Context, limit, offset int) ([]ProductStock, error)
	FindBelowThreshold(ctx context.Context) ([]ProductStock, error)
	// CompareAndSwap updates the quantity only if the stored value still
	// equals expected, returning ErrConflict otherwise. Implementations
	// must use a single conditional update, not separate read+write.
	CompareAndSwap(ctx context.Context, productID string, expected, next int) error
	// Deactivate soft-deletes the stock record; ledger history for the
	// product stays readable.
	Deactivate(ctx context.Context, productID string) error
}

// LedgerRepository defines the contract for the append-only audit log.
// Commit is the sole write: it applies the entry's before->after stock
// transition and appends the entry in one atomic step. There is no update
// or delete.
type LedgerRepository interface {
	Commit(ctx context.Context, entry *LedgerEntry) error
	// Find returns entries newest-first, matching the filter.
	Find(ctx context.Context, filter LedgerFilter) ([]LedgerEntry, error)
}
