package command

import (
	"context"
	"fmt"

	"github.com/tair/stock-ledger/internal/ledger/domain"
)

// CreateStockCommand represents the command to create a stock record,
// issued alongside product creation
type CreateStockCommand struct {
	ProductID         string
	OwnerID           string
	Quantity          int
	LowStockThreshold int
}

// CreateStockHandler handles create stock command
type CreateStockHandler struct {
	repo domain.StockRepository
}

// NewCreateStockHandler creates a new create stock handler
func NewCreateStockHandler(repo domain.StockRepository) *CreateStockHandler {
	return &CreateStockHandler{repo: repo}
}

// Handle executes the create stock command
func (h *CreateStockHandler) Handle(ctx context.Context, cmd CreateStockCommand) (*domain.ProductStock, error) {
	if cmd.ProductID == "" {
		return nil, fmt.Errorf("product_id is required")
	}
	if cmd.OwnerID == "" {
		return nil, fmt.Errorf("owner_id is required")
	}
	if cmd.Quantity < 0 {
		return nil, &domain.InvalidQuantityError{Quantity: cmd.Quantity, Reason: "initial stock cannot be negative"}
	}
	if cmd.LowStockThreshold < 0 {
		return nil, fmt.Errorf("low_stock_threshold cannot be negative")
	}

	threshold := cmd.LowStockThreshold
	if threshold == 0 {
		threshold = domain.DefaultLowStockThreshold
	}

	stock := &domain.ProductStock{
		ProductID:         cmd.ProductID,
		OwnerID:           cmd.OwnerID,
		Quantity:          cmd.Quantity,
		LowStockThreshold: threshold,
	}

	if err := h.repo.Create(ctx, stock); err != nil {
		return nil, fmt.Errorf("failed to create stock: %w", err)
	}

	return stock, nil
}
