package command

import (
	"context"
	"fmt"

	"github.com/tair/stock-ledger/internal/ledger/domain"
)

// DeactivateStockCommand represents the command to deactivate a stock record
type DeactivateStockCommand struct {
	ProductID string
}

// DeactivateStockHandler soft-deactivates a stock record. The ledger
// history for the product stays intact and queryable; the record is never
// physically deleted while history references it.
type DeactivateStockHandler struct {
	repo  domain.StockRepository
	cache StockCacheInvalidator
}

// NewDeactivateStockHandler creates a new deactivate stock handler
func NewDeactivateStockHandler(repo domain.StockRepository, cache StockCacheInvalidator) *DeactivateStockHandler {
	return &DeactivateStockHandler{repo: repo, cache: cache}
}

// Handle executes the deactivate stock command
func (h *DeactivateStockHandler) Handle(ctx context.Context, cmd DeactivateStockCommand) error {
	if cmd.ProductID == "" {
		return fmt.Errorf("product_id is required")
	}

	if err := h.repo.Deactivate(ctx, cmd.ProductID); err != nil {
		return err
	}

	if h.cache != nil {
		// stale snapshots must not outlive the record
		_ = h.cache.Invalidate(ctx, cmd.ProductID)
	}

	return nil
}
