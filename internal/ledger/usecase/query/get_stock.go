package query

import (
	"context"
	"fmt"

	"github.com/tair/stock-ledger/internal/ledger/domain"
	"github.com/tair/stock-ledger/pkg/logger"
)

// StockSnapshotCache is the read-through cache consulted before the
// repository. Both methods are optional optimizations; errors degrade to
// a repository read.
type StockSnapshotCache interface {
	Get(ctx context.Context, productID string) (*domain.ProductStock, error)
	Set(ctx context.Context, stock *domain.ProductStock) error
}

// GetStockQuery represents the query to get the current stock snapshot
type GetStockQuery struct {
	ProductID string
}

// GetStockHandler handles get stock query
type GetStockHandler struct {
	repo  domain.StockRepository
	cache StockSnapshotCache
}

// NewGetStockHandler creates a new get stock handler
func NewGetStockHandler(repo domain.StockRepository, cache StockSnapshotCache) *GetStockHandler {
	return &GetStockHandler{repo: repo, cache: cache}
}

// Handle executes the get stock query
func (h *GetStockHandler) Handle(ctx context.Context, q GetStockQuery) (*domain.ProductStock, error) {
	if q.ProductID == "" {
		return nil, fmt.Errorf("product_id is required")
	}

	if h.cache != nil {
		cached, err := h.cache.Get(ctx, q.ProductID)
		if err != nil {
			logger.Warn(ctx).Err(err).Str("product_id", q.ProductID).Msg("Stock cache read failed")
		} else if cached != nil {
			return cached, nil
		}
	}

	stock, err := h.repo.FindByProductID(ctx, q.ProductID)
	if err != nil {
		return nil, err
	}

	if h.cache != nil {
		if err := h.cache.Set(ctx, stock); err != nil {
			logger.Warn(ctx).Err(err).Str("product_id", q.ProductID).Msg("Stock cache write failed")
		}
	}

	return stock, nil
}
