package query

import (
	"context"
	"fmt"

	"github.com/tair/stock-ledger/internal/ledger/domain"
)

// ListStockQuery represents the query to list stock records
type ListStockQuery struct {
	Limit  int
	Offset int
}

// ListStockHandler handles list stock query
type ListStockHandler struct {
	repo domain.StockRepository
}

// NewListStockHandler creates a new list stock handler
func NewListStockHandler(repo domain.StockRepository) *ListStockHandler {
	return &ListStockHandler{repo: repo}
}

// Handle executes the list stock query
func (h *ListStockHandler) Handle(ctx context.Context, q ListStockQuery) ([]domain.ProductStock, error) {
	if q.Limit <= 0 {
		q.Limit = 10
	}
	if q.Limit > 100 {
		q.Limit = 100
	}

	stocks, err := h.repo.FindAll(ctx, q.Limit, q.Offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list stocks: %w", err)
	}

	return stocks, nil
}

// ListLowStockHandler lists products at or below their alerting threshold
type ListLowStockHandler struct {
	repo domain.StockRepository
}

// NewListLowStockHandler creates a new low stock handler
func NewListLowStockHandler(repo domain.StockRepository) *ListLowStockHandler {
	return &ListLowStockHandler{repo: repo}
}

// Handle returns every product whose quantity is at or below its threshold
func (h *ListLowStockHandler) Handle(ctx context.Context) ([]domain.ProductStock, error) {
	stocks, err := h.repo.FindBelowThreshold(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list low stock products: %w", err)
	}
	return stocks, nil
}
