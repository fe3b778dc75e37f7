package query

import (
	"context"
	"fmt"

	"github.com/tair/stock-ledger/internal/ledger/domain"
)

// ListEntriesQuery represents the audit history query. OwnerID must be set
// for sellers so they only see entries for products they own; an
// unrestricted administrative caller leaves it empty.
type ListEntriesQuery struct {
	ProductID string
	OwnerID   string
	Limit     int
	Offset    int
}

// ListEntriesHandler handles the read-only audit history query. It is a
// pure projection over the append-only log; there is no mutation path.
type ListEntriesHandler struct {
	repo domain.LedgerRepository
}

// NewListEntriesHandler creates a new list entries handler
func NewListEntriesHandler(repo domain.LedgerRepository) *ListEntriesHandler {
	return &ListEntriesHandler{repo: repo}
}

// Handle executes the list entries query, newest entries first
func (h *ListEntriesHandler) Handle(ctx context.Context, q ListEntriesQuery) ([]domain.LedgerEntry, error) {
	if q.Limit <= 0 {
		q.Limit = 10
	}
	if q.Limit > 100 {
		q.Limit = 100
	}
	if q.Offset < 0 {
		q.Offset = 0
	}

	entries, err := h.repo.Find(ctx, domain.LedgerFilter{
		ProductID: q.ProductID,
		OwnerID:   q.OwnerID,
		Limit:     q.Limit,
		Offset:    q.Offset,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list ledger entries: %w", err)
	}

	return entries, nil
}
