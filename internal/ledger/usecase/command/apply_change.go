package command

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/tair/stock-ledger/internal/ledger/domain"
	"github.com/tair/stock-ledger/kafka"
	"github.com/tair/stock-ledger/pkg/logger"
)

// maxAttempts bounds the optimistic-concurrency retry loop. Each attempt
// reloads the stock and recomputes the transition from scratch.
const maxAttempts = 4

// StockEventPublisher publishes events after a committed change. Publishing
// is best-effort: a broker failure never rolls back a committed change.
type StockEventPublisher interface {
	PublishStockChanged(ctx context.Context, event kafka.StockChangedEvent) error
	PublishLowStock(ctx context.Context, event kafka.LowStockEvent) error
}

// StockCacheInvalidator drops the cached stock snapshot for a product
type StockCacheInvalidator interface {
	Invalidate(ctx context.Context, productID string) error
}

// ApplyChangeCommand represents a requested stock change. Operation is the
// raw string from the caller; it is canonicalized exactly once, the same
// way for every operation type.
type ApplyChangeCommand struct {
	ProductID   string
	Operation   string
	Quantity    int
	OrderID     *string
	PerformedBy *string
	Reason      string
}

// ApplyChangeHandler is the inventory ledger core: it validates a change,
// computes the resulting stock against the freshly loaded value, and
// commits stock update + audit entry atomically. The stock quantity is
// never written through any other path.
type ApplyChangeHandler struct {
	stocks    domain.StockRepository
	ledger    domain.LedgerRepository
	publisher StockEventPublisher
	cache     StockCacheInvalidator
}

// NewApplyChangeHandler creates a new apply change handler
func NewApplyChangeHandler(
	stocks domain.StockRepository,
	ledger domain.LedgerRepository,
	publisher StockEventPublisher,
	cache StockCacheInvalidator,
) *ApplyChangeHandler {
	return &ApplyChangeHandler{
		stocks:    stocks,
		ledger:    ledger,
		publisher: publisher,
		cache:     cache,
	}
}

// Handle executes the apply change command. All validation happens before
// any write; the only errors possible after a write attempt begins are a
// CAS conflict (retried here) or a storage fault (propagated).
func (h *ApplyChangeHandler) Handle(ctx context.Context, cmd ApplyChangeCommand) (*domain.ChangeResult, error) {
	if cmd.ProductID == "" {
		return nil, &domain.StockNotFoundError{ProductID: cmd.ProductID}
	}

	op, err := domain.ParseOperationType(cmd.Operation)
	if err != nil {
		return nil, err
	}

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		stock, err := h.stocks.FindByProductID(ctx, cmd.ProductID)
		if err != nil {
			return nil, err
		}

		after, err := domain.Transition(cmd.ProductID, op, cmd.Quantity, stock.Quantity)
		if err != nil {
			return nil, err
		}

		entry := &domain.LedgerEntry{
			ID:          uuid.NewString(),
			ProductID:   cmd.ProductID,
			Operation:   op,
			Quantity:    cmd.Quantity,
			Delta:       after - stock.Quantity,
			StockBefore: stock.Quantity,
			StockAfter:  after,
			OrderID:     cmd.OrderID,
			PerformedBy: cmd.PerformedBy,
			Reason:      cmd.Reason,
			CreatedAt:   time.Now(),
		}

		err = h.ledger.Commit(ctx, entry)
		if errors.Is(err, domain.ErrConflict) {
			logger.Warn(ctx).
				Str("product_id", cmd.ProductID).
				Str("operation", string(op)).
				Int("attempt", attempt).
				Msg("Stock changed concurrently, retrying")
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("failed to commit stock change: %w", err)
		}

		stock.Quantity = after
		h.afterCommit(ctx, stock, entry)

		return &domain.ChangeResult{
			EntryID:     entry.ID,
			ProductID:   entry.ProductID,
			Operation:   entry.Operation,
			Quantity:    entry.Quantity,
			Delta:       entry.Delta,
			StockBefore: entry.StockBefore,
			StockAfter:  entry.StockAfter,
			LowStock:    stock.LowStock(),
		}, nil
	}

	return nil, &domain.ConflictError{ProductID: cmd.ProductID, Attempts: maxAttempts}
}

// afterCommit runs the best-effort side effects of a landed change: cache
// invalidation and event publishing. Failures are logged, never surfaced —
// the change itself is already durable.
func (h *ApplyChangeHandler) afterCommit(ctx context.Context, stock *domain.ProductStock, entry *domain.LedgerEntry) {
	if h.cache != nil {
		if err := h.cache.Invalidate(ctx, entry.ProductID); err != nil {
			logger.Warn(ctx).
				Err(err).
				Str("product_id", entry.ProductID).
				Msg("Failed to invalidate stock cache")
		}
	}

	if h.publisher == nil {
		return
	}

	event := kafka.StockChangedEvent{
		EntryID:     entry.ID,
		ProductID:   entry.ProductID,
		Operation:   string(entry.Operation),
		Quantity:    entry.Quantity,
		Delta:       entry.Delta,
		StockBefore: entry.StockBefore,
		StockAfter:  entry.StockAfter,
		Timestamp:   entry.CreatedAt,
	}
	if entry.OrderID != nil {
		event.OrderID = *entry.OrderID
	}
	if entry.PerformedBy != nil {
		event.PerformedBy = *entry.PerformedBy
	}

	if err := h.publisher.PublishStockChanged(ctx, event); err != nil {
		logger.Warn(ctx).
			Err(err).
			Str("entry_id", entry.ID).
			Msg("Failed to publish stock changed event")
	}

	if stock.LowStock() {
		alert := kafka.LowStockEvent{
			ProductID: stock.ProductID,
			OwnerID:   stock.OwnerID,
			Quantity:  stock.Quantity,
			Threshold: stock.LowStockThreshold,
			Timestamp: entry.CreatedAt,
		}
		if err := h.publisher.PublishLowStock(ctx, alert); err != nil {
			logger.Warn(ctx).
				Err(err).
				Str("product_id", stock.ProductID).
				Msg("Failed to publish low stock alert")
		}
	}
}
