package repository

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/tair/stock-ledger/internal/ledger/domain"
)

var tracer = otel.Tracer("ledger-repository")

// TracingStockRepository wraps a StockRepository with tracing
type TracingStockRepository struct {
	next domain.StockRepository
}

func NewTracingStockRepository(next domain.StockRepository) *TracingStockRepository {
	return &TracingStockRepository{next: next}
}

func (r *TracingStockRepository) Create(ctx context.Context, stock *domain.ProductStock) error {
	ctx, span := tracer.Start(ctx, "repository.Create",
		trace.WithAttributes(
			attribute.String("stock.product_id", stock.ProductID),
			attribute.String("stock.owner_id", stock.OwnerID),
			attribute.Int("stock.quantity", stock.Quantity),
		),
	)
	defer span.End()

	err := r.next.Create(ctx, stock)
	recordError(span, err)
	return err
}

func (r *TracingStockRepository) FindByProductID(ctx context.Context, productID string) (*domain.ProductStock, error) {
	ctx, span := tracer.Start(ctx, "repository.FindByProductID",
		trace.WithAttributes(attribute.String("stock.product_id", productID)),
	)
	defer span.End()

	stock, err := r.next.FindByProductID(ctx, productID)
	if err != nil {
		recordError(span, err)
		return nil, err
	}

	span.SetAttributes(
		attribute.Int("stock.quantity", stock.Quantity),
		attribute.Int("stock.low_stock_threshold", stock.LowStockThreshold),
	)
	return stock, nil
}

func (r *TracingStockRepository) FindAll(ctx context.Context, limit, offset int) ([]domain.ProductStock, error) {
	ctx, span := tracer.Start(ctx, "repository.FindAll",
		trace.WithAttributes(
			attribute.Int("query.limit", limit),
			attribute.Int("query.offset", offset),
		),
	)
	defer span.End()

	stocks, err := r.next.FindAll(ctx, limit, offset)
	if err != nil {
		recordError(span, err)
		return nil, err
	}

	span.SetAttributes(attribute.Int("result.count", len(stocks)))
	return stocks, nil
}

func (r *TracingStockRepository) FindBelowThreshold(ctx context.Context) ([]domain.ProductStock, error) {
	ctx, span := tracer.Start(ctx, "repository.FindBelowThreshold")
	defer span.End()

	stocks, err := r.next.FindBelowThreshold(ctx)
	if err != nil {
		recordError(span, err)
		return nil, err
	}

	span.SetAttributes(attribute.Int("result.count", len(stocks)))
	return stocks, nil
}

func (r *TracingStockRepository) CompareAndSwap(ctx context.Context, productID string, expected, next int) error {
	ctx, span := tracer.Start(ctx, "repository.CompareAndSwap",
		trace.WithAttributes(
			attribute.String("stock.product_id", productID),
			attribute.Int("stock.expected", expected),
			attribute.Int("stock.next", next),
		),
	)
	defer span.End()

	err := r.next.CompareAndSwap(ctx, productID, expected, next)
	recordError(span, err)
	return err
}

func (r *TracingStockRepository) Deactivate(ctx context.Context, productID string) error {
	ctx, span := tracer.Start(ctx, "repository.Deactivate",
		trace.WithAttributes(attribute.String("stock.product_id", productID)),
	)
	defer span.End()

	err := r.next.Deactivate(ctx, productID)
	recordError(span, err)
	return err
}

// TracingLedgerRepository wraps a LedgerRepository with tracing
type TracingLedgerRepository struct {
	next domain.LedgerRepository
}

func NewTracingLedgerRepository(next domain.LedgerRepository) *TracingLedgerRepository {
	return &TracingLedgerRepository{next: next}
}

func (r *TracingLedgerRepository) Commit(ctx context.Context, entry *domain.LedgerEntry) error {
	ctx, span := tracer.Start(ctx, "repository.Commit",
		trace.WithAttributes(
			attribute.String("entry.product_id", entry.ProductID),
			attribute.String("entry.operation", string(entry.Operation)),
			attribute.Int("entry.stock_before", entry.StockBefore),
			attribute.Int("entry.stock_after", entry.StockAfter),
		),
	)
	defer span.End()

	err := r.next.Commit(ctx, entry)
	if err != nil {
		recordError(span, err)
		return err
	}

	span.SetAttributes(attribute.String("entry.id", entry.ID))
	return nil
}

func (r *TracingLedgerRepository) Find(ctx context.Context, filter domain.LedgerFilter) ([]domain.LedgerEntry, error) {
	ctx, span := tracer.Start(ctx, "repository.Find",
		trace.WithAttributes(
			attribute.String("filter.product_id", filter.ProductID),
			attribute.String("filter.owner_id", filter.OwnerID),
			attribute.Int("filter.limit", filter.Limit),
			attribute.Int("filter.offset", filter.Offset),
		),
	)
	defer span.End()

	entries, err := r.next.Find(ctx, filter)
	if err != nil {
		recordError(span, err)
		return nil, err
	}

	span.SetAttributes(attribute.Int("result.count", len(entries)))
	return entries, nil
}

func recordError(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
}
