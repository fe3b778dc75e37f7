package repository

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/tair/stock-ledger/internal/ledger/domain"
)

// GormStockRepository persists product stock in PostgreSQL
type GormStockRepository struct {
	db *gorm.DB
}

func NewGormStockRepository(db *gorm.DB) *GormStockRepository {
	return &GormStockRepository{db: db}
}

func (r *GormStockRepository) AutoMigrate() error {
	return r.db.AutoMigrate(&domain.ProductStock{}, &domain.LedgerEntry{})
}

// withTx returns a copy of the repository bound to the given transaction
func (r *GormStockRepository) withTx(tx *gorm.DB) *GormStockRepository {
	return &GormStockRepository{db: tx}
}

func (r *GormStockRepository) Create(ctx context.Context, stock *domain.ProductStock) error {
	if stock.LowStockThreshold == 0 {
		stock.LowStockThreshold = domain.DefaultLowStockThreshold
	}
	return r.db.WithContext(ctx).Create(stock).Error
}

func (r *GormStockRepository) FindByProductID(ctx context.Context, productID string) (*domain.ProductStock, error) {
	var stock domain.ProductStock
	err := r.db.WithContext(ctx).Where("product_id = ?", productID).First(&stock).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, &domain.StockNotFoundError{ProductID: productID}
	}
	if err != nil {
		return nil, fmt.Errorf("query stock: %w", err)
	}
	return &stock, nil
}

func (r *GormStockRepository) FindAll(ctx context.Context, limit, offset int) ([]domain.ProductStock, error) {
	var stocks []domain.ProductStock
	err := r.db.WithContext(ctx).Limit(limit).Offset(offset).Order("product_id").Find(&stocks).Error
	return stocks, err
}

func (r *GormStockRepository) FindBelowThreshold(ctx context.Context) ([]domain.ProductStock, error) {
	var stocks []domain.ProductStock
	err := r.db.WithContext(ctx).
		Where("quantity <= low_stock_threshold").
		Order("quantity").
		Find(&stocks).Error
	return stocks, err
}

// CompareAndSwap updates quantity in a single conditional UPDATE statement.
// Zero rows affected means another writer changed the quantity since it was
// read, or the record is gone; either way the caller must reload and retry.
func (r *GormStockRepository) CompareAndSwap(ctx context.Context, productID string, expected, next int) error {
	res := r.db.WithContext(ctx).Model(&domain.ProductStock{}).
		Where("product_id = ? AND quantity = ?", productID, expected).
		Update("quantity", next)
	if res.Error != nil {
		return fmt.Errorf("update stock: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return domain.ErrConflict
	}
	return nil
}

func (r *GormStockRepository) Deactivate(ctx context.Context, productID string) error {
	res := r.db.WithContext(ctx).Where("product_id = ?", productID).Delete(&domain.ProductStock{})
	if res.Error != nil {
		return fmt.Errorf("deactivate stock: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return &domain.StockNotFoundError{ProductID: productID}
	}
	return nil
}

// GormLedgerRepository persists the append-only audit log. Inserts happen
// only through Commit; no update or delete is exposed.
type GormLedgerRepository struct {
	db     *gorm.DB
	stocks *GormStockRepository
}

func NewGormLedgerRepository(db *gorm.DB) *GormLedgerRepository {
	return &GormLedgerRepository{db: db, stocks: NewGormStockRepository(db)}
}

// Commit applies the entry's stock transition and appends the entry in one
// database transaction. The stock update is conditioned on the quantity
// still being entry.StockBefore; a miss rolls back the entry insert and
// surfaces domain.ErrConflict so the caller can retry against fresh state.
func (r *GormLedgerRepository) Commit(ctx context.Context, entry *domain.LedgerEntry) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := r.stocks.withTx(tx).CompareAndSwap(ctx, entry.ProductID, entry.StockBefore, entry.StockAfter); err != nil {
			return err
		}
		if err := tx.Create(entry).Error; err != nil {
			return fmt.Errorf("append ledger entry: %w", err)
		}
		return nil
	})
}

func (r *GormLedgerRepository) Find(ctx context.Context, filter domain.LedgerFilter) ([]domain.LedgerEntry, error) {
	q := r.db.WithContext(ctx).Model(&domain.LedgerEntry{})

	if filter.ProductID != "" {
		q = q.Where("ledger_entries.product_id = ?", filter.ProductID)
	}
	if filter.OwnerID != "" {
		// Unscoped join: deactivated products keep a readable history
		q = q.Joins("JOIN product_stocks ON product_stocks.product_id = ledger_entries.product_id").
			Where("product_stocks.owner_id = ?", filter.OwnerID)
	}
	if filter.Limit > 0 {
		q = q.Limit(filter.Limit)
	}
	if filter.Offset > 0 {
		q = q.Offset(filter.Offset)
	}

	var entries []domain.LedgerEntry
	err := q.Order("ledger_entries.created_at DESC").Find(&entries).Error
	if err != nil {
		return nil, fmt.Errorf("query ledger entries: %w", err)
	}
	return entries, nil
}
