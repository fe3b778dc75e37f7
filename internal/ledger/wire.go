//go:build wireinject
// +build wireinject

package ledger

import (
	"github.com/google/wire"
	"gorm.io/gorm"

	"github.com/tair/stock-ledger/internal/ledger/cache"
	httpDelivery "github.com/tair/stock-ledger/internal/ledger/delivery/http"
	"github.com/tair/stock-ledger/internal/ledger/domain"
	"github.com/tair/stock-ledger/internal/ledger/repository"
	"github.com/tair/stock-ledger/internal/ledger/usecase/command"
	"github.com/tair/stock-ledger/internal/ledger/usecase/query"
	"github.com/tair/stock-ledger/kafka"
)

// ProvideStockRepository provides the stock repository wrapped with tracing
func ProvideStockRepository(db *gorm.DB) domain.StockRepository {
	return repository.NewTracingStockRepository(repository.NewGormStockRepository(db))
}

// ProvideLedgerRepository provides the ledger repository wrapped with tracing
func ProvideLedgerRepository(db *gorm.DB) domain.LedgerRepository {
	return repository.NewTracingLedgerRepository(repository.NewGormLedgerRepository(db))
}

// ProvideEventPublisher adapts the Kafka publisher (nil-safe when Kafka is
// not configured)
func ProvideEventPublisher(publisher *kafka.Publisher) command.StockEventPublisher {
	return publisher
}

// ProvideCacheInvalidator adapts the stock cache for the write side
func ProvideCacheInvalidator(stockCache *cache.StockCache) command.StockCacheInvalidator {
	return stockCache
}

// ProvideSnapshotCache adapts the stock cache for the read side
func ProvideSnapshotCache(stockCache *cache.StockCache) query.StockSnapshotCache {
	return stockCache
}

// Wire sets
var RepositorySet = wire.NewSet(
	ProvideStockRepository,
	ProvideLedgerRepository,
)

var UsecaseSet = wire.NewSet(
	ProvideEventPublisher,
	ProvideCacheInvalidator,
	ProvideSnapshotCache,
	command.NewApplyChangeHandler,
	command.NewCreateStockHandler,
	command.NewDeactivateStockHandler,
	query.NewGetStockHandler,
	query.NewListStockHandler,
	query.NewListLowStockHandler,
	query.NewListEntriesHandler,
)

// InitializeHTTPHandler initializes the HTTP handler with all dependencies
func InitializeHTTPHandler(db *gorm.DB, stockCache *cache.StockCache, publisher *kafka.Publisher) (*httpDelivery.LedgerHandler, error) {
	wire.Build(
		RepositorySet,
		UsecaseSet,
		httpDelivery.NewLedgerHandler,
	)
	return nil, nil
}
