package query_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tair/stock-ledger/internal/ledger/domain"
	"github.com/tair/stock-ledger/internal/ledger/repository"
	"github.com/tair/stock-ledger/internal/ledger/usecase/command"
	"github.com/tair/stock-ledger/internal/ledger/usecase/query"
)

func seedStore(t *testing.T) *repository.MemoryStore {
	t.Helper()
	ctx := context.Background()
	store := repository.NewMemoryStore()

	require.NoError(t, store.Create(ctx, &domain.ProductStock{
		ProductID: "p1", OwnerID: "seller-1", Quantity: 50,
	}))
	require.NoError(t, store.Create(ctx, &domain.ProductStock{
		ProductID: "p2", OwnerID: "seller-2", Quantity: 50,
	}))

	apply := command.NewApplyChangeHandler(store, store, nil, nil)
	for _, cmd := range []command.ApplyChangeCommand{
		{ProductID: "p1", Operation: "sale", Quantity: 5},
		{ProductID: "p2", Operation: "sale", Quantity: 1},
		{ProductID: "p1", Operation: "restock", Quantity: 10},
		{ProductID: "p1", Operation: "sale", Quantity: 2},
	} {
		_, err := apply.Handle(ctx, cmd)
		require.NoError(t, err)
	}
	return store
}

func TestListEntries_OwnerSeesOnlyOwnProducts(t *testing.T) {
	store := seedStore(t)
	h := query.NewListEntriesHandler(store)

	entries, err := h.Handle(context.Background(), query.ListEntriesQuery{OwnerID: "seller-1"})
	require.NoError(t, err)
	require.Len(t, entries, 3)
	for _, e := range entries {
		assert.Equal(t, "p1", e.ProductID)
	}

	entries, err = h.Handle(context.Background(), query.ListEntriesQuery{OwnerID: "seller-2"})
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestListEntries_AdminSeesAll_NewestFirst(t *testing.T) {
	store := seedStore(t)
	h := query.NewListEntriesHandler(store)

	entries, err := h.Handle(context.Background(), query.ListEntriesQuery{})
	require.NoError(t, err)
	require.Len(t, entries, 4)

	// newest first: the last applied change (sale of 2 on p1) leads
	assert.Equal(t, "p1", entries[0].ProductID)
	assert.Equal(t, domain.OpSale, entries[0].Operation)
	assert.Equal(t, -2, entries[0].Delta)

	for i := 0; i < len(entries)-1; i++ {
		assert.False(t, entries[i].CreatedAt.Before(entries[i+1].CreatedAt))
	}
}

func TestListEntries_ProductFilterAndPaging(t *testing.T) {
	store := seedStore(t)
	h := query.NewListEntriesHandler(store)
	ctx := context.Background()

	entries, err := h.Handle(ctx, query.ListEntriesQuery{ProductID: "p1", Limit: 2})
	require.NoError(t, err)
	assert.Len(t, entries, 2)

	rest, err := h.Handle(ctx, query.ListEntriesQuery{ProductID: "p1", Limit: 2, Offset: 2})
	require.NoError(t, err)
	require.Len(t, rest, 1)
	assert.Equal(t, -5, rest[0].Delta, "oldest p1 entry comes last")
}

type stockCacheStub struct {
	snapshots map[string]*domain.ProductStock
	hits      int
	sets      int
}

func newStockCacheStub() *stockCacheStub {
	return &stockCacheStub{snapshots: make(map[string]*domain.ProductStock)}
}

func (c *stockCacheStub) Get(ctx context.Context, productID string) (*domain.ProductStock, error) {
	if s, ok := c.snapshots[productID]; ok {
		c.hits++
		return s, nil
	}
	return nil, nil
}

func (c *stockCacheStub) Set(ctx context.Context, stock *domain.ProductStock) error {
	c.sets++
	c.snapshots[stock.ProductID] = stock
	return nil
}

func TestGetStock_ReadThroughCache(t *testing.T) {
	store := seedStore(t)
	cache := newStockCacheStub()
	h := query.NewGetStockHandler(store, cache)
	ctx := context.Background()

	stock, err := h.Handle(ctx, query.GetStockQuery{ProductID: "p1"})
	require.NoError(t, err)
	assert.Equal(t, 53, stock.Quantity)
	assert.Equal(t, 1, cache.sets, "miss populates the cache")

	_, err = h.Handle(ctx, query.GetStockQuery{ProductID: "p1"})
	require.NoError(t, err)
	assert.Equal(t, 1, cache.hits, "second read is served from cache")
}

func TestGetStock_Unknown(t *testing.T) {
	store := seedStore(t)
	h := query.NewGetStockHandler(store, nil)

	_, err := h.Handle(context.Background(), query.GetStockQuery{ProductID: "missing"})
	var nfErr *domain.StockNotFoundError
	require.ErrorAs(t, err, &nfErr)
}

func TestListLowStock(t *testing.T) {
	ctx := context.Background()
	store := repository.NewMemoryStore()

	require.NoError(t, store.Create(ctx, &domain.ProductStock{
		ProductID: "healthy", OwnerID: "s", Quantity: 50, LowStockThreshold: 10,
	}))
	require.NoError(t, store.Create(ctx, &domain.ProductStock{
		ProductID: "low", OwnerID: "s", Quantity: 3, LowStockThreshold: 10,
	}))
	require.NoError(t, store.Create(ctx, &domain.ProductStock{
		ProductID: "boundary", OwnerID: "s", Quantity: 10, LowStockThreshold: 10,
	}))

	h := query.NewListLowStockHandler(store)
	stocks, err := h.Handle(ctx)
	require.NoError(t, err)

	ids := make([]string, 0, len(stocks))
	for _, s := range stocks {
		ids = append(ids, s.ProductID)
	}
	assert.ElementsMatch(t, []string{"low", "boundary"}, ids, "threshold is inclusive")
}

func TestListStock_Paging(t *testing.T) {
	store := seedStore(t)
	h := query.NewListStockHandler(store)

	stocks, err := h.Handle(context.Background(), query.ListStockQuery{Limit: 1})
	require.NoError(t, err)
	assert.Len(t, stocks, 1)

	all, err := h.Handle(context.Background(), query.ListStockQuery{})
	require.NoError(t, err)
	assert.Len(t, all, 2)
}
