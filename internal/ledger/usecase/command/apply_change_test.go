package command_test

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tair/stock-ledger/internal/ledger/domain"
	"github.com/tair/stock-ledger/internal/ledger/repository"
	"github.com/tair/stock-ledger/internal/ledger/usecase/command"
)

func newTestHandler(t *testing.T, productID string, quantity int) (*command.ApplyChangeHandler, *repository.MemoryStore) {
	t.Helper()

	store := repository.NewMemoryStore()
	err := store.Create(context.Background(), &domain.ProductStock{
		ProductID: productID,
		OwnerID:   "seller-1",
		Quantity:  quantity,
	})
	require.NoError(t, err)

	return command.NewApplyChangeHandler(store, store, nil, nil), store
}

func TestApplyChange_Sale(t *testing.T) {
	h, store := newTestHandler(t, "p1", 10)

	res, err := h.Handle(context.Background(), command.ApplyChangeCommand{
		ProductID: "p1",
		Operation: "sale",
		Quantity:  3,
	})
	require.NoError(t, err)

	assert.Equal(t, 10, res.StockBefore)
	assert.Equal(t, 7, res.StockAfter)
	assert.Equal(t, -3, res.Delta)
	assert.Equal(t, domain.OpSale, res.Operation)

	stock, err := store.FindByProductID(context.Background(), "p1")
	require.NoError(t, err)
	assert.Equal(t, 7, stock.Quantity)
}

func TestApplyChange_Sale_InsufficientStock(t *testing.T) {
	h, store := newTestHandler(t, "p1", 7)

	_, err := h.Handle(context.Background(), command.ApplyChangeCommand{
		ProductID: "p1",
		Operation: "sale",
		Quantity:  10,
	})

	var insErr *domain.InsufficientStockError
	require.ErrorAs(t, err, &insErr)
	assert.Equal(t, 10, insErr.Requested)
	assert.Equal(t, 7, insErr.Available)

	// stock untouched, nothing logged
	stock, err := store.FindByProductID(context.Background(), "p1")
	require.NoError(t, err)
	assert.Equal(t, 7, stock.Quantity)

	entries, err := store.Find(context.Background(), domain.LedgerFilter{ProductID: "p1"})
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestApplyChange_Restock(t *testing.T) {
	h, _ := newTestHandler(t, "p1", 7)

	res, err := h.Handle(context.Background(), command.ApplyChangeCommand{
		ProductID: "p1",
		Operation: "restock",
		Quantity:  20,
	})
	require.NoError(t, err)
	assert.Equal(t, 27, res.StockAfter)
	assert.Equal(t, 20, res.Delta)
}

func TestApplyChange_Adjustment_Overrides(t *testing.T) {
	h, _ := newTestHandler(t, "p1", 27)

	res, err := h.Handle(context.Background(), command.ApplyChangeCommand{
		ProductID: "p1",
		Operation: "adjustment",
		Quantity:  5,
	})
	require.NoError(t, err)

	assert.Equal(t, 5, res.StockAfter, "adjustment overrides, it does not add")
	assert.Equal(t, -22, res.Delta)
	assert.Equal(t, 5, res.Quantity, "raw override amount is preserved alongside the delta")
}

func TestApplyChange_OperationCanonicalization(t *testing.T) {
	h, _ := newTestHandler(t, "p1", 10)

	// mixed case with trailing space is the same operation
	res, err := h.Handle(context.Background(), command.ApplyChangeCommand{
		ProductID: "p1",
		Operation: "SALE ",
		Quantity:  1,
	})
	require.NoError(t, err)
	assert.Equal(t, domain.OpSale, res.Operation)

	_, err = h.Handle(context.Background(), command.ApplyChangeCommand{
		ProductID: "p1",
		Operation: "shipped",
		Quantity:  1,
	})
	var opErr *domain.InvalidOperationTypeError
	require.ErrorAs(t, err, &opErr)
	assert.Equal(t, "shipped", opErr.Value)
}

func TestApplyChange_UnknownProduct(t *testing.T) {
	h, _ := newTestHandler(t, "p1", 10)

	_, err := h.Handle(context.Background(), command.ApplyChangeCommand{
		ProductID: "missing",
		Operation: "restock",
		Quantity:  1,
	})
	var nfErr *domain.StockNotFoundError
	require.ErrorAs(t, err, &nfErr)
	assert.Equal(t, "missing", nfErr.ProductID)
}

func TestApplyChange_AuditEntryRecorded(t *testing.T) {
	h, store := newTestHandler(t, "p1", 10)
	orderID := "order-42"
	actor := "user-7"

	res, err := h.Handle(context.Background(), command.ApplyChangeCommand{
		ProductID:   "p1",
		Operation:   "sale",
		Quantity:    2,
		OrderID:     &orderID,
		PerformedBy: &actor,
		Reason:      "checkout",
	})
	require.NoError(t, err)

	entries, err := store.Find(context.Background(), domain.LedgerFilter{ProductID: "p1"})
	require.NoError(t, err)
	require.Len(t, entries, 1, "exactly one entry per successful change")

	e := entries[0]
	assert.Equal(t, res.EntryID, e.ID)
	assert.Equal(t, domain.OpSale, e.Operation)
	assert.Equal(t, 10, e.StockBefore)
	assert.Equal(t, 8, e.StockAfter)
	assert.Equal(t, -2, e.Delta)
	require.NotNil(t, e.OrderID)
	assert.Equal(t, "order-42", *e.OrderID)
	require.NotNil(t, e.PerformedBy)
	assert.Equal(t, "user-7", *e.PerformedBy)
	assert.Equal(t, "checkout", e.Reason)
}

func TestApplyChange_LedgerChainIsGapless(t *testing.T) {
	h, store := newTestHandler(t, "p1", 10)
	ctx := context.Background()

	ops := []command.ApplyChangeCommand{
		{ProductID: "p1", Operation: "sale", Quantity: 3},
		{ProductID: "p1", Operation: "restock", Quantity: 20},
		{ProductID: "p1", Operation: "adjustment", Quantity: 5},
		{ProductID: "p1", Operation: "return", Quantity: 2},
		{ProductID: "p1", Operation: "sale", Quantity: 7},
	}
	for _, cmd := range ops {
		_, err := h.Handle(ctx, cmd)
		require.NoError(t, err)
	}

	entries, err := store.Find(ctx, domain.LedgerFilter{ProductID: "p1"})
	require.NoError(t, err)
	require.Len(t, entries, len(ops))

	// entries come back newest-first; walk oldest-first
	for i := len(entries) - 1; i >= 0; i-- {
		e := entries[i]
		assert.Equal(t, e.StockBefore+e.Delta, e.StockAfter)
		assert.GreaterOrEqual(t, e.StockAfter, 0)
		if i < len(entries)-1 {
			assert.Equal(t, entries[i+1].StockAfter, e.StockBefore,
				"stockAfter of each entry must equal stockBefore of the next")
		}
	}

	stock, err := store.FindByProductID(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, entries[0].StockAfter, stock.Quantity)
}

func TestApplyChange_ConcurrentSales_LastUnit(t *testing.T) {
	h, store := newTestHandler(t, "p1", 1)
	ctx := context.Background()

	var wg sync.WaitGroup
	results := make([]error, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, results[i] = h.Handle(ctx, command.ApplyChangeCommand{
				ProductID: "p1",
				Operation: "sale",
				Quantity:  1,
			})
		}(i)
	}
	wg.Wait()

	var successes, insufficient int
	for _, err := range results {
		if err == nil {
			successes++
			continue
		}
		var insErr *domain.InsufficientStockError
		if assert.ErrorAs(t, err, &insErr) {
			insufficient++
			assert.Equal(t, 0, insErr.Available, "loser must observe the depleted stock after reload")
		}
	}
	assert.Equal(t, 1, successes, "exactly one sale wins the last unit")
	assert.Equal(t, 1, insufficient)

	stock, err := store.FindByProductID(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, 0, stock.Quantity, "stock never goes negative")

	entries, err := store.Find(ctx, domain.LedgerFilter{ProductID: "p1"})
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestApplyChange_ConcurrentMixedOperations(t *testing.T) {
	h, store := newTestHandler(t, "p1", 100)
	ctx := context.Background()

	const workers = 8
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			op := "sale"
			if i%2 == 0 {
				op = "restock"
			}
			// conflicts may exhaust retries under this contention; that
			// is an acceptable outcome, silent lost updates are not
			_, _ = h.Handle(ctx, command.ApplyChangeCommand{
				ProductID: "p1",
				Operation: op,
				Quantity:  5,
			})
		}(i)
	}
	wg.Wait()

	entries, err := store.Find(ctx, domain.LedgerFilter{ProductID: "p1"})
	require.NoError(t, err)

	// the committed entries form a gapless chain ending at the current stock
	for i := len(entries) - 1; i > 0; i-- {
		assert.Equal(t, entries[i].StockAfter, entries[i-1].StockBefore)
	}

	stock, err := store.FindByProductID(ctx, "p1")
	require.NoError(t, err)
	if len(entries) > 0 {
		assert.Equal(t, entries[0].StockAfter, stock.Quantity)
	}
	assert.GreaterOrEqual(t, stock.Quantity, 0)
}

// flakyLedger injects CAS conflicts before delegating to the real store
type flakyLedger struct {
	domain.LedgerRepository
	mu        sync.Mutex
	conflicts int
}

func (f *flakyLedger) Commit(ctx context.Context, entry *domain.LedgerEntry) error {
	f.mu.Lock()
	if f.conflicts > 0 {
		f.conflicts--
		f.mu.Unlock()
		return domain.ErrConflict
	}
	f.mu.Unlock()
	return f.LedgerRepository.Commit(ctx, entry)
}

func TestApplyChange_RetriesAfterConflict(t *testing.T) {
	store := repository.NewMemoryStore()
	require.NoError(t, store.Create(context.Background(), &domain.ProductStock{
		ProductID: "p1",
		OwnerID:   "seller-1",
		Quantity:  10,
	}))

	ledger := &flakyLedger{LedgerRepository: store, conflicts: 2}
	h := command.NewApplyChangeHandler(store, ledger, nil, nil)

	res, err := h.Handle(context.Background(), command.ApplyChangeCommand{
		ProductID: "p1",
		Operation: "sale",
		Quantity:  4,
	})
	require.NoError(t, err, "two conflicts still leave attempts to succeed")
	assert.Equal(t, 6, res.StockAfter)
}

func TestApplyChange_ConflictAfterExhaustedRetries(t *testing.T) {
	store := repository.NewMemoryStore()
	require.NoError(t, store.Create(context.Background(), &domain.ProductStock{
		ProductID: "p1",
		OwnerID:   "seller-1",
		Quantity:  10,
	}))

	ledger := &flakyLedger{LedgerRepository: store, conflicts: 100}
	h := command.NewApplyChangeHandler(store, ledger, nil, nil)

	_, err := h.Handle(context.Background(), command.ApplyChangeCommand{
		ProductID: "p1",
		Operation: "sale",
		Quantity:  4,
	})

	var confErr *domain.ConflictError
	require.ErrorAs(t, err, &confErr)
	assert.Equal(t, "p1", confErr.ProductID)
	assert.ErrorIs(t, err, domain.ErrConflict, "ConflictError must unwrap to ErrConflict")

	// nothing landed
	stock, ferr := store.FindByProductID(context.Background(), "p1")
	require.NoError(t, ferr)
	assert.Equal(t, 10, stock.Quantity)
}
