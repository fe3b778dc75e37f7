package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/tair/stock-ledger/internal/ledger/domain"
)

// MemoryStore is an in-process implementation of both repository contracts,
// used in tests and for local development without PostgreSQL. The mutex
// gives Commit the same all-or-nothing CAS semantics as the SQL transaction.
type MemoryStore struct {
	mu      sync.Mutex
	stocks  map[string]*domain.ProductStock
	deleted map[string]*domain.ProductStock
	entries []domain.LedgerEntry
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		stocks:  make(map[string]*domain.ProductStock),
		deleted: make(map[string]*domain.ProductStock),
	}
}

func (m *MemoryStore) Create(ctx context.Context, stock *domain.ProductStock) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if stock.LowStockThreshold == 0 {
		stock.LowStockThreshold = domain.DefaultLowStockThreshold
	}
	now := time.Now()
	stock.CreatedAt = now
	stock.UpdatedAt = now

	cp := *stock
	m.stocks[stock.ProductID] = &cp
	return nil
}

func (m *MemoryStore) FindByProductID(ctx context.Context, productID string) (*domain.ProductStock, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	stock, ok := m.stocks[productID]
	if !ok {
		return nil, &domain.StockNotFoundError{ProductID: productID}
	}
	cp := *stock
	return &cp, nil
}

func (m *MemoryStore) FindAll(ctx context.Context, limit, offset int) ([]domain.ProductStock, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]domain.ProductStock, 0, len(m.stocks))
	for _, s := range m.stocks {
		out = append(out, *s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ProductID < out[j].ProductID })

	return page(out, limit, offset), nil
}

func (m *MemoryStore) FindBelowThreshold(ctx context.Context) ([]domain.ProductStock, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []domain.ProductStock
	for _, s := range m.stocks {
		if s.LowStock() {
			out = append(out, *s)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Quantity < out[j].Quantity })
	return out, nil
}

func (m *MemoryStore) CompareAndSwap(ctx context.Context, productID string, expected, next int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.casLocked(productID, expected, next)
}

func (m *MemoryStore) casLocked(productID string, expected, next int) error {
	stock, ok := m.stocks[productID]
	if !ok {
		return domain.ErrConflict
	}
	if stock.Quantity != expected {
		return domain.ErrConflict
	}
	stock.Quantity = next
	stock.UpdatedAt = time.Now()
	return nil
}

func (m *MemoryStore) Deactivate(ctx context.Context, productID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	stock, ok := m.stocks[productID]
	if !ok {
		return &domain.StockNotFoundError{ProductID: productID}
	}
	delete(m.stocks, productID)
	m.deleted[productID] = stock
	return nil
}

// Commit applies the CAS and appends the entry under one lock, mirroring
// the SQL transaction boundary.
func (m *MemoryStore) Commit(ctx context.Context, entry *domain.LedgerEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.casLocked(entry.ProductID, entry.StockBefore, entry.StockAfter); err != nil {
		return err
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now()
	}
	m.entries = append(m.entries, *entry)
	return nil
}

func (m *MemoryStore) Find(ctx context.Context, filter domain.LedgerFilter) ([]domain.LedgerEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []domain.LedgerEntry
	// newest first: walk the append-ordered log backwards
	for i := len(m.entries) - 1; i >= 0; i-- {
		e := m.entries[i]
		if filter.ProductID != "" && e.ProductID != filter.ProductID {
			continue
		}
		if filter.OwnerID != "" && !m.ownedByLocked(e.ProductID, filter.OwnerID) {
			continue
		}
		out = append(out, e)
	}
	return page(out, filter.Limit, filter.Offset), nil
}

func (m *MemoryStore) ownedByLocked(productID, ownerID string) bool {
	if s, ok := m.stocks[productID]; ok {
		return s.OwnerID == ownerID
	}
	if s, ok := m.deleted[productID]; ok {
		return s.OwnerID == ownerID
	}
	return false
}

func page[T any](items []T, limit, offset int) []T {
	if offset < 0 {
		offset = 0
	}
	if offset >= len(items) {
		return nil
	}
	items = items[offset:]
	if limit > 0 && limit < len(items) {
		items = items[:limit]
	}
	return items
}
