package repository

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/FACorreiaa/echo-ingest/internal/domain/categorization"
	"github.com/FACorreiaa/echo-ingest/internal/domain/transaction"
)

// MemoryStore keeps categories and finalized batches in process memory.
// It backs dry runs and tests.
type MemoryStore struct {
	mu         sync.RWMutex
	categories []categorization.Category
	batches    map[uuid.UUID]BatchInfo
	txs        map[uuid.UUID][]transaction.Transaction
	currency   string
}

// NewMemoryStore creates an empty store.
func NewMemoryStore(currency string) *MemoryStore {
	return &MemoryStore{
		batches:  make(map[uuid.UUID]BatchInfo),
		txs:      make(map[uuid.UUID][]transaction.Transaction),
		currency: currency,
	}
}

func (s *MemoryStore) ListCategories(context.Context) ([]categorization.Category, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.categories), nil
}

func (s *MemoryStore) GetCategory(_ context.Context, id uuid.UUID) (*categorization.Category, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	i := s.categoryIndex(id)
	if i < 0 {
		return nil, categorization.ErrCategoryNotFound
	}
	c := s.categories[i]
	c.Keywords = slices.Clone(c.Keywords)
	return &c, nil
}

func (s *MemoryStore) SaveCategory(_ context.Context, c categorization.Category) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	c.Keywords = slices.Clone(c.Keywords)
	if i := s.categoryIndex(c.ID); i >= 0 {
		s.categories[i] = c
		return nil
	}
	s.categories = append(s.categories, c)
	return nil
}

func (s *MemoryStore) DeleteCategory(_ context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.categoryIndex(id)
	if i < 0 {
		return categorization.ErrCategoryNotFound
	}
	s.categories = slices.Delete(s.categories, i, i+1)
	return nil
}

func (s *MemoryStore) categoryIndex(id uuid.UUID) int {
	return slices.IndexFunc(s.categories, func(c categorization.Category) bool { return c.ID == id })
}

// SaveTransactions stores a copy of the batch. Amounts are checked against
// the currency's minor unit the same way the Postgres store does.
func (s *MemoryStore) SaveTransactions(_ context.Context, batchID uuid.UUID, txs []transaction.Transaction) error {
	_, net, err := minorAmounts(txs, s.currency)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.batches[batchID] = BatchInfo{ID: batchID, RowCount: len(txs), CurrencyCode: s.currency, Net: net, CreatedAt: time.Now().UTC()}
	s.txs[batchID] = slices.Clone(txs)
	return nil
}

func (s *MemoryStore) GetBatch(_ context.Context, batchID uuid.UUID) (*BatchInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	b, ok := s.batches[batchID]
	if !ok {
		return nil, ErrBatchNotFound
	}
	return &b, nil
}

func (s *MemoryStore) ListTransactions(_ context.Context, batchID uuid.UUID) ([]transaction.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	txs := slices.Clone(s.txs[batchID])
	slices.SortStableFunc(txs, func(a, b transaction.Transaction) int { return a.Date.Compare(b.Date) })
	return txs, nil
}
