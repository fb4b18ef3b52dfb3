package categorization

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/google/uuid"
)

// Store persists categories.
type Store interface {
	ListCategories(ctx context.Context) ([]Category, error)
	GetCategory(ctx context.Context, id uuid.UUID) (*Category, error)
	SaveCategory(ctx context.Context, c Category) error
	DeleteCategory(ctx context.Context, id uuid.UUID) error
}

// Service manages categories and caches the derived matcher and search index.
type Service struct {
	repo   Store
	logger *slog.Logger

	// Cache, dropped on every mutation. The index is built once and
	// reindexed in place when generation moves past indexGen, so a search in
	// flight never sees it closed.
	categories []Category
	index      *CategoryIndex
	generation uint64
	indexGen   uint64
	cacheMu    sync.RWMutex
}

// NewService creates a new categorization service
func NewService(repo Store, logger *slog.Logger) *Service {
	return &Service{repo: repo, logger: logger}
}

// ListCategories returns all categories, cached after the first call.
func (s *Service) ListCategories(ctx context.Context) ([]Category, error) {
	s.cacheMu.RLock()
	cached, gen := s.categories, s.generation
	s.cacheMu.RUnlock()
	if cached != nil {
		return cached, nil
	}

	categories, err := s.repo.ListCategories(ctx)
	if err != nil {
		return nil, err
	}
	if categories == nil {
		categories = []Category{}
	}

	s.cacheMu.Lock()
	if s.generation == gen {
		s.categories = categories
	}
	s.cacheMu.Unlock()

	return categories, nil
}

// Matcher builds a matcher over the current categories.
func (s *Service) Matcher(ctx context.Context) (*Matcher, error) {
	categories, err := s.ListCategories(ctx)
	if err != nil {
		return nil, err
	}
	return NewMatcher(categories), nil
}

// CreateCategory validates and stores a new category.
func (s *Service) CreateCategory(ctx context.Context, name string, typ CategoryType, keywords ...string) (*Category, error) {
	c, err := NewCategory(name, typ, keywords...)
	if err != nil {
		return nil, err
	}
	if err := s.repo.SaveCategory(ctx, c); err != nil {
		return nil, err
	}
	s.invalidate()
	s.logger.Info("category created", "category_id", c.ID, "name", c.Name, "keywords", len(c.Keywords))
	return &c, nil
}

// AddKeyword adds a keyword to an existing category.
func (s *Service) AddKeyword(ctx context.Context, id uuid.UUID, keyword string) (*Category, error) {
	return s.update(ctx, id, func(c *Category) error { return c.AddKeyword(keyword) })
}

// RemoveKeyword removes a keyword from an existing category.
func (s *Service) RemoveKeyword(ctx context.Context, id uuid.UUID, keyword string) (*Category, error) {
	return s.update(ctx, id, func(c *Category) error { return c.RemoveKeyword(keyword) })
}

// RenameCategory changes the name, which is also a keyword.
func (s *Service) RenameCategory(ctx context.Context, id uuid.UUID, name string) (*Category, error) {
	return s.update(ctx, id, func(c *Category) error { return c.Rename(name) })
}

func (s *Service) DeleteCategory(ctx context.Context, id uuid.UUID) error {
	if err := s.repo.DeleteCategory(ctx, id); err != nil {
		return err
	}
	s.invalidate()
	return nil
}

func (s *Service) update(ctx context.Context, id uuid.UUID, mutate func(*Category) error) (*Category, error) {
	c, err := s.repo.GetCategory(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := mutate(c); err != nil {
		return nil, err
	}
	if err := s.repo.SaveCategory(ctx, *c); err != nil {
		return nil, err
	}
	s.invalidate()
	return c, nil
}

// Seed loads a category CSV and stores every row.
func (s *Service) Seed(ctx context.Context, r io.Reader) (int, error) {
	categories, err := LoadCategoriesCSV(r)
	if err != nil {
		return 0, err
	}
	for i, c := range categories {
		if err := s.repo.SaveCategory(ctx, c); err != nil {
			s.invalidate()
			return i, fmt.Errorf("seed stopped at %q: %w", c.Name, err)
		}
	}
	s.invalidate()
	s.logger.Info("categories seeded", "count", len(categories))
	return len(categories), nil
}

// Search looks categories up by free text.
func (s *Service) Search(ctx context.Context, q string, limit int) ([]SearchHit, error) {
	index, err := s.searchIndex(ctx)
	if err != nil {
		return nil, err
	}
	return index.Search(q, limit)
}

func (s *Service) searchIndex(ctx context.Context) (*CategoryIndex, error) {
	s.cacheMu.RLock()
	index, fresh, gen := s.index, s.index != nil && s.indexGen == s.generation, s.generation
	s.cacheMu.RUnlock()
	if fresh {
		return index, nil
	}

	categories, err := s.ListCategories(ctx)
	if err != nil {
		return nil, err
	}

	s.cacheMu.Lock()
	defer s.cacheMu.Unlock()
	if s.index != nil && s.indexGen == s.generation {
		return s.index, nil
	}
	if s.index == nil {
		if s.index, err = NewCategoryIndex(categories); err != nil {
			return nil, err
		}
	} else if err := s.index.Reindex(categories); err != nil {
		return nil, err
	}
	s.indexGen = gen
	return s.index, nil
}

func (s *Service) invalidate() {
	s.cacheMu.Lock()
	defer s.cacheMu.Unlock()

	s.categories = nil
	s.generation++
}

// Close releases the search index.
func (s *Service) Close() error {
	s.cacheMu.Lock()
	defer s.cacheMu.Unlock()

	if s.index == nil {
		return nil
	}
	err := s.index.Close()
	s.index = nil
	return err
}
