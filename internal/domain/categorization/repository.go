package categorization

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// DB is the subset of pgxpool.Pool the repository needs.
type DB interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// Repository persists categories in Postgres.
type Repository struct {
	db DB
}

// NewRepository creates a new categorization repository
func NewRepository(db DB) *Repository {
	return &Repository{db: db}
}

// ListCategories returns every category in creation order.
func (r *Repository) ListCategories(ctx context.Context) ([]Category, error) {
	query := `
		SELECT id, name, keywords, type
		FROM categories
		ORDER BY created_at, name
	`

	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list categories: %w", err)
	}
	defer rows.Close()

	var categories []Category
	for rows.Next() {
		var (
			c   Category
			typ string
		)
		if err := rows.Scan(&c.ID, &c.Name, &c.Keywords, &typ); err != nil {
			return nil, fmt.Errorf("failed to scan category: %w", err)
		}
		c.Type = CategoryType(typ)
		categories = append(categories, c)
	}

	return categories, rows.Err()
}

// GetCategory fetches one category.
func (r *Repository) GetCategory(ctx context.Context, id uuid.UUID) (*Category, error) {
	query := `
		SELECT id, name, keywords, type
		FROM categories
		WHERE id = $1
	`

	var (
		c   Category
		typ string
	)
	err := r.db.QueryRow(ctx, query, id).Scan(&c.ID, &c.Name, &c.Keywords, &typ)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrCategoryNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get category: %w", err)
	}
	c.Type = CategoryType(typ)
	return &c, nil
}

// SaveCategory inserts or updates a category by ID.
func (r *Repository) SaveCategory(ctx context.Context, c Category) error {
	query := `
		INSERT INTO categories (id, name, keywords, type)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			keywords = EXCLUDED.keywords,
			type = EXCLUDED.type,
			updated_at = NOW()
	`

	keywords := c.Keywords
	if keywords == nil {
		keywords = []string{}
	}
	if _, err := r.db.Exec(ctx, query, c.ID, c.Name, keywords, string(c.Type)); err != nil {
		return fmt.Errorf("failed to save category %s: %w", c.Name, err)
	}
	return nil
}

// DeleteCategory removes a category. Transactions keep their category label.
func (r *Repository) DeleteCategory(ctx context.Context, id uuid.UUID) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM categories WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete category: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrCategoryNotFound
	}
	return nil
}
