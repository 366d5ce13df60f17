package repository

import (
	"context"

	"github.com/Taichi-iskw/yt-rank/internal/model"
)

// categoryRepository implements CategoryRepository using PostgreSQL
type categoryRepository struct {
	pool Pool
}

// NewCategoryRepository creates a new instance of CategoryRepository
func NewCategoryRepository(pool Pool) CategoryRepository {
	return &categoryRepository{
		pool: pool,
	}
}

// EnsureCategories resolves all names with one insert and one select
func (r *categoryRepository) EnsureCategories(ctx context.Context, names []string) (map[string]int64, error) {
	ids := make(map[string]int64)
	if len(names) == 0 {
		return ids, nil
	}

	// Normalise and de-duplicate
	seen := make(map[string]bool, len(names))
	unique := make([]string, 0, len(names))
	for _, raw := range names {
		name := model.CategoryName(raw)
		if !seen[name] {
			seen[name] = true
			unique = append(unique, name)
		}
	}

	insertSQL := "INSERT INTO categories (name) SELECT unnest($1::text[]) ON CONFLICT (name) DO NOTHING"
	if _, err := r.pool.Exec(ctx, insertSQL, unique); err != nil {
		return nil, handlePostgreSQLError(err, "failed to create categories")
	}

	rows, err := r.pool.Query(ctx, "SELECT id, name FROM categories WHERE name = ANY($1)", unique)
	if err != nil {
		return nil, handlePostgreSQLError(err, "failed to load categories")
	}
	defer rows.Close()

	for rows.Next() {
		var c model.Category
		if err := rows.Scan(&c.ID, &c.Name); err != nil {
			return nil, handlePostgreSQLError(err, "failed to scan category row")
		}
		ids[c.Name] = c.ID
	}
	if err := rows.Err(); err != nil {
		return nil, handlePostgreSQLError(err, "failed to iterate category rows")
	}

	return ids, nil
}
