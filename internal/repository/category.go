package repository

import "context"

// CategoryRepository defines persistence of channel categories
type CategoryRepository interface {
	// EnsureCategories creates any missing categories and returns the ID of every requested name.
	// Blank names resolve to the default category.
	EnsureCategories(ctx context.Context, names []string) (map[string]int64, error)
}
