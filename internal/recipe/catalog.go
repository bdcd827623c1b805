package recipe

import (
	"context"
	"database/sql"
	"fmt"

	"recipebook/internal/form"
)

// ListIngredients returns the catalog ordered by name, with the number
// of recipes referencing each ingredient.
func (s *PostgresStore) ListIngredients(ctx context.Context) ([]*Ingredient, error) {
	ingredients := []*Ingredient{}
	err := s.db.SelectContext(ctx, &ingredients,
		`SELECT i.id, i.name, COUNT(ri.recipe_id) AS recipe_count
		 FROM ingredients i
		 LEFT JOIN recipe_ingredients ri ON ri.ingredient_id = i.id
		 GROUP BY i.id, i.name
		 ORDER BY i.name`)
	if err != nil {
		return nil, fmt.Errorf("failed to list ingredients: %w", err)
	}
	return ingredients, nil
}

// CatalogNames returns the set of known lowercase ingredient names, the
// auxiliary input to the form-level unknown-ingredient check.
func (s *PostgresStore) CatalogNames(ctx context.Context) (map[string]struct{}, error) {
	var names []string
	if err := s.db.SelectContext(ctx, &names, "SELECT name FROM ingredients"); err != nil {
		return nil, fmt.Errorf("failed to load catalog names: %w", err)
	}
	catalog := make(map[string]struct{}, len(names))
	for _, name := range names {
		catalog[name] = struct{}{}
	}
	return catalog, nil
}

// CreateIngredient adds a name to the catalog, lowercased. Duplicate
// names (case-insensitive) are rejected.
func (s *PostgresStore) CreateIngredient(ctx context.Context, name string) (*Ingredient, error) {
	normalized := form.NormalizeName(name)
	if normalized == "" {
		return nil, ErrIngredientRequired
	}

	var i Ingredient
	err := s.db.QueryRowxContext(ctx,
		"INSERT INTO ingredients (name) VALUES ($1) ON CONFLICT (name) DO NOTHING RETURNING id, name",
		normalized).Scan(&i.ID, &i.Name)
	if err == sql.ErrNoRows {
		return nil, ErrIngredientExists
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create ingredient: %w", err)
	}
	return &i, nil
}

// UpdateIngredient renames a catalog entry. Returns (nil, nil) when the
// ingredient does not exist.
func (s *PostgresStore) UpdateIngredient(ctx context.Context, id int64, name string) (*Ingredient, error) {
	normalized := form.NormalizeName(name)
	if normalized == "" {
		return nil, ErrIngredientRequired
	}

	var taken bool
	err := s.db.GetContext(ctx, &taken,
		"SELECT EXISTS (SELECT 1 FROM ingredients WHERE name = $1 AND id <> $2)", normalized, id)
	if err != nil {
		return nil, fmt.Errorf("failed to check ingredient name: %w", err)
	}
	if taken {
		return nil, ErrIngredientExists
	}

	res, err := s.db.ExecContext(ctx, "UPDATE ingredients SET name = $1 WHERE id = $2", normalized, id)
	if err != nil {
		return nil, fmt.Errorf("failed to update ingredient: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return nil, nil
	}

	var i Ingredient
	err = s.db.GetContext(ctx, &i,
		`SELECT i.id, i.name, COUNT(ri.recipe_id) AS recipe_count
		 FROM ingredients i
		 LEFT JOIN recipe_ingredients ri ON ri.ingredient_id = i.id
		 WHERE i.id = $1
		 GROUP BY i.id, i.name`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to reload ingredient: %w", err)
	}
	return &i, nil
}

// DeleteIngredient removes a catalog entry, refusing while any recipe
// still references it. Returns false when the ingredient does not exist.
func (s *PostgresStore) DeleteIngredient(ctx context.Context, id int64) (bool, error) {
	var inUse bool
	err := s.db.GetContext(ctx, &inUse,
		"SELECT EXISTS (SELECT 1 FROM recipe_ingredients WHERE ingredient_id = $1)", id)
	if err != nil {
		return false, fmt.Errorf("failed to check ingredient usage: %w", err)
	}
	if inUse {
		return false, ErrIngredientInUse
	}

	res, err := s.db.ExecContext(ctx, "DELETE FROM ingredients WHERE id = $1", id)
	if err != nil {
		return false, fmt.Errorf("failed to delete ingredient: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read delete result: %w", err)
	}
	return n > 0, nil
}

// ListTags returns all tags.
func (s *PostgresStore) ListTags(ctx context.Context) ([]*Tag, error) {
	tags := []*Tag{}
	if err := s.db.SelectContext(ctx, &tags, "SELECT id, name FROM tags ORDER BY name"); err != nil {
		return nil, fmt.Errorf("failed to list tags: %w", err)
	}
	return tags, nil
}

// CreateTag adds a tag, lowercased. Creating an existing tag returns the
// stored row rather than an error; tags are created on demand elsewhere
// and the operation stays idempotent.
func (s *PostgresStore) CreateTag(ctx context.Context, name string) (*Tag, error) {
	normalized := form.NormalizeName(name)
	if normalized == "" {
		return nil, ErrTagRequired
	}

	var t Tag
	err := s.db.QueryRowxContext(ctx,
		`INSERT INTO tags (name) VALUES ($1)
		 ON CONFLICT (name) DO UPDATE SET name = EXCLUDED.name
		 RETURNING id, name`, normalized).Scan(&t.ID, &t.Name)
	if err != nil {
		return nil, fmt.Errorf("failed to create tag: %w", err)
	}
	return &t, nil
}
