package recipe

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"

	"recipebook/internal/form"
)

// CreateParams carries a validated recipe payload. Ingredient names and
// tags are already normalized by the form package; the store still
// re-checks ingredients against the catalog inside the transaction.
type CreateParams struct {
	Title        string
	Description  string
	Instructions string
	PrepTime     int
	CookTime     int
	Ingredients  []form.IngredientEntry
	Tags         []string
}

// PostgresStore implements recipe persistence over PostgreSQL.
type PostgresStore struct {
	db *sqlx.DB
}

// NewPostgresStore creates a new PostgresStore on an open connection.
func NewPostgresStore(db *sqlx.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// ListRecipes returns all recipes with their derived fields attached.
func (s *PostgresStore) ListRecipes(ctx context.Context) ([]*Recipe, error) {
	var recipes []*Recipe
	err := s.db.SelectContext(ctx, &recipes,
		"SELECT id, title, description, instructions, prep_time, cook_time, created_at FROM recipes ORDER BY id")
	if err != nil {
		return nil, fmt.Errorf("failed to list recipes: %w", err)
	}
	if err := s.attachDetails(ctx, recipes); err != nil {
		return nil, err
	}
	return recipes, nil
}

// GetRecipe returns one recipe by id, or (nil, nil) when not found.
func (s *PostgresStore) GetRecipe(ctx context.Context, id int64) (*Recipe, error) {
	var r Recipe
	err := s.db.GetContext(ctx, &r,
		"SELECT id, title, description, instructions, prep_time, cook_time, created_at FROM recipes WHERE id = $1", id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get recipe: %w", err)
	}
	if err := s.attachDetails(ctx, []*Recipe{&r}); err != nil {
		return nil, err
	}
	return &r, nil
}

// SearchRecipes returns recipes matching every term of the query within
// the given scope (all, name, ingredients or tags). Terms are split on
// commas, semicolons, colons and newlines; matching is case-insensitive
// substring matching.
func (s *PostgresStore) SearchRecipes(ctx context.Context, query, scope string) ([]*Recipe, error) {
	terms := form.SplitTerms(query)
	if len(terms) == 0 {
		return s.ListRecipes(ctx)
	}

	var clauses []string
	var args []interface{}
	for _, term := range terms {
		pattern := "%" + term + "%"
		n := len(args) + 1
		switch scope {
		case "name":
			clauses = append(clauses, fmt.Sprintf("(r.title ILIKE $%d OR r.description ILIKE $%d)", n, n+1))
			args = append(args, pattern, pattern)
		case "ingredients":
			clauses = append(clauses, fmt.Sprintf(
				"EXISTS (SELECT 1 FROM recipe_ingredients ri JOIN ingredients i ON i.id = ri.ingredient_id WHERE ri.recipe_id = r.id AND i.name ILIKE $%d)", n))
			args = append(args, pattern)
		case "tags":
			clauses = append(clauses, fmt.Sprintf(
				"EXISTS (SELECT 1 FROM recipe_tags rt JOIN tags t ON t.id = rt.tag_id WHERE rt.recipe_id = r.id AND t.name ILIKE $%d)", n))
			args = append(args, pattern)
		default:
			clauses = append(clauses, fmt.Sprintf(
				"(r.title ILIKE $%d OR r.description ILIKE $%d"+
					" OR EXISTS (SELECT 1 FROM recipe_ingredients ri JOIN ingredients i ON i.id = ri.ingredient_id WHERE ri.recipe_id = r.id AND i.name ILIKE $%d)"+
					" OR EXISTS (SELECT 1 FROM recipe_tags rt JOIN tags t ON t.id = rt.tag_id WHERE rt.recipe_id = r.id AND t.name ILIKE $%d))",
				n, n+1, n+2, n+3))
			args = append(args, pattern, pattern, pattern, pattern)
		}
	}

	q := "SELECT r.id, r.title, r.description, r.instructions, r.prep_time, r.cook_time, r.created_at FROM recipes r WHERE " +
		strings.Join(clauses, " AND ") + " ORDER BY r.id"

	var recipes []*Recipe
	if err := s.db.SelectContext(ctx, &recipes, q, args...); err != nil {
		return nil, fmt.Errorf("failed to search recipes: %w", err)
	}
	if err := s.attachDetails(ctx, recipes); err != nil {
		return nil, err
	}
	return recipes, nil
}

// CreateRecipe stores a recipe and links its ingredients, quantities,
// tags and author. Ingredients missing from the catalog abort the
// transaction with an UnknownIngredientsError; tags are created on
// demand.
func (s *PostgresStore) CreateRecipe(ctx context.Context, p CreateParams, userID int64) (*Recipe, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin tx: %w", err)
	}
	defer tx.Rollback()

	var id int64
	err = tx.QueryRowxContext(ctx,
		"INSERT INTO recipes (title, description, instructions, prep_time, cook_time) VALUES ($1, $2, $3, $4, $5) RETURNING id",
		p.Title, p.Description, p.Instructions, p.PrepTime, p.CookTime).Scan(&id)
	if err != nil {
		return nil, fmt.Errorf("failed to insert recipe: %w", err)
	}

	if err := linkIngredients(ctx, tx, id, p.Ingredients); err != nil {
		return nil, err
	}
	if err := linkTags(ctx, tx, id, p.Tags); err != nil {
		return nil, err
	}

	_, err = tx.ExecContext(ctx, "INSERT INTO recipe_authors (recipe_id, user_id) VALUES ($1, $2)", id, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to record recipe author: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit recipe: %w", err)
	}
	return s.GetRecipe(ctx, id)
}

// UpdateRecipe replaces a recipe's fields, ingredient links and tags.
// Returns (nil, nil) when the recipe does not exist.
func (s *PostgresStore) UpdateRecipe(ctx context.Context, id int64, p CreateParams) (*Recipe, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin tx: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx,
		"UPDATE recipes SET title = $1, description = $2, instructions = $3, prep_time = $4, cook_time = $5 WHERE id = $6",
		p.Title, p.Description, p.Instructions, p.PrepTime, p.CookTime, id)
	if err != nil {
		return nil, fmt.Errorf("failed to update recipe: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return nil, nil
	}

	for _, table := range []string{"recipe_ingredients", "recipe_tags"} {
		if _, err := tx.ExecContext(ctx, "DELETE FROM "+table+" WHERE recipe_id = $1", id); err != nil {
			return nil, fmt.Errorf("failed to clear %s: %w", table, err)
		}
	}

	if err := linkIngredients(ctx, tx, id, p.Ingredients); err != nil {
		return nil, err
	}
	if err := linkTags(ctx, tx, id, p.Tags); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit recipe update: %w", err)
	}
	return s.GetRecipe(ctx, id)
}

// DeleteRecipe removes a recipe and everything hanging off it: comment
// likes and authors, comments, favorites, author rows and join rows.
// Returns false when the recipe does not exist.
func (s *PostgresStore) DeleteRecipe(ctx context.Context, id int64) (bool, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("failed to begin tx: %w", err)
	}
	defer tx.Rollback()

	statements := []string{
		"DELETE FROM comment_likes WHERE comment_id IN (SELECT id FROM recipe_comments WHERE recipe_id = $1)",
		"DELETE FROM comment_authors WHERE comment_id IN (SELECT id FROM recipe_comments WHERE recipe_id = $1)",
		"DELETE FROM recipe_comments WHERE recipe_id = $1",
		"DELETE FROM recipe_favorites WHERE recipe_id = $1",
		"DELETE FROM recipe_authors WHERE recipe_id = $1",
		"DELETE FROM recipe_ingredients WHERE recipe_id = $1",
		"DELETE FROM recipe_tags WHERE recipe_id = $1",
	}
	for _, stmt := range statements {
		if _, err := tx.ExecContext(ctx, stmt, id); err != nil {
			return false, fmt.Errorf("failed to delete recipe dependents: %w", err)
		}
	}

	res, err := tx.ExecContext(ctx, "DELETE FROM recipes WHERE id = $1", id)
	if err != nil {
		return false, fmt.Errorf("failed to delete recipe: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read delete result: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("failed to commit recipe delete: %w", err)
	}
	return n > 0, nil
}

// IsOwner reports whether the user created the recipe.
func (s *PostgresStore) IsOwner(ctx context.Context, recipeID, userID int64) (bool, error) {
	var exists bool
	err := s.db.GetContext(ctx, &exists,
		"SELECT EXISTS (SELECT 1 FROM recipe_authors WHERE recipe_id = $1 AND user_id = $2)", recipeID, userID)
	if err != nil {
		return false, fmt.Errorf("failed to check recipe owner: %w", err)
	}
	return exists, nil
}

// FavoriteIDs returns the ids of the recipes the user has favorited.
func (s *PostgresStore) FavoriteIDs(ctx context.Context, userID int64) ([]int64, error) {
	ids := []int64{}
	err := s.db.SelectContext(ctx, &ids,
		"SELECT recipe_id FROM recipe_favorites WHERE user_id = $1 ORDER BY recipe_id", userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list favorites: %w", err)
	}
	return ids, nil
}

// AddFavorite marks a recipe as a favorite of the user. Adding twice is a
// no-op. Returns false when the recipe does not exist.
func (s *PostgresStore) AddFavorite(ctx context.Context, recipeID, userID int64) (bool, error) {
	var exists bool
	err := s.db.GetContext(ctx, &exists, "SELECT EXISTS (SELECT 1 FROM recipes WHERE id = $1)", recipeID)
	if err != nil {
		return false, fmt.Errorf("failed to check recipe: %w", err)
	}
	if !exists {
		return false, nil
	}
	_, err = s.db.ExecContext(ctx,
		"INSERT INTO recipe_favorites (recipe_id, user_id) VALUES ($1, $2) ON CONFLICT DO NOTHING", recipeID, userID)
	if err != nil {
		return false, fmt.Errorf("failed to add favorite: %w", err)
	}
	return true, nil
}

// RemoveFavorite removes a favorite. Removing a favorite that was never
// set is a no-op.
func (s *PostgresStore) RemoveFavorite(ctx context.Context, recipeID, userID int64) error {
	_, err := s.db.ExecContext(ctx,
		"DELETE FROM recipe_favorites WHERE recipe_id = $1 AND user_id = $2", recipeID, userID)
	if err != nil {
		return fmt.Errorf("failed to remove favorite: %w", err)
	}
	return nil
}

// attachDetails fills authors, favorite counts, measurements and tags for
// a batch of recipes with one query per concern.
func (s *PostgresStore) attachDetails(ctx context.Context, recipes []*Recipe) error {
	if len(recipes) == 0 {
		return nil
	}
	ids := make([]int64, len(recipes))
	byID := make(map[int64]*Recipe, len(recipes))
	for i, r := range recipes {
		ids[i] = r.ID
		byID[r.ID] = r
		r.Ingredients = []Measurement{}
		r.Tags = []Tag{}
	}

	query, args, err := sqlx.In(
		"SELECT ra.recipe_id, u.username FROM recipe_authors ra JOIN users u ON u.id = ra.user_id WHERE ra.recipe_id IN (?)", ids)
	if err != nil {
		return fmt.Errorf("failed to build author query: %w", err)
	}
	rows, err := s.db.QueryxContext(ctx, s.db.Rebind(query), args...)
	if err != nil {
		return fmt.Errorf("failed to load recipe authors: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var recipeID int64
		var username string
		if err := rows.Scan(&recipeID, &username); err != nil {
			return fmt.Errorf("failed to scan recipe author: %w", err)
		}
		byID[recipeID].CreatedBy = username
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("rows error: %w", err)
	}

	query, args, err = sqlx.In(
		"SELECT recipe_id, COUNT(user_id) FROM recipe_favorites WHERE recipe_id IN (?) GROUP BY recipe_id", ids)
	if err != nil {
		return fmt.Errorf("failed to build favorite query: %w", err)
	}
	favRows, err := s.db.QueryxContext(ctx, s.db.Rebind(query), args...)
	if err != nil {
		return fmt.Errorf("failed to load favorite counts: %w", err)
	}
	defer favRows.Close()
	for favRows.Next() {
		var recipeID int64
		var count int
		if err := favRows.Scan(&recipeID, &count); err != nil {
			return fmt.Errorf("failed to scan favorite count: %w", err)
		}
		byID[recipeID].FavoriteCount = count
	}
	if err := favRows.Err(); err != nil {
		return fmt.Errorf("rows error: %w", err)
	}

	query, args, err = sqlx.In(
		"SELECT ri.recipe_id, ri.ingredient_id, i.name, COALESCE(ri.quantity, '') FROM recipe_ingredients ri JOIN ingredients i ON i.id = ri.ingredient_id WHERE ri.recipe_id IN (?) ORDER BY i.name", ids)
	if err != nil {
		return fmt.Errorf("failed to build measurement query: %w", err)
	}
	mRows, err := s.db.QueryxContext(ctx, s.db.Rebind(query), args...)
	if err != nil {
		return fmt.Errorf("failed to load measurements: %w", err)
	}
	defer mRows.Close()
	for mRows.Next() {
		var recipeID int64
		var m Measurement
		if err := mRows.Scan(&recipeID, &m.IngredientID, &m.Name, &m.Quantity); err != nil {
			return fmt.Errorf("failed to scan measurement: %w", err)
		}
		r := byID[recipeID]
		r.Ingredients = append(r.Ingredients, m)
	}
	if err := mRows.Err(); err != nil {
		return fmt.Errorf("rows error: %w", err)
	}

	query, args, err = sqlx.In(
		"SELECT rt.recipe_id, t.id, t.name FROM recipe_tags rt JOIN tags t ON t.id = rt.tag_id WHERE rt.recipe_id IN (?) ORDER BY t.name", ids)
	if err != nil {
		return fmt.Errorf("failed to build tag query: %w", err)
	}
	tRows, err := s.db.QueryxContext(ctx, s.db.Rebind(query), args...)
	if err != nil {
		return fmt.Errorf("failed to load tags: %w", err)
	}
	defer tRows.Close()
	for tRows.Next() {
		var recipeID int64
		var t Tag
		if err := tRows.Scan(&recipeID, &t.ID, &t.Name); err != nil {
			return fmt.Errorf("failed to scan tag: %w", err)
		}
		r := byID[recipeID]
		r.Tags = append(r.Tags, t)
	}
	if err := tRows.Err(); err != nil {
		return fmt.Errorf("rows error: %w", err)
	}

	return nil
}

// linkIngredients resolves entries against the catalog and inserts the
// join rows with quantities. Names not in the catalog fail the whole
// batch so partially linked recipes never reach a commit.
func linkIngredients(ctx context.Context, tx *sqlx.Tx, recipeID int64, entries []form.IngredientEntry) error {
	var missing []string
	for _, e := range entries {
		var ingredientID int64
		err := tx.QueryRowxContext(ctx, "SELECT id FROM ingredients WHERE name = $1", e.Name).Scan(&ingredientID)
		if err == sql.ErrNoRows {
			missing = append(missing, e.Name)
			continue
		}
		if err != nil {
			return fmt.Errorf("failed to resolve ingredient %q: %w", e.Name, err)
		}
		var quantity interface{}
		if e.Quantity != "" {
			quantity = e.Quantity
		}
		_, err = tx.ExecContext(ctx,
			"INSERT INTO recipe_ingredients (recipe_id, ingredient_id, quantity) VALUES ($1, $2, $3)",
			recipeID, ingredientID, quantity)
		if err != nil {
			return fmt.Errorf("failed to link ingredient %q: %w", e.Name, err)
		}
	}
	if len(missing) > 0 {
		return &UnknownIngredientsError{Names: missing}
	}
	return nil
}

// linkTags inserts tag join rows, creating catalog tags on demand.
func linkTags(ctx context.Context, tx *sqlx.Tx, recipeID int64, tags []string) error {
	for _, name := range tags {
		var tagID int64
		err := tx.QueryRowxContext(ctx, "SELECT id FROM tags WHERE name = $1", name).Scan(&tagID)
		if err == sql.ErrNoRows {
			err = tx.QueryRowxContext(ctx, "INSERT INTO tags (name) VALUES ($1) RETURNING id", name).Scan(&tagID)
		}
		if err != nil {
			return fmt.Errorf("failed to resolve tag %q: %w", name, err)
		}
		_, err = tx.ExecContext(ctx,
			"INSERT INTO recipe_tags (recipe_id, tag_id) VALUES ($1, $2) ON CONFLICT DO NOTHING", recipeID, tagID)
		if err != nil {
			return fmt.Errorf("failed to link tag %q: %w", name, err)
		}
	}
	return nil
}
