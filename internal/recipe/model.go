package recipe

import (
	"sort"
	"strings"
	"time"
)

// Recipe is a stored recipe together with the derived fields the API
// serves: author username, favorite count, measured ingredients and tags.
type Recipe struct {
	ID           int64     `json:"id" db:"id"`
	Title        string    `json:"title" db:"title"`
	Description  string    `json:"description" db:"description"`
	Instructions string    `json:"instructions" db:"instructions"`
	PrepTime     int       `json:"prep_time" db:"prep_time"`
	CookTime     int       `json:"cook_time" db:"cook_time"`
	CreatedAt    time.Time `json:"created_at" db:"created_at"`

	Ingredients   []Measurement `json:"ingredients"`
	Tags          []Tag         `json:"tags"`
	CreatedBy     string        `json:"created_by_username,omitempty"`
	FavoriteCount int           `json:"favorite_count"`
}

// Measurement is an ingredient reference on a recipe with its quantity
// in canonical "<number> <unit>" form, or empty when none was given.
type Measurement struct {
	IngredientID int64  `json:"ingredient_id" db:"ingredient_id"`
	Name         string `json:"name" db:"name"`
	Quantity     string `json:"quantity,omitempty" db:"quantity"`
}

// Ingredient is an entry of the controlled ingredient catalog. Names are
// stored lowercase and are unique case-insensitively.
type Ingredient struct {
	ID          int64  `json:"id" db:"id"`
	Name        string `json:"name" db:"name"`
	RecipeCount int    `json:"recipe_count" db:"recipe_count"`
}

// Tag is a recipe tag. Names are stored lowercase, unique case-insensitively.
type Tag struct {
	ID   int64  `json:"id" db:"id"`
	Name string `json:"name" db:"name"`
}

// Comment is a recipe comment with its author and like count attached.
type Comment struct {
	ID        int64     `json:"id" db:"id"`
	RecipeID  int64     `json:"recipe_id" db:"recipe_id"`
	Content   string    `json:"content" db:"content"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	CreatedBy string    `json:"created_by_username,omitempty"`
	LikeCount int       `json:"like_count"`
}

// UnknownIngredientsError reports recipe ingredients missing from the
// catalog. The message matches the form-level unknown-ingredient error so
// the API can surface it in the same field slot.
type UnknownIngredientsError struct {
	Names []string
}

func (e *UnknownIngredientsError) Error() string {
	names := append([]string(nil), e.Names...)
	sort.Strings(names)
	return "Unknown ingredients: " + strings.Join(names, ", ") + ". Add them to the ingredient list first."
}

// StoreError is a store-level validation failure the API maps to a
// client error.
type StoreError string

func (e StoreError) Error() string { return string(e) }

const (
	ErrIngredientExists   = StoreError("Ingredient already exists")
	ErrIngredientRequired = StoreError("Ingredient name is required")
	ErrIngredientInUse    = StoreError("Cannot delete ingredient that is used by recipes")
	ErrTagRequired        = StoreError("Tag name is required")
)
