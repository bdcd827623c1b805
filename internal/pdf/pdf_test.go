package pdf

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"recipebook/internal/recipe"
)

func TestRender(t *testing.T) {
	out, err := Render(&recipe.Recipe{
		Title:        "Pancakes",
		Description:  "Thin and quick.",
		Instructions: "Whisk everything. Fry.",
		PrepTime:     10,
		CookTime:     20,
		CreatedBy:    "alice",
		Ingredients: []recipe.Measurement{
			{Name: "flour", Quantity: "2 dl"},
			{Name: "egg", Quantity: "3 st"},
			{Name: "salt"},
		},
		Tags: []recipe.Tag{{Name: "breakfast"}},
	})

	require.NoError(t, err)
	require.NotEmpty(t, out)
	assert.Equal(t, "%PDF", string(out[:4]))
}

func TestRender_EmptyRecipe(t *testing.T) {
	out, err := Render(&recipe.Recipe{Title: "Bare"})
	require.NoError(t, err)
	assert.Equal(t, "%PDF", string(out[:4]))
}
