package form

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeAndValidate_Valid(t *testing.T) {
	res := NormalizeAndValidate(RecipeInput{
		Title:           "Pasta",
		PrepTime:        "10",
		CookTime:        "20",
		IngredientsText: "flour: 2 dl, egg: 3 st",
		TagsText:        "dinner, italian",
	})

	require.True(t, res.OK(), "unexpected errors: %v", res.Errors)
	assert.Equal(t, []IngredientEntry{
		{Name: "flour", Quantity: "2 dl"},
		{Name: "egg", Quantity: "3 st"},
	}, res.Ingredients)
	assert.Equal(t, []string{"dinner", "italian"}, res.Tags)
	assert.Equal(t, 10, res.PrepTime)
	assert.Equal(t, 20, res.CookTime)
}

func TestNormalizeAndValidate_MissingTitle(t *testing.T) {
	res := NormalizeAndValidate(RecipeInput{Title: "  "})
	assert.Contains(t, res.Errors, "title")
}

func TestNormalizeAndValidate_IndependentFieldErrors(t *testing.T) {
	res := NormalizeAndValidate(RecipeInput{
		Title:    "  ",
		PrepTime: "-5",
	})

	assert.Contains(t, res.Errors, "title")
	assert.Contains(t, res.Errors, "prepTime")
}

func TestNormalizeAndValidate_NegativeCookTime(t *testing.T) {
	res := NormalizeAndValidate(RecipeInput{Title: "Soup", CookTime: "-1"})
	assert.Contains(t, res.Errors, "cookTime")
	assert.NotContains(t, res.Errors, "prepTime")
}

func TestNormalizeAndValidate_NonNumericTime(t *testing.T) {
	res := NormalizeAndValidate(RecipeInput{Title: "Soup", PrepTime: "ten"})
	assert.Contains(t, res.Errors, "prepTime")
}

func TestNormalizeAndValidate_DuplicateIngredients(t *testing.T) {
	res := NormalizeAndValidate(RecipeInput{
		Title:           "Bread",
		IngredientsText: "flour: 2 dl, flour: 100 g",
	})

	require.Contains(t, res.Errors, "ingredients")
	assert.Contains(t, res.Errors["ingredients"], "flour")
}

func TestNormalizeAndValidate_DuplicatesAreCaseInsensitive(t *testing.T) {
	res := NormalizeAndValidate(RecipeInput{
		Title:           "Omelette",
		IngredientsText: "Egg: 2 st, egg: 3 st",
	})

	require.Contains(t, res.Errors, "ingredients")
	assert.Contains(t, res.Errors["ingredients"], "egg")
}

func TestNormalizeAndValidate_InvalidQuantityUnit(t *testing.T) {
	res := NormalizeAndValidate(RecipeInput{
		Title:           "Bread",
		IngredientsText: "flour: 2 cups",
	})

	require.Contains(t, res.Errors, "ingredients")
	for _, unit := range ValidUnits {
		assert.Contains(t, res.Errors["ingredients"], unit)
	}
}

func TestNormalizeAndValidate_DuplicateTakesSlotOverQuantity(t *testing.T) {
	res := NormalizeAndValidate(RecipeInput{
		Title:           "Bread",
		IngredientsText: "flour: 2 cups, flour: 3 cups",
	})

	require.Contains(t, res.Errors, "ingredients")
	assert.Contains(t, res.Errors["ingredients"], "Duplicate ingredients")
}

func TestNormalizeAndValidate_DuplicateTags(t *testing.T) {
	res := NormalizeAndValidate(RecipeInput{
		Title:    "Bread",
		TagsText: "Baking, baking",
	})

	require.Contains(t, res.Errors, "tags")
	assert.Contains(t, res.Errors["tags"], "baking")
}

func TestNormalizeQuantity(t *testing.T) {
	valid := map[string]string{
		"2 dl":   "2 dl",
		"1.5kg":  "1.5 kg",
		"3,5 l":  "3.5 l",
		" 100 G": "100 g",
		"250ml":  "250 ml",
		"":       "",
	}
	for raw, want := range valid {
		got, err := NormalizeQuantity(raw)
		assert.NoError(t, err, "quantity %q", raw)
		assert.Equal(t, want, got, "quantity %q", raw)
	}

	for _, raw := range []string{"2 cups", "dl", "2.5", "kg 2", "2 dl extra"} {
		_, err := NormalizeQuantity(raw)
		assert.Error(t, err, "quantity %q", raw)
	}
}

func TestParseIngredients_DropsEmptyRows(t *testing.T) {
	entries := ParseIngredients("flour: 2 dl, , : 3 st, egg")
	assert.Equal(t, []IngredientEntry{
		{Name: "flour", Quantity: "2 dl"},
		{Name: "egg"},
	}, entries)
}

func TestParseIngredients_SplitsOnFirstColon(t *testing.T) {
	entries := ParseIngredients("stock: 1 l: reserve")
	require.Len(t, entries, 1)
	assert.Equal(t, "stock", entries[0].Name)
	assert.Equal(t, "1 l: reserve", entries[0].Quantity)
}

func TestParseFormatRoundTrip(t *testing.T) {
	entries := []IngredientEntry{
		{Name: "flour", Quantity: "2 dl"},
		{Name: "egg", Quantity: "3 st"},
		{Name: "salt"},
	}

	assert.Equal(t, entries, ParseIngredients(FormatIngredients(entries)))
}

func TestCheckCatalog(t *testing.T) {
	catalog := map[string]struct{}{"flour": {}, "egg": {}}

	res := NormalizeAndValidate(RecipeInput{
		Title:           "Cake",
		IngredientsText: "flour: 2 dl, sugar: 50 g",
	})
	require.True(t, res.OK())

	CheckCatalog(&res, catalog)
	require.Contains(t, res.Errors, "ingredients")
	assert.Contains(t, res.Errors["ingredients"], "sugar")
	assert.NotContains(t, res.Errors["ingredients"], "flour")
}

func TestCheckCatalog_AllKnown(t *testing.T) {
	catalog := map[string]struct{}{"flour": {}}
	res := NormalizeAndValidate(RecipeInput{Title: "Cake", IngredientsText: "flour"})
	CheckCatalog(&res, catalog)
	assert.True(t, res.OK())
}

func TestSplitTerms(t *testing.T) {
	assert.Equal(t, []string{"pasta", "tomato", "basil"}, SplitTerms("pasta, tomato;basil"))
	assert.Empty(t, SplitTerms("  ,, "))
}
