// Package form validates and normalizes the raw text fields of the
// create-or-edit recipe form. Everything here is pure: no I/O, no shared
// state, safe to call from any number of form instances at once.
package form

import (
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

// ValidUnits is the fixed set of accepted EU quantity units.
var ValidUnits = []string{"ml", "cl", "dl", "l", "mg", "g", "kg", "st"}

var quantityPattern = regexp.MustCompile(`^(\d+(?:[.,]\d+)?)\s*(ml|cl|dl|l|mg|g|kg|st)$`)

var whitespacePattern = regexp.MustCompile(`\s+`)

var termSeparatorPattern = regexp.MustCompile(`[,;:\n]+`)

// IngredientEntry is a parsed (name, quantity) pair from the free-text
// ingredients field. Quantity is empty when none was entered.
type IngredientEntry struct {
	Name     string `json:"name"`
	Quantity string `json:"quantity,omitempty"`
}

// RecipeInput holds the raw user-entered form fields prior to validation.
// Numeric fields arrive as text; nothing is trusted yet.
type RecipeInput struct {
	Title           string
	Description     string
	Instructions    string
	PrepTime        string
	CookTime        string
	IngredientsText string
	TagsText        string
}

// Result is returned whether or not validation failed. Callers inspect
// Errors for emptiness to decide whether Ingredients and Tags are
// submission-ready.
type Result struct {
	Errors      map[string]string `json:"errors,omitempty"`
	Ingredients []IngredientEntry `json:"ingredients"`
	Tags        []string          `json:"tags"`
	PrepTime    int               `json:"prep_time"`
	CookTime    int               `json:"cook_time"`
}

// OK reports whether validation passed.
func (r Result) OK() bool { return len(r.Errors) == 0 }

// NormalizeName lowercases and trims a raw ingredient or tag name.
func NormalizeName(s string) string {
	return strings.TrimSpace(strings.ToLower(s))
}

// ParseIngredients splits the free-text ingredients field into entries.
// Entries are comma-separated; an entry containing a colon is split into
// name and quantity at the first colon. Entries with an empty name are
// dropped silently. Quantities are kept raw here; NormalizeQuantity
// decides whether they are valid.
func ParseIngredients(text string) []IngredientEntry {
	var entries []IngredientEntry
	for _, part := range strings.Split(text, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		name, quantity := part, ""
		if idx := strings.Index(part, ":"); idx >= 0 {
			name = part[:idx]
			quantity = strings.TrimSpace(part[idx+1:])
		}
		name = NormalizeName(name)
		if name == "" {
			continue
		}
		entries = append(entries, IngredientEntry{Name: name, Quantity: quantity})
	}
	return entries
}

// ParseTags splits the free-text tags field on commas, trimming and
// dropping empty entries.
func ParseTags(text string) []string {
	var tags []string
	for _, part := range strings.Split(text, ",") {
		if name := NormalizeName(part); name != "" {
			tags = append(tags, name)
		}
	}
	return tags
}

// NormalizeQuantity validates a raw quantity string against the EU unit
// grammar and rewrites it to the canonical "<number> <unit>" form with a
// dot decimal separator. An empty quantity is allowed and stays empty.
func NormalizeQuantity(raw string) (string, error) {
	value := strings.ToLower(strings.TrimSpace(raw))
	if value == "" {
		return "", nil
	}
	compact := whitespacePattern.ReplaceAllString(value, "")
	m := quantityPattern.FindStringSubmatch(compact)
	if m == nil {
		return "", fmt.Errorf("quantity must use EU units like %s (example: 2 dl)", strings.Join(ValidUnits, ", "))
	}
	number := strings.ReplaceAll(m[1], ",", ".")
	return number + " " + m[2], nil
}

// FormatIngredients renders entries back into the free-text form:
// "name: quantity" joined by ", ". Parsing the output yields the same
// entries again.
func FormatIngredients(entries []IngredientEntry) string {
	parts := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.Quantity != "" {
			parts = append(parts, e.Name+": "+e.Quantity)
		} else {
			parts = append(parts, e.Name)
		}
	}
	return strings.Join(parts, ", ")
}

// NormalizeAndValidate converts the raw form input into a validated
// payload or a set of field-keyed error messages. Errors are data, never
// panics; every field reports independently except that duplicate
// ingredient names take the ingredients slot ahead of quantity errors.
func NormalizeAndValidate(in RecipeInput) Result {
	res := Result{Errors: map[string]string{}}

	if strings.TrimSpace(in.Title) == "" {
		res.Errors["title"] = "Title is required"
	}

	res.PrepTime = validateDuration(res.Errors, "prepTime", in.PrepTime)
	res.CookTime = validateDuration(res.Errors, "cookTime", in.CookTime)

	entries := ParseIngredients(in.IngredientsText)
	if dups := duplicateNames(ingredientNames(entries)); len(dups) > 0 {
		res.Errors["ingredients"] = "Duplicate ingredients: " + strings.Join(dups, ", ")
	}

	for i, e := range entries {
		normalized, err := NormalizeQuantity(e.Quantity)
		if err != nil {
			// Duplicate detection owns the slot when both fail.
			if _, taken := res.Errors["ingredients"]; !taken {
				res.Errors["ingredients"] = capitalize(err.Error())
			}
			continue
		}
		entries[i].Quantity = normalized
	}
	res.Ingredients = entries

	tags := ParseTags(in.TagsText)
	if dups := duplicateNames(tags); len(dups) > 0 {
		res.Errors["tags"] = "Duplicate tags: " + strings.Join(dups, ", ")
	}
	res.Tags = tags

	return res
}

// CheckCatalog verifies every normalized ingredient name against the
// controlled catalog of known lowercase names. Missing names rewrite the
// ingredients error slot even if local validation passed; the catalog is
// authoritative.
func CheckCatalog(res *Result, catalog map[string]struct{}) {
	var missing []string
	seen := map[string]struct{}{}
	for _, e := range res.Ingredients {
		if _, ok := catalog[e.Name]; ok {
			continue
		}
		if _, dup := seen[e.Name]; dup {
			continue
		}
		seen[e.Name] = struct{}{}
		missing = append(missing, e.Name)
	}
	if len(missing) == 0 {
		return
	}
	sort.Strings(missing)
	if res.Errors == nil {
		res.Errors = map[string]string{}
	}
	res.Errors["ingredients"] = "Unknown ingredients: " + strings.Join(missing, ", ") + ". Add them to the ingredient list first."
}

// SplitTerms breaks a search query into terms on commas, semicolons,
// colons and newlines, dropping empties.
func SplitTerms(query string) []string {
	var terms []string
	for _, t := range termSeparatorPattern.Split(query, -1) {
		if t = strings.TrimSpace(t); t != "" {
			terms = append(terms, t)
		}
	}
	return terms
}

func validateDuration(errs map[string]string, field, raw string) int {
	value := strings.TrimSpace(raw)
	if value == "" {
		return 0
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		errs[field] = "Time must be a whole number of minutes"
		return 0
	}
	if n < 0 {
		errs[field] = "Time cannot be negative"
		return 0
	}
	return n
}

func ingredientNames(entries []IngredientEntry) []string {
	names := make([]string, len(entries))
	for i, e := range entries {
		names[i] = e.Name
	}
	return names
}

// duplicateNames reports, in first-occurrence order, every name that
// appears more than once. Names are already normalized to lowercase.
func duplicateNames(names []string) []string {
	seen := map[string]struct{}{}
	reported := map[string]struct{}{}
	var dups []string
	for _, name := range names {
		if _, ok := seen[name]; ok {
			if _, done := reported[name]; !done {
				reported[name] = struct{}{}
				dups = append(dups, name)
			}
		}
		seen[name] = struct{}{}
	}
	return dups
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
