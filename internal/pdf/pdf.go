// Package pdf renders a recipe as a printable PDF document.
package pdf

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/go-pdf/fpdf"

	"recipebook/internal/recipe"
)

// Render lays out a recipe on A4: title, timing line, ingredient list
// with quantities, instructions, and a tag line.
func Render(r *recipe.Recipe) ([]byte, error) {
	doc := fpdf.New("P", "mm", "A4", "")
	doc.SetTitle(r.Title, true)
	doc.AddPage()

	doc.SetFont("Helvetica", "B", 20)
	doc.MultiCell(0, 10, r.Title, "", "L", false)
	doc.Ln(2)

	doc.SetFont("Helvetica", "", 10)
	doc.SetTextColor(90, 90, 90)
	doc.CellFormat(0, 6, timingLine(r), "", 1, "L", false, 0, "")
	if r.CreatedBy != "" {
		doc.CellFormat(0, 6, "By "+r.CreatedBy, "", 1, "L", false, 0, "")
	}
	doc.SetTextColor(0, 0, 0)
	doc.Ln(4)

	if r.Description != "" {
		doc.SetFont("Helvetica", "I", 11)
		doc.MultiCell(0, 6, r.Description, "", "L", false)
		doc.Ln(4)
	}

	doc.SetFont("Helvetica", "B", 14)
	doc.CellFormat(0, 8, "Ingredients", "", 1, "L", false, 0, "")
	doc.SetFont("Helvetica", "", 11)
	if len(r.Ingredients) == 0 {
		doc.CellFormat(0, 6, "None listed", "", 1, "L", false, 0, "")
	}
	for _, m := range r.Ingredients {
		line := m.Name
		if m.Quantity != "" {
			line = m.Quantity + " " + m.Name
		}
		doc.CellFormat(0, 6, "- "+line, "", 1, "L", false, 0, "")
	}
	doc.Ln(4)

	if r.Instructions != "" {
		doc.SetFont("Helvetica", "B", 14)
		doc.CellFormat(0, 8, "Instructions", "", 1, "L", false, 0, "")
		doc.SetFont("Helvetica", "", 11)
		doc.MultiCell(0, 6, r.Instructions, "", "L", false)
		doc.Ln(4)
	}

	if len(r.Tags) > 0 {
		names := make([]string, len(r.Tags))
		for i, t := range r.Tags {
			names[i] = t.Name
		}
		doc.SetFont("Helvetica", "I", 10)
		doc.SetTextColor(90, 90, 90)
		doc.CellFormat(0, 6, "Tags: "+strings.Join(names, ", "), "", 1, "L", false, 0, "")
	}

	var buf bytes.Buffer
	if err := doc.Output(&buf); err != nil {
		return nil, fmt.Errorf("failed to render pdf: %w", err)
	}
	return buf.Bytes(), nil
}

func timingLine(r *recipe.Recipe) string {
	return fmt.Sprintf("Prep %d min  |  Cook %d min", r.PrepTime, r.CookTime)
}
