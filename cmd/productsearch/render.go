package main

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/shubhsaxena/product-search/internal/models"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("86")).
			Background(lipgloss.Color("235")).
			Padding(0, 1).
			Margin(0, 0, 1, 0)

	productStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("240")).
			Padding(0, 1).
			Margin(0, 0, 0, 2)

	nameStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("214"))

	metaStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("240")).
			Italic(true)

	summaryStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("32"))

	errorStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("196"))

	noDataStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("240")).
			Italic(true).
			Margin(1, 0)
)

func renderSearchResult(query string, r *models.SearchResult) string {
	var b strings.Builder
	b.WriteString(titleStyle.Render(fmt.Sprintf("Results for %q", query)))
	b.WriteString("\n")

	if r.Error != "" {
		b.WriteString(errorStyle.Render("search degraded: " + r.Error))
		b.WriteString("\n")
	}
	if len(r.Results) == 0 {
		b.WriteString(noDataStyle.Render("No products found"))
		b.WriteString("\n")
		return b.String()
	}

	for _, p := range r.Results {
		b.WriteString(productStyle.Render(renderProduct(p)))
		b.WriteString("\n")
	}

	for _, f := range r.Facets {
		b.WriteString(renderFacet(f))
		b.WriteString("\n")
	}

	pg := r.Pagination
	b.WriteString(summaryStyle.Render(fmt.Sprintf("%d of %d products, page %d of %d",
		len(r.Results), r.Count, pg.CurrentPage, pg.TotalPages)))
	b.WriteString("\n")
	return b.String()
}

func renderProduct(p models.ProductResult) string {
	stock := "out of stock"
	if p.InStock > 0 {
		stock = fmt.Sprintf("%g in stock", p.InStock)
	}
	lines := []string{
		nameStyle.Render(p.Name) + "  " + fmt.Sprintf("$%.2f", p.Price),
		metaStyle.Render(fmt.Sprintf("%s · %s · sku %s", p.Category, stock, p.SKU)),
	}
	if p.Description != "" {
		lines = append(lines, p.Description)
	}
	return strings.Join(lines, "\n")
}

func renderFacet(f models.FacetCount) string {
	parts := make([]string, 0, len(f.Counts))
	for _, c := range f.Counts {
		parts = append(parts, fmt.Sprintf("%s (%d)", c.Value, c.Count))
	}
	return metaStyle.Render(f.FieldName+": ") + strings.Join(parts, ", ")
}

func renderSuggestions(partial string, suggestions []string) string {
	var b strings.Builder
	b.WriteString(titleStyle.Render(fmt.Sprintf("Suggestions for %q", partial)))
	b.WriteString("\n")
	if len(suggestions) == 0 {
		b.WriteString(noDataStyle.Render("No suggestions"))
		b.WriteString("\n")
		return b.String()
	}
	for i, s := range suggestions {
		fmt.Fprintf(&b, "%d. %s\n", i+1, s)
	}
	return b.String()
}

func renderParsed(text string, o *models.SearchOptions, source string) string {
	var b strings.Builder
	b.WriteString(titleStyle.Render(fmt.Sprintf("Parsed %q", text)))
	b.WriteString("\n")

	row := func(k, v string) {
		fmt.Fprintf(&b, "%s %s\n", metaStyle.Render(fmt.Sprintf("%-10s", k)), v)
	}
	row("source", source)
	row("query", o.Query)
	if !o.Category.Empty() {
		row("category", strings.Join(o.Category.Values, ", "))
	}
	if o.MinPrice != nil {
		row("min price", fmt.Sprintf("%g", *o.MinPrice))
	}
	if o.MaxPrice != nil {
		row("max price", fmt.Sprintf("%g", *o.MaxPrice))
	}
	if o.InStock != nil {
		row("in stock", fmt.Sprintf("%t", *o.InStock))
	}
	if o.SortBy != "" {
		sort := o.SortBy
		if o.SortOrder != "" {
			sort += ":" + o.SortOrder
		}
		row("sort", sort)
	}
	return b.String()
}
