package orchestrator

import (
	"github.com/shubhsaxena/product-search/internal/models"
)

// FilterCompiler turns SearchOptions into engine-ready queries. It holds no
// state and is safe for concurrent use.
type FilterCompiler struct{}

func NewFilterCompiler() *FilterCompiler {
	return &FilterCompiler{}
}

// Compile is a pure function of opts. Unset fields produce no clause; a
// sortBy the engine cannot sort on is dropped and recorded in SuppressedSort.
func (fc *FilterCompiler) Compile(opts *models.SearchOptions) *models.CompiledQuery {
	if opts == nil {
		opts = &models.SearchOptions{}
	}

	limit, offset := normalizePaging(opts.Limit, opts.Offset)

	q := &models.CompiledQuery{
		Term:    opts.Query,
		QueryBy: models.SearchQueryBy,
		Filters: compileFilters(opts),
		Page:    offset/limit + 1,
		PerPage: limit,
		FacetBy: models.DefaultFacets,
	}

	sortBy := opts.SortBy
	if sortBy == "" {
		sortBy = models.SortBySortIndex
	}
	if models.IsSortable(sortBy) {
		order := opts.SortOrder
		if !models.ValidSortOrder(order) {
			order = models.SortAsc
		}
		q.Sort = &models.SortClause{Field: sortBy, Order: order}
	} else {
		q.SuppressedSort = sortBy
	}

	return q
}

// CompileSuggest builds the prefix query used for autocomplete.
func (fc *FilterCompiler) CompileSuggest(partial string, limit int) *models.CompiledQuery {
	if limit <= 0 {
		limit = models.DefaultLimit
	}
	return &models.CompiledQuery{
		Term:    partial,
		QueryBy: models.SuggestQueryBy,
		Page:    1,
		PerPage: limit,
		Prefix:  true,
	}
}

func normalizePaging(limit, offset int) (int, int) {
	if limit <= 0 {
		limit = models.DefaultLimit
	}
	if offset < 0 {
		offset = models.DefaultOffset
	}
	return limit, offset
}

func compileFilters(opts *models.SearchOptions) []models.FilterClause {
	var filters []models.FilterClause

	if !opts.Category.Empty() {
		values := make([]any, 0, len(opts.Category.Values))
		for _, v := range opts.Category.Values {
			if v != "" {
				values = append(values, v)
			}
		}
		op := models.OpEq
		if opts.Category.Multi {
			op = models.OpIn
		}
		filters = append(filters, models.FilterClause{Field: "category", Op: op, Values: values})
	}

	if opts.MinPrice != nil {
		filters = append(filters, models.FilterClause{Field: "price", Op: models.OpGte, Values: []any{*opts.MinPrice}})
	}
	if opts.MaxPrice != nil {
		filters = append(filters, models.FilterClause{Field: "price", Op: models.OpLte, Values: []any{*opts.MaxPrice}})
	}

	if opts.InStock != nil {
		if *opts.InStock {
			filters = append(filters, models.FilterClause{Field: "inStock", Op: models.OpGt, Values: []any{0.0}})
		} else {
			filters = append(filters, models.FilterClause{Field: "inStock", Op: models.OpEq, Values: []any{0.0}})
		}
	}

	return filters
}
