package orchestrator

import (
	"reflect"
	"testing"

	"github.com/shubhsaxena/product-search/internal/models"
)

func floatPtrEq(p *float64, want float64) bool {
	return p != nil && *p == want
}

func TestQueryParser_PriceUnder(t *testing.T) {
	qp := NewQueryParser()
	opts := qp.Parse("smartphone under $700")

	if !floatPtrEq(opts.MaxPrice, 700) {
		t.Errorf("expected maxPrice 700, got %v", opts.MaxPrice)
	}
	if opts.MinPrice != nil {
		t.Errorf("expected minPrice unset, got %v", *opts.MinPrice)
	}
	if opts.Query != "smartphone under $700" {
		t.Errorf("query should be the input unchanged, got %q", opts.Query)
	}
}

func TestQueryParser_PriceRangeWins(t *testing.T) {
	qp := NewQueryParser()

	tests := []struct {
		text     string
		min, max float64
	}{
		{"$50 - $100 shoes", 50, 100},
		{"$10.50-$20.75 socks", 10.5, 20.75},
		{"$50 - $100 shoes under $20", 50, 100},
		{"jackets $100 - $250 over $500", 100, 250},
	}
	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			opts := qp.Parse(tt.text)
			if !floatPtrEq(opts.MinPrice, tt.min) || !floatPtrEq(opts.MaxPrice, tt.max) {
				t.Errorf("got min=%v max=%v, want %v/%v", opts.MinPrice, opts.MaxPrice, tt.min, tt.max)
			}
		})
	}
}

func TestQueryParser_PriceBothBounds(t *testing.T) {
	opts := NewQueryParser().Parse("laptops over $500 and less than $1500")
	if !floatPtrEq(opts.MinPrice, 500) {
		t.Errorf("expected minPrice 500, got %v", opts.MinPrice)
	}
	if !floatPtrEq(opts.MaxPrice, 1500) {
		t.Errorf("expected maxPrice 1500, got %v", opts.MaxPrice)
	}
}

func TestQueryParser_Sort(t *testing.T) {
	qp := NewQueryParser()

	tests := []struct {
		text      string
		sortBy    string
		sortOrder string
	}{
		{"cheapest wireless headphones", models.SortByPrice, models.SortAsc},
		{"tablets lowest price", models.SortByPrice, models.SortAsc},
		{"tablets by price low to high", models.SortByPrice, models.SortAsc},
		{"most expensive watches", models.SortByPrice, models.SortDesc},
		{"cameras price high to low", models.SortByPrice, models.SortDesc},
		{"newest laptops", models.SortByCreatedAt, models.SortDesc},
		{"recent arrivals", models.SortByCreatedAt, models.SortDesc},
		{"books alphabetical", models.SortBySortIndex, models.SortAsc},
		{"books a to z", models.SortBySortIndex, models.SortAsc},
		{"books reverse alphabetical", models.SortBySortIndex, models.SortDesc},
		{"books z to a", models.SortBySortIndex, models.SortDesc},
		{"cheapest and newest phones", models.SortByPrice, models.SortAsc},
	}
	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			opts := qp.Parse(tt.text)
			if opts.SortBy != tt.sortBy || opts.SortOrder != tt.sortOrder {
				t.Errorf("got %s:%s, want %s:%s", opts.SortBy, opts.SortOrder, tt.sortBy, tt.sortOrder)
			}
		})
	}
}

func TestQueryParser_Stock(t *testing.T) {
	qp := NewQueryParser()

	for _, text := range []string{"headphones in stock", "available phones", "IN STOCK monitors"} {
		opts := qp.Parse(text)
		if opts.InStock == nil || !*opts.InStock {
			t.Errorf("%q: expected inStock true", text)
		}
	}

	if opts := qp.Parse("phones"); opts.InStock != nil {
		t.Error("inStock should be unset without a stock phrase")
	}
}

func TestQueryParser_Category(t *testing.T) {
	qp := NewQueryParser()

	tests := []struct {
		text string
		want string
	}{
		{"shoes in Clothing", "Clothing"},
		{"gifts in Home & Garden", "Home & Garden"},
		{"anything from the category Books", "Books"},
		{`shoes in "Sports & Outdoors"`, "Sports & Outdoors"},
		{"category electronics", "electronics"},
	}
	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			opts := qp.Parse(tt.text)
			if opts.Category == nil {
				t.Fatalf("expected category %q, got none", tt.want)
			}
			if opts.Category.Multi || opts.Category.Values[0] != tt.want {
				t.Errorf("got %+v, want %q", opts.Category, tt.want)
			}
		})
	}
}

// The category phrase is greedy; capture ends at the next price, stock or
// sort keyword.
func TestQueryParser_CategoryStopsAtKeywords(t *testing.T) {
	qp := NewQueryParser()

	tests := []struct {
		text string
		want string
	}{
		{"laptops in electronics under $1000", "electronics"},
		{"headphones from the category Audio sorted by price", "Audio"},
		{"in stock items from Books", "Books"},
		{"toys in Games cheapest first", "Games"},
		{"shirts in Clothing most expensive", "Clothing"},
		{"shirts in Clothing less than $30", "Clothing"},
		{"mugs in Kitchen available now", "Kitchen"},
	}
	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			opts := qp.Parse(tt.text)
			if opts.Category == nil {
				t.Fatalf("expected category %q, got none", tt.want)
			}
			if got := opts.Category.Values[0]; got != tt.want {
				t.Errorf("category = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestQueryParser_CategoryOnlyKeywords(t *testing.T) {
	qp := NewQueryParser()

	for _, text := range []string{
		"headphones in stock",
		"phones under $300 in stock sorted by price",
		"tablets from low to high",
	} {
		if opts := qp.Parse(text); opts.Category != nil {
			t.Errorf("%q: expected no category, got %+v", text, opts.Category)
		}
	}
}

func TestQueryParser_NoMatch(t *testing.T) {
	opts := NewQueryParser().Parse("xy")
	want := &models.SearchOptions{Query: "xy"}
	if !reflect.DeepEqual(opts, want) {
		t.Errorf("expected only query set, got %+v", opts)
	}
}

func TestQueryParser_Empty(t *testing.T) {
	opts := NewQueryParser().Parse("")
	if !reflect.DeepEqual(opts, &models.SearchOptions{}) {
		t.Errorf("expected zero options, got %+v", opts)
	}
}

func TestQueryParser_Combined(t *testing.T) {
	opts := NewQueryParser().Parse("cheapest headphones in Electronics under $200 in stock")

	if opts.SortBy != models.SortByPrice || opts.SortOrder != models.SortAsc {
		t.Errorf("unexpected sort %s:%s", opts.SortBy, opts.SortOrder)
	}
	if !floatPtrEq(opts.MaxPrice, 200) {
		t.Errorf("expected maxPrice 200, got %v", opts.MaxPrice)
	}
	if opts.Category == nil || opts.Category.Values[0] != "Electronics" {
		t.Errorf("expected Electronics, got %+v", opts.Category)
	}
	if opts.InStock == nil || !*opts.InStock {
		t.Error("expected inStock true")
	}
}

func TestQueryParser_MatchedRules(t *testing.T) {
	qp := NewQueryParser()

	got := qp.MatchedRules("cheapest phones under $100")
	want := []string{"price-under", "sort-price-asc"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("MatchedRules = %v, want %v", got, want)
	}

	got = qp.MatchedRules("$1 - $2 under $3 reverse alphabetical")
	want = []string{"price-range", "sort-alpha-reverse"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("MatchedRules = %v, want %v", got, want)
	}

	if got := qp.MatchedRules("xy"); len(got) != 0 {
		t.Errorf("expected no rules, got %v", got)
	}
}

func TestDefaultRules_Groups(t *testing.T) {
	seen := make(map[string]bool)
	for _, r := range defaultRules() {
		if seen[r.name] {
			t.Errorf("duplicate rule name %q", r.name)
		}
		seen[r.name] = true
		if r.group == "sort" && !r.final {
			t.Errorf("sort rule %q must be final", r.name)
		}
	}
}
