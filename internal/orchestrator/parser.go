package orchestrator

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/shubhsaxena/product-search/internal/models"
)

// parseRule is one entry of the extraction table. Rules in the same group
// run in table order; a matching final rule skips the rest of its group.
type parseRule struct {
	name    string
	group   string
	final   bool
	pattern *regexp.Regexp
	exclude *regexp.Regexp
	// apply receives the submatches of pattern, or nil when pattern is nil.
	apply func(text string, m []string, opts *models.SearchOptions) bool
}

var (
	priceRangePattern = regexp.MustCompile(`(\$\d+(\.\d+)?)\s*-\s*(\$\d+(\.\d+)?)`)
	priceUnderPattern = regexp.MustCompile(`(?i)(?:under|less than|below)\s*\$(\d+(\.\d+)?)`)
	priceOverPattern  = regexp.MustCompile(`(?i)(?:over|more than|above)\s*\$(\d+(\.\d+)?)`)
	categoryPattern   = regexp.MustCompile(`(?i)\b(?:in|category|from)\s+(?:the\s+)?(?:category\s+)?["']?([a-zA-Z\s&]+)["']?`)
	stockPattern      = regexp.MustCompile(`(?i)(?:in stock|available)`)
)

// Words that end a captured category. The category phrase is greedy and
// would otherwise swallow a following price, stock or sort clause.
var (
	categoryStopWords = map[string]bool{
		"under": true, "over": true, "below": true, "above": true,
		"cheapest": true, "newest": true, "latest": true, "recent": true,
		"alphabetical": true, "available": true, "sorted": true, "sort": true,
		"price": true, "priced": true, "with": true, "by": true, "stock": true,
	}
	categoryStopPhrases = [][]string{
		{"less", "than"}, {"more", "than"}, {"in", "stock"},
		{"most", "expensive"}, {"highest", "price"}, {"lowest", "price"},
		{"low", "to", "high"}, {"high", "to", "low"},
		{"a", "to", "z"}, {"z", "to", "a"}, {"reverse", "alphabetical"},
	}
)

func sortRule(name, pattern, exclude, field, order string) parseRule {
	r := parseRule{
		name:    name,
		group:   "sort",
		final:   true,
		pattern: regexp.MustCompile(pattern),
		apply: func(_ string, _ []string, opts *models.SearchOptions) bool {
			opts.SortBy = field
			opts.SortOrder = order
			return true
		},
	}
	if exclude != "" {
		r.exclude = regexp.MustCompile(exclude)
	}
	return r
}

func defaultRules() []parseRule {
	return []parseRule{
		{
			name:    "price-range",
			group:   "price",
			final:   true,
			pattern: priceRangePattern,
			apply: func(_ string, m []string, opts *models.SearchOptions) bool {
				lo, okLo := parseAmount(m[1])
				hi, okHi := parseAmount(m[3])
				if !okLo || !okHi {
					return false
				}
				opts.MinPrice = &lo
				opts.MaxPrice = &hi
				return true
			},
		},
		{
			name:    "price-under",
			group:   "price",
			pattern: priceUnderPattern,
			apply: func(_ string, m []string, opts *models.SearchOptions) bool {
				v, ok := parseAmount(m[1])
				if ok {
					opts.MaxPrice = &v
				}
				return ok
			},
		},
		{
			name:    "price-over",
			group:   "price",
			pattern: priceOverPattern,
			apply: func(_ string, m []string, opts *models.SearchOptions) bool {
				v, ok := parseAmount(m[1])
				if ok {
					opts.MinPrice = &v
				}
				return ok
			},
		},
		{
			name:  "category",
			group: "category",
			apply: func(text string, _ []string, opts *models.SearchOptions) bool {
				cat := extractCategory(text)
				if cat == "" {
					return false
				}
				opts.Category = models.SingleCategory(cat)
				return true
			},
		},
		{
			name:    "in-stock",
			group:   "stock",
			pattern: stockPattern,
			apply: func(_ string, _ []string, opts *models.SearchOptions) bool {
				inStock := true
				opts.InStock = &inStock
				return true
			},
		},
		sortRule("sort-price-asc", `(?i)cheapest|lowest price|price.*low to high`, "", models.SortByPrice, models.SortAsc),
		sortRule("sort-price-desc", `(?i)most expensive|highest price|price.*high to low`, "", models.SortByPrice, models.SortDesc),
		sortRule("sort-newest", `(?i)newest|latest|recent`, "", models.SortByCreatedAt, models.SortDesc),
		// name is not engine-sortable, so alphabetical maps onto sort_index
		sortRule("sort-alpha", `(?i)alphabetical|\ba to z\b`, `(?i)reverse alphabetical`, models.SortBySortIndex, models.SortAsc),
		sortRule("sort-alpha-reverse", `(?i)reverse alphabetical|\bz to a\b`, "", models.SortBySortIndex, models.SortDesc),
	}
}

// QueryParser turns free text into SearchOptions with a fixed rule table.
type QueryParser struct {
	rules []parseRule
}

func NewQueryParser() *QueryParser {
	return &QueryParser{rules: defaultRules()}
}

// Parse never fails. Query is always the input text unchanged; every other
// field is set only if a rule matched.
func (qp *QueryParser) Parse(text string) *models.SearchOptions {
	opts, _ := qp.evaluate(text)
	return opts
}

// MatchedRules lists the rules that fire on text, in table order.
func (qp *QueryParser) MatchedRules(text string) []string {
	_, names := qp.evaluate(text)
	return names
}

func (qp *QueryParser) evaluate(text string) (*models.SearchOptions, []string) {
	opts := &models.SearchOptions{Query: text}
	var matched []string

	done := make(map[string]bool)
	for _, r := range qp.rules {
		if done[r.group] {
			continue
		}
		var m []string
		if r.pattern != nil {
			if m = r.pattern.FindStringSubmatch(text); m == nil {
				continue
			}
		}
		if r.exclude != nil && r.exclude.MatchString(text) {
			continue
		}
		if !r.apply(text, m, opts) {
			continue
		}
		matched = append(matched, r.name)
		if r.final {
			done[r.group] = true
		}
	}
	return opts, matched
}

func parseAmount(s string) (float64, bool) {
	v, err := strconv.ParseFloat(strings.TrimPrefix(s, "$"), 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

// extractCategory tries each "in/category/from" phrase left to right and
// returns the first capture that is non-empty once cut at a stop keyword.
func extractCategory(text string) string {
	pos := 0
	for pos < len(text) {
		loc := categoryPattern.FindStringSubmatchIndex(text[pos:])
		if loc == nil {
			return ""
		}
		capture := text[pos+loc[2] : pos+loc[3]]
		if cat := cutAtStopWord(capture); cat != "" {
			return cat
		}
		pos += loc[2]
	}
	return ""
}

func cutAtStopWord(capture string) string {
	words := strings.Fields(capture)
	lower := make([]string, len(words))
	for i, w := range words {
		lower[i] = strings.ToLower(w)
	}

	end := len(words)
	for i := range lower {
		if categoryStopWords[lower[i]] || startsPhrase(lower[i:]) {
			end = i
			break
		}
	}
	return strings.Trim(strings.Join(words[:end], " "), ` "'`)
}

func startsPhrase(words []string) bool {
	for _, phrase := range categoryStopPhrases {
		if len(words) < len(phrase) {
			continue
		}
		match := true
		for j, p := range phrase {
			if words[j] != p {
				match = false
				break
			}
		}
		if match {
			return true
		}
	}
	return false
}
