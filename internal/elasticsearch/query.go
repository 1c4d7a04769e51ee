package elasticsearch

import (
	"encoding/json"
	"strconv"
	"strings"

	"github.com/shubhsaxena/product-search/internal/models"
)

// keywordFields maps document fields that are analyzed text in the index to
// the keyword subfield used for exact filters and facets.
var keywordFields = map[string]string{
	"category": "category.raw",
	"sku":      "sku.raw",
}

func exactField(field string) string {
	if kf, ok := keywordFields[field]; ok {
		return kf
	}
	return field
}

// BuildSearchBody translates an engine request into the Elasticsearch query
// DSL: multi_match over QueryBy, filter clauses in bool.filter, terms
// aggregations per facet field, and from/size paging.
func BuildSearchBody(req *models.EngineRequest, facetSize int) map[string]any {
	boolQuery := map[string]any{}

	if req.Q == "" || req.Q == "*" {
		boolQuery["must"] = []any{map[string]any{"match_all": map[string]any{}}}
	} else {
		boolQuery["must"] = []any{textQuery(req)}
	}

	if len(req.Filters) > 0 {
		filters := make([]any, 0, len(req.Filters))
		for _, f := range req.Filters {
			if clause := filterClause(f); clause != nil {
				filters = append(filters, clause)
			}
		}
		boolQuery["filter"] = filters
	}

	page := req.Page
	if page < 1 {
		page = 1
	}
	perPage := req.PerPage
	if perPage < 0 {
		perPage = 0
	}

	body := map[string]any{
		"query":            map[string]any{"bool": boolQuery},
		"from":             (page - 1) * perPage,
		"size":             perPage,
		"track_total_hits": true,
		"sort":             sortClauses(req.Sort),
	}
	if req.Sort != nil {
		body["track_scores"] = true
	}

	if aggs := facetAggs(req, facetSize); len(aggs) > 0 {
		body["aggs"] = aggs
	}
	return body
}

func textQuery(req *models.EngineRequest) map[string]any {
	mm := map[string]any{
		"query":  req.Q,
		"fields": req.QueryBy,
	}
	if req.Prefix {
		mm["type"] = "bool_prefix"
	} else {
		mm["type"] = "best_fields"
		mm["fuzziness"] = "AUTO"
	}
	return map[string]any{"multi_match": mm}
}

func filterClause(f models.FilterClause) map[string]any {
	field := exactField(f.Field)
	switch f.Op {
	case models.OpIn:
		return map[string]any{"terms": map[string]any{field: f.Values}}
	case models.OpEq:
		if len(f.Values) == 0 {
			return nil
		}
		return map[string]any{"term": map[string]any{field: f.Values[0]}}
	case models.OpGt, models.OpGte, models.OpLte:
		if len(f.Values) == 0 {
			return nil
		}
		return map[string]any{"range": map[string]any{field: map[string]any{rangeKey(f.Op): f.Values[0]}}}
	}
	return nil
}

func rangeKey(op models.FilterOp) string {
	switch op {
	case models.OpGt:
		return "gt"
	case models.OpGte:
		return "gte"
	default:
		return "lte"
	}
}

// sortClauses puts an explicit sort first with relevance as tie-breaker.
// Without one, relevance then sort_index ascending applies.
func sortClauses(s *models.SortClause) []any {
	if s == nil {
		return []any{
			map[string]any{"_score": map[string]any{"order": "desc"}},
			map[string]any{models.SortBySortIndex: map[string]any{"order": models.SortAsc}},
		}
	}
	return []any{
		map[string]any{s.Field: map[string]any{"order": s.Order}},
		map[string]any{"_score": map[string]any{"order": "desc"}},
	}
}

func facetAggs(req *models.EngineRequest, size int) map[string]any {
	fields := splitFacets(req.FacetBy)
	if len(fields) == 0 {
		return nil
	}
	if size <= 0 {
		size = 50
	}
	aggs := make(map[string]any, len(fields))
	for _, f := range fields {
		aggs[f] = map[string]any{
			"terms": map[string]any{"field": exactField(f), "size": size},
		}
	}
	return aggs
}

func splitFacets(facetBy string) []string {
	var out []string
	for _, f := range strings.Split(facetBy, ",") {
		if f = strings.TrimSpace(f); f != "" {
			out = append(out, f)
		}
	}
	return out
}

type esSearchResponse struct {
	Took     int64 `json:"took"`
	TimedOut bool  `json:"timed_out"`
	Hits     struct {
		Total struct {
			Value int64 `json:"value"`
		} `json:"total"`
		Hits []esHit `json:"hits"`
	} `json:"hits"`
	Aggregations map[string]esTermsAgg `json:"aggregations"`
}

type esHit struct {
	ID     string           `json:"_id"`
	Score  *float64         `json:"_score"`
	Source *models.Document `json:"_source"`
}

type esTermsAgg struct {
	Buckets []struct {
		Key      json.RawMessage `json:"key"`
		DocCount int64           `json:"doc_count"`
	} `json:"buckets"`
}

// toEngineResponse maps an Elasticsearch response onto the engine contract.
// facetOrder keeps facet_counts in the requested facet_by order.
func toEngineResponse(resp *esSearchResponse, page int, facetOrder []string) *models.EngineResponse {
	if page < 1 {
		page = 1
	}
	out := &models.EngineResponse{
		Found: resp.Hits.Total.Value,
		Hits:  make([]models.Hit, 0, len(resp.Hits.Hits)),
		Page:  page,
	}
	for _, h := range resp.Hits.Hits {
		doc := h.Source
		if doc == nil {
			doc = &models.Document{}
		}
		if doc.ID == "" {
			doc.ID = h.ID
		}
		out.Hits = append(out.Hits, models.Hit{Document: doc, TextMatch: h.Score})
	}

	for _, field := range facetOrder {
		agg, ok := resp.Aggregations[field]
		if !ok {
			continue
		}
		fc := models.FacetCount{FieldName: field, Counts: make([]models.FacetValue, 0, len(agg.Buckets))}
		for _, b := range agg.Buckets {
			fc.Counts = append(fc.Counts, models.FacetValue{Value: bucketKey(b.Key), Count: b.DocCount})
		}
		out.FacetCounts = append(out.FacetCounts, fc)
	}
	return out
}

// bucketKey renders a terms bucket key as a string. Numeric keys lose their
// trailing ".0" so stock facets read "0", "12".
func bucketKey(raw json.RawMessage) string {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	var f float64
	if err := json.Unmarshal(raw, &f); err == nil {
		return strconv.FormatFloat(f, 'f', -1, 64)
	}
	return string(raw)
}
