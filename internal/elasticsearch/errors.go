package elasticsearch

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/shubhsaxena/product-search/internal/models"
	"github.com/shubhsaxena/product-search/internal/resilience"
)

// Engine messages that mean a filter, sort or facet field is not mapped.
var driftMarkers = []string{
	"No mapping found for",
	"failed to find field",
	"Could not find a field named",
	"Field not found",
}

const maxErrorBody = 512

// classifyResponse turns a non-2xx engine reply into a typed error. Client
// errors are permanent so the retry loop and the breaker ignore them.
func classifyResponse(status int, body string) error {
	body = truncate(body, maxErrorBody)

	for _, m := range driftMarkers {
		if strings.Contains(body, m) {
			return resilience.Permanent(fmt.Errorf("%w: status=%d body=%s", models.ErrSchemaDrift, status, body))
		}
	}

	switch {
	case status == http.StatusTooManyRequests || status >= 500:
		return fmt.Errorf("%w: status=%d body=%s", models.ErrEngineUnavailable, status, body)
	case status == http.StatusNotFound && strings.Contains(body, "index_not_found_exception"):
		return resilience.Permanent(fmt.Errorf("%w: index missing: %s", models.ErrEngineUnavailable, body))
	default:
		return resilience.Permanent(fmt.Errorf("%w: status=%d body=%s", models.ErrMalformedQuery, status, body))
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
