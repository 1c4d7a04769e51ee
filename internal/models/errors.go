package models

import "errors"

var (
	// ErrEngineUnavailable covers connectivity, health and breaker failures.
	ErrEngineUnavailable = errors.New("search engine unavailable")
	// ErrSchemaDrift means a filter or sort field is missing from the engine schema.
	ErrSchemaDrift = errors.New("search engine schema drift")
	// ErrMalformedQuery is any other request the engine rejected.
	ErrMalformedQuery = errors.New("search engine rejected query")
)
