// Package schema extracts a normalized FieldMap from a live backend and
// resolves the distinct values of enum-capable fields, caching both behind
// a single-writer/multi-reader guard (spec §5).
package schema

import (
	"context"

	"queryforge/internal/model"
)

// Extractor discovers the field shape of a backend's dataset.
type Extractor interface {
	// Extract returns the full normalized FieldMap. The backend
	// implementations rebuild it on every call; CachedExtractor builds it
	// on first call and reuses the cached copy thereafter.
	Extract(ctx context.Context) (*model.FieldMap, error)
	// Distinct returns up to limit distinct values observed for field,
	// used to populate FieldSpec.Values for category fields.
	Distinct(ctx context.Context, field string, limit int) ([]string, error)
}
