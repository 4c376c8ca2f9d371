// Package doc implements the schema extractor of the query builder against
// a MongoDB-compatible document store. There
// is no Go document-store driver anywhere in the retrieved corpus, so this
// package names go.mongodb.org/mongo-driver directly as the concrete
// ecosystem choice for the concern (see DESIGN.md).
package doc

import (
	"context"
	"fmt"
	"time"

	"github.com/araddon/dateparse"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"queryforge/internal/model"
)

// Config is the connection configuration for the document-backend
// extractor.
type Config struct {
	URI            string
	Database       string
	Collection     string
	CategoryFields []string
	FieldsToIgnore []string
	SampleSize     int
}

// Extractor infers a FieldMap by sampling documents, since a document store
// carries no declared schema.
type Extractor struct {
	client *mongo.Client
	cfg    Config
}

// NewExtractor connects to the document store.
func NewExtractor(ctx context.Context, cfg Config) (*Extractor, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.URI))
	if err != nil {
		return nil, &model.SchemaError{Cause: fmt.Errorf("connect to document store: %w", err)}
	}
	if err := client.Ping(ctx, nil); err != nil {
		return nil, &model.SchemaError{Cause: fmt.Errorf("ping document store: %w", err)}
	}
	return &Extractor{client: client, cfg: cfg}, nil
}

func (e *Extractor) collection() *mongo.Collection {
	return e.client.Database(e.cfg.Database).Collection(e.cfg.Collection)
}

// typeCounts tallies, per field path, how many sampled documents exhibited
// each normalized type, so the modal type can be chosen on finalization.
type typeCounts map[string]map[model.NormalizedType]int

func (e *Extractor) Extract(ctx context.Context) (*model.FieldMap, error) {
	sampleSize := e.cfg.SampleSize
	if sampleSize <= 0 {
		sampleSize = 1000
	}
	ignore := toSet(e.cfg.FieldsToIgnore)

	cursor, err := e.collection().Find(ctx, bson.M{}, options.Find().SetLimit(int64(sampleSize)))
	if err != nil {
		return nil, &model.SchemaError{Cause: fmt.Errorf("sample documents: %w", err)}
	}
	defer cursor.Close(ctx)

	counts := typeCounts{}
	itemTypes := map[string]model.NormalizedType{}
	sampled := 0
	for cursor.Next(ctx) {
		var doc bson.M
		if err := cursor.Decode(&doc); err != nil {
			continue
		}
		sampled++
		collectFieldTypes(doc, "", ignore, counts, itemTypes)
	}
	if err := cursor.Err(); err != nil {
		return nil, &model.SchemaError{Cause: err}
	}
	if sampled == 0 {
		return nil, &model.SchemaError{Cause: fmt.Errorf("collection %s yielded an empty sample", e.cfg.Collection)}
	}

	fm := model.NewFieldMap()
	for path, byType := range counts {
		normalized := modalType(byType)
		spec := model.FieldSpec{Type: normalized, ExactMatchCapable: normalized == model.TypeString}
		if normalized == model.TypeArray {
			spec.ItemType = itemTypes[path]
		}
		fm.Set(path, spec)
	}

	categoryFields := toSet(e.cfg.CategoryFields)
	for path := range categoryFields {
		spec, ok := fm.Get(path)
		if !ok {
			continue
		}
		values, err := e.Distinct(ctx, path, 100)
		if err != nil {
			continue
		}
		spec.Type = model.TypeEnum
		spec.Values = values
		fm.Set(path, spec)
	}

	return fm, nil
}

// collectFieldTypes walks one sampled document, recording the normalized
// type observed at each dot-joined path. Keys beginning with "_" are
// skipped, matching the Python extractor's treatment of driver-internal
// fields such as "_id".
func collectFieldTypes(value any, prefix string, ignore map[string]bool, counts typeCounts, itemTypes map[string]model.NormalizedType) {
	m, ok := value.(bson.M)
	if !ok {
		return
	}
	for key, v := range m {
		if len(key) > 0 && key[0] == '_' {
			continue
		}
		path := key
		if prefix != "" {
			path = prefix + "." + key
		}
		if ignore[path] {
			continue
		}
		if nested, ok := v.(bson.M); ok {
			collectFieldTypes(nested, path, ignore, counts, itemTypes)
			continue
		}
		recordType(path, v, counts, itemTypes)
	}
}

// recordType tallies the normalized type of a leaf value. It is never
// called with a bson.M: collectFieldTypes recurses into object values
// instead of recording them, so a parent object path never competes with
// its own leaves for a slot in the FieldMap.
func recordType(path string, v any, counts typeCounts, itemTypes map[string]model.NormalizedType) {
	if counts[path] == nil {
		counts[path] = map[model.NormalizedType]int{}
	}
	switch val := v.(type) {
	case bson.A:
		counts[path][model.TypeArray]++
		if len(val) > 0 {
			itemTypes[path] = inferScalarType(val[0])
		}
	case bool:
		counts[path][model.TypeBoolean]++
	case int, int32, int64, float32, float64:
		counts[path][model.TypeNumber]++
	case string:
		if isDateString(val) {
			counts[path][model.TypeDate]++
		} else {
			counts[path][model.TypeString]++
		}
	case time.Time:
		counts[path][model.TypeDate]++
	default:
		counts[path][model.TypeString]++
	}
}

func inferScalarType(v any) model.NormalizedType {
	switch val := v.(type) {
	case bson.M:
		return model.TypeObject
	case bool:
		return model.TypeBoolean
	case int, int32, int64, float32, float64:
		return model.TypeNumber
	case string:
		if isDateString(val) {
			return model.TypeDate
		}
		return model.TypeString
	case time.Time:
		return model.TypeDate
	default:
		return model.TypeString
	}
}

// isDateString reports whether a string value looks like an ISO-8601
// timestamp, used to distinguish date fields stored as strings from plain
// text — the same dateparse.ParseStrict check the filter validator applies
// to literals, except that strings shorter than 8 characters are rejected
// here outright.
func isDateString(s string) bool {
	if len(s) < 8 {
		return false
	}
	_, err := dateparse.ParseStrict(s)
	return err == nil
}

func modalType(byType map[model.NormalizedType]int) model.NormalizedType {
	var best model.NormalizedType
	bestCount := -1
	for t, c := range byType {
		if c > bestCount {
			best, bestCount = t, c
		}
	}
	return best
}

// Distinct uses the native distinct command, bounded defensively since
// MongoDB's distinct does not itself accept a limit.
func (e *Extractor) Distinct(ctx context.Context, field string, limit int) ([]string, error) {
	raw, err := e.collection().Distinct(ctx, field, bson.M{})
	if err != nil {
		return nil, &model.SchemaError{Cause: fmt.Errorf("distinct values for %s: %w", field, err)}
	}
	values := make([]string, 0, len(raw))
	for _, v := range raw {
		values = append(values, fmt.Sprintf("%v", v))
		if len(values) >= limit {
			break
		}
	}
	return values, nil
}

func toSet(items []string) map[string]bool {
	s := make(map[string]bool, len(items))
	for _, item := range items {
		s[item] = true
	}
	return s
}
