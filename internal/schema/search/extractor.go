// Package search implements the schema extractor of the query builder
// against an Elasticsearch-compatible search engine, using the same typed client construction the teacher uses
// in internal/elasticsearch/log_repository.go.
package search

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/rs/zerolog/log"

	"queryforge/internal/model"
	"queryforge/internal/typeregistry"
)

// Config is the connection configuration for the search-backend extractor.
type Config struct {
	Addresses      []string
	Index          string
	CategoryFields []string
	FieldsToIgnore []string
	BucketSize     int
}

// Extractor builds a FieldMap from an index's mapping.
type Extractor struct {
	client *elasticsearch.TypedClient
	cfg    Config
}

// NewExtractor dials a typed Elasticsearch client with the same transport
// tuning the teacher applies to its log repository client.
func NewExtractor(cfg Config) (*Extractor, error) {
	transport := &http.Transport{
		MaxIdleConnsPerHost:   10,
		ResponseHeaderTimeout: 10 * time.Second,
		DialContext:           (&net.Dialer{Timeout: 5 * time.Second}).DialContext,
		TLSHandshakeTimeout:   5 * time.Second,
	}
	client, err := elasticsearch.NewTypedClient(elasticsearch.Config{
		Addresses: cfg.Addresses,
		Transport: transport,
	})
	if err != nil {
		log.Error().Err(err).Msg("failed to create typed elasticsearch client for schema extractor")
		return nil, &model.SchemaError{Cause: err}
	}
	return &Extractor{client: client, cfg: cfg}, nil
}

// mappingProperty mirrors the subset of an Elasticsearch mapping property
// this extractor understands; decoded generically because the typed client
// does not expose a typed mapping-introspection model rich enough for
// arbitrary nested trees.
type mappingProperty struct {
	Type       string                     `json:"type"`
	Properties map[string]mappingProperty `json:"properties"`
}

func (e *Extractor) Extract(ctx context.Context) (*model.FieldMap, error) {
	ignore := toSet(e.cfg.FieldsToIgnore)

	res, err := e.client.Indices.GetMapping().Index(e.cfg.Index).Do(ctx)
	if err != nil {
		return nil, &model.SchemaError{Cause: fmt.Errorf("get mapping for %s: %w", e.cfg.Index, err)}
	}

	fm := model.NewFieldMap()
	for _, indexMapping := range res {
		raw, err := json.Marshal(indexMapping.Mappings)
		if err != nil {
			log.Warn().Err(err).Str("index", e.cfg.Index).Msg("skipping malformed mapping entry")
			continue
		}
		var decoded struct {
			Properties map[string]mappingProperty `json:"properties"`
		}
		if err := json.Unmarshal(raw, &decoded); err != nil {
			log.Warn().Err(err).Str("index", e.cfg.Index).Msg("skipping malformed mapping entry")
			continue
		}
		walkProperties(decoded.Properties, "", ignore, fm)
	}

	if fm.Len() == 0 {
		return nil, &model.SchemaError{Cause: fmt.Errorf("index %s produced an empty field map", e.cfg.Index)}
	}

	categoryFields := toSet(e.cfg.CategoryFields)
	bucketSize := e.cfg.BucketSize
	if bucketSize <= 0 {
		bucketSize = 100
	}
	for path := range categoryFields {
		spec, ok := fm.Get(path)
		if !ok {
			continue
		}
		values, err := e.Distinct(ctx, path, bucketSize)
		if err != nil {
			log.Warn().Err(err).Str("field", path).Msg("distinct lookup failed for category field")
			continue
		}
		spec.Type = model.TypeEnum
		spec.Values = values
		fm.Set(path, spec)
	}

	return fm, nil
}

// walkProperties recurses a mapping properties tree, flattening it into
// dot-joined paths. A "nested" subtree becomes an array of object on the
// parent path, matching the search engine's own nested-document semantics.
func walkProperties(props map[string]mappingProperty, prefix string, ignore map[string]bool, fm *model.FieldMap) {
	for name, prop := range props {
		path := name
		if prefix != "" {
			path = prefix + "." + name
		}
		if ignore[path] {
			continue
		}
		if prop.Type == "nested" {
			fm.Set(path, model.FieldSpec{Type: model.TypeArray, ItemType: model.TypeObject})
			walkProperties(prop.Properties, path, ignore, fm)
			continue
		}
		if len(prop.Properties) > 0 {
			walkProperties(prop.Properties, path, ignore, fm)
			continue
		}
		if typeregistry.IgnoredSearchFieldTypes[prop.Type] {
			continue
		}
		normalized, ok := typeregistry.SearchTypeMap[prop.Type]
		if !ok {
			log.Warn().Str("field", path).Str("mapping_type", prop.Type).Msg("unrecognized mapping type, skipping field")
			continue
		}
		fm.Set(path, model.FieldSpec{Type: normalized, ExactMatchCapable: normalized == model.TypeString})
	}
}

// Distinct runs a terms aggregation bounded to limit buckets against a
// keyword-suffixed field, matching the .keyword convention the teacher's
// log repository already applies for sortable/aggregatable text fields.
func (e *Extractor) Distinct(ctx context.Context, field string, limit int) ([]string, error) {
	body := map[string]any{
		"size": 0,
		"aggs": map[string]any{
			"distinct_values": map[string]any{
				"terms": map[string]any{
					"field": keywordField(field),
					"size":  limit,
				},
			},
		},
	}
	raw, err := json.Marshal(body)
	if err != nil {
		return nil, &model.SchemaError{Cause: err}
	}

	res, err := e.client.Search().Index(e.cfg.Index).Raw(bytes.NewReader(raw)).Do(ctx)
	if err != nil {
		return nil, &model.SchemaError{Cause: fmt.Errorf("distinct values for %s: %w", field, err)}
	}

	aggRaw, ok := res.Aggregations["distinct_values"]
	if !ok {
		return nil, nil
	}
	aggJSON, err := json.Marshal(aggRaw)
	if err != nil {
		return nil, &model.SchemaError{Cause: err}
	}
	var parsed struct {
		Buckets []struct {
			Key any `json:"key"`
		} `json:"buckets"`
	}
	if err := json.Unmarshal(aggJSON, &parsed); err != nil {
		return nil, &model.SchemaError{Cause: err}
	}
	values := make([]string, 0, len(parsed.Buckets))
	for _, b := range parsed.Buckets {
		values = append(values, fmt.Sprintf("%v", b.Key))
	}
	return values, nil
}

// keywordField appends the .keyword multi-field subfield used throughout
// the teacher's search queries for exact-match/aggregation access to a
// text field (internal/elasticsearch/log_repository.go sortField logic).
func keywordField(field string) string {
	return field + ".keyword"
}

func toSet(items []string) map[string]bool {
	s := make(map[string]bool, len(items))
	for _, item := range items {
		s[item] = true
	}
	return s
}
