// Package search executes Elasticsearch DSL plans produced by
// internal/translator/search against a live index, grounded on the
// teacher's internal/elasticsearch/log_repository.go Search call and on
// original_source/query_builder/adapters/elasticsearch/executor.py.
package search

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"github.com/elastic/go-elasticsearch/v8"

	"queryforge/internal/model"
	"queryforge/internal/translator"
)

// Executor runs search-backend plans via the typed client.
type Executor struct {
	client *elasticsearch.TypedClient
	index  string
}

// NewExecutor wraps an already-constructed typed client. cmd/server builds
// it separately from the schema extractor's client.
func NewExecutor(client *elasticsearch.TypedClient, index string) *Executor {
	return &Executor{client: client, index: index}
}

func (e *Executor) Execute(ctx context.Context, plans []translator.Plan) ([]model.QueryResult, error) {
	results := make([]model.QueryResult, len(plans))
	for i, plan := range plans {
		result, err := e.runPlan(ctx, plan)
		if err != nil {
			results[i] = model.ErrorResult(&model.BackendError{Cause: err})
			continue
		}
		results[i] = result
	}
	return results, nil
}

func (e *Executor) ExecuteRaw(ctx context.Context, plan translator.Plan, limit int) (model.QueryResult, error) {
	body, ok := plan.(map[string]any)
	if !ok {
		return model.QueryResult{}, &model.BackendError{Cause: fmt.Errorf("raw plan must be a search DSL object")}
	}
	if _, hasSize := body["size"]; !hasSize && limit > 0 {
		body["size"] = limit
	}
	return e.runPlan(ctx, body)
}

func (e *Executor) runPlan(ctx context.Context, plan translator.Plan) (model.QueryResult, error) {
	body, ok := plan.(map[string]any)
	if !ok {
		return model.QueryResult{}, fmt.Errorf("search executor received a non-DSL plan of type %T", plan)
	}
	raw, err := json.Marshal(body)
	if err != nil {
		return model.QueryResult{}, err
	}

	res, err := e.client.Search().Index(e.index).Raw(bytes.NewReader(raw)).Do(ctx)
	if err != nil {
		return model.QueryResult{}, err
	}

	documents := make([]map[string]any, 0, len(res.Hits.Hits))
	for _, hit := range res.Hits.Hits {
		var doc map[string]any
		if hit.Source_ != nil {
			if err := json.Unmarshal(hit.Source_, &doc); err != nil {
				continue
			}
		}
		documents = append(documents, doc)
	}

	var aggregations map[string]any
	if len(res.Aggregations) > 0 {
		aggRaw, err := json.Marshal(res.Aggregations)
		if err == nil {
			_ = json.Unmarshal(aggRaw, &aggregations)
		}
	}

	totalHits := 0
	if res.Hits.Total != nil {
		totalHits = int(res.Hits.Total.Value)
	}

	return model.QueryResult{
		TotalHits:    totalHits,
		Documents:    documents,
		Aggregations: aggregations,
		Success:      true,
	}, nil
}
