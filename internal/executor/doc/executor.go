// Package doc executes MongoDB-style aggregation pipelines produced by
// internal/translator/doc against a live collection, grounded on
// original_source/query_builder/adapters/mongodb/executor.py.
package doc

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"queryforge/internal/model"
	"queryforge/internal/translator"
)

// Executor runs document-backend plans via the mongo-driver client.
type Executor struct {
	collection *mongo.Collection
}

// NewExecutor wraps an already-selected collection. cmd/server opens a
// client for it separately from the schema extractor's connection.
func NewExecutor(collection *mongo.Collection) *Executor {
	return &Executor{collection: collection}
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
	pipeline, ok := plan.([]map[string]any)
	if body, isObject := plan.(map[string]any); isObject {
		stages, isList := body["pipeline"].([]any)
		ok = isList
		for _, stage := range stages {
			m, isStage := stage.(map[string]any)
			if !isStage {
				ok = false
				break
			}
			pipeline = append(pipeline, m)
		}
	}
	if !ok {
		return model.QueryResult{}, &model.BackendError{Cause: fmt.Errorf("raw plan must be an aggregation pipeline")}
	}
	if limit > 0 {
		pipeline = append(pipeline, map[string]any{"$limit": limit})
	}
	return e.runPlan(ctx, pipeline)
}

func (e *Executor) runPlan(ctx context.Context, plan translator.Plan) (model.QueryResult, error) {
	pipeline, ok := plan.([]map[string]any)
	if !ok {
		return model.QueryResult{}, fmt.Errorf("document executor received a non-pipeline plan of type %T", plan)
	}

	mongoPipeline := make(mongo.Pipeline, 0, len(pipeline))
	for _, stage := range pipeline {
		doc, err := bson.Marshal(stage)
		if err != nil {
			return model.QueryResult{}, err
		}
		var d bson.D
		if err := bson.Unmarshal(doc, &d); err != nil {
			return model.QueryResult{}, err
		}
		mongoPipeline = append(mongoPipeline, d)
	}

	cursor, err := e.collection.Aggregate(ctx, mongoPipeline)
	if err != nil {
		return model.QueryResult{}, err
	}
	defer cursor.Close(ctx)

	documents := make([]map[string]any, 0)
	for cursor.Next(ctx) {
		var doc map[string]any
		if err := cursor.Decode(&doc); err != nil {
			continue
		}
		documents = append(documents, doc)
	}
	if err := cursor.Err(); err != nil {
		return model.QueryResult{}, err
	}

	return model.QueryResult{
		TotalHits: len(documents),
		Documents: documents,
		Success:   true,
	}, nil
}
