// Package doc lowers a validated FilterIR into a MongoDB-style aggregation
// pipeline, grounded on the Python source's
// adapters/mongodb/query_translator.go MongoQueryTranslator.
package doc

import (
	"fmt"
	"strings"

	"queryforge/internal/model"
	"queryforge/internal/translator"
	"queryforge/internal/typeregistry"
)

// Translator lowers a FilterIR into one pipeline per slice.
type Translator struct {
	FieldMap *model.FieldMap
}

// NewTranslator binds a Translator to the FieldMap the IR was validated
// against.
func NewTranslator(fm *model.FieldMap) *Translator {
	return &Translator{FieldMap: fm}
}

func (t *Translator) Translate(ir model.FilterIR) ([]translator.Plan, error) {
	plans := make([]translator.Plan, 0, len(ir.Slices))
	for _, slice := range ir.Slices {
		plan, err := t.translateSlice(slice)
		if err != nil {
			return nil, err
		}
		plans = append(plans, plan)
	}
	return plans, nil
}

// translateSlice builds the fixed-order pipeline: $match, $group, $match
// (having), $sort, $limit — stages absent when their inputs are empty
// (spec §4.7).
func (t *Translator) translateSlice(s model.Slice) ([]map[string]any, error) {
	pipeline := make([]map[string]any, 0, 5)

	if len(s.Conditions) > 0 {
		match, err := t.buildMatch(s.Conditions)
		if err != nil {
			return nil, err
		}
		pipeline = append(pipeline, map[string]any{"$match": match})
	}

	if len(s.GroupBy) > 0 || len(s.Aggregations) > 0 {
		group, err := t.buildGroupStage(s)
		if err != nil {
			return nil, err
		}
		pipeline = append(pipeline, map[string]any{"$group": group})

		having := t.buildHavingConditions(s.Aggregations)
		if having != nil {
			pipeline = append(pipeline, map[string]any{"$match": having})
		}
	}

	if len(s.Sort) > 0 {
		pipeline = append(pipeline, map[string]any{"$sort": t.buildSort(s.Sort, s.GroupBy)})
	}

	if s.Limit != nil {
		pipeline = append(pipeline, map[string]any{"$limit": *s.Limit})
	}

	return pipeline, nil
}

func (t *Translator) buildMatch(conditions []model.Condition) (map[string]any, error) {
	clauses := make([]map[string]any, 0, len(conditions))
	for _, cond := range conditions {
		clause, err := t.translateCondition(cond)
		if err != nil {
			return nil, err
		}
		clauses = append(clauses, clause)
	}
	if len(clauses) == 1 {
		return clauses[0], nil
	}
	and := make([]any, len(clauses))
	for i, c := range clauses {
		and[i] = c
	}
	return map[string]any{"$and": and}, nil
}

func (t *Translator) translateCondition(cond model.Condition) (map[string]any, error) {
	switch cond.Operator {
	case model.OpGT:
		return map[string]any{cond.Field: map[string]any{"$gt": cond.Value}}, nil
	case model.OpLT:
		return map[string]any{cond.Field: map[string]any{"$lt": cond.Value}}, nil
	case model.OpBetween:
		pair, _ := cond.Value.([]any)
		return map[string]any{cond.Field: map[string]any{"$gte": pair[0], "$lte": pair[1]}}, nil
	case model.OpIs:
		return map[string]any{cond.Field: map[string]any{"$eq": cond.Value}}, nil
	case model.OpDifferent:
		return map[string]any{cond.Field: map[string]any{"$ne": cond.Value}}, nil
	case model.OpIsIn:
		return map[string]any{cond.Field: map[string]any{"$in": cond.Value}}, nil
	case model.OpNotIn:
		return map[string]any{cond.Field: map[string]any{"$nin": cond.Value}}, nil
	case model.OpContains:
		return map[string]any{cond.Field: map[string]any{"$regex": cond.Value, "$options": "i"}}, nil
	case model.OpExists:
		return map[string]any{cond.Field: map[string]any{"$exists": cond.Value}}, nil
	default:
		return nil, &model.TranslationError{Cause: fmt.Errorf("unsupported operator %q", cond.Operator)}
	}
}

// buildGroupStage builds a single $group stage with a compound _id keying
// every grouped field, a raw-document accumulator, and one accumulator per
// requested metric.
func (t *Translator) buildGroupStage(s model.Slice) (map[string]any, error) {
	id := map[string]any{}
	for _, field := range s.GroupBy {
		spec, ok := t.FieldMap.Get(field)
		if !ok {
			return nil, &model.TranslationError{Cause: fmt.Errorf("group_by field %q missing from field map", field)}
		}
		key := groupKey(field)
		if spec.Type == model.TypeDate {
			interval := model.IntervalDay
			if s.Interval != nil {
				interval = *s.Interval
			}
			id[key] = map[string]any{
				"$dateToString": map[string]any{
					"format": typeregistry.MongoDateFormat[interval],
					"date":   map[string]any{"$dateFromString": map[string]any{"dateString": "$" + field}},
				},
			}
		} else {
			id[key] = "$" + field
		}
	}

	group := map[string]any{"_id": id}
	group["documents"] = map[string]any{"$push": "$$ROOT"}
	for _, agg := range s.Aggregations {
		group[translator.MetricName(agg.Kind, agg.Field)] = metricAccumulator(agg)
	}
	return group, nil
}

func metricAccumulator(agg model.Aggregation) map[string]any {
	switch agg.Kind {
	case model.AggCount:
		return map[string]any{"$sum": 1}
	case model.AggSum:
		return map[string]any{"$sum": "$" + agg.Field}
	case model.AggAvg:
		return map[string]any{"$avg": "$" + agg.Field}
	case model.AggMin:
		return map[string]any{"$min": "$" + agg.Field}
	case model.AggMax:
		return map[string]any{"$max": "$" + agg.Field}
	}
	return nil
}

func (t *Translator) buildHavingConditions(aggs []model.Aggregation) map[string]any {
	clauses := make([]map[string]any, 0, len(aggs))
	for _, agg := range aggs {
		if agg.HavingOperator == nil {
			continue
		}
		metricName := translator.MetricName(agg.Kind, agg.Field)
		clauses = append(clauses, map[string]any{metricName: havingOperator(*agg.HavingOperator, agg.HavingValue)})
	}
	if len(clauses) == 0 {
		return nil
	}
	if len(clauses) == 1 {
		return clauses[0]
	}
	and := make([]any, len(clauses))
	for i, c := range clauses {
		and[i] = c
	}
	return map[string]any{"$and": and}
}

func havingOperator(op model.HavingOperator, value any) map[string]any {
	switch op {
	case model.HavingGT:
		return map[string]any{"$gt": value}
	case model.HavingLT:
		return map[string]any{"$lt": value}
	case model.HavingGE:
		return map[string]any{"$gte": value}
	case model.HavingLE:
		return map[string]any{"$lte": value}
	case model.HavingIs:
		return map[string]any{"$eq": value}
	case model.HavingDifferent:
		return map[string]any{"$ne": value}
	}
	return map[string]any{"$eq": value}
}

// buildSort lowers sort keys to a $sort stage. When the slice has grouped,
// a field that was itself a group_by key is addressed through its id
// projection rather than the raw document field.
func (t *Translator) buildSort(keys []model.SortKey, groupBy []string) map[string]any {
	grouped := make(map[string]bool, len(groupBy))
	for _, field := range groupBy {
		grouped[field] = true
	}
	sort := map[string]any{}
	for _, key := range keys {
		field := key.Field
		if grouped[key.Field] {
			field = "_id." + groupKey(key.Field)
		}
		dir := 1
		if key.Order == model.SortDesc {
			dir = -1
		}
		sort[field] = dir
	}
	return sort
}

func groupKey(field string) string {
	return strings.ReplaceAll(field, ".", "_")
}
