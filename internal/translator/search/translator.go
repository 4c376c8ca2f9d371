// Package search lowers a validated FilterIR into Elasticsearch-style DSL
// query bodies, grounded on the Python source's
// adapters/elasticsearch/query_translator.go ESQueryTranslator.
package search

import (
	"fmt"
	"strings"

	"queryforge/internal/model"
	"queryforge/internal/translator"
	"queryforge/internal/typeregistry"
)

const (
	defaultBucketSize  = 100
	defaultTopHitsSize = 100
)

// Translator lowers a FilterIR into one DSL body per slice.
type Translator struct {
	FieldMap *model.FieldMap
	// BucketSize is the terms bucket size used when a slice does not supply
	// its own limit (date_histogram levels carry no size), mirroring the
	// Python source's
	// `limit_config = filter_slice.get("limit", 100)`.
	BucketSize int
	// TopHitsSize is the number of sample documents collected at the
	// innermost bucket level via the top_hits aggregation.
	TopHitsSize int
}

// NewTranslator binds a Translator to the FieldMap the IR was validated
// against and the configured default bucket and top-hits sizes.
func NewTranslator(fm *model.FieldMap, bucketSize, topHitsSize int) *Translator {
	if bucketSize <= 0 {
		bucketSize = defaultBucketSize
	}
	if topHitsSize <= 0 {
		topHitsSize = defaultTopHitsSize
	}
	return &Translator{FieldMap: fm, BucketSize: bucketSize, TopHitsSize: topHitsSize}
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

func (t *Translator) translateSlice(s model.Slice) (map[string]any, error) {
	must := make([]map[string]any, 0, len(s.Conditions))
	for _, cond := range s.Conditions {
		predicate, err := t.translateCondition(cond)
		if err != nil {
			return nil, err
		}
		must = append(must, predicate)
	}

	var query map[string]any
	if len(must) == 0 {
		query = map[string]any{"match_all": map[string]any{}}
	} else {
		query = map[string]any{"bool": map[string]any{"must": must}}
	}

	plan := map[string]any{"query": query}

	if len(s.Aggregations) > 0 || len(s.GroupBy) > 0 {
		plan["size"] = 0
		aggs, err := t.buildAggregations(s)
		if err != nil {
			return nil, err
		}
		plan["aggs"] = aggs
	} else {
		if len(s.Sort) > 0 {
			plan["sort"] = t.buildSort(s.Sort)
		}
		if s.Limit != nil {
			plan["size"] = *s.Limit
		}
	}

	return plan, nil
}

func (t *Translator) translateCondition(cond model.Condition) (map[string]any, error) {
	spec, ok := t.FieldMap.Get(cond.Field)
	if !ok {
		return nil, &model.TranslationError{Cause: fmt.Errorf("field %q missing from field map at translation time", cond.Field)}
	}
	exact := spec.Type == model.TypeString || spec.Type == model.TypeEnum
	field := cond.Field
	if exact {
		field = keywordField(cond.Field)
	}

	switch cond.Operator {
	case model.OpGT:
		return map[string]any{"range": map[string]any{cond.Field: map[string]any{"gt": cond.Value}}}, nil
	case model.OpLT:
		return map[string]any{"range": map[string]any{cond.Field: map[string]any{"lt": cond.Value}}}, nil
	case model.OpBetween:
		pair, _ := cond.Value.([]any)
		return map[string]any{"range": map[string]any{cond.Field: map[string]any{"gte": pair[0], "lte": pair[1]}}}, nil
	case model.OpIs:
		return map[string]any{"term": map[string]any{field: cond.Value}}, nil
	case model.OpDifferent:
		return map[string]any{"bool": map[string]any{"must_not": []map[string]any{{"term": map[string]any{field: cond.Value}}}}}, nil
	case model.OpIsIn:
		return map[string]any{"terms": map[string]any{field: cond.Value}}, nil
	case model.OpNotIn:
		return map[string]any{"bool": map[string]any{"must_not": []map[string]any{{"terms": map[string]any{field: cond.Value}}}}}, nil
	case model.OpContains:
		v := strings.ToLower(fmt.Sprintf("%v", cond.Value))
		return map[string]any{"wildcard": map[string]any{keywordField(cond.Field): map[string]any{"value": "*" + escapeWildcard(v) + "*"}}}, nil
	case model.OpExists:
		exists := map[string]any{"exists": map[string]any{"field": cond.Field}}
		if want, _ := cond.Value.(bool); want {
			return exists, nil
		}
		return map[string]any{"bool": map[string]any{"must_not": []map[string]any{exists}}}, nil
	default:
		return nil, &model.TranslationError{Cause: fmt.Errorf("unsupported operator %q", cond.Operator)}
	}
}

// buildAggregations builds nested bucket levels outer-to-inner per
// group_by entry, with metrics and the top-hits document collector at the
// innermost level (spec §4.6).
func (t *Translator) buildAggregations(s model.Slice) (map[string]any, error) {
	leaf := make(map[string]any, len(s.Aggregations)+2)
	for _, agg := range s.Aggregations {
		leaf[translator.MetricName(agg.Kind, agg.Field)] = metricAgg(agg)
	}
	leaf["documents"] = map[string]any{"top_hits": map[string]any{"size": t.TopHitsSize}}

	having, err := t.buildHaving(s.Aggregations)
	if err != nil {
		return nil, err
	}
	if having != nil {
		leaf["having_filter"] = having
	}

	if len(s.GroupBy) == 0 {
		return leaf, nil
	}

	aggs := leaf
	for i := len(s.GroupBy) - 1; i >= 0; i-- {
		bucket, err := t.buildBucket(s.GroupBy[i], s)
		if err != nil {
			return nil, err
		}
		bucket["aggs"] = aggs
		aggs = map[string]any{translator.BucketName(i): bucket}
	}
	return aggs, nil
}

func (t *Translator) buildBucket(field string, s model.Slice) (map[string]any, error) {
	spec, ok := t.FieldMap.Get(field)
	if !ok {
		return nil, &model.TranslationError{Cause: fmt.Errorf("group_by field %q missing from field map", field)}
	}
	if spec.Type == model.TypeDate {
		interval := model.IntervalDay
		if s.Interval != nil {
			interval = *s.Interval
		}
		return map[string]any{
			"date_histogram": map[string]any{
				"field":             field,
				"calendar_interval": string(interval),
				"format":            typeregistry.IntervalFormat[interval],
			},
		}, nil
	}
	bucketField := field
	if spec.Type == model.TypeString || spec.Type == model.TypeEnum {
		bucketField = keywordField(field)
	}
	size := t.BucketSize
	if s.Limit != nil {
		size = *s.Limit
	}
	return map[string]any{
		"terms": map[string]any{
			"field": bucketField,
			"size":  size,
		},
	}, nil
}

func metricAgg(agg model.Aggregation) map[string]any {
	if agg.Kind == model.AggCount {
		return map[string]any{"value_count": map[string]any{"field": agg.Field}}
	}
	return map[string]any{string(agg.Kind): map[string]any{"field": agg.Field}}
}

// buildHaving lowers every having clause present into a single
// bucket_selector aggregation, the form the innermost bucket level carries
// (spec §4.6). Multiple simultaneous having clauses across different
// metrics in one slice are combined with a logical AND in the script.
func (t *Translator) buildHaving(aggs []model.Aggregation) (map[string]any, error) {
	var scriptParts []string
	n := 0
	for _, agg := range aggs {
		if agg.HavingOperator == nil {
			continue
		}
		comparator, ok := typeregistry.HavingComparator[*agg.HavingOperator]
		if !ok {
			return nil, &model.TranslationError{Cause: fmt.Errorf("unsupported having operator %q", *agg.HavingOperator)}
		}
		param := translator.HavingParam(n)
		scriptParts = append(scriptParts, fmt.Sprintf("params.%s %s %s", param, comparator, paramLiteral(agg.HavingValue)))
		n++
	}
	if len(scriptParts) == 0 {
		return nil, nil
	}
	return map[string]any{
		"bucket_selector": map[string]any{
			"buckets_path": havingBucketsPath(aggs),
			"script":       strings.Join(scriptParts, " && "),
		},
	}, nil
}

func havingBucketsPath(aggs []model.Aggregation) map[string]any {
	paths := map[string]any{}
	n := 0
	for _, agg := range aggs {
		if agg.HavingOperator == nil {
			continue
		}
		paths[translator.HavingParam(n)] = translator.MetricName(agg.Kind, agg.Field)
		n++
	}
	return paths
}

func paramLiteral(v any) string {
	switch val := v.(type) {
	case string:
		return fmt.Sprintf("%q", val)
	default:
		return fmt.Sprintf("%v", val)
	}
}

func (t *Translator) buildSort(keys []model.SortKey) []map[string]any {
	sort := make([]map[string]any, 0, len(keys))
	for _, key := range keys {
		field := key.Field
		if spec, ok := t.FieldMap.Get(key.Field); ok && (spec.Type == model.TypeString || spec.Type == model.TypeEnum) {
			field = keywordField(key.Field)
		}
		sort = append(sort, map[string]any{field: map[string]any{"order": string(key.Order)}})
	}
	return sort
}

func keywordField(field string) string {
	return field + ".keyword"
}

func escapeWildcard(v string) string {
	v = strings.ReplaceAll(v, `\`, `\\`)
	v = strings.ReplaceAll(v, `*`, `\*`)
	v = strings.ReplaceAll(v, `?`, `\?`)
	return v
}
