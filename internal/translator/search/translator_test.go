package search

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"queryforge/internal/model"
)

func demoFieldMap() *model.FieldMap {
	fm := model.NewFieldMap()
	fm.Set("card_type", model.FieldSpec{Type: model.TypeEnum, Values: []string{"GOLD", "SILVER"}})
	fm.Set("amount", model.FieldSpec{Type: model.TypeNumber})
	fm.Set("created_at", model.FieldSpec{Type: model.TypeDate})
	fm.Set("region", model.FieldSpec{Type: model.TypeString})
	return fm
}

func TestTranslate_KeywordEquality(t *testing.T) {
	tr := NewTranslator(demoFieldMap(), defaultBucketSize, defaultTopHitsSize)
	ir := model.FilterIR{Slices: []model.Slice{{
		Conditions: []model.Condition{{Field: "card_type", Operator: model.OpIs, Value: "GOLD"}},
	}}}
	plans, err := tr.Translate(ir)
	require.NoError(t, err)
	require.Len(t, plans, 1)

	body := plans[0].(map[string]any)
	query := body["query"].(map[string]any)
	boolQuery := query["bool"].(map[string]any)
	must := boolQuery["must"].([]map[string]any)
	require.Len(t, must, 1)
	term := must[0]["term"].(map[string]any)
	assert.Equal(t, "GOLD", term["card_type.keyword"])
}

func TestTranslate_MonthlySumWithTwoMetrics(t *testing.T) {
	tr := NewTranslator(demoFieldMap(), defaultBucketSize, defaultTopHitsSize)
	interval := model.IntervalMonth
	ir := model.FilterIR{Slices: []model.Slice{{
		Conditions: []model.Condition{},
		GroupBy:    []string{"created_at"},
		Interval:   &interval,
		Aggregations: []model.Aggregation{
			{Field: "amount", Kind: model.AggSum},
			{Field: "amount", Kind: model.AggAvg},
		},
	}}}
	plans, err := tr.Translate(ir)
	require.NoError(t, err)

	body := plans[0].(map[string]any)
	assert.Equal(t, 0, body["size"])
	aggs := body["aggs"].(map[string]any)
	bucket0 := aggs["group_by_0"].(map[string]any)
	histogram := bucket0["date_histogram"].(map[string]any)
	assert.Equal(t, "created_at", histogram["field"])
	assert.Equal(t, "month", histogram["calendar_interval"])

	leaf := bucket0["aggs"].(map[string]any)
	assert.Contains(t, leaf, "sum_amount")
	assert.Contains(t, leaf, "avg_amount")
	documents := leaf["documents"].(map[string]any)
	topHits := documents["top_hits"].(map[string]any)
	assert.Equal(t, defaultTopHitsSize, topHits["size"])
}

func TestTranslate_CustomTopHitsSize(t *testing.T) {
	tr := NewTranslator(demoFieldMap(), defaultBucketSize, 7)
	ir := model.FilterIR{Slices: []model.Slice{{
		GroupBy: []string{"region"},
		Aggregations: []model.Aggregation{
			{Field: "amount", Kind: model.AggCount},
		},
	}}}
	plans, err := tr.Translate(ir)
	require.NoError(t, err)

	body := plans[0].(map[string]any)
	aggs := body["aggs"].(map[string]any)
	bucket := aggs["group_by_0"].(map[string]any)
	leaf := bucket["aggs"].(map[string]any)
	documents := leaf["documents"].(map[string]any)
	topHits := documents["top_hits"].(map[string]any)
	assert.Equal(t, 7, topHits["size"])
}

func TestTranslate_MultiLevelTermsGrouping(t *testing.T) {
	tr := NewTranslator(demoFieldMap(), defaultBucketSize, defaultTopHitsSize)
	ir := model.FilterIR{Slices: []model.Slice{{
		GroupBy: []string{"region", "card_type"},
		Aggregations: []model.Aggregation{
			{Field: "amount", Kind: model.AggCount},
		},
	}}}
	plans, err := tr.Translate(ir)
	require.NoError(t, err)

	body := plans[0].(map[string]any)
	aggs := body["aggs"].(map[string]any)
	outer := aggs["group_by_0"].(map[string]any)
	terms := outer["terms"].(map[string]any)
	assert.Equal(t, "region.keyword", terms["field"])
	assert.Equal(t, defaultBucketSize, terms["size"])

	inner := outer["aggs"].(map[string]any)["group_by_1"].(map[string]any)
	innerTerms := inner["terms"].(map[string]any)
	assert.Equal(t, "card_type.keyword", innerTerms["field"])
	assert.Equal(t, defaultBucketSize, innerTerms["size"])

	leaf := inner["aggs"].(map[string]any)
	assert.Contains(t, leaf, "count_amount")
}

func TestTranslate_GroupByLimitOverridesBucketSize(t *testing.T) {
	tr := NewTranslator(demoFieldMap(), defaultBucketSize, defaultTopHitsSize)
	limit := 5
	ir := model.FilterIR{Slices: []model.Slice{{
		GroupBy: []string{"region", "card_type"},
		Limit:   &limit,
		Aggregations: []model.Aggregation{
			{Field: "amount", Kind: model.AggCount},
		},
	}}}
	plans, err := tr.Translate(ir)
	require.NoError(t, err)

	body := plans[0].(map[string]any)
	aggs := body["aggs"].(map[string]any)
	outer := aggs["group_by_0"].(map[string]any)
	terms := outer["terms"].(map[string]any)
	assert.Equal(t, limit, terms["size"])

	inner := outer["aggs"].(map[string]any)["group_by_1"].(map[string]any)
	innerTerms := inner["terms"].(map[string]any)
	assert.Equal(t, limit, innerTerms["size"])
}

func TestTranslate_HavingClause(t *testing.T) {
	tr := NewTranslator(demoFieldMap(), defaultBucketSize, defaultTopHitsSize)
	op := model.HavingGT
	ir := model.FilterIR{Slices: []model.Slice{{
		GroupBy: []string{"region"},
		Aggregations: []model.Aggregation{
			{Field: "amount", Kind: model.AggSum, HavingOperator: &op, HavingValue: float64(1000)},
		},
	}}}
	plans, err := tr.Translate(ir)
	require.NoError(t, err)

	body := plans[0].(map[string]any)
	aggs := body["aggs"].(map[string]any)
	bucket := aggs["group_by_0"].(map[string]any)
	leaf := bucket["aggs"].(map[string]any)
	having := leaf["having_filter"].(map[string]any)
	selector := having["bucket_selector"].(map[string]any)
	assert.Equal(t, "params.var_0 > 1000", selector["script"])
}

func TestTranslate_ComparisonSlicesPreserveOrder(t *testing.T) {
	tr := NewTranslator(demoFieldMap(), defaultBucketSize, defaultTopHitsSize)
	ir := model.FilterIR{Slices: []model.Slice{
		{Conditions: []model.Condition{{Field: "region", Operator: model.OpIs, Value: "EU"}}},
		{Conditions: []model.Condition{{Field: "region", Operator: model.OpIs, Value: "US"}}},
	}}
	plans, err := tr.Translate(ir)
	require.NoError(t, err)
	require.Len(t, plans, 2)

	first := plans[0].(map[string]any)["query"].(map[string]any)["bool"].(map[string]any)["must"].([]map[string]any)[0]["term"].(map[string]any)
	second := plans[1].(map[string]any)["query"].(map[string]any)["bool"].(map[string]any)["must"].([]map[string]any)[0]["term"].(map[string]any)
	assert.Equal(t, "EU", first["region.keyword"])
	assert.Equal(t, "US", second["region.keyword"])
}
