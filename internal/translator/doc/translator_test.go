package doc

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

func TestTranslate_KeywordEqualityUsesNativeEq(t *testing.T) {
	tr := NewTranslator(demoFieldMap())
	ir := model.FilterIR{Slices: []model.Slice{{
		Conditions: []model.Condition{{Field: "card_type", Operator: model.OpIs, Value: "GOLD"}},
	}}}
	plans, err := tr.Translate(ir)
	require.NoError(t, err)

	pipeline := plans[0].([]map[string]any)
	require.Len(t, pipeline, 1)
	match := pipeline[0]["$match"].(map[string]any)
	cardType := match["card_type"].(map[string]any)
	assert.Equal(t, "GOLD", cardType["$eq"])
}

func TestTranslate_MonthlySumWithTwoMetrics(t *testing.T) {
	tr := NewTranslator(demoFieldMap())
	interval := model.IntervalMonth
	ir := model.FilterIR{Slices: []model.Slice{{
		GroupBy:  []string{"created_at"},
		Interval: &interval,
		Aggregations: []model.Aggregation{
			{Field: "amount", Kind: model.AggSum},
			{Field: "amount", Kind: model.AggAvg},
		},
	}}}
	plans, err := tr.Translate(ir)
	require.NoError(t, err)

	pipeline := plans[0].([]map[string]any)
	group := pipeline[0]["$group"].(map[string]any)
	id := group["_id"].(map[string]any)
	dateExpr := id["created_at"].(map[string]any)["$dateToString"].(map[string]any)
	assert.Equal(t, "%Y-%m", dateExpr["format"])
	assert.Contains(t, group, "sum_amount")
	assert.Contains(t, group, "avg_amount")
	assert.Contains(t, group, "documents")
}

func TestTranslate_HavingClause(t *testing.T) {
	tr := NewTranslator(demoFieldMap())
	op := model.HavingGT
	ir := model.FilterIR{Slices: []model.Slice{{
		GroupBy: []string{"region"},
		Aggregations: []model.Aggregation{
			{Field: "amount", Kind: model.AggSum, HavingOperator: &op, HavingValue: float64(1000)},
		},
	}}}
	plans, err := tr.Translate(ir)
	require.NoError(t, err)

	pipeline := plans[0].([]map[string]any)
	require.Len(t, pipeline, 2)
	having := pipeline[1]["$match"].(map[string]any)
	metric := having["sum_amount"].(map[string]any)
	assert.Equal(t, float64(1000), metric["$gt"])
}

func TestTranslate_ComparisonSlicesPreserveOrder(t *testing.T) {
	tr := NewTranslator(demoFieldMap())
	ir := model.FilterIR{Slices: []model.Slice{
		{Conditions: []model.Condition{{Field: "region", Operator: model.OpIs, Value: "EU"}}},
		{Conditions: []model.Condition{{Field: "region", Operator: model.OpIs, Value: "US"}}},
	}}
	plans, err := tr.Translate(ir)
	require.NoError(t, err)
	require.Len(t, plans, 2)

	first := plans[0].([]map[string]any)[0]["$match"].(map[string]any)["region"].(map[string]any)
	second := plans[1].([]map[string]any)[0]["$match"].(map[string]any)["region"].(map[string]any)
	assert.Equal(t, "EU", first["$eq"])
	assert.Equal(t, "US", second["$eq"])
}
