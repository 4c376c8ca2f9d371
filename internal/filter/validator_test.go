package filter

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"queryforge/internal/model"
)

func cardTypeFieldMap() *model.FieldMap {
	fm := model.NewFieldMap()
	fm.Set("card_type", model.FieldSpec{Type: model.TypeEnum, Values: []string{"GOLD", "SILVER", "BRONZE"}})
	fm.Set("amount", model.FieldSpec{Type: model.TypeNumber})
	fm.Set("created_at", model.FieldSpec{Type: model.TypeDate})
	fm.Set("region", model.FieldSpec{Type: model.TypeString})
	return fm
}

func TestValidate_KeywordEquality(t *testing.T) {
	fm := cardTypeFieldMap()
	v := NewValidator(fm)

	raw := []byte(`{"filters":[{"conditions":[{"field":"card_type","operator":"is","value":"GOLD"}]}]}`)
	ir, warnings, err := v.Validate(raw)
	require.NoError(t, err)
	require.Len(t, ir.Slices, 1)
	assert.Equal(t, "card_type", ir.Slices[0].Conditions[0].Field)
	assert.Empty(t, warnings)
}

func TestValidate_UnknownField(t *testing.T) {
	v := NewValidator(cardTypeFieldMap())
	raw := []byte(`{"filters":[{"conditions":[{"field":"nonexistent","operator":"is","value":"x"}]}]}`)
	_, _, err := v.Validate(raw)
	require.Error(t, err)
	var verr *model.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, model.UnknownField, verr.Kind)
}

func TestValidate_IllegalOperator(t *testing.T) {
	v := NewValidator(cardTypeFieldMap())
	raw := []byte(`{"filters":[{"conditions":[{"field":"amount","operator":"contains","value":"5"}]}]}`)
	_, _, err := v.Validate(raw)
	require.Error(t, err)
	var verr *model.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, model.IllegalOperator, verr.Kind)
}

func TestValidate_DateBetween(t *testing.T) {
	v := NewValidator(cardTypeFieldMap())
	raw := []byte(`{"filters":[{"conditions":[{"field":"created_at","operator":"between","value":["2024-01-01","2024-01-31"]}]}]}`)
	ir, _, err := v.Validate(raw)
	require.NoError(t, err)
	assert.Equal(t, model.OpBetween, ir.Slices[0].Conditions[0].Operator)
}

func TestValidate_BetweenOutOfOrderFails(t *testing.T) {
	v := NewValidator(cardTypeFieldMap())
	raw := []byte(`{"filters":[{"conditions":[{"field":"amount","operator":"between","value":[100,10]}]}]}`)
	_, _, err := v.Validate(raw)
	require.Error(t, err)
	var verr *model.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, model.BadValueShape, verr.Kind)
}

func TestValidate_IsinEnumRejectsUnknownValue(t *testing.T) {
	v := NewValidator(cardTypeFieldMap())
	raw := []byte(`{"filters":[{"conditions":[{"field":"card_type","operator":"isin","value":["GOLD","PLATINUM"]}]}]}`)
	_, _, err := v.Validate(raw)
	require.Error(t, err)
	var verr *model.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, model.BadEnumValue, verr.Kind)
}

func TestValidate_NullFieldSentinelDropped(t *testing.T) {
	v := NewValidator(cardTypeFieldMap())
	raw := []byte(`{"filters":[{"conditions":[{"field":"null","operator":"is","value":"x"},{"field":"region","operator":"is","value":"EU"}]}]}`)
	ir, warnings, err := v.Validate(raw)
	require.NoError(t, err)
	require.Len(t, ir.Slices[0].Conditions, 1)
	assert.Equal(t, "region", ir.Slices[0].Conditions[0].Field)
	assert.Empty(t, warnings)
}

func TestValidate_AutoCorrectionClearsAggregationsWithoutGroupBy(t *testing.T) {
	v := NewValidator(cardTypeFieldMap())
	raw := []byte(`{"filters":[{"conditions":[],"aggregations":[{"field":"amount","kind":"sum"}]}]}`)
	ir, warnings, err := v.Validate(raw)
	require.NoError(t, err)
	assert.Nil(t, ir.Slices[0].Aggregations)
	require.Len(t, warnings, 1)
	assert.Contains(t, warnings[0], "cleared aggregations")
}

func TestValidate_AutoCorrectionClearsIntervalWithoutDateGroupBy(t *testing.T) {
	v := NewValidator(cardTypeFieldMap())
	raw := []byte(`{"filters":[{"conditions":[],"group_by":["region"],"interval":"month","aggregations":[{"field":"amount","kind":"sum"}]}]}`)
	ir, warnings, err := v.Validate(raw)
	require.NoError(t, err)
	assert.Nil(t, ir.Slices[0].Interval)
	require.Len(t, ir.Slices[0].Aggregations, 1)
	require.Len(t, warnings, 1)
	assert.Contains(t, warnings[0], "cleared interval")
}

func TestValidate_MonthlySumWithTwoMetrics(t *testing.T) {
	v := NewValidator(cardTypeFieldMap())
	raw := []byte(`{"filters":[{"conditions":[],"group_by":["created_at"],"interval":"month","aggregations":[{"field":"amount","kind":"sum"},{"field":"amount","kind":"avg"}]}]}`)
	ir, warnings, err := v.Validate(raw)
	require.NoError(t, err)
	require.NotNil(t, ir.Slices[0].Interval)
	assert.Equal(t, model.IntervalMonth, *ir.Slices[0].Interval)
	require.Len(t, ir.Slices[0].Aggregations, 2)
	assert.Empty(t, warnings)
}

func TestValidate_HavingClauseRequiresBothOperatorAndValue(t *testing.T) {
	v := NewValidator(cardTypeFieldMap())
	raw := []byte(`{"filters":[{"conditions":[],"group_by":["region"],"aggregations":[{"field":"amount","kind":"sum","having_operator":">"}]}]}`)
	_, _, err := v.Validate(raw)
	require.Error(t, err)
	var verr *model.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, model.BadHaving, verr.Kind)
}

func TestValidate_GroupByDeduplicated(t *testing.T) {
	v := NewValidator(cardTypeFieldMap())
	raw := []byte(`{"filters":[{"conditions":[],"group_by":["region","region"]}]}`)
	ir, warnings, err := v.Validate(raw)
	require.NoError(t, err)
	assert.Equal(t, []string{"region"}, ir.Slices[0].GroupBy)
	require.Len(t, warnings, 1)
	assert.Contains(t, warnings[0], "duplicate group_by")
}

func TestValidate_UnknownSortFieldDropped(t *testing.T) {
	v := NewValidator(cardTypeFieldMap())
	raw := []byte(`{"filters":[{"conditions":[],"sort":[{"field":"region","order":"asc"},{"field":"nonexistent","order":"desc"}]}]}`)
	ir, warnings, err := v.Validate(raw)
	require.NoError(t, err)
	require.Len(t, ir.Slices[0].Sort, 1)
	assert.Equal(t, "region", ir.Slices[0].Sort[0].Field)
	require.Len(t, warnings, 1)
	assert.Contains(t, warnings[0], "dropped sort keys")
}

func TestValidate_ComparisonSlicesPreserveOrder(t *testing.T) {
	v := NewValidator(cardTypeFieldMap())
	raw := []byte(`{"filters":[
		{"conditions":[{"field":"region","operator":"is","value":"EU"}]},
		{"conditions":[{"field":"region","operator":"is","value":"US"}]}
	]}`)
	ir, _, err := v.Validate(raw)
	require.NoError(t, err)
	require.Len(t, ir.Slices, 2)
	assert.Equal(t, "EU", ir.Slices[0].Conditions[0].Value)
	assert.Equal(t, "US", ir.Slices[1].Conditions[0].Value)
}

func TestValidate_RoundTripIsIdempotent(t *testing.T) {
	v := NewValidator(cardTypeFieldMap())
	raw := []byte(`{"filters":[{"conditions":[{"field":"card_type","operator":"is","value":"GOLD"}]}]}`)
	first, _, err := v.Validate(raw)
	require.NoError(t, err)

	second, warnings, err := v.ValidateIR(first)
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Empty(t, warnings)
}

func TestValidate_EmptyFiltersRejected(t *testing.T) {
	v := NewValidator(cardTypeFieldMap())
	_, _, err := v.Validate([]byte(`{"filters":[]}`))
	require.Error(t, err)
}
