// Package filterschema derives, from a FieldMap, both the closed set of
// rules a FilterValidator enforces and a PromptDescriptor describing those
// same rules to the external LLM client. Grounded on the Python source's
// schema/model_builder.go and query/filter_builder.py, which build the
// equivalent structures dynamically at request time; here the structures
// are static data computed once per FieldMap instead of a synthesized type.
package filterschema

import (
	"sort"

	"queryforge/internal/model"
	"queryforge/internal/typeregistry"
)

// Builder derives validation rules and a PromptDescriptor from a FieldMap.
type Builder struct {
	FieldMap *model.FieldMap
}

// NewBuilder wraps a FieldMap already produced by a SchemaExtractor.
func NewBuilder(fm *model.FieldMap) *Builder {
	return &Builder{FieldMap: fm}
}

// LegalOperators returns the closed operator set for one field, or nil if
// the field is unknown.
func (b *Builder) LegalOperators(field string) map[model.Operator]bool {
	spec, ok := b.FieldMap.Get(field)
	if !ok {
		return nil
	}
	return typeregistry.LegalOperators[spec.Type]
}

// Describe renders the PromptDescriptor consumed by the external prompt
// generator. Field order follows FieldMap.Paths so the rendering is
// deterministic across calls against the same FieldMap.
func (b *Builder) Describe() PromptDescriptor {
	fields := make([]FieldDescriptor, 0, b.FieldMap.Len())
	for _, path := range b.FieldMap.Paths {
		spec, _ := b.FieldMap.Get(path)
		legal := typeregistry.LegalOperators[spec.Type]
		ops := make([]model.Operator, 0, len(legal))
		for op := range legal {
			ops = append(ops, op)
		}
		sort.Slice(ops, func(i, j int) bool { return ops[i] < ops[j] })

		fields = append(fields, FieldDescriptor{
			Path:      path,
			Type:      spec.Type,
			Operators: ops,
			Values:    spec.Values,
		})
	}

	return PromptDescriptor{
		Fields:           fields,
		Operators:        []model.Operator{model.OpLT, model.OpGT, model.OpIs, model.OpDifferent, model.OpIsIn, model.OpNotIn, model.OpBetween, model.OpContains, model.OpExists},
		HavingOperators:  []model.HavingOperator{model.HavingLT, model.HavingGT, model.HavingIs, model.HavingDifferent, model.HavingLE, model.HavingGE},
		AggregationKinds: []model.AggKind{model.AggSum, model.AggAvg, model.AggCount, model.AggMin, model.AggMax},
		Intervals:        []model.Interval{model.IntervalDay, model.IntervalWeek, model.IntervalMonth, model.IntervalYear},
	}
}
