package filterschema

import "queryforge/internal/model"

// FieldDescriptor is one field's entry in a PromptDescriptor: its
// normalized type, the operators legal against it, and — for enum fields —
// the closed set of allowed literal values.
type FieldDescriptor struct {
	Path      string            `json:"path"`
	Type      model.NormalizedType `json:"type"`
	Operators []model.Operator  `json:"operators"`
	Values    []string          `json:"values,omitempty"`
}

// PromptDescriptor is the static, serializable rendering of a FieldMap
// handed to the external LLM client, the statically-typed counterpart of
// the Python source's dynamically synthesized Pydantic filter model.
type PromptDescriptor struct {
	Fields           []FieldDescriptor `json:"fields"`
	Operators        []model.Operator  `json:"operators"`
	HavingOperators  []model.HavingOperator `json:"having_operators"`
	AggregationKinds []model.AggKind   `json:"aggregation_kinds"`
	Intervals        []model.Interval  `json:"intervals"`
}
