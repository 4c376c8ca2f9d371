// Package filter validates and canonicalizes a raw, LLM-produced filter
// document into a model.FilterIR, grounded on the Python source's
// query/filter_builder.go field_validator/model_validator chain —
// reimplemented here as an explicit, ordered sequence of checks rather than
// framework-driven validators, since there is no dynamically-built type to
// attach them to.
package filter

import (
	"encoding/json"
	"fmt"

	"github.com/araddon/dateparse"
	"github.com/rs/zerolog/log"

	"queryforge/internal/model"
	"queryforge/internal/typeregistry"
)

// nullFieldSentinel is the defensive placeholder some upstream LLM callers
// emit instead of omitting a condition outright (spec §4.4 step 2, final
// bullet).
const nullFieldSentinel = "null"

// Validator checks and canonicalizes a raw filter document against a
// FieldMap. It is the source of truth for what an IR may contain; the
// PromptDescriptor built alongside it is only a rendering of the same
// rules for the LLM's benefit.
type Validator struct {
	fieldMap *model.FieldMap
}

// NewValidator binds a Validator to the FieldMap produced by a
// SchemaExtractor.
func NewValidator(fm *model.FieldMap) *Validator {
	return &Validator{fieldMap: fm}
}

// Validate parses and canonicalizes raw JSON bytes into a FilterIR,
// applying every check and auto-correction in spec order. The returned IR
// is immutable from the caller's perspective — no aliasing into raw. The
// returned warnings describe non-fatal auto-corrections applied along the
// way and are never themselves errors.
func (v *Validator) Validate(raw []byte) (*model.FilterIR, []string, error) {
	var ir model.FilterIR
	if err := json.Unmarshal(raw, &ir); err != nil {
		return nil, nil, &model.ValidationError{Kind: model.BadValueShape, Path: "$", Message: "top level is not a valid filter document: " + err.Error()}
	}
	return v.ValidateIR(&ir)
}

// ValidateIR runs the same checks as Validate against an already-decoded
// FilterIR, used when the caller controls decoding (e.g. a REST handler
// binding JSON directly into model.FilterIR via gin).
func (v *Validator) ValidateIR(ir *model.FilterIR) (*model.FilterIR, []string, error) {
	if len(ir.Slices) == 0 {
		return nil, nil, &model.ValidationError{Kind: model.BadValueShape, Path: "$.filters", Message: "must contain at least one slice"}
	}

	var warnings []string
	for i := range ir.Slices {
		sliceWarnings, err := v.validateSlice(&ir.Slices[i], i)
		if err != nil {
			return nil, nil, err
		}
		warnings = append(warnings, sliceWarnings...)
	}
	return ir, warnings, nil
}

func (v *Validator) validateSlice(s *model.Slice, sliceIdx int) ([]string, error) {
	path := fmt.Sprintf("$.filters[%d]", sliceIdx)

	kept := make([]model.Condition, 0, len(s.Conditions))
	for condIdx, cond := range s.Conditions {
		condPath := fmt.Sprintf("%s.conditions[%d]", path, condIdx)
		if cond.Field == nullFieldSentinel {
			continue
		}
		if err := v.validateCondition(cond, condPath); err != nil {
			return nil, err
		}
		kept = append(kept, cond)
	}
	s.Conditions = kept

	if err := v.validateAggregations(s, path); err != nil {
		return nil, err
	}

	// Auto-corrections (spec §4.4 step 3) — never raise, only warn.
	var warnings []string
	warn := func(format string, args ...any) {
		msg := fmt.Sprintf("%s: %s", path, fmt.Sprintf(format, args...))
		warnings = append(warnings, msg)
		log.Warn().Msg(msg)
	}

	if len(s.Aggregations) > 0 && len(s.GroupBy) == 0 {
		s.Aggregations = nil
		warn("cleared aggregations because group_by is empty")
	}
	if s.Interval != nil && !groupByHasDateField(s.GroupBy, v.fieldMap) {
		s.Interval = nil
		warn("cleared interval because group_by has no date field")
	}
	if deduped := dedupe(s.GroupBy); len(deduped) != len(s.GroupBy) {
		s.GroupBy = deduped
		warn("removed duplicate group_by fields")
	}
	if kept := v.dropUnknownSortFields(s.Sort); len(kept) != len(s.Sort) {
		s.Sort = kept
		warn("dropped sort keys on unknown fields")
	}

	return warnings, nil
}

func (v *Validator) validateCondition(cond model.Condition, path string) error {
	spec, ok := v.fieldMap.Get(cond.Field)
	if !ok {
		return &model.ValidationError{Kind: model.UnknownField, Path: path + ".field", Message: fmt.Sprintf("unknown field %q", cond.Field)}
	}

	legal := typeregistry.LegalOperators[spec.Type]
	if !legal[cond.Operator] {
		return &model.ValidationError{Kind: model.IllegalOperator, Path: path + ".operator", Message: fmt.Sprintf("operator %q is not legal for type %q", cond.Operator, spec.Type)}
	}

	return v.validateValueShape(cond, spec, path+".value")
}

func (v *Validator) validateValueShape(cond model.Condition, spec model.FieldSpec, path string) error {
	switch cond.Operator {
	case model.OpBetween:
		pair, ok := asPair(cond.Value)
		if !ok {
			return &model.ValidationError{Kind: model.BadValueShape, Path: path, Message: "between requires a 2-element list [lo, hi]"}
		}
		lo, hi := pair[0], pair[1]
		if !sameScalarShape(lo, hi) {
			return &model.ValidationError{Kind: model.BadValueShape, Path: path, Message: "between bounds must be homogeneous scalars"}
		}
		if !lessOrEqual(lo, hi) {
			return &model.ValidationError{Kind: model.BadValueShape, Path: path, Message: "between requires lo <= hi"}
		}
		if err := v.validateScalarAgainstType(lo, spec, path); err != nil {
			return err
		}
		return v.validateScalarAgainstType(hi, spec, path)

	case model.OpIsIn, model.OpNotIn:
		list, ok := asList(cond.Value)
		if !ok || len(list) == 0 {
			return &model.ValidationError{Kind: model.BadValueShape, Path: path, Message: "isin/notin requires a non-empty list"}
		}
		for _, item := range list {
			if spec.Type == model.TypeEnum && !containsString(spec.Values, fmt.Sprintf("%v", item)) {
				return &model.ValidationError{Kind: model.BadEnumValue, Path: path, Message: fmt.Sprintf("%v is not one of %v", item, spec.Values)}
			}
			if err := v.validateScalarAgainstType(item, spec, path); err != nil {
				return err
			}
		}
		return nil

	case model.OpContains:
		if _, ok := cond.Value.(string); !ok {
			return &model.ValidationError{Kind: model.BadValueShape, Path: path, Message: "contains requires a scalar string"}
		}
		if spec.Type != model.TypeString {
			return &model.ValidationError{Kind: model.BadValueShape, Path: path, Message: "contains is only legal on string fields"}
		}
		return nil

	case model.OpExists:
		if _, ok := cond.Value.(bool); !ok {
			return &model.ValidationError{Kind: model.BadValueShape, Path: path, Message: "exists requires a boolean value"}
		}
		return nil

	case model.OpLT, model.OpGT, model.OpIs, model.OpDifferent:
		if isCompound(cond.Value) {
			return &model.ValidationError{Kind: model.BadValueShape, Path: path, Message: "expected a single scalar value"}
		}
		if spec.Type == model.TypeEnum && cond.Operator != model.OpLT && cond.Operator != model.OpGT {
			if !containsString(spec.Values, fmt.Sprintf("%v", cond.Value)) {
				return &model.ValidationError{Kind: model.BadEnumValue, Path: path, Message: fmt.Sprintf("%v is not one of %v", cond.Value, spec.Values)}
			}
		}
		return v.validateScalarAgainstType(cond.Value, spec, path)

	default:
		return &model.ValidationError{Kind: model.IllegalOperator, Path: path, Message: fmt.Sprintf("unrecognized operator %q", cond.Operator)}
	}
}

func (v *Validator) validateScalarAgainstType(val any, spec model.FieldSpec, path string) error {
	switch spec.Type {
	case model.TypeNumber:
		if !isNumber(val) {
			return &model.ValidationError{Kind: model.BadValueShape, Path: path, Message: fmt.Sprintf("expected a number, got %v", val)}
		}
	case model.TypeBoolean:
		if _, ok := val.(bool); !ok {
			return &model.ValidationError{Kind: model.BadValueShape, Path: path, Message: fmt.Sprintf("expected a boolean, got %v", val)}
		}
	case model.TypeDate:
		s, ok := val.(string)
		if !ok || !isISODate(s) {
			return &model.ValidationError{Kind: model.BadValueShape, Path: path, Message: fmt.Sprintf("expected an ISO-8601 date string, got %v", val)}
		}
	case model.TypeString, model.TypeEnum:
		if _, ok := val.(string); !ok {
			return &model.ValidationError{Kind: model.BadValueShape, Path: path, Message: fmt.Sprintf("expected a string, got %v", val)}
		}
	}
	return nil
}

func (v *Validator) validateAggregations(s *model.Slice, path string) error {
	for i, agg := range s.Aggregations {
		aggPath := fmt.Sprintf("%s.aggregations[%d]", path, i)
		switch agg.Kind {
		case model.AggSum, model.AggAvg, model.AggCount, model.AggMin, model.AggMax:
		default:
			return &model.ValidationError{Kind: model.BadValueShape, Path: aggPath + ".kind", Message: fmt.Sprintf("unrecognized aggregation kind %q", agg.Kind)}
		}
		if typeregistry.AggregationRequiresNumber(agg.Kind) {
			spec, ok := v.fieldMap.Get(agg.Field)
			if !ok {
				return &model.ValidationError{Kind: model.UnknownField, Path: aggPath + ".field", Message: fmt.Sprintf("unknown field %q", agg.Field)}
			}
			if spec.Type != model.TypeNumber {
				return &model.ValidationError{Kind: model.BadValueShape, Path: aggPath + ".field", Message: fmt.Sprintf("%s aggregation requires a number field, got %q", agg.Kind, spec.Type)}
			}
		}

		hasOp := agg.HavingOperator != nil
		hasVal := agg.HavingValue != nil
		if hasOp != hasVal {
			return &model.ValidationError{Kind: model.BadHaving, Path: aggPath, Message: "having_operator and having_value must both be present or both absent"}
		}
		if hasOp {
			switch *agg.HavingOperator {
			case model.HavingLT, model.HavingGT, model.HavingIs, model.HavingDifferent, model.HavingLE, model.HavingGE:
			default:
				return &model.ValidationError{Kind: model.BadHaving, Path: aggPath + ".having_operator", Message: fmt.Sprintf("unrecognized having operator %q", *agg.HavingOperator)}
			}
			if isCompound(agg.HavingValue) {
				return &model.ValidationError{Kind: model.BadHaving, Path: aggPath + ".having_value", Message: "having_value must be a scalar"}
			}
		}
	}
	return nil
}

func (v *Validator) dropUnknownSortFields(sort []model.SortKey) []model.SortKey {
	kept := make([]model.SortKey, 0, len(sort))
	for _, key := range sort {
		if _, ok := v.fieldMap.Get(key.Field); ok {
			kept = append(kept, key)
		}
	}
	return kept
}

func groupByHasDateField(groupBy []string, fm *model.FieldMap) bool {
	for _, field := range groupBy {
		if spec, ok := fm.Get(field); ok && spec.Type == model.TypeDate {
			return true
		}
	}
	return false
}

func dedupe(items []string) []string {
	seen := make(map[string]bool, len(items))
	out := make([]string, 0, len(items))
	for _, item := range items {
		if !seen[item] {
			seen[item] = true
			out = append(out, item)
		}
	}
	return out
}

func isISODate(s string) bool {
	_, err := dateparse.ParseStrict(s)
	return err == nil
}

func isNumber(v any) bool {
	switch v.(type) {
	case float64, float32, int, int32, int64:
		return true
	default:
		return false
	}
}

func isCompound(v any) bool {
	switch v.(type) {
	case []any, map[string]any:
		return true
	default:
		return false
	}
}

func asList(v any) ([]any, bool) {
	list, ok := v.([]any)
	return list, ok
}

func asPair(v any) ([2]any, bool) {
	list, ok := asList(v)
	if !ok || len(list) != 2 {
		return [2]any{}, false
	}
	return [2]any{list[0], list[1]}, true
}

func sameScalarShape(a, b any) bool {
	_, aNum := a.(float64)
	_, bNum := b.(float64)
	if aNum && bNum {
		return true
	}
	as, aStr := a.(string)
	bs, bStr := b.(string)
	if aStr && bStr {
		return isISODate(as) == isISODate(bs)
	}
	return false
}

func lessOrEqual(lo, hi any) bool {
	if loN, ok := lo.(float64); ok {
		if hiN, ok := hi.(float64); ok {
			return loN <= hiN
		}
	}
	if loS, ok := lo.(string); ok {
		if hiS, ok := hi.(string); ok {
			loT, errLo := dateparse.ParseStrict(loS)
			hiT, errHi := dateparse.ParseStrict(hiS)
			if errLo == nil && errHi == nil {
				return !loT.After(hiT)
			}
			return loS <= hiS
		}
	}
	return false
}

func containsString(list []string, v string) bool {
	for _, item := range list {
		if item == v {
			return true
		}
	}
	return false
}
