// Package typeregistry holds the compile-time mapping tables every other
// package in the query builder consults: backend field type to normalized
// type, interval to format string, per-type legal operators, and having
// operator to script comparator. Grounded on the Python source's schema/type_mappings.py, flattened
// into plain Go maps since there is no dynamic-type registration here.
package typeregistry

import "queryforge/internal/model"

// SearchTypeMap maps a search-engine (Elasticsearch-style) mapping "type"
// to its normalized tag. "nested" is handled specially by the search schema
// extractor (it becomes array+object), so it is intentionally absent here.
var SearchTypeMap = map[string]model.NormalizedType{
	"text":          model.TypeString,
	"keyword":       model.TypeString,
	"integer":       model.TypeNumber,
	"long":          model.TypeNumber,
	"short":         model.TypeNumber,
	"byte":          model.TypeNumber,
	"double":        model.TypeNumber,
	"float":         model.TypeNumber,
	"half_float":    model.TypeNumber,
	"scaled_float":  model.TypeNumber,
	"boolean":       model.TypeBoolean,
	"date":          model.TypeDate,
	"object":        model.TypeObject,
}

// IgnoredSearchFieldTypes are mapping field types skipped entirely by the
// search schema extractor (e.g. alias fields that merely redirect to
// another field and carry no type information of their own).
var IgnoredSearchFieldTypes = map[string]bool{
	"alias": true,
}

// IntervalFormat maps a grouping interval to the format string the search
// backend uses to render date-histogram bucket keys (spec §4.1).
var IntervalFormat = map[model.Interval]string{
	model.IntervalDay:   "yyyy-MM-dd",
	model.IntervalWeek:  "yyyy-'W'ww",
	model.IntervalMonth: "yyyy-MM",
	model.IntervalYear:  "yyyy",
}

// MongoDateFormat maps a grouping interval to the strftime-style format
// string used by the document-store's $dateToString stage.
var MongoDateFormat = map[model.Interval]string{
	model.IntervalDay:   "%Y-%m-%d",
	model.IntervalWeek:  "%Y-W%V",
	model.IntervalMonth: "%Y-%m",
	model.IntervalYear:  "%Y",
}

// LegalOperators is the per-normalized-type closed set of legal condition
// operators (spec §4.3).
var LegalOperators = map[model.NormalizedType]map[model.Operator]bool{
	model.TypeString: set(model.OpIs, model.OpDifferent, model.OpContains, model.OpIsIn, model.OpNotIn, model.OpExists),
	model.TypeNumber: set(model.OpLT, model.OpGT, model.OpIs, model.OpDifferent, model.OpBetween, model.OpIsIn, model.OpNotIn, model.OpExists),
	model.TypeDate:   set(model.OpLT, model.OpGT, model.OpIs, model.OpDifferent, model.OpBetween, model.OpExists),
	model.TypeBoolean: set(model.OpIs, model.OpDifferent, model.OpExists),
	model.TypeEnum:    set(model.OpIs, model.OpDifferent, model.OpIsIn, model.OpNotIn, model.OpExists),
	model.TypeArray:   set(model.OpExists),
	model.TypeObject:  set(model.OpExists),
}

func set(ops ...model.Operator) map[model.Operator]bool {
	m := make(map[model.Operator]bool, len(ops))
	for _, op := range ops {
		m[op] = true
	}
	return m
}

// AggregationRequiresNumber reports whether an aggregation kind may only
// run against a number-typed field ("count" is legal on any type).
func AggregationRequiresNumber(kind model.AggKind) bool {
	return kind != model.AggCount
}

// HavingComparator maps a having-clause operator to the search backend's
// Painless script comparator symbol.
var HavingComparator = map[model.HavingOperator]string{
	model.HavingGT:        ">",
	model.HavingLT:        "<",
	model.HavingIs:        "==",
	model.HavingDifferent: "!=",
	model.HavingGE:        ">=",
	model.HavingLE:        "<=",
}
