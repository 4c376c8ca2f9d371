package model

// Operator is the closed set of condition operators.
type Operator string

const (
	OpLT        Operator = "<"
	OpGT        Operator = ">"
	OpIs        Operator = "is"
	OpDifferent Operator = "different"
	OpIsIn      Operator = "isin"
	OpNotIn     Operator = "notin"
	OpBetween   Operator = "between"
	OpContains  Operator = "contains"
	OpExists    Operator = "exists"
)

// HavingOperator is the closed set of post-aggregation comparators.
type HavingOperator string

const (
	HavingLT        HavingOperator = "<"
	HavingGT        HavingOperator = ">"
	HavingIs        HavingOperator = "is"
	HavingDifferent HavingOperator = "different"
	HavingLE        HavingOperator = "<="
	HavingGE        HavingOperator = ">="
)

// AggKind is the closed set of aggregation kinds.
type AggKind string

const (
	AggSum   AggKind = "sum"
	AggAvg   AggKind = "avg"
	AggCount AggKind = "count"
	AggMin   AggKind = "min"
	AggMax   AggKind = "max"
)

// SortOrder is the closed set of sort directions.
type SortOrder string

const (
	SortAsc  SortOrder = "asc"
	SortDesc SortOrder = "desc"
)

// Interval is the closed set of date-histogram bucketing intervals.
type Interval string

const (
	IntervalDay   Interval = "day"
	IntervalWeek  Interval = "week"
	IntervalMonth Interval = "month"
	IntervalYear  Interval = "year"
)

// Condition is a single AND-joined filter predicate within a Slice.
type Condition struct {
	Field    string      `json:"field"`
	Operator Operator    `json:"operator"`
	Value    interface{} `json:"value"`
}

// SortKey is one key of a multi-key sort.
type SortKey struct {
	Field string    `json:"field"`
	Order SortOrder `json:"order"`
}

// Aggregation is a metric computed per group, with an optional having clause
// applied after the metric is computed.
type Aggregation struct {
	Field          string          `json:"field"`
	Kind           AggKind         `json:"kind"`
	HavingOperator *HavingOperator `json:"having_operator,omitempty"`
	HavingValue    interface{}     `json:"having_value,omitempty"`
}

// Slice is one unit of query within a FilterIR. Conditions within a slice
// are AND-joined; slices are independent and translated/executed in order,
// letting a caller request side-by-side comparisons.
type Slice struct {
	Conditions   []Condition   `json:"conditions"`
	Sort         []SortKey     `json:"sort,omitempty"`
	Limit        *int          `json:"limit,omitempty"`
	GroupBy      []string      `json:"group_by,omitempty"`
	Interval     *Interval     `json:"interval,omitempty"`
	Aggregations []Aggregation `json:"aggregations,omitempty"`
}

// FilterIR is the canonical form of a filter document after validation.
type FilterIR struct {
	Slices []Slice `json:"filters"`
}
