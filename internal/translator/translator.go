// Package translator lowers a validated FilterIR into a backend-native
// query plan. Each backend (search, doc) implements Translator; the shared
// naming helpers here keep bucket and metric names identical across both so
// that result post-processing and logging do not need to special-case the
// backend.
package translator

import (
	"strconv"
	"strings"

	"queryforge/internal/model"
)

// Plan is an opaque, backend-native query representation — a map[string]any
// DSL body for the search backend, or a []map[string]any pipeline for the
// document backend. It is never interpreted outside its owning backend
// package; the orchestrator only ever marshals it for the call record.
type Plan any

// Translator lowers every slice of a FilterIR into one Plan per slice, in
// slice order (spec §4.5 — translation never reorders or merges slices).
type Translator interface {
	Translate(ir model.FilterIR) ([]Plan, error)
}

// BucketName returns the deterministic group-by bucket name for the nth
// (zero-indexed) grouping field of a slice.
func BucketName(n int) string {
	return "group_by_" + strconv.Itoa(n)
}

// MetricName returns the deterministic aggregation output key for a metric,
// dots replaced with underscores so the name is safe as a bucket-selector
// script parameter and as a flat result-document key.
func MetricName(kind model.AggKind, field string) string {
	return string(kind) + "_" + strings.ReplaceAll(field, ".", "_")
}

// HavingParam returns the bucket-selector script variable name for the nth
// having clause, matching the Python source's "var_N" convention.
func HavingParam(n int) string {
	return "var_" + strconv.Itoa(n)
}
