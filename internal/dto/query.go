// Package dto holds the REST request/response shapes for the query-builder
// surface, grounded on the teacher's internal/dto/nlv_request.go and
// nlv_response.go shapes.
package dto

import "queryforge/internal/model"

// QueryRequest is the POST body for the natural-language query endpoint
// (spec §6's REST collaborator contract).
type QueryRequest struct {
	UserInput      string   `json:"user_input" binding:"required"`
	Execute        bool     `json:"execute"`
	CategoryFields []string `json:"category_fields,omitempty"`
	FieldsToIgnore []string `json:"fields_to_ignore,omitempty"`
}

// RawQueryRequest is the POST body for the raw-query escape hatch.
type RawQueryRequest struct {
	Plan  map[string]any `json:"plan" binding:"required"`
	Limit int            `json:"limit,omitempty"`
}

// FilterValidationRequest lets a caller validate/canonicalize a filter
// document directly without going through the LLM, against either the
// live backend's schema or a caller-supplied one (model.FieldMap).
type FilterValidationRequest struct {
	Filter model.FilterIR  `json:"filter" binding:"required"`
	Schema *model.FieldMap `json:"schema,omitempty"`
}
