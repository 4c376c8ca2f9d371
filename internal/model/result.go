package model

// QueryResult is the uniform result envelope returned by every backend,
// mirroring the Python source's QueryResult pydantic model.
type QueryResult struct {
	TotalHits    int                    `json:"total_hits"`
	Documents    []map[string]any       `json:"documents"`
	Aggregations map[string]any         `json:"aggregations,omitempty"`
	Success      bool                   `json:"success"`
	Error        string                 `json:"error,omitempty"`
	Metadata     map[string]any         `json:"metadata,omitempty"`
}

// ErrorResult builds a failed QueryResult carrying err's message, used by
// executors so a backend failure never aborts sibling slices (spec §7).
func ErrorResult(err error) QueryResult {
	return QueryResult{
		Documents: []map[string]any{},
		Success:   false,
		Error:     err.Error(),
	}
}
