// Package model holds the data structures shared across the query builder:
// the normalized schema (FieldMap), the canonical filter IR (FilterIR), and
// the uniform result envelope returned by every backend.
package model

// NormalizedType is one of the closed set of type tags every backend-specific
// schema is flattened into.
type NormalizedType string

const (
	TypeString  NormalizedType = "string"
	TypeNumber  NormalizedType = "number"
	TypeDate    NormalizedType = "date"
	TypeBoolean NormalizedType = "boolean"
	TypeEnum    NormalizedType = "enum"
	TypeArray   NormalizedType = "array"
	TypeObject  NormalizedType = "object"
)

// FieldSpec describes one queryable field at a dotted path.
type FieldSpec struct {
	Type              NormalizedType `json:"type"`
	Values            []string       `json:"values,omitempty"`
	ItemType          NormalizedType `json:"item_type,omitempty"`
	ExactMatchCapable bool           `json:"exact_match_capable"`
}

// FieldMap is the flattened, ordered field-path -> FieldSpec description that
// everything downstream of schema extraction consumes. Field order matters
// for deterministic prompt rendering, so Paths records insertion order
// alongside the lookup table.
type FieldMap struct {
	Paths  []string
	Fields map[string]FieldSpec
}

// NewFieldMap returns an empty, ready-to-populate FieldMap.
func NewFieldMap() *FieldMap {
	return &FieldMap{Fields: make(map[string]FieldSpec)}
}

// Set inserts or overwrites the spec for path, preserving first-seen order.
func (m *FieldMap) Set(path string, spec FieldSpec) {
	if _, exists := m.Fields[path]; !exists {
		m.Paths = append(m.Paths, path)
	}
	m.Fields[path] = spec
}

// Get returns the spec for path and whether it was present.
func (m *FieldMap) Get(path string) (FieldSpec, bool) {
	spec, ok := m.Fields[path]
	return spec, ok
}

// Len reports the number of fields in the map.
func (m *FieldMap) Len() int {
	return len(m.Paths)
}
