// Package llm adapts an external language model to produce a raw filter
// IR document from a natural-language query and a PromptDescriptor,
// grounded on the teacher's internal/service/llm_service.go Gemini client.
package llm

import (
	"context"

	"queryforge/internal/filterschema"
)

// Client turns a natural-language query plus a field/operator descriptor
// into raw JSON the FilterValidator can canonicalize. Implementations own
// the system prompt; the descriptor is the only schema-shaped input they
// receive, matching the orchestrator's "steps 2-5 skipped on the raw-query
// escape hatch" contract (spec §4.8) — the LLM is never consulted there.
type Client interface {
	ExtractFilter(ctx context.Context, naturalLanguage string, descriptor filterschema.PromptDescriptor) ([]byte, error)
}
