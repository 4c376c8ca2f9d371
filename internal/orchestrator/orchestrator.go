// Package orchestrator wires schema extraction, validation, translation,
// and execution into the single public entry point described by spec §4.8,
// grounded on the Python source's orchestrator.go QueryOrchestrator.query.
package orchestrator

import (
	"context"
	"encoding/json"
	"time"

	"github.com/rs/zerolog/log"

	"queryforge/internal/executor"
	"queryforge/internal/filter"
	"queryforge/internal/filterschema"
	"queryforge/internal/llm"
	"queryforge/internal/metrics"
	"queryforge/internal/model"
	"queryforge/internal/schema"
	"queryforge/internal/translator"
)

// Deadlines carve the orchestrator's per-call budget into independent
// per-stage timeouts (spec §5): a schema miss, a slow LLM, and a slow
// backend each fail on their own clock rather than sharing one.
type Deadlines struct {
	Schema time.Duration
	LLM    time.Duration
	Backend time.Duration
}

func defaultDeadlines() Deadlines {
	return Deadlines{Schema: 10 * time.Second, LLM: 30 * time.Second, Backend: 15 * time.Second}
}

// CallRecord is the orchestrator's output record (spec §6).
type CallRecord struct {
	NaturalLanguageQuery string              `json:"natural_language_query"`
	ExtractedFilters     *model.FilterIR     `json:"extracted_filters"`
	DatabaseQueries      []translator.Plan   `json:"database_queries"`
	Results              []model.QueryResult `json:"results,omitempty"`
	// Warnings carries non-fatal auto-corrections the validator applied to
	// the extracted filter, e.g. a dropped sort key or a cleared interval.
	Warnings []string `json:"warnings,omitempty"`
}

// Orchestrator is the single coordination point a controller calls into.
// It owns no backend-specific logic itself — extractor, translator, llm
// client, and executor are all injected, so the same orchestrator shape
// serves either backend.
type Orchestrator struct {
	Extractor  schema.Extractor
	Translator translator.Translator
	Executor   executor.Executor
	LLMClient  llm.Client
	Deadlines  Deadlines
	// Backend labels every metric this orchestrator emits ("search" or
	// "doc"), so a single Grafana dashboard can split by backend kind.
	Backend string

	builder   *filterschema.Builder
	validator *filter.Validator
}

// New builds an Orchestrator. The extractor should already be wrapped in a
// schema.CachedExtractor by the caller (cmd/server wiring) so FieldMap
// construction happens at most once per process.
func New(ex schema.Extractor, tr translator.Translator, ex2 executor.Executor, llmClient llm.Client, backend string) *Orchestrator {
	return &Orchestrator{
		Extractor:  ex,
		Translator: tr,
		Executor:   ex2,
		LLMClient:  llmClient,
		Deadlines:  defaultDeadlines(),
		Backend:    backend,
	}
}

// ensureSchema lazily fetches and caches the FieldMap-derived builder and
// validator for this orchestrator instance (spec §4.8 steps 1-2).
func (o *Orchestrator) ensureSchema(ctx context.Context) error {
	if o.validator != nil {
		return nil
	}
	schemaCtx, cancel := context.WithTimeout(ctx, o.Deadlines.Schema)
	defer cancel()

	fm, err := o.Extractor.Extract(schemaCtx)
	if err != nil {
		if schemaCtx.Err() != nil {
			return &model.TimeoutError{Stage: "schema"}
		}
		return err
	}
	o.builder = filterschema.NewBuilder(fm)
	o.validator = filter.NewValidator(fm)
	return nil
}

// Query runs the full natural-language pipeline: fetch schema, build the
// prompt descriptor, call the LLM, canonicalize the IR, translate it, and
// (if execute is true) run it. Partial results are never returned on
// cancellation — a failure or deadline at any stage aborts the whole call
// (spec §5), except that a backend error on one slice is reported in that
// slice's QueryResult (spec §7).
func (o *Orchestrator) Query(ctx context.Context, naturalLanguage string, execute bool) (*CallRecord, error) {
	outcome := "success"
	defer func(start time.Time) {
		metrics.OrchestratorCallsTotal.WithLabelValues(o.Backend, outcome).Inc()
		metrics.OrchestratorCallDurationSeconds.WithLabelValues(o.Backend, "total").Observe(time.Since(start).Seconds())
	}(time.Now())

	schemaStart := time.Now()
	if err := o.ensureSchema(ctx); err != nil {
		outcome = "error"
		return nil, err
	}
	metrics.OrchestratorCallDurationSeconds.WithLabelValues(o.Backend, "schema").Observe(time.Since(schemaStart).Seconds())

	llmCtx, cancel := context.WithTimeout(ctx, o.Deadlines.LLM)
	defer cancel()
	llmStart := time.Now()
	raw, err := o.LLMClient.ExtractFilter(llmCtx, naturalLanguage, o.builder.Describe())
	if err != nil {
		outcome = "error"
		if llmCtx.Err() != nil {
			return nil, &model.TimeoutError{Stage: "llm"}
		}
		return nil, err
	}
	metrics.OrchestratorCallDurationSeconds.WithLabelValues(o.Backend, "llm").Observe(time.Since(llmStart).Seconds())

	ir, warnings, err := o.validator.Validate(raw)
	if err != nil {
		outcome = "error"
		return nil, err
	}

	translateStart := time.Now()
	plans, err := o.Translator.Translate(*ir)
	if err != nil {
		outcome = "error"
		return nil, err
	}
	metrics.OrchestratorCallDurationSeconds.WithLabelValues(o.Backend, "translate").Observe(time.Since(translateStart).Seconds())
	metrics.SlicesTranslatedTotal.WithLabelValues(o.Backend).Add(float64(len(plans)))

	record := &CallRecord{
		NaturalLanguageQuery: naturalLanguage,
		ExtractedFilters:     ir,
		DatabaseQueries:      plans,
		Warnings:             warnings,
	}

	if execute && len(plans) > 0 {
		backendCtx, cancel := context.WithTimeout(ctx, o.Deadlines.Backend)
		defer cancel()
		backendStart := time.Now()
		results, err := o.Executor.Execute(backendCtx, plans)
		if err != nil || backendCtx.Err() != nil {
			outcome = "error"
			if backendCtx.Err() != nil {
				return nil, &model.TimeoutError{Stage: "execute"}
			}
			return nil, err
		}
		metrics.OrchestratorCallDurationSeconds.WithLabelValues(o.Backend, "execute").Observe(time.Since(backendStart).Seconds())
		if len(warnings) > 0 {
			for i := range results {
				if results[i].Metadata == nil {
					results[i].Metadata = make(map[string]any, 1)
				}
				results[i].Metadata["warnings"] = warnings
			}
		}
		record.Results = results
	}

	log.Info().Str("natural_language", naturalLanguage).Int("slices", len(plans)).Bool("executed", execute).Msg("orchestrator: query completed")
	return record, nil
}

// QueryRaw accepts a caller-supplied backend-native plan and executes it
// directly, skipping schema, validation, and translation entirely — the
// escape hatch of spec §4.8's final sentence, grounded on the Python
// source's Orchestrator.query_raw.
func (o *Orchestrator) QueryRaw(ctx context.Context, plan translator.Plan, limit int) (model.QueryResult, error) {
	backendCtx, cancel := context.WithTimeout(ctx, o.Deadlines.Backend)
	defer cancel()
	result, err := o.Executor.ExecuteRaw(backendCtx, plan, limit)
	if err != nil {
		if backendCtx.Err() != nil {
			return model.QueryResult{}, &model.TimeoutError{Stage: "execute"}
		}
		return model.QueryResult{}, err
	}
	return result, nil
}

// SchemaInfo returns the extractor's FieldMap rendered the way the Python
// source's print_model_summary/get_model_info does, as a JSON document
// suitable for a schema-introspection endpoint (spec-supplemented feature).
func (o *Orchestrator) SchemaInfo(ctx context.Context) (*filterschema.PromptDescriptor, error) {
	if err := o.ensureSchema(ctx); err != nil {
		return nil, err
	}
	descriptor := o.builder.Describe()
	return &descriptor, nil
}

// MarshalCallRecord renders a CallRecord the way the REST surface returns
// it — plans and results must round-trip through a standard JSON
// encoder/decoder (spec §6).
func MarshalCallRecord(record *CallRecord) ([]byte, error) {
	return json.Marshal(record)
}
