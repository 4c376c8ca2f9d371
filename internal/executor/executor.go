// Package executor runs backend-native plans and normalizes every result
// into the uniform model.QueryResult envelope, grounded on the Python
// source's execution/executor.py QueryExecutor and
// execution/result_formatter.py ResultFormatter.
package executor

import (
	"context"

	"queryforge/internal/model"
	"queryforge/internal/translator"
)

// Executor runs a list of backend-native plans, one per FilterIR slice, and
// returns one QueryResult per plan in the same order.
type Executor interface {
	Execute(ctx context.Context, plans []translator.Plan) ([]model.QueryResult, error)
	// ExecuteRaw runs a single caller-supplied backend-native plan,
	// bypassing validation and translation (the raw-query escape hatch,
	// spec §4.8).
	ExecuteRaw(ctx context.Context, plan translator.Plan, limit int) (model.QueryResult, error)
}

// RunAll executes every plan through run, isolating failures per spec §7:
// one slice's backend error becomes an ErrorResult rather than aborting the
// remaining slices. Plans are run in slice order and results are returned
// in the same order; concurrent callers may parallelize across plans since
// each plan is self-contained (spec §5).
func RunAll(ctx context.Context, plans []translator.Plan, run func(context.Context, translator.Plan) (model.QueryResult, error)) []model.QueryResult {
	results := make([]model.QueryResult, len(plans))
	for i, plan := range plans {
		select {
		case <-ctx.Done():
			results[i] = model.ErrorResult(&model.TimeoutError{Stage: "execute"})
			continue
		default:
		}
		result, err := run(ctx, plan)
		if err != nil {
			results[i] = model.ErrorResult(&model.BackendError{Cause: err})
			continue
		}
		results[i] = result
	}
	return results
}
