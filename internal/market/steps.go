package market

import (
	"context"
	"errors"

	"github.com/predictfi/gomarket/internal/txn"
)

// step is one potential entry in a batch. Inclusion is decided by an optional
// predicate evaluated against live chain state before anything is encoded;
// steps with a nil predicate are unconditional. A workflow is just an ordered
// slice of steps, so "skip the approval when allowance covers the amount" is
// data, not control flow.
type step struct {
	name    string
	include func(ctx context.Context) (bool, error)
	build   func(ctx context.Context) (txn.Call, error)
}

// buildBatch evaluates predicates in order and encodes the included steps.
// Builders get a context because some guards (minimum-out amounts, merge
// amounts) must be read from the chain at build time, not earlier. Predicate
// failures surface as StateQueryError; build failures keep their own type if
// they already carry one, otherwise they become PreconditionError. Both name
// the step.
func buildBatch(ctx context.Context, steps []step) (*txn.Batch, error) {
	batch := txn.NewBatch()
	for _, s := range steps {
		if s.include != nil {
			ok, err := s.include(ctx)
			if err != nil {
				return nil, &StateQueryError{Op: s.name, Err: err}
			}
			if !ok {
				continue
			}
		}
		call, err := s.build(ctx)
		if err != nil {
			var sqErr *StateQueryError
			var preErr *PreconditionError
			if errors.As(err, &sqErr) || errors.As(err, &preErr) {
				return nil, err
			}
			return nil, &PreconditionError{Op: s.name, Reason: err.Error()}
		}
		batch.Push(call)
	}
	return batch, nil
}
