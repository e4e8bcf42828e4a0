package market

import (
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
)

// ErrNotFound reports a query against a condition or account that does not
// exist. It is an outcome, not a crash; callers branch on it.
var ErrNotFound = errors.New("not found")

// PreconditionError means a required input was missing or malformed. It is
// raised before any query runs, so nothing was read or sent.
type PreconditionError struct {
	Op     string
	Reason string
}

func (e *PreconditionError) Error() string {
	return fmt.Sprintf("%s: precondition failed: %s", e.Op, e.Reason)
}

// StateQueryError wraps a failed chain read. The underlying error is
// propagated unchanged; the workflow aborted before submission.
type StateQueryError struct {
	Op  string
	Err error
}

func (e *StateQueryError) Error() string {
	return fmt.Sprintf("%s: state query failed: %v", e.Op, e.Err)
}

func (e *StateQueryError) Unwrap() error { return e.Err }

// SubmissionError means the batch was rejected before inclusion. Nothing
// took effect on-chain.
type SubmissionError struct {
	Op  string
	Err error
}

func (e *SubmissionError) Error() string {
	return fmt.Sprintf("%s: submission failed: %v", e.Op, e.Err)
}

func (e *SubmissionError) Unwrap() error { return e.Err }

// ExecutionRevertedError means the batch was included but reverted. The
// chain guarantees no partial state change occurred.
type ExecutionRevertedError struct {
	Op     string
	TxHash common.Hash
	Reason string
}

func (e *ExecutionRevertedError) Error() string {
	reason := e.Reason
	if reason == "" {
		reason = "revert reason unavailable"
	}
	return fmt.Sprintf("%s: execution reverted (tx %s): %s", e.Op, e.TxHash.Hex(), reason)
}
