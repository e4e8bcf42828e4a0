// Package txn models the atomic call batches executed through the proxy
// account, and the executors that submit them.
package txn

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// Operation selects how the proxy performs a call.
type Operation uint8

const (
	OpCall         Operation = 0
	OpDelegateCall Operation = 1
)

// Call is one sub-operation within a batch: target, opaque payload, and the
// native value attached to it. Immutable once built.
type Call struct {
	To        common.Address
	Value     *big.Int
	Data      []byte
	Operation Operation
}

// NativeValue returns the attached value, never nil.
func (c Call) NativeValue() *big.Int {
	if c.Value == nil {
		return big.NewInt(0)
	}
	return c.Value
}

// Batch is an ordered, push-only sequence of calls submitted as one unit.
// The chain guarantees all calls apply or none do.
type Batch struct {
	calls []Call
}

func NewBatch() *Batch {
	return &Batch{}
}

// Push appends a call. Order is significant and caller-determined.
func (b *Batch) Push(c Call) {
	b.calls = append(b.calls, c)
}

// Calls returns a copy of the ordered call list.
func (b *Batch) Calls() []Call {
	out := make([]Call, len(b.calls))
	copy(out, b.calls)
	return out
}

func (b *Batch) Len() int {
	return len(b.calls)
}

// AggregateValue sums the native value attached across all calls. It is the
// value the outer proxy execution must carry.
func (b *Batch) AggregateValue() *big.Int {
	total := big.NewInt(0)
	for _, c := range b.calls {
		total.Add(total, c.NativeValue())
	}
	return total
}
