// Package budget tracks a finite pool of consumable units (tokens) shared
// across concurrent operations. Units are reserved up front with Allocate,
// spent with Consume as actual usage becomes known, and any unspent
// remainder returns to the pool on Release.
//
// All pool mutations are atomic compare-and-swap; callers never observe
// more units allocated than the pool's total. The intended usage pattern
// pairs every Allocate with a deferred Release so the remainder returns on
// every exit path, including errors and cancellation:
//
//	alloc, err := pool.Allocate(maxTokens)
//	if err != nil {
//		return err
//	}
//	defer alloc.Release()
//	// ... perform the operation, then:
//	alloc.Consume(actualTokens)
package budget

import (
	"errors"
	"fmt"
	"sync/atomic"
)

// ErrExhausted is returned by Allocate when the pool cannot cover the
// requested amount. Nothing is reserved in that case.
var ErrExhausted = errors.New("budget exhausted")

// Budget is a pool of consumable units. The zero value is unusable; create
// one with New.
type Budget struct {
	remaining atomic.Uint64
	total     uint64
}

// New creates a pool holding total units.
func New(total uint64) *Budget {
	b := &Budget{total: total}
	b.remaining.Store(total)
	return b
}

// Allocate reserves amount units and returns the handle holding them. The
// reservation is a single atomic check-and-decrement: either the full
// amount is reserved or nothing is. When the pool cannot cover the amount
// the error wraps ErrExhausted.
func (b *Budget) Allocate(amount uint64) (*Allocation, error) {
	for {
		witness := b.remaining.Load()
		if witness < amount {
			return nil, fmt.Errorf("%w: need %d units, %d remaining", ErrExhausted, amount, witness)
		}
		if b.remaining.CompareAndSwap(witness, witness-amount) {
			alloc := &Allocation{budget: b}
			alloc.held.Store(amount)
			return alloc, nil
		}
	}
}

// Remaining returns a point-in-time snapshot of unreserved units. In
// concurrent use the value may be stale by the time it is acted on.
func (b *Budget) Remaining() uint64 {
	return b.remaining.Load()
}

// Total returns the pool's capacity.
func (b *Budget) Total() uint64 {
	return b.total
}

// Allocation is a lease of units carved out of a Budget. It is owned by a
// single caller: Consume spends held units as actual usage becomes known,
// and Release returns whatever was not consumed. Consumed units never
// return to the pool.
type Allocation struct {
	budget   *Budget
	held     atomic.Uint64
	released atomic.Bool
}

// Consume marks amount held units as spent and reports whether the
// allocation covered them. On false nothing is deducted; the caller
// over-ran its reservation. Consumption is irreversible.
func (a *Allocation) Consume(amount uint64) bool {
	for {
		held := a.held.Load()
		if amount > held {
			return false
		}
		if a.held.CompareAndSwap(held, held-amount) {
			return true
		}
	}
}

// Release returns the unconsumed remainder to the pool and reports how
// many units were returned. Only the first call returns units; later
// calls are no-ops returning 0, so an explicit Release and a deferred one
// can coexist safely.
func (a *Allocation) Release() uint64 {
	if !a.released.CompareAndSwap(false, true) {
		return 0
	}
	remainder := a.held.Swap(0)
	if remainder > 0 {
		a.budget.remaining.Add(remainder)
	}
	return remainder
}

// Held returns the units still reserved by this allocation.
func (a *Allocation) Held() uint64 {
	return a.held.Load()
}
